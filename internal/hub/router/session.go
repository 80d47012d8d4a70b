package router

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/orcidhub/hub/pkg/cache"
	"github.com/orcidhub/hub/pkg/id"
	"github.com/orcidhub/hub/pkg/log"
	"github.com/redis/go-redis/v9"
)

const (
	sessionCookie  = "hub_sid"
	sessionTTL     = 24 * time.Hour
	sessionKeyPref = "hub:session:"
	shortKeyPref   = "hub:short:"
	shortTTL       = 4 * 7 * 24 * time.Hour
)

// session is the per-browser state kept in redis across the OAuth round-trip.
type session struct {
	UserID          string `json:"userId,omitempty"`
	OrgID           string `json:"orgId,omitempty"`
	State           string `json:"state,omitempty"`
	InvitationToken string `json:"invitationToken,omitempty"`
	Next            string `json:"next,omitempty"`
	Flash           string `json:"flash,omitempty"`
}

type sessionStore struct {
	cache cache.ICache
}

func newSessionStore(c cache.ICache) *sessionStore {
	return &sessionStore{cache: c}
}

// load returns the session bound to the request cookie, or a fresh one with
// the cookie set.
func (s *sessionStore) load(c *gin.Context) *session {
	sid, err := c.Cookie(sessionCookie)
	if err != nil || sid == "" {
		sid = id.UUIDWithoutDashes()
		c.SetCookie(sessionCookie, sid, int(sessionTTL.Seconds()), "/", "", false, true)
		c.Set(sessionCookie, sid)
		return &session{}
	}
	c.Set(sessionCookie, sid)

	raw, err := s.cache.Get(c.Request.Context(), sessionKeyPref+sid).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warnf("session lookup failed: %v", err)
		}
		return &session{}
	}
	var sess session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return &session{}
	}
	return &sess
}

func (s *sessionStore) save(c *gin.Context, sess *session) error {
	sid := c.GetString(sessionCookie)
	if sid == "" {
		sid = id.UUIDWithoutDashes()
		c.SetCookie(sessionCookie, sid, int(sessionTTL.Seconds()), "/", "", false, true)
	}
	raw, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.cache.Set(c.Request.Context(), sessionKeyPref+sid, string(raw), sessionTTL).Err()
}

func (s *sessionStore) clear(c *gin.Context) {
	if sid := c.GetString(sessionCookie); sid != "" {
		s.cache.Del(c.Request.Context(), sessionKeyPref+sid)
	}
	c.SetCookie(sessionCookie, "", -1, "/", "", false, true)
}

// shorten stores a redirect target under a short token, for compact links in
// invitation emails.
func (s *sessionStore) shorten(c *gin.Context, target string) (string, error) {
	short := id.Short()
	if err := s.cache.Set(c.Request.Context(), shortKeyPref+short, target, shortTTL).Err(); err != nil {
		return "", err
	}
	return short, nil
}

// expand resolves a short token back to its target, or "".
func (s *sessionStore) expand(c *gin.Context, short string) string {
	target, err := s.cache.Get(c.Request.Context(), shortKeyPref+short).Result()
	if err != nil {
		return ""
	}
	return target
}
