package logic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/orcidhub/hub/internal/hub/conf"
	"github.com/orcidhub/hub/internal/hub/model"
	"github.com/orcidhub/hub/internal/hub/repo"
	"github.com/orcidhub/hub/pkg/ctx"
	"github.com/orcidhub/hub/pkg/id"
	"github.com/orcidhub/hub/pkg/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"gorm.io/gorm"
)

// ORCID OAuth permission scopes.
const (
	ScopeAuthenticate     = "/authenticate"
	ScopeReadLimited      = "/read-limited"
	ScopeReadPublic       = "/read-public"
	ScopeActivitiesUpdate = "/activities/update"
	ScopePersonUpdate     = "/person/update"
)

var (
	ErrStateMismatch            = errors.New("oauth state mismatch")
	ErrAccessDenied             = errors.New("access was denied at the consent page")
	ErrMissingCode              = errors.New("callback carries no authorization code")
	ErrMissingToken             = errors.New("token endpoint reply carries no access token")
	ErrOrcidMismatch            = errors.New("a different ORCID iD is already linked to this account")
	ErrNoClientCredentials      = errors.New("organisation has no ORCID client credentials")
	ErrInvalidClientCredentials = errors.New("organisation ORCID client credentials are invalid")
	ErrNoDowngrade              = errors.New("denied request carried no write scope to downgrade from")
)

// Grant is the outcome of a successful authorization-code exchange.
type Grant struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
	Scopes       []string
	OrcidID      string
	Name         string
}

// ScopeChoice is one downgrade alternative offered after a consent denial.
type ScopeChoice struct {
	Scopes []string `json:"scopes"`
	URL    string   `json:"url"`
}

// OAuthExchanger drives the ORCID authorization-code exchange: authorization
// URLs with the right scope set, state round-trip validation, and code-for-
// token conversion with expiry bookkeeping.
type OAuthExchanger struct {
	ctx       *ctx.Context
	conf      *conf.Orcid
	tokenRepo *repo.TokenRepo
	orgRepo   *repo.OrgRepo
	auditRepo *repo.AuditRepo
}

func NewOAuthExchanger(c *ctx.Context, cfg *conf.Orcid) *OAuthExchanger {
	return &OAuthExchanger{
		ctx:       c,
		conf:      cfg,
		tokenRepo: repo.NewTokenRepo(c),
		orgRepo:   repo.NewOrgRepo(c),
		auditRepo: repo.NewAuditRepo(c),
	}
}

func (oe *OAuthExchanger) oauthConfig(org *model.Organisation, scopes []string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     org.OrcidClientID,
		ClientSecret: org.OrcidSecret,
		Scopes:       scopes,
		RedirectURL:  oe.conf.RedirectURI,
		Endpoint: oauth2.Endpoint{
			AuthURL:   oe.conf.AuthorizeURL,
			TokenURL:  oe.conf.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// BuildAuthorizationURL constructs the consent URL for the organisation's
// client and scope set. A supplied state is reused (scope-downgrade retries
// share their round-trip context); otherwise a fresh opaque one is minted.
// Name and email are appended purely to pre-fill the consent page.
func (oe *OAuthExchanger) BuildAuthorizationURL(org *model.Organisation, user *model.User, scopes []string, state string) (string, string, error) {
	if org.OrcidClientID == "" {
		return "", "", ErrNoClientCredentials
	}
	if state == "" {
		state = id.UUIDWithoutDashes()
	}

	opts := []oauth2.AuthCodeOption{}
	if user != nil {
		if user.FirstName != "" {
			opts = append(opts, oauth2.SetAuthURLParam("given_names", user.FirstName))
		}
		if user.LastName != "" {
			opts = append(opts, oauth2.SetAuthURLParam("family_names", user.LastName))
		}
		if user.Email != "" {
			opts = append(opts, oauth2.SetAuthURLParam("email", user.Email))
		}
	}

	authURL := oe.oauthConfig(org, scopes).AuthCodeURL(state, opts...)

	var userID string
	if user != nil {
		userID = user.UserID
	}
	oe.auditRepo.RecordAuthorizeCall(userID, state, authURL)

	return authURL, state, nil
}

// DowngradeOptions re-offers three narrower scope alternatives after the user
// denied a write-scope request, each URL sharing the original state. Denials
// of requests that asked for no write scope get no downgrade offer.
func (oe *OAuthExchanger) DowngradeOptions(org *model.Organisation, user *model.User, state string) ([]ScopeChoice, error) {
	call, err := oe.auditRepo.FindAuthorizeCall(state)
	if err != nil {
		return nil, fmt.Errorf("no authorize call recorded for state %s: %w", state, err)
	}
	if !requestedWriteScope(call.AuthURL) {
		return nil, ErrNoDowngrade
	}

	alternatives := [][]string{
		{ScopeReadLimited},
		{ScopePersonUpdate},
		{ScopeAuthenticate},
	}
	choices := make([]ScopeChoice, 0, len(alternatives))
	for _, scopes := range alternatives {
		authURL, _, err := oe.BuildAuthorizationURL(org, user, scopes, state)
		if err != nil {
			return nil, err
		}
		choices = append(choices, ScopeChoice{Scopes: scopes, URL: authURL})
	}
	return choices, nil
}

// requestedWriteScope reports whether the recorded consent URL asked for a
// scope that writes to the profile.
func requestedWriteScope(authURL string) bool {
	u, err := url.Parse(authURL)
	if err != nil {
		return false
	}
	for _, scope := range splitScopeParam(u.Query().Get("scope")) {
		if scope == ScopeActivitiesUpdate || scope == ScopePersonUpdate {
			return true
		}
	}
	return false
}

// ExchangeCode validates the callback against the expected state and converts
// the authorization code into tokens. The state check precedes any exchange
// attempt; a mismatch never reaches the token endpoint.
func (oe *OAuthExchanger) ExchangeCode(reqCtx context.Context, org *model.Organisation, callbackURL, expectedState string) (*Grant, error) {
	u, err := url.Parse(callbackURL)
	if err != nil {
		return nil, fmt.Errorf("malformed callback url: %w", err)
	}
	q := u.Query()

	state := q.Get("state")
	if expectedState == "" || state != expectedState {
		return nil, ErrStateMismatch
	}
	if q.Get("error") == "access_denied" {
		return nil, ErrAccessDenied
	}
	code := q.Get("code")
	if code == "" {
		return nil, ErrMissingCode
	}

	start := time.Now()
	tok, err := oe.oauthConfig(org, nil).Exchange(reqCtx, code)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		oe.auditRepo.CompleteAuthorizeCall(state, "exchange failed: "+err.Error(), elapsed, "")
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}
	if tok.AccessToken == "" {
		oe.auditRepo.CompleteAuthorizeCall(state, "reply carried no access token", elapsed, "")
		return nil, ErrMissingToken
	}

	grant := &Grant{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}
	if !tok.Expiry.IsZero() {
		grant.ExpiresIn = int64(time.Until(tok.Expiry).Seconds())
	}
	if v, ok := tok.Extra("orcid").(string); ok {
		grant.OrcidID = v
	}
	if v, ok := tok.Extra("name").(string); ok {
		grant.Name = v
	}
	if v, ok := tok.Extra("scope").(string); ok {
		grant.Scopes = splitScopeParam(v)
	}

	oe.auditRepo.CompleteAuthorizeCall(state, fmt.Sprintf("orcid=%s scope=%s", grant.OrcidID, strings.Join(grant.Scopes, " ")), elapsed, "")

	return grant, nil
}

// PersistGrant stores the token and the user/org linkage atomically: a token
// must never be observable as saved while the linkage is not, and vice versa.
func (oe *OAuthExchanger) PersistGrant(user *model.User, org *model.Organisation, grant *Grant) (*model.OrcidToken, error) {
	if grant.OrcidID != "" {
		switch {
		case user.Orcid == "":
			user.Orcid = grant.OrcidID
		case user.Orcid != grant.OrcidID:
			return nil, ErrOrcidMismatch
		}
	}

	var saved *model.OrcidToken
	err := oe.ctx.GetDB().Transaction(func(tx *gorm.DB) error {
		tokenRepo := oe.tokenRepo.WithDB(tx)
		token, created, err := tokenRepo.GetOrCreate(user.UserID, org.OrgID, grant.Scopes)
		if err != nil {
			return err
		}
		token.AccessToken = grant.AccessToken
		token.RefreshToken = grant.RefreshToken
		token.ExpiresIn = grant.ExpiresIn
		token.IssuedAt = time.Now()
		if err := tokenRepo.Save(token); err != nil {
			return err
		}

		user.Confirmed = true
		if user.OrgID == "" {
			user.OrgID = org.OrgID
		}
		if err := tx.Save(user).Error; err != nil {
			return err
		}

		if created {
			log.Debugf("stored new orcid token for user %s org %s scopes %s", user.UserID, org.OrgID, token.Scopes)
		}
		saved = token
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// ValidateClientCredentials verifies an organisation's API credentials with a
// client-credentials grant; success confirms the organisation.
func (oe *OAuthExchanger) ValidateClientCredentials(reqCtx context.Context, org *model.Organisation) error {
	if org.OrcidClientID == "" || org.OrcidSecret == "" {
		return ErrNoClientCredentials
	}
	cc := clientcredentials.Config{
		ClientID:     org.OrcidClientID,
		ClientSecret: org.OrcidSecret,
		TokenURL:     oe.conf.TokenURL,
		Scopes:       []string{ScopeReadPublic},
	}
	if _, err := cc.Token(reqCtx); err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil &&
			retrieveErr.Response.StatusCode == http.StatusUnauthorized {
			return ErrInvalidClientCredentials
		}
		return fmt.Errorf("client credentials check failed: %w", err)
	}

	org.Confirmed = true
	return oe.orgRepo.Save(org)
}

func splitScopeParam(scope string) []string {
	fields := strings.FieldsFunc(scope, func(r rune) bool {
		return r == ' ' || r == ','
	})
	out := fields[:0]
	for _, f := range fields {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}
