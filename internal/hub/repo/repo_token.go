package repo

import (
	"errors"
	"sort"
	"strings"

	"github.com/orcidhub/hub/internal/hub/model"
	"github.com/orcidhub/hub/pkg/ctx"
	"gorm.io/gorm"
)

// TokenRepo is the persistent store of ORCID OAuth tokens, one row per
// (user, organisation, scope-set). No network I/O.
type TokenRepo struct {
	ctx    *ctx.Context
	gormDB *gorm.DB
}

func NewTokenRepo(c *ctx.Context) *TokenRepo {
	return &TokenRepo{ctx: c}
}

// WithDB returns a copy of the repo bound to the given handle, used to join
// an ongoing transaction.
func (r *TokenRepo) WithDB(db *gorm.DB) *TokenRepo {
	return &TokenRepo{ctx: r.ctx, gormDB: db}
}

func (r *TokenRepo) db() *gorm.DB {
	if r.gormDB != nil {
		return r.gormDB
	}
	return r.ctx.GetDB()
}

// NormalizeScopes canonicalizes a scope set: trimmed, deduplicated, sorted,
// comma-joined. Scope-set equality is string-set equality, never substring
// matching.
func NormalizeScopes(scopes []string) string {
	set := make(map[string]struct{}, len(scopes))
	for _, s := range scopes {
		s = strings.TrimSpace(s)
		if s != "" {
			set[s] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return strings.Join(out, ",")
}

// SplitScopes is the inverse of NormalizeScopes.
func SplitScopes(scopes string) []string {
	if scopes == "" {
		return nil
	}
	return strings.Split(scopes, ",")
}

// GetOrCreate looks a token up by exact scope-set match, creating an empty
// shell to be populated by the exchanger when absent.
func (r *TokenRepo) GetOrCreate(userID, orgID string, scopes []string) (*model.OrcidToken, bool, error) {
	canonical := NormalizeScopes(scopes)
	var token model.OrcidToken
	err := r.db().
		Where("user_id = ? AND org_id = ? AND scopes = ?", userID, orgID, canonical).
		First(&token).Error
	if err == nil {
		return &token, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}
	token = model.OrcidToken{UserID: userID, OrgID: orgID, Scopes: canonical}
	if err := r.db().Create(&token).Error; err != nil {
		return nil, false, err
	}
	return &token, true, nil
}

// FindByScopes returns the token with the exact scope-set, or ErrNotFound.
func (r *TokenRepo) FindByScopes(userID, orgID string, scopes []string) (*model.OrcidToken, error) {
	var token model.OrcidToken
	err := r.db().
		Where("user_id = ? AND org_id = ? AND scopes = ?", userID, orgID, NormalizeScopes(scopes)).
		First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &token, nil
}

// FindBroader returns a live token whose scope-set covers all the wanted
// scopes, for the duplicate-grant short-circuit.
func (r *TokenRepo) FindBroader(userID, orgID string, scopes []string) (*model.OrcidToken, error) {
	var tokens []model.OrcidToken
	if err := r.db().
		Where("user_id = ? AND org_id = ? AND access_token <> ''", userID, orgID).
		Find(&tokens).Error; err != nil {
		return nil, err
	}
	wanted := SplitScopes(NormalizeScopes(scopes))
	for i := range tokens {
		held := make(map[string]struct{})
		for _, s := range SplitScopes(tokens[i].Scopes) {
			held[s] = struct{}{}
		}
		covers := true
		for _, w := range wanted {
			if _, ok := held[w]; !ok {
				covers = false
				break
			}
		}
		if covers {
			return &tokens[i], nil
		}
	}
	return nil, ErrNotFound
}

func (r *TokenRepo) Save(token *model.OrcidToken) error {
	return r.db().Save(token).Error
}

// Invalidate deletes the row; called when the registry replies 401 to a call
// made with this token, signalling revocation by the user.
func (r *TokenRepo) Invalidate(token *model.OrcidToken) error {
	return r.db().Delete(token).Error
}
