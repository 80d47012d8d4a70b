package repo

import (
	"errors"

	"github.com/orcidhub/hub/internal/hub/model"
	"github.com/orcidhub/hub/pkg/ctx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is the repo-level miss, shared by all aggregates.
var ErrNotFound = errors.New("record not found")

type UserRepo struct {
	ctx *ctx.Context
}

func NewUserRepo(c *ctx.Context) *UserRepo {
	return &UserRepo{ctx: c}
}

func (r *UserRepo) db() *gorm.DB {
	return r.ctx.GetDB()
}

// FindByIdentifiers resolves a user by any of its known addresses (primary or
// secondary email) or by eppn.
func (r *UserRepo) FindByIdentifiers(emails []string, eppn string) (*model.User, error) {
	var user model.User
	q := r.db().Where("email IN ?", emails)
	if eppn != "" {
		q = q.Or("eppn = ?", eppn)
	}
	if err := q.First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepo) FindByUserID(userID string) (*model.User, error) {
	var user model.User
	if err := r.db().Where("user_id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepo) FindByEmail(email string) (*model.User, error) {
	return r.FindByIdentifiers([]string{email}, "")
}

// FindByOrcid resolves a user by their previously linked ORCID iD.
func (r *UserRepo) FindByOrcid(orcidID string) (*model.User, error) {
	var user model.User
	if err := r.db().Where("orcid = ?", orcidID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepo) Create(user *model.User) error {
	return r.db().Create(user).Error
}

func (r *UserRepo) Save(user *model.User) error {
	return r.db().Save(user).Error
}

// GetOrCreateUserOrg links a user to an organisation lazily. The composite
// unique index absorbs concurrent creations.
func (r *UserRepo) GetOrCreateUserOrg(userID, orgID string) (*model.UserOrg, bool, error) {
	userOrg := model.UserOrg{UserID: userID, OrgID: orgID}
	res := r.db().
		Clauses(clause.OnConflict{DoNothing: true}).
		Where("user_id = ? AND org_id = ?", userID, orgID).
		FirstOrCreate(&userOrg)
	if res.Error != nil {
		return nil, false, res.Error
	}
	return &userOrg, res.RowsAffected > 0, nil
}

func (r *UserRepo) SaveUserOrg(userOrg *model.UserOrg) error {
	return r.db().Save(userOrg).Error
}

// IsOrgAdmin reports whether the user administers the organisation.
func (r *UserRepo) IsOrgAdmin(userID, orgID string) (bool, error) {
	var count int64
	err := r.db().Model(&model.UserOrg{}).
		Where("user_id = ? AND org_id = ? AND is_admin = ?", userID, orgID, true).
		Count(&count).Error
	return count > 0, err
}

// FindOrgLinkByOrcid finds the member of an organisation already holding the
// given ORCID iD, for cross-linkage collision checks.
func (r *UserRepo) FindOrgLinkByOrcid(orcidID, orgID string) (*model.User, error) {
	var user model.User
	err := r.db().
		Joins("JOIN t_user_org uo ON uo.user_id = t_user.user_id").
		Where("t_user.orcid = ? AND uo.org_id = ?", orcidID, orgID).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}
