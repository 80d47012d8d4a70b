package repo

import (
	"errors"

	"github.com/orcidhub/hub/internal/hub/model"
	"github.com/orcidhub/hub/pkg/ctx"
	"gorm.io/gorm"
)

type OrgRepo struct {
	ctx *ctx.Context
}

func NewOrgRepo(c *ctx.Context) *OrgRepo {
	return &OrgRepo{ctx: c}
}

func (r *OrgRepo) db() *gorm.DB {
	return r.ctx.GetDB()
}

// FindByNames resolves an organisation by its federation display name or
// plain name, whichever matches first.
func (r *OrgRepo) FindByNames(tuakiriName, name string) (*model.Organisation, error) {
	var org model.Organisation
	q := r.db()
	switch {
	case tuakiriName != "" && name != "":
		q = q.Where("tuakiri_name = ? OR name = ?", tuakiriName, name)
	case tuakiriName != "":
		q = q.Where("tuakiri_name = ?", tuakiriName)
	default:
		q = q.Where("name = ?", name)
	}
	if err := q.First(&org).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &org, nil
}

func (r *OrgRepo) FindByOrgID(orgID string) (*model.Organisation, error) {
	var org model.Organisation
	if err := r.db().Where("org_id = ?", orgID).First(&org).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &org, nil
}

func (r *OrgRepo) Create(org *model.Organisation) error {
	return r.db().Create(org).Error
}

func (r *OrgRepo) Save(org *model.Organisation) error {
	return r.db().Save(org).Error
}
