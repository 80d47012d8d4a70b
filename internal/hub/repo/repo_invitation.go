package repo

import (
	"errors"
	"time"

	"github.com/orcidhub/hub/internal/hub/model"
	"github.com/orcidhub/hub/pkg/ctx"
	"gorm.io/gorm"
)

type InvitationRepo struct {
	ctx *ctx.Context
}

func NewInvitationRepo(c *ctx.Context) *InvitationRepo {
	return &InvitationRepo{ctx: c}
}

func (r *InvitationRepo) db() *gorm.DB {
	return r.ctx.GetDB()
}

// FindByToken resolves a token against both variants, user invitations first.
func (r *InvitationRepo) FindByToken(token string) (*model.Invitation, error) {
	var userInv model.UserInvitation
	err := r.db().Where("token = ?", token).First(&userInv).Error
	if err == nil {
		return &model.Invitation{Kind: model.InvitationKindUser, User: &userInv}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var orgInv model.OrgInvitation
	err = r.db().Where("token = ?", token).First(&orgInv).Error
	if err == nil {
		return &model.Invitation{Kind: model.InvitationKindOrg, Org: &orgInv}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	return nil, ErrNotFound
}

func (r *InvitationRepo) CreateUserInvitation(inv *model.UserInvitation) error {
	return r.db().Create(inv).Error
}

func (r *InvitationRepo) CreateOrgInvitation(inv *model.OrgInvitation) error {
	return r.db().Create(inv).Error
}

// PendingUserInvitation returns an unconfirmed invitation for the same
// (email, organisation), used for the duplicate-invitation guard.
func (r *InvitationRepo) PendingUserInvitation(email, orgID string) (*model.UserInvitation, error) {
	var inv model.UserInvitation
	err := r.db().
		Where("email = ? AND org_id = ? AND confirmed_at IS NULL", email, orgID).
		Order("created_at DESC").
		First(&inv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &inv, nil
}

// SupersedeUserInvitations removes pending invitations for (email, org) so a
// resent invitation replaces rather than accumulates.
func (r *InvitationRepo) SupersedeUserInvitations(email, orgID string) error {
	return r.db().
		Where("email = ? AND org_id = ? AND confirmed_at IS NULL", email, orgID).
		Delete(&model.UserInvitation{}).Error
}

// Confirm marks the invitation consumed by the given user.
func (r *InvitationRepo) Confirm(inv *model.Invitation, userID string) error {
	now := time.Now()
	switch inv.Kind {
	case model.InvitationKindOrg:
		inv.Org.ConfirmedAt = &now
		inv.Org.InviteeID = userID
		return r.db().Save(inv.Org).Error
	default:
		inv.User.ConfirmedAt = &now
		inv.User.InviteeID = userID
		return r.db().Save(inv.User).Error
	}
}
