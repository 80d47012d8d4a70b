package logic

import (
	"testing"
	"time"

	"github.com/orcidhub/hub/internal/hub/model"
	"github.com/orcidhub/hub/pkg/ctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newResolver(t *testing.T) (*InvitationResolver, *ctxFixture) {
	c := newTestCtx(t)
	org := seedOrg(t, c, true)
	inviter := seedUser(t, c, "")
	return NewInvitationResolver(c, "invitation-secret"), &ctxFixture{ctx: c, org: org, inviter: inviter}
}

type ctxFixture struct {
	ctx     *ctx.Context
	org     *model.Organisation
	inviter *model.User
}

func TestInviteUserAndResolve(t *testing.T) {
	ir, fx := newResolver(t)

	inv, err := ir.InviteUser(fx.inviter, fx.org, "Researcher@Uni.ac.nz", model.AffiliationEmployment, model.TaskTypeAffiliation, "task-1", false)
	require.NoError(t, err)
	assert.Equal(t, "researcher@uni.ac.nz", inv.Email)
	assert.NotEmpty(t, inv.Token)

	resolved, err := ir.Resolve(inv.Token)
	require.NoError(t, err)
	assert.Equal(t, model.InvitationKindUser, resolved.Kind)
	assert.Equal(t, "researcher@uni.ac.nz", resolved.Email())
	assert.Equal(t, fx.org.OrgID, resolved.OrgID())
}

func TestInviteUserDuplicateRejected(t *testing.T) {
	ir, fx := newResolver(t)

	first, err := ir.InviteUser(fx.inviter, fx.org, "dup@uni.ac.nz", model.AffiliationEmployment, model.TaskTypeAffiliation, "", false)
	require.NoError(t, err)

	_, err = ir.InviteUser(fx.inviter, fx.org, "dup@uni.ac.nz", model.AffiliationEmployment, model.TaskTypeAffiliation, "", false)
	var already *AlreadySentError
	require.ErrorAs(t, err, &already)
	assert.WithinDuration(t, first.CreatedAt, already.SentAt, time.Second)
	assert.Contains(t, already.Error(), "already been sent")
}

func TestInviteUserResendSupersedes(t *testing.T) {
	ir, fx := newResolver(t)

	first, err := ir.InviteUser(fx.inviter, fx.org, "dup@uni.ac.nz", model.AffiliationEmployment, model.TaskTypeAffiliation, "", false)
	require.NoError(t, err)

	second, err := ir.InviteUser(fx.inviter, fx.org, "dup@uni.ac.nz", model.AffiliationEmployment, model.TaskTypeAffiliation, "", true)
	require.NoError(t, err)
	assert.NotEqual(t, first.Token, second.Token)

	// the superseded token no longer resolves
	_, err = ir.Resolve(first.Token)
	assert.ErrorIs(t, err, ErrInvitationNotFound)
	_, err = ir.Resolve(second.Token)
	assert.NoError(t, err)
}

func TestResolveUnknownToken(t *testing.T) {
	ir, _ := newResolver(t)
	_, err := ir.Resolve("never-issued")
	assert.ErrorIs(t, err, ErrInvitationNotFound)
}

func TestCheckExpiry(t *testing.T) {
	ir, fx := newResolver(t)

	inv, err := ir.InviteUser(fx.inviter, fx.org, "fresh@uni.ac.nz", 0, model.TaskTypeAffiliation, "", false)
	require.NoError(t, err)
	resolved, err := ir.Resolve(inv.Token)
	require.NoError(t, err)
	assert.NoError(t, ir.CheckExpiry(resolved))

	// backdate past the four week window
	require.NoError(t, fx.ctx.GetDB().Model(&model.UserInvitation{}).
		Where("id = ?", inv.ID).
		Update("created_at", time.Now().Add(-5*7*24*time.Hour)).Error)
	resolved, err = ir.Resolve(inv.Token)
	require.NoError(t, err)
	assert.ErrorIs(t, ir.CheckExpiry(resolved), ErrInvitationExpired)
}

func TestCheckExpiryShorterWindowForAdmins(t *testing.T) {
	ir, fx := newResolver(t)

	// the invitee already administers the organisation
	admin := &model.User{UserID: "admin-1", Email: "admin@uni.ac.nz", Roles: model.RoleAdmin}
	require.NoError(t, fx.ctx.GetDB().Create(admin).Error)
	require.NoError(t, fx.ctx.GetDB().Create(&model.UserOrg{
		UserID: admin.UserID, OrgID: fx.org.OrgID, IsAdmin: true,
	}).Error)

	inv, err := ir.InviteUser(fx.inviter, fx.org, "admin@uni.ac.nz", 0, model.TaskTypeAffiliation, "", false)
	require.NoError(t, err)

	// three weeks old: fine for a researcher, expired for an admin invitee
	require.NoError(t, fx.ctx.GetDB().Model(&model.UserInvitation{}).
		Where("id = ?", inv.ID).
		Update("created_at", time.Now().Add(-3*7*24*time.Hour)).Error)
	resolved, err := ir.Resolve(inv.Token)
	require.NoError(t, err)
	assert.ErrorIs(t, ir.CheckExpiry(resolved), ErrInvitationExpired)
}

func TestScopeIntent(t *testing.T) {
	ir, fx := newResolver(t)

	userInv := func(taskType string) *model.Invitation {
		return &model.Invitation{
			Kind: model.InvitationKindUser,
			User: &model.UserInvitation{OrgID: fx.org.OrgID, TaskType: taskType},
		}
	}

	assert.ElementsMatch(t, []string{ScopeReadLimited, ScopeActivitiesUpdate},
		ir.ScopeIntent(userInv(model.TaskTypeAffiliation)))
	assert.ElementsMatch(t, []string{ScopeReadLimited, ScopeActivitiesUpdate},
		ir.ScopeIntent(userInv(model.TaskTypeFunding)))
	assert.ElementsMatch(t, []string{ScopeReadLimited, ScopePersonUpdate},
		ir.ScopeIntent(userInv(model.TaskTypeProperty)))
	assert.ElementsMatch(t, []string{ScopeReadLimited, ScopePersonUpdate},
		ir.ScopeIntent(userInv(model.TaskTypeOtherID)))

	// an unrecognised task type never asks for write permission
	assert.Equal(t, []string{ScopeReadLimited}, ir.ScopeIntent(userInv("unclassified")))

	orgInv := &model.Invitation{Kind: model.InvitationKindOrg, Org: &model.OrgInvitation{OrgID: fx.org.OrgID}}
	assert.Equal(t, []string{ScopeAuthenticate}, ir.ScopeIntent(orgInv))
}

func TestHasSufficientGrant(t *testing.T) {
	ir, fx := newResolver(t)

	covered, err := ir.HasSufficientGrant(fx.inviter.UserID, fx.org.OrgID, []string{ScopeActivitiesUpdate})
	require.NoError(t, err)
	assert.False(t, covered)

	seedWriteToken(t, fx.ctx, fx.inviter.UserID, fx.org.OrgID)
	covered, err = ir.HasSufficientGrant(fx.inviter.UserID, fx.org.OrgID, []string{ScopeActivitiesUpdate})
	require.NoError(t, err)
	assert.True(t, covered)
}

func TestInviteOrg(t *testing.T) {
	ir, fx := newResolver(t)

	inv, err := ir.InviteOrg(fx.inviter, fx.org, "tech@uni.ac.nz", true)
	require.NoError(t, err)
	assert.True(t, inv.TechContact)

	resolved, err := ir.Resolve(inv.Token)
	require.NoError(t, err)
	assert.Equal(t, model.InvitationKindOrg, resolved.Kind)
	assert.Equal(t, []string{ScopeAuthenticate}, ir.ScopeIntent(resolved))
}
