package logic

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/orcidhub/hub/internal/hub/model"
	"github.com/orcidhub/hub/internal/hub/repo"
	"github.com/orcidhub/hub/pkg/ctx"
	"github.com/orcidhub/hub/pkg/id"
	"github.com/orcidhub/hub/pkg/log"
)

// Invitation lifetimes. A link sent to someone who already administers the
// organisation is held to the shorter window.
const (
	invitationMaxAge      = 4 * 7 * 24 * time.Hour
	adminInvitationMaxAge = 2 * 7 * 24 * time.Hour
)

var (
	ErrInvitationNotFound = errors.New("invitation token is not known")
	ErrInvitationExpired  = errors.New("invitation has expired")
)

// AlreadySentError rejects a repeated invitation to the same address,
// carrying when the earlier one went out.
type AlreadySentError struct {
	SentAt time.Time
}

func (e *AlreadySentError) Error() string {
	return fmt.Sprintf("an invitation has already been sent to this address at %s",
		e.SentAt.Format("2006-01-02 15:04:05 MST"))
}

// InvitationResolver issues and redeems invitation tokens: researcher
// invitations tied to a pending task, and organisation onboarding
// invitations for technical contacts.
type InvitationResolver struct {
	ctx       *ctx.Context
	secret    []byte
	invRepo   *repo.InvitationRepo
	userRepo  *repo.UserRepo
	tokenRepo *repo.TokenRepo
}

func NewInvitationResolver(c *ctx.Context, secret string) *InvitationResolver {
	return &InvitationResolver{
		ctx:       c,
		secret:    []byte(secret),
		invRepo:   repo.NewInvitationRepo(c),
		userRepo:  repo.NewUserRepo(c),
		tokenRepo: repo.NewTokenRepo(c),
	}
}

// Resolve looks a token up against both invitation variants.
func (ir *InvitationResolver) Resolve(token string) (*model.Invitation, error) {
	inv, err := ir.invRepo.FindByToken(token)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrInvitationNotFound
		}
		return nil, err
	}
	return inv, nil
}

// CheckExpiry enforces the invitation age window: four weeks normally, two
// weeks when the invitee already administers the organisation.
func (ir *InvitationResolver) CheckExpiry(inv *model.Invitation) error {
	maxAge := invitationMaxAge
	if user, err := ir.userRepo.FindByEmail(inv.Email()); err == nil {
		isAdmin, err := ir.userRepo.IsOrgAdmin(user.UserID, inv.OrgID())
		if err != nil {
			return err
		}
		if isAdmin {
			maxAge = adminInvitationMaxAge
		}
	} else if !errors.Is(err, repo.ErrNotFound) {
		return err
	}
	if time.Since(inv.CreatedAt()) > maxAge {
		return ErrInvitationExpired
	}
	return nil
}

// ScopeIntent derives the OAuth scope set the invitation's pending work
// needs. Organisation onboarding only authenticates; researcher invitations
// request the write scope matching their task type. An unrecognised task
// type asks for read access only.
func (ir *InvitationResolver) ScopeIntent(inv *model.Invitation) []string {
	if inv.Kind == model.InvitationKindOrg {
		return []string{ScopeAuthenticate}
	}
	switch inv.User.TaskType {
	case model.TaskTypeProperty, model.TaskTypeOtherID:
		return []string{ScopeReadLimited, ScopePersonUpdate}
	case model.TaskTypeAffiliation, model.TaskTypeFunding,
		model.TaskTypePeerReview, model.TaskTypeWork:
		return []string{ScopeReadLimited, ScopeActivitiesUpdate}
	default:
		return []string{ScopeReadLimited}
	}
}

// HasSufficientGrant reports whether a stored live token already covers the
// invitation's scope intent, letting the redeem flow skip the consent
// round-trip entirely.
func (ir *InvitationResolver) HasSufficientGrant(userID, orgID string, scopes []string) (bool, error) {
	_, err := ir.tokenRepo.FindBroader(userID, orgID, scopes)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// InviteUser creates a researcher invitation. A pending invitation for the
// same (email, organisation) blocks a second send unless resend is set, in
// which case the pending one is superseded.
func (ir *InvitationResolver) InviteUser(inviter *model.User, org *model.Organisation, email string, affiliations model.Affiliation, taskType, taskID string, resend bool) (*model.UserInvitation, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	pending, err := ir.invRepo.PendingUserInvitation(email, org.OrgID)
	switch {
	case err == nil:
		if !resend {
			return nil, &AlreadySentError{SentAt: pending.CreatedAt}
		}
		if err := ir.invRepo.SupersedeUserInvitations(email, org.OrgID); err != nil {
			return nil, err
		}
	case !errors.Is(err, repo.ErrNotFound):
		return nil, err
	}

	token, err := ir.signToken(email, org.OrgID)
	if err != nil {
		return nil, err
	}
	inv := &model.UserInvitation{
		InvitationID: id.UUID(),
		Email:        email,
		InviterID:    inviter.UserID,
		OrgID:        org.OrgID,
		Token:        token,
		Affiliations: affiliations,
		TaskType:     taskType,
		TaskID:       taskID,
	}
	if err := ir.invRepo.CreateUserInvitation(inv); err != nil {
		return nil, err
	}
	log.Infof("invited %s to %s (task %s)", email, org.Name, taskType)
	return inv, nil
}

// InviteOrg creates an organisation onboarding invitation for its technical
// contact.
func (ir *InvitationResolver) InviteOrg(inviter *model.User, org *model.Organisation, email string, techContact bool) (*model.OrgInvitation, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	token, err := ir.signToken(email, org.OrgID)
	if err != nil {
		return nil, err
	}
	inv := &model.OrgInvitation{
		InvitationID: id.UUID(),
		Email:        email,
		InviterID:    inviter.UserID,
		OrgID:        org.OrgID,
		Token:        token,
		TechContact:  techContact,
	}
	if err := ir.invRepo.CreateOrgInvitation(inv); err != nil {
		return nil, err
	}
	log.Infof("invited %s to onboard %s", email, org.Name)
	return inv, nil
}

// Confirm marks the invitation redeemed by the user.
func (ir *InvitationResolver) Confirm(inv *model.Invitation, userID string) error {
	return ir.invRepo.Confirm(inv, userID)
}

// signToken mints the emailed invitation token: a signed claim set binding
// the address and organisation, with a unique id so every send differs.
func (ir *InvitationResolver) signToken(email, orgID string) (string, error) {
	claims := jwt.RegisteredClaims{
		Issuer:   "orcidhub",
		Subject:  email,
		Audience: jwt.ClaimStrings{orgID},
		IssuedAt: jwt.NewNumericDate(time.Now()),
		ID:       id.UUIDWithoutDashes(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ir.secret)
}
