package logic

import (
	"errors"
	"fmt"
	"strings"

	"github.com/orcidhub/hub/internal/hub/model"
	"github.com/orcidhub/hub/internal/hub/repo"
	"github.com/orcidhub/hub/internal/orcid"
	"github.com/orcidhub/hub/pkg/ctx"
	"github.com/orcidhub/hub/pkg/id"
	"github.com/orcidhub/hub/pkg/log"
)

// Federation attribute header names as mapped by the SP frontend.
const (
	HeaderSharedToken         = "Auedupersonsharedtoken"
	HeaderSurname             = "Sn"
	HeaderGivenName           = "Givenname"
	HeaderDisplayName         = "Displayname"
	HeaderMail                = "Mail"
	HeaderOrgName             = "O"
	HeaderEppn                = "Eppn"
	HeaderUnscopedAffiliation = "Unscoped-Affiliation"
	HeaderOrcid               = "Orcid-Id"
)

var (
	ErrUserNotKnown       = errors.New("this ORCID iD is not known in the Hub")
	ErrOrcidAlreadyLinked = errors.New("this ORCID iD is already linked to another member of the organisation")
)

// MissingHeaderError reports a required federation attribute the identity
// provider did not release.
type MissingHeaderError struct {
	Header string
}

func (e *MissingHeaderError) Error() string {
	return fmt.Sprintf("identity provider released no %q attribute", e.Header)
}

// SSOHeaders is the parsed federation attribute set of one SSO login.
type SSOHeaders struct {
	SharedToken          string
	Surname              string
	GivenName            string
	DisplayName          string
	Emails               []string
	OrgName              string
	Eppn                 string
	UnscopedAffiliations []string
	OrcidID              string
}

// ParseSSOHeaders extracts and validates the federation attributes from a
// header lookup. Multi-valued Mail keeps the first address primary. A
// released ORCID iD is checksum-verified before it is trusted.
func ParseSSOHeaders(get func(string) string) (*SSOHeaders, error) {
	required := []string{HeaderSharedToken, HeaderMail, HeaderOrgName}
	for _, h := range required {
		if strings.TrimSpace(get(h)) == "" {
			return nil, &MissingHeaderError{Header: h}
		}
	}

	h := &SSOHeaders{
		SharedToken: strings.TrimSpace(get(HeaderSharedToken)),
		Surname:     strings.TrimSpace(get(HeaderSurname)),
		GivenName:   strings.TrimSpace(get(HeaderGivenName)),
		DisplayName: strings.TrimSpace(get(HeaderDisplayName)),
		OrgName:     strings.TrimSpace(get(HeaderOrgName)),
		Eppn:        strings.TrimSpace(get(HeaderEppn)),
	}
	for _, m := range strings.FieldsFunc(get(HeaderMail), isListSep) {
		m = strings.ToLower(strings.TrimSpace(m))
		if m != "" {
			h.Emails = append(h.Emails, m)
		}
	}
	if len(h.Emails) == 0 {
		return nil, &MissingHeaderError{Header: HeaderMail}
	}
	for _, a := range strings.FieldsFunc(get(HeaderUnscopedAffiliation), isListSep) {
		a = strings.TrimSpace(a)
		if a != "" {
			h.UnscopedAffiliations = append(h.UnscopedAffiliations, a)
		}
	}

	if raw := strings.TrimSpace(get(HeaderOrcid)); raw != "" {
		orcidID, err := orcid.IDFromURL(raw)
		if err != nil {
			return nil, fmt.Errorf("identity provider released a bad ORCID iD %q: %w", raw, err)
		}
		h.OrcidID = orcidID
	}
	return h, nil
}

func isListSep(r rune) bool {
	return r == ',' || r == ';'
}

// Post-login landing pages, in routing priority order.
const (
	RedirectIndex         = "/"
	RedirectOrgInvitation = "/invite/org"
	RedirectLink          = "/link"
	RedirectOnboard       = "/settings/credentials"
)

// LoginResult is the settled identity of one login plus where to send the
// browser next.
type LoginResult struct {
	User     *model.User
	Org      *model.Organisation
	Redirect string
	Message  string
}

// LoginOrchestrator settles logins from both entry points, the federation SP
// headers and the ORCID OAuth callback, into hub users with organisation
// links.
type LoginOrchestrator struct {
	ctx         *ctx.Context
	userRepo    *repo.UserRepo
	orgRepo     *repo.OrgRepo
	invitations *InvitationResolver
	exchanger   *OAuthExchanger
}

func NewLoginOrchestrator(c *ctx.Context, invitations *InvitationResolver, exchanger *OAuthExchanger) *LoginOrchestrator {
	return &LoginOrchestrator{
		ctx:         c,
		userRepo:    repo.NewUserRepo(c),
		orgRepo:     repo.NewOrgRepo(c),
		invitations: invitations,
		exchanger:   exchanger,
	}
}

// LoginFromSSO settles a federation login: find-or-create the organisation
// and the user, fold the released affiliation claims into the link, and
// confirm the user. The first login from an unknown organisation creates a
// provisional, unconfirmed record.
func (lo *LoginOrchestrator) LoginFromSSO(h *SSOHeaders, next string) (*LoginResult, error) {
	org, err := lo.orgRepo.FindByNames(h.OrgName, h.OrgName)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			return nil, err
		}
		org = &model.Organisation{
			OrgID:       id.UUIDWithoutDashes(),
			Name:        h.OrgName,
			TuakiriName: h.OrgName,
		}
		if err := lo.orgRepo.Create(org); err != nil {
			return nil, err
		}
		log.Infof("created provisional organisation %q from federation login", h.OrgName)
	}

	user, err := lo.userRepo.FindByIdentifiers(h.Emails, h.Eppn)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			return nil, err
		}
		user = &model.User{
			UserID:    id.UUIDWithoutDashes(),
			Email:     h.Emails[0],
			Eppn:      h.Eppn,
			FirstName: h.GivenName,
			LastName:  h.Surname,
			Name:      h.DisplayName,
			Roles:     model.RoleResearcher,
		}
		if err := lo.userRepo.Create(user); err != nil {
			return nil, err
		}
	} else {
		if user.FirstName == "" {
			user.FirstName = h.GivenName
		}
		if user.LastName == "" {
			user.LastName = h.Surname
		}
		if user.Name == "" {
			user.Name = h.DisplayName
		}
		if user.Eppn == "" {
			user.Eppn = h.Eppn
		}
	}

	if h.OrcidID != "" {
		switch {
		case user.Orcid == "":
			user.Orcid = h.OrcidID
		case user.Orcid != h.OrcidID:
			return nil, ErrOrcidMismatch
		}
	}

	var claimed model.Affiliation
	for _, claim := range h.UnscopedAffiliations {
		claimed |= model.ParseAffiliationClaim(claim)
	}
	if len(h.UnscopedAffiliations) > 0 && claimed == 0 {
		log.Warnf("no recognised affiliation in claims %v for %s", h.UnscopedAffiliations, user.Email)
	}

	userOrg, _, err := lo.userRepo.GetOrCreateUserOrg(user.UserID, org.OrgID)
	if err != nil {
		return nil, err
	}
	if claimed != 0 && !userOrg.Affiliations.Has(claimed) {
		userOrg.Affiliations |= claimed
		if err := lo.userRepo.SaveUserOrg(userOrg); err != nil {
			return nil, err
		}
	}

	user.Confirmed = true
	if user.OrgID == "" {
		user.OrgID = org.OrgID
	}
	if err := lo.userRepo.Save(user); err != nil {
		return nil, err
	}

	result := &LoginResult{User: user, Org: org}
	result.Redirect, result.Message = lo.RouteAfterLogin(user, org, next)
	return result, nil
}

// LoginWithOrcid settles a login arriving through the ORCID OAuth callback.
// Without an invitation the iD must already be linked to a hub account; with
// one the invitee is admitted, guarded against iD collisions inside the
// organisation.
func (lo *LoginOrchestrator) LoginWithOrcid(grant *Grant, inv *model.Invitation, next string) (*LoginResult, error) {
	if inv == nil {
		return lo.loginKnownOrcid(grant, next)
	}
	return lo.redeemInvitation(grant, inv, next)
}

func (lo *LoginOrchestrator) loginKnownOrcid(grant *Grant, next string) (*LoginResult, error) {
	user, err := lo.userRepo.FindByOrcid(grant.OrcidID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotKnown
		}
		return nil, err
	}

	var org *model.Organisation
	if user.OrgID != "" {
		org, err = lo.orgRepo.FindByOrgID(user.OrgID)
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return nil, err
		}
	}
	if org != nil {
		if _, err := lo.exchanger.PersistGrant(user, org, grant); err != nil {
			return nil, err
		}
	}

	result := &LoginResult{User: user, Org: org}
	result.Redirect, result.Message = lo.RouteAfterLogin(user, org, next)
	return result, nil
}

func (lo *LoginOrchestrator) redeemInvitation(grant *Grant, inv *model.Invitation, next string) (*LoginResult, error) {
	if err := lo.invitations.CheckExpiry(inv); err != nil {
		return nil, err
	}
	org, err := lo.orgRepo.FindByOrgID(inv.OrgID())
	if err != nil {
		return nil, err
	}

	// the iD must not already belong to a different member of this org
	if holder, err := lo.userRepo.FindOrgLinkByOrcid(grant.OrcidID, org.OrgID); err == nil {
		if holder.Email != inv.Email() {
			return nil, ErrOrcidAlreadyLinked
		}
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}

	user, err := lo.userRepo.FindByEmail(inv.Email())
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			return nil, err
		}
		user = &model.User{
			UserID: id.UUIDWithoutDashes(),
			Email:  inv.Email(),
			Name:   grant.Name,
			Roles:  model.RoleResearcher,
		}
		if err := lo.userRepo.Create(user); err != nil {
			return nil, err
		}
	}
	if user.Orcid != "" && user.Orcid != grant.OrcidID {
		return nil, ErrOrcidMismatch
	}

	userOrg, _, err := lo.userRepo.GetOrCreateUserOrg(user.UserID, org.OrgID)
	if err != nil {
		return nil, err
	}
	switch inv.Kind {
	case model.InvitationKindUser:
		if inv.User.Affiliations != 0 && !userOrg.Affiliations.Has(inv.User.Affiliations) {
			userOrg.Affiliations |= inv.User.Affiliations
			if err := lo.userRepo.SaveUserOrg(userOrg); err != nil {
				return nil, err
			}
		}
	case model.InvitationKindOrg:
		user.Roles |= model.RoleTechnical
		if inv.Org.TechContact {
			org.TechContactID = user.UserID
			if err := lo.orgRepo.Save(org); err != nil {
				return nil, err
			}
		}
	}

	if _, err := lo.exchanger.PersistGrant(user, org, grant); err != nil {
		return nil, err
	}
	if err := lo.invitations.Confirm(inv, user.UserID); err != nil {
		return nil, err
	}

	result := &LoginResult{User: user, Org: org}
	result.Redirect, result.Message = lo.RouteAfterLogin(user, org, next)
	return result, nil
}

// RouteAfterLogin picks the landing page: an explicit same-site target wins,
// then superusers go to organisation management, members of confirmed
// organisations to record linking, the technical contact of an unconfirmed
// organisation to credentials onboarding, and everyone else to the index
// with a notice.
func (lo *LoginOrchestrator) RouteAfterLogin(user *model.User, org *model.Organisation, next string) (string, string) {
	if isSameSite(next) {
		return next, ""
	}
	if user.Roles.Has(model.RoleSuperuser) {
		return RedirectOrgInvitation, ""
	}
	if org != nil {
		if org.Confirmed {
			return RedirectLink, ""
		}
		if org.TechContactID != "" && org.TechContactID == user.UserID {
			return RedirectOnboard, ""
		}
	}
	return RedirectIndex, "your organisation is not yet onboarded"
}

// isSameSite accepts only absolute-path targets, rejecting protocol-relative
// and absolute URLs that would leave the site.
func isSameSite(next string) bool {
	return strings.HasPrefix(next, "/") && !strings.HasPrefix(next, "//") &&
		!strings.HasPrefix(next, "/\\")
}
