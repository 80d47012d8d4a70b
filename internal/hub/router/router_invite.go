package router

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/orcidhub/hub/internal/hub/logic"
	"github.com/orcidhub/hub/internal/hub/model"
	"github.com/orcidhub/hub/internal/hub/repo"
	httpx "github.com/orcidhub/hub/pkg/http"
	"github.com/orcidhub/hub/pkg/id"
	"github.com/orcidhub/hub/pkg/log"
)

type inviteUserReq struct {
	Email      string `json:"email" binding:"required,email"`
	Employment bool   `json:"employment"`
	Education  bool   `json:"education"`
	TaskType   string `json:"taskType"`
	TaskID     string `json:"taskId"`
	Resend     bool   `json:"resend"`
}

type inviteOrgReq struct {
	OrgName     string `json:"orgName" binding:"required"`
	Email       string `json:"email" binding:"required,email"`
	TechContact bool   `json:"techContact"`
}

type credentialsReq struct {
	ClientID     string `json:"clientId" binding:"required"`
	ClientSecret string `json:"clientSecret" binding:"required"`
}

// inviteUser sends a researcher invitation for the admin's organisation and
// returns the invitation with its shortened redeem link.
func (rt *Router) inviteUser(c *gin.Context) {
	var req inviteUserReq
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.WithRepErr(c, httpx.RequestParameterParsingFailed.Code, err.Error(), c.Request.URL.Path)
		return
	}

	sess := currentSession(c)
	org, err := rt.orgRepo.FindByOrgID(sess.OrgID)
	if err != nil {
		httpx.WithRepErr(c, httpx.OrgNotOnboarded.Code, httpx.OrgNotOnboarded.Msg, c.Request.URL.Path)
		return
	}

	var affiliations model.Affiliation
	if req.Employment {
		affiliations |= model.AffiliationEmployment
	}
	if req.Education {
		affiliations |= model.AffiliationEducation
	}
	taskType := req.TaskType
	if taskType == "" {
		taskType = model.TaskTypeAffiliation
	}

	inv, err := rt.invitations.InviteUser(currentUser(c), org, req.Email, affiliations, taskType, req.TaskID, req.Resend)
	if err != nil {
		var already *logic.AlreadySentError
		if errors.As(err, &already) {
			httpx.WithRepErr(c, httpx.InvitationAlreadySent.Code, already.Error(), c.Request.URL.Path)
			return
		}
		log.Errorf("failed to invite %s: %v", req.Email, err)
		httpx.WithRepErr(c, httpx.InternalError.Code, httpx.InternalError.Msg, c.Request.URL.Path)
		return
	}

	httpx.WithRep(c, gin.H{
		"invitationId": inv.InvitationID,
		"link":         rt.redeemLink(c, inv.Token),
	})
}

// inviteOrg onboards a new organisation: a superuser names it and invites its
// technical contact.
func (rt *Router) inviteOrg(c *gin.Context) {
	var req inviteOrgReq
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.WithRepErr(c, httpx.RequestParameterParsingFailed.Code, err.Error(), c.Request.URL.Path)
		return
	}

	org, err := rt.orgRepo.FindByNames(req.OrgName, req.OrgName)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			httpx.WithRepErr(c, httpx.InternalError.Code, httpx.InternalError.Msg, c.Request.URL.Path)
			return
		}
		org = &model.Organisation{
			OrgID: id.UUIDWithoutDashes(),
			Name:  req.OrgName,
		}
		if cerr := rt.orgRepo.Create(org); cerr != nil {
			log.Errorf("failed to create organisation %q: %v", req.OrgName, cerr)
			httpx.WithRepErr(c, httpx.InternalError.Code, httpx.InternalError.Msg, c.Request.URL.Path)
			return
		}
	}

	inv, err := rt.invitations.InviteOrg(currentUser(c), org, req.Email, req.TechContact)
	if err != nil {
		log.Errorf("failed to invite %s for %q: %v", req.Email, req.OrgName, err)
		httpx.WithRepErr(c, httpx.InternalError.Code, httpx.InternalError.Msg, c.Request.URL.Path)
		return
	}

	httpx.WithRep(c, gin.H{
		"invitationId": inv.InvitationID,
		"orgId":        org.OrgID,
		"link":         rt.redeemLink(c, inv.Token),
	})
}

// saveCredentials stores the organisation's ORCID API client credentials and
// verifies them against the registry before confirming the organisation.
func (rt *Router) saveCredentials(c *gin.Context) {
	var req credentialsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.WithRepErr(c, httpx.RequestParameterParsingFailed.Code, err.Error(), c.Request.URL.Path)
		return
	}

	user := currentUser(c)
	sess := currentSession(c)
	org, err := rt.orgRepo.FindByOrgID(sess.OrgID)
	if err != nil {
		httpx.WithRepErr(c, httpx.OrgNotOnboarded.Code, httpx.OrgNotOnboarded.Msg, c.Request.URL.Path)
		return
	}
	if org.TechContactID != user.UserID && !user.Roles.Has(model.RoleSuperuser) {
		httpx.WithRepErr(c, httpx.PermissionDenied.Code, httpx.PermissionDenied.Msg, c.Request.URL.Path)
		return
	}

	org.OrcidClientID = req.ClientID
	org.OrcidSecret = req.ClientSecret
	if err := rt.exchanger.ValidateClientCredentials(c.Request.Context(), org); err != nil {
		if errors.Is(err, logic.ErrInvalidClientCredentials) {
			httpx.WithRepErr(c, httpx.OrgCredentialsInvalid.Code, httpx.OrgCredentialsInvalid.Msg, c.Request.URL.Path)
			return
		}
		log.Errorf("credential validation failed for %q: %v", org.Name, err)
		httpx.WithRepErr(c, httpx.InternalError.Code, httpx.InternalError.Msg, c.Request.URL.Path)
		return
	}

	httpx.WithRepMsg(c, "organisation onboarded")
}

// redeemLink builds the emailed invitation link, shortened when possible.
func (rt *Router) redeemLink(c *gin.Context, token string) string {
	target := rt.Conf.Hub.ExternalURL + "/orcid/login/" + token
	short, err := rt.sessions.shorten(c, target)
	if err != nil {
		log.Warnf("failed to shorten invitation link: %v", err)
		return target
	}
	return rt.Conf.Hub.ExternalURL + "/u/" + short
}
