package router

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/orcidhub/hub/internal/hub/logic"
	"github.com/orcidhub/hub/internal/hub/model"
	"github.com/orcidhub/hub/internal/hub/repo"
	"github.com/orcidhub/hub/internal/orcid"
	httpx "github.com/orcidhub/hub/pkg/http"
	"github.com/orcidhub/hub/pkg/log"
)

// tuakiriLogin handles the federation entry point. The SP frontend has
// already authenticated the user and mapped the released attributes onto
// request headers.
func (rt *Router) tuakiriLogin(c *gin.Context) {
	headers, err := logic.ParseSSOHeaders(c.GetHeader)
	if err != nil {
		var missing *logic.MissingHeaderError
		if errors.As(err, &missing) {
			httpx.WithRepErr(c, httpx.AuthenticationFailed.Code, err.Error(), c.Request.URL.Path)
			return
		}
		httpx.WithRepErr(c, httpx.Failed.Code, err.Error(), c.Request.URL.Path)
		return
	}

	result, err := rt.logins.LoginFromSSO(headers, c.Query("next"))
	if err != nil {
		if errors.Is(err, logic.ErrOrcidMismatch) {
			httpx.WithRepErr(c, httpx.OrcidAlreadyLinked.Code, err.Error(), c.Request.URL.Path)
			return
		}
		log.Errorf("sso login failed for %s: %v", headers.Emails[0], err)
		httpx.WithRepErr(c, httpx.InternalError.Code, httpx.InternalError.Msg, c.Request.URL.Path)
		return
	}

	sess := rt.sessions.load(c)
	sess.UserID = result.User.UserID
	if result.Org != nil {
		sess.OrgID = result.Org.OrgID
	}
	sess.Flash = result.Message
	if err := rt.sessions.save(c, sess); err != nil {
		log.Errorf("failed to save session: %v", err)
	}

	c.Redirect(http.StatusFound, result.Redirect)
}

// link starts the ORCID consent round-trip for the logged-in user, asking
// for read plus activities write permission.
func (rt *Router) link(c *gin.Context) {
	user := currentUser(c)
	sess := currentSession(c)

	org, err := rt.orgRepo.FindByOrgID(sess.OrgID)
	if err != nil {
		httpx.WithRepErr(c, httpx.OrgNotOnboarded.Code, httpx.OrgNotOnboarded.Msg, c.Request.URL.Path)
		return
	}

	scopes := []string{logic.ScopeReadLimited, logic.ScopeActivitiesUpdate}
	authURL, state, err := rt.exchanger.BuildAuthorizationURL(org, user, scopes, "")
	if err != nil {
		if errors.Is(err, logic.ErrNoClientCredentials) {
			httpx.WithRepErr(c, httpx.OrgNotOnboarded.Code, err.Error(), c.Request.URL.Path)
			return
		}
		httpx.WithRepErr(c, httpx.InternalError.Code, err.Error(), c.Request.URL.Path)
		return
	}

	sess.State = state
	if err := rt.sessions.save(c, sess); err != nil {
		log.Errorf("failed to save session: %v", err)
		httpx.WithRepErr(c, httpx.InternalError.Code, httpx.InternalError.Msg, c.Request.URL.Path)
		return
	}

	c.Redirect(http.StatusFound, authURL)
}

// authCallback lands the browser returning from the ORCID consent page.
func (rt *Router) authCallback(c *gin.Context) {
	sess := rt.sessions.load(c)
	if sess.State == "" {
		httpx.WithRepErr(c, httpx.InvalidStateParameter.Code, httpx.InvalidStateParameter.Msg, c.Request.URL.Path)
		return
	}

	var (
		inv   *model.Invitation
		orgID = sess.OrgID
	)
	if sess.InvitationToken != "" {
		resolved, err := rt.invitations.Resolve(sess.InvitationToken)
		if err != nil {
			httpx.WithRepErr(c, httpx.InvitationNotFound.Code, httpx.InvitationNotFound.Msg, c.Request.URL.Path)
			return
		}
		inv = resolved
		orgID = resolved.OrgID()
	}

	org, err := rt.orgRepo.FindByOrgID(orgID)
	if err != nil {
		httpx.WithRepErr(c, httpx.OrgNotOnboarded.Code, httpx.OrgNotOnboarded.Msg, c.Request.URL.Path)
		return
	}

	grant, err := rt.exchanger.ExchangeCode(c.Request.Context(), org, c.Request.URL.String(), sess.State)
	if err != nil {
		rt.exchangeError(c, sess, org, err)
		return
	}

	// consumed; a replayed callback must not match again
	sess.State = ""
	sess.InvitationToken = ""

	var result *logic.LoginResult
	if inv != nil {
		result, err = rt.logins.LoginWithOrcid(grant, inv, sess.Next)
	} else if sess.UserID != "" {
		result, err = rt.persistForCurrentUser(sess, org, grant)
	} else {
		result, err = rt.logins.LoginWithOrcid(grant, nil, sess.Next)
	}
	if err != nil {
		rt.loginError(c, err)
		return
	}

	sess.UserID = result.User.UserID
	if result.Org != nil {
		sess.OrgID = result.Org.OrgID
	}
	sess.Next = ""
	sess.Flash = result.Message
	if err := rt.sessions.save(c, sess); err != nil {
		log.Errorf("failed to save session: %v", err)
	}

	c.Redirect(http.StatusFound, result.Redirect)
}

// persistForCurrentUser stores a grant obtained by an already logged-in user
// linking their record.
func (rt *Router) persistForCurrentUser(sess *session, org *model.Organisation, grant *logic.Grant) (*logic.LoginResult, error) {
	user, err := rt.userRepo.FindByUserID(sess.UserID)
	if err != nil {
		return nil, err
	}
	if _, err := rt.exchanger.PersistGrant(user, org, grant); err != nil {
		return nil, err
	}
	redirect, message := rt.logins.RouteAfterLogin(user, org, sess.Next)
	return &logic.LoginResult{User: user, Org: org, Redirect: redirect, Message: message}, nil
}

// exchangeError maps exchange failures; a consent denial answers with the
// narrower scope choices instead of a bare error.
func (rt *Router) exchangeError(c *gin.Context, sess *session, org *model.Organisation, err error) {
	switch {
	case errors.Is(err, logic.ErrAccessDenied):
		var user *model.User
		if sess.UserID != "" {
			user, _ = rt.userRepo.FindByUserID(sess.UserID)
		}
		choices, derr := rt.exchanger.DowngradeOptions(org, user, sess.State)
		if derr != nil {
			httpx.WithRepErr(c, httpx.AccessDenied.Code, httpx.AccessDenied.Msg, c.Request.URL.Path)
			return
		}
		c.JSON(http.StatusOK, httpx.Response{
			Code: httpx.AccessDenied.Code,
			Msg:  httpx.AccessDenied.Msg,
			Data: gin.H{"alternatives": choices},
		})
	case errors.Is(err, logic.ErrStateMismatch):
		httpx.WithRepErr(c, httpx.InvalidStateParameter.Code, httpx.InvalidStateParameter.Msg, c.Request.URL.Path)
	case errors.Is(err, logic.ErrMissingCode):
		httpx.WithRepErr(c, httpx.MissingAuthorizationCode.Code, httpx.MissingAuthorizationCode.Msg, c.Request.URL.Path)
	default:
		log.Errorf("token exchange failed: %v", err)
		httpx.WithRepErr(c, httpx.TokenExchangeFailed.Code, httpx.TokenExchangeFailed.Msg, c.Request.URL.Path)
	}
}

func (rt *Router) loginError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, logic.ErrUserNotKnown):
		httpx.WithRepErr(c, httpx.UserNotKnown.Code, httpx.UserNotKnown.Msg, c.Request.URL.Path)
	case errors.Is(err, logic.ErrOrcidAlreadyLinked), errors.Is(err, logic.ErrOrcidMismatch):
		httpx.WithRepErr(c, httpx.OrcidAlreadyLinked.Code, err.Error(), c.Request.URL.Path)
	case errors.Is(err, logic.ErrInvitationExpired):
		httpx.WithRepErr(c, httpx.InvitationExpired.Code, httpx.InvitationExpired.Msg, c.Request.URL.Path)
	default:
		log.Errorf("orcid login failed: %v", err)
		httpx.WithRepErr(c, httpx.InternalError.Code, httpx.InternalError.Msg, c.Request.URL.Path)
	}
}

// orcidLogin is the invitation landing page: redeeming a token starts the
// consent flow with the scope set the pending work needs. When a live token
// already covers it the consent round-trip is skipped.
func (rt *Router) orcidLogin(c *gin.Context) {
	token := c.Param("invitation")
	inv, err := rt.invitations.Resolve(token)
	if err != nil {
		httpx.WithRepErr(c, httpx.InvitationNotFound.Code, httpx.InvitationNotFound.Msg, c.Request.URL.Path)
		return
	}
	if err := rt.invitations.CheckExpiry(inv); err != nil {
		if errors.Is(err, logic.ErrInvitationExpired) {
			httpx.WithRepErr(c, httpx.InvitationExpired.Code, httpx.InvitationExpired.Msg, c.Request.URL.Path)
			return
		}
		httpx.WithRepErr(c, httpx.InternalError.Code, httpx.InternalError.Msg, c.Request.URL.Path)
		return
	}

	org, err := rt.orgRepo.FindByOrgID(inv.OrgID())
	if err != nil {
		httpx.WithRepErr(c, httpx.OrgNotOnboarded.Code, httpx.OrgNotOnboarded.Msg, c.Request.URL.Path)
		return
	}

	scopes := rt.invitations.ScopeIntent(inv)

	// an existing broader grant makes the consent round-trip redundant
	if user, err := rt.userRepo.FindByEmail(inv.Email()); err == nil {
		covered, gerr := rt.invitations.HasSufficientGrant(user.UserID, org.OrgID, scopes)
		if gerr == nil && covered {
			if cerr := rt.invitations.Confirm(inv, user.UserID); cerr != nil {
				log.Errorf("failed to confirm invitation: %v", cerr)
			}
			sess := rt.sessions.load(c)
			sess.UserID = user.UserID
			sess.OrgID = org.OrgID
			if err := rt.sessions.save(c, sess); err != nil {
				log.Errorf("failed to save session: %v", err)
			}
			redirect, _ := rt.logins.RouteAfterLogin(user, org, "")
			c.Redirect(http.StatusFound, redirect)
			return
		}
	} else if !errors.Is(err, repo.ErrNotFound) {
		httpx.WithRepErr(c, httpx.InternalError.Code, httpx.InternalError.Msg, c.Request.URL.Path)
		return
	}

	authURL, state, err := rt.exchanger.BuildAuthorizationURL(org, nil, scopes, "")
	if err != nil {
		if errors.Is(err, logic.ErrNoClientCredentials) {
			httpx.WithRepErr(c, httpx.OrgNotOnboarded.Code, err.Error(), c.Request.URL.Path)
			return
		}
		httpx.WithRepErr(c, httpx.InternalError.Code, httpx.InternalError.Msg, c.Request.URL.Path)
		return
	}

	sess := rt.sessions.load(c)
	sess.State = state
	sess.InvitationToken = token
	if err := rt.sessions.save(c, sess); err != nil {
		log.Errorf("failed to save session: %v", err)
		httpx.WithRepErr(c, httpx.InternalError.Code, httpx.InternalError.Msg, c.Request.URL.Path)
		return
	}

	c.Redirect(http.StatusFound, authURL)
}

// profile fetches the linked ORCID record with a stored read token. A 401
// from the registry means the grant was revoked; the dead token is dropped
// and the user sent back through the link flow.
func (rt *Router) profile(c *gin.Context) {
	user := currentUser(c)
	sess := currentSession(c)

	if user.Orcid == "" {
		c.Redirect(http.StatusFound, logic.RedirectLink)
		return
	}
	token, err := rt.tokenRepo.FindBroader(user.UserID, sess.OrgID, []string{logic.ScopeReadLimited})
	if err != nil {
		c.Redirect(http.StatusFound, logic.RedirectLink)
		return
	}

	api := orcid.NewMemberAPI(rt.Conf.Orcid.APIBaseURL, token.AccessToken, orcid.NewAuditor(rt.auditRepo)).ForUser(user.UserID)
	record, err := api.GetRecord(c.Request.Context(), user.Orcid)
	if err != nil {
		if orcid.IsUnauthorized(err) {
			if derr := rt.tokenRepo.Invalidate(token); derr != nil {
				log.Errorf("failed to drop revoked token %d: %v", token.ID, derr)
			}
			c.Redirect(http.StatusFound, logic.RedirectLink)
			return
		}
		log.Errorf("profile fetch failed for %s: %v", user.Orcid, err)
		httpx.WithRepErr(c, httpx.InternalError.Code, httpx.InternalError.Msg, c.Request.URL.Path)
		return
	}

	httpx.WithRep(c, record)
}

// shortURL expands /u/:short links from invitation emails.
func (rt *Router) shortURL(c *gin.Context) {
	target := rt.sessions.expand(c, c.Param("short"))
	if target == "" {
		httpx.WithRepErr(c, httpx.NotFound.Code, httpx.NotFound.Msg, c.Request.URL.Path)
		return
	}
	c.Redirect(http.StatusFound, target)
}

func (rt *Router) logout(c *gin.Context) {
	rt.sessions.clear(c)
	c.Redirect(http.StatusFound, logic.RedirectIndex)
}
