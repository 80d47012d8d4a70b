package router

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/orcidhub/hub/internal/hub/conf"
	"github.com/orcidhub/hub/internal/hub/logic"
	"github.com/orcidhub/hub/internal/hub/model"
	"github.com/orcidhub/hub/internal/hub/repo"
	"github.com/orcidhub/hub/pkg/cache"
	"github.com/orcidhub/hub/pkg/ctx"
	httpx "github.com/orcidhub/hub/pkg/http"
	"github.com/orcidhub/hub/pkg/http/auth/jwt"
	"github.com/orcidhub/hub/pkg/http/interceptor"
	"github.com/orcidhub/hub/pkg/version"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Router struct {
	Conf *conf.AppConfig
	Ctx  *ctx.Context

	sessions    *sessionStore
	exchanger   *logic.OAuthExchanger
	writer      *logic.AffiliationWriter
	invitations *logic.InvitationResolver
	logins      *logic.LoginOrchestrator
	userRepo    *repo.UserRepo
	orgRepo     *repo.OrgRepo
	tokenRepo   *repo.TokenRepo
	auditRepo   *repo.AuditRepo
}

func NewRouter(appConf *conf.AppConfig, c *ctx.Context) *Router {
	exchanger := logic.NewOAuthExchanger(c, &appConf.Orcid)
	invitations := logic.NewInvitationResolver(c, appConf.Hub.InvitationSecret)
	return &Router{
		Conf:        appConf,
		Ctx:         c,
		sessions:    newSessionStore(cache.NewRedisCache(c.GetRedis())),
		exchanger:   exchanger,
		writer:      logic.NewAffiliationWriter(c, &appConf.Orcid),
		invitations: invitations,
		logins:      logic.NewLoginOrchestrator(c, invitations, exchanger),
		userRepo:    repo.NewUserRepo(c),
		orgRepo:     repo.NewOrgRepo(c),
		tokenRepo:   repo.NewTokenRepo(c),
		auditRepo:   repo.NewAuditRepo(c),
	}
}

func (rt *Router) Router() *gin.Engine {
	gin.SetMode(rt.Conf.Http.Mode)

	r := gin.New()

	// cors interceptor
	r.Use(interceptor.CorsInterceptor())

	// panic recover
	r.Use(interceptor.ExceptionInterceptor)

	if rt.Conf.Http.AccessLog {
		r.Use(gin.LoggerWithFormatter(httpx.AccessLogFormat))
	}

	if rt.Conf.Http.PProf {
		pprof.Register(r, "/debug/pprof")
	}

	if rt.Conf.Http.ExposeMetrics {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, version.GetVersion())
	})

	group := r.Group(rt.Conf.Http.ContextPath)
	{
		rt.authRouter(group)
		rt.inviteRouter(group)
	}

	return r
}

func (rt *Router) authRouter(r *gin.RouterGroup) {
	r.GET("/Tuakiri/login", rt.tuakiriLogin)
	r.GET("/auth", rt.authCallback)
	r.GET("/orcid/login/:invitation", rt.orcidLogin)
	r.GET("/u/:short", rt.shortURL)

	r.GET("/link", rt.requireLogin, rt.link)
	r.GET("/profile", rt.requireLogin, rt.profile)
	r.GET("/token", rt.requireLogin, rt.apiToken)
	r.GET("/logout", rt.logout)
}

func (rt *Router) inviteRouter(r *gin.RouterGroup) {
	r.POST("/invite/user", rt.requireLogin, rt.requireOrgAdmin, rt.inviteUser)
	r.POST("/invite/org", rt.requireLogin, rt.requireRole(model.RoleSuperuser), rt.inviteOrg)
	r.POST("/settings/credentials", rt.requireLogin, rt.saveCredentials)
}

// requireLogin resolves the caller into a user, from the browser session or
// from a bearer API token, and stashes both on the request context.
func (rt *Router) requireLogin(c *gin.Context) {
	sess := rt.sessions.load(c)
	if sess.UserID == "" {
		if claims := rt.bearerClaims(c); claims != nil {
			sess.UserID = claims.UserID
			sess.OrgID = claims.OrgID
		}
	}
	if sess.UserID == "" {
		httpx.WithRepErr(c, httpx.Unauthorized.Code, httpx.Unauthorized.Msg, c.Request.URL.Path)
		c.Abort()
		return
	}
	user, err := rt.userRepo.FindByUserID(sess.UserID)
	if err != nil {
		httpx.WithRepErr(c, httpx.Unauthorized.Code, httpx.Unauthorized.Msg, c.Request.URL.Path)
		c.Abort()
		return
	}
	c.Set("session", sess)
	c.Set("user", user)
	c.Next()
}

func (rt *Router) requireRole(role model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)
		if user == nil || !user.Roles.Has(role) {
			httpx.WithRepErr(c, httpx.PermissionDenied.Code, httpx.PermissionDenied.Msg, c.Request.URL.Path)
			c.Abort()
			return
		}
		c.Next()
	}
}

// requireOrgAdmin passes hub admins and per-organisation admins.
func (rt *Router) requireOrgAdmin(c *gin.Context) {
	user := currentUser(c)
	sess := currentSession(c)
	if user == nil || sess == nil {
		httpx.WithRepErr(c, httpx.Unauthorized.Code, httpx.Unauthorized.Msg, c.Request.URL.Path)
		c.Abort()
		return
	}
	if user.Roles.Has(model.RoleAdmin) || user.Roles.Has(model.RoleSuperuser) {
		c.Next()
		return
	}
	isAdmin, err := rt.userRepo.IsOrgAdmin(user.UserID, sess.OrgID)
	if err != nil || !isAdmin {
		httpx.WithRepErr(c, httpx.PermissionDenied.Code, httpx.PermissionDenied.Msg, c.Request.URL.Path)
		c.Abort()
		return
	}
	c.Next()
}

// bearerClaims parses an Authorization bearer API token, or nil.
func (rt *Router) bearerClaims(c *gin.Context) *jwt.SessionClaims {
	header := c.GetHeader("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		return nil
	}
	claims, err := jwt.ParseSessionToken(token, rt.Conf.Http.Auth.SecretKey)
	if err != nil {
		return nil
	}
	return claims
}

// apiToken mints a bearer token for headless API access to the hub.
func (rt *Router) apiToken(c *gin.Context) {
	user := currentUser(c)
	sess := currentSession(c)

	expire := rt.Conf.Http.Auth.AccessExpire
	if expire <= 0 {
		expire = 24 * time.Hour
	}
	token, err := jwt.GenSessionToken(user.UserID, sess.OrgID, []byte(rt.Conf.Http.Auth.SecretKey), expire)
	if err != nil {
		httpx.WithRepErr(c, httpx.InternalError.Code, httpx.InternalError.Msg, c.Request.URL.Path)
		return
	}
	httpx.WithRep(c, gin.H{"token": token, "expiresIn": int64(expire.Seconds())})
}

func currentUser(c *gin.Context) *model.User {
	if v, ok := c.Get("user"); ok {
		if u, ok := v.(*model.User); ok {
			return u
		}
	}
	return nil
}

func currentSession(c *gin.Context) *session {
	if v, ok := c.Get("session"); ok {
		if s, ok := v.(*session); ok {
			return s
		}
	}
	return nil
}
