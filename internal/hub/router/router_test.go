package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/orcidhub/hub/internal/hub/conf"
	"github.com/orcidhub/hub/internal/hub/model"
	"github.com/orcidhub/hub/pkg/ctx"
	httpx "github.com/orcidhub/hub/pkg/http"
	"github.com/orcidhub/hub/pkg/http/auth/jwt"
	"github.com/orcidhub/hub/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestRouter(t *testing.T) (*gin.Engine, *ctx.Context, *conf.AppConfig) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.Organisation{},
		&model.UserOrg{},
		&model.OrcidToken{},
		&model.UserInvitation{},
		&model.OrgInvitation{},
		&model.OrcidApiCall{},
		&model.OrcidAuthorizeCall{},
	))
	appCtx := ctx.NewContext(context.Background(), db, nil, log.L())
	appConf := &conf.AppConfig{}
	appConf.Http.Mode = gin.TestMode
	appConf.Http.Auth.SecretKey = "test-secret"
	appConf.Hub.ExternalURL = "https://hub.test"
	return NewRouter(appConf, appCtx).Router(), appCtx, appConf
}

func TestHealthAndVersion(t *testing.T) {
	engine, _, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/version", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireLoginRejectsAnonymous(t *testing.T) {
	engine, _, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/token", nil))

	var rep httpx.ResponseErr
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rep))
	assert.Equal(t, httpx.Unauthorized.Code, rep.ErrCode)
}

func TestBearerTokenAuth(t *testing.T) {
	engine, appCtx, _ := newTestRouter(t)
	require.NoError(t, appCtx.GetDB().Create(&model.User{
		UserID: "user-1",
		Email:  "jane@test.ac.nz",
		Roles:  model.RoleResearcher,
	}).Error)

	token, err := jwt.GenSessionToken("user-1", "org-1", []byte("test-secret"), time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/token", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var rep httpx.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rep))
	assert.Equal(t, httpx.Success.Code, rep.Code)

	data, ok := rep.Data.(map[string]any)
	require.True(t, ok)
	minted, _ := data["token"].(string)
	claims, err := jwt.ParseSessionToken(minted, "test-secret")
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "org-1", claims.OrgID)
}

func TestBearerTokenAuthBadToken(t *testing.T) {
	engine, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/token", nil)
	req.Header.Set("Authorization", "Bearer tampered")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	var rep httpx.ResponseErr
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rep))
	assert.Equal(t, httpx.Unauthorized.Code, rep.ErrCode)
}

func seedLinkedUser(t *testing.T, appCtx *ctx.Context) string {
	t.Helper()
	require.NoError(t, appCtx.GetDB().Create(&model.User{
		UserID: "user-1",
		Email:  "jane@test.ac.nz",
		Orcid:  "0000-0001-8228-7153",
		Roles:  model.RoleResearcher,
		OrgID:  "org-1",
	}).Error)
	require.NoError(t, appCtx.GetDB().Create(&model.OrcidToken{
		UserID:      "user-1",
		OrgID:       "org-1",
		Scopes:      "/activities/update,/read-limited",
		AccessToken: "access-token",
	}).Error)
	token, err := jwt.GenSessionToken("user-1", "org-1", []byte("test-secret"), time.Hour)
	require.NoError(t, err)
	return token
}

func TestProfileFetchIsAudited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"orcid-identifier":{"path":"0000-0001-8228-7153"}}`))
	}))
	defer srv.Close()

	engine, appCtx, appConf := newTestRouter(t)
	appConf.Orcid.APIBaseURL = srv.URL
	bearer := seedLinkedUser(t, appCtx)

	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	req.Header.Set("Authorization", "Bearer "+bearer)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var calls []model.OrcidApiCall
	require.NoError(t, appCtx.GetDB().Find(&calls).Error)
	require.Len(t, calls, 1)
	assert.Equal(t, "user-1", calls[0].UserID)
	assert.Equal(t, http.MethodGet, calls[0].Method)
	assert.Contains(t, calls[0].URL, "/0000-0001-8228-7153")
	assert.Equal(t, http.StatusOK, calls[0].Status)
}

func TestProfileRevokedTokenDropped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"user-message":"The access token was revoked"}`))
	}))
	defer srv.Close()

	engine, appCtx, appConf := newTestRouter(t)
	appConf.Orcid.APIBaseURL = srv.URL
	bearer := seedLinkedUser(t, appCtx)

	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	req.Header.Set("Authorization", "Bearer "+bearer)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/link", w.Header().Get("Location"))

	var count int64
	require.NoError(t, appCtx.GetDB().Model(&model.OrcidToken{}).Count(&count).Error)
	assert.Zero(t, count)
}
