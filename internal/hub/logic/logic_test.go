package logic

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/orcidhub/hub/internal/hub/model"
	"github.com/orcidhub/hub/pkg/ctx"
	"github.com/orcidhub/hub/pkg/log"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestCtx(t *testing.T) *ctx.Context {
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
	return ctx.NewContext(context.Background(), db, nil, log.L())
}

func seedOrg(t *testing.T, c *ctx.Context, confirmed bool) *model.Organisation {
	t.Helper()
	org := &model.Organisation{
		OrgID:         "org-1",
		Name:          "Test University",
		TuakiriName:   "Test University Federation",
		OrcidClientID: "APP-XYZ",
		OrcidSecret:   "secret",
		Confirmed:     confirmed,
		City:          "Wellington",
		Country:       "NZ",
	}
	require.NoError(t, c.GetDB().Create(org).Error)
	return org
}

func seedUser(t *testing.T, c *ctx.Context, orcidID string) *model.User {
	t.Helper()
	user := &model.User{
		UserID:    "user-1",
		Email:     "jane@test.ac.nz",
		FirstName: "Jane",
		LastName:  "Doe",
		Orcid:     orcidID,
		Roles:     model.RoleResearcher,
		OrgID:     "org-1",
	}
	require.NoError(t, c.GetDB().Create(user).Error)
	return user
}

func seedWriteToken(t *testing.T, c *ctx.Context, userID, orgID string) *model.OrcidToken {
	t.Helper()
	token := &model.OrcidToken{
		UserID:      userID,
		OrgID:       orgID,
		Scopes:      "/activities/update,/read-limited",
		AccessToken: "access-token",
	}
	require.NoError(t, c.GetDB().Create(token).Error)
	return token
}
