package repo

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
