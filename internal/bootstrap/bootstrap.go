package bootstrap

import (
	"context"
	"time"

	"github.com/orcidhub/hub/internal/hub/conf"
	"github.com/orcidhub/hub/internal/hub/model"
	"github.com/orcidhub/hub/internal/hub/repo"
	"github.com/orcidhub/hub/internal/hub/router"
	"github.com/orcidhub/hub/pkg/cache"
	"github.com/orcidhub/hub/pkg/ctx"
	"github.com/orcidhub/hub/pkg/database"
	httpx "github.com/orcidhub/hub/pkg/http"
	"github.com/orcidhub/hub/pkg/log"
	"github.com/robfig/cron/v3"
)

// authorizeCallRetention is how long an authorize-call row without a token
// response is kept before the sweep removes it.
const authorizeCallRetention = 30 * 24 * time.Hour

// Run wires the hub together and blocks until shutdown.
func Run(confDir string) error {
	appConf, err := conf.NewConf(confDir)
	if err != nil {
		return err
	}

	if _, err := log.NewLog(&appConf.Log); err != nil {
		return err
	}

	redisClient, err := cache.NewRedis(appConf.Redis)
	if err != nil {
		return err
	}

	db, err := database.NewDatabase(appConf.Database)
	if err != nil {
		return err
	}

	database.RegisterModels(
		&model.User{},
		&model.Organisation{},
		&model.UserOrg{},
		&model.OrcidToken{},
		&model.UserInvitation{},
		&model.OrgInvitation{},
		&model.OrcidApiCall{},
		&model.OrcidAuthorizeCall{},
	)
	if err := database.AutoMigrate(db); err != nil {
		return err
	}

	appCtx := ctx.NewContext(context.Background(), db, redisClient, log.L())

	engine := router.NewRouter(appConf, appCtx).Router()
	shutdown := httpx.NewHttp(appConf.Http, engine)

	sweeper := startSweeper(appCtx)
	defer sweeper.Stop()

	shutdown()
	return nil
}

// startSweeper schedules the nightly removal of abandoned authorize-call rows.
func startSweeper(appCtx *ctx.Context) *cron.Cron {
	auditRepo := repo.NewAuditRepo(appCtx)
	c := cron.New()
	_, err := c.AddFunc("@daily", func() {
		removed, err := auditRepo.EvictStaleAuthorizeCalls(time.Now().Add(-authorizeCallRetention))
		if err != nil {
			log.Errorf("authorize-call sweep failed: %v", err)
			return
		}
		if removed > 0 {
			log.Infof("authorize-call sweep removed %d stale rows", removed)
		}
	})
	if err != nil {
		log.Errorf("failed to schedule authorize-call sweep: %v", err)
	}
	c.Start()
	return c
}
