package ctx

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Context bundles the process-wide resources handed to repos and logic.
type Context struct {
	Ctx      context.Context
	DBIns    *gorm.DB
	RedisIns *redis.Client
	Log      *zap.SugaredLogger
}

func NewContext(ctx context.Context, db *gorm.DB, rdb *redis.Client, log *zap.SugaredLogger) *Context {
	return &Context{
		Ctx:      ctx,
		DBIns:    db,
		RedisIns: rdb,
		Log:      log,
	}
}

func (c *Context) GetCtx() context.Context {
	return c.Ctx
}

func (c *Context) GetDB() *gorm.DB {
	return c.DBIns
}

func (c *Context) SetDB(db *gorm.DB) {
	c.DBIns = db
}

func (c *Context) GetRedis() *redis.Client {
	return c.RedisIns
}
