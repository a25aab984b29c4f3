package handler

import (
	"context"
	"time"

	"resume-search/internal/constants"

	"github.com/cloudwego/hertz/pkg/app"
	hertzutils "github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// Pinger 可探活的依赖
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler 根路由与健康检查
type HealthHandler struct {
	db     Pinger
	dbHost string
	dbName string
}

// NewHealthHandler 创建健康检查处理器，db 可为空
func NewHealthHandler(db Pinger, dbHost, dbName string) *HealthHandler {
	return &HealthHandler{db: db, dbHost: dbHost, dbName: dbName}
}

// Root GET /
func (h *HealthHandler) Root(_ context.Context, ctx *app.RequestContext) {
	ctx.JSON(consts.StatusOK, hertzutils.H{
		"message": constants.MessageWelcome,
		"version": constants.AppVersion,
	})
}

// Health GET /health，数据库不可用时仍返回 200
func (h *HealthHandler) Health(c context.Context, ctx *app.RequestContext) {
	database := "disconnected"
	if h.db != nil {
		pingCtx, cancel := context.WithTimeout(c, 3*time.Second)
		if err := h.db.Ping(pingCtx); err == nil {
			database = "connected"
		}
		cancel()
	}
	ctx.JSON(consts.StatusOK, hertzutils.H{
		"status":   "healthy",
		"database": database,
		"version":  constants.AppVersion,
		"db_host":  h.dbHost,
		"db_name":  h.dbName,
	})
}
