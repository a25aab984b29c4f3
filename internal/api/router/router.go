package router

import (
	"context"
	"errors"

	"resume-search/internal/api/handler"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/hertz-contrib/keyauth"
)

// Handlers 路由依赖的处理器
type Handlers struct {
	Health *handler.HealthHandler
	Resume *handler.ResumeHandler
	Search *handler.SearchHandler
}

// Options 路由级中间件配置
type Options struct {
	CORSOrigins []string
	APIKeys     []string // 非空时 /api/v1 需要 Authorization: Bearer <key>
}

// RegisterRoutes 注册中间件与 API 路由
func RegisterRoutes(h *server.Hertz, hs Handlers, opts Options) {
	h.Use(AccessLog(), ProcessTime(), CORS(opts.CORSOrigins))

	h.GET("/", hs.Health.Root)
	h.GET("/health", hs.Health.Health)

	api := h.Group("/api/v1")
	if len(opts.APIKeys) > 0 {
		api.Use(apiKeyAuth(opts.APIKeys))
	}

	api.POST("/resume/", hs.Resume.Upload)
	api.GET("/resume/status/:job_id", hs.Resume.GetJobStatus)
	api.GET("/resume/:id", hs.Resume.GetResume)
	api.POST("/search-resume/", hs.Search.Search)
}

var errInvalidAPIKey = errors.New("invalid api key")

func apiKeyAuth(keys []string) app.HandlerFunc {
	allowed := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if k != "" {
			allowed[k] = struct{}{}
		}
	}
	return keyauth.New(
		keyauth.WithKeyLookUp("header:Authorization", "Bearer"),
		keyauth.WithValidator(func(_ context.Context, _ *app.RequestContext, key string) (bool, error) {
			if _, ok := allowed[key]; !ok {
				return false, errInvalidAPIKey
			}
			return true, nil
		}),
	)
}
