package router

import (
	"context"
	"strconv"
	"strings"
	"time"

	"resume-search/internal/logger"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// HeaderProcessTime 响应耗时头，单位秒
const HeaderProcessTime = "X-Process-Time"

// AccessLog 记录访问日志，并把带请求信息的日志实例放进上下文
func AccessLog() app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		start := time.Now()
		reqLog := logger.Logger.With().
			Str("method", string(ctx.Method())).
			Str("path", string(ctx.Path())).
			Logger()
		c = reqLog.WithContext(c)

		ctx.Next(c)

		status := ctx.Response.StatusCode()
		event := reqLog.Info()
		if status >= consts.StatusInternalServerError {
			event = reqLog.Error()
		} else if status >= consts.StatusBadRequest {
			event = reqLog.Warn()
		}
		event.Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", ctx.ClientIP()).
			Msg("request")
	}
}

// ProcessTime 写入 X-Process-Time 响应头
func ProcessTime() app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		start := time.Now()
		ctx.Next(c)
		ctx.Response.Header.Set(HeaderProcessTime, strconv.FormatFloat(time.Since(start).Seconds(), 'f', 6, 64))
	}
}

// CORS 对配置的来源放行跨域请求，"*" 表示任意来源
func CORS(origins []string) app.HandlerFunc {
	allowAll := false
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			allowAll = true
		}
		allowed[o] = struct{}{}
	}

	return func(c context.Context, ctx *app.RequestContext) {
		origin := string(ctx.GetHeader("Origin"))
		if origin == "" {
			ctx.Next(c)
			return
		}
		if _, ok := allowed[origin]; !ok && !allowAll {
			ctx.Next(c)
			return
		}

		h := &ctx.Response.Header
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Credentials", "true")
		h.Set("Vary", "Origin")

		if string(ctx.Method()) == consts.MethodOptions {
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			h.Set("Access-Control-Max-Age", "600")
			ctx.AbortWithStatus(consts.StatusNoContent)
			return
		}
		ctx.Next(c)
	}
}
