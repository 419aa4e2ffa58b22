package router

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/hertz-contrib/keyauth"

	"job-match-go/internal/api/handler"
	"job-match-go/internal/config"
)

// RegisterRoutes 注册 API 路由
func RegisterRoutes(h *server.Hertz, cfg *config.Config, matchHandler *handler.MatchHandler) {
	api := h.Group("/api/v1")

	api.GET("/health", func(c context.Context, ctx *app.RequestContext) {
		ctx.JSON(consts.StatusOK, utils.H{"status": "ok"})
	})

	// 身份认证在外部完成，这里只做token到用户ID的映射
	authed := api.Group("", keyauth.New(
		keyauth.WithKeyLookUp("header:Authorization", "Bearer"),
		keyauth.WithValidator(func(c context.Context, ctx *app.RequestContext, token string) (bool, error) {
			userID, ok := cfg.Auth.APITokens[token]
			if !ok {
				return false, nil
			}
			ctx.Set("user_id", userID)
			return true, nil
		}),
		keyauth.WithErrorHandler(func(c context.Context, ctx *app.RequestContext, err error) {
			ctx.AbortWithStatusJSON(consts.StatusUnauthorized, utils.H{"error": "认证失败"})
		}),
	))

	authed.GET("/jobs/matches", matchHandler.HandleListMatches)
	authed.POST("/resumes/:resume_id/matches/:job_id", matchHandler.HandleComputeMatch)
}
