package router

import (
	"context"

	"jobgenius-go/internal/api/handler"
	"jobgenius-go/internal/config"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/hertz-contrib/keyauth"
)

// RegisterRoutes 注册 API 路由
// /api/v1下的所有路由都要求携带有效的API密钥，健康检查除外
func RegisterRoutes(h *server.Hertz, cfg *config.Config, resumeHandler *handler.ResumeHandler) {
	h.GET("/health", resumeHandler.HealthCheck)

	api := h.Group("/api/v1", newAuthMiddleware(cfg))

	api.POST("/resumes", resumeHandler.UploadResume)
	api.GET("/resumes", resumeHandler.ListResumes)
	api.GET("/resumes/:id", resumeHandler.GetResume)
	api.PUT("/resumes/:id/primary", resumeHandler.SetPrimaryResume)
	api.DELETE("/resumes/:id", resumeHandler.DeleteResume)
}

// newAuthMiddleware 基于API密钥的鉴权中间件
// 密钥有效时把对应的外部用户标识写入RequestContext供处理器使用
func newAuthMiddleware(cfg *config.Config) app.HandlerFunc {
	return keyauth.New(
		keyauth.WithKeyLookUp("header:Authorization", "Bearer"),
		keyauth.WithValidator(func(ctx context.Context, c *app.RequestContext, key string) (bool, error) {
			owner, ok := cfg.Auth.APIKeys[key]
			if !ok {
				return false, nil
			}
			c.Set(handler.OwnerContextKey, owner)
			return true, nil
		}),
		keyauth.WithErrorHandler(func(ctx context.Context, c *app.RequestContext, err error) {
			c.JSON(consts.StatusUnauthorized, utils.H{"error": "Unauthorized"})
			c.Abort()
		}),
	)
}
