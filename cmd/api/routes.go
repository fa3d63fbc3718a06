package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/ecas/approval-api/api/swagger"
	"github.com/ecas/approval-api/internal/handler"
	"github.com/ecas/approval-api/internal/middleware"
	"github.com/ecas/approval-api/internal/models"
	"github.com/ecas/approval-api/internal/service"
	"github.com/ecas/approval-api/pkg/config"
	"github.com/ecas/approval-api/pkg/logger"
	corsmiddleware "github.com/ecas/approval-api/pkg/middleware/cors"
	reqidmiddleware "github.com/ecas/approval-api/pkg/middleware/requestid"
	"github.com/ecas/approval-api/pkg/storage"
)

type routerDeps struct {
	auth          *handler.AuthHandler
	permissions   *handler.PermissionHandler
	notifications *handler.NotificationHandler
	metrics       *handler.MetricsHandler
	metricsSvc    *service.MetricsService
	tokens        *service.AuthService
	localFiles    *storage.LocalStore
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(reqidmiddleware.Middleware())
	r.Use(middleware.ErrorCapture(logr))
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.metricsSvc))

	r.GET("/health", deps.metrics.Health)
	r.GET("/metrics", deps.metrics.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
	if deps.localFiles != nil {
		r.Static(deps.localFiles.BaseURL(), deps.localFiles.Dir())
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/register", deps.auth.Register)
	auth.POST("/login", deps.auth.Login)

	secured := api.Group("")
	secured.Use(middleware.JWT(deps.tokens))

	secured.GET("/auth/me", deps.auth.Me)
	secured.PUT("/auth/signature", deps.auth.UpdateSignature)
	secured.GET("/auth/teachers", deps.auth.Teachers)

	students := middleware.RequireRoles(models.RoleStudent)
	authorities := middleware.RequireAuthority()

	permissions := secured.Group("/permissions")
	permissions.POST("", students, deps.permissions.Submit)
	permissions.GET("", authorities, deps.permissions.All)
	permissions.GET("/mine", students, deps.permissions.Mine)
	permissions.GET("/status", students, deps.permissions.Status)
	permissions.GET("/history", students, deps.permissions.History)
	permissions.GET("/history/export", middleware.RequireRoles(models.RoleStudent, models.RolePrincipal), deps.permissions.ExportHistory)
	permissions.GET("/pending", authorities, deps.permissions.Pending)
	permissions.GET("/:id", deps.permissions.Get)
	permissions.GET("/:id/ledger", deps.permissions.Ledger)
	permissions.GET("/:id/letter", students, deps.permissions.Letter)
	permissions.POST("/:id/approve", authorities, deps.permissions.Approve)
	permissions.POST("/:id/reject", authorities, deps.permissions.Reject)

	notifications := secured.Group("/notifications")
	notifications.GET("", deps.notifications.List)
	notifications.GET("/unread-count", deps.notifications.UnreadCount)
	notifications.PATCH("/read-all", deps.notifications.MarkAllRead)
	notifications.PATCH("/:id/read", deps.notifications.MarkRead)

	return r
}
