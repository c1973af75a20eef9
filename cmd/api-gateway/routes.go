package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/YathuPiraba/lead-management-system-sub000/internal/handler"
	"github.com/YathuPiraba/lead-management-system-sub000/internal/middleware"
	"github.com/YathuPiraba/lead-management-system-sub000/internal/models"
	"github.com/YathuPiraba/lead-management-system-sub000/internal/service"
	"github.com/YathuPiraba/lead-management-system-sub000/pkg/config"
	"github.com/YathuPiraba/lead-management-system-sub000/pkg/logger"
	corsmiddleware "github.com/YathuPiraba/lead-management-system-sub000/pkg/middleware/cors"
	reqidmiddleware "github.com/YathuPiraba/lead-management-system-sub000/pkg/middleware/requestid"
)

type routerDeps struct {
	auth       *handler.AuthHandler
	sessions   *handler.SessionHandler
	admin      *handler.AdminHandler
	metrics    *handler.MetricsHandler
	metricsSvc *service.MetricsService
	authority  *service.SessionAuthority
	guard      *service.TenantGuard
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(middleware.Metrics(deps.metricsSvc))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins, cfg.Tenant.Header, handler.RefreshTokenHeader))

	r.GET("/health", deps.metrics.Health)
	r.GET("/ready", deps.metrics.Ready)
	r.GET("/metrics", deps.metrics.Prometheus)
	r.GET("/metrics/summary", deps.metrics.Summary)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	requireAuth := middleware.JWT(deps.authority, cfg.Cookie.AccessName)
	requireTenant := middleware.Tenant(deps.guard, cfg.Tenant)

	auth := api.Group("/auth")
	auth.POST("/login", deps.auth.Login)
	auth.POST("/refresh", deps.auth.Refresh)
	auth.GET("/verify", deps.auth.Verify)

	authed := auth.Group("", requireAuth)
	authed.GET("/me", deps.auth.Me)
	authed.POST("/logout", deps.auth.Logout)
	authed.POST("/logout/others", deps.auth.LogoutOthers)
	authed.POST("/logout/all", deps.auth.LogoutAll)
	authed.POST("/change-password", deps.auth.ChangePassword)

	sessions := authed.Group("/sessions", requireTenant)
	sessions.GET("", deps.sessions.List)
	sessions.GET("/stats", deps.sessions.Stats)
	sessions.GET("/security", deps.sessions.Security)

	admin := api.Group("/admin", requireAuth, requireTenant, middleware.RequireRoles(models.RoleSuperAdmin, models.RoleOrgAdmin))
	admin.POST("/users/:id/force-logout", deps.admin.ForceLogout)
	admin.GET("/users/:id/security", deps.admin.Security)
	admin.GET("/users/:id/sessions/export", deps.admin.ExportSessions)

	return r
}
