package main

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/panelsentry/internal/handlers"
	"github.com/huangang/panelsentry/internal/middleware"
	"github.com/huangang/panelsentry/pkg/logger"
)

// registerRoutes sets up all HTTP routes on the given Gin engine. It returns
// the ingestion rate limiter so the caller can stop it.
func registerRoutes(r *gin.Engine, svc *appServices) *middleware.RateLimiter {
	r.Use(logger.GinLogger(), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(middleware.CORS(svc.cfg.Server.CORSOrigins...))

	p := svc.panel
	ingestLimiter := middleware.NewRateLimiter(svc.cfg.RateLimit.ResponsesRPS, svc.cfg.RateLimit.ResponsesBurst)

	healthHandler := handlers.NewHealthHandler(p)
	r.GET("/health", healthHandler.CheckHealth)
	r.GET("/metrics", handlers.Metrics(handlers.NewMetricsRegistry(p)))

	api := r.Group("/api")
	api.GET("/health", healthHandler.CheckHealth)

	// Live events
	sseHandler := handlers.NewSSEHandler(p.Hub)
	api.GET("/events", sseHandler.StreamEvents)

	// Response ingestion is high volume: rate limited, not audited
	responseHandler := handlers.NewResponseHandler(p)
	api.POST("/responses", ingestLimiter.Middleware(), responseHandler.Create)

	admin := api.Group("", middleware.AuditLog())
	{
		dashboardHandler := handlers.NewDashboardHandler(p)
		admin.GET("/dashboard/stats", dashboardHandler.GetStats)

		projectHandler := handlers.NewProjectHandler(p)
		admin.GET("/projects", projectHandler.List)
		admin.POST("/projects", projectHandler.Create)
		admin.GET("/projects/:id", projectHandler.GetByID)
		admin.PUT("/projects/:id", projectHandler.Update)
		admin.DELETE("/projects/:id", projectHandler.Delete)
		admin.PUT("/projects/:id/status", projectHandler.UpdateStatus)
		admin.GET("/projects/:id/vendors", projectHandler.ListVendors)
		admin.POST("/projects/:id/vendors/:vendor_id", projectHandler.AssignVendor)
		admin.DELETE("/projects/:id/vendors/:vendor_id", projectHandler.RemoveVendor)
		admin.GET("/projects/:id/responses", projectHandler.ListResponses)
		admin.GET("/projects/:id/analytics", projectHandler.Analytics)
		admin.GET("/projects/:id/quota", projectHandler.Quota)

		vendorHandler := handlers.NewVendorHandler(p)
		admin.GET("/vendors", vendorHandler.List)
		admin.POST("/vendors", vendorHandler.Create)
		admin.GET("/vendors/:id", vendorHandler.GetByID)
		admin.PUT("/vendors/:id", vendorHandler.Update)
		admin.DELETE("/vendors/:id", vendorHandler.Delete)
		admin.GET("/vendors/:id/projects", vendorHandler.ListProjects)
		admin.GET("/vendors/:id/responses", vendorHandler.ListResponses)
		admin.GET("/vendors/:id/performance", vendorHandler.Performance)
		admin.GET("/vendors/:id/redirects", vendorHandler.Redirects)

		admin.GET("/responses", responseHandler.List)

		fraudHandler := handlers.NewFraudHandler(p)
		admin.GET("/fraud/report", fraudHandler.Report)
		admin.GET("/fraud/alerts", fraudHandler.Alerts)
		admin.GET("/fraud/ips", fraudHandler.IPs)
		admin.GET("/fraud/vendors", fraudHandler.Vendors)

		linkHandler := handlers.NewLinkHandler(p)
		admin.GET("/links/start", linkHandler.Start)
		admin.GET("/links/redirect", linkHandler.Redirect)

		exportHandler := handlers.NewExportHandler(p)
		admin.GET("/export/responses.csv", exportHandler.ResponsesCSV)
		admin.GET("/export/analytics", exportHandler.Analytics)
		admin.GET("/export/fraud", exportHandler.Fraud)
		admin.GET("/export/backup", exportHandler.Backup)
		admin.POST("/backup/restore", exportHandler.Restore)

		settingsHandler := handlers.NewSettingsHandler(p)
		admin.GET("/settings", settingsHandler.Get)
		admin.PUT("/settings", settingsHandler.Update)
		admin.POST("/settings/import", settingsHandler.Import)

		systemLogHandler := handlers.NewSystemLogHandler(p)
		admin.GET("/system-logs", systemLogHandler.List)
		admin.GET("/system-logs/modules", systemLogHandler.GetModules)
	}

	return ingestLimiter
}
