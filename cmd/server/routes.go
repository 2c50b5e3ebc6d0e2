package main

import (
	"github.com/gin-gonic/gin"

	"github.com/coursekit/evalserver/internal/handlers"
	"github.com/coursekit/evalserver/internal/middleware"
	"github.com/coursekit/evalserver/internal/models"
	"github.com/coursekit/evalserver/pkg/logger"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, svc *appServices) {
	// Middleware
	r.Use(logger.GinLogger(), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(middleware.CORS())

	// Rate limiter for the public auth routes
	authLimiter := middleware.NewRateLimiter(5, 10)

	// Health check
	healthHandler := handlers.NewHealthHandler(svc.emailService)
	r.GET("/health", healthHandler.CheckHealth)

	// API routes
	api := r.Group("/api")
	{
		// Auth routes (public)
		authHandler := handlers.NewAuthHandler(svc.authService)
		auth := api.Group("/auth", authLimiter.Middleware())
		{
			auth.POST("/login", authHandler.Login)
		}

		// Protected routes
		protected := api.Group("")
		protected.Use(middleware.AuthRequired())
		{
			// Auth
			protected.GET("/auth/me", authHandler.Me)

			// Evaluations
			evalHandler := handlers.NewEvaluationHandler(svc.evalService)
			protected.GET("/evaluations", evalHandler.List)
			protected.GET("/evaluations/:id", evalHandler.Get)
			protected.POST("/evaluations", evalHandler.Create)
			protected.PUT("/evaluations/:id", evalHandler.Update)
			protected.DELETE("/evaluations/:id", evalHandler.Delete)
			protected.POST("/evaluations/:id/groups", evalHandler.AssignGroups)
			protected.POST("/evaluations/:id/activate", evalHandler.Activate)
			protected.POST("/evaluations/:id/responses", evalHandler.RecordResponse)

			// Email templates
			templateHandler := handlers.NewEmailTemplateHandler(svc.templateService)
			protected.GET("/email-templates", templateHandler.List)
			protected.GET("/email-templates/:id", templateHandler.Get)
			protected.POST("/email-templates", templateHandler.Create)
			protected.PUT("/email-templates/:id", templateHandler.Update)
			protected.DELETE("/email-templates/:id", templateHandler.Delete)

			// Admin-only routes
			admin := protected.Group("", middleware.AdminRequired())
			{
				// Delivery queue
				queueHandler := handlers.NewQueueHandler(svc.emailService, svc.evalService)
				admin.GET("/queue/status", queueHandler.Status)
				admin.GET("/queue/groups", queueHandler.ListGroups)
				admin.GET("/queue/emails", queueHandler.ListEmails)
				admin.POST("/queue/run", queueHandler.RunCycle)
				admin.POST("/queue/evaluations/:id", queueHandler.QueueEmails)

				// System configuration
				configHandler := handlers.NewSystemConfigHandler(models.GetDB())
				admin.GET("/config/email", configHandler.GetEmailConfig)
				admin.PUT("/config/email", configHandler.UpdateEmailConfig)
				admin.GET("/config/delivery", configHandler.GetDeliveryConfig)
				admin.PUT("/config/delivery", configHandler.UpdateDeliveryConfig)

				// System logs
				systemLogHandler := handlers.NewSystemLogHandler(svc.logService)
				admin.GET("/system-logs", systemLogHandler.List)
			}
		}
	}
}
