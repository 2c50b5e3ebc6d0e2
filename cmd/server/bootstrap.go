package main

import (
	"context"

	"github.com/coursekit/evalserver/internal/config"
	"github.com/coursekit/evalserver/internal/models"
	"github.com/coursekit/evalserver/internal/services"
	"github.com/coursekit/evalserver/internal/utils"
	"github.com/coursekit/evalserver/pkg/logger"
)

// appServices holds all initialized services needed by the application.
type appServices struct {
	cfg              *config.Config
	authService      *services.AuthService
	evalService      *services.EvaluationService
	templateService  *services.EmailTemplateService
	logService       *services.SystemLogService
	emailService     *services.SingleEmailService
	lifecycleService *services.LifecycleService
	taskQueue        services.TaskQueue
	worker           *services.Worker
}

// bootstrap initializes all application dependencies: database, services, schedulers.
func bootstrap(cfg *config.Config) *appServices {
	utils.SetJWTSecret(cfg.JWT.Secret)

	// Initialize database
	if err := models.InitDB(&cfg.Database); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	// Auto migrate database
	if err := models.AutoMigrate(); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}

	// Seed default data
	if err := models.SeedDefaultData(); err != nil {
		logger.Warn().Err(err).Msg("Failed to seed default data")
	}

	db := models.GetDB()

	settings := services.NewSystemConfigService(db)
	locks := services.NewLockService(db)
	mailer := services.NewEmailService(settings)
	templates := services.NewEmailTemplateService(db)
	resolver := services.NewDBRecipientResolver(db)
	logService := services.NewSystemLogService(db)
	evalService := services.NewEvaluationService(db, settings)
	ldapService := services.NewLDAPService(&cfg.LDAP)
	authService := services.NewAuthService(db, ldapService, cfg)

	dbDirectory := services.NewDBDirectory(db, &cfg.App)
	var directory services.UserDirectory = dbDirectory
	if cfg.LDAP.Enabled {
		directory = services.NewLDAPDirectory(dbDirectory, ldapService)
	}

	emailService := services.NewSingleEmailService(
		db, locks, mailer, settings, templates, directory, resolver,
		&cfg.App, cfg.Server.NodeID,
	)

	// Start the delivery cycle scheduler
	if err := emailService.StartScheduler(); err != nil {
		logger.Fatalf("Failed to start delivery scheduler: %v", err)
	}

	// Start lifecycle scheduler (activation, reminders, log cleanup)
	lifecycleService := services.NewLifecycleService(evalService, logService, settings)
	if err := lifecycleService.StartScheduler(); err != nil {
		logger.Fatalf("Failed to start lifecycle scheduler: %v", err)
	}

	// Initialize task queue (uses Redis if enabled, otherwise sync mode)
	processQueueTask := func(ctx context.Context, task *services.EmailQueueTask) error {
		_, err := evalService.QueueEmails(task.EvaluationID, task.EmailType)
		return err
	}
	taskQueue := services.InitTaskQueue(cfg)
	if syncQueue, ok := taskQueue.(*services.SyncQueue); ok {
		syncQueue.SetProcessor(processQueueTask)
	}

	// Start async worker if Redis is enabled
	var worker *services.Worker
	if cfg.Redis.Enabled {
		worker = services.InitWorker(&cfg.Redis)
		if worker != nil {
			worker.SetProcessor(processQueueTask)
			worker.Start()
		}
	}

	// Create default admin user
	if err := authService.EnsureAdminUser("admin", "admin123"); err != nil {
		logger.Warn().Err(err).Msg("Failed to create admin user")
	}

	return &appServices{
		cfg:              cfg,
		authService:      authService,
		evalService:      evalService,
		templateService:  templates,
		logService:       logService,
		emailService:     emailService,
		lifecycleService: lifecycleService,
		taskQueue:        taskQueue,
		worker:           worker,
	}
}

// shutdown gracefully stops all services.
func (s *appServices) shutdown() {
	s.emailService.StopScheduler()
	s.lifecycleService.StopScheduler()
	logger.Info().Msg("All schedulers stopped")

	if s.worker != nil {
		s.worker.Stop()
	}
	if s.taskQueue != nil {
		s.taskQueue.Close()
	}
}
