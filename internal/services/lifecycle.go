package services

import (
	"strconv"

	"github.com/robfig/cron/v3"

	"github.com/coursekit/evalserver/pkg/logger"
)

// LifecycleService runs the time-driven evaluation transitions: activating
// queued evaluations, queueing due reminders, closing overdue ones, and
// pruning old system logs.
type LifecycleService struct {
	evals    *EvaluationService
	logs     *SystemLogService
	settings *SystemConfigService
	cron     *cron.Cron
}

func NewLifecycleService(evals *EvaluationService, logs *SystemLogService, settings *SystemConfigService) *LifecycleService {
	return &LifecycleService{
		evals:    evals,
		logs:     logs,
		settings: settings,
	}
}

func (s *LifecycleService) runTransitions() {
	if err := s.evals.ActivateDue(); err != nil {
		logger.Errorf("Activate due evaluations: %v", err)
	}
	if err := s.evals.QueueDueReminders(); err != nil {
		logger.Errorf("Queue due reminders: %v", err)
	}
	if err := s.evals.CloseOverdue(); err != nil {
		logger.Errorf("Close overdue evaluations: %v", err)
	}
}

func (s *LifecycleService) cleanupLogs() {
	retention := 30
	if n, err := strconv.Atoi(s.settings.GetWithDefault("log_retention_days", "30")); err == nil && n > 0 {
		retention = n
	}
	removed, err := s.logs.CleanupOld(retention)
	if err != nil {
		logger.Errorf("System log cleanup: %v", err)
		return
	}
	if removed > 0 {
		logger.Infof("System log cleanup: removed %d entries older than %d days", removed, retention)
	}
}

// StartScheduler begins the recurring lifecycle jobs: transitions every
// 10 minutes, log cleanup daily at 03:00.
func (s *LifecycleService) StartScheduler() error {
	s.cron = cron.New()
	if _, err := s.cron.AddFunc("@every 10m", s.runTransitions); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("0 3 * * *", s.cleanupLogs); err != nil {
		return err
	}
	s.cron.Start()
	logger.Infof("Lifecycle scheduler started")
	return nil
}

func (s *LifecycleService) StopScheduler() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
		logger.Infof("Lifecycle scheduler stopped")
	}
}
