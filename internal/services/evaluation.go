package services

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/coursekit/evalserver/internal/models"
	"github.com/coursekit/evalserver/pkg/logger"
	"gorm.io/gorm"
)

const (
	groupLockPrefix = "group_lock_"
	emailLockPrefix = "email_lock_"
)

// EvaluationService owns the evaluation lifecycle: creation, group
// assignment, activation, response recording and the queueing of email
// work that activation and reminders trigger.
type EvaluationService struct {
	db       *gorm.DB
	settings *SystemConfigService

	// randInt picks the lock partition a queued group is filed under.
	// Injectable for deterministic tests.
	randInt func(n int) int
}

func NewEvaluationService(db *gorm.DB, settings *SystemConfigService) *EvaluationService {
	return &EvaluationService{
		db:       db,
		settings: settings,
		randInt:  rand.Intn,
	}
}

type CreateEvaluationRequest struct {
	Title               string     `json:"title" binding:"required"`
	OwnerID             string     `json:"owner_id" binding:"required"`
	StartDate           time.Time  `json:"start_date" binding:"required"`
	DueDate             *time.Time `json:"due_date"`
	ReminderDays        int        `json:"reminder_days"`
	AvailableTemplateID *uint      `json:"available_template_id"`
	ReminderTemplateID  *uint      `json:"reminder_template_id"`
}

func (s *EvaluationService) Create(req *CreateEvaluationRequest) (*models.Evaluation, error) {
	eval := models.Evaluation{
		Title:               req.Title,
		OwnerID:             req.OwnerID,
		State:               models.EvalStateInQueue,
		StartDate:           req.StartDate,
		DueDate:             req.DueDate,
		ReminderDays:        req.ReminderDays,
		AvailableTemplateID: req.AvailableTemplateID,
		ReminderTemplateID:  req.ReminderTemplateID,
	}
	if err := s.db.Create(&eval).Error; err != nil {
		return nil, err
	}
	return &eval, nil
}

func (s *EvaluationService) GetByID(id uint) (*models.Evaluation, error) {
	var eval models.Evaluation
	if err := s.db.First(&eval, id).Error; err != nil {
		return nil, err
	}
	return &eval, nil
}

func (s *EvaluationService) List(state string, page, pageSize int) ([]models.Evaluation, int64, error) {
	var evals []models.Evaluation
	var total int64

	query := s.db.Model(&models.Evaluation{})
	if state != "" {
		query = query.Where("state = ?", state)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if page > 0 && pageSize > 0 {
		query = query.Offset((page - 1) * pageSize).Limit(pageSize)
	}
	if err := query.Order("id DESC").Find(&evals).Error; err != nil {
		return nil, 0, err
	}
	return evals, total, nil
}

type UpdateEvaluationRequest struct {
	Title               *string    `json:"title"`
	DueDate             *time.Time `json:"due_date"`
	ReminderDays        *int       `json:"reminder_days"`
	AvailableTemplateID *uint      `json:"available_template_id"`
	ReminderTemplateID  *uint      `json:"reminder_template_id"`
}

func (s *EvaluationService) Update(id uint, req *UpdateEvaluationRequest) (*models.Evaluation, error) {
	eval, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if req.Title != nil {
		updates["title"] = *req.Title
	}
	if req.DueDate != nil {
		updates["due_date"] = *req.DueDate
	}
	if req.ReminderDays != nil {
		updates["reminder_days"] = *req.ReminderDays
	}
	if req.AvailableTemplateID != nil {
		updates["available_template_id"] = *req.AvailableTemplateID
	}
	if req.ReminderTemplateID != nil {
		updates["reminder_template_id"] = *req.ReminderTemplateID
	}
	if len(updates) > 0 {
		if err := s.db.Model(eval).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return eval, nil
}

func (s *EvaluationService) Delete(id uint) error {
	return s.db.Delete(&models.Evaluation{}, id).Error
}

// AssignGroups attaches respondent groups to an evaluation, skipping
// groups already assigned.
func (s *EvaluationService) AssignGroups(evaluationID uint, groups []models.AssignGroup) error {
	for _, g := range groups {
		var count int64
		s.db.Model(&models.AssignGroup{}).
			Where("evaluation_id = ? AND group_id = ?", evaluationID, g.GroupID).
			Count(&count)
		if count > 0 {
			continue
		}
		g.EvaluationID = evaluationID
		if err := s.db.Create(&g).Error; err != nil {
			return err
		}
	}
	return nil
}

// RecordResponse marks a user's submission for an evaluation. Submitting
// again is a no-op.
func (s *EvaluationService) RecordResponse(evaluationID uint, ownerID, groupID string) error {
	var resp models.EvalResponse
	err := s.db.Where("evaluation_id = ? AND owner_id = ?", evaluationID, ownerID).First(&resp).Error
	now := time.Now()
	if err == gorm.ErrRecordNotFound {
		resp = models.EvalResponse{
			EvaluationID: evaluationID,
			OwnerID:      ownerID,
			GroupID:      groupID,
			SubmittedAt:  &now,
		}
		return s.db.Create(&resp).Error
	}
	if err != nil {
		return err
	}
	if resp.SubmittedAt != nil {
		return nil
	}
	return s.db.Model(&resp).Update("submitted_at", now).Error
}

// Activate moves an evaluation from the queue to the active state and
// enqueues available-notification work for its groups.
func (s *EvaluationService) Activate(id uint) error {
	eval, err := s.GetByID(id)
	if err != nil {
		return err
	}
	if eval.State != models.EvalStateInQueue {
		return fmt.Errorf("evaluation %d is %s, not %s", id, eval.State, models.EvalStateInQueue)
	}
	if err := s.db.Model(eval).Update("state", models.EvalStateActive).Error; err != nil {
		return err
	}

	if queue := GetTaskQueue(); queue != nil {
		if err := queue.Enqueue(&EmailQueueTask{EvaluationID: id, EmailType: models.EmailTypeAvailable}); err != nil {
			logger.Errorf("Failed to enqueue available emails for evaluation %d: %v", id, err)
		}
	}
	return nil
}

// QueueEmails files one group work row per assigned group, each under a
// randomly chosen lock partition. Rows that already exist unbuilt for the
// same (evaluation, group, type) are skipped so the operation can be
// retried safely.
func (s *EvaluationService) QueueEmails(evaluationID uint, emailType models.EmailType) (int, error) {
	eval, err := s.GetByID(evaluationID)
	if err != nil {
		return 0, err
	}

	var groups []models.AssignGroup
	if err := s.db.Where("evaluation_id = ?", evaluationID).Find(&groups).Error; err != nil {
		return 0, err
	}

	locksSize := s.settings.LocksSize()
	queued := 0
	for _, g := range groups {
		var count int64
		s.db.Model(&models.QueuedGroup{}).
			Where("evaluation_id = ? AND group_id = ? AND email_type = ? AND built = ?",
				evaluationID, g.GroupID, emailType, false).
			Count(&count)
		if count > 0 {
			continue
		}

		partition := LockPartition{Prefix: groupLockPrefix, Index: s.randInt(locksSize)}
		qg := models.QueuedGroup{
			EvaluationID: eval.ID,
			GroupID:      g.GroupID,
			EmailType:    emailType,
			LockName:     partition.Name(),
		}
		if err := s.db.Create(&qg).Error; err != nil {
			return queued, err
		}
		queued++
	}

	logger.Infof("Queued %d %s email group(s) for evaluation %d", queued, emailType, evaluationID)
	return queued, nil
}

// ActivateDue activates queued evaluations whose start date has passed.
func (s *EvaluationService) ActivateDue() error {
	var evals []models.Evaluation
	err := s.db.Where("state = ? AND start_date <= ?", models.EvalStateInQueue, time.Now()).
		Find(&evals).Error
	if err != nil {
		return err
	}
	for _, eval := range evals {
		if err := s.Activate(eval.ID); err != nil {
			logger.Errorf("Failed to activate evaluation %d: %v", eval.ID, err)
		}
	}
	return nil
}

// QueueDueReminders queues reminder work for active evaluations whose due
// date falls within their reminder window. An unbuilt reminder row for the
// same group suppresses re-queueing until the previous round is processed.
func (s *EvaluationService) QueueDueReminders() error {
	var evals []models.Evaluation
	err := s.db.Where("state = ? AND reminder_days > 0 AND due_date IS NOT NULL", models.EvalStateActive).
		Find(&evals).Error
	if err != nil {
		return err
	}

	now := time.Now()
	for _, eval := range evals {
		window := time.Duration(eval.ReminderDays) * 24 * time.Hour
		if eval.DueDate.Sub(now) > window {
			continue
		}
		if _, err := s.QueueEmails(eval.ID, models.EmailTypeReminder); err != nil {
			logger.Errorf("Failed to queue reminders for evaluation %d: %v", eval.ID, err)
		}
	}
	return nil
}

// CloseOverdue moves active evaluations past their due date into the grace
// period, and grace-period evaluations a day past due into closed.
func (s *EvaluationService) CloseOverdue() error {
	now := time.Now()
	err := s.db.Model(&models.Evaluation{}).
		Where("state = ? AND due_date IS NOT NULL AND due_date < ?", models.EvalStateActive, now).
		Update("state", models.EvalStateGracePeriod).Error
	if err != nil {
		return err
	}
	return s.db.Model(&models.Evaluation{}).
		Where("state = ? AND due_date IS NOT NULL AND due_date < ?",
			models.EvalStateGracePeriod, now.Add(-24*time.Hour)).
		Update("state", models.EvalStateClosed).Error
}
