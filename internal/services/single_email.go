package services

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/coursekit/evalserver/internal/config"
	"github.com/coursekit/evalserver/internal/models"
	"github.com/coursekit/evalserver/pkg/logger"
)

const (
	emailCleanupLock = "email_cleanup_lock"
	groupCleanupLock = "group_cleanup_lock"

	// recipientsPerLogLine bounds the length of recipient audit log lines.
	recipientsPerLogLine = 20

	dueDateFormat = "Monday, January 2, 2006"
)

// SingleEmailService is the queued-delivery coordinator. Every node runs
// one on a recurring timer; DB locks partition the pending work so that
// concurrent cycles on different nodes never touch the same rows. A cycle
// has three phases: build (queued groups to rendered per-recipient
// emails), send (dispatch unsent emails), cleanup (drop finished rows and
// flag evaluations whose notifications went out).
type SingleEmailService struct {
	db        *gorm.DB
	locks     *LockService
	mailer    Mailer
	settings  *SystemConfigService
	templates *EmailTemplateService
	directory UserDirectory
	resolver  RecipientResolver
	appCfg    *config.AppConfig

	// holderID identifies this node in lock rows.
	holderID string

	cron    *cron.Cron
	entryID cron.EntryID

	// Injectable for tests.
	sleep   func(time.Duration)
	randInt func(n int) int
	now     func() time.Time
}

func NewSingleEmailService(
	db *gorm.DB,
	locks *LockService,
	mailer Mailer,
	settings *SystemConfigService,
	templates *EmailTemplateService,
	directory UserDirectory,
	resolver RecipientResolver,
	appCfg *config.AppConfig,
	holderID string,
) *SingleEmailService {
	return &SingleEmailService{
		db:        db,
		locks:     locks,
		mailer:    mailer,
		settings:  settings,
		templates: templates,
		directory: directory,
		resolver:  resolver,
		appCfg:    appCfg,
		holderID:  holderID,
		sleep:     time.Sleep,
		randInt:   rand.Intn,
		now:       time.Now,
	}
}

// RunCycle executes one build/send/cleanup pass. Safe to call concurrently
// across nodes; the locks sort out who works on what.
func (s *SingleEmailService) RunCycle() {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("Email cycle panicked: %v", r)
		}
	}()

	mode := s.settings.DeliveryMode()
	logRecipients := s.settings.LogRecipients()

	// With delivery off and no recipient auditing there is nothing a cycle
	// could usefully do, so skip before touching any locks.
	if mode == DeliveryNone && !logRecipients {
		logger.Debugf("Email cycle skipped: delivery mode is none and recipient logging is off")
		return
	}

	start := s.now()
	built, buildErr := s.buildPhase()
	sent, sendErr := s.sendPhase(mode)
	s.cleanupPhase(logRecipients)

	logger.Info().
		Int("built", built).
		Int("sent", sent).
		Dur("elapsed", s.now().Sub(start)).
		Msg("Email cycle finished")

	if buildErr != nil {
		logger.Errorf("Email build phase: %v", buildErr)
	}
	if sendErr != nil {
		logger.Errorf("Email send phase: %v", sendErr)
	}
}

// claimPartition tries each of the n partitions for prefix, starting at a
// random index, and returns the first one acquired. Returns false when
// every partition is held elsewhere.
func (s *SingleEmailService) claimPartition(prefix string, lease time.Duration) (LockPartition, bool) {
	n := s.settings.LocksSize()
	for _, p := range Partitions(prefix, n, s.randInt(n)) {
		ok, err := s.locks.TryAcquire(p.Name(), s.holderID, lease)
		if err != nil {
			logger.Errorf("Lock acquire %s: %v", p.Name(), err)
			continue
		}
		if ok {
			return p, true
		}
	}
	return LockPartition{}, false
}

// buildPhase claims one group partition and renders every queued group
// filed under it into per-recipient emails. Returns the number of emails
// created.
func (s *SingleEmailService) buildPhase() (int, error) {
	lease := s.settings.LockLease()
	partition, ok := s.claimPartition(groupLockPrefix, lease)
	if !ok {
		logger.Debugf("Build phase: no free group partition")
		return 0, nil
	}
	defer func() {
		if _, err := s.locks.Release(partition.Name(), s.holderID); err != nil {
			logger.Errorf("Lock release %s: %v", partition.Name(), err)
		}
	}()

	var groups []models.QueuedGroup
	err := s.db.Preload("Evaluation").
		Where("lock_name = ? AND built = ?", partition.Name(), false).
		Find(&groups).Error
	if err != nil {
		return 0, err
	}

	built := 0
	for _, qg := range groups {
		n, err := s.buildGroup(&qg)
		built += n
		if err != nil {
			logger.Errorf("Build group %d (evaluation %d, %s): %v", qg.ID, qg.EvaluationID, qg.EmailType, err)
			continue
		}
		if err := s.db.Model(&models.QueuedGroup{}).
			Where("id = ?", qg.ID).
			Update("built", true).Error; err != nil {
			return built, err
		}
	}
	return built, nil
}

// buildGroup renders one queued group into emails. Recipients that already
// have a row for the same template are skipped, which makes re-running the
// build after a crash idempotent.
func (s *SingleEmailService) buildGroup(qg *models.QueuedGroup) (int, error) {
	if qg.Evaluation == nil {
		return 0, fmt.Errorf("evaluation %d no longer exists", qg.EvaluationID)
	}
	eval := qg.Evaluation

	tmpl, err := s.templates.ForEvaluation(eval, qg.EmailType)
	if err != nil {
		return 0, err
	}

	recipients, err := s.resolver.Resolve(eval, qg.GroupID, qg.EmailType)
	if err != nil {
		return 0, err
	}

	var group models.AssignGroup
	if err := s.db.Where("evaluation_id = ? AND group_id = ?", eval.ID, qg.GroupID).
		First(&group).Error; err != nil {
		return 0, fmt.Errorf("assigned group %s: %w", qg.GroupID, err)
	}

	locksSize := s.settings.LocksSize()
	built := 0
	for _, ownerID := range recipients {
		user, err := s.directory.Lookup(ownerID)
		if err != nil {
			logger.Warnf("Skipping recipient %s: %v", ownerID, err)
			continue
		}
		if user.Email == "" {
			logger.Warnf("Skipping recipient %s: no email address", ownerID)
			continue
		}

		// One email per (recipient, template); a second build pass over the
		// same group must not create duplicates.
		var count int64
		s.db.Model(&models.QueuedEmail{}).
			Where("to_address = ? AND email_template_id = ?", user.Email, tmpl.ID).
			Count(&count)
		if count > 0 {
			continue
		}

		values, err := s.templateValues(eval, &group, user, qg.EmailType)
		if err != nil {
			logger.Errorf("Template values for %s: %v", ownerID, err)
			continue
		}
		// A failed render costs only this recipient; the rest of the group
		// still goes out.
		subject, err := RenderTemplate(tmpl.Subject, values)
		if err != nil {
			logger.Errorf("Skipping recipient %s: template %d subject: %v", ownerID, tmpl.ID, err)
			continue
		}
		message, err := RenderTemplate(tmpl.Message, values)
		if err != nil {
			logger.Errorf("Skipping recipient %s: template %d message: %v", ownerID, tmpl.ID, err)
			continue
		}

		partition := LockPartition{Prefix: emailLockPrefix, Index: s.randInt(locksSize)}
		email := models.QueuedEmail{
			ExternalID:      uuid.NewString(),
			ToAddress:       user.Email,
			Subject:         subject,
			Message:         message,
			EmailTemplateID: tmpl.ID,
			LockName:        partition.Name(),
		}
		if err := s.db.Create(&email).Error; err != nil {
			return built, err
		}
		built++
	}
	return built, nil
}

func (s *SingleEmailService) templateValues(eval *models.Evaluation, group *models.AssignGroup, user *DirectoryUser, emailType models.EmailType) (map[string]string, error) {
	dueDate := eval.DueDate
	if emailType == models.EmailTypeReminder {
		// A reminder shows the recipient's own earliest pending deadline,
		// which may come from a different evaluation.
		earliest, err := s.directory.EarliestDueDate(user.OwnerID)
		if err != nil {
			return nil, err
		}
		if earliest != nil {
			dueDate = earliest
		}
	}
	dueDateStr := "the due date"
	if dueDate != nil {
		dueDateStr = dueDate.Format(dueDateFormat)
	}

	return map[string]string{
		"tool_title":     s.appCfg.ToolTitle,
		"site_label":     s.appCfg.SiteLabel,
		"system_url":     s.appCfg.SystemURL,
		"dashboard_url":  user.DashboardURL,
		"helpdesk_email": s.appCfg.HelpdeskFrom,
		"eval_title":     eval.Title,
		"group_title":    group.GroupTitle,
		"user_name":      user.DisplayName,
		"due_date":       dueDateStr,
	}, nil
}

// sendPhase claims one email partition and dispatches its unsent emails.
// Each email is marked sent the moment it goes out, so a crash mid-pass
// can re-deliver at most the one in-flight message.
func (s *SingleEmailService) sendPhase(mode DeliveryMode) (int, error) {
	if s.settings.BusinessDaysOnly() && !IsBusinessDay(s.now(), s.settings.CountryCode()) {
		logger.Debugf("Send phase skipped: not a business day")
		return 0, nil
	}

	lease := s.settings.LockLease()
	partition, ok := s.claimPartition(emailLockPrefix, lease)
	if !ok {
		logger.Debugf("Send phase: no free email partition")
		return 0, nil
	}
	defer func() {
		if _, err := s.locks.Release(partition.Name(), s.holderID); err != nil {
			logger.Errorf("Lock release %s: %v", partition.Name(), err)
		}
	}()

	var emails []models.QueuedEmail
	err := s.db.Where("lock_name = ? AND sent = ?", partition.Name(), false).
		Order("id ASC").
		Find(&emails).Error
	if err != nil {
		return 0, err
	}
	if len(emails) == 0 {
		return 0, nil
	}

	batchSize := s.settings.BatchSize()
	waitInterval := s.settings.WaitInterval()
	reportEvery := s.settings.ReportEvery()
	from := s.settings.GetWithDefault("email_from", s.appCfg.HelpdeskFrom)

	sent := 0
	for i, email := range emails {
		delivered := s.dispatch(mode, from, &email)
		if delivered {
			if err := s.db.Model(&models.QueuedEmail{}).
				Where("id = ?", email.ID).
				Update("sent", true).Error; err != nil {
				return sent, err
			}
			sent++
		}

		if reportEvery > 0 && (i+1)%reportEvery == 0 {
			logger.Infof("Send progress: %d/%d processed, %d sent on %s", i+1, len(emails), sent, partition.Name())
		}
		// Throttle: pause between batches, but not after the final email.
		if batchSize > 0 && (i+1)%batchSize == 0 && i < len(emails)-1 {
			s.sleep(waitInterval)
		}
	}
	return sent, nil
}

// dispatch delivers one email per the active delivery mode. Returns true
// when the row should be marked sent.
func (s *SingleEmailService) dispatch(mode DeliveryMode, from string, email *models.QueuedEmail) bool {
	switch mode {
	case DeliverySend:
		accepted, err := s.mailer.Send(from, []string{email.ToAddress}, email.Subject, email.Message, true)
		if err != nil {
			logger.Errorf("Send email %s: %v", email.ExternalID, err)
			return false
		}
		if len(accepted) == 0 {
			logger.Warnf("Email %s to %s not accepted, will retry next cycle", email.ExternalID, email.ToAddress)
			return false
		}
		return true
	case DeliveryLog:
		logger.Infof("Email (log mode) to=%s subject=%q", email.ToAddress, email.Subject)
		return true
	default:
		// Delivery off: recipient logging in cleanup is the only effect.
		return true
	}
}

// cleanupPhase removes finished rows under the fixed cleanup locks and
// flags evaluations whose available notifications have all gone out.
func (s *SingleEmailService) cleanupPhase(logRecipients bool) {
	lease := s.settings.LockLease()

	if ok, err := s.locks.TryAcquire(emailCleanupLock, s.holderID, lease); err != nil {
		logger.Errorf("Lock acquire %s: %v", emailCleanupLock, err)
	} else if ok {
		s.cleanupEmails(logRecipients)
		if _, err := s.locks.Release(emailCleanupLock, s.holderID); err != nil {
			logger.Errorf("Lock release %s: %v", emailCleanupLock, err)
		}
	}

	if ok, err := s.locks.TryAcquire(groupCleanupLock, s.holderID, lease); err != nil {
		logger.Errorf("Lock acquire %s: %v", groupCleanupLock, err)
	} else if ok {
		s.cleanupGroups()
		if _, err := s.locks.Release(groupCleanupLock, s.holderID); err != nil {
			logger.Errorf("Lock release %s: %v", groupCleanupLock, err)
		}
	}
}

func (s *SingleEmailService) cleanupEmails(logRecipients bool) {
	if logRecipients {
		var addresses []string
		if err := s.db.Model(&models.QueuedEmail{}).
			Where("sent = ?", true).
			Pluck("to_address", &addresses).Error; err != nil {
			logger.Errorf("Cleanup: list sent recipients: %v", err)
		} else {
			for i := 0; i < len(addresses); i += recipientsPerLogLine {
				end := i + recipientsPerLogLine
				if end > len(addresses) {
					end = len(addresses)
				}
				logger.Infof("Emails delivered to: %s", strings.Join(addresses[i:end], ", "))
			}
		}
	}

	res := s.db.Where("sent = ?", true).Delete(&models.QueuedEmail{})
	if res.Error != nil {
		logger.Errorf("Cleanup: delete sent emails: %v", res.Error)
		return
	}
	if res.RowsAffected > 0 {
		logger.Infof("Cleanup: removed %d sent email(s)", res.RowsAffected)
	}

	// Everything under the cleanup lock should be gone now.
	var remaining int64
	s.db.Model(&models.QueuedEmail{}).Where("sent = ?", true).Count(&remaining)
	if remaining > 0 {
		logger.Warnf("Cleanup: %d sent email(s) still present after delete", remaining)
	}
}

func (s *SingleEmailService) cleanupGroups() {
	// Flag evaluations whose available notifications were fully built
	// before the rows carrying that fact are removed.
	var evalIDs []uint
	err := s.db.Model(&models.QueuedGroup{}).
		Distinct("evaluation_id").
		Where("email_type = ? AND built = ?", models.EmailTypeAvailable, true).
		Pluck("evaluation_id", &evalIDs).Error
	if err != nil {
		logger.Errorf("Cleanup: list built available groups: %v", err)
		return
	}
	if len(evalIDs) > 0 {
		if err := s.db.Model(&models.Evaluation{}).
			Where("id IN ?", evalIDs).
			Update("available_email_sent", true).Error; err != nil {
			logger.Errorf("Cleanup: flag evaluations: %v", err)
			return
		}
	}

	res := s.db.Where("built = ?", true).Delete(&models.QueuedGroup{})
	if res.Error != nil {
		logger.Errorf("Cleanup: delete built groups: %v", res.Error)
		return
	}
	if res.RowsAffected > 0 {
		logger.Infof("Cleanup: removed %d built group(s)", res.RowsAffected)
	}

	var remaining int64
	s.db.Model(&models.QueuedGroup{}).Where("built = ?", true).Count(&remaining)
	if remaining > 0 {
		logger.Warnf("Cleanup: %d built group(s) still present after delete", remaining)
	}
}

// QueueStatus is a snapshot of pending delivery work.
type QueueStatus struct {
	PendingGroups int64 `json:"pending_groups"`
	BuiltGroups   int64 `json:"built_groups"`
	PendingEmails int64 `json:"pending_emails"`
	SentEmails    int64 `json:"sent_emails"`
	HeldLocks     int64 `json:"held_locks"`
}

func (s *SingleEmailService) Status() (*QueueStatus, error) {
	var st QueueStatus
	if err := s.db.Model(&models.QueuedGroup{}).Where("built = ?", false).Count(&st.PendingGroups).Error; err != nil {
		return nil, err
	}
	s.db.Model(&models.QueuedGroup{}).Where("built = ?", true).Count(&st.BuiltGroups)
	s.db.Model(&models.QueuedEmail{}).Where("sent = ?", false).Count(&st.PendingEmails)
	s.db.Model(&models.QueuedEmail{}).Where("sent = ?", true).Count(&st.SentEmails)
	s.db.Model(&models.EmailLock{}).Count(&st.HeldLocks)
	return &st, nil
}

// StartScheduler releases any locks this node left behind and begins the
// recurring delivery cycle.
func (s *SingleEmailService) StartScheduler() error {
	s.releaseStaleLocks()

	interval := s.settings.CycleInterval()
	s.cron = cron.New()
	entryID, err := s.cron.AddFunc(fmt.Sprintf("@every %s", interval), s.RunCycle)
	if err != nil {
		return fmt.Errorf("schedule email cycle: %w", err)
	}
	s.entryID = entryID
	s.cron.Start()
	logger.Infof("Email delivery scheduler started: every %s, node %s", interval, s.holderID)
	return nil
}

// StopScheduler halts the recurring cycle and waits for a running one to
// finish.
func (s *SingleEmailService) StopScheduler() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
		logger.Infof("Email delivery scheduler stopped")
	}
}

// releaseStaleLocks drops locks still registered to this node from a
// previous unclean shutdown. Without this a crashed node would wait out
// the full lease before its partitions free up.
func (s *SingleEmailService) releaseStaleLocks() {
	for _, prefix := range []string{groupLockPrefix, emailLockPrefix} {
		names, err := s.locks.HeldBy(prefix, s.holderID)
		if err != nil {
			logger.Errorf("List stale locks %s: %v", prefix, err)
			continue
		}
		for _, name := range names {
			if _, err := s.locks.Release(name, s.holderID); err != nil {
				logger.Errorf("Release stale lock %s: %v", name, err)
			} else {
				logger.Infof("Released stale lock %s", name)
			}
		}
	}
	for _, name := range []string{emailCleanupLock, groupCleanupLock} {
		if released, err := s.locks.Release(name, s.holderID); err != nil {
			logger.Errorf("Release stale lock %s: %v", name, err)
		} else if released {
			logger.Infof("Released stale lock %s", name)
		}
	}
}
