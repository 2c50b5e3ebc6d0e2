package services

import (
	"testing"
	"time"

	"github.com/coursekit/evalserver/internal/models"
	"gorm.io/gorm"
)

func setupEvalService(t *testing.T) (*EvaluationService, *gorm.DB) {
	t.Helper()
	db := setupTestDB(t)
	svc := NewEvaluationService(db, NewSystemConfigService(db))
	svc.randInt = func(n int) int { return 0 }
	return svc, db
}

func TestEvaluationCreateAndActivate(t *testing.T) {
	svc, db := setupEvalService(t)

	due := time.Now().Add(7 * 24 * time.Hour)
	eval, err := svc.Create(&CreateEvaluationRequest{
		Title:     "Midterm Feedback",
		OwnerID:   "prof1",
		StartDate: time.Now(),
		DueDate:   &due,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if eval.State != models.EvalStateInQueue {
		t.Errorf("new evaluation state = %q, expected inqueue", eval.State)
	}

	if err := svc.Activate(eval.ID); err != nil {
		t.Fatalf("Activate: %v", err)
	}

	var reloaded models.Evaluation
	db.First(&reloaded, eval.ID)
	if reloaded.State != models.EvalStateActive {
		t.Errorf("state after activate = %q, expected active", reloaded.State)
	}

	// Activating twice is rejected.
	if err := svc.Activate(eval.ID); err == nil {
		t.Error("second Activate should fail")
	}
}

func TestAssignGroupsDeduplicates(t *testing.T) {
	svc, db := setupEvalService(t)

	eval, _ := svc.Create(&CreateEvaluationRequest{
		Title: "T", OwnerID: "prof1", StartDate: time.Now(),
	})

	groups := []models.AssignGroup{
		{GroupID: "g1", GroupTitle: "Section A"},
		{GroupID: "g2", GroupTitle: "Section B"},
	}
	if err := svc.AssignGroups(eval.ID, groups); err != nil {
		t.Fatalf("AssignGroups: %v", err)
	}
	// Repeat assignment of g1 is ignored.
	if err := svc.AssignGroups(eval.ID, groups[:1]); err != nil {
		t.Fatalf("AssignGroups repeat: %v", err)
	}

	var count int64
	db.Model(&models.AssignGroup{}).Where("evaluation_id = ?", eval.ID).Count(&count)
	if count != 2 {
		t.Errorf("%d assigned groups, expected 2", count)
	}
}

func TestQueueEmailsDeduplicates(t *testing.T) {
	svc, db := setupEvalService(t)

	eval, _ := svc.Create(&CreateEvaluationRequest{
		Title: "T", OwnerID: "prof1", StartDate: time.Now(),
	})
	svc.AssignGroups(eval.ID, []models.AssignGroup{
		{GroupID: "g1", GroupTitle: "Section A"},
		{GroupID: "g2", GroupTitle: "Section B"},
	})

	queued, err := svc.QueueEmails(eval.ID, models.EmailTypeAvailable)
	if err != nil {
		t.Fatalf("QueueEmails: %v", err)
	}
	if queued != 2 {
		t.Fatalf("queued %d groups, expected 2", queued)
	}

	// With unbuilt rows present, a second call queues nothing.
	queued, err = svc.QueueEmails(eval.ID, models.EmailTypeAvailable)
	if err != nil {
		t.Fatalf("QueueEmails repeat: %v", err)
	}
	if queued != 0 {
		t.Errorf("repeat queued %d groups, expected 0", queued)
	}

	// Once processed, the same group can be queued again (reminders recur).
	db.Model(&models.QueuedGroup{}).Where("group_id = ?", "g1").Update("built", true)
	queued, _ = svc.QueueEmails(eval.ID, models.EmailTypeAvailable)
	if queued != 1 {
		t.Errorf("queued %d groups after build, expected 1", queued)
	}

	var qg models.QueuedGroup
	db.Where("built = ?", false).First(&qg)
	if qg.LockName != "group_lock_0" {
		t.Errorf("lock name = %q, expected group_lock_0", qg.LockName)
	}
}

func TestRecordResponseIdempotent(t *testing.T) {
	svc, db := setupEvalService(t)

	eval, _ := svc.Create(&CreateEvaluationRequest{
		Title: "T", OwnerID: "prof1", StartDate: time.Now(),
	})

	if err := svc.RecordResponse(eval.ID, "u1", "g1"); err != nil {
		t.Fatalf("RecordResponse: %v", err)
	}
	if err := svc.RecordResponse(eval.ID, "u1", "g1"); err != nil {
		t.Fatalf("RecordResponse repeat: %v", err)
	}

	var count int64
	db.Model(&models.EvalResponse{}).
		Where("evaluation_id = ? AND owner_id = ?", eval.ID, "u1").
		Count(&count)
	if count != 1 {
		t.Errorf("%d response rows, expected 1", count)
	}
}

func TestQueueDueRemindersWindow(t *testing.T) {
	svc, db := setupEvalService(t)

	makeEval := func(title string, dueIn time.Duration, reminderDays int) *models.Evaluation {
		due := time.Now().Add(dueIn)
		eval, err := svc.Create(&CreateEvaluationRequest{
			Title: title, OwnerID: "prof1", StartDate: time.Now().Add(-time.Hour),
			DueDate: &due, ReminderDays: reminderDays,
		})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		db.Model(eval).Update("state", models.EvalStateActive)
		svc.AssignGroups(eval.ID, []models.AssignGroup{{GroupID: "g-" + title}})
		return eval
	}

	inWindow := makeEval("soon", 24*time.Hour, 3)
	outOfWindow := makeEval("later", 10*24*time.Hour, 3)
	disabled := makeEval("nodays", 24*time.Hour, 0)

	if err := svc.QueueDueReminders(); err != nil {
		t.Fatalf("QueueDueReminders: %v", err)
	}

	countFor := func(evalID uint) int64 {
		var n int64
		db.Model(&models.QueuedGroup{}).
			Where("evaluation_id = ? AND email_type = ?", evalID, models.EmailTypeReminder).
			Count(&n)
		return n
	}

	if countFor(inWindow.ID) != 1 {
		t.Error("evaluation inside the reminder window should be queued")
	}
	if countFor(outOfWindow.ID) != 0 {
		t.Error("evaluation outside the reminder window must not be queued")
	}
	if countFor(disabled.ID) != 0 {
		t.Error("evaluation with reminders disabled must not be queued")
	}
}

func TestActivateDueAndCloseOverdue(t *testing.T) {
	svc, db := setupEvalService(t)

	started := time.Now().Add(-time.Hour)
	future := time.Now().Add(48 * time.Hour)
	dueEval, _ := svc.Create(&CreateEvaluationRequest{
		Title: "due", OwnerID: "prof1", StartDate: started,
	})
	notYet, _ := svc.Create(&CreateEvaluationRequest{
		Title: "future", OwnerID: "prof1", StartDate: future,
	})

	if err := svc.ActivateDue(); err != nil {
		t.Fatalf("ActivateDue: %v", err)
	}

	var a, b models.Evaluation
	db.First(&a, dueEval.ID)
	db.First(&b, notYet.ID)
	if a.State != models.EvalStateActive {
		t.Errorf("started evaluation state = %q, expected active", a.State)
	}
	if b.State != models.EvalStateInQueue {
		t.Errorf("future evaluation state = %q, expected inqueue", b.State)
	}

	// Past-due active evaluations enter the grace period.
	pastDue := time.Now().Add(-2 * time.Hour)
	db.Model(&a).Update("due_date", pastDue)
	if err := svc.CloseOverdue(); err != nil {
		t.Fatalf("CloseOverdue: %v", err)
	}
	db.First(&a, dueEval.ID)
	if a.State != models.EvalStateGracePeriod {
		t.Errorf("overdue evaluation state = %q, expected graceperiod", a.State)
	}

	// A day past due they close.
	longPast := time.Now().Add(-48 * time.Hour)
	db.Model(&a).Update("due_date", longPast)
	if err := svc.CloseOverdue(); err != nil {
		t.Fatalf("CloseOverdue: %v", err)
	}
	db.First(&a, dueEval.ID)
	if a.State != models.EvalStateClosed {
		t.Errorf("long overdue evaluation state = %q, expected closed", a.State)
	}
}
