package services

import (
	"testing"
	"time"

	"github.com/coursekit/evalserver/internal/config"
	"github.com/coursekit/evalserver/internal/models"
)

func TestDirectoryLookup(t *testing.T) {
	db := setupTestDB(t)
	appCfg := &config.AppConfig{DashboardURL: "https://eval.example.edu/dashboard"}
	dir := NewDBDirectory(db, appCfg)

	db.Create(&models.User{Username: "u1", Email: "u1@example.edu", DisplayName: "Alice"})
	db.Create(&models.User{Username: "u2", Email: "u2@example.edu"})

	user, err := dir.Lookup("u1")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if user.DisplayName != "Alice" || user.Email != "u1@example.edu" {
		t.Errorf("unexpected user %+v", user)
	}
	if user.DashboardURL != appCfg.DashboardURL {
		t.Errorf("DashboardURL = %q", user.DashboardURL)
	}

	// Missing display name falls back to the username.
	user, err = dir.Lookup("u2")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if user.DisplayName != "u2" {
		t.Errorf("DisplayName fallback = %q, expected u2", user.DisplayName)
	}

	if _, err := dir.Lookup("missing"); err == nil {
		t.Error("Lookup of unknown user should fail")
	}
}

func TestEarliestDueDate(t *testing.T) {
	db := setupTestDB(t)
	dir := NewDBDirectory(db, &config.AppConfig{})

	db.Create(&models.User{Username: "u1", Email: "u1@example.edu"})

	makeEval := func(title string, dueIn time.Duration, groupID string) *models.Evaluation {
		due := time.Now().Add(dueIn)
		eval := &models.Evaluation{
			Title: title, OwnerID: "prof1",
			State: models.EvalStateActive, StartDate: time.Now().Add(-time.Hour),
			DueDate: &due,
		}
		db.Create(eval)
		db.Create(&models.AssignGroup{EvaluationID: eval.ID, GroupID: groupID})
		db.Create(&models.GroupMember{GroupID: groupID, UserID: "u1", Role: models.GroupRoleTaker, IsActive: true})
		return eval
	}

	soon := makeEval("soon", 24*time.Hour, "g1")
	makeEval("later", 96*time.Hour, "g2")

	got, err := dir.EarliestDueDate("u1")
	if err != nil {
		t.Fatalf("EarliestDueDate: %v", err)
	}
	if got == nil {
		t.Fatal("expected a due date")
	}
	if diff := got.Sub(*soon.DueDate); diff > time.Second || diff < -time.Second {
		t.Errorf("earliest due %s, expected %s", got, soon.DueDate)
	}

	// Once the soonest evaluation is answered, the next one counts.
	now := time.Now()
	db.Create(&models.EvalResponse{
		EvaluationID: soon.ID, OwnerID: "u1", GroupID: "g1", SubmittedAt: &now,
	})
	got, err = dir.EarliestDueDate("u1")
	if err != nil {
		t.Fatalf("EarliestDueDate: %v", err)
	}
	if got == nil || got.Sub(*soon.DueDate) < time.Hour {
		t.Error("earliest due date should move to the unanswered evaluation")
	}

	// No pending work at all.
	if got, _ := dir.EarliestDueDate("nobody"); got != nil {
		t.Errorf("expected nil due date for user with no assignments, got %s", got)
	}
}
