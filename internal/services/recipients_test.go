package services

import (
	"sort"
	"testing"
	"time"

	"github.com/coursekit/evalserver/internal/models"
)

func TestResolveAvailableRecipients(t *testing.T) {
	db := setupTestDB(t)
	resolver := NewDBRecipientResolver(db)

	eval := &models.Evaluation{Title: "T", State: models.EvalStateActive}
	db.Create(eval)

	db.Create(&models.GroupMember{GroupID: "g1", UserID: "u1", Role: models.GroupRoleTaker, IsActive: true})
	db.Create(&models.GroupMember{GroupID: "g1", UserID: "u2", Role: models.GroupRoleTaker, IsActive: true})
	db.Create(&models.GroupMember{GroupID: "g1", UserID: "prof1", Role: models.GroupRoleInstructor, IsActive: true})
	db.Create(&models.GroupMember{GroupID: "g1", UserID: "u3", Role: models.GroupRoleTaker, IsActive: false})
	db.Create(&models.GroupMember{GroupID: "g2", UserID: "u4", Role: models.GroupRoleTaker, IsActive: true})

	got, err := resolver.Resolve(eval, "g1", models.EmailTypeAvailable)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	sort.Strings(got)
	want := []string{"u1", "u2"}
	if len(got) != len(want) {
		t.Fatalf("resolved %v, expected %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("resolved %v, expected %v", got, want)
			break
		}
	}
}

func TestResolveReminderRecipients(t *testing.T) {
	db := setupTestDB(t)
	resolver := NewDBRecipientResolver(db)

	eval := &models.Evaluation{Title: "T", State: models.EvalStateActive}
	db.Create(eval)

	for _, u := range []string{"u1", "u2", "u3"} {
		db.Create(&models.GroupMember{GroupID: "g1", UserID: u, Role: models.GroupRoleTaker, IsActive: true})
	}
	now := time.Now()
	db.Create(&models.EvalResponse{EvaluationID: eval.ID, OwnerID: "u2", GroupID: "g1", SubmittedAt: &now})
	// A started but unsubmitted response still counts as pending.
	db.Create(&models.EvalResponse{EvaluationID: eval.ID, OwnerID: "u3", GroupID: "g1"})

	got, err := resolver.Resolve(eval, "g1", models.EmailTypeReminder)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	sort.Strings(got)
	want := []string{"u1", "u3"}
	if len(got) != len(want) {
		t.Fatalf("resolved %v, expected %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("resolved %v, expected %v", got, want)
			break
		}
	}
}

func TestResolveUnknownType(t *testing.T) {
	db := setupTestDB(t)
	resolver := NewDBRecipientResolver(db)
	eval := &models.Evaluation{Title: "T"}
	db.Create(eval)

	if _, err := resolver.Resolve(eval, "g1", models.EmailType("bulk")); err == nil {
		t.Error("unknown email type should error")
	}
}
