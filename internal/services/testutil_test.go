package services

import (
	"strings"
	"testing"

	"github.com/coursekit/evalserver/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// setupTestDB opens a fresh in-memory database migrated with every model.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.Evaluation{},
		&models.AssignGroup{},
		&models.GroupMember{},
		&models.EvalResponse{},
		&models.EmailTemplate{},
		&models.EmailLock{},
		&models.QueuedGroup{},
		&models.QueuedEmail{},
		&models.SystemConfig{},
		&models.SystemLog{},
	)
	if err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	return db
}

// fakeMailer records every dispatch and can be told to reject addresses.
type fakeMailer struct {
	sent       []string
	subjects   map[string]string
	rejectAddr map[string]bool
}

func newFakeMailer() *fakeMailer {
	return &fakeMailer{
		subjects:   make(map[string]string),
		rejectAddr: make(map[string]bool),
	}
}

func (m *fakeMailer) Send(from string, to []string, subject, body string, deferExceptions bool) ([]string, error) {
	var accepted []string
	for _, addr := range to {
		if m.rejectAddr[addr] {
			continue
		}
		m.sent = append(m.sent, addr)
		m.subjects[addr] = subject
		accepted = append(accepted, addr)
	}
	return accepted, nil
}
