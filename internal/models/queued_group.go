package models

import "time"

// EmailType identifies which evaluation-scoped template a queued group uses.
type EmailType string

const (
	EmailTypeAvailable EmailType = "available"
	EmailTypeReminder  EmailType = "reminder"
)

// QueuedGroup is one unit of email-generation work: one evaluation, one
// assigned group, one email type. Rows are produced when an evaluation
// becomes active (or reminders come due) and consumed by the build phase.
type QueuedGroup struct {
	ID           uint        `gorm:"primaryKey" json:"id"`
	EvaluationID uint        `gorm:"index;not null" json:"evaluation_id"`
	Evaluation   *Evaluation `gorm:"foreignKey:EvaluationID" json:"evaluation,omitempty"`
	GroupID      string      `gorm:"size:255;not null" json:"group_id"`
	EmailType    EmailType   `gorm:"size:20;not null" json:"email_type"`
	LockName     string      `gorm:"index;size:100" json:"lock_name"`
	Built        bool        `gorm:"index;default:false" json:"built"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

func (QueuedGroup) TableName() string { return "queued_groups" }
