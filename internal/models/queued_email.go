package models

import "time"

// QueuedEmail is a fully rendered, per-recipient email message awaiting
// dispatch. Rows are unique per (to_address, email_template_id) so a
// crashed-and-retried build pass never duplicates a message.
type QueuedEmail struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	ExternalID      string    `gorm:"uniqueIndex;size:64" json:"external_id"`
	ToAddress       string    `gorm:"index:idx_to_template;size:255;not null" json:"to_address"`
	Subject         string    `gorm:"size:500;not null" json:"subject"`
	Message         string    `gorm:"type:text;not null" json:"message"`
	EmailTemplateID uint      `gorm:"index:idx_to_template;not null" json:"email_template_id"`
	LockName        string    `gorm:"index;size:100" json:"lock_name"`
	Sent            bool      `gorm:"index;default:false" json:"sent"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (QueuedEmail) TableName() string { return "queued_emails" }
