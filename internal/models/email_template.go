package models

import (
	"time"

	"gorm.io/gorm"
)

// EmailTemplate is a subject/body pair with {{name}} placeholders, rendered
// once per recipient by the build phase.
type EmailTemplate struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Name        string         `gorm:"size:100;not null" json:"name"`
	Description string         `gorm:"size:500" json:"description"`
	Type        EmailType      `gorm:"size:20;not null;index" json:"type"`
	Subject     string         `gorm:"size:500;not null" json:"subject"`
	Message     string         `gorm:"type:text;not null" json:"message"`
	IsDefault   bool           `gorm:"default:false" json:"is_default"`
	IsSystem    bool           `gorm:"default:false" json:"is_system"` // System templates cannot be deleted
	CreatedBy   uint           `json:"created_by"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (EmailTemplate) TableName() string { return "email_templates" }
