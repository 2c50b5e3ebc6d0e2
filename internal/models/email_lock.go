package models

import "time"

// EmailLock represents a distributed lock row coordinating email work
// across server nodes. At most one unexpired row exists per lock name.
type EmailLock struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	LockName  string    `gorm:"uniqueIndex;size:100;not null" json:"lock_name"`
	LockedBy  string    `gorm:"size:100;not null" json:"locked_by"`
	LockedAt  time.Time `json:"locked_at"`
	ExpiresAt time.Time `gorm:"index" json:"expires_at"`
}

func (EmailLock) TableName() string { return "email_locks" }
