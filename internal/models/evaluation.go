package models

import (
	"time"

	"gorm.io/gorm"
)

// Evaluation lifecycle states
const (
	EvalStateInQueue     = "inqueue"
	EvalStateActive      = "active"
	EvalStateGracePeriod = "graceperiod"
	EvalStateClosed      = "closed"
)

// Group membership roles
const (
	GroupRoleTaker      = "taker"
	GroupRoleInstructor = "instructor"
)

// Evaluation represents one course-evaluation survey instance.
type Evaluation struct {
	ID                  uint           `gorm:"primaryKey" json:"id"`
	Title               string         `gorm:"size:255;not null" json:"title"`
	OwnerID             string         `gorm:"size:255;index" json:"owner_id"`
	State               string         `gorm:"size:20;default:inqueue;index" json:"state"`
	StartDate           time.Time      `json:"start_date"`
	DueDate             *time.Time     `json:"due_date"`
	ReminderDays        int            `gorm:"default:0" json:"reminder_days"` // 0 disables reminders
	AvailableEmailSent  bool           `gorm:"default:false" json:"available_email_sent"`
	AvailableTemplateID *uint          `json:"available_template_id"`
	ReminderTemplateID  *uint          `json:"reminder_template_id"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
	DeletedAt           gorm.DeletedAt `gorm:"index" json:"-"`
}

// AssignGroup links an evaluation to a group of potential respondents.
type AssignGroup struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	EvaluationID uint      `gorm:"index;not null" json:"evaluation_id"`
	GroupID      string    `gorm:"size:255;not null" json:"group_id"`
	GroupTitle   string    `gorm:"size:255" json:"group_title"`
	CreatedAt    time.Time `json:"created_at"`
}

// GroupMember is one user's membership in a respondent group.
type GroupMember struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	GroupID  string `gorm:"index;size:255;not null" json:"group_id"`
	UserID   string `gorm:"index;size:255;not null" json:"user_id"`
	Role     string `gorm:"size:50;default:taker" json:"role"` // taker, instructor
	IsActive bool   `gorm:"default:true" json:"is_active"`
}

// EvalResponse records that a user submitted answers for an evaluation.
type EvalResponse struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	EvaluationID uint       `gorm:"index:idx_eval_owner;not null" json:"evaluation_id"`
	OwnerID      string     `gorm:"index:idx_eval_owner;size:255;not null" json:"owner_id"`
	GroupID      string     `gorm:"size:255" json:"group_id"`
	SubmittedAt  *time.Time `json:"submitted_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (Evaluation) TableName() string   { return "evaluations" }
func (AssignGroup) TableName() string  { return "assign_groups" }
func (GroupMember) TableName() string  { return "group_members" }
func (EvalResponse) TableName() string { return "eval_responses" }
