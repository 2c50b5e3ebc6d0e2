package models

import (
	"fmt"

	"github.com/coursekit/evalserver/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

func InitDB(cfg *config.DatabaseConfig) error {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
		// Map driver-specific errors (unique violations in particular) onto
		// gorm's error values so callers can branch on them.
		TranslateError: true,
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return fmt.Errorf("failed to connect database: %w", err)
	}

	DB = db
	return nil
}

func AutoMigrate() error {
	return DB.AutoMigrate(
		&User{},
		&Evaluation{},
		&AssignGroup{},
		&GroupMember{},
		&EvalResponse{},
		&EmailTemplate{},
		&EmailLock{},
		&QueuedGroup{},
		&QueuedEmail{},
		&SystemConfig{},
		&SystemLog{},
	)
}

func GetDB() *gorm.DB {
	return DB
}

// SeedDefaultData creates default templates and settings if not exists
func SeedDefaultData() error {
	var templateCount int64
	DB.Model(&EmailTemplate{}).Where("is_system = ?", true).Count(&templateCount)
	if templateCount == 0 {
		defaultAvailable := EmailTemplate{
			Name:        "Default Available Notification",
			Description: "Sent to each eligible respondent when an evaluation opens",
			Type:        EmailTypeAvailable,
			Subject:     "{{tool_title}}: {{eval_title}} is ready for you ({{group_title}})",
			Message: `Dear {{user_name}},

The evaluation "{{eval_title}}" for {{group_title}} is now open.

You can fill it out from your dashboard:
{{dashboard_url}}

Please respond by {{due_date}}.

This message was sent automatically by {{tool_title}} ({{system_url}}).
Questions? Contact {{helpdesk_email}}.`,
			IsDefault: true,
			IsSystem:  true,
		}
		if err := DB.Create(&defaultAvailable).Error; err != nil {
			return err
		}

		defaultReminder := EmailTemplate{
			Name:        "Default Reminder Notification",
			Description: "Sent to respondents who have not yet submitted",
			Type:        EmailTypeReminder,
			Subject:     "{{tool_title}}: reminder for {{eval_title}} ({{group_title}})",
			Message: `Dear {{user_name}},

You have not yet responded to the evaluation "{{eval_title}}" for {{group_title}}.

Your earliest pending due date is {{due_date}}. Respond from your dashboard:
{{dashboard_url}}

This message was sent automatically by {{tool_title}} ({{system_url}}).
Questions? Contact {{helpdesk_email}}.`,
			IsDefault: true,
			IsSystem:  true,
		}
		if err := DB.Create(&defaultReminder).Error; err != nil {
			return err
		}
	}

	// Create default system configs
	defaultConfigs := []SystemConfig{
		{Key: "email_enabled", Value: "false", Type: "bool", Group: "email", Label: "Enable SMTP Delivery"},
		{Key: "email_host", Value: "", Type: "string", Group: "email", Label: "SMTP Server Host"},
		{Key: "email_port", Value: "587", Type: "int", Group: "email", Label: "SMTP Server Port"},
		{Key: "email_username", Value: "", Type: "string", Group: "email", Label: "SMTP Username"},
		{Key: "email_password", Value: "", Type: "string", Group: "email", Label: "SMTP Password"},
		{Key: "email_from", Value: "", Type: "string", Group: "email", Label: "From Address"},
		{Key: "email_use_tls", Value: "false", Type: "bool", Group: "email", Label: "Use TLS"},
		{Key: "email_delivery_mode", Value: "log", Type: "string", Group: "delivery", Label: "Delivery Mode (send/log/none)"},
		{Key: "email_log_recipients", Value: "false", Type: "bool", Group: "delivery", Label: "Log Recipients of Sent Emails"},
		{Key: "email_locks_size", Value: "10", Type: "int", Group: "delivery", Label: "Email Lock Partitions"},
		{Key: "email_batch_size", Value: "50", Type: "int", Group: "delivery", Label: "Send Batch Size"},
		{Key: "email_wait_seconds", Value: "5", Type: "int", Group: "delivery", Label: "Pause Between Batches (seconds)"},
		{Key: "email_report_every", Value: "25", Type: "int", Group: "delivery", Label: "Progress Report Interval"},
		{Key: "email_cycle_minutes", Value: "5", Type: "int", Group: "delivery", Label: "Delivery Cycle Interval (minutes)"},
		{Key: "email_lease_hours", Value: "48", Type: "int", Group: "delivery", Label: "Lock Lease Duration (hours)"},
		{Key: "email_business_days_only", Value: "false", Type: "bool", Group: "delivery", Label: "Send Emails on Business Days Only"},
		{Key: "email_country_code", Value: "NONE", Type: "string", Group: "delivery", Label: "Business Calendar Country"},
		{Key: "log_retention_days", Value: "30", Type: "int", Group: "system", Label: "System Log Retention Days"},
	}

	for _, cfg := range defaultConfigs {
		var count int64
		DB.Model(&SystemConfig{}).Where("key = ?", cfg.Key).Count(&count)
		if count == 0 {
			if err := DB.Create(&cfg).Error; err != nil {
				return err
			}
		}
	}

	return nil
}
