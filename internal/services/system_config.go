package services

import (
	"strconv"
	"time"

	"github.com/coursekit/evalserver/internal/models"
	"gorm.io/gorm"
)

// DeliveryMode controls what the send phase does with queued emails.
type DeliveryMode string

const (
	DeliverySend DeliveryMode = "send" // dispatch through SMTP
	DeliveryLog  DeliveryMode = "log"  // log instead of dispatching
	DeliveryNone DeliveryMode = "none" // do nothing
)

// ParseDeliveryMode maps a stored setting value to a DeliveryMode,
// falling back to log-only for unknown values.
func ParseDeliveryMode(v string) DeliveryMode {
	switch DeliveryMode(v) {
	case DeliverySend, DeliveryLog, DeliveryNone:
		return DeliveryMode(v)
	}
	return DeliveryLog
}

type SystemConfigService struct {
	db *gorm.DB
}

func NewSystemConfigService(db *gorm.DB) *SystemConfigService {
	return &SystemConfigService{db: db}
}

func (s *SystemConfigService) Get(key string) (string, error) {
	var cfg models.SystemConfig
	if err := s.db.Where("`key` = ?", key).First(&cfg).Error; err != nil {
		return "", err
	}
	return cfg.Value, nil
}

func (s *SystemConfigService) GetWithDefault(key, defaultValue string) string {
	value, err := s.Get(key)
	if err != nil {
		return defaultValue
	}
	return value
}

func (s *SystemConfigService) Set(key, value string) error {
	var cfg models.SystemConfig
	err := s.db.Where("`key` = ?", key).First(&cfg).Error
	if err == gorm.ErrRecordNotFound {
		cfg = models.SystemConfig{
			Key:   key,
			Value: value,
		}
		return s.db.Create(&cfg).Error
	}
	if err != nil {
		return err
	}
	return s.db.Model(&cfg).Update("value", value).Error
}

func (s *SystemConfigService) GetByGroup(group string) ([]models.SystemConfig, error) {
	var configs []models.SystemConfig
	if err := s.db.Where("`group` = ?", group).Find(&configs).Error; err != nil {
		return nil, err
	}
	return configs, nil
}

func (s *SystemConfigService) getInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(s.GetWithDefault(key, strconv.Itoa(defaultValue)))
	if err != nil {
		return defaultValue
	}
	return v
}

func (s *SystemConfigService) getBool(key string, defaultValue bool) bool {
	return s.GetWithDefault(key, strconv.FormatBool(defaultValue)) == "true"
}

// --- Delivery settings (coordinator tunables) ---

func (s *SystemConfigService) DeliveryMode() DeliveryMode {
	return ParseDeliveryMode(s.GetWithDefault("email_delivery_mode", string(DeliveryLog)))
}

func (s *SystemConfigService) LogRecipients() bool {
	return s.getBool("email_log_recipients", false)
}

// LocksSize is the number of lock partitions for group and email work.
func (s *SystemConfigService) LocksSize() int {
	n := s.getInt("email_locks_size", 10)
	if n < 1 {
		n = 1
	}
	return n
}

func (s *SystemConfigService) BatchSize() int {
	return s.getInt("email_batch_size", 50)
}

func (s *SystemConfigService) WaitInterval() time.Duration {
	return time.Duration(s.getInt("email_wait_seconds", 5)) * time.Second
}

func (s *SystemConfigService) ReportEvery() int {
	return s.getInt("email_report_every", 25)
}

func (s *SystemConfigService) CycleInterval() time.Duration {
	return time.Duration(s.getInt("email_cycle_minutes", 5)) * time.Minute
}

// LockLease is deliberately much longer than any processing pass; it exists
// to reclaim partitions from crashed holders, not to bound normal work.
func (s *SystemConfigService) LockLease() time.Duration {
	return time.Duration(s.getInt("email_lease_hours", 48)) * time.Hour
}

func (s *SystemConfigService) BusinessDaysOnly() bool {
	return s.getBool("email_business_days_only", false)
}

func (s *SystemConfigService) CountryCode() string {
	return s.GetWithDefault("email_country_code", "NONE")
}

// --- Settings API types ---

type DeliveryConfigResponse struct {
	Mode             string `json:"mode"`
	LogRecipients    bool   `json:"log_recipients"`
	LocksSize        int    `json:"locks_size"`
	BatchSize        int    `json:"batch_size"`
	WaitSeconds      int    `json:"wait_seconds"`
	ReportEvery      int    `json:"report_every"`
	CycleMinutes     int    `json:"cycle_minutes"`
	LeaseHours       int    `json:"lease_hours"`
	BusinessDaysOnly bool   `json:"business_days_only"`
	CountryCode      string `json:"country_code"`
}

func (s *SystemConfigService) GetDeliveryConfig() *DeliveryConfigResponse {
	return &DeliveryConfigResponse{
		Mode:             string(s.DeliveryMode()),
		LogRecipients:    s.LogRecipients(),
		LocksSize:        s.LocksSize(),
		BatchSize:        s.BatchSize(),
		WaitSeconds:      s.getInt("email_wait_seconds", 5),
		ReportEvery:      s.ReportEvery(),
		CycleMinutes:     s.getInt("email_cycle_minutes", 5),
		LeaseHours:       s.getInt("email_lease_hours", 48),
		BusinessDaysOnly: s.BusinessDaysOnly(),
		CountryCode:      s.CountryCode(),
	}
}

type UpdateDeliveryConfigRequest struct {
	Mode             *string `json:"mode"`
	LogRecipients    *bool   `json:"log_recipients"`
	LocksSize        *int    `json:"locks_size"`
	BatchSize        *int    `json:"batch_size"`
	WaitSeconds      *int    `json:"wait_seconds"`
	ReportEvery      *int    `json:"report_every"`
	CycleMinutes     *int    `json:"cycle_minutes"`
	LeaseHours       *int    `json:"lease_hours"`
	BusinessDaysOnly *bool   `json:"business_days_only"`
	CountryCode      *string `json:"country_code"`
}

func (s *SystemConfigService) UpdateDeliveryConfig(req *UpdateDeliveryConfigRequest) error {
	if req.Mode != nil {
		if err := s.Set("email_delivery_mode", string(ParseDeliveryMode(*req.Mode))); err != nil {
			return err
		}
	}
	if req.LogRecipients != nil {
		if err := s.Set("email_log_recipients", strconv.FormatBool(*req.LogRecipients)); err != nil {
			return err
		}
	}
	if req.LocksSize != nil {
		if err := s.Set("email_locks_size", strconv.Itoa(*req.LocksSize)); err != nil {
			return err
		}
	}
	if req.BatchSize != nil {
		if err := s.Set("email_batch_size", strconv.Itoa(*req.BatchSize)); err != nil {
			return err
		}
	}
	if req.WaitSeconds != nil {
		if err := s.Set("email_wait_seconds", strconv.Itoa(*req.WaitSeconds)); err != nil {
			return err
		}
	}
	if req.ReportEvery != nil {
		if err := s.Set("email_report_every", strconv.Itoa(*req.ReportEvery)); err != nil {
			return err
		}
	}
	if req.CycleMinutes != nil {
		if err := s.Set("email_cycle_minutes", strconv.Itoa(*req.CycleMinutes)); err != nil {
			return err
		}
	}
	if req.LeaseHours != nil {
		if err := s.Set("email_lease_hours", strconv.Itoa(*req.LeaseHours)); err != nil {
			return err
		}
	}
	if req.BusinessDaysOnly != nil {
		if err := s.Set("email_business_days_only", strconv.FormatBool(*req.BusinessDaysOnly)); err != nil {
			return err
		}
	}
	if req.CountryCode != nil {
		if err := s.Set("email_country_code", *req.CountryCode); err != nil {
			return err
		}
	}
	return nil
}

type EmailConfigResponse struct {
	Enabled     bool   `json:"enabled"`
	Host        string `json:"host"`
	Port        int    `json:"port"`
	Username    string `json:"username"`
	From        string `json:"from"`
	UseTLS      bool   `json:"use_tls"`
	PasswordSet bool   `json:"password_set"`
}

func (s *SystemConfigService) GetEmailConfig() *EmailConfigResponse {
	port, _ := strconv.Atoi(s.GetWithDefault("email_port", "587"))
	return &EmailConfigResponse{
		Enabled:     s.getBool("email_enabled", false),
		Host:        s.GetWithDefault("email_host", ""),
		Port:        port,
		Username:    s.GetWithDefault("email_username", ""),
		From:        s.GetWithDefault("email_from", ""),
		UseTLS:      s.getBool("email_use_tls", false),
		PasswordSet: s.GetWithDefault("email_password", "") != "",
	}
}

type UpdateEmailConfigRequest struct {
	Enabled  *bool   `json:"enabled"`
	Host     *string `json:"host"`
	Port     *int    `json:"port"`
	Username *string `json:"username"`
	Password *string `json:"password"`
	From     *string `json:"from"`
	UseTLS   *bool   `json:"use_tls"`
}

func (s *SystemConfigService) UpdateEmailConfig(req *UpdateEmailConfigRequest) error {
	if req.Enabled != nil {
		if err := s.Set("email_enabled", strconv.FormatBool(*req.Enabled)); err != nil {
			return err
		}
	}
	if req.Host != nil {
		if err := s.Set("email_host", *req.Host); err != nil {
			return err
		}
	}
	if req.Port != nil {
		if err := s.Set("email_port", strconv.Itoa(*req.Port)); err != nil {
			return err
		}
	}
	if req.Username != nil {
		if err := s.Set("email_username", *req.Username); err != nil {
			return err
		}
	}
	if req.Password != nil && *req.Password != "" {
		if err := s.Set("email_password", *req.Password); err != nil {
			return err
		}
	}
	if req.From != nil {
		if err := s.Set("email_from", *req.From); err != nil {
			return err
		}
	}
	if req.UseTLS != nil {
		if err := s.Set("email_use_tls", strconv.FormatBool(*req.UseTLS)); err != nil {
			return err
		}
	}
	return nil
}
