package services

import (
	"testing"
	"time"
)

func TestParseDeliveryMode(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected DeliveryMode
	}{
		{"send", "send", DeliverySend},
		{"log", "log", DeliveryLog},
		{"none", "none", DeliveryNone},
		{"unknown falls back to log", "broadcast", DeliveryLog},
		{"empty falls back to log", "", DeliveryLog},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseDeliveryMode(tt.input); got != tt.expected {
				t.Errorf("ParseDeliveryMode(%q) = %q, expected %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSystemConfigSetGet(t *testing.T) {
	settings := NewSystemConfigService(setupTestDB(t))

	if _, err := settings.Get("missing_key"); err == nil {
		t.Error("Get should fail for a missing key")
	}
	if got := settings.GetWithDefault("missing_key", "fallback"); got != "fallback" {
		t.Errorf("GetWithDefault = %q, expected fallback", got)
	}

	if err := settings.Set("email_batch_size", "30"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got, _ := settings.Get("email_batch_size"); got != "30" {
		t.Errorf("Get = %q, expected 30", got)
	}

	// Overwrite
	if err := settings.Set("email_batch_size", "40"); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	if settings.BatchSize() != 40 {
		t.Errorf("BatchSize = %d, expected 40", settings.BatchSize())
	}
}

func TestDeliverySettingDefaults(t *testing.T) {
	settings := NewSystemConfigService(setupTestDB(t))

	if got := settings.DeliveryMode(); got != DeliveryLog {
		t.Errorf("DeliveryMode default = %q, expected log", got)
	}
	if settings.LogRecipients() {
		t.Error("LogRecipients should default to false")
	}
	if got := settings.LocksSize(); got != 10 {
		t.Errorf("LocksSize default = %d, expected 10", got)
	}
	if got := settings.BatchSize(); got != 50 {
		t.Errorf("BatchSize default = %d, expected 50", got)
	}
	if got := settings.WaitInterval(); got != 5*time.Second {
		t.Errorf("WaitInterval default = %s, expected 5s", got)
	}
	if got := settings.CycleInterval(); got != 5*time.Minute {
		t.Errorf("CycleInterval default = %s, expected 5m", got)
	}
	if got := settings.LockLease(); got != 48*time.Hour {
		t.Errorf("LockLease default = %s, expected 48h", got)
	}
	if got := settings.CountryCode(); got != "NONE" {
		t.Errorf("CountryCode default = %q, expected NONE", got)
	}
}

func TestLocksSizeFloor(t *testing.T) {
	settings := NewSystemConfigService(setupTestDB(t))
	settings.Set("email_locks_size", "0")
	if got := settings.LocksSize(); got != 1 {
		t.Errorf("LocksSize with 0 configured = %d, expected floor of 1", got)
	}
}

func TestUpdateDeliveryConfig(t *testing.T) {
	settings := NewSystemConfigService(setupTestDB(t))

	mode := "send"
	batch := 20
	logRecipients := true
	err := settings.UpdateDeliveryConfig(&UpdateDeliveryConfigRequest{
		Mode:          &mode,
		BatchSize:     &batch,
		LogRecipients: &logRecipients,
	})
	if err != nil {
		t.Fatalf("UpdateDeliveryConfig: %v", err)
	}

	cfg := settings.GetDeliveryConfig()
	if cfg.Mode != "send" {
		t.Errorf("Mode = %q, expected send", cfg.Mode)
	}
	if cfg.BatchSize != 20 {
		t.Errorf("BatchSize = %d, expected 20", cfg.BatchSize)
	}
	if !cfg.LogRecipients {
		t.Error("LogRecipients should be true")
	}
	// Untouched fields keep their defaults.
	if cfg.CycleMinutes != 5 {
		t.Errorf("CycleMinutes = %d, expected default 5", cfg.CycleMinutes)
	}
}

func TestUpdateEmailConfigKeepsPassword(t *testing.T) {
	settings := NewSystemConfigService(setupTestDB(t))

	pw := "secret"
	host := "smtp.example.edu"
	if err := settings.UpdateEmailConfig(&UpdateEmailConfigRequest{Host: &host, Password: &pw}); err != nil {
		t.Fatalf("UpdateEmailConfig: %v", err)
	}

	// An empty password in a later update must not clear the stored one.
	empty := ""
	if err := settings.UpdateEmailConfig(&UpdateEmailConfigRequest{Password: &empty}); err != nil {
		t.Fatalf("UpdateEmailConfig: %v", err)
	}

	if got, _ := settings.Get("email_password"); got != "secret" {
		t.Errorf("password = %q, expected to stay secret", got)
	}
	cfg := settings.GetEmailConfig()
	if !cfg.PasswordSet {
		t.Error("PasswordSet should be true")
	}
	if cfg.Host != "smtp.example.edu" {
		t.Errorf("Host = %q", cfg.Host)
	}
}
