package services

import (
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/coursekit/evalserver/pkg/logger"
)

// Mailer dispatches a single message to one or more recipients. It returns
// the addresses that were accepted for delivery. With deferExceptions set,
// per-recipient failures are logged and skipped instead of aborting the
// whole send; an empty result with a nil error then means every recipient
// failed individually.
type Mailer interface {
	Send(from string, to []string, subject, body string, deferExceptions bool) ([]string, error)
}

// EmailService is the SMTP-backed Mailer. Connection settings come from the
// settings table so they can be changed without a restart.
type EmailService struct {
	settings *SystemConfigService
}

func NewEmailService(settings *SystemConfigService) *EmailService {
	return &EmailService{settings: settings}
}

type smtpConfig struct {
	enabled  bool
	host     string
	port     int
	username string
	password string
	from     string
	useTLS   bool
}

func (s *EmailService) loadConfig() smtpConfig {
	port, _ := strconv.Atoi(s.settings.GetWithDefault("email_port", "587"))
	return smtpConfig{
		enabled:  s.settings.GetWithDefault("email_enabled", "false") == "true",
		host:     s.settings.GetWithDefault("email_host", ""),
		port:     port,
		username: s.settings.GetWithDefault("email_username", ""),
		password: s.settings.GetWithDefault("email_password", ""),
		from:     s.settings.GetWithDefault("email_from", ""),
		useTLS:   s.settings.GetWithDefault("email_use_tls", "false") == "true",
	}
}

// FromAddress returns the configured sender address, falling back to the
// provided default when unset.
func (s *EmailService) FromAddress(fallback string) string {
	if from := s.settings.GetWithDefault("email_from", ""); from != "" {
		return from
	}
	return fallback
}

func (s *EmailService) Send(from string, to []string, subject, body string, deferExceptions bool) ([]string, error) {
	cfg := s.loadConfig()
	if !cfg.enabled {
		return nil, fmt.Errorf("smtp delivery is disabled")
	}
	if cfg.host == "" {
		return nil, fmt.Errorf("smtp host not configured")
	}
	if from == "" {
		from = cfg.from
	}
	if from == "" {
		return nil, fmt.Errorf("no sender address configured")
	}

	if !deferExceptions {
		if err := s.deliver(cfg, from, to, subject, body); err != nil {
			return nil, err
		}
		return to, nil
	}

	sent := make([]string, 0, len(to))
	for _, addr := range to {
		if err := s.deliver(cfg, from, []string{addr}, subject, body); err != nil {
			logger.Warnf("Email to %s failed, continuing: %v", addr, err)
			continue
		}
		sent = append(sent, addr)
	}
	return sent, nil
}

func (s *EmailService) deliver(cfg smtpConfig, from string, to []string, subject, body string) error {
	addr := fmt.Sprintf("%s:%d", cfg.host, cfg.port)
	msg := buildMessage(from, to, subject, body)

	var auth smtp.Auth
	if cfg.username != "" {
		auth = smtp.PlainAuth("", cfg.username, cfg.password, cfg.host)
	}

	if cfg.useTLS {
		return s.deliverTLS(cfg, addr, auth, from, to, msg)
	}
	return smtp.SendMail(addr, auth, from, to, msg)
}

// deliverTLS speaks SMTP over an implicit TLS connection (typically port 465),
// as opposed to STARTTLS which SendMail negotiates on its own.
func (s *EmailService) deliverTLS(cfg smtpConfig, addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
	tlsConfig := &tls.Config{ServerName: cfg.host}
	conn, err := tls.Dial("tcp", addr, tlsConfig)
	if err != nil {
		return fmt.Errorf("tls dial: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, cfg.host)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	defer client.Close()

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("smtp mail: %w", err)
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp rcpt %s: %w", rcpt, err)
		}
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close: %w", err)
	}
	return client.Quit()
}

func buildMessage(from string, to []string, subject, body string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + strings.Join(to, ", ") + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}
