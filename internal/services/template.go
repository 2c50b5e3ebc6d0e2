package services

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/coursekit/evalserver/internal/models"
	"gorm.io/gorm"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// RenderTemplate substitutes {{name}} placeholders in text with values.
// Any placeholder without a matching value is an error: a half-rendered
// email must never reach a recipient.
func RenderTemplate(text string, values map[string]string) (string, error) {
	var missing []string
	out := placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
		key := placeholderPattern.FindStringSubmatch(match)[1]
		v, ok := values[key]
		if !ok {
			missing = append(missing, key)
			return match
		}
		return v
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("unresolved placeholders: %s", strings.Join(missing, ", "))
	}
	return out, nil
}

type EmailTemplateService struct {
	db *gorm.DB
}

func NewEmailTemplateService(db *gorm.DB) *EmailTemplateService {
	return &EmailTemplateService{db: db}
}

func (s *EmailTemplateService) GetByID(id uint) (*models.EmailTemplate, error) {
	var tmpl models.EmailTemplate
	if err := s.db.First(&tmpl, id).Error; err != nil {
		return nil, err
	}
	return &tmpl, nil
}

// GetDefault returns the system default template for an email type.
func (s *EmailTemplateService) GetDefault(emailType models.EmailType) (*models.EmailTemplate, error) {
	var tmpl models.EmailTemplate
	err := s.db.Where("type = ? AND is_default = ?", emailType, true).First(&tmpl).Error
	if err != nil {
		return nil, fmt.Errorf("no default template for type %s: %w", emailType, err)
	}
	return &tmpl, nil
}

// ForEvaluation resolves the template an evaluation should use for the
// given email type, falling back to the system default when the
// evaluation has no explicit template assigned.
func (s *EmailTemplateService) ForEvaluation(eval *models.Evaluation, emailType models.EmailType) (*models.EmailTemplate, error) {
	var id *uint
	switch emailType {
	case models.EmailTypeAvailable:
		id = eval.AvailableTemplateID
	case models.EmailTypeReminder:
		id = eval.ReminderTemplateID
	default:
		return nil, fmt.Errorf("unknown email type: %s", emailType)
	}
	if id != nil {
		return s.GetByID(*id)
	}
	return s.GetDefault(emailType)
}

func (s *EmailTemplateService) List(emailType models.EmailType) ([]models.EmailTemplate, error) {
	var templates []models.EmailTemplate
	query := s.db.Order("is_default DESC, name ASC")
	if emailType != "" {
		query = query.Where("type = ?", emailType)
	}
	if err := query.Find(&templates).Error; err != nil {
		return nil, err
	}
	return templates, nil
}

type CreateTemplateRequest struct {
	Name        string           `json:"name" binding:"required"`
	Description string           `json:"description"`
	Type        models.EmailType `json:"type" binding:"required"`
	Subject     string           `json:"subject" binding:"required"`
	Message     string           `json:"message" binding:"required"`
}

func (s *EmailTemplateService) Create(req *CreateTemplateRequest, createdBy uint) (*models.EmailTemplate, error) {
	if req.Type != models.EmailTypeAvailable && req.Type != models.EmailTypeReminder {
		return nil, fmt.Errorf("unknown email type: %s", req.Type)
	}
	tmpl := models.EmailTemplate{
		Name:        req.Name,
		Description: req.Description,
		Type:        req.Type,
		Subject:     req.Subject,
		Message:     req.Message,
		CreatedBy:   createdBy,
	}
	if err := s.db.Create(&tmpl).Error; err != nil {
		return nil, err
	}
	return &tmpl, nil
}

type UpdateTemplateRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Subject     *string `json:"subject"`
	Message     *string `json:"message"`
}

func (s *EmailTemplateService) Update(id uint, req *UpdateTemplateRequest) (*models.EmailTemplate, error) {
	tmpl, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	if tmpl.IsSystem {
		return nil, fmt.Errorf("system templates cannot be modified")
	}
	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Subject != nil {
		updates["subject"] = *req.Subject
	}
	if req.Message != nil {
		updates["message"] = *req.Message
	}
	if len(updates) > 0 {
		if err := s.db.Model(tmpl).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return tmpl, nil
}

func (s *EmailTemplateService) Delete(id uint) error {
	tmpl, err := s.GetByID(id)
	if err != nil {
		return err
	}
	if tmpl.IsSystem {
		return fmt.Errorf("system templates cannot be deleted")
	}
	return s.db.Delete(tmpl).Error
}
