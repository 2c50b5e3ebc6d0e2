package services

import (
	"time"

	"github.com/coursekit/evalserver/internal/models"
	"github.com/coursekit/evalserver/pkg/logger"
	"gorm.io/gorm"
)

type SystemLogService struct {
	db *gorm.DB
}

func NewSystemLogService(db *gorm.DB) *SystemLogService {
	return &SystemLogService{db: db}
}

func (s *SystemLogService) Log(level, module, action, message string, userID *uint, ip string) {
	entry := models.SystemLog{
		Level:   level,
		Module:  module,
		Action:  action,
		Message: message,
		UserID:  userID,
		IP:      ip,
	}
	if err := s.db.Create(&entry).Error; err != nil {
		logger.Errorf("Failed to write system log: %v", err)
	}
}

func (s *SystemLogService) Info(module, action, message string, userID *uint, ip string) {
	s.Log("info", module, action, message, userID, ip)
}

func (s *SystemLogService) Warning(module, action, message string, userID *uint, ip string) {
	s.Log("warning", module, action, message, userID, ip)
}

func (s *SystemLogService) Error(module, action, message string, userID *uint, ip string) {
	s.Log("error", module, action, message, userID, ip)
}

func (s *SystemLogService) List(level, module string, page, pageSize int) ([]models.SystemLog, int64, error) {
	var logs []models.SystemLog
	var total int64

	query := s.db.Model(&models.SystemLog{})
	if level != "" {
		query = query.Where("level = ?", level)
	}
	if module != "" {
		query = query.Where("module = ?", module)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if page > 0 && pageSize > 0 {
		query = query.Offset((page - 1) * pageSize).Limit(pageSize)
	}
	if err := query.Order("id DESC").Find(&logs).Error; err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}

// CleanupOld removes log entries older than retentionDays.
func (s *SystemLogService) CleanupOld(retentionDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	res := s.db.Where("created_at < ?", cutoff).Delete(&models.SystemLog{})
	return res.RowsAffected, res.Error
}
