package services

import (
	"fmt"
	"time"

	"github.com/coursekit/evalserver/internal/config"
	"github.com/coursekit/evalserver/internal/models"
	"github.com/coursekit/evalserver/internal/utils"
	"github.com/coursekit/evalserver/pkg/logger"
	"gorm.io/gorm"
)

type AuthService struct {
	db   *gorm.DB
	ldap *LDAPService
	cfg  *config.Config
}

func NewAuthService(db *gorm.DB, ldap *LDAPService, cfg *config.Config) *AuthService {
	return &AuthService{db: db, ldap: ldap, cfg: cfg}
}

type LoginResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Login authenticates locally first, then against LDAP when enabled.
// LDAP users are provisioned on first login.
func (s *AuthService) Login(username, password string) (*LoginResponse, error) {
	var user models.User
	err := s.db.Where("username = ?", username).First(&user).Error

	if err == nil && user.AuthType == "local" {
		if !user.IsActive {
			return nil, fmt.Errorf("account is disabled")
		}
		if !utils.CheckPassword(password, user.Password) {
			return nil, fmt.Errorf("invalid username or password")
		}
		return s.issueToken(&user)
	}

	if s.cfg.LDAP.Enabled {
		return s.loginLDAP(username, password)
	}

	return nil, fmt.Errorf("invalid username or password")
}

func (s *AuthService) loginLDAP(username, password string) (*LoginResponse, error) {
	ldapUser, err := s.ldap.Authenticate(username, password)
	if err != nil {
		logger.Warnf("LDAP authentication failed for %s: %v", username, err)
		return nil, fmt.Errorf("invalid username or password")
	}

	var user models.User
	err = s.db.Where("username = ?", ldapUser.Username).First(&user).Error
	if err == gorm.ErrRecordNotFound {
		user = models.User{
			Username:    ldapUser.Username,
			Email:       ldapUser.Email,
			DisplayName: ldapUser.DisplayName,
			Role:        "user",
			AuthType:    "ldap",
			IsActive:    true,
		}
		if err := s.db.Create(&user).Error; err != nil {
			return nil, fmt.Errorf("failed to provision LDAP user: %w", err)
		}
		logger.Infof("Provisioned LDAP user %s", user.Username)
	} else if err != nil {
		return nil, err
	} else {
		if !user.IsActive {
			return nil, fmt.Errorf("account is disabled")
		}
		// Keep contact details in sync with the directory.
		updates := map[string]interface{}{}
		if ldapUser.Email != "" && ldapUser.Email != user.Email {
			updates["email"] = ldapUser.Email
		}
		if ldapUser.DisplayName != "" && ldapUser.DisplayName != user.DisplayName {
			updates["display_name"] = ldapUser.DisplayName
		}
		if len(updates) > 0 {
			s.db.Model(&user).Updates(updates)
		}
	}

	return s.issueToken(&user)
}

func (s *AuthService) issueToken(user *models.User) (*LoginResponse, error) {
	token, err := utils.GenerateToken(user.ID, user.Username, user.Role, s.cfg.JWT.ExpireHour)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	now := time.Now()
	s.db.Model(user).Update("last_login", now)
	user.LastLogin = &now

	return &LoginResponse{Token: token, User: user}, nil
}

// EnsureAdminUser creates the initial admin account when no user exists.
func (s *AuthService) EnsureAdminUser(username, password string) error {
	var count int64
	if err := s.db.Model(&models.User{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hashed, err := utils.HashPassword(password)
	if err != nil {
		return err
	}
	admin := models.User{
		Username:    username,
		Password:    hashed,
		DisplayName: "Administrator",
		Role:        "admin",
		AuthType:    "local",
		IsActive:    true,
	}
	if err := s.db.Create(&admin).Error; err != nil {
		return err
	}
	logger.Infof("Created initial admin user %s", username)
	return nil
}
