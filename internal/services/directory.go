package services

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/coursekit/evalserver/internal/config"
	"github.com/coursekit/evalserver/internal/models"
	"gorm.io/gorm"
)

// DirectoryUser is the delivery-relevant view of a person: where to send
// email and how to address them.
type DirectoryUser struct {
	OwnerID      string
	DisplayName  string
	Email        string
	DashboardURL string
}

// UserDirectory resolves owner identifiers to contact details. The
// DB-backed implementation is the default; an LDAP-backed one can stand in
// where accounts are provisioned externally.
type UserDirectory interface {
	Lookup(ownerID string) (*DirectoryUser, error)
	// EarliestDueDate returns the soonest due date among evaluations the
	// user is still expected to respond to, or nil when none are pending.
	EarliestDueDate(ownerID string) (*time.Time, error)
}

type DBDirectory struct {
	db     *gorm.DB
	appCfg *config.AppConfig
}

func NewDBDirectory(db *gorm.DB, appCfg *config.AppConfig) *DBDirectory {
	return &DBDirectory{db: db, appCfg: appCfg}
}

func (d *DBDirectory) Lookup(ownerID string) (*DirectoryUser, error) {
	var user models.User
	if err := d.db.Where("username = ?", ownerID).First(&user).Error; err != nil {
		return nil, fmt.Errorf("user %s not found: %w", ownerID, err)
	}
	name := user.DisplayName
	if name == "" {
		name = user.Username
	}
	return &DirectoryUser{
		OwnerID:      ownerID,
		DisplayName:  name,
		Email:        user.Email,
		DashboardURL: d.appCfg.DashboardURL,
	}, nil
}

// LDAPDirectory wraps the DB directory and backfills contact details from
// LDAP for accounts provisioned there before their first login.
type LDAPDirectory struct {
	db   *DBDirectory
	ldap *LDAPService
}

func NewLDAPDirectory(db *DBDirectory, ldap *LDAPService) *LDAPDirectory {
	return &LDAPDirectory{db: db, ldap: ldap}
}

func (d *LDAPDirectory) Lookup(ownerID string) (*DirectoryUser, error) {
	user, err := d.db.Lookup(ownerID)
	if err == nil && user.Email != "" {
		return user, nil
	}

	ldapUser, ldapErr := d.ldap.LookupUser(ownerID)
	if ldapErr != nil {
		if err != nil {
			return nil, err
		}
		return user, nil
	}

	if user == nil {
		user = &DirectoryUser{
			OwnerID:      ownerID,
			DashboardURL: d.db.appCfg.DashboardURL,
		}
	}
	if user.Email == "" {
		user.Email = ldapUser.Email
	}
	if user.DisplayName == "" || user.DisplayName == ownerID {
		if ldapUser.DisplayName != "" {
			user.DisplayName = ldapUser.DisplayName
		}
	}
	return user, nil
}

func (d *LDAPDirectory) EarliestDueDate(ownerID string) (*time.Time, error) {
	return d.db.EarliestDueDate(ownerID)
}

func (d *DBDirectory) EarliestDueDate(ownerID string) (*time.Time, error) {
	// Active evaluations the user is assigned to as a taker and has not
	// yet submitted a response for.
	var due sql.NullTime
	err := d.db.Model(&models.Evaluation{}).
		Select("MIN(evaluations.due_date)").
		Joins("JOIN assign_groups ON assign_groups.evaluation_id = evaluations.id").
		Joins("JOIN group_members ON group_members.group_id = assign_groups.group_id").
		Where("group_members.user_id = ? AND group_members.role = ? AND group_members.is_active = ?",
			ownerID, models.GroupRoleTaker, true).
		Where("evaluations.state IN ?", []string{models.EvalStateActive, models.EvalStateGracePeriod}).
		Where("evaluations.due_date IS NOT NULL").
		Where("NOT EXISTS (SELECT 1 FROM eval_responses r WHERE r.evaluation_id = evaluations.id AND r.owner_id = ? AND r.submitted_at IS NOT NULL)", ownerID).
		Scan(&due).Error
	if err != nil {
		return nil, err
	}
	if !due.Valid {
		return nil, nil
	}
	t := due.Time
	return &t, nil
}
