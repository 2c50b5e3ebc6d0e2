package services

import (
	"fmt"

	"github.com/coursekit/evalserver/internal/models"
	"gorm.io/gorm"
)

// RecipientResolver determines who should receive a given email type for
// one evaluation/group pair. Injected so alternate eligibility rules can
// be plugged in without touching the delivery machinery.
type RecipientResolver interface {
	Resolve(eval *models.Evaluation, groupID string, emailType models.EmailType) ([]string, error)
}

// DBRecipientResolver is the default resolver: available notifications go
// to every active taker in the group, reminders only to those who have not
// yet submitted a response.
type DBRecipientResolver struct {
	db *gorm.DB
}

func NewDBRecipientResolver(db *gorm.DB) *DBRecipientResolver {
	return &DBRecipientResolver{db: db}
}

func (r *DBRecipientResolver) Resolve(eval *models.Evaluation, groupID string, emailType models.EmailType) ([]string, error) {
	switch emailType {
	case models.EmailTypeAvailable:
		return r.activeTakers(groupID)
	case models.EmailTypeReminder:
		return r.nonResponders(eval.ID, groupID)
	}
	return nil, fmt.Errorf("unknown email type: %s", emailType)
}

func (r *DBRecipientResolver) activeTakers(groupID string) ([]string, error) {
	var ownerIDs []string
	err := r.db.Model(&models.GroupMember{}).
		Where("group_id = ? AND role = ? AND is_active = ?", groupID, models.GroupRoleTaker, true).
		Pluck("user_id", &ownerIDs).Error
	if err != nil {
		return nil, err
	}
	return ownerIDs, nil
}

func (r *DBRecipientResolver) nonResponders(evaluationID uint, groupID string) ([]string, error) {
	var ownerIDs []string
	err := r.db.Model(&models.GroupMember{}).
		Where("group_id = ? AND role = ? AND is_active = ?", groupID, models.GroupRoleTaker, true).
		Where("user_id NOT IN (?)",
			r.db.Model(&models.EvalResponse{}).
				Select("owner_id").
				Where("evaluation_id = ? AND submitted_at IS NOT NULL", evaluationID)).
		Pluck("user_id", &ownerIDs).Error
	if err != nil {
		return nil, err
	}
	return ownerIDs, nil
}
