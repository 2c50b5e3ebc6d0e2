package services

import (
	"database/sql"
	"errors"
	"time"

	"github.com/coursekit/evalserver/internal/models"
	"gorm.io/gorm"
)

// LockService coordinates email work across server nodes through lock rows
// in shared storage. Acquisition is a conditional insert/update inside a
// transaction: a lock can be taken only when no row exists, the existing
// row has expired, or the caller already holds it.
type LockService struct {
	db *gorm.DB
}

func NewLockService(db *gorm.DB) *LockService {
	return &LockService{db: db}
}

// TryAcquire attempts to take the named lock for holder with the given lease.
// Returns false without error when another holder has a live lock.
//
// The transaction runs at serializable isolation. Under the default level,
// two nodes racing for the same expired row would each see the stale
// snapshot, both decide the lease has lapsed, and both write a takeover —
// serializable forces one of them to fail instead.
func (s *LockService) TryAcquire(name, holder string, lease time.Duration) (bool, error) {
	acquired := false

	err := s.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()

		var lock models.EmailLock
		err := tx.Where("lock_name = ?", name).First(&lock).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			lock = models.EmailLock{
				LockName:  name,
				LockedBy:  holder,
				LockedAt:  now,
				ExpiresAt: now.Add(lease),
			}
			if err := tx.Create(&lock).Error; err != nil {
				// A concurrent first acquire beat us to the insert; the
				// lock is simply taken.
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return nil
				}
				return err
			}
			acquired = true
			return nil
		}
		if err != nil {
			return err
		}

		// Re-acquire by the current holder or takeover of an expired lease.
		if lock.LockedBy == holder || now.After(lock.ExpiresAt) {
			lock.LockedBy = holder
			lock.LockedAt = now
			lock.ExpiresAt = now.Add(lease)
			if err := tx.Save(&lock).Error; err != nil {
				return err
			}
			acquired = true
		}
		return nil
	}, &sql.TxOptions{Isolation: sql.LevelSerializable})

	return acquired, err
}

// Release drops the named lock if it is held by holder. Returns true when a
// row was actually removed.
func (s *LockService) Release(name, holder string) (bool, error) {
	res := s.db.Where("lock_name = ? AND locked_by = ?", name, holder).
		Delete(&models.EmailLock{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// HeldBy lists lock names with the given prefix currently held by holder.
// Used at startup to find locks left behind by an unclean shutdown.
func (s *LockService) HeldBy(prefix, holder string) ([]string, error) {
	var names []string
	err := s.db.Model(&models.EmailLock{}).
		Where("locked_by = ? AND lock_name LIKE ?", holder, prefix+"%").
		Pluck("lock_name", &names).Error
	if err != nil {
		return nil, err
	}
	return names, nil
}
