package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gormazar/gormazar-api/models"
)

// UserStore persists users and their scanned-marker sets.
type UserStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

// WithTx returns a store bound to tx.
func (s *UserStore) WithTx(tx *gorm.DB) *UserStore {
	return &UserStore{db: tx}
}

// Register creates the user if absent. created is true only for the request whose
// insert actually landed, so concurrent registrations of one id yield a single creation.
func (s *UserStore) Register(ctx context.Context, id string) (bool, error) {
	u := models.User{ID: id}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&u)
	if res.Error != nil {
		return false, fmt.Errorf("register user: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// AddScan adds markerID to the user's scanned set and returns the whole set.
// Re-adding a member is a no-op. The insert commits before the set is read back,
// so of two racing scans the later read always sees both members.
func (s *UserStore) AddScan(ctx context.Context, userID, markerID string) ([]string, error) {
	db := s.db.WithContext(ctx)
	if err := s.exists(db, userID); err != nil {
		return nil, err
	}

	scan := models.UserScan{UserID: userID, MarkerID: markerID, CreatedAt: time.Now()}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&scan).Error; err != nil {
		return nil, fmt.Errorf("add scan: %w", err)
	}
	return s.scannedMarkers(db, userID)
}

// MarkCompleted flips the completion flag. It reports true only for the call that
// performed the false -> true transition.
func (s *UserStore) MarkCompleted(ctx context.Context, userID string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND completed = ?", userID, false).
		Updates(map[string]interface{}{"completed": true})
	if res.Error != nil {
		return false, fmt.Errorf("mark completed: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// AddSessionTime adds seconds to the user's cumulative time and returns the new total.
func (s *UserStore) AddSessionTime(ctx context.Context, userID string, seconds float64) (float64, error) {
	var u models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.exists(tx, userID); err != nil {
			return err
		}
		if seconds != 0 {
			if err := tx.Model(&models.User{}).
				Where("id = ?", userID).
				Updates(map[string]interface{}{"total_time": gorm.Expr("total_time + ?", seconds)}).Error; err != nil {
				return err
			}
		}
		return tx.Where("id = ?", userID).Take(&u).Error
	})
	if err != nil {
		return 0, notFound(err)
	}
	return u.TotalTime, nil
}

// Get loads a user along with the markers it has scanned.
func (s *UserStore) Get(ctx context.Context, id string) (models.User, []string, error) {
	db := s.db.WithContext(ctx)
	var u models.User
	if err := db.Where("id = ?", id).Take(&u).Error; err != nil {
		return models.User{}, nil, notFound(err)
	}
	scanned, err := s.scannedMarkers(db, id)
	if err != nil {
		return models.User{}, nil, err
	}
	return u, scanned, nil
}

func (s *UserStore) exists(db *gorm.DB, id string) error {
	var n int64
	if err := db.Model(&models.User{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *UserStore) scannedMarkers(db *gorm.DB, userID string) ([]string, error) {
	scanned := []string{}
	if err := db.Model(&models.UserScan{}).
		Where("user_id = ?", userID).
		Order("created_at, marker_id").
		Pluck("marker_id", &scanned).Error; err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}
	return scanned, nil
}
