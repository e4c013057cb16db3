package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gormazar/gormazar-api/models"
)

// StatsStore owns the singleton GlobalStats row. Every write is a single
// increment statement, so concurrent updates commute.
type StatsStore struct {
	db *gorm.DB
}

func NewStatsStore(db *gorm.DB) *StatsStore {
	return &StatsStore{db: db}
}

// WithTx returns a store bound to tx.
func (s *StatsStore) WithTx(tx *gorm.DB) *StatsStore {
	return &StatsStore{db: tx}
}

// Ensure creates the zeroed singleton row if it is missing.
func (s *StatsStore) Ensure(ctx context.Context) error {
	row := models.GlobalStats{ID: models.GlobalStatsID}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
		return fmt.Errorf("ensure stats: %w", err)
	}
	return nil
}

func (s *StatsStore) IncrementUniqueUsers(ctx context.Context) error {
	return s.increment(ctx, map[string]interface{}{"unique_users": gorm.Expr("unique_users + ?", 1)})
}

func (s *StatsStore) IncrementCompletedUsers(ctx context.Context) error {
	return s.increment(ctx, map[string]interface{}{"users_completed": gorm.Expr("users_completed + ?", 1)})
}

// AddUserTime adds to the running sum of per-user session time.
func (s *StatsStore) AddUserTime(ctx context.Context, seconds float64) error {
	if seconds == 0 {
		return nil
	}
	return s.increment(ctx, map[string]interface{}{"total_user_time": gorm.Expr("total_user_time + ?", seconds)})
}

// RecordSession counts one finished session of the given duration and returns the
// aggregate as of that update.
func (s *StatsStore) RecordSession(ctx context.Context, duration float64) (models.GlobalStats, error) {
	var st models.GlobalStats
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.GlobalStats{}).
			Where("id = ?", models.GlobalStatsID).
			Updates(map[string]interface{}{
				"sessions_count":     gorm.Expr("sessions_count + ?", 1),
				"total_session_time": gorm.Expr("total_session_time + ?", duration),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Where("id = ?", models.GlobalStatsID).Take(&st).Error
	})
	if err != nil {
		return models.GlobalStats{}, notFound(err)
	}
	return st, nil
}

// Get reads the singleton row.
func (s *StatsStore) Get(ctx context.Context) (models.GlobalStats, error) {
	var st models.GlobalStats
	if err := s.db.WithContext(ctx).Where("id = ?", models.GlobalStatsID).Take(&st).Error; err != nil {
		return models.GlobalStats{}, notFound(err)
	}
	return st, nil
}

// CountUsers counts user rows directly, independent of the counters.
func (s *StatsStore) CountUsers(ctx context.Context) (total, completed int64, err error) {
	db := s.db.WithContext(ctx)
	if err = db.Model(&models.User{}).Count(&total).Error; err != nil {
		return 0, 0, err
	}
	if err = db.Model(&models.User{}).Where("completed = ?", true).Count(&completed).Error; err != nil {
		return 0, 0, err
	}
	return total, completed, nil
}

// ComputeAverageFromUserTimes recomputes the mean cumulative time per user by scanning
// the users table. It costs O(users) and is only used to cross-check total_user_time.
func (s *StatsStore) ComputeAverageFromUserTimes(ctx context.Context) (avg, sum float64, err error) {
	var row struct {
		Total float64
		Users int64
	}
	if err = s.db.WithContext(ctx).Model(&models.User{}).
		Select("COALESCE(SUM(total_time), 0) AS total, COUNT(*) AS users").
		Scan(&row).Error; err != nil {
		return 0, 0, err
	}
	if row.Users == 0 {
		return 0, 0, nil
	}
	return row.Total / float64(row.Users), row.Total, nil
}

func (s *StatsStore) increment(ctx context.Context, cols map[string]interface{}) error {
	res := s.db.WithContext(ctx).Model(&models.GlobalStats{}).
		Where("id = ?", models.GlobalStatsID).
		Updates(cols)
	if res.Error != nil {
		return fmt.Errorf("update stats: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
