package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gormazar/gormazar-api/models"
)

// ActivityStore keeps per-day request counters. Days are "2006-01-02" strings so
// they order the same way on every driver.
type ActivityStore struct {
	db *gorm.DB
}

func NewActivityStore(db *gorm.DB) *ActivityStore {
	return &ActivityStore{db: db}
}

// Record bumps the counter for route on day, creating the row on first use.
func (s *ActivityStore) Record(ctx context.Context, day, route string) error {
	row := models.DailyActivity{Day: day, Route: route, Hits: 1}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "day"}, {Name: "route"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"hits": gorm.Expr("hits + 1"), "updated_at": time.Now()}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("record activity: %w", err)
	}
	return nil
}

// Since returns every row with day >= from, ordered by day then route.
func (s *ActivityStore) Since(ctx context.Context, from string) ([]models.DailyActivity, error) {
	rows := []models.DailyActivity{}
	if err := s.db.WithContext(ctx).
		Where("day >= ?", from).
		Order("day, route").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	return rows, nil
}

// Prune deletes rows older than before and returns how many were removed.
func (s *ActivityStore) Prune(ctx context.Context, before string) (int64, error) {
	res := s.db.WithContext(ctx).Where("day < ?", before).Delete(&models.DailyActivity{})
	if res.Error != nil {
		return 0, fmt.Errorf("prune activity: %w", res.Error)
	}
	return res.RowsAffected, nil
}
