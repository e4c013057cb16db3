package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gormazar/gormazar-api/models"
)

// MarkerStore persists markers and their scan counters.
type MarkerStore struct {
	db *gorm.DB
}

func NewMarkerStore(db *gorm.DB) *MarkerStore {
	return &MarkerStore{db: db}
}

// WithTx returns a store bound to tx.
func (s *MarkerStore) WithTx(tx *gorm.DB) *MarkerStore {
	return &MarkerStore{db: tx}
}

// Seed inserts markers whose id is not yet present and leaves existing rows untouched.
// It returns how many rows were created.
func (s *MarkerStore) Seed(ctx context.Context, markers []models.Marker) (int64, error) {
	if len(markers) == 0 {
		return 0, nil
	}
	rows := make([]models.Marker, len(markers))
	for i, m := range markers {
		rows[i] = models.Marker{ID: m.ID, Name: m.Name}
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows)
	if res.Error != nil {
		return 0, fmt.Errorf("seed markers: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// RecordScan increments the marker's counter and returns the row as of that increment.
func (s *MarkerStore) RecordScan(ctx context.Context, id string) (models.Marker, error) {
	var m models.Marker
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Marker{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{"scans": gorm.Expr("scans + ?", 1)})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Where("id = ?", id).Take(&m).Error
	})
	if err != nil {
		return models.Marker{}, notFound(err)
	}
	return m, nil
}

// Get loads a single marker.
func (s *MarkerStore) Get(ctx context.Context, id string) (models.Marker, error) {
	var m models.Marker
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&m).Error; err != nil {
		return models.Marker{}, notFound(err)
	}
	return m, nil
}

// List returns all markers ordered by id.
func (s *MarkerStore) List(ctx context.Context) ([]models.Marker, error) {
	var markers []models.Marker
	if err := s.db.WithContext(ctx).Order("id").Find(&markers).Error; err != nil {
		return nil, err
	}
	return markers, nil
}

// Count returns the number of known markers.
func (s *MarkerStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Marker{}).Count(&n).Error
	return n, err
}
