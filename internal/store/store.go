package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"catmate-tracker/internal/model"
)

var errEmptySchedule = errors.New("schedule has no rows")

// ErrInvalidLimit is returned by LatestRows for a non-positive limit. It is a
// caller error, not a PersistenceError.
var ErrInvalidLimit = errors.New("limit must be positive")

// Store defines the interface for all meal schedule persistence.
type Store interface {
	// AppendSchedule persists a newly generated schedule. Prior rows are kept.
	AppendSchedule(ctx context.Context, rows []model.MealScheduleRow) error
	// ReplaceSchedule drops every stored row and persists rows in their place.
	ReplaceSchedule(ctx context.Context, rows []model.MealScheduleRow) error
	// LatestRows returns the last limit rows in insertion order.
	LatestRows(ctx context.Context, limit int) ([]model.MealScheduleRow, error)
	DB() *gorm.DB
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// AppendSchedule inserts all rows of a schedule in a single transaction.
func (s *gormStore) AppendSchedule(ctx context.Context, rows []model.MealScheduleRow) error {
	if len(rows) == 0 {
		return wrap("append schedule", errEmptySchedule)
	}
	if err := s.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return wrap("append schedule", fmt.Errorf("failed to insert %d rows: %w", len(rows), err))
	}
	return nil
}

// ReplaceSchedule clears the table and inserts rows, atomically.
func (s *gormStore) ReplaceSchedule(ctx context.Context, rows []model.MealScheduleRow) error {
	if len(rows) == 0 {
		return wrap("replace schedule", errEmptySchedule)
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&model.MealScheduleRow{}).Error; err != nil {
			return fmt.Errorf("failed to clear meal rows: %w", err)
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("failed to insert %d rows: %w", len(rows), err)
		}
		return nil
	})
	return wrap("replace schedule", err)
}

// LatestRows fetches the newest rows and returns them oldest first.
func (s *gormStore) LatestRows(ctx context.Context, limit int) ([]model.MealScheduleRow, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidLimit, limit)
	}

	var rows []model.MealScheduleRow
	if err := s.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, wrap("latest rows", err)
	}

	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}
