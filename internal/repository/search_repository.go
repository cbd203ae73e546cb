package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("record not found")

func (SearchRun) TableName() string {
	return "search_runs"
}

// SearchRun is one matching request and its ranked result.
type SearchRun struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey"`
	UserID         uuid.UUID      `gorm:"type:uuid;not null;index"`
	Method         string         `gorm:"not null"`
	Zone           datatypes.JSON `gorm:"type:jsonb;not null"`
	Context        datatypes.JSON `gorm:"type:jsonb"`
	Result         datatypes.JSON `gorm:"type:jsonb;not null"`
	CandidateCount int            `gorm:"not null"`
	TopScore       int            `gorm:"not null"`
	PhotoURL       *string
	Partial        bool `gorm:"not null"`
	CreatedAt      time.Time
}

type SearchRepository struct {
	db *gorm.DB
}

func NewSearchRepository(db *gorm.DB) *SearchRepository {
	return &SearchRepository{db: db}
}

func (r *SearchRepository) Create(ctx context.Context, run *SearchRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	if err := r.db.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("failed to create search run: %w", err)
	}
	return nil
}

func (r *SearchRepository) GetByID(ctx context.Context, id uuid.UUID) (*SearchRun, error) {
	var run SearchRun
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ListByUser returns the runs of one user, newest first, without their
// result payload.
func (r *SearchRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]SearchRun, error) {
	query := r.db.WithContext(ctx).
		Model(&SearchRun{}).
		Omit("result").
		Where("user_id = ?", userID).
		Order("created_at DESC")

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var runs []SearchRun
	err := query.Find(&runs).Error
	return runs, err
}

// DeleteOlderThan removes runs created more than days ago.
func (r *SearchRepository) DeleteOlderThan(ctx context.Context, days int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -days)
	result := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&SearchRun{})

	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
