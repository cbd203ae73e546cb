package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"parcel-locator/internal/domain/locate"
)

const importBatchSize = 1000

func (DVFMutation) TableName() string {
	return "dvf_mutations"
}

// DVFMutation is one recorded sale from the DVF open data, attached to a
// cadastral parcel.
type DVFMutation struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	MutationID   string    `gorm:"not null;uniqueIndex:ux_dvf_mutation_parcel"`
	ParcelID     string    `gorm:"not null;uniqueIndex:ux_dvf_mutation_parcel;index"`
	MutationDate time.Time `gorm:"type:date;not null"`
	Nature       string
	Price        float64 `gorm:"not null"`
	BuiltSurface float64
	LandSurface  float64
	PropertyType string
	CommuneCode  string
	PostalCode   string
	CreatedAt    time.Time
}

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// LatestForParcels returns the most recent sale of each parcel that has one.
func (r *TransactionRepository) LatestForParcels(ctx context.Context, parcelIDs []string) (map[string]locate.ReferenceTransaction, error) {
	out := make(map[string]locate.ReferenceTransaction, len(parcelIDs))
	if len(parcelIDs) == 0 {
		return out, nil
	}

	var rows []DVFMutation
	err := r.db.WithContext(ctx).
		Raw(`SELECT DISTINCT ON (parcel_id) *
			FROM dvf_mutations
			WHERE parcel_id IN ? AND price > 0
			ORDER BY parcel_id, mutation_date DESC`, parcelIDs).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load dvf mutations: %w", err)
	}

	for _, m := range rows {
		out[m.ParcelID] = m.Reference()
	}
	return out, nil
}

// Reference converts the sale to the scoring context. The land surface is
// preferred since listings of houses quote the plot size.
func (m DVFMutation) Reference() locate.ReferenceTransaction {
	surface := m.LandSurface
	if surface <= 0 {
		surface = m.BuiltSurface
	}
	return locate.ReferenceTransaction{
		ParcelID: m.ParcelID,
		Price:    m.Price,
		Surface:  surface,
		Date:     m.MutationDate,
	}
}

// ImportBatch inserts mutations, skipping those already stored.
func (r *TransactionRepository) ImportBatch(ctx context.Context, mutations []DVFMutation) (int64, error) {
	if len(mutations) == 0 {
		return 0, nil
	}
	now := time.Now()
	for i := range mutations {
		if mutations[i].ID == uuid.Nil {
			mutations[i].ID = uuid.New()
		}
		if mutations[i].CreatedAt.IsZero() {
			mutations[i].CreatedAt = now
		}
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(mutations, importBatchSize)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to import dvf mutations: %w", result.Error)
	}
	return result.RowsAffected, nil
}
