package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	// Each matching request with its ranked candidates. The result payload is
	// kept whole so a run can be re-read or exported without recomputation.
	`CREATE TABLE IF NOT EXISTS search_runs (
		id              UUID PRIMARY KEY,
		user_id         UUID NOT NULL,
		method          TEXT NOT NULL,
		zone            JSONB NOT NULL,
		context         JSONB,
		result          JSONB NOT NULL,
		candidate_count INT NOT NULL DEFAULT 0,
		top_score       INT NOT NULL DEFAULT 0,
		photo_url       TEXT,
		partial         BOOLEAN NOT NULL DEFAULT false,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_search_runs_user_created ON search_runs(user_id, created_at DESC);`,
	`CREATE INDEX IF NOT EXISTS idx_search_runs_created_at ON search_runs(created_at);`,

	// DVF sales, one row per (mutation, parcel). Read as price context.
	`CREATE TABLE IF NOT EXISTS dvf_mutations (
		id            UUID PRIMARY KEY,
		mutation_id   TEXT NOT NULL,
		parcel_id     TEXT NOT NULL,
		mutation_date DATE NOT NULL,
		nature        TEXT,
		price         NUMERIC(14,2) NOT NULL,
		built_surface NUMERIC(10,2),
		land_surface  NUMERIC(12,2),
		property_type TEXT,
		commune_code  TEXT,
		postal_code   TEXT,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_dvf_mutation_parcel ON dvf_mutations(mutation_id, parcel_id);`,
	`CREATE INDEX IF NOT EXISTS idx_dvf_mutations_parcel_date ON dvf_mutations(parcel_id, mutation_date DESC);`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
