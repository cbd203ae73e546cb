package dvf

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"parcel-locator/internal/repository"
)

const DefaultBatchSize = 1000

// Sink stores parsed mutations. Duplicates are ignored by the sink.
type Sink interface {
	ImportBatch(ctx context.Context, mutations []repository.DVFMutation) (int64, error)
}

type ImportStats struct {
	Mutations int
	Parcels   int
	Inserted  int64
	Skipped   int
}

// Import streams r into sink in batches.
func Import(ctx context.Context, r *Reader, sink Sink, batchSize int, log zerolog.Logger) (ImportStats, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	var (
		stats ImportStats
		batch = make([]repository.DVFMutation, 0, batchSize)
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := sink.ImportBatch(ctx, batch)
		if err != nil {
			return fmt.Errorf("import batch: %w", err)
		}
		stats.Inserted += n
		log.Debug().Int("rows", len(batch)).Int64("inserted", n).Msg("dvf batch stored")
		batch = batch[:0]
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		parcels, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, err
		}
		stats.Mutations++
		stats.Parcels += len(parcels)
		batch = append(batch, parcels...)
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return stats, err
			}
		}
	}
	if err := flush(); err != nil {
		return stats, err
	}
	stats.Skipped = r.Skipped()

	log.Info().
		Int("mutations", stats.Mutations).
		Int("parcels", stats.Parcels).
		Int64("inserted", stats.Inserted).
		Int("skipped", stats.Skipped).
		Msg("dvf import finished")
	return stats, nil
}
