package driven

import (
	"context"

	"github.com/custodia-labs/harvester/internal/core/domain"
)

// WatermarkStore persists per-dataset watermark state between runs.
type WatermarkStore interface {
	// Load reads the full state. A missing backing file or empty table
	// is equivalent to an empty state, not an error.
	Load(ctx context.Context) (domain.WatermarkState, error)

	// Save writes the full state atomically. Called once per run, after
	// every dataset has been processed or explicitly skipped, so a crash
	// mid-run never persists a partially advanced watermark.
	Save(ctx context.Context, state domain.WatermarkState) error

	// Close releases any underlying resources.
	Close() error
}
