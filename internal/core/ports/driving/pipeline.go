package driving

import (
	"context"

	"github.com/custodia-labs/harvester/internal/core/domain"
)

// PipelineRunner executes ingestion runs.
type PipelineRunner interface {
	// Run processes the named datasets, or all configured datasets when
	// keys is empty. A dataset that aborts does not stop the others;
	// its outcome carries the abort error. The watermark state is
	// persisted once, after all datasets finish.
	Run(ctx context.Context, keys ...string) (*domain.RunReport, error)
}
