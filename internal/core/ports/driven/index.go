package driven

import (
	"context"

	"github.com/custodia-labs/harvester/internal/core/domain"
)

// BulkOutcome reports the result of one bulk submission. Per-document
// failures are counted, never raised.
type BulkOutcome struct {
	// Indexed is how many documents the index accepted.
	Indexed int

	// Failed is how many documents the index rejected.
	Failed int

	// Reasons holds a sample of rejection reasons for the run report.
	Reasons []string
}

// Add accumulates another outcome into this one.
func (o *BulkOutcome) Add(other BulkOutcome) {
	o.Indexed += other.Indexed
	o.Failed += other.Failed
	o.Reasons = append(o.Reasons, other.Reasons...)
}

// IndexWriter performs idempotent writes against the search index.
type IndexWriter interface {
	// EnsureIndex creates the index with the harvest mapping when it
	// does not exist yet. Creating an existing index is a no-op.
	EnsureIndex(ctx context.Context, index string) error

	// BulkUpsert submits documents in batches, replacing each document
	// by ID. Documents with an empty ID must be rejected by the caller;
	// the writer drops them defensively rather than letting the server
	// assign an ID.
	BulkUpsert(ctx context.Context, docs []domain.IndexDocument) (BulkOutcome, error)

	// Exists performs a point existence check by document ID.
	Exists(ctx context.Context, index, id string) (bool, error)
}

// ExistsFunc adapts a point existence check for boundary deduplication.
type ExistsFunc func(ctx context.Context, id string) (bool, error)
