package driven

import (
	"context"

	"github.com/custodia-labs/harvester/internal/core/domain"
)

// Connector harvests normalised records from one dataset's upstream.
// Each source kind (listing site, open-data portal) implements this.
type Connector interface {
	// Dataset returns the descriptor this connector was built for.
	Dataset() domain.DatasetDescriptor

	// Harvest fetches and normalises records for the given window.
	//
	// known is a point existence check against the index. Connectors
	// over recency-sorted feeds use it as a pagination boundary: on the
	// first known identity they stop fetching, since everything beyond
	// is already indexed. Connectors without a sort guarantee ignore it.
	//
	// A page whose payload cannot be extracted is skipped and counted in
	// pageErrors; processing continues where feasible. Blocked and
	// network failures abort the harvest and are returned as-is.
	Harvest(ctx context.Context, window domain.FetchWindow, known ExistsFunc) (records []domain.NormalizedRecord, pageErrors int, err error)
}
