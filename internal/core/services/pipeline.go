package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/harvester/internal/core/domain"
	"github.com/custodia-labs/harvester/internal/core/ports/driven"
	"github.com/custodia-labs/harvester/internal/core/ports/driving"
	"github.com/custodia-labs/harvester/internal/logger"
)

// Pipeline orchestrates one harvest run: per dataset it ensures the
// index, computes the fetch window, harvests, deduplicates and bulk
// upserts, then advances the watermark. Datasets are independent; a
// blocked or unreachable source aborts its own dataset and the run
// moves on. State is loaded once at start and saved once at the end.
type Pipeline struct {
	connectors   []driven.Connector
	index        driven.IndexWriter
	store        driven.WatermarkStore
	lookbackDays int
	now          func() time.Time
}

var _ driving.PipelineRunner = (*Pipeline)(nil)

// NewPipeline creates a pipeline over the given connectors.
func NewPipeline(
	connectors []driven.Connector,
	index driven.IndexWriter,
	store driven.WatermarkStore,
	lookbackDays int,
	now func() time.Time,
) *Pipeline {
	if now == nil {
		now = time.Now
	}
	return &Pipeline{
		connectors:   connectors,
		index:        index,
		store:        store,
		lookbackDays: lookbackDays,
		now:          now,
	}
}

// Run executes a harvest for the named datasets, or all of them when
// keys is empty.
func (p *Pipeline) Run(ctx context.Context, keys ...string) (*domain.RunReport, error) {
	selected, err := p.selectConnectors(keys)
	if err != nil {
		return nil, err
	}

	state, err := p.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading watermark state: %w", err)
	}
	tracker := NewWatermarkTracker(state, p.lookbackDays, p.now)

	report := &domain.RunReport{
		RunID:     uuid.NewString(),
		StartedAt: p.now().UTC(),
	}
	logger.Info("run %s: %d dataset(s)", report.RunID, len(selected))

	for _, connector := range selected {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		report.Datasets = append(report.Datasets, p.runDataset(ctx, connector, tracker))
	}

	report.FinishedAt = p.now().UTC()
	if err := p.store.Save(ctx, tracker.State()); err != nil {
		return report, fmt.Errorf("saving watermark state: %w", err)
	}
	return report, nil
}

// runDataset harvests and indexes one dataset. Failures abort only this
// dataset; the error is recorded on the outcome.
func (p *Pipeline) runDataset(ctx context.Context, connector driven.Connector, tracker *WatermarkTracker) domain.DatasetOutcome {
	ds := connector.Dataset()
	outcome := domain.DatasetOutcome{Key: ds.Key}

	if err := p.index.EnsureIndex(ctx, ds.Index); err != nil {
		outcome.Aborted = err
		logger.Warn("dataset %s: %v", ds.Key, err)
		return outcome
	}

	window := tracker.Window(ds)
	logger.Info("dataset %s: window %s .. %s", ds.Key,
		window.Start.Format(domain.DateLayout), window.End.Format(domain.DateLayout))

	known := func(ctx context.Context, id string) (bool, error) {
		return p.index.Exists(ctx, ds.Index, id)
	}
	records, pageErrors, err := connector.Harvest(ctx, window, known)
	outcome.Seen = len(records)
	outcome.PageErrors = pageErrors
	if err != nil {
		// Keep what was harvested before the abort; it is real data.
		outcome.Aborted = err
		logger.Warn("dataset %s: harvest aborted: %v", ds.Key, err)
	}

	collapsed := CollapseByIdentity(records)
	docs := make([]domain.IndexDocument, 0, len(collapsed))
	for _, rec := range collapsed {
		id := rec.IndexID(ds.QualifyIDs)
		if id == "" {
			outcome.Dropped++
			continue
		}
		docs = append(docs, domain.IndexDocument{Index: ds.Index, ID: id, Source: rec.Fields})
	}
	outcome.Dropped += len(records) - len(collapsed)
	outcome.New = len(docs)

	if len(docs) > 0 {
		bulk, err := p.index.BulkUpsert(ctx, docs)
		outcome.Indexed = bulk.Indexed
		outcome.Failed = bulk.Failed
		if err != nil {
			outcome.Aborted = errors.Join(outcome.Aborted, err)
			logger.Warn("dataset %s: bulk upsert: %v", ds.Key, err)
			return outcome
		}
		for _, reason := range bulk.Reasons {
			logger.Warn("dataset %s: rejected: %s", ds.Key, reason)
		}
	}

	// A dataset that aborted mid-harvest must not advance its watermark:
	// the unharvested remainder would be skipped forever.
	if outcome.Aborted == nil {
		outcome.WatermarkAdvanced = tracker.Observe(ds, collapsed)
	}
	return outcome
}

// selectConnectors resolves the requested dataset keys, keeping the
// configured order. Empty keys selects everything.
func (p *Pipeline) selectConnectors(keys []string) ([]driven.Connector, error) {
	if len(p.connectors) == 0 {
		return nil, domain.ErrNoDatasets
	}
	if len(keys) == 0 {
		return p.connectors, nil
	}

	byKey := make(map[string]driven.Connector, len(p.connectors))
	for _, c := range p.connectors {
		byKey[c.Dataset().Key] = c
	}

	selected := make([]driven.Connector, 0, len(keys))
	for _, key := range keys {
		c, ok := byKey[key]
		if !ok {
			return nil, fmt.Errorf("dataset %q: %w", key, domain.ErrNotFound)
		}
		selected = append(selected, c)
	}
	return selected, nil
}
