package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/harvester/internal/adapters/driven/state/memory"
	"github.com/custodia-labs/harvester/internal/core/domain"
	"github.com/custodia-labs/harvester/internal/core/ports/driven"
)

// mockIndex implements driven.IndexWriter in memory.
type mockIndex struct {
	ensured   []string
	existing  map[string]bool
	upserted  []domain.IndexDocument
	rejectIDs map[string]string
	bulkErr   error
	ensureErr error
}

func (m *mockIndex) EnsureIndex(_ context.Context, index string) error {
	if m.ensureErr != nil {
		return m.ensureErr
	}
	m.ensured = append(m.ensured, index)
	return nil
}

func (m *mockIndex) BulkUpsert(_ context.Context, docs []domain.IndexDocument) (driven.BulkOutcome, error) {
	if m.bulkErr != nil {
		return driven.BulkOutcome{}, m.bulkErr
	}
	var outcome driven.BulkOutcome
	for _, doc := range docs {
		if reason, bad := m.rejectIDs[doc.ID]; bad {
			outcome.Failed++
			outcome.Reasons = append(outcome.Reasons, reason)
			continue
		}
		m.upserted = append(m.upserted, doc)
		outcome.Indexed++
	}
	return outcome, nil
}

func (m *mockIndex) Exists(_ context.Context, _, id string) (bool, error) {
	return m.existing[id], nil
}

// mockConnector implements driven.Connector with canned results.
type mockConnector struct {
	ds        domain.DatasetDescriptor
	records   []domain.NormalizedRecord
	pageErrs  int
	err       error
	gotWindow domain.FetchWindow
	gotKnown  driven.ExistsFunc
}

func (m *mockConnector) Dataset() domain.DatasetDescriptor { return m.ds }

func (m *mockConnector) Harvest(_ context.Context, window domain.FetchWindow, known driven.ExistsFunc) ([]domain.NormalizedRecord, int, error) {
	m.gotWindow = window
	m.gotKnown = known
	return m.records, m.pageErrs, m.err
}

func salesDataset() domain.DatasetDescriptor {
	return domain.DatasetDescriptor{
		Key:        "sales",
		Index:      "listings",
		DateField:  "listed_date_iso",
		BufferDays: 3,
		QualifyIDs: true,
	}
}

func salesRecord(id, date string) domain.NormalizedRecord {
	return domain.NormalizedRecord{
		Identity:   id,
		DatasetKey: "sales",
		Fields:     map[string]any{"id": id, "listed_date_iso": date},
	}
}

func newPipeline(store driven.WatermarkStore, index driven.IndexWriter, connectors ...driven.Connector) *Pipeline {
	return NewPipeline(connectors, index, store, 30, fixedNow)
}

func TestRunHappyPath(t *testing.T) {
	store := memory.NewStoreWith(domain.WatermarkState{"sales": {MaxDate: "2024-01-10"}})
	index := &mockIndex{}
	connector := &mockConnector{
		ds: salesDataset(),
		records: []domain.NormalizedRecord{
			salesRecord("A", "2024-01-18"),
			salesRecord("B", "2024-01-15"),
		},
	}

	report, err := newPipeline(store, index, connector).Run(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, report.RunID)

	// Window derives from the stored watermark minus the buffer.
	assert.Equal(t, day("2024-01-07"), connector.gotWindow.Start)
	assert.Equal(t, day("2024-01-20"), connector.gotWindow.End)
	require.NotNil(t, connector.gotKnown)

	assert.Equal(t, []string{"listings"}, index.ensured)
	require.Len(t, index.upserted, 2)
	assert.Equal(t, "sales-A", index.upserted[0].ID)

	require.Len(t, report.Datasets, 1)
	outcome := report.Datasets[0]
	assert.Equal(t, 2, outcome.Seen)
	assert.Equal(t, 2, outcome.New)
	assert.Equal(t, 2, outcome.Indexed)
	assert.True(t, outcome.WatermarkAdvanced)

	saved, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2024-01-18", saved["sales"].MaxDate)
	assert.Equal(t, 1, store.Saves(), "state persisted exactly once")
}

func TestRunDeduplicatesBeforeIndexing(t *testing.T) {
	store := memory.NewStore()
	index := &mockIndex{}
	connector := &mockConnector{
		ds: salesDataset(),
		records: []domain.NormalizedRecord{
			salesRecord("A", "2024-01-18"),
			salesRecord("A", "2024-01-18"),
			salesRecord("B", "2024-01-15"),
		},
	}

	report, err := newPipeline(store, index, connector).Run(context.Background())
	require.NoError(t, err)

	outcome := report.Datasets[0]
	assert.Equal(t, 3, outcome.Seen)
	assert.Equal(t, 2, outcome.New)
	assert.Equal(t, 1, outcome.Dropped)
	assert.Len(t, index.upserted, 2)
}

func TestRunBlockedDatasetDoesNotStopOthers(t *testing.T) {
	store := memory.NewStoreWith(domain.WatermarkState{"sales": {MaxDate: "2024-01-10"}})
	index := &mockIndex{}

	blocked := &mockConnector{
		ds:  salesDataset(),
		err: &domain.BlockedError{URL: "https://site.example", StatusCode: 403},
	}
	rentals := salesDataset()
	rentals.Key = "rentals"
	rentals.Index = "rentals"
	healthy := &mockConnector{
		ds:      rentals,
		records: []domain.NormalizedRecord{{Identity: "R1", DatasetKey: "rentals", Fields: map[string]any{"listed_date_iso": "2024-01-19"}}},
	}

	report, err := newPipeline(store, index, blocked, healthy).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Datasets, 2)

	assert.True(t, domain.IsBlocked(report.Datasets[0].Aborted))
	assert.False(t, report.Datasets[0].WatermarkAdvanced,
		"an aborted harvest must not advance the watermark")
	assert.True(t, report.Blocked())

	assert.Nil(t, report.Datasets[1].Aborted)
	assert.Equal(t, 1, report.Datasets[1].Indexed)

	saved, _ := store.Load(context.Background())
	assert.Equal(t, "2024-01-10", saved["sales"].MaxDate)
	assert.Equal(t, "2024-01-19", saved["rentals"].MaxDate)
}

func TestRunPartialHarvestStillIndexed(t *testing.T) {
	// A connector can return records alongside an abort error; what was
	// fetched is indexed, only the watermark stays put.
	store := memory.NewStore()
	index := &mockIndex{}
	connector := &mockConnector{
		ds:      salesDataset(),
		records: []domain.NormalizedRecord{salesRecord("A", "2024-01-18")},
		err:     &domain.NetworkError{URL: "page 2", Attempts: 3},
	}

	report, err := newPipeline(store, index, connector).Run(context.Background())
	require.NoError(t, err)

	outcome := report.Datasets[0]
	assert.Equal(t, 1, outcome.Indexed)
	assert.NotNil(t, outcome.Aborted)
	assert.False(t, outcome.WatermarkAdvanced)
}

func TestRunRejectionsCounted(t *testing.T) {
	store := memory.NewStore()
	index := &mockIndex{rejectIDs: map[string]string{"sales-B": "mapper_parsing_exception"}}
	connector := &mockConnector{
		ds: salesDataset(),
		records: []domain.NormalizedRecord{
			salesRecord("A", "2024-01-18"),
			salesRecord("B", "2024-01-18"),
		},
	}

	report, err := newPipeline(store, index, connector).Run(context.Background())
	require.NoError(t, err)

	outcome := report.Datasets[0]
	assert.Equal(t, 1, outcome.Indexed)
	assert.Equal(t, 1, outcome.Failed)
	assert.Nil(t, outcome.Aborted, "per-document rejections are not fatal")
	assert.Equal(t, 1, report.TotalFailed())
}

func TestRunEmptyHarvestLeavesWatermark(t *testing.T) {
	store := memory.NewStoreWith(domain.WatermarkState{"sales": {MaxDate: "2024-01-10"}})
	index := &mockIndex{}
	connector := &mockConnector{ds: salesDataset()}

	report, err := newPipeline(store, index, connector).Run(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Datasets[0].WatermarkAdvanced)

	saved, _ := store.Load(context.Background())
	assert.Equal(t, "2024-01-10", saved["sales"].MaxDate)
}

func TestRunSelectsRequestedDatasets(t *testing.T) {
	store := memory.NewStore()
	index := &mockIndex{}
	sales := &mockConnector{ds: salesDataset()}
	rentals := salesDataset()
	rentals.Key = "rentals"
	other := &mockConnector{ds: rentals}

	report, err := newPipeline(store, index, sales, other).Run(context.Background(), "rentals")
	require.NoError(t, err)
	require.Len(t, report.Datasets, 1)
	assert.Equal(t, "rentals", report.Datasets[0].Key)
}

func TestRunUnknownDataset(t *testing.T) {
	store := memory.NewStore()
	p := newPipeline(store, &mockIndex{}, &mockConnector{ds: salesDataset()})

	_, err := p.Run(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRunNoConnectors(t *testing.T) {
	p := newPipeline(memory.NewStore(), &mockIndex{})
	_, err := p.Run(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoDatasets)
}

func TestRunDroppedCountsDuplicatesAndIdentityless(t *testing.T) {
	store := memory.NewStore()
	index := &mockIndex{}
	connector := &mockConnector{
		ds: salesDataset(),
		records: []domain.NormalizedRecord{
			salesRecord("A", "2024-01-18"),
			salesRecord("A", "2024-01-18"),
			{Identity: "", DatasetKey: "sales", Fields: map[string]any{"name": "ghost"}},
		},
	}

	report, err := newPipeline(store, index, connector).Run(context.Background())
	require.NoError(t, err)

	outcome := report.Datasets[0]
	assert.Equal(t, 3, outcome.Seen)
	assert.Equal(t, 1, outcome.New)
	assert.Equal(t, 2, outcome.Dropped, "one collapsed duplicate, one record without identity")
	assert.Len(t, index.upserted, 1)
}

func TestRunDropsRecordsWithoutIdentity(t *testing.T) {
	store := memory.NewStore()
	index := &mockIndex{}
	connector := &mockConnector{
		ds: salesDataset(),
		records: []domain.NormalizedRecord{
			salesRecord("A", "2024-01-18"),
			{Identity: "", DatasetKey: "sales", Fields: map[string]any{"name": "ghost"}},
		},
	}

	report, err := newPipeline(store, index, connector).Run(context.Background())
	require.NoError(t, err)

	outcome := report.Datasets[0]
	assert.Equal(t, 1, outcome.New)
	assert.Equal(t, 1, outcome.Dropped)
	assert.Len(t, index.upserted, 1)
}

func TestRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := newPipeline(memory.NewStore(), &mockIndex{}, &mockConnector{ds: salesDataset()})
	_, err := p.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunReportTimestamps(t *testing.T) {
	p := newPipeline(memory.NewStore(), &mockIndex{}, &mockConnector{ds: salesDataset()})
	report, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, fixedNow().UTC(), report.StartedAt)
	assert.False(t, report.FinishedAt.Before(report.StartedAt))
}
