package services

import (
	"time"

	"github.com/custodia-labs/harvester/internal/core/domain"
	"github.com/custodia-labs/harvester/internal/logger"
	"github.com/custodia-labs/harvester/internal/normalize"
)

// WatermarkTracker owns the per-dataset fetch watermarks for one run:
// it derives each dataset's fetch window at the start and advances the
// marks as records are observed. The tracker works on an in-memory
// copy; the pipeline persists the final state once at run end.
type WatermarkTracker struct {
	state        domain.WatermarkState
	lookbackDays int
	now          func() time.Time
}

// NewWatermarkTracker wraps the loaded state.
func NewWatermarkTracker(state domain.WatermarkState, lookbackDays int, now func() time.Time) *WatermarkTracker {
	if state == nil {
		state = domain.WatermarkState{}
	}
	return &WatermarkTracker{
		state:        state.Clone(),
		lookbackDays: lookbackDays,
		now:          now,
	}
}

// Window computes the dataset's fetch window. A dataset with no prior
// watermark starts at today minus the lookback; otherwise the start is
// the watermark minus the overlap buffer, clamped so it never lies in
// the future. The end is always today.
func (t *WatermarkTracker) Window(ds domain.DatasetDescriptor) domain.FetchWindow {
	today := t.today()

	prev, ok := t.state.Get(ds.Key)
	if !ok {
		return domain.FetchWindow{
			Start: today.AddDate(0, 0, -t.lookbackDays),
			End:   today,
		}
	}

	start := prev.AddDate(0, 0, -ds.BufferDays)
	if start.After(today) {
		start = today
	}
	return domain.FetchWindow{Start: start, End: today}
}

// Observe folds a dataset's harvested records into the watermark and
// reports whether it advanced. The mark only ever moves forward, and
// never moves on an empty harvest: a silent upstream must not create a
// gap on the day it recovers.
func (t *WatermarkTracker) Observe(ds domain.DatasetDescriptor, records []domain.NormalizedRecord) bool {
	if len(records) == 0 {
		return false
	}

	observed := t.maxDate(ds, records)
	if observed.IsZero() {
		return false
	}

	prev, ok := t.state.Get(ds.Key)
	if ok && !observed.After(prev) {
		return false
	}
	t.state.Set(ds.Key, observed)
	logger.Debug("dataset %s: watermark -> %s", ds.Key, observed.Format(domain.DateLayout))
	return true
}

// maxDate finds the maximum watermark date across records. Datasets
// without a date field watermark on the fetch day itself.
func (t *WatermarkTracker) maxDate(ds domain.DatasetDescriptor, records []domain.NormalizedRecord) time.Time {
	if ds.DateField == "" {
		return t.today()
	}
	var max time.Time
	for _, rec := range records {
		date, ok := normalize.ParseDate(rec.Fields[ds.DateField])
		if ok && date.After(max) {
			max = date
		}
	}
	return max
}

// State returns the tracked state for persistence.
func (t *WatermarkTracker) State() domain.WatermarkState {
	return t.state
}

func (t *WatermarkTracker) today() time.Time {
	return t.now().UTC().Truncate(24 * time.Hour)
}
