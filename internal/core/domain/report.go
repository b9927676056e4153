package domain

import "time"

// DatasetOutcome summarises one dataset's share of a run.
type DatasetOutcome struct {
	// Key is the dataset key.
	Key string

	// Seen is how many raw records were extracted.
	Seen int

	// New is how many records survived deduplication.
	New int

	// Indexed is how many documents the index accepted.
	Indexed int

	// Failed is how many documents the index rejected. Per-document
	// failures are counted here, never fatal to the run.
	Failed int

	// Dropped is how many records were discarded before indexing:
	// in-run duplicates collapsed away plus records lacking an identity.
	Dropped int

	// PageErrors counts pages skipped because extraction failed.
	PageErrors int

	// Aborted carries the error that stopped this dataset early, if any.
	// Records already indexed before the abort remain valid.
	Aborted error

	// WatermarkAdvanced reports whether the dataset's watermark moved.
	WatermarkAdvanced bool
}

// RunReport aggregates the outcome of a pipeline run.
type RunReport struct {
	// RunID uniquely identifies the run.
	RunID string

	// StartedAt and FinishedAt bound the run.
	StartedAt  time.Time
	FinishedAt time.Time

	// Datasets holds per-dataset outcomes in processing order.
	Datasets []DatasetOutcome
}

// TotalIndexed sums indexed documents across datasets.
func (r *RunReport) TotalIndexed() int {
	total := 0
	for _, d := range r.Datasets {
		total += d.Indexed
	}
	return total
}

// TotalFailed sums rejected documents across datasets.
func (r *RunReport) TotalFailed() int {
	total := 0
	for _, d := range r.Datasets {
		total += d.Failed
	}
	return total
}

// Blocked reports whether any dataset aborted on an anti-bot challenge.
// Used by the CLI to exit non-zero so operators get alerted.
func (r *RunReport) Blocked() bool {
	for _, d := range r.Datasets {
		if d.Aborted != nil && IsBlocked(d.Aborted) {
			return true
		}
	}
	return false
}
