package domain

import "time"

// DateLayout is the wire format for watermark dates.
const DateLayout = "2006-01-02"

// DatasetMark holds the persisted watermark for one dataset.
type DatasetMark struct {
	// MaxDate is the maximum date value observed across all runs,
	// formatted with DateLayout.
	MaxDate string `json:"max_date"`
}

// WatermarkState maps dataset keys to their last-seen maximum date.
// It is owned exclusively by the watermark tracker: read at run start,
// written atomically at run end, single writer per dataset per run.
type WatermarkState map[string]DatasetMark

// Get returns the stored maximum date for a dataset, if any.
func (s WatermarkState) Get(key string) (time.Time, bool) {
	mark, ok := s[key]
	if !ok || mark.MaxDate == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(DateLayout, mark.MaxDate)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Set stores the maximum date for a dataset.
func (s WatermarkState) Set(key string, max time.Time) {
	s[key] = DatasetMark{MaxDate: max.Format(DateLayout)}
}

// Clone returns a deep copy of the state.
func (s WatermarkState) Clone() WatermarkState {
	out := make(WatermarkState, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// FetchWindow bounds an incremental fetch.
type FetchWindow struct {
	// Start is the first date to fetch, inclusive.
	Start time.Time

	// End is the last date to fetch, inclusive. Normally today.
	End time.Time
}
