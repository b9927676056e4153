package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown dataset kind or dialect.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrNoDatasets indicates a run was requested with nothing to do.
	ErrNoDatasets = errors.New("no datasets configured")

	// ErrIndexUnavailable indicates the search index is not configured.
	ErrIndexUnavailable = errors.New("search index unavailable")
)

// BlockedError indicates the upstream served an anti-bot challenge
// instead of content. Retried with long backoff; once exhausted the
// dataset aborts so operators see the block instead of partial garbage.
type BlockedError struct {
	URL        string
	StatusCode int
	Marker     string
}

func (e *BlockedError) Error() string {
	if e.Marker != "" {
		return fmt.Sprintf("fetch: blocked by challenge (%s) at %s", e.Marker, e.URL)
	}
	return fmt.Sprintf("fetch: blocked with status %d at %s", e.StatusCode, e.URL)
}

// NetworkError indicates a plain transport failure that survived the
// retry budget. Fatal to the dataset, not to the run.
type NetworkError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("fetch: %s failed after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ExtractionError indicates no structured payload could be located in a
// fetched page. Fatal to the page, not to the dataset.
type ExtractionError struct {
	URL    string
	Reason string
}

func (e *ExtractionError) Error() string {
	if e.URL == "" {
		return "extract: " + e.Reason
	}
	return fmt.Sprintf("extract: %s: %s", e.URL, e.Reason)
}

// IsBlocked reports whether err is an anti-bot block.
func IsBlocked(err error) bool {
	var be *BlockedError
	return errors.As(err, &be)
}

// IsNetwork reports whether err is an exhausted transport failure.
func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// IsExtraction reports whether err is a payload extraction failure.
func IsExtraction(err error) bool {
	var ee *ExtractionError
	return errors.As(err, &ee)
}
