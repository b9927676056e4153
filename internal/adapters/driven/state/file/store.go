// Package file implements the WatermarkStore port as a single JSON
// file, the default backend. The file maps dataset keys to their
// last-seen maximum date and is written atomically.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/custodia-labs/harvester/internal/core/domain"
	"github.com/custodia-labs/harvester/internal/core/ports/driven"
)

// Store persists watermark state at a fixed path.
type Store struct {
	path string
}

var _ driven.WatermarkStore = (*Store)(nil)

// NewStore creates a Store at path. If path is empty it defaults to
// ~/.harvester/state.json.
func NewStore(path string) (*Store, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		path = filepath.Join(home, ".harvester", "state.json")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}
	return &Store{path: path}, nil
}

// Path returns the state file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the state file. A missing file is an empty state, not an
// error: first runs start from nothing.
func (s *Store) Load(_ context.Context) (domain.WatermarkState, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.WatermarkState{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading state file: %w", err)
	}

	var state domain.WatermarkState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parsing state file %s: %w", s.path, err)
	}
	if state == nil {
		state = domain.WatermarkState{}
	}
	return state, nil
}

// Save writes the state atomically: temp file in the same directory,
// then rename. A crash mid-write never corrupts the previous state.
func (s *Store) Save(_ context.Context, state domain.WatermarkState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".state-*.json")
	if err != nil {
		return fmt.Errorf("creating temp state file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp state file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replacing state file: %w", err)
	}
	return nil
}

// Close is a no-op; the file is not held open between operations.
func (s *Store) Close() error {
	return nil
}
