// Package sqlite implements the WatermarkStore port on SQLite. It is
// the backend for deployments where several harvest jobs share one
// state database instead of a state file each.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/harvester/internal/adapters/driven/state/sqlite/migrations"
	"github.com/custodia-labs/harvester/internal/core/domain"
	"github.com/custodia-labs/harvester/internal/core/ports/driven"
)

// Store is a SQLite-backed watermark store.
type Store struct {
	db   *sql.DB
	path string
}

var _ driven.WatermarkStore = (*Store)(nil)

// NewStore opens (or creates) the state database at path. If path is
// empty it defaults to ~/.harvester/state.db.
func NewStore(path string) (*Store, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		path = filepath.Join(home, ".harvester", "state.db")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	// WAL mode so a concurrent watermark read never blocks a writer.
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening state database: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load reads all dataset watermarks.
func (s *Store) Load(ctx context.Context) (domain.WatermarkState, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT dataset_key, max_date FROM watermarks")
	if err != nil {
		return nil, fmt.Errorf("querying watermarks: %w", err)
	}
	defer rows.Close()

	state := domain.WatermarkState{}
	for rows.Next() {
		var key, maxDate string
		if err := rows.Scan(&key, &maxDate); err != nil {
			return nil, fmt.Errorf("scanning watermark: %w", err)
		}
		state[key] = domain.DatasetMark{MaxDate: maxDate}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating watermarks: %w", err)
	}
	return state, nil
}

// Save replaces the stored state with the given one in a single
// transaction. Datasets absent from state are removed.
func (s *Store) Save(ctx context.Context, state domain.WatermarkState) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM watermarks"); err != nil {
		return fmt.Errorf("clearing watermarks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO watermarks (dataset_key, max_date) VALUES (?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for key, mark := range state {
		if _, err := stmt.ExecContext(ctx, key, mark.MaxDate); err != nil {
			return fmt.Errorf("saving watermark %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}
	return nil
}
