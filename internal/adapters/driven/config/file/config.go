// Package file loads harvester configuration from a TOML file:
// index connection, fetch tuning, state backend and the dataset table.
package file

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/harvester/internal/core/domain"
)

// Defaults applied to absent config values.
const (
	DefaultBatchSize    = 500
	DefaultLookbackDays = 30
	DefaultBufferDays   = 3
	DefaultPages        = 50
)

// Config is the full harvester configuration.
type Config struct {
	Index    IndexConfig     `toml:"index"`
	Fetch    FetchConfig     `toml:"fetch"`
	State    StateConfig     `toml:"state"`
	Datasets []DatasetConfig `toml:"datasets"`
}

// IndexConfig holds the search index connection settings.
type IndexConfig struct {
	Endpoint  string `toml:"endpoint"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
	BatchSize int    `toml:"batch_size"`
}

// FetchConfig tunes the polite HTTP client. Zero values take the fetch
// package defaults.
type FetchConfig struct {
	Rate                float64 `toml:"rate"`
	MinDelaySeconds     int     `toml:"min_delay_seconds"`
	MaxDelaySeconds     int     `toml:"max_delay_seconds"`
	BlockedAttempts     int     `toml:"blocked_attempts"`
	BlockedDelaySeconds int     `toml:"blocked_delay_seconds"`
	NetworkAttempts     int     `toml:"network_attempts"`
	TimeoutSeconds      int     `toml:"timeout_seconds"`
	UserAgent           string  `toml:"user_agent"`
}

// MinDelay returns the politeness lower bound as a duration.
func (f FetchConfig) MinDelay() time.Duration {
	return time.Duration(f.MinDelaySeconds) * time.Second
}

// MaxDelay returns the politeness upper bound as a duration.
func (f FetchConfig) MaxDelay() time.Duration {
	return time.Duration(f.MaxDelaySeconds) * time.Second
}

// BlockedDelay returns the challenge backoff seed as a duration.
func (f FetchConfig) BlockedDelay() time.Duration {
	return time.Duration(f.BlockedDelaySeconds) * time.Second
}

// Timeout returns the request timeout as a duration.
func (f FetchConfig) Timeout() time.Duration {
	return time.Duration(f.TimeoutSeconds) * time.Second
}

// StateConfig selects and locates the watermark backend.
type StateConfig struct {
	// Backend is "file" (default) or "sqlite".
	Backend string `toml:"backend"`

	// Path overrides the backend's default location.
	Path string `toml:"path"`

	// LookbackDays bounds the first fetch of a dataset with no watermark.
	LookbackDays int `toml:"lookback_days"`

	// BufferDays is the overlap re-fetched behind the watermark.
	BufferDays int `toml:"buffer_days"`
}

// DatasetConfig is the TOML shape of one dataset.
type DatasetConfig struct {
	Key            string `toml:"key"`
	Label          string `toml:"label"`
	Kind           string `toml:"kind"`
	Endpoint       string `toml:"endpoint"`
	Index          string `toml:"index"`
	DateField      string `toml:"date_field"`
	BufferDays     int    `toml:"buffer_days"`
	QualifyIDs     bool   `toml:"qualify_ids"`
	Pages          int    `toml:"pages"`
	Dialect        string `toml:"dialect"`
	RecordPath     string `toml:"record_path"`
	RecordWrapKey  string `toml:"record_wrap_key"`
	StreamPrefix   string `toml:"stream_prefix"`
	Schema         string `toml:"schema"`
	DetailURLField string `toml:"detail_url_field"`
	Slug           string `toml:"slug"`
}

// Descriptor converts the config entry to its domain form.
func (d DatasetConfig) Descriptor() domain.DatasetDescriptor {
	return domain.DatasetDescriptor{
		Key:            d.Key,
		Label:          d.Label,
		Kind:           domain.SourceKind(d.Kind),
		Endpoint:       d.Endpoint,
		Index:          d.Index,
		DateField:      d.DateField,
		BufferDays:     d.BufferDays,
		QualifyIDs:     d.QualifyIDs,
		Pages:          d.Pages,
		Dialect:        domain.PayloadDialect(d.Dialect),
		RecordPath:     d.RecordPath,
		RecordWrapKey:  d.RecordWrapKey,
		StreamPrefix:   d.StreamPrefix,
		Schema:         d.Schema,
		DetailURLField: d.DetailURLField,
		Slug:           d.Slug,
	}
}

// DefaultPath returns the default config location,
// ~/.harvester/config.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".harvester", "config.toml"), nil
}

// Load reads and validates the config at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Index.BatchSize <= 0 {
		c.Index.BatchSize = DefaultBatchSize
	}
	if c.State.Backend == "" {
		c.State.Backend = "file"
	}
	if c.State.LookbackDays <= 0 {
		c.State.LookbackDays = DefaultLookbackDays
	}
	if c.State.BufferDays <= 0 {
		c.State.BufferDays = DefaultBufferDays
	}
	for i := range c.Datasets {
		d := &c.Datasets[i]
		if d.Kind == "" {
			d.Kind = string(domain.SourceListing)
		}
		if d.Dialect == "" {
			d.Dialect = string(domain.DialectBootstrap)
		}
		if d.Pages <= 0 {
			d.Pages = DefaultPages
		}
		if d.BufferDays <= 0 {
			d.BufferDays = c.State.BufferDays
		}
	}
}

func (c *Config) validate() error {
	if c.Index.Endpoint == "" {
		return fmt.Errorf("index.endpoint is required: %w", domain.ErrInvalidInput)
	}
	switch c.State.Backend {
	case "file", "sqlite":
	default:
		return fmt.Errorf("unknown state backend %q: %w", c.State.Backend, domain.ErrInvalidInput)
	}
	if len(c.Datasets) == 0 {
		return domain.ErrNoDatasets
	}

	seen := make(map[string]bool, len(c.Datasets))
	for _, d := range c.Datasets {
		if d.Key == "" {
			return fmt.Errorf("dataset without key: %w", domain.ErrInvalidInput)
		}
		if seen[d.Key] {
			return fmt.Errorf("duplicate dataset key %q: %w", d.Key, domain.ErrInvalidInput)
		}
		seen[d.Key] = true

		if d.Endpoint == "" {
			return fmt.Errorf("dataset %s: endpoint is required: %w", d.Key, domain.ErrInvalidInput)
		}
		if d.Index == "" {
			return fmt.Errorf("dataset %s: index is required: %w", d.Key, domain.ErrInvalidInput)
		}
		switch domain.SourceKind(d.Kind) {
		case domain.SourceListing, domain.SourcePortal:
		default:
			return fmt.Errorf("dataset %s: unknown kind %q: %w", d.Key, d.Kind, domain.ErrInvalidInput)
		}
		switch domain.PayloadDialect(d.Dialect) {
		case domain.DialectBootstrap, domain.DialectStream:
		default:
			return fmt.Errorf("dataset %s: unknown dialect %q: %w", d.Key, d.Dialect, domain.ErrInvalidInput)
		}
	}
	return nil
}

// Dataset returns the config entry for key.
func (c *Config) Dataset(key string) (DatasetConfig, bool) {
	for _, d := range c.Datasets {
		if d.Key == key {
			return d, true
		}
	}
	return DatasetConfig{}, false
}
