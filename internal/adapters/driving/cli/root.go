// Package cli implements the harvester command-line interface.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/harvester/internal/adapters/driven/config/file"
	"github.com/custodia-labs/harvester/internal/adapters/driven/index/elastic"
	filestate "github.com/custodia-labs/harvester/internal/adapters/driven/state/file"
	sqlitestate "github.com/custodia-labs/harvester/internal/adapters/driven/state/sqlite"
	"github.com/custodia-labs/harvester/internal/connectors/listing"
	"github.com/custodia-labs/harvester/internal/connectors/portal"
	"github.com/custodia-labs/harvester/internal/core/ports/driven"
	"github.com/custodia-labs/harvester/internal/core/ports/driving"
	"github.com/custodia-labs/harvester/internal/core/services"
	"github.com/custodia-labs/harvester/internal/fetch"
	"github.com/custodia-labs/harvester/internal/logger"
)

// version is set by Execute from the build's version string.
var version = "dev"

var (
	verboseMode bool
	configPath  string
)

// Services used by the commands. Wired lazily from the config file on
// first use; tests swap these for mocks.
var (
	pipelineRunner driving.PipelineRunner
	watermarkStore driven.WatermarkStore
)

var rootCmd = &cobra.Command{
	Use:   "harvester",
	Short: "Incremental listing harvester",
	Long: `Harvester pulls property listings and open-data portal datasets
from their public pages, normalises the embedded payloads and loads
them into a search index. Runs are incremental: each dataset keeps a
date watermark and only the window since the last run is fetched.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verboseMode)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verboseMode, "verbose", "v", false,
		"print progress details to stderr")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"config file (default ~/.harvester/config.toml)")
}

// Execute runs the root command with the given build version.
func Execute(v string) error {
	version = v
	return rootCmd.Execute()
}

// ensureServices loads the config and wires the pipeline on first use.
// Commands that only print static information never pay this cost.
func ensureServices() error {
	if pipelineRunner != nil {
		return nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fetcher := fetch.New(fetch.Options{
		Timeout:         cfg.Fetch.Timeout(),
		Rate:            cfg.Fetch.Rate,
		MinDelay:        cfg.Fetch.MinDelay(),
		MaxDelay:        cfg.Fetch.MaxDelay(),
		BlockedAttempts: cfg.Fetch.BlockedAttempts,
		BlockedDelay:    cfg.Fetch.BlockedDelay(),
		NetworkAttempts: cfg.Fetch.NetworkAttempts,
		UserAgent:       cfg.Fetch.UserAgent,
	})

	index := elastic.New(elastic.Options{
		Endpoint:  cfg.Index.Endpoint,
		Username:  cfg.Index.Username,
		Password:  cfg.Index.Password,
		BatchSize: cfg.Index.BatchSize,
	})

	store, err := openStateStore(cfg.State)
	if err != nil {
		return err
	}

	connectors, err := buildConnectors(cfg, fetcher)
	if err != nil {
		return err
	}

	watermarkStore = store
	pipelineRunner = services.NewPipeline(connectors, index, store, cfg.State.LookbackDays, nil)
	return nil
}

// ensureStore wires only the watermark store, for commands that inspect
// state without touching the network.
func ensureStore() error {
	if watermarkStore != nil {
		return nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStateStore(cfg.State)
	if err != nil {
		return err
	}
	watermarkStore = store
	return nil
}

func loadConfig() (*file.Config, error) {
	path := configPath
	if path == "" {
		var err error
		if path, err = file.DefaultPath(); err != nil {
			return nil, err
		}
	}
	return file.Load(path)
}

func openStateStore(sc file.StateConfig) (driven.WatermarkStore, error) {
	switch sc.Backend {
	case "sqlite":
		return sqlitestate.NewStore(sc.Path)
	default:
		return filestate.NewStore(sc.Path)
	}
}

func buildConnectors(cfg *file.Config, fetcher driven.Fetcher) ([]driven.Connector, error) {
	// Portal datasets often share one page; the cache fetches it once.
	cache := portal.NewPageCache(fetcher)

	connectors := make([]driven.Connector, 0, len(cfg.Datasets))
	for _, d := range cfg.Datasets {
		ds := d.Descriptor()
		var (
			c   driven.Connector
			err error
		)
		if d.Kind == "portal" {
			c, err = portal.New(ds, fetcher, cache, nil)
		} else {
			c, err = listing.New(ds, fetcher, nil)
		}
		if err != nil {
			return nil, fmt.Errorf("dataset %s: %w", d.Key, err)
		}
		connectors = append(connectors, c)
	}
	return connectors, nil
}
