package cli

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/harvester/internal/core/domain"
)

var watermarkCmd = &cobra.Command{
	Use:   "watermark",
	Short: "Inspect and adjust dataset watermarks",
	Long: `Shows or edits the per-dataset date watermarks that bound each
incremental run. Setting a watermark back in time makes the next run
re-fetch from that date; clearing it makes the dataset start from the
configured lookback again.`,
	RunE: runWatermarkShow,
}

var watermarkShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current watermarks",
	RunE:  runWatermarkShow,
}

var watermarkSetCmd = &cobra.Command{
	Use:   "set <dataset> <date>",
	Short: "Set a dataset's watermark",
	Long:  `Sets the watermark for one dataset. The date must be YYYY-MM-DD.`,
	Args:  cobra.ExactArgs(2),
	RunE:  runWatermarkSet,
}

var watermarkClearCmd = &cobra.Command{
	Use:   "clear <dataset>",
	Short: "Clear a dataset's watermark",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatermarkClear,
}

func init() {
	watermarkCmd.AddCommand(watermarkShowCmd)
	watermarkCmd.AddCommand(watermarkSetCmd)
	watermarkCmd.AddCommand(watermarkClearCmd)
	rootCmd.AddCommand(watermarkCmd)
}

func runWatermarkShow(cmd *cobra.Command, _ []string) error {
	if watermarkStore == nil {
		if err := ensureStore(); err != nil {
			return err
		}
	}

	state, err := watermarkStore.Load(cmd.Context())
	if err != nil {
		return fmt.Errorf("loading watermark state: %w", err)
	}
	if len(state) == 0 {
		cmd.Println("No watermarks recorded yet.")
		return nil
	}

	keys := make([]string, 0, len(state))
	for key := range state {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		cmd.Printf("%-20s %s\n", key, state[key].MaxDate)
	}
	return nil
}

func runWatermarkSet(cmd *cobra.Command, args []string) error {
	if watermarkStore == nil {
		if err := ensureStore(); err != nil {
			return err
		}
	}

	key, date := args[0], args[1]
	parsed, err := time.Parse(domain.DateLayout, date)
	if err != nil {
		return fmt.Errorf("invalid date %q, want YYYY-MM-DD: %w", date, domain.ErrInvalidInput)
	}

	state, err := watermarkStore.Load(cmd.Context())
	if err != nil {
		return fmt.Errorf("loading watermark state: %w", err)
	}
	if state == nil {
		state = domain.WatermarkState{}
	}
	state.Set(key, parsed)
	if err := watermarkStore.Save(cmd.Context(), state); err != nil {
		return fmt.Errorf("saving watermark state: %w", err)
	}

	cmd.Printf("Watermark for %s set to %s.\n", key, date)
	return nil
}

func runWatermarkClear(cmd *cobra.Command, args []string) error {
	if watermarkStore == nil {
		if err := ensureStore(); err != nil {
			return err
		}
	}

	key := args[0]
	state, err := watermarkStore.Load(cmd.Context())
	if err != nil {
		return fmt.Errorf("loading watermark state: %w", err)
	}
	if _, ok := state[key]; !ok {
		return fmt.Errorf("dataset %q has no watermark: %w", key, domain.ErrNotFound)
	}
	delete(state, key)
	if err := watermarkStore.Save(cmd.Context(), state); err != nil {
		return fmt.Errorf("saving watermark state: %w", err)
	}

	cmd.Printf("Watermark for %s cleared.\n", key)
	return nil
}
