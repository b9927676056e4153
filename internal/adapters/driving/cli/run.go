package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/harvester/internal/core/domain"
)

var runCmd = &cobra.Command{
	Use:   "run [dataset...]",
	Short: "Harvest datasets into the search index",
	Long: `Runs the ingestion pipeline for the named datasets, or for every
configured dataset when none are named. Each dataset fetches only the
window since its watermark, and a dataset that fails does not stop
the others.

The command exits non-zero when any dataset was stopped by an
anti-bot challenge, so scheduled runs surface blocks immediately.`,
	RunE: runHarvest,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runHarvest(cmd *cobra.Command, args []string) error {
	if pipelineRunner == nil {
		if err := ensureServices(); err != nil {
			return err
		}
	}

	report, err := pipelineRunner.Run(cmd.Context(), args...)
	if report != nil {
		printReport(cmd, report)
	}
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}
	if report.Blocked() {
		return errors.New("one or more datasets hit an anti-bot challenge")
	}
	return nil
}

func printReport(cmd *cobra.Command, report *domain.RunReport) {
	elapsed := report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond)
	cmd.Printf("Run %s (%s)\n", report.RunID, elapsed)

	for _, d := range report.Datasets {
		if d.Aborted != nil {
			cmd.Printf("  %-12s ABORTED: %v\n", d.Key, d.Aborted)
			if d.Indexed > 0 {
				cmd.Printf("  %-12s %d document(s) indexed before the abort\n", "", d.Indexed)
			}
			continue
		}

		cmd.Printf("  %-12s seen %d, new %d, indexed %d", d.Key, d.Seen, d.New, d.Indexed)
		if d.Failed > 0 {
			cmd.Printf(", %d rejected", d.Failed)
		}
		if d.Dropped > 0 {
			cmd.Printf(", %d dropped", d.Dropped)
		}
		if d.PageErrors > 0 {
			cmd.Printf(", %d page error(s)", d.PageErrors)
		}
		if d.WatermarkAdvanced {
			cmd.Printf(" (watermark advanced)")
		}
		cmd.Println()
	}

	cmd.Printf("Total: %d indexed, %d rejected\n", report.TotalIndexed(), report.TotalFailed())
}
