package main

import (
	"context"
	"fmt"
	"strings"

	"job-sync/internal/app"
	"job-sync/internal/domain/syncrun"
	"job-sync/internal/pipeline"

	"github.com/spf13/cobra"
)

var runCommand = &cobra.Command{
	Use:   "run [daily|hourly|manual]",
	Short: "Run one sync invocation",
	Long: `Runs one sync and prints its summary.

daily syncs every source in full and then ages out old postings.
hourly syncs the top sources incrementally.
manual syncs every source, or only --source when given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSyncCmd,
}

var (
	runSource      string
	runIncremental bool
	runStaleDays   int
	runExpiryDays  int
)

func init() {
	runCommand.Flags().StringVarP(&runSource, "source", "s", "", "sync a single source (manual mode only)")
	runCommand.Flags().BoolVarP(&runIncremental, "incremental", "i", false, "fetch only recent postings")
	runCommand.Flags().IntVar(&runStaleDays, "stale-days", 0, "override the stale threshold for lifecycle")
	runCommand.Flags().IntVar(&runExpiryDays, "expiry-days", 0, "override the expiry threshold for lifecycle")

	rootCmd.AddCommand(runCommand)
}

func runSyncCmd(cmd *cobra.Command, args []string) error {
	mode := syncrun.TypeManual
	if len(args) == 1 {
		mode = syncrun.Type(strings.ToLower(strings.TrimSpace(args[0])))
	}
	req := pipeline.RunRequest{
		Mode:        mode,
		Source:      runSource,
		Incremental: runIncremental,
		StaleDays:   runStaleDays,
		ExpiryDays:  runExpiryDays,
	}

	return withContainer(cmd.Context(), func(ctx context.Context, c *app.Container) error {
		c.RecoverAbandonedRuns(ctx)

		sum, err := c.Runner.Run(ctx, req)
		if pErr := printJSON(cmd.OutOrStdout(), sum); pErr != nil {
			return pErr
		}
		if err != nil {
			return err
		}
		if sum.Status == syncrun.StatusFailed {
			return fmt.Errorf("sync run %s failed: %d source errors", sum.RunID, len(sum.Errors))
		}
		return nil
	})
}
