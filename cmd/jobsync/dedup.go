package main

import (
	"context"
	"fmt"

	"job-sync/internal/app"
	"job-sync/internal/pipeline"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var dedupCommand = &cobra.Command{
	Use:   "dedup",
	Short: "Remove duplicate postings",
	Long:  "Runs the exact (source + external id) and content (title + company + location) duplicate passes.",
	RunE:  runDedupCmd,
}

var (
	dedupPass   string
	dedupDryRun bool
)

func init() {
	dedupCommand.Flags().StringVar(&dedupPass, "pass", "", "run only one pass: exact or content")
	dedupCommand.Flags().BoolVar(&dedupDryRun, "dry-run", false, "report duplicate groups without deleting")

	rootCmd.AddCommand(dedupCommand)
}

func runDedupCmd(cmd *cobra.Command, _ []string) error {
	return withContainer(cmd.Context(), func(ctx context.Context, c *app.Container) error {
		var reports []pipeline.DedupReport
		switch dedupPass {
		case "":
			r, err := c.Dedup.Run(ctx, dedupDryRun)
			if err != nil {
				return err
			}
			reports = r
		case string(pipeline.PassExact), string(pipeline.PassContent):
			r, err := c.Dedup.RunPass(ctx, pipeline.DedupPass(dedupPass), dedupDryRun)
			if err != nil {
				return err
			}
			reports = []pipeline.DedupReport{r}
		default:
			return fmt.Errorf("unknown pass %q", dedupPass)
		}

		if !dedupDryRun {
			if _, err := c.Redis.InvalidateJobLists(ctx); err != nil {
				c.Log.Warn("invalidate job lists failed", zap.Error(err))
			}
		}
		return printJSON(cmd.OutOrStdout(), reports)
	})
}
