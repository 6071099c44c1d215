package main

import (
	"context"
	"strings"

	"job-sync/internal/app"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var lifecycleCommand = &cobra.Command{
	Use:   "lifecycle",
	Short: "Age out old postings",
	Long: `Marks postings older than --stale-days stale and deletes stale postings older than
--expiry-days that nobody saved or applied to. Postings with saved jobs or applications are
deactivated instead of deleted.`,
	RunE: runLifecycleCmd,
}

var (
	lifecycleStaleDays        int
	lifecycleExpiryDays       int
	lifecycleReactivateDays   int
	lifecycleDeactivateSource string
)

type lifecycleReport struct {
	Staled      int64 `json:"staled"`
	Deleted     int64 `json:"deleted"`
	Deactivated int64 `json:"deactivated"`
	Reactivated int64 `json:"reactivated,omitempty"`
	SourceOff   int64 `json:"source_deactivated,omitempty"`
}

func init() {
	lifecycleCommand.Flags().IntVar(&lifecycleStaleDays, "stale-days", 0, "stale threshold in days (default SYNC_STALE_DAYS)")
	lifecycleCommand.Flags().IntVar(&lifecycleExpiryDays, "expiry-days", 0, "expiry threshold in days (default SYNC_EXPIRY_DAYS)")
	lifecycleCommand.Flags().IntVar(&lifecycleReactivateDays, "reactivate-days", 0, "also reactivate stale postings synced within this many days")
	lifecycleCommand.Flags().StringVar(&lifecycleDeactivateSource, "deactivate-source", "", "also deactivate every posting of this source")

	rootCmd.AddCommand(lifecycleCommand)
}

func runLifecycleCmd(cmd *cobra.Command, _ []string) error {
	return withContainer(cmd.Context(), func(ctx context.Context, c *app.Container) error {
		staleDays := firstPositive(lifecycleStaleDays, c.Config.Sync.StaleDays)
		expiryDays := firstPositive(lifecycleExpiryDays, c.Config.Sync.ExpiryDays)

		var rep lifecycleReport
		var err error
		if rep.Staled, err = c.Batch.MarkStaleJobs(ctx, staleDays); err != nil {
			return err
		}
		cleaned, err := c.Batch.CleanupExpiredJobs(ctx, expiryDays)
		if err != nil {
			return err
		}
		rep.Deleted, rep.Deactivated = cleaned.Deleted, cleaned.Deactivated

		if lifecycleReactivateDays > 0 {
			if rep.Reactivated, err = c.JobAdmin.Reactivate(ctx, lifecycleReactivateDays); err != nil {
				return err
			}
		}
		if src := strings.TrimSpace(lifecycleDeactivateSource); src != "" {
			if rep.SourceOff, err = c.JobAdmin.DeactivateSource(ctx, src); err != nil {
				return err
			}
		}

		if _, err := c.Redis.InvalidateJobLists(ctx); err != nil {
			c.Log.Warn("invalidate job lists failed", zap.Error(err))
		}
		return printJSON(cmd.OutOrStdout(), rep)
	})
}

func firstPositive(vals ...int) int {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}
