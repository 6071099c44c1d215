package main

import (
	"context"
	"os/signal"
	"syscall"

	"job-sync/internal/app"
	"job-sync/internal/domain/syncrun"
	"job-sync/internal/scheduler"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var scheduleCommand = &cobra.Command{
	Use:   "schedule",
	Short: "Run daily and hourly syncs on a cron schedule",
	Long:  "Stays in the foreground and fires runs on SCHEDULE_DAILY and SCHEDULE_HOURLY until interrupted.",
	RunE:  runScheduleCmd,
}

func init() {
	rootCmd.AddCommand(scheduleCommand)
}

func runScheduleCmd(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return withContainer(ctx, func(ctx context.Context, c *app.Container) error {
		if err := c.Migrate(ctx); err != nil {
			return err
		}
		c.RecoverAbandonedRuns(ctx)

		timeout := c.Config.Sync.FullBudget + c.Config.Sync.LifecycleTimeout
		s := scheduler.New(c.Runner, c.Config.Schedule, timeout, c.Log)
		if err := s.Start(ctx); err != nil {
			return err
		}
		c.Log.Info("next scheduled runs",
			zap.Time("daily", s.Next(syncrun.TypeDaily)),
			zap.Time("hourly", s.Next(syncrun.TypeHourly)),
		)

		<-ctx.Done()
		s.Stop()
		return nil
	})
}
