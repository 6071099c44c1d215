package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"job-sync/internal/app"
	"job-sync/internal/database/migration"
	"job-sync/migrations"

	"github.com/spf13/cobra"
)

var migrateCommand = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE:  runMigrateCmd,
}

var migrateStatus bool

func init() {
	migrateCommand.Flags().BoolVar(&migrateStatus, "status", false, "list migrations and whether they are applied")

	rootCmd.AddCommand(migrateCommand)
}

func runMigrateCmd(cmd *cobra.Command, _ []string) error {
	return withContainer(cmd.Context(), func(ctx context.Context, c *app.Container) error {
		if !migrateStatus {
			if err := c.Migrate(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		}

		r := migration.Runner{FS: migrations.FS, Log: c.Log}
		st, err := r.Status(ctx, c.DB.SQLDB())
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "VERSION\tNAME\tAPPLIED")
		for _, s := range st {
			applied := "pending"
			if s.Applied && s.AppliedAt != nil {
				applied = s.AppliedAt.UTC().Format("2006-01-02 15:04:05")
			} else if s.Applied {
				applied = "yes"
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\n", s.Version, s.Name, applied)
		}
		return tw.Flush()
	})
}
