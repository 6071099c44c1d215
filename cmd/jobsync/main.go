// Command jobsync runs sync invocations, maintenance and the cron scheduler
// from the command line.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"job-sync/internal/app"
	"job-sync/internal/config"
	"job-sync/internal/pkg/logger"

	"github.com/spf13/cobra"
)

var (
	logLevel    string
	bootTimeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:           "jobsync",
	Short:         "Job posting ingestion and sync",
	Long:          "jobsync pulls postings from public job boards into Postgres, keeps them fresh and removes duplicates.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL")
	rootCmd.PersistentFlags().DurationVar(&bootTimeout, "boot-timeout", time.Minute, "time allowed to connect dependencies")
}

func main() {
	if err := config.LoadEnvFiles(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (config.Config, logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	lg, err := logger.New(logger.Config{Level: cfg.Log.Level, Development: cfg.Log.Development})
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, lg, nil
}

// withContainer builds the dependency container, hands it to fn and closes
// it afterwards.
func withContainer(ctx context.Context, fn func(ctx context.Context, c *app.Container) error) error {
	cfg, lg, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = lg.Sync() }()

	bootCtx, cancel := context.WithTimeout(ctx, bootTimeout)
	c, err := app.NewContainer(bootCtx, cfg, lg)
	cancel()
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	return fn(ctx, c)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
