// Command walkgen posts synthetic walks to a running walkplan service and
// verifies the schedules it returns.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/walkplan/internal/loadgen"
	"github.com/okian/walkplan/pkg/logger"
)

const defaultRunTimeout = 10 * time.Minute

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := loadgen.NewConfig()
	var (
		day        string
		runTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "walkgen",
		Short: "Generate walk postings against a walkplan service",
		Example: `  walkgen --walks 50000 --workers 16 --url http://localhost:8080
  walkgen --duplicates 0.1 --output postings.json --verbose`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			level := "info"
			if cfg.Verbose {
				level = "debug"
			}
			if err := logger.Init(logger.WithWriter(cmd.ErrOrStderr()), logger.WithLevel(level)); err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			if day != "" {
				d, err := time.Parse(time.DateOnly, day)
				if err != nil {
					return fmt.Errorf("invalid --day %q: %w", day, err)
				}
				cfg.Day = d
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithTimeout(ctx, runTimeout)
			defer cancel()

			_, err := loadgen.Run(ctx, cfg)
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.BaseURL, "url", cfg.BaseURL, "base URL of the service")
	f.IntVar(&cfg.Walks, "walks", cfg.Walks, "number of walks to generate and submit")
	f.IntVar(&cfg.Walkers, "walkers", cfg.Walkers, "number of walkers to register and schedule")
	f.IntVar(&cfg.Workers, "workers", cfg.Workers, "number of concurrent submitters")
	f.Float64Var(&cfg.DuplicateRatio, "duplicates", cfg.DuplicateRatio, "share of postings resent with the same id")
	f.StringVar(&day, "day", "", "date of the generated walks, YYYY-MM-DD (default tomorrow)")
	f.Int64Var(&cfg.Seed, "seed", cfg.Seed, "random seed for walk slots and profiles")
	f.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "HTTP request timeout")
	f.DurationVar(&cfg.SettleTimeout, "settle-timeout", cfg.SettleTimeout, "how long to wait for intake to store every walk")
	f.DurationVar(&runTimeout, "run-timeout", defaultRunTimeout, "upper bound on the whole run")
	f.StringVar(&cfg.OutputFile, "output", "", "write generated postings to this JSON file")
	f.BoolVarP(&cfg.Verbose, "verbose", "v", false, "log every verified schedule")
	return cmd
}
