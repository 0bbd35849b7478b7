package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/okian/walkplan/internal/config"
	"github.com/okian/walkplan/internal/domain/engine"
	"github.com/okian/walkplan/internal/domain/schedule"
	"github.com/okian/walkplan/internal/domain/walk"
	"github.com/okian/walkplan/pkg/logger"
)

var errNoFixture = errors.New("missing fixture file")

// planFixture is the YAML input of the plan subcommand. Now pins the clock
// used by the urgency term; it defaults to the current time.
type planFixture struct {
	Now        *time.Time  `yaml:"now"`
	Walker     walk.Walker `yaml:"walker"`
	Candidates []walk.Walk `yaml:"candidates"`
}

func newPlanCmd(cfgPath *string) *cobra.Command {
	var fixture string

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Select the optimal schedule for a walker from a YAML fixture",
		Example: `  walkplan plan -f walks.yaml
  walkplan plan -f walks.yaml --config walkplan.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if fixture == "" {
				return errNoFixture
			}
			if err := logger.Init(logger.WithWriter(cmd.ErrOrStderr())); err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			return runPlan(cmd.Context(), *cfgPath, fixture, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&fixture, "file", "f", "", "walker and candidates fixture (YAML)")
	return cmd
}

func runPlan(ctx context.Context, cfgPath, fixturePath string, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log := logger.Named("plan")

	cfg, err := config.Load(ctx, cfgPath)
	if err != nil {
		return err
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; keeping info", logger.String("log_level", cfg.LogLevel))
	}

	fx, err := readFixture(fixturePath)
	if err != nil {
		return err
	}

	var opts []engine.Option
	if fx.Now != nil {
		now := *fx.Now
		opts = append(opts, engine.WithClock(func() time.Time { return now }))
	}
	eng, err := engine.New(cfg.EngineConfig(), opts...)
	if err != nil {
		return err
	}

	s := eng.SelectOptimal(fx.Walker, fx.Candidates)
	logRejections(ctx, log, s)
	log.Info(ctx, "schedule selected",
		logger.String("walker", fx.Walker.ID),
		logger.Int("candidates", len(fx.Candidates)),
		logger.Int("selected", s.TotalWalks),
		logger.Float64("value", s.TotalValue))

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("write schedule: %w", err)
	}
	return nil
}

func readFixture(path string) (planFixture, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return planFixture{}, fmt.Errorf("read fixture: %w", err)
	}
	var fx planFixture
	if err := yaml.Unmarshal(raw, &fx); err != nil {
		return planFixture{}, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	fx.Candidates = withDurations(fx.Candidates)
	fx.Walker.Committed = withDurations(fx.Walker.Committed)
	return fx, nil
}

// withDurations fills duration_minutes from the interval when a fixture
// leaves it out.
func withDurations(walks []walk.Walk) []walk.Walk {
	for i := range walks {
		if walks[i].DurationMinutes == 0 {
			walks[i].DurationMinutes = int(walks[i].Duration() / time.Minute)
		}
	}
	return walks
}

func logRejections(ctx context.Context, log logger.Logger, s schedule.Schedule) {
	for _, r := range s.Rejected {
		log.Warn(ctx, "candidate rejected", logger.String("walkID", r.ID), logger.String("reason", r.Reason))
	}
}
