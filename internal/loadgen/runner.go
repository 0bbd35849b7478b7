package loadgen

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/walkplan/internal/domain/schedule"
	"github.com/okian/walkplan/internal/domain/walk"
	"github.com/okian/walkplan/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0o750
	filePermission      = 0o600
)

// Submission outcomes.
const (
	outcomeAccepted  = "accepted"
	outcomeDuplicate = "duplicate"
	outcomeThrottled = "throttled"
	outcomeFailed    = "failed"
)

// Run executes a complete load run: register walkers, post walks, wait for
// intake to settle, then fetch and verify each walker's schedule.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := logger.Named("loadgen")
	stats := &Stats{StartTime: time.Now()}
	c := newClient(cfg.BaseURL, cfg.Timeout)
	gen := NewGenerator(cfg.Day, cfg.Seed)

	log.Info(ctx, "starting walkplan load run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("walks", cfg.Walks),
		logger.Int("walkers", cfg.Walkers),
		logger.Int("workers", cfg.Workers),
		logger.Time("day", cfg.Day),
		logger.Float64("duplicateRatio", cfg.DuplicateRatio))

	if err := checkHealth(ctx, c); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	walkers := make([]walk.Walker, cfg.Walkers)
	for i := range walkers {
		walkers[i] = gen.Walker(i)
		if err := putWalker(ctx, c, walkers[i]); err != nil {
			return stats, fmt.Errorf("register walker: %w", err)
		}
	}

	postings := gen.Postings(cfg.Walks)
	stats.Generated = len(postings)
	sends := withDuplicates(postings, cfg.DuplicateRatio)

	submit(ctx, log, c, cfg, sends, stats)

	settled, err := waitSettled(ctx, c, cfg, stats.Accepted)
	stats.Settled = settled
	if err != nil {
		return stats, fmt.Errorf("intake did not settle: %w", err)
	}

	for _, w := range walkers {
		s, err := fetchSchedule(ctx, c, cfg, w.ID)
		if err != nil {
			return stats, fmt.Errorf("schedule for %s: %w", w.ID, err)
		}
		stats.Schedules++
		stats.Scheduled += s.TotalWalks
		if err := verifySchedule(s); err != nil {
			stats.Violations++
			log.Error(ctx, "schedule verification failed", logger.String("walker", w.ID), logger.Error(err))
		} else if cfg.Verbose {
			log.Info(ctx, "schedule verified",
				logger.String("walker", w.ID),
				logger.Int("walks", s.TotalWalks),
				logger.Float64("value", s.TotalValue))
		}
	}

	if cfg.OutputFile != "" {
		if err := savePostings(cfg.OutputFile, postings); err != nil {
			log.Warn(ctx, "failed to save postings", logger.Error(err))
		} else {
			log.Info(ctx, "postings saved", logger.String("file", cfg.OutputFile))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	logStats(ctx, log, stats)

	if stats.Violations > 0 {
		return stats, fmt.Errorf("%d of %d schedules failed verification", stats.Violations, stats.Schedules)
	}
	return stats, nil
}

// checkHealth expects 200 from /healthz.
func checkHealth(ctx context.Context, c *client) error {
	status, _, err := c.do(ctx, http.MethodGet, "/healthz", nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("status %d", status)
	}
	return nil
}

func putWalker(ctx context.Context, c *client, w walk.Walker) error { //nolint:gocritic // hugeParam: value semantics
	status, raw, err := c.do(ctx, http.MethodPut, "/walkers/"+url.PathEscape(w.ID), w)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("PUT walker %s: status %d: %s", w.ID, status, raw)
	}
	return nil
}

// withDuplicates appends a repeat of the first ratio*len postings.
func withDuplicates(postings []Posting, ratio float64) []Posting {
	n := int(float64(len(postings)) * ratio)
	out := make([]Posting, 0, len(postings)+n)
	out = append(out, postings...)
	return append(out, postings[:n]...)
}

// submit posts every walk through a pool of cfg.Workers goroutines.
func submit(ctx context.Context, log logger.Logger, c *client, cfg *Config, postings []Posting, stats *Stats) {
	var accepted, duplicate, throttled, failed, submitted atomic.Int64

	jobs := make(chan Posting, cfg.Workers*2)
	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range jobs {
				if ctx.Err() != nil {
					return
				}
				submitted.Add(1)
				switch postWalk(ctx, c, p) {
				case outcomeAccepted:
					accepted.Add(1)
				case outcomeDuplicate:
					duplicate.Add(1)
				case outcomeThrottled:
					throttled.Add(1)
				default:
					failed.Add(1)
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, p := range postings {
			select {
			case <-ctx.Done():
				return
			case jobs <- p:
			}
		}
	}()
	wg.Wait()

	stats.Submitted = int(submitted.Load())
	stats.Accepted = int(accepted.Load())
	stats.Duplicate = int(duplicate.Load())
	stats.Throttled = int(throttled.Load())
	stats.Failed = int(failed.Load())

	log.Info(ctx, "walk submission completed",
		logger.Int("accepted", stats.Accepted),
		logger.Int("duplicate", stats.Duplicate),
		logger.Int("throttled", stats.Throttled),
		logger.Int("failed", stats.Failed))
}

func postWalk(ctx context.Context, c *client, p Posting) string { //nolint:gocritic // hugeParam: value semantics
	status, _, err := c.do(ctx, http.MethodPost, "/walks", p)
	if err != nil {
		return outcomeFailed
	}
	switch status {
	case http.StatusAccepted:
		return outcomeAccepted
	case http.StatusOK:
		return outcomeDuplicate
	case http.StatusTooManyRequests:
		return outcomeThrottled
	default:
		return outcomeFailed
	}
}

func windowQuery(cfg *Config) string {
	from := cfg.Day.UTC().Truncate(24 * time.Hour)
	v := url.Values{}
	v.Set("from", from.Format(time.RFC3339))
	v.Set("to", from.Add(24*time.Hour).Format(time.RFC3339))
	return v.Encode()
}

// waitSettled polls the open pool until it holds want walks.
func waitSettled(ctx context.Context, c *client, cfg *Config, want int) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.SettleTimeout)
	defer cancel()

	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	path := "/walks?" + windowQuery(cfg)
	for {
		var open []walk.Walk
		if err := c.getJSON(ctx, path, &open); err != nil {
			return 0, err
		}
		if len(open) >= want {
			return len(open), nil
		}
		select {
		case <-ctx.Done():
			return len(open), fmt.Errorf("%d of %d walks stored: %w", len(open), want, ctx.Err())
		case <-ticker.C:
		}
	}
}

func fetchSchedule(ctx context.Context, c *client, cfg *Config, walkerID string) (schedule.Schedule, error) {
	var s schedule.Schedule
	err := c.getJSON(ctx, "/walkers/"+url.PathEscape(walkerID)+"/schedule?"+windowQuery(cfg), &s)
	return s, err
}

// savePostings writes postings as a JSON array.
func savePostings(filename string, postings []Posting) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	raw, err := json.MarshalIndent(postings, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal postings: %w", err)
	}
	if err := os.WriteFile(filename, raw, filePermission); err != nil {
		return fmt.Errorf("write %s: %w", filename, err)
	}
	return nil
}

func logStats(ctx context.Context, log logger.Logger, stats *Stats) {
	var postsPerSecond float64
	if stats.Duration > 0 {
		postsPerSecond = float64(stats.Submitted) / stats.Duration.Seconds()
	}
	log.Info(ctx, "final statistics",
		logger.Int("generated", stats.Generated),
		logger.Int("submitted", stats.Submitted),
		logger.Int("accepted", stats.Accepted),
		logger.Int("duplicate", stats.Duplicate),
		logger.Int("throttled", stats.Throttled),
		logger.Int("failed", stats.Failed),
		logger.Int("settled", stats.Settled),
		logger.Int("schedules", stats.Schedules),
		logger.Int("scheduledWalks", stats.Scheduled),
		logger.Int("violations", stats.Violations),
		logger.Duration("duration", stats.Duration),
		logger.Float64("postsPerSecond", postsPerSecond))
}
