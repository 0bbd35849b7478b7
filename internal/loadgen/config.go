// Package loadgen posts synthetic walks to a running walkplan service and
// checks the schedules it returns.
package loadgen

import (
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/okian/walkplan/internal/domain/walk"
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("invalid load generator config")

// Default configuration values.
const (
	DefaultBaseURL       = "http://localhost:9080"
	DefaultWalks         = 1000
	DefaultWalkers       = 10
	DefaultTimeout       = 30 * time.Second
	DefaultSettleTimeout = 30 * time.Second
)

// Config holds configuration for a load run.
type Config struct {
	BaseURL string
	Walks   int
	Walkers int
	Workers int

	// DuplicateRatio is the share of postings sent a second time with the
	// same id, in [0, 1].
	DuplicateRatio float64

	// Day is the UTC date the synthetic walks fall on.
	Day  time.Time
	Seed int64

	Timeout       time.Duration
	SettleTimeout time.Duration
	PollInterval  time.Duration

	// OutputFile receives the generated postings as JSON when set.
	OutputFile string
	Verbose    bool
}

// NewConfig returns a Config holding the defaults. The day is tomorrow so
// the walks are in the future for the urgency term.
func NewConfig() *Config {
	return &Config{
		BaseURL:       DefaultBaseURL,
		Walks:         DefaultWalks,
		Walkers:       DefaultWalkers,
		Workers:       runtime.NumCPU() * 2,
		Day:           time.Now().UTC().Truncate(24 * time.Hour).Add(24 * time.Hour),
		Seed:          time.Now().UnixNano(),
		Timeout:       DefaultTimeout,
		SettleTimeout: DefaultSettleTimeout,
		PollInterval:  250 * time.Millisecond,
	}
}

// Validate checks the run parameters.
func (c *Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return fmt.Errorf("%w: base url is empty", ErrInvalidConfig)
	case c.Walks <= 0:
		return fmt.Errorf("%w: walks must be positive", ErrInvalidConfig)
	case c.Walkers <= 0:
		return fmt.Errorf("%w: walkers must be positive", ErrInvalidConfig)
	case c.Workers <= 0:
		return fmt.Errorf("%w: workers must be positive", ErrInvalidConfig)
	case c.DuplicateRatio < 0 || c.DuplicateRatio > 1:
		return fmt.Errorf("%w: duplicate ratio must be in [0, 1]", ErrInvalidConfig)
	case c.Timeout <= 0 || c.SettleTimeout <= 0 || c.PollInterval <= 0:
		return fmt.Errorf("%w: timeouts must be positive", ErrInvalidConfig)
	}
	return nil
}

// Posting is the POST /walks body.
type Posting struct {
	ID         string          `json:"id"`
	Start      string          `json:"start"`
	End        string          `json:"end"`
	Dog        walk.DogProfile `json:"dog"`
	DistanceKm *float64        `json:"distance_km,omitempty"`
}

// Stats holds run statistics.
type Stats struct {
	Generated  int
	Submitted  int
	Accepted   int
	Duplicate  int
	Throttled  int
	Failed     int
	Settled    int
	Schedules  int
	Scheduled  int
	Violations int
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
}
