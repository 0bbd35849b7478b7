package loadgen

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/walkplan/internal/adapters/http/api"
	service "github.com/okian/walkplan/internal/app"
	"github.com/okian/walkplan/internal/domain/schedule"
	"github.com/okian/walkplan/internal/domain/walk"
	"github.com/okian/walkplan/pkg/logger"
)

var day = time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)

func TestGenerator(t *testing.T) {
	Convey("Given a seeded generator", t, func() {
		gen := NewGenerator(day.Add(13*time.Hour), 42)

		Convey("When generating postings", func() {
			postings := gen.Postings(200)

			Convey("Then every posting is a valid walk on the day", func() {
				seen := map[string]bool{}
				for _, p := range postings {
					start, err := time.Parse(time.RFC3339, p.Start)
					So(err, ShouldBeNil)
					end, err := time.Parse(time.RFC3339, p.End)
					So(err, ShouldBeNil)

					_, err = walk.New(p.ID, start, end, walk.WithDog(p.Dog))
					So(err, ShouldBeNil)
					So(start.Hour(), ShouldBeBetweenOrEqual, 6, 19)
					So(start.Minute()%15, ShouldEqual, 0)
					So(start.Truncate(24*time.Hour).Equal(day), ShouldBeTrue)
					if p.DistanceKm != nil {
						So(*p.DistanceKm, ShouldBeGreaterThanOrEqualTo, 0)
					}
					So(seen[p.ID], ShouldBeFalse)
					seen[p.ID] = true
				}
			})
		})

		Convey("When generating walkers", func() {
			Convey("Then they validate", func() {
				for i := 0; i < 20; i++ {
					So(gen.Walker(i).Validate(), ShouldBeNil)
				}
			})
		})

		Convey("Then the same seed gives the same slots", func() {
			a := NewGenerator(day, 7).Posting()
			b := NewGenerator(day, 7).Posting()
			So(a.Start, ShouldEqual, b.Start)
			So(a.End, ShouldEqual, b.End)
			So(a.ID, ShouldNotEqual, b.ID)
		})
	})
}

func TestWithDuplicates(t *testing.T) {
	Convey("Given ten postings", t, func() {
		postings := NewGenerator(day, 1).Postings(10)

		Convey("Then a ratio of 0.3 repeats the first three", func() {
			out := withDuplicates(postings, 0.3)
			So(out, ShouldHaveLength, 13)
			So(out[10].ID, ShouldEqual, postings[0].ID)
			So(out[12].ID, ShouldEqual, postings[2].ID)
		})

		Convey("Then a ratio of zero sends each once", func() {
			So(withDuplicates(postings, 0), ShouldHaveLength, 10)
		})
	})
}

func TestVerifySchedule(t *testing.T) {
	at := func(h, m int) time.Time { return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute) }
	w := func(id string, h, m, mins int) walk.Walk {
		return walk.Walk{ID: id, Start: at(h, m), End: at(h, m).Add(time.Duration(mins) * time.Minute), DurationMinutes: mins}
	}

	Convey("Given schedules", t, func() {
		Convey("Then back-to-back walks pass", func() {
			s := schedule.Schedule{Walks: []walk.Walk{w("a", 9, 0, 60), w("b", 10, 0, 30)}, TotalWalks: 2, TotalValue: 1.2}
			So(verifySchedule(s), ShouldBeNil)
		})

		Convey("Then overlapping walks fail", func() {
			s := schedule.Schedule{Walks: []walk.Walk{w("a", 9, 0, 60), w("b", 9, 30, 30)}, TotalWalks: 2}
			So(errors.Is(verifySchedule(s), ErrScheduleOverlap), ShouldBeTrue)
		})

		Convey("Then unordered walks fail", func() {
			s := schedule.Schedule{Walks: []walk.Walk{w("b", 11, 0, 30), w("a", 9, 0, 30)}, TotalWalks: 2}
			So(errors.Is(verifySchedule(s), ErrScheduleUnordered), ShouldBeTrue)
		})

		Convey("Then a wrong count fails", func() {
			s := schedule.Schedule{Walks: []walk.Walk{w("a", 9, 0, 30)}, TotalWalks: 3}
			So(errors.Is(verifySchedule(s), ErrScheduleCount), ShouldBeTrue)
		})

		Convey("Then a negative value fails", func() {
			s := schedule.Schedule{TotalValue: -1}
			So(errors.Is(verifySchedule(s), ErrScheduleValue), ShouldBeTrue)
		})
	})
}

func TestConfigValidate(t *testing.T) {
	Convey("Given the default config", t, func() {
		cfg := NewConfig()
		So(cfg.Validate(), ShouldBeNil)

		cases := []struct {
			name   string
			mutate func(*Config)
		}{
			{"empty url", func(c *Config) { c.BaseURL = "" }},
			{"no walks", func(c *Config) { c.Walks = 0 }},
			{"no walkers", func(c *Config) { c.Walkers = 0 }},
			{"no workers", func(c *Config) { c.Workers = 0 }},
			{"ratio above one", func(c *Config) { c.DuplicateRatio = 1.5 }},
			{"zero timeout", func(c *Config) { c.Timeout = 0 }},
		}
		for _, tc := range cases {
			Convey("Then "+tc.name+" is rejected", func() {
				c := NewConfig()
				tc.mutate(c)
				So(errors.Is(c.Validate(), ErrInvalidConfig), ShouldBeTrue)
			})
		}
	})
}

func TestRunAgainstService(t *testing.T) {
	Convey("Given a running service behind an HTTP server", t, func() {
		So(logger.Init(logger.WithWriter(io.Discard)), ShouldBeNil)
		ctx := context.Background()

		svc := service.New(service.WithWorkerCount(4), service.WithQueueSize(1000))
		So(svc.Start(ctx), ShouldBeNil)
		Reset(func() { _ = svc.Stop(ctx) })

		mux := http.NewServeMux()
		api.NewServer(svc).Register(ctx, mux)
		srv := httptest.NewServer(mux)
		Reset(srv.Close)

		cfg := NewConfig()
		cfg.BaseURL = srv.URL
		cfg.Walks = 60
		cfg.Walkers = 3
		cfg.Workers = 4
		cfg.DuplicateRatio = 0.25
		cfg.Seed = 3
		cfg.SettleTimeout = 5 * time.Second
		cfg.PollInterval = 10 * time.Millisecond
		cfg.OutputFile = filepath.Join(t.TempDir(), "out", "postings.json")

		Convey("When running the load", func() {
			stats, err := Run(ctx, cfg)

			Convey("Then every unique posting is stored once", func() {
				So(err, ShouldBeNil)
				So(stats.Generated, ShouldEqual, 60)
				So(stats.Submitted, ShouldEqual, 75)
				So(stats.Accepted, ShouldEqual, 60)
				So(stats.Duplicate, ShouldEqual, 15)
				So(stats.Failed, ShouldEqual, 0)
				So(stats.Settled, ShouldEqual, 60)
			})

			Convey("Then every walker got a verified schedule", func() {
				So(stats.Schedules, ShouldEqual, 3)
				So(stats.Violations, ShouldEqual, 0)
				So(stats.Scheduled, ShouldBeGreaterThan, 0)
			})

			Convey("Then the postings were saved", func() {
				raw, err := os.ReadFile(cfg.OutputFile)
				So(err, ShouldBeNil)
				var saved []Posting
				So(json.Unmarshal(raw, &saved), ShouldBeNil)
				So(saved, ShouldHaveLength, 60)
			})
		})
	})

	Convey("Given no service", t, func() {
		So(logger.Init(logger.WithWriter(io.Discard)), ShouldBeNil)
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close()

		cfg := NewConfig()
		cfg.BaseURL = srv.URL
		cfg.Timeout = time.Second

		Convey("Then the health check fails", func() {
			_, err := Run(context.Background(), cfg)
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "health check")
		})
	})
}
