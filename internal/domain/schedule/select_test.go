package schedule_test

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/okian/walkplan/internal/domain/conflict"
	"github.com/okian/walkplan/internal/domain/schedule"
	"github.com/okian/walkplan/internal/domain/scoring"
	"github.com/okian/walkplan/internal/domain/walk"
	. "github.com/smartystreets/goconvey/convey"
)

var day = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func at(h, m int) time.Time {
	return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

func scored(id string, start, end time.Time, v float64) scoring.Scored {
	w, err := walk.New(id, start, end)
	if err != nil {
		panic(err)
	}
	return scoring.Scored{Walk: w, Value: v}
}

func ids(s schedule.Schedule) []string {
	out := make([]string, 0, len(s.Walks))
	for _, w := range s.Walks {
		out = append(out, w.ID)
	}
	return out
}

func TestSelect_Example(t *testing.T) {
	Convey("Given A, B and C where B overlaps both others", t, func() {
		cands := []scoring.Scored{
			scored("A", at(9, 0), at(10, 0), 10),
			scored("B", at(9, 30), at(10, 30), 8),
			scored("C", at(10, 0), at(11, 0), 10),
		}

		Convey("When selecting with no commitments", func() {
			s := schedule.Select(cands, nil)

			Convey("Then A and C are chosen for a total of 20", func() {
				So(ids(s), ShouldResemble, []string{"A", "C"})
				So(s.TotalValue, ShouldEqual, 20)
				So(s.TotalWalks, ShouldEqual, 2)
				So(s.Rejected, ShouldBeEmpty)
			})
		})

		Convey("When B is worth more than A and C together", func() {
			cands[1].Value = 25
			s := schedule.Select(cands, nil)

			Convey("Then B alone is chosen", func() {
				So(ids(s), ShouldResemble, []string{"B"})
				So(s.TotalValue, ShouldEqual, 25)
			})
		})
	})
}

func TestSelect_EdgeCases(t *testing.T) {
	Convey("Given edge-case inputs", t, func() {
		Convey("When there are no candidates", func() {
			s := schedule.Select(nil, nil)

			Convey("Then the schedule is empty but not nil", func() {
				So(s.Walks, ShouldNotBeNil)
				So(s.Walks, ShouldBeEmpty)
				So(s.TotalValue, ShouldEqual, 0)
				So(s.TotalWalks, ShouldEqual, 0)
			})
		})

		Convey("When the only candidate is worth zero", func() {
			s := schedule.Select([]scoring.Scored{scored("z", at(9, 0), at(10, 0), 0)}, nil)

			Convey("Then it is still selected", func() {
				So(ids(s), ShouldResemble, []string{"z"})
				So(s.TotalValue, ShouldEqual, 0)
				So(s.TotalWalks, ShouldEqual, 1)
			})
		})

		Convey("When a zero-value candidate competes with a positive overlapping one", func() {
			s := schedule.Select([]scoring.Scored{
				scored("zero", at(9, 0), at(10, 0), 0),
				scored("pos", at(9, 30), at(10, 30), 1),
			}, nil)

			Convey("Then the positive one wins", func() {
				So(ids(s), ShouldResemble, []string{"pos"})
			})
		})

		Convey("When two overlapping candidates tie on value", func() {
			s := schedule.Select([]scoring.Scored{
				scored("late", at(9, 30), at(10, 30), 5),
				scored("early", at(9, 0), at(10, 0), 5),
			}, nil)

			Convey("Then the earlier-ending one is kept", func() {
				So(ids(s), ShouldResemble, []string{"early"})
			})
		})

		Convey("When one long walk ties with two short ones that fill the same hours", func() {
			s := schedule.Select([]scoring.Scored{
				scored("A", at(9, 0), at(11, 0), 10),
				scored("B", at(9, 0), at(10, 0), 5),
				scored("C", at(10, 0), at(11, 0), 5),
			}, nil)

			Convey("Then skipping wins the tie and the long walk is kept", func() {
				So(ids(s), ShouldResemble, []string{"A"})
				So(s.TotalValue, ShouldEqual, 10)
				So(s.TotalWalks, ShouldEqual, 1)
			})
		})

		Convey("When a zero-value walk could be added to an equal-value schedule", func() {
			s := schedule.Select([]scoring.Scored{
				scored("paid", at(9, 0), at(10, 0), 4),
				scored("free", at(10, 0), at(11, 0), 0),
			}, nil)

			Convey("Then it is left out", func() {
				So(ids(s), ShouldResemble, []string{"paid"})
				So(s.TotalValue, ShouldEqual, 4)
			})
		})

		Convey("When one candidate has end before start", func() {
			bad := scoring.Scored{Walk: walk.Walk{ID: "bad", Start: at(12, 0), End: at(11, 0), DurationMinutes: -60}, Value: 100}
			s := schedule.Select([]scoring.Scored{
				scored("ok1", at(9, 0), at(10, 0), 3),
				bad,
				scored("ok2", at(10, 0), at(11, 0), 4),
			}, nil)

			Convey("Then it is rejected and the others are scheduled", func() {
				So(ids(s), ShouldResemble, []string{"ok1", "ok2"})
				So(s.TotalValue, ShouldEqual, 7)
				So(len(s.Rejected), ShouldEqual, 1)
				So(s.Rejected[0].ID, ShouldEqual, "bad")
				So(errors.Is(s.Rejected[0].Err, schedule.ErrInvalidCandidate), ShouldBeTrue)
				So(errors.Is(s.Rejected[0].Err, walk.ErrInvalidInterval), ShouldBeTrue)
				So(s.Rejected[0].Reason, ShouldNotBeBlank)
			})
		})

		Convey("When a candidate's duration disagrees with its interval", func() {
			bad := scoring.Scored{Walk: walk.Walk{ID: "skew", Start: at(9, 0), End: at(10, 0), DurationMinutes: 30}, Value: 1}
			s := schedule.Select([]scoring.Scored{bad}, nil)

			Convey("Then it is rejected as a duration mismatch", func() {
				So(s.Walks, ShouldBeEmpty)
				So(errors.Is(s.Rejected[0].Err, walk.ErrDurationMismatch), ShouldBeTrue)
			})
		})

		Convey("When a candidate has a NaN value", func() {
			s := schedule.Select([]scoring.Scored{scored("nan", at(9, 0), at(10, 0), math.NaN())}, nil)

			Convey("Then it is rejected", func() {
				So(s.Walks, ShouldBeEmpty)
				So(errors.Is(s.Rejected[0].Err, schedule.ErrInvalidValue), ShouldBeTrue)
			})
		})

		Convey("When two candidates share an id", func() {
			s := schedule.Select([]scoring.Scored{
				scored("dup", at(9, 0), at(10, 0), 3),
				scored("dup", at(11, 0), at(12, 0), 9),
				scored("solo", at(13, 0), at(14, 0), 1),
			}, nil)

			Convey("Then both occurrences are rejected", func() {
				So(ids(s), ShouldResemble, []string{"solo"})
				So(len(s.Rejected), ShouldEqual, 2)
				for _, r := range s.Rejected {
					So(errors.Is(r.Err, schedule.ErrDuplicateID), ShouldBeTrue)
				}
			})
		})
	})
}

func TestSelect_Committed(t *testing.T) {
	Convey("Given a walker committed from 10:00 to 11:00", t, func() {
		fixed, _ := walk.New("fixed", at(10, 0), at(11, 0))
		cands := []scoring.Scored{
			scored("before", at(9, 0), at(10, 0), 1),
			scored("clash", at(10, 30), at(11, 30), 50),
			scored("after", at(11, 0), at(12, 0), 1),
			scored("around", at(8, 0), at(13, 0), 40),
		}

		Convey("When selecting", func() {
			s := schedule.Select(cands, []walk.Walk{fixed})

			Convey("Then overlapping candidates are filtered and back-to-back ones kept", func() {
				So(ids(s), ShouldResemble, []string{"before", "after"})
				So(len(s.Rejected), ShouldEqual, 2)
				So(s.Rejected[0].ID, ShouldEqual, "around")
				So(s.Rejected[1].ID, ShouldEqual, "clash")
				for _, r := range s.Rejected {
					So(errors.Is(r.Err, schedule.ErrCommittedOverlap), ShouldBeTrue)
				}
			})
		})

		Convey("When a committed entry's duration disagrees with its interval", func() {
			skew := walk.Walk{ID: "skew", Start: at(13, 0), End: at(14, 0), DurationMinutes: 15}
			s := schedule.Select([]scoring.Scored{scored("late", at(13, 30), at(14, 30), 2)}, []walk.Walk{fixed, skew})

			Convey("Then it is ignored like the conflict detector ignores it", func() {
				So(ids(s), ShouldResemble, []string{"late"})
				So(s.Rejected, ShouldBeEmpty)

				r, err := conflict.Detect(s.Walks[0], []walk.Walk{fixed, skew})
				So(err, ShouldBeNil)
				So(r.HasConflict, ShouldBeFalse)
				So(r.Skipped, ShouldEqual, 1)
			})
		})

		Convey("When a long early commitment hides behind a later short one", func() {
			long, _ := walk.New("long", at(6, 0), at(12, 0))
			short, _ := walk.New("short", at(7, 0), at(7, 30))
			s := schedule.Select([]scoring.Scored{scored("mid", at(9, 0), at(9, 30), 1)}, []walk.Walk{short, long})

			Convey("Then the overlap is still found", func() {
				So(s.Walks, ShouldBeEmpty)
				So(s.Rejected[0].ID, ShouldEqual, "mid")
			})
		})
	})
}

func randomCandidates(r *rand.Rand, n int) []scoring.Scored {
	out := make([]scoring.Scored, n)
	for i := range out {
		start := r.Intn(16) * 30
		length := 30 * (1 + r.Intn(4))
		out[i] = scored(fmt.Sprintf("c%02d", i), at(8, start), at(8, start+length), float64(r.Intn(10)))
	}
	return out
}

// bruteForce returns the best total over every pairwise disjoint subset.
func bruteForce(cands []scoring.Scored) float64 {
	best := 0.0
	n := len(cands)
	for mask := 1; mask < 1<<n; mask++ {
		var picked []walk.Walk
		sum := 0.0
		ok := true
		for i := 0; i < n && ok; i++ {
			if mask&(1<<i) == 0 {
				continue
			}
			for _, p := range picked {
				if cands[i].Walk.Start.Before(p.End) && p.Start.Before(cands[i].Walk.End) {
					ok = false
					break
				}
			}
			picked = append(picked, cands[i].Walk)
			sum += cands[i].Value
		}
		if ok && sum > best {
			best = sum
		}
	}
	return best
}

func TestSelect_Properties(t *testing.T) {
	Convey("Given random candidate sets of up to 12 walks", t, func() {
		r := rand.New(rand.NewSource(42))

		Convey("Then the selected total matches brute force and nothing overlaps", func() {
			for round := 0; round < 60; round++ {
				cands := randomCandidates(r, 1+r.Intn(12))
				s := schedule.Select(cands, nil)

				So(s.TotalValue, ShouldEqual, bruteForce(cands))
				So(s.TotalWalks, ShouldEqual, len(s.Walks))
				for i := 1; i < len(s.Walks); i++ {
					So(s.Walks[i-1].End.After(s.Walks[i].Start), ShouldBeFalse)
				}
			}
		})

		Convey("Then shuffling the input never changes the selection", func() {
			for round := 0; round < 30; round++ {
				cands := randomCandidates(r, 2+r.Intn(11))
				want := schedule.Select(cands, nil)

				for k := 0; k < 5; k++ {
					shuffled := append([]scoring.Scored(nil), cands...)
					r.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
					got := schedule.Select(shuffled, nil)
					So(ids(got), ShouldResemble, ids(want))
					So(got.TotalValue, ShouldEqual, want.TotalValue)
				}
			}
		})

		Convey("Then the caller's slice is left untouched", func() {
			cands := randomCandidates(r, 8)
			before := append([]scoring.Scored(nil), cands...)
			schedule.Select(cands, nil)
			So(cands, ShouldResemble, before)
		})
	})
}
