package conflict_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/walkplan/internal/domain/conflict"
	"github.com/okian/walkplan/internal/domain/walk"
	"github.com/smartystreets/goconvey/convey"
)

var day = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func mk(id string, h1, m1, h2, m2 int) walk.Walk {
	w, err := walk.New(id,
		day.Add(time.Duration(h1)*time.Hour+time.Duration(m1)*time.Minute),
		day.Add(time.Duration(h2)*time.Hour+time.Duration(m2)*time.Minute))
	if err != nil {
		panic(err)
	}
	return w
}

func TestDetect(t *testing.T) {
	convey.Convey("Given a committed walk from 09:00 to 10:00", t, func() {
		committed := []walk.Walk{mk("fixed", 9, 0, 10, 0)}

		convey.Convey("When the candidate starts exactly when it ends", func() {
			r, err := conflict.Detect(mk("next", 10, 0, 11, 0), committed)

			convey.Convey("Then there is no conflict", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(r.HasConflict, convey.ShouldBeFalse)
				convey.So(r.Conflicts, convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When the candidate ends exactly when it starts", func() {
			r, err := conflict.Detect(mk("prev", 8, 0, 9, 0), committed)
			convey.So(err, convey.ShouldBeNil)
			convey.So(r.HasConflict, convey.ShouldBeFalse)
		})

		convey.Convey("When the candidate runs 09:30 to 10:30", func() {
			r, err := conflict.Detect(mk("half", 9, 30, 10, 30), committed)

			convey.Convey("Then the overlap is 30 minutes with severity 0.5", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(r.HasConflict, convey.ShouldBeTrue)
				convey.So(len(r.Conflicts), convey.ShouldEqual, 1)
				c := r.Conflicts[0]
				convey.So(c.Walk.ID, convey.ShouldEqual, "fixed")
				convey.So(c.OverlapMinutes, convey.ShouldEqual, 30)
				convey.So(c.Severity, convey.ShouldEqual, 0.5)
				convey.So(c.Level(), convey.ShouldEqual, conflict.LevelMinor)
			})
		})

		convey.Convey("When a short candidate sits inside it", func() {
			r, _ := conflict.Detect(mk("inner", 9, 15, 9, 45), committed)

			convey.Convey("Then severity is relative to the shorter walk and saturates at 1", func() {
				convey.So(r.Conflicts[0].OverlapMinutes, convey.ShouldEqual, 30)
				convey.So(r.Conflicts[0].Severity, convey.ShouldEqual, 1)
				convey.So(r.Conflicts[0].Level(), convey.ShouldEqual, conflict.LevelSevere)
				convey.So(r.Severe(), convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When the committed list contains the candidate itself", func() {
			self := mk("self", 9, 0, 10, 0)
			r, err := conflict.Detect(self, []walk.Walk{self})

			convey.Convey("Then it is not reported against itself", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(r.HasConflict, convey.ShouldBeFalse)
			})
		})

		convey.Convey("When a committed entry is malformed", func() {
			broken := walk.Walk{ID: "broken", Start: day.Add(9 * time.Hour), End: day.Add(8 * time.Hour)}
			r, err := conflict.Detect(mk("c", 9, 30, 10, 30), append(committed, broken))

			convey.Convey("Then it is skipped and counted", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(r.Skipped, convey.ShouldEqual, 1)
				convey.So(len(r.Conflicts), convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When the candidate itself is malformed", func() {
			bad := walk.Walk{ID: "bad", Start: day.Add(9 * time.Hour), End: day.Add(9 * time.Hour)}
			_, err := conflict.Detect(bad, committed)

			convey.Convey("Then an input error is returned", func() {
				convey.So(errors.Is(err, conflict.ErrInvalidCandidate), convey.ShouldBeTrue)
				convey.So(errors.Is(err, walk.ErrInvalidInterval), convey.ShouldBeTrue)
			})
		})
	})
}

func TestDetect_Ordering(t *testing.T) {
	convey.Convey("Given a candidate overlapping several committed walks", t, func() {
		candidate := mk("cand", 9, 0, 12, 0)
		committed := []walk.Walk{
			mk("z-partial", 11, 30, 12, 30), // 30 of 60 minutes
			mk("full-late", 10, 0, 11, 0),   // fully inside
			mk("b-full", 9, 0, 9, 30),       // fully inside, earliest
			mk("a-full", 9, 0, 9, 30),       // same start as b-full
		}

		convey.Convey("When detecting", func() {
			r, err := conflict.Detect(candidate, committed)
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then results go by severity, then start, then id", func() {
				got := make([]string, 0, len(r.Conflicts))
				for _, c := range r.Conflicts {
					got = append(got, c.Walk.ID)
				}
				convey.So(got, convey.ShouldResemble, []string{"a-full", "b-full", "full-late", "z-partial"})
			})

			convey.Convey("Then the input slice order is untouched", func() {
				convey.So(committed[0].ID, convey.ShouldEqual, "z-partial")
			})
		})
	})
}

func TestSeverityThreshold(t *testing.T) {
	convey.Convey("Given the documented 0.7 boundary", t, func() {
		convey.So(conflict.IsSevere(0.7), convey.ShouldBeFalse)
		convey.So(conflict.IsSevere(0.71), convey.ShouldBeTrue)
		convey.So(conflict.Conflict{Severity: 0.7}.Level(), convey.ShouldEqual, conflict.LevelMinor)

		convey.Convey("When 42 of 60 minutes overlap", func() {
			r, _ := conflict.Detect(mk("c", 9, 18, 10, 18), []walk.Walk{mk("e", 9, 0, 10, 0)})

			convey.Convey("Then severity is exactly 0.7 and the conflict is minor", func() {
				convey.So(r.Conflicts[0].Severity, convey.ShouldAlmostEqual, 0.7)
				convey.So(r.Severe(), convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When 43 of 60 minutes overlap", func() {
			r, _ := conflict.Detect(mk("c", 9, 17, 10, 17), []walk.Walk{mk("e", 9, 0, 10, 0)})
			convey.So(r.Conflicts[0].Level(), convey.ShouldEqual, conflict.LevelSevere)
		})
	})
}

func TestOverlapHelpers(t *testing.T) {
	convey.Convey("Given pairs of intervals", t, func() {
		a := mk("a", 9, 0, 10, 0)
		convey.So(conflict.Overlaps(a, mk("b", 10, 0, 11, 0)), convey.ShouldBeFalse)
		convey.So(conflict.Overlaps(a, mk("b", 9, 59, 11, 0)), convey.ShouldBeTrue)
		convey.So(conflict.OverlapMinutes(a, mk("b", 7, 0, 8, 0)), convey.ShouldEqual, 0)
		convey.So(conflict.OverlapMinutes(a, mk("b", 8, 0, 12, 0)), convey.ShouldEqual, 60)
		convey.So(conflict.Severity(a, mk("b", 8, 0, 12, 0)), convey.ShouldEqual, 1)
	})
}
