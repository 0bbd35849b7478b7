package loadgen

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/okian/walkplan/internal/domain/walk"
)

// Generation ranges.
const (
	firstSlot   = 6 * 60  // 06:00
	lastSlot    = 20 * 60 // 20:00
	slotMinutes = 15
)

var (
	durations    = []int{30, 45, 60, 90}
	sizes        = []walk.Size{walk.SizeSmall, walk.SizeMedium, walk.SizeLarge, ""}
	temperaments = []walk.Temperament{walk.TemperamentCalm, walk.TemperamentFriendly, walk.TemperamentShy, walk.TemperamentReactive}
	energies     = []walk.Energy{walk.EnergyLow, walk.EnergyMedium, walk.EnergyHigh}
	needs        = []walk.SpecialNeed{walk.NeedMedication, walk.NeedMobility, walk.NeedAnxiety, walk.NeedDietary}
	experiences  = []walk.Experience{walk.Beginner, walk.Intermediate, walk.Expert}
)

// Generator produces synthetic walks and walkers. It is not safe for
// concurrent use.
type Generator struct {
	rng *rand.Rand
	day time.Time
}

// NewGenerator returns a generator for walks on day, seeded for repeatable
// runs. Ids are random uuids regardless of the seed.
func NewGenerator(day time.Time, seed int64) *Generator {
	return &Generator{
		rng: rand.New(rand.NewSource(seed)), //nolint:gosec // synthetic data
		day: day.UTC().Truncate(24 * time.Hour),
	}
}

// Posting returns a walk on a 15-minute boundary between 06:00 and 20:00.
func (g *Generator) Posting() Posting {
	slots := (lastSlot - firstSlot) / slotMinutes
	start := g.day.Add(time.Duration(firstSlot+g.rng.Intn(slots)*slotMinutes) * time.Minute)
	end := start.Add(time.Duration(durations[g.rng.Intn(len(durations))]) * time.Minute)

	p := Posting{
		ID:    uuid.New().String(),
		Start: start.Format(time.RFC3339),
		End:   end.Format(time.RFC3339),
		Dog: walk.DogProfile{
			Size:        sizes[g.rng.Intn(len(sizes))],
			Temperament: temperaments[g.rng.Intn(len(temperaments))],
			Energy:      energies[g.rng.Intn(len(energies))],
		},
	}
	if g.rng.Intn(5) == 0 {
		p.Dog.SpecialNeeds = []walk.SpecialNeed{needs[g.rng.Intn(len(needs))]}
	}
	// Roughly one in four postings has no known distance.
	if g.rng.Intn(4) != 0 {
		d := float64(g.rng.Intn(80)) / 10
		p.DistanceKm = &d
	}
	return p
}

// Postings returns n postings.
func (g *Generator) Postings(n int) []Posting {
	out := make([]Posting, n)
	for i := range out {
		out[i] = g.Posting()
	}
	return out
}

// Walker returns the i-th synthetic walker profile.
func (g *Generator) Walker(i int) walk.Walker {
	return walk.Walker{
		ID:                    fmt.Sprintf("walker-%03d", i),
		Rating:                float64(25+g.rng.Intn(26)) / 10,
		Experience:            experiences[g.rng.Intn(len(experiences))],
		MaxTravelDistanceKm:   float64(2 + g.rng.Intn(7)),
		PreferredSizes:        []walk.Size{sizes[g.rng.Intn(3)]},
		PreferredTemperaments: []walk.Temperament{temperaments[g.rng.Intn(len(temperaments))]},
		AcceptedEnergyLevels:  []walk.Energy{walk.EnergyLow, energies[1+g.rng.Intn(2)]},
	}
}
