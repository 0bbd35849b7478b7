package walk

import "fmt"

// Size is the dog size category.
type Size string

// Temperament is the dog temperament category.
type Temperament string

// Energy is the dog energy level.
type Energy string

// SpecialNeed is a care requirement that calls for an experienced walker.
type SpecialNeed string

// Dog sizes.
const (
	SizeSmall  Size = "small"
	SizeMedium Size = "medium"
	SizeLarge  Size = "large"
)

// Dog temperaments.
const (
	TemperamentCalm     Temperament = "calm"
	TemperamentFriendly Temperament = "friendly"
	TemperamentShy      Temperament = "shy"
	TemperamentReactive Temperament = "reactive"
)

// Energy levels.
const (
	EnergyLow    Energy = "low"
	EnergyMedium Energy = "medium"
	EnergyHigh   Energy = "high"
)

// Special needs.
const (
	NeedMedication SpecialNeed = "medication"
	NeedMobility   SpecialNeed = "mobility"
	NeedAnxiety    SpecialNeed = "anxiety"
	NeedDietary    SpecialNeed = "dietary"
)

// DogProfile describes the dog attached to a walk. Empty trait values mean
// "unknown" and are allowed.
type DogProfile struct {
	Size         Size          `json:"size,omitempty" yaml:"size,omitempty"`
	Temperament  Temperament   `json:"temperament,omitempty" yaml:"temperament,omitempty"`
	Energy       Energy        `json:"energy,omitempty" yaml:"energy,omitempty"`
	SpecialNeeds []SpecialNeed `json:"special_needs,omitempty" yaml:"special_needs,omitempty"`
}

// Validate rejects trait values outside the enumerations.
func (d DogProfile) Validate() error {
	if d.Size != "" && !d.Size.Valid() {
		return fmt.Errorf("size %q: %w", d.Size, ErrUnknownKind)
	}
	if d.Temperament != "" && !d.Temperament.Valid() {
		return fmt.Errorf("temperament %q: %w", d.Temperament, ErrUnknownKind)
	}
	if d.Energy != "" && !d.Energy.Valid() {
		return fmt.Errorf("energy %q: %w", d.Energy, ErrUnknownKind)
	}
	for _, n := range d.SpecialNeeds {
		if !n.Valid() {
			return fmt.Errorf("special need %q: %w", n, ErrUnknownKind)
		}
	}
	return nil
}

// HasSpecialNeeds reports whether the dog has at least one special need.
func (d DogProfile) HasSpecialNeeds() bool {
	return len(d.SpecialNeeds) > 0
}

// Valid reports whether s is a known size.
func (s Size) Valid() bool {
	switch s {
	case SizeSmall, SizeMedium, SizeLarge:
		return true
	}
	return false
}

// Valid reports whether t is a known temperament.
func (t Temperament) Valid() bool {
	switch t {
	case TemperamentCalm, TemperamentFriendly, TemperamentShy, TemperamentReactive:
		return true
	}
	return false
}

// Valid reports whether e is a known energy level.
func (e Energy) Valid() bool {
	switch e {
	case EnergyLow, EnergyMedium, EnergyHigh:
		return true
	}
	return false
}

// Valid reports whether n is a known special need.
func (n SpecialNeed) Valid() bool {
	switch n {
	case NeedMedication, NeedMobility, NeedAnxiety, NeedDietary:
		return true
	}
	return false
}
