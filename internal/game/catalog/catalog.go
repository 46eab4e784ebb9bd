// Package catalog holds the static location catalog: every claimable spot,
// its level gate, coordinates and rarity or radiation tag. The catalog is
// loaded once at startup and is immutable afterwards, so lookups need no locking.
package catalog

import (
	"fmt"
	"strings"

	"github.com/gosimple/slug"
)

// DefaultHighRisk lists the landmark names whose spots can be raided. A spot
// is high-risk when its name contains one of these.
var DefaultHighRisk = []string{"Black Mountain", "Hoover Dam", "Lucky 38", "Area 51 Gate"}

// Rarity tiers a location may carry.
const (
	RarityCommon    = "common"
	RarityRare      = "rare"
	RarityEpic      = "epic"
	RarityLegendary = "legendary"
)

// Location is a claimable spot.
//
// Invariant: exactly one of Rarity and Radiation is set.
type Location struct {
	Name          string
	RequiredLevel int
	Lat           float64
	Lng           float64
	Rarity        string
	// Radiation is the rads value for irradiated spots that carry no rarity.
	Radiation int
	// HighRisk is derived from the catalog's high-risk landmark names.
	HighRisk bool
}

// Validate checks that the location satisfies its invariants.
func (l *Location) Validate() error {
	if strings.TrimSpace(l.Name) == "" {
		return fmt.Errorf("location name must not be empty")
	}
	if l.RequiredLevel < 1 {
		return fmt.Errorf("location %q: required level must be >= 1, got %d", l.Name, l.RequiredLevel)
	}
	if l.Lat < -90 || l.Lat > 90 || l.Lng < -180 || l.Lng > 180 {
		return fmt.Errorf("location %q: coordinates (%f, %f) out of range", l.Name, l.Lat, l.Lng)
	}
	switch {
	case l.Rarity != "" && l.Radiation != 0:
		return fmt.Errorf("location %q: rarity and radiation are mutually exclusive", l.Name)
	case l.Rarity == "" && l.Radiation == 0:
		return fmt.Errorf("location %q: one of rarity or radiation is required", l.Name)
	case l.Radiation < 0:
		return fmt.Errorf("location %q: radiation must be > 0, got %d", l.Name, l.Radiation)
	}
	if l.Rarity != "" && !validRarity(l.Rarity) {
		return fmt.Errorf("location %q: unknown rarity %q", l.Name, l.Rarity)
	}
	return nil
}

func validRarity(r string) bool {
	switch r {
	case RarityCommon, RarityRare, RarityEpic, RarityLegendary:
		return true
	}
	return false
}

// IsHighRisk reports whether spot contains any of the high-risk landmark names.
// Membership is by substring so "Hoover Dam Bypass" counts as "Hoover Dam".
func IsHighRisk(spot string, highRisk []string) bool {
	for _, name := range highRisk {
		if name != "" && strings.Contains(spot, name) {
			return true
		}
	}
	return false
}

// Catalog is the immutable, name-indexed set of locations.
type Catalog struct {
	ordered  []*Location
	byName   map[string]*Location
	highRisk []string
}

// New builds a Catalog from locs, deriving HighRisk from highRisk names.
//
// Postcondition: Returns a Catalog, or an error on an invalid or duplicate
// location, or on two names that share a slug. Cooldown keys are built from
// the slug, so colliding names would share one cooldown.
func New(locs []Location, highRisk []string) (*Catalog, error) {
	c := &Catalog{
		ordered:  make([]*Location, 0, len(locs)),
		byName:   make(map[string]*Location, len(locs)),
		highRisk: append([]string(nil), highRisk...),
	}
	slugs := make(map[string]string, len(locs))
	for i := range locs {
		loc := locs[i]
		if err := loc.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.byName[loc.Name]; dup {
			return nil, fmt.Errorf("duplicate location %q", loc.Name)
		}
		key := slug.Make(loc.Name)
		if prev, ok := slugs[key]; ok {
			return nil, fmt.Errorf("location %q collides with %q", loc.Name, prev)
		}
		slugs[key] = loc.Name
		loc.HighRisk = IsHighRisk(loc.Name, c.highRisk)
		c.byName[loc.Name] = &loc
		c.ordered = append(c.ordered, &loc)
	}
	return c, nil
}

// Lookup returns the location named spot.
//
// Postcondition: Returns (loc, true) if found, or (nil, false) otherwise.
func (c *Catalog) Lookup(spot string) (*Location, bool) {
	loc, ok := c.byName[spot]
	return loc, ok
}

// All returns every location in load order. Callers must not mutate the result.
func (c *Catalog) All() []*Location {
	return c.ordered
}

// Len returns the number of locations.
func (c *Catalog) Len() int {
	return len(c.ordered)
}

// HighRisk returns the configured high-risk landmark names.
func (c *Catalog) HighRisk() []string {
	return c.highRisk
}
