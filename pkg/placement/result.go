package placement

import (
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/matzehuels/molplace/pkg/particle"
)

// Position is re-exported for callers that only import placement.
type Position = particle.Position

// Stats summarizes a run. Counts are in particles.
type Stats struct {
	Requested   int           `json:"requested"`
	Placed      int           `json:"placed"`
	Skipped     int           `json:"skipped"`
	Corrections int           `json:"corrections"`
	Duration    time.Duration `json:"duration"`
}

// Result is the output of a successful run. It is never modified by the
// task once returned.
type Result struct {
	Positions        []Position
	Box              r3.Vec
	LengthConversion float64
	Catalog          particle.Catalog
	Stats            Stats
	Seed             uint64
}

// InBulk returns the number of positions flagged as bulk particles.
func (r *Result) InBulk() int {
	n := 0
	for i := range r.Positions {
		if r.Positions[i].InBulk {
			n++
		}
	}
	return n
}

// Molecules returns the number of molecule instances in the result.
func (r *Result) Molecules() int {
	if len(r.Positions) == 0 {
		return 0
	}
	return r.Positions[len(r.Positions)-1].MoleculeIndex + 1
}
