package chain

import (
	"context"
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/matzehuels/molplace/pkg/errors"
	"github.com/matzehuels/molplace/pkg/topology"
)

// Defaults for Placer fields left at zero.
const (
	DefaultBondLength          = 0.5
	DefaultMaxCorrectionTrials = 100
)

// FreeVolume is the region a bulk molecule must stay inside.
type FreeVolume interface {
	InFreeVolume(p r3.Vec) bool
	RandomFreePoint(rng *rand.Rand) (r3.Vec, bool)
}

// Placer grows molecules between anchor points.
type Placer struct {
	Grower              Grower
	BondLength          float64
	MaxCorrectionTrials int
}

// NewPlacer returns a Placer using the WalkGrower and the default limits.
func NewPlacer(bond float64) *Placer {
	return &Placer{Grower: WalkGrower{}, BondLength: bond, MaxCorrectionTrials: DefaultMaxCorrectionTrials}
}

func (p *Placer) grower() Grower {
	if p.Grower == nil {
		return WalkGrower{}
	}
	return p.Grower
}

func (p *Placer) bond() float64 {
	if p.BondLength <= 0 {
		return DefaultBondLength
	}
	return p.BondLength
}

// Place grows one molecule between first and last without checking the
// result against any free volume.
func (p *Placer) Place(t *topology.Topology, first, last r3.Vec, rng *rand.Rand) ([]r3.Vec, error) {
	if t.Len() == 1 {
		return []r3.Vec{first}, nil
	}
	pos, err := p.grower().Grow(t, first, last, p.bond(), rng)
	if err != nil {
		return nil, fmt.Errorf("grow %s: %w", t.Source, err)
	}
	if len(pos) != t.Len() {
		return nil, errors.New(errors.ErrCodeInternalInconsistency, "grower returned %d coordinates for %d particles", len(pos), t.Len())
	}
	return pos, nil
}

// Outcome describes an accepted bulk molecule.
type Outcome struct {
	Positions []r3.Vec
	Shrinks   int // regrowths towards an earlier valid particle
	Redraws   int // regrowths towards a freshly drawn last anchor
}

// Corrections returns the total number of regrowths.
func (o Outcome) Corrections() int { return o.Shrinks + o.Redraws }

// Failure reports a bulk molecule the correction loop could not fit into the
// free volume within its trial budget.
type Failure struct {
	Topology  string
	Trials    int
	LastValid int // largest k with particles 0..k free in the final attempt
}

func (f *Failure) Error() string {
	return fmt.Sprintf("chain %s did not fit into free volume after %d corrections (last valid particle %d)", f.Topology, f.Trials, f.LastValid)
}

// Unwrap exposes the GEOMETRY_EXHAUSTED code to errors.Is.
func (f *Failure) Unwrap() error {
	return errors.New(errors.ErrCodeGeometryExhausted, "correction budget exhausted")
}

// PlaceBulk grows a molecule between first and last and repairs it until
// every particle lies in free volume.
//
// With k the largest index such that particles 0..k are free:
//   - k is the last index: the molecule is accepted
//   - 0 < k: the chain is regrown from particle 0 towards particle k
//   - k == 0: the chain is regrown towards a new last anchor drawn from free
//   - k < 0: both anchors are redrawn
//
// Every regrowth is checked again. After MaxCorrectionTrials regrowths a
// *Failure is returned. ctx is checked before every attempt.
func (p *Placer) PlaceBulk(ctx context.Context, t *topology.Topology, first, last r3.Vec, free FreeVolume, rng *rand.Rand) (Outcome, error) {
	var out Outcome
	limit := p.MaxCorrectionTrials
	if limit <= 0 {
		limit = DefaultMaxCorrectionTrials
	}

	pos, err := p.Place(t, first, last, rng)
	if err != nil {
		return out, err
	}

	for trial := 0; ; trial++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		k := ValidPrefix(pos, free)
		if k == len(pos)-1 {
			out.Positions = pos
			return out, nil
		}
		if trial >= limit {
			return out, &Failure{Topology: t.Source, Trials: trial, LastValid: k}
		}

		switch {
		case k > 0:
			first, last = pos[0], pos[k]
			out.Shrinks++
		case k == 0:
			np, ok := free.RandomFreePoint(rng)
			if !ok {
				return out, &Failure{Topology: t.Source, Trials: trial, LastValid: k}
			}
			first, last = pos[0], np
			out.Redraws++
		default:
			nf, ok1 := free.RandomFreePoint(rng)
			nl, ok2 := free.RandomFreePoint(rng)
			if !ok1 || !ok2 {
				return out, &Failure{Topology: t.Source, Trials: trial, LastValid: k}
			}
			first, last = nf, nl
			out.Redraws++
		}

		if pos, err = p.Place(t, first, last, rng); err != nil {
			return out, err
		}
	}
}

// ValidPrefix returns the largest k such that pos[0..k] all lie in free, or
// -1 if pos[0] does not.
func ValidPrefix(pos []r3.Vec, free FreeVolume) int {
	for i, q := range pos {
		if !free.InFreeVolume(q) {
			return i - 1
		}
	}
	return len(pos) - 1
}
