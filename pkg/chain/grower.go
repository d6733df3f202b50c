// Package chain materializes the coordinates of bonded molecules.
//
// A [Grower] turns a topology and two anchor points into one coordinate per
// particle. [Placer] owns the bond length, picks anchors and, for molecules
// placed in the bulk, runs the correction loop that repairs chains leaving
// the free volume.
package chain

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/matzehuels/molplace/pkg/errors"
	"github.com/matzehuels/molplace/pkg/geom"
	"github.com/matzehuels/molplace/pkg/topology"
)

// Grower produces the coordinates of every particle of one molecule, with the
// first backbone particle at first and the backbone heading towards last.
// Consecutive bonded particles are bond apart.
type Grower interface {
	Grow(t *topology.Topology, first, last r3.Vec, bond float64, rng *rand.Rand) ([]r3.Vec, error)
}

// GrowerFunc adapts a function to the Grower interface.
type GrowerFunc func(t *topology.Topology, first, last r3.Vec, bond float64, rng *rand.Rand) ([]r3.Vec, error)

// Grow calls f.
func (f GrowerFunc) Grow(t *topology.Topology, first, last r3.Vec, bond float64, rng *rand.Rand) ([]r3.Vec, error) {
	return f(t, first, last, bond, rng)
}

// WalkGrower grows the backbone as a guided random walk.
//
// Every backbone step is exactly the bond length. The step direction points
// at the last anchor and is deflected by a random component proportional to
// the remaining slack, the difference between the length the remaining steps
// could cover and the distance still to go. With no slack left the walk is
// straight. Branch particles are placed one bond away from their parent,
// pointing away from the grandparent.
type WalkGrower struct{}

// Grow implements Grower.
func (WalkGrower) Grow(t *topology.Topology, first, last r3.Vec, bond float64, rng *rand.Rand) ([]r3.Vec, error) {
	if bond <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidConfiguration, "bond length must be positive, got %g", bond)
	}
	n := t.Len()
	out := make([]r3.Vec, n)
	placed := make([]bool, n)

	bb := t.Backbone
	out[bb[0]] = first
	placed[bb[0]] = true

	for j := 1; j < len(bb); j++ {
		cur := out[bb[j-1]]
		steps := float64(len(bb) - j) // steps left including this one
		out[bb[j]] = r3.Add(cur, r3.Scale(bond, stepDirection(cur, last, steps*bond, rng)))
		placed[bb[j]] = true
	}

	for i := range n {
		if placed[i] {
			continue
		}
		parent := t.Parent[i]
		var away r3.Vec
		if gp := t.Parent[parent]; gp >= 0 {
			if a := r3.Sub(out[parent], out[gp]); r3.Norm(a) > 1e-12 {
				away = r3.Unit(a)
			}
		}
		dir := r3.Add(geom.RandomUnit(rng), away)
		for r3.Norm(dir) < 1e-6 {
			dir = r3.Add(geom.RandomUnit(rng), away)
		}
		out[i] = r3.Add(out[parent], r3.Scale(bond, r3.Unit(dir)))
		placed[i] = true
	}
	return out, nil
}

// stepDirection returns the unit direction of the next backbone step from cur
// towards target, given the path length the remaining steps can cover.
func stepDirection(cur, target r3.Vec, reach float64, rng *rand.Rand) r3.Vec {
	to := r3.Sub(target, cur)
	d := r3.Norm(to)
	if d < 1e-12 {
		return geom.RandomUnit(rng)
	}
	base := r3.Scale(1/d, to)
	slack := reach - d
	if slack <= 0 {
		return base
	}
	s := min(1, slack/reach)
	dir := r3.Add(r3.Scale(1-s, base), r3.Scale(s, geom.RandomUnit(rng)))
	if n := r3.Norm(dir); n > 1e-12 {
		return r3.Scale(1/n, dir)
	}
	return base
}
