// Package protein places the particles of protein-sized globules.
//
// A [Descriptor] lists the particles of a protein and, optionally, their
// coordinates relative to any origin. A [Generator] maps a descriptor into a
// target sphere. The placement engine treats the generator as a black box;
// [ShellGenerator] is the default implementation.
package protein

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/matzehuels/molplace/pkg/errors"
)

// Orientation selects how a protein is rotated into its target sphere.
type Orientation int

const (
	// OrientationFixed keeps the descriptor's own orientation.
	OrientationFixed Orientation = iota
	// OrientationRandom applies a uniformly distributed rotation.
	OrientationRandom
)

func (o Orientation) String() string {
	if o == OrientationRandom {
		return "random"
	}
	return "fixed"
}

// Descriptor describes one protein.
type Descriptor struct {
	Name      string   `toml:"name" json:"name"`
	Particles []string `toml:"particles" json:"particles"`

	// Offsets holds one relative coordinate per particle. When empty the
	// particles are spread evenly through the target sphere.
	Offsets []r3.Vec `toml:"-" json:"offsets,omitempty"`

	// Radius is the radius of the sphere the protein occupies. Zero means
	// the caller picks it from the particle count.
	Radius float64 `toml:"radius" json:"radius,omitempty"`
}

// Len returns the number of particles of the protein.
func (d *Descriptor) Len() int { return len(d.Particles) }

// Validate checks the descriptor for consistency.
func (d *Descriptor) Validate() error {
	if d.Name == "" {
		return errors.New(errors.ErrCodeInvalidInput, "protein name cannot be empty")
	}
	if len(d.Particles) == 0 {
		return errors.New(errors.ErrCodeInvalidInput, "protein %q has no particles", d.Name)
	}
	for _, p := range d.Particles {
		if err := errors.ValidateParticleName(p); err != nil {
			return fmt.Errorf("protein %q: %w", d.Name, err)
		}
	}
	if len(d.Offsets) > 0 && len(d.Offsets) != len(d.Particles) {
		return errors.New(errors.ErrCodeInvalidInput, "protein %q has %d offsets for %d particles", d.Name, len(d.Offsets), len(d.Particles))
	}
	if d.Radius < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "protein %q has negative radius", d.Name)
	}
	return nil
}

// EstimateRadius returns the radius of a sphere that holds n particles of the
// given radius at the packing fraction of random close packing.
func EstimateRadius(n int, particleRadius float64) float64 {
	const packing = 0.64
	return particleRadius * math.Cbrt(float64(n)/packing)
}

// Generator maps a protein descriptor into a target sphere.
type Generator interface {
	Generate(d *Descriptor, center r3.Vec, radius float64, o Orientation, rng *rand.Rand) ([]r3.Vec, error)
}

// ShellGenerator scales the descriptor's offsets into the target sphere, or
// spreads the particles on a Fibonacci lattice through it when the
// descriptor has no offsets.
type ShellGenerator struct{}

// Generate implements Generator.
func (ShellGenerator) Generate(d *Descriptor, center r3.Vec, radius float64, o Orientation, rng *rand.Rand) ([]r3.Vec, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if radius <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "protein %q needs a positive radius", d.Name)
	}

	local := d.Offsets
	if len(local) == 0 {
		local = fibonacciBall(len(d.Particles))
	} else {
		local = normalize(local)
	}

	rot := r3.Rotation(quat.Number{Real: 1})
	if o == OrientationRandom {
		rot = RandomRotation(rng)
	}

	out := make([]r3.Vec, len(local))
	for i, v := range local {
		out[i] = r3.Add(center, r3.Scale(radius, rot.Rotate(v)))
	}
	return out, nil
}

// normalize centers offsets on their centroid and scales them into the unit ball.
func normalize(offsets []r3.Vec) []r3.Vec {
	var c r3.Vec
	for _, v := range offsets {
		c = r3.Add(c, v)
	}
	c = r3.Scale(1/float64(len(offsets)), c)

	out := make([]r3.Vec, len(offsets))
	dist := make([]float64, len(offsets))
	for i, v := range offsets {
		out[i] = r3.Sub(v, c)
		dist[i] = r3.Norm(out[i])
	}
	maxd := floats.Max(dist)
	if maxd == 0 {
		return out
	}
	for i := range out {
		out[i] = r3.Scale(1/maxd, out[i])
	}
	return out
}

// fibonacciBall returns n points spread evenly through the unit ball.
func fibonacciBall(n int) []r3.Vec {
	golden := math.Pi * (3 - math.Sqrt(5))
	invPhi := (math.Sqrt(5) - 1) / 2
	out := make([]r3.Vec, n)
	for i := range n {
		f := (float64(i) + 0.5) / float64(n)
		r := math.Cbrt(f)
		z := 1 - 2*math.Mod((float64(i)+0.5)*invPhi, 1)
		rho := math.Sqrt(1 - z*z)
		phi := golden * float64(i)
		out[i] = r3.Scale(r, r3.Vec{X: rho * math.Cos(phi), Y: rho * math.Sin(phi), Z: z})
	}
	return out
}

// RandomRotation returns a uniformly distributed rotation.
func RandomRotation(rng *rand.Rand) r3.Rotation {
	u1, u2, u3 := rng.Float64(), rng.Float64(), rng.Float64()
	a, b := math.Sqrt(1-u1), math.Sqrt(u1)
	return r3.Rotation(quat.Number{
		Real: b * math.Cos(2*math.Pi*u3),
		Imag: a * math.Sin(2*math.Pi*u2),
		Jmag: a * math.Cos(2*math.Pi*u2),
		Kmag: b * math.Sin(2*math.Pi*u3),
	})
}
