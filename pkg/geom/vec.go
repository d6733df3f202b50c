package geom

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/spatial/r3"
)

// Distance returns the Euclidean distance between a and b.
func Distance(a, b r3.Vec) float64 {
	return r3.Norm(r3.Sub(a, b))
}

// Lerp returns the point a + t*(b-a).
func Lerp(a, b r3.Vec, t float64) r3.Vec {
	return r3.Add(a, r3.Scale(t, r3.Sub(b, a)))
}

// RandomUnit returns a uniformly distributed unit vector.
func RandomUnit(rng *rand.Rand) r3.Vec {
	for {
		v := r3.Vec{X: rng.NormFloat64(), Y: rng.NormFloat64(), Z: rng.NormFloat64()}
		if n := r3.Norm(v); n > 1e-12 {
			return r3.Scale(1/n, v)
		}
	}
}

// Orthogonal returns a unit vector perpendicular to v.
func Orthogonal(v r3.Vec) r3.Vec {
	axis := r3.Vec{X: 1}
	if math.Abs(v.X) > 0.9*r3.Norm(v) {
		axis = r3.Vec{Y: 1}
	}
	return r3.Unit(r3.Cross(v, axis))
}

// InBox reports whether p lies in the box [0, box] on every axis.
func InBox(p, box r3.Vec) bool {
	return p.X >= 0 && p.X <= box.X &&
		p.Y >= 0 && p.Y <= box.Y &&
		p.Z >= 0 && p.Z <= box.Z
}

// NewRand returns the seeded generator used for reproducible placement.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0xdeadbeef))
}
