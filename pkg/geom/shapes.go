package geom

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/matzehuels/molplace/pkg/errors"
)

// =============================================================================
// SphereBody
// =============================================================================

// SphereBody is a spherical compartment.
type SphereBody struct {
	ID     string
	Sphere Sphere
}

// NewSphereBody creates a spherical compartment.
func NewSphereBody(name string, center r3.Vec, radius float64) *SphereBody {
	return &SphereBody{ID: name, Sphere: Sphere{Center: center, Radius: radius}}
}

func (b *SphereBody) Name() string   { return b.ID }
func (b *SphereBody) Center() r3.Vec { return b.Sphere.Center }

func (b *SphereBody) Volume() float64 {
	r := b.Sphere.Radius
	return 4.0 / 3.0 * math.Pi * r * r * r
}

func (b *SphereBody) Contains(p r3.Vec) bool { return b.Sphere.Contains(p) }

// SamplePoint draws a point uniformly from the ball.
func (b *SphereBody) SamplePoint(rng *rand.Rand) r3.Vec {
	r := b.Sphere.Radius * math.Cbrt(rng.Float64())
	return r3.Add(b.Sphere.Center, r3.Scale(r, RandomUnit(rng)))
}

// SurfacePoint draws a point from the sphere surface. FaceUpper and FaceLower
// select the hemisphere with z above or below the center; FaceMiddle selects
// the equator.
func (b *SphereBody) SurfacePoint(face Face, rng *rand.Rand) (r3.Vec, error) {
	u := RandomUnit(rng)
	switch face {
	case FaceAll:
	case FaceUpper:
		u.Z = math.Abs(u.Z)
	case FaceLower:
		u.Z = -math.Abs(u.Z)
	case FaceMiddle:
		phi := 2 * math.Pi * rng.Float64()
		u = r3.Vec{X: math.Cos(phi), Y: math.Sin(phi)}
	default:
		return r3.Vec{}, errors.New(errors.ErrCodeUnsupported, "sphere %q has no face %s", b.ID, face)
	}
	return r3.Add(b.Sphere.Center, r3.Scale(b.Sphere.Radius, u)), nil
}

// =============================================================================
// LayerBody
// =============================================================================

// LayerBody is an axis-aligned slab. Its upper and lower faces are planes of
// constant z.
type LayerBody struct {
	ID  string
	Min r3.Vec
	Max r3.Vec
}

// NewLayerBody creates a slab from its two corners.
func NewLayerBody(name string, lo, hi r3.Vec) *LayerBody {
	return &LayerBody{
		ID:  name,
		Min: r3.Vec{X: math.Min(lo.X, hi.X), Y: math.Min(lo.Y, hi.Y), Z: math.Min(lo.Z, hi.Z)},
		Max: r3.Vec{X: math.Max(lo.X, hi.X), Y: math.Max(lo.Y, hi.Y), Z: math.Max(lo.Z, hi.Z)},
	}
}

func (b *LayerBody) Name() string { return b.ID }

func (b *LayerBody) Center() r3.Vec { return Lerp(b.Min, b.Max, 0.5) }

func (b *LayerBody) Volume() float64 {
	d := r3.Sub(b.Max, b.Min)
	return d.X * d.Y * d.Z
}

func (b *LayerBody) Contains(p r3.Vec) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

func (b *LayerBody) SamplePoint(rng *rand.Rand) r3.Vec {
	return b.pointAt(rng.Float64(), rng.Float64(), rng.Float64())
}

// SurfacePoint draws a point from the upper, lower or middle xy-plane of the
// slab. FaceAll picks the upper or lower plane with equal probability.
func (b *LayerBody) SurfacePoint(face Face, rng *rand.Rand) (r3.Vec, error) {
	fx, fy := rng.Float64(), rng.Float64()
	switch face {
	case FaceUpper:
		return b.pointAt(fx, fy, 1), nil
	case FaceLower:
		return b.pointAt(fx, fy, 0), nil
	case FaceMiddle:
		return b.pointAt(fx, fy, 0.5), nil
	case FaceAll:
		if rng.Float64() < 0.5 {
			return b.pointAt(fx, fy, 0), nil
		}
		return b.pointAt(fx, fy, 1), nil
	}
	return r3.Vec{}, errors.New(errors.ErrCodeUnsupported, "layer %q has no face %s", b.ID, face)
}

func (b *LayerBody) pointAt(fx, fy, fz float64) r3.Vec {
	return r3.Vec{
		X: b.Min.X + fx*(b.Max.X-b.Min.X),
		Y: b.Min.Y + fy*(b.Max.Y-b.Min.Y),
		Z: b.Min.Z + fz*(b.Max.Z-b.Min.Z),
	}
}

// =============================================================================
// BulkBody
// =============================================================================

// BulkBody is the simulation box minus every compartment body.
type BulkBody struct {
	Box          r3.Vec
	Compartments []Body
}

// NewBulkBody creates the bulk region of a box of the given edge lengths.
func NewBulkBody(box r3.Vec, compartments ...Body) *BulkBody {
	return &BulkBody{Box: box, Compartments: compartments}
}

func (b *BulkBody) Name() string   { return BulkName }
func (b *BulkBody) Center() r3.Vec { return r3.Scale(0.5, b.Box) }

// Volume returns the box volume minus the compartment volumes. Compartments
// are assumed to be disjoint and inside the box.
func (b *BulkBody) Volume() float64 {
	v := b.Box.X * b.Box.Y * b.Box.Z
	for _, c := range b.Compartments {
		v -= c.Volume()
	}
	return math.Max(v, 0)
}

func (b *BulkBody) Contains(p r3.Vec) bool {
	if !InBox(p, b.Box) {
		return false
	}
	for _, c := range b.Compartments {
		if c.Contains(p) {
			return false
		}
	}
	return true
}

// SamplePoint draws a point uniformly from the whole box; callers filter with
// Contains or InFreeVolume.
func (b *BulkBody) SamplePoint(rng *rand.Rand) r3.Vec {
	return r3.Vec{X: rng.Float64() * b.Box.X, Y: rng.Float64() * b.Box.Y, Z: rng.Float64() * b.Box.Z}
}

// SurfacePoint is not defined for the bulk.
func (b *BulkBody) SurfacePoint(face Face, rng *rand.Rand) (r3.Vec, error) {
	return r3.Vec{}, errors.New(errors.ErrCodeUnsupported, "bulk has no surface")
}

var (
	_ Body = (*SphereBody)(nil)
	_ Body = (*LayerBody)(nil)
	_ Body = (*BulkBody)(nil)
)
