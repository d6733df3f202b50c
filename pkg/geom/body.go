package geom

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/matzehuels/molplace/pkg/errors"
)

// Face selects which surface of a body to sample.
type Face int

const (
	FaceAll Face = iota
	FaceUpper
	FaceMiddle
	FaceLower
)

var faceNames = map[Face]string{
	FaceAll:    "all",
	FaceUpper:  "upper",
	FaceMiddle: "middle",
	FaceLower:  "lower",
}

func (f Face) String() string {
	if s, ok := faceNames[f]; ok {
		return s
	}
	return fmt.Sprintf("face(%d)", int(f))
}

// ParseFace parses a face name. The empty string selects FaceAll.
func ParseFace(s string) (Face, error) {
	if s == "" {
		return FaceAll, nil
	}
	for f, name := range faceNames {
		if strings.EqualFold(s, name) {
			return f, nil
		}
	}
	return FaceAll, errors.New(errors.ErrCodeInvalidInput, "unknown face %q (must be all, upper, middle or lower)", s)
}

// Body is a region of the simulation box that particles can be placed in.
type Body interface {
	// Name identifies the body in compositions and exclusion bookkeeping.
	Name() string

	// Volume returns the geometric volume of the body.
	Volume() float64

	// Center returns the geometric center of the body.
	Center() r3.Vec

	// Contains reports whether p lies inside the body, ignoring exclusions.
	Contains(p r3.Vec) bool

	// SamplePoint draws a candidate uniformly from the body's sampling
	// region. For bodies with holes the candidate may fall outside Contains.
	SamplePoint(rng *rand.Rand) r3.Vec

	// SurfacePoint draws a point uniformly from the requested face.
	SurfacePoint(face Face, rng *rand.Rand) (r3.Vec, error)
}

// InFreeVolume reports whether p lies inside body and outside every exclusion
// sphere recorded against it in ctx.
func InFreeVolume(body Body, ctx *PlacementContext, p r3.Vec) bool {
	return body.Contains(p) && !ctx.excludedAt(body.Name(), p)
}

// RandomVolumePoint draws a point from the free volume of body, retrying up to
// maxTrials times. The second result is false if no free point was found.
func RandomVolumePoint(body Body, ctx *PlacementContext, maxTrials int, rng *rand.Rand) (r3.Vec, bool) {
	for range max(maxTrials, 1) {
		p := body.SamplePoint(rng)
		if InFreeVolume(body, ctx, p) {
			return p, true
		}
	}
	return r3.Vec{}, false
}

// FillRandomVolumePoints appends up to quantity free-volume points to dst.
// Each point may take up to maxTrials attempts; points that cannot be seated
// are skipped and counted in the second result.
func FillRandomVolumePoints(dst []r3.Vec, body Body, ctx *PlacementContext, quantity, maxTrials int, rng *rand.Rand) ([]r3.Vec, int) {
	missed := 0
	for range quantity {
		p, ok := RandomVolumePoint(body, ctx, maxTrials, rng)
		if !ok {
			missed++
			continue
		}
		dst = append(dst, p)
	}
	return dst, missed
}

// FillRandomSurfacePoints appends quantity points from the given face of body.
func FillRandomSurfacePoints(dst []r3.Vec, body Body, face Face, quantity int, rng *rand.Rand) ([]r3.Vec, error) {
	dst = slices.Grow(dst, capHint(quantity))
	for range quantity {
		p, err := body.SurfacePoint(face, rng)
		if err != nil {
			return dst, err
		}
		dst = append(dst, p)
	}
	return dst, nil
}

// maxPrealloc bounds capacity reserved up front from a requested count;
// larger results grow by appending.
const maxPrealloc = 1 << 12

func capHint(n int) int { return min(max(n, 0), maxPrealloc) }

// NonOverlappingRandomSpheres seats up to count spheres of the given radius
// inside body by rejection sampling.
//
// A candidate center is accepted when it lies in the body and its distance to
// every accepted center and every exclusion sphere recorded against the body
// is at least 2*radius (or radius plus the exclusion radius, if larger).
// After maxTrials consecutive rejections the spheres seated so far are
// returned; this early termination is not an error.
//
// The function does not record the spheres in ctx.
func NonOverlappingRandomSpheres(body Body, ctx *PlacementContext, count int, radius float64, maxTrials int, rng *rand.Rand) []Sphere {
	accepted := make([]Sphere, 0, capHint(count))
	existing := ctx.Excluded(body.Name())
	minSame := 2 * radius

	rejections := 0
	for len(accepted) < count && rejections < maxTrials {
		c := body.SamplePoint(rng)
		if !body.Contains(c) || !clearOf(c, accepted, minSame) || !clearOfExisting(c, existing, radius) {
			rejections++
			continue
		}
		accepted = append(accepted, Sphere{Center: c, Radius: radius})
		rejections = 0
	}
	return accepted
}

func clearOf(c r3.Vec, spheres []Sphere, minDist float64) bool {
	for _, s := range spheres {
		if Distance(c, s.Center) < minDist {
			return false
		}
	}
	return true
}

func clearOfExisting(c r3.Vec, spheres []Sphere, radius float64) bool {
	for _, s := range spheres {
		if Distance(c, s.Center) < max(2*radius, radius+s.Radius) {
			return false
		}
	}
	return true
}

// Region binds a body to the exclusions of one run. It is the free-volume
// view chain correction works against.
type Region struct {
	Body      Body
	Ctx       *PlacementContext
	MaxTrials int
}

// InFreeVolume reports whether p lies in the free volume of the region.
func (r Region) InFreeVolume(p r3.Vec) bool {
	return InFreeVolume(r.Body, r.Ctx, p)
}

// RandomFreePoint draws a point from the free volume of the region.
func (r Region) RandomFreePoint(rng *rand.Rand) (r3.Vec, bool) {
	return RandomVolumePoint(r.Body, r.Ctx, r.MaxTrials, rng)
}
