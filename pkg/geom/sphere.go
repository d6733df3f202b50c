package geom

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// Sphere is a center and a radius. It is used both as a body shape and as an
// exclusion region.
type Sphere struct {
	Center r3.Vec  `json:"center"`
	Radius float64 `json:"radius"`
}

// Contains reports whether p lies inside or on the sphere.
func (s Sphere) Contains(p r3.Vec) bool {
	d := r3.Sub(p, s.Center)
	return r3.Dot(d, d) <= s.Radius*s.Radius
}

// Overlaps reports whether s and o intersect.
func (s Sphere) Overlaps(o Sphere) bool {
	return Distance(s.Center, o.Center) < s.Radius+o.Radius
}

func (s Sphere) String() string {
	return fmt.Sprintf("sphere(%.3f, %.3f, %.3f; r=%.3f)", s.Center.X, s.Center.Y, s.Center.Z, s.Radius)
}
