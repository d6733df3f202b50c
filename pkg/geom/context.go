package geom

import (
	"maps"

	"gonum.org/v1/gonum/spatial/r3"
)

// BulkName is the key under which bulk exclusions are recorded.
const BulkName = "bulk"

// PlacementContext carries the exclusion spheres of one placement run.
//
// A context is created when a run starts and dropped when it ends. It is
// single-writer and must not be shared between concurrently running tasks.
type PlacementContext struct {
	excluded map[string][]Sphere
}

// NewPlacementContext returns an empty context.
func NewPlacementContext() *PlacementContext {
	return &PlacementContext{excluded: make(map[string][]Sphere)}
}

// Exclude records s against the body called name.
func (c *PlacementContext) Exclude(name string, s Sphere) {
	c.excluded[name] = append(c.excluded[name], s)
}

// SetExcluded replaces the exclusion list of the body called name.
func (c *PlacementContext) SetExcluded(name string, spheres []Sphere) {
	if len(spheres) == 0 {
		delete(c.excluded, name)
		return
	}
	c.excluded[name] = append([]Sphere(nil), spheres...)
}

// Excluded returns the exclusion spheres recorded against name.
// The returned slice must not be modified.
func (c *PlacementContext) Excluded(name string) []Sphere {
	if c == nil {
		return nil
	}
	return c.excluded[name]
}

// Count returns the total number of exclusion spheres in the context.
func (c *PlacementContext) Count() int {
	if c == nil {
		return 0
	}
	n := 0
	for _, s := range c.excluded {
		n += len(s)
	}
	return n
}

// Clear removes every exclusion sphere.
func (c *PlacementContext) Clear() {
	clear(c.excluded)
}

// Snapshot returns a copy of all exclusion lists keyed by body name.
func (c *PlacementContext) Snapshot() map[string][]Sphere {
	out := maps.Clone(c.excluded)
	for k, v := range out {
		out[k] = append([]Sphere(nil), v...)
	}
	return out
}

// excludedAt reports whether p falls inside any exclusion sphere of name.
func (c *PlacementContext) excludedAt(name string, p r3.Vec) bool {
	for _, s := range c.Excluded(name) {
		if s.Contains(p) {
			return true
		}
	}
	return false
}
