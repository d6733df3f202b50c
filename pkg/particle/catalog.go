package particle

import (
	"fmt"
	"sort"
	"sync"
)

// DefaultColor is used for particles the catalog has no color for.
const DefaultColor = "#8c8c8c"

// Catalog resolves molecule/particle names to shared Kind descriptors.
// Implementations must return the same pointer for repeated lookups so that
// positions share descriptors.
type Catalog interface {
	Kind(molecule, particle string) (*Kind, error)
	Molecules() []string
}

// ParticleInfo is the force-field entry for a particle type.
type ParticleInfo struct {
	Color  string  `toml:"color" json:"color,omitempty"`
	Radius float64 `toml:"radius" json:"radius,omitempty"`
}

// MapCatalog is a Catalog backed by per-particle info and a default radius.
//
// Kinds are created lazily on first lookup and cached per (molecule, particle).
// MapCatalog is safe for concurrent use.
type MapCatalog struct {
	mu            sync.Mutex
	particles     map[string]ParticleInfo
	defaultRadius float64
	kinds         map[string]*Kind
	molecules     map[string]bool
}

// NewMapCatalog creates a catalog from particle info. Particles missing from
// info get defaultRadius and DefaultColor.
func NewMapCatalog(info map[string]ParticleInfo, defaultRadius float64) *MapCatalog {
	particles := make(map[string]ParticleInfo, len(info))
	for name, pi := range info {
		particles[name] = pi
	}
	return &MapCatalog{
		particles:     particles,
		defaultRadius: defaultRadius,
		kinds:         make(map[string]*Kind),
		molecules:     make(map[string]bool),
	}
}

// Kind returns the shared descriptor for particle within molecule.
func (c *MapCatalog) Kind(molecule, particle string) (*Kind, error) {
	if molecule == "" || particle == "" {
		return nil, fmt.Errorf("kind lookup: empty molecule or particle name")
	}
	key := molecule + "\x00" + particle

	c.mu.Lock()
	defer c.mu.Unlock()

	if k, ok := c.kinds[key]; ok {
		return k, nil
	}
	info := c.particles[particle]
	if info.Radius <= 0 {
		info.Radius = c.defaultRadius
	}
	if info.Color == "" {
		info.Color = DefaultColor
	}
	k := &Kind{Particle: particle, Molecule: molecule, Color: info.Color, Radius: info.Radius}
	c.kinds[key] = k
	c.molecules[molecule] = true
	return k, nil
}

// Molecules returns the names of all molecules looked up so far, sorted.
func (c *MapCatalog) Molecules() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.molecules))
	for m := range c.molecules {
		names = append(names, m)
	}
	sort.Strings(names)
	return names
}

var _ Catalog = (*MapCatalog)(nil)
