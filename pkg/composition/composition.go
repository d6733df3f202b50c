// Package composition describes what a placement run should produce.
//
// A [Composition] holds the global parameters of a run (seed, box, bond
// length, particle radius), the compartment bodies, the particle catalog
// entries and an ordered list of [Row]s. Each row asks for a number of
// instances of one molecule in one region: the bulk, the volume of a
// compartment, or a compartment surface.
//
// Compositions are read from TOML files:
//
//	seed = 42
//	box = [20.0, 20.0, 20.0]
//
//	[[bodies]]
//	name = "cell"
//	type = "sphere"
//	center = [10.0, 10.0, 10.0]
//	radius = 5.0
//
//	[[rows]]
//	molecule = "DMPC"
//	topology = "H-[T]4"
//	surface = 200
//	body = "cell"
//
// Validate completes a Composition: it parses topologies, checks quantities
// against [MaxTotalParticles] and builds the bulk body. Afterwards a
// Composition is read-only and may be shared between goroutines; the
// placement engine never modifies it.
package composition

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/matzehuels/molplace/pkg/errors"
	"github.com/matzehuels/molplace/pkg/geom"
	"github.com/matzehuels/molplace/pkg/particle"
	"github.com/matzehuels/molplace/pkg/protein"
	"github.com/matzehuels/molplace/pkg/topology"
)

// =============================================================================
// Default Values
// =============================================================================

const (
	DefaultSeed                = uint64(42)
	DefaultParticleRadius      = 0.5
	DefaultBondLength          = 0.5
	DefaultDensity             = 3.0
	DefaultLengthConversion    = 1.0
	DefaultMaxTrials           = 1000
	DefaultMaxCorrectionTrials = 100
)

// MaxTotalParticles caps the particles one composition may request.
const MaxTotalParticles = 1 << 25

// Body types.
const (
	BodySphere = "sphere"
	BodyLayer  = "layer"
)

// =============================================================================
// Types
// =============================================================================

// Row is one "place N instances of molecule M in region R" line.
type Row struct {
	Molecule string
	Topology string
	Protein  *protein.Descriptor

	// Volume and Surface are instance counts.
	Volume  int
	Surface int

	// Body names the compartment; empty or geom.BulkName selects the bulk.
	Body string
	Face geom.Face

	// RandomOrientation rotates protein instances randomly.
	RandomOrientation bool

	parsed *topology.Topology
}

// IsProtein reports whether the row carries protein structure data.
func (r *Row) IsProtein() bool { return r.Protein != nil }

// InBulk reports whether the row targets the bulk region.
func (r *Row) InBulk() bool { return r.Body == "" || r.Body == geom.BulkName }

// Instances returns the number of molecule instances requested.
func (r *Row) Instances() int { return r.Volume + r.Surface }

// Structure returns the parsed topology of a non-protein row.
func (r *Row) Structure() *topology.Topology { return r.parsed }

// ParticlesPerInstance returns the particle count of one molecule instance.
func (r *Row) ParticlesPerInstance() int {
	if r.Protein != nil {
		return r.Protein.Len()
	}
	if r.parsed != nil {
		return r.parsed.Len()
	}
	return 0
}

// Particles returns the particle names of one instance in order.
func (r *Row) Particles() []string {
	if r.Protein != nil {
		return r.Protein.Particles
	}
	if r.parsed != nil {
		return r.parsed.Particles
	}
	return nil
}

// Composition is a validated, ready-to-place configuration.
type Composition struct {
	Name                string
	Seed                uint64
	ParticleRadius      float64
	BondLength          float64
	Density             float64
	LengthConversion    float64
	Box                 r3.Vec
	MaxTrials           int
	MaxCorrectionTrials int

	Particles map[string]particle.ParticleInfo
	Bodies    []geom.Body
	Rows      []Row

	bulk *geom.BulkBody
}

// Body returns the body called name. Empty or geom.BulkName returns the bulk.
func (c *Composition) Body(name string) (geom.Body, bool) {
	if name == "" || name == geom.BulkName {
		if c.bulk == nil {
			// not validated yet
			return geom.NewBulkBody(c.Box, c.Bodies...), true
		}
		return c.bulk, true
	}
	for _, b := range c.Bodies {
		if b.Name() == name {
			return b, true
		}
	}
	return nil, false
}

// TotalParticles returns the number of particles a complete run produces.
// Validate guarantees the sum fits MaxTotalParticles.
func (c *Composition) TotalParticles() int {
	n := 0
	for i := range c.Rows {
		n += c.Rows[i].Instances() * c.Rows[i].ParticlesPerInstance()
	}
	return n
}

// Catalog returns a particle catalog built from the composition's particle
// table and default radius.
func (c *Composition) Catalog() *particle.MapCatalog {
	return particle.NewMapCatalog(c.Particles, c.ParticleRadius)
}

// ProteinFirstOrder returns the row indices with protein rows first, each
// group keeping its original relative order. The rows themselves are not
// reordered.
func (c *Composition) ProteinFirstOrder() []int {
	order := make([]int, 0, len(c.Rows))
	for i := range c.Rows {
		if c.Rows[i].IsProtein() {
			order = append(order, i)
		}
	}
	for i := range c.Rows {
		if !c.Rows[i].IsProtein() {
			order = append(order, i)
		}
	}
	return order
}

// Validate checks rows, bodies and global parameters, and parses every
// topology. It is called by the loaders; callers assembling a Composition by
// hand must call it before placement.
func (c *Composition) Validate() error {
	if c.Box.X <= 0 || c.Box.Y <= 0 || c.Box.Z <= 0 {
		return errors.New(errors.ErrCodeInvalidConfiguration, "box edges must be positive, got %v", c.Box)
	}
	if c.BondLength <= 0 {
		return errors.New(errors.ErrCodeInvalidConfiguration, "bond length must be positive")
	}
	if c.ParticleRadius <= 0 {
		return errors.New(errors.ErrCodeInvalidConfiguration, "particle radius must be positive")
	}
	if c.MaxTrials < 1 || c.MaxCorrectionTrials < 1 {
		return errors.New(errors.ErrCodeInvalidConfiguration, "trial limits must be at least 1")
	}

	seen := map[string]bool{geom.BulkName: true}
	for _, b := range c.Bodies {
		if err := errors.ValidateName("body", b.Name()); err != nil {
			return err
		}
		if seen[b.Name()] {
			return errors.New(errors.ErrCodeInvalidConfiguration, "duplicate body name %q", b.Name())
		}
		seen[b.Name()] = true
	}

	for i := range c.Rows {
		r := &c.Rows[i]
		if err := errors.ValidateName("molecule", r.Molecule); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidInput, err, "row %d", i+1)
		}
		if r.Volume < 0 || r.Surface < 0 {
			return errors.New(errors.ErrCodeInvalidInput, "row %d (%s): quantities cannot be negative", i+1, r.Molecule)
		}
		if r.Protein != nil {
			if err := r.Protein.Validate(); err != nil {
				return errors.Wrap(errors.ErrCodeInvalidInput, err, "row %d (%s)", i+1, r.Molecule)
			}
		} else {
			t, err := topology.Parse(r.Topology)
			if err != nil {
				return errors.Wrap(errors.ErrCodeInvalidTopology, err, "row %d (%s)", i+1, r.Molecule)
			}
			r.parsed = t
		}
		if r.Surface > 0 && r.InBulk() {
			return errors.New(errors.ErrCodeInvalidInput, "row %d (%s): the bulk has no surface", i+1, r.Molecule)
		}
	}
	if err := c.CheckQuantities(); err != nil {
		return err
	}
	c.bulk = geom.NewBulkBody(c.Box, c.Bodies...)
	return nil
}

// CheckQuantities rejects rows whose particles would push the composition
// past MaxTotalParticles, with INVALID_INPUT. Comparisons are arranged so
// nothing overflows.
func (c *Composition) CheckQuantities() error {
	total := 0
	for i := range c.Rows {
		r := &c.Rows[i]
		left := MaxTotalParticles - total
		per := max(r.ParticlesPerInstance(), 1)
		if r.Volume > left || r.Surface > left || r.Volume+r.Surface > left/per {
			return errors.New(errors.ErrCodeInvalidInput,
				"row %d (%s): %d volume and %d surface instances of %d particles exceed the limit of %d particles",
				i+1, r.Molecule, r.Volume, r.Surface, per, MaxTotalParticles)
		}
		total += r.Instances() * per
	}
	return nil
}
