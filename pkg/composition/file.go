package composition

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/matzehuels/molplace/pkg/errors"
	"github.com/matzehuels/molplace/pkg/geom"
	"github.com/matzehuels/molplace/pkg/particle"
	"github.com/matzehuels/molplace/pkg/protein"
)

// File is the on-disk form of a composition. It supports TOML and JSON.
type File struct {
	Name                string                           `toml:"name" json:"name,omitempty"`
	Seed                uint64                           `toml:"seed" json:"seed,omitempty"`
	ParticleRadius      float64                          `toml:"particle_radius" json:"particle_radius,omitempty"`
	BondLength          float64                          `toml:"bond_length" json:"bond_length,omitempty"`
	Density             float64                          `toml:"density" json:"density,omitempty"`
	LengthConversion    float64                          `toml:"length_conversion" json:"length_conversion,omitempty"`
	Box                 [3]float64                       `toml:"box" json:"box"`
	MaxTrials           int                              `toml:"max_trials" json:"max_trials,omitempty"`
	MaxCorrectionTrials int                              `toml:"max_correction_trials" json:"max_correction_trials,omitempty"`
	Particles           map[string]particle.ParticleInfo `toml:"particles" json:"particles,omitempty"`
	Bodies              []BodySpec                       `toml:"bodies" json:"bodies,omitempty"`
	Rows                []RowSpec                        `toml:"rows" json:"rows"`
}

// BodySpec describes a compartment body.
type BodySpec struct {
	Name   string     `toml:"name" json:"name"`
	Type   string     `toml:"type" json:"type"`
	Center [3]float64 `toml:"center" json:"center,omitempty"`
	Radius float64    `toml:"radius" json:"radius,omitempty"`
	Min    [3]float64 `toml:"min" json:"min,omitempty"`
	Max    [3]float64 `toml:"max" json:"max,omitempty"`
}

// RowSpec is the on-disk form of a Row.
type RowSpec struct {
	Molecule          string       `toml:"molecule" json:"molecule"`
	Topology          string       `toml:"topology" json:"topology,omitempty"`
	Protein           *ProteinSpec `toml:"protein" json:"protein,omitempty"`
	Volume            int          `toml:"volume" json:"volume,omitempty"`
	Surface           int          `toml:"surface" json:"surface,omitempty"`
	Body              string       `toml:"body" json:"body,omitempty"`
	Face              string       `toml:"face" json:"face,omitempty"`
	RandomOrientation bool         `toml:"random_orientation" json:"random_orientation,omitempty"`

	// Fill computes Volume so that the target region reaches the
	// composition's particle density.
	Fill bool `toml:"fill" json:"fill,omitempty"`
}

// ProteinSpec is the on-disk form of a protein descriptor.
type ProteinSpec struct {
	Name      string       `toml:"name" json:"name"`
	Particles []string     `toml:"particles" json:"particles"`
	Offsets   [][3]float64 `toml:"offsets" json:"offsets,omitempty"`
	Radius    float64      `toml:"radius" json:"radius,omitempty"`
}

// SetDefaults fills zero-valued global parameters.
func (f *File) SetDefaults() {
	if f.Seed == 0 {
		f.Seed = DefaultSeed
	}
	if f.ParticleRadius == 0 {
		f.ParticleRadius = DefaultParticleRadius
	}
	if f.BondLength == 0 {
		f.BondLength = DefaultBondLength
	}
	if f.Density == 0 {
		f.Density = DefaultDensity
	}
	if f.LengthConversion == 0 {
		f.LengthConversion = DefaultLengthConversion
	}
	if f.MaxTrials == 0 {
		f.MaxTrials = DefaultMaxTrials
	}
	if f.MaxCorrectionTrials == 0 {
		f.MaxCorrectionTrials = DefaultMaxCorrectionTrials
	}
}

// Build converts the file into a validated Composition. Rows referencing
// unknown bodies are rejected with MISSING_CONFIGURATION.
func (f *File) Build() (*Composition, error) {
	f.SetDefaults()

	c := &Composition{
		Name:                f.Name,
		Seed:                f.Seed,
		ParticleRadius:      f.ParticleRadius,
		BondLength:          f.BondLength,
		Density:             f.Density,
		LengthConversion:    f.LengthConversion,
		Box:                 vec(f.Box),
		MaxTrials:           f.MaxTrials,
		MaxCorrectionTrials: f.MaxCorrectionTrials,
		Particles:           f.Particles,
	}

	for _, bs := range f.Bodies {
		b, err := bs.build()
		if err != nil {
			return nil, err
		}
		c.Bodies = append(c.Bodies, b)
	}

	fill := make([]bool, len(f.Rows))
	for i, rs := range f.Rows {
		face, err := geom.ParseFace(rs.Face)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "row %d (%s)", i+1, rs.Molecule)
		}
		row := Row{
			Molecule:          rs.Molecule,
			Topology:          rs.Topology,
			Volume:            rs.Volume,
			Surface:           rs.Surface,
			Body:              rs.Body,
			Face:              face,
			RandomOrientation: rs.RandomOrientation,
		}
		if rs.Protein != nil {
			row.Protein = rs.Protein.descriptor()
		}
		c.Rows = append(c.Rows, row)
		fill[i] = rs.Fill
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	if missing := c.UnresolvedBodies(); len(missing) > 0 {
		return nil, errors.New(errors.ErrCodeMissingConfiguration, "unknown bodies: %s", strings.Join(missing, ", "))
	}
	for i := range c.Rows {
		if fill[i] {
			c.fill(i)
		}
	}
	if err := c.CheckQuantities(); err != nil {
		return nil, err
	}
	return c, nil
}

func (bs BodySpec) build() (geom.Body, error) {
	switch bs.Type {
	case BodySphere:
		if bs.Radius <= 0 {
			return nil, errors.New(errors.ErrCodeInvalidConfiguration, "sphere %q needs a positive radius", bs.Name)
		}
		return geom.NewSphereBody(bs.Name, vec(bs.Center), bs.Radius), nil
	case BodyLayer:
		b := geom.NewLayerBody(bs.Name, vec(bs.Min), vec(bs.Max))
		if b.Volume() <= 0 {
			return nil, errors.New(errors.ErrCodeInvalidConfiguration, "layer %q has no volume", bs.Name)
		}
		return b, nil
	}
	return nil, errors.New(errors.ErrCodeInvalidConfiguration, "body %q has unknown type %q (must be sphere or layer)", bs.Name, bs.Type)
}

func (ps *ProteinSpec) descriptor() *protein.Descriptor {
	d := &protein.Descriptor{Name: ps.Name, Particles: ps.Particles, Radius: ps.Radius}
	for _, o := range ps.Offsets {
		d.Offsets = append(d.Offsets, vec(o))
	}
	return d
}

func vec(a [3]float64) r3.Vec { return r3.Vec{X: a[0], Y: a[1], Z: a[2]} }

// UnresolvedBodies returns the sorted names of bodies that rows reference but
// the composition does not define.
func (c *Composition) UnresolvedBodies() []string {
	missing := map[string]bool{}
	for i := range c.Rows {
		if _, ok := c.Body(c.Rows[i].Body); !ok {
			missing[c.Rows[i].Body] = true
		}
	}
	out := make([]string, 0, len(missing))
	for name := range missing {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// fill sets the volume quantity of row i so that its region reaches the
// composition density, counting particles other rows put in the same region.
func (c *Composition) fill(i int) {
	r := &c.Rows[i]
	body, _ := c.Body(r.Body)
	target := int(min(c.Density*body.Volume(), MaxTotalParticles+1))
	for j := range c.Rows {
		o := &c.Rows[j]
		if j == i || o.Body != r.Body && !(o.InBulk() && r.InBulk()) {
			continue
		}
		target -= o.Volume * o.ParticlesPerInstance()
	}
	if per := r.ParticlesPerInstance(); per > 0 {
		r.Volume = max(0, target/per)
	}
}

// =============================================================================
// Loading
// =============================================================================

// Load reads a composition from a TOML or JSON file, chosen by extension.
func Load(path string) (*Composition, *File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}
	if strings.HasSuffix(strings.ToLower(path), ".json") {
		return DecodeJSON(bytes.NewReader(data))
	}
	return DecodeTOML(bytes.NewReader(data))
}

// DecodeTOML reads a composition in TOML form. Unknown keys are rejected.
func DecodeTOML(r io.Reader) (*Composition, *File, error) {
	var f File
	md, err := toml.NewDecoder(r).Decode(&f)
	if err != nil {
		return nil, nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode composition")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, nil, errors.New(errors.ErrCodeInvalidFormat, "unknown composition keys: %s", strings.Join(keys, ", "))
	}
	c, err := f.Build()
	if err != nil {
		return nil, nil, err
	}
	return c, &f, nil
}

// DecodeJSON reads a composition in JSON form. Unknown fields are rejected.
func DecodeJSON(r io.Reader) (*Composition, *File, error) {
	var f File
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return nil, nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode composition")
	}
	c, err := f.Build()
	if err != nil {
		return nil, nil, err
	}
	return c, &f, nil
}

// EncodeTOML writes f as TOML.
func EncodeTOML(w io.Writer, f *File) error {
	return toml.NewEncoder(w).Encode(f)
}
