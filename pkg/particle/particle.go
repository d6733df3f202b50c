// Package particle defines the records produced by the placement engine.
//
// A [Position] is one placed particle. Positions do not own their [Kind]:
// every particle of the same name in the same molecule shares one Kind
// pointer, looked up once from a [Catalog].
package particle

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// Kind is the shared, immutable descriptor of a particle type within a
// molecule. It is never mutated after creation.
type Kind struct {
	Particle string  `json:"particle"`
	Molecule string  `json:"molecule"`
	Color    string  `json:"color,omitempty"`
	Radius   float64 `json:"radius"`
}

// Position is one placed particle.
//
// Positions are value records: copying a Position copies its coordinates
// but keeps pointing at the same Kind.
type Position struct {
	Pos           r3.Vec
	Kind          *Kind
	ParticleIndex int
	MoleculeIndex int
	InBulk        bool
	InFrame       bool
}

// Reset overwrites p in place so that buffered records can be reused.
func (p *Position) Reset(pos r3.Vec, kind *Kind, particleIndex, moleculeIndex int, inBulk, inFrame bool) {
	p.Pos = pos
	p.Kind = kind
	p.ParticleIndex = particleIndex
	p.MoleculeIndex = moleculeIndex
	p.InBulk = inBulk
	p.InFrame = inFrame
}

// Valid reports whether p has been populated.
func (p *Position) Valid() bool {
	return p.Kind != nil
}
