// Package topology parses bonded-particle structure strings.
//
// # Syntax
//
// A topology is a chain of particle names joined by bonds:
//
//	H-T-T-T        four particles, three bonds
//	A(B)-C         B is a side branch bonded to A
//	A-(B-B)-C      same, with a two-particle branch
//	H-[T]3-W       [..]n repeats a group n times
//	[A-(B)]2       groups may carry branches
//
// Particle names consist of letters, digits, underscore and apostrophe.
//
// The particles of the outermost chain form the backbone. The first and last
// backbone particles are the anchors a chain is grown between; branch
// particles hang off their parent.
package topology

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/matzehuels/molplace/pkg/errors"
)

// MaxParticles bounds the size of an expanded topology.
const MaxParticles = 1 << 20

// Bond connects two particle indices.
type Bond struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// Topology is the expanded particle graph of one molecule.
type Topology struct {
	Source    string   `json:"source"`
	Particles []string `json:"particles"`
	Bonds     []Bond   `json:"bonds"`
	Backbone  []int    `json:"backbone"`

	// Parent holds the bonded predecessor of every particle, -1 for the first.
	Parent []int `json:"parent"`
}

// Len returns the number of particles.
func (t *Topology) Len() int { return len(t.Particles) }

// IsBackbone reports whether particle i belongs to the backbone.
func (t *Topology) IsBackbone(i int) bool {
	for _, b := range t.Backbone {
		if b == i {
			return true
		}
	}
	return false
}

// Counts returns the number of particles per particle name.
func (t *Topology) Counts() map[string]int {
	out := make(map[string]int)
	for _, p := range t.Particles {
		out[p]++
	}
	return out
}

// Single returns the topology of a one-particle molecule.
func Single(name string) *Topology {
	return &Topology{Source: name, Particles: []string{name}, Backbone: []int{0}, Parent: []int{-1}}
}

// Parse parses and expands a topology string.
func Parse(s string) (*Topology, error) {
	p := &parser{src: s}
	seq, err := p.parseChain()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.src) {
		return nil, p.errorf("unexpected %q", p.src[p.pos])
	}

	t := &Topology{Source: s}
	if _, err := t.expand(seq, -1, true); err != nil {
		return nil, err
	}
	if t.Len() == 0 {
		return nil, errors.New(errors.ErrCodeInvalidTopology, "topology %q has no particles", s)
	}
	return t, nil
}

// MustParse is like Parse but panics on error. It is intended for tests and
// package-level constants.
func MustParse(s string) *Topology {
	t, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return t
}

// =============================================================================
// Parser
// =============================================================================

type unit struct {
	name     string
	group    []*unit
	count    int
	branches [][]*unit
}

type parser struct {
	src string
	pos int
}

func (p *parser) errorf(format string, args ...any) error {
	return errors.New(errors.ErrCodeInvalidTopology, "topology %q at %d: %s", p.src, p.pos, fmt.Sprintf(format, args...))
}

func (p *parser) peek() byte {
	if p.pos < len(p.src) {
		return p.src[p.pos]
	}
	return 0
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
}

// parseChain parses unit ('-' unit)*, where "-(" introduces a branch on the
// preceding unit.
func (p *parser) parseChain() ([]*unit, error) {
	var seq []*unit
	u, err := p.parseUnit()
	if err != nil {
		return nil, err
	}
	seq = append(seq, u)

	for {
		p.skipSpace()
		if p.peek() != '-' {
			return seq, nil
		}
		p.pos++
		p.skipSpace()
		if p.peek() == '(' {
			if err := p.parseBranches(seq[len(seq)-1]); err != nil {
				return nil, err
			}
			continue
		}
		u, err := p.parseUnit()
		if err != nil {
			return nil, err
		}
		seq = append(seq, u)
	}
}

func (p *parser) parseUnit() (*unit, error) {
	p.skipSpace()
	u := &unit{count: 1}

	switch c := p.peek(); {
	case c == '[':
		p.pos++
		group, err := p.parseChain()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if p.peek() != ']' {
			return nil, p.errorf("missing ]")
		}
		p.pos++
		n, err := p.parseCount()
		if err != nil {
			return nil, err
		}
		u.group, u.count = group, n
	case isNameByte(c):
		start := p.pos
		for p.pos < len(p.src) && isNameByte(p.src[p.pos]) {
			p.pos++
		}
		u.name = p.src[start:p.pos]
		if err := errors.ValidateParticleName(u.name); err != nil {
			return nil, err
		}
	case c == 0:
		return nil, p.errorf("unexpected end of topology")
	default:
		return nil, p.errorf("unexpected %q", c)
	}

	if err := p.parseBranches(u); err != nil {
		return nil, err
	}
	return u, nil
}

func (p *parser) parseBranches(u *unit) error {
	for {
		p.skipSpace()
		if p.peek() != '(' {
			return nil
		}
		p.pos++
		branch, err := p.parseChain()
		if err != nil {
			return err
		}
		p.skipSpace()
		if p.peek() != ')' {
			return p.errorf("missing )")
		}
		p.pos++
		u.branches = append(u.branches, branch)
	}
}

func (p *parser) parseCount() (int, error) {
	start := p.pos
	for p.pos < len(p.src) && unicode.IsDigit(rune(p.src[p.pos])) {
		p.pos++
	}
	if start == p.pos {
		return 0, p.errorf("missing repeat count after ]")
	}
	n, err := strconv.Atoi(p.src[start:p.pos])
	if err != nil || n < 1 {
		return 0, p.errorf("invalid repeat count %q", p.src[start:p.pos])
	}
	return n, nil
}

func isNameByte(c byte) bool {
	return c == '_' || c == '\'' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// =============================================================================
// Expansion
// =============================================================================

// expand appends the particles of seq, bonding the first to attach.
// It returns the index subsequent units attach to.
func (t *Topology) expand(seq []*unit, attach int, main bool) (int, error) {
	for _, u := range seq {
		for range u.count {
			if u.group != nil {
				last, err := t.expand(u.group, attach, main)
				if err != nil {
					return 0, err
				}
				attach = last
			} else {
				idx, err := t.add(u.name, attach, main)
				if err != nil {
					return 0, err
				}
				attach = idx
			}
			for _, b := range u.branches {
				if _, err := t.expand(b, attach, false); err != nil {
					return 0, err
				}
			}
		}
	}
	return attach, nil
}

func (t *Topology) add(name string, attach int, main bool) (int, error) {
	if len(t.Particles) >= MaxParticles {
		return 0, errors.New(errors.ErrCodeInvalidTopology, "topology %q expands to more than %d particles", t.Source, MaxParticles)
	}
	idx := len(t.Particles)
	t.Particles = append(t.Particles, name)
	t.Parent = append(t.Parent, attach)
	if attach >= 0 {
		t.Bonds = append(t.Bonds, Bond{From: attach, To: idx})
	}
	if main {
		t.Backbone = append(t.Backbone, idx)
	}
	return idx, nil
}

// String returns the expanded particle sequence, for diagnostics.
func (t *Topology) String() string {
	return strings.Join(t.Particles, "-")
}
