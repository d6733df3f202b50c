package io

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/matzehuels/molplace/pkg/errors"
	"github.com/matzehuels/molplace/pkg/particle"
	"github.com/matzehuels/molplace/pkg/placement"
)

// ReadJSON decodes a result written by [WriteJSON].
//
// Positions referring to an unknown kind are rejected. The returned result
// carries a catalog holding exactly the stored kinds. ReadJSON does not
// close r.
func ReadJSON(r io.Reader) (*placement.Result, error) {
	var doc document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode result")
	}

	cat := &storedCatalog{kinds: make(map[string]*particle.Kind, len(doc.Kinds))}
	kinds := make([]*particle.Kind, len(doc.Kinds))
	for i := range doc.Kinds {
		k := doc.Kinds[i]
		kinds[i] = &k
		cat.kinds[k.Molecule+"/"+k.Particle] = &k
	}

	res := &placement.Result{
		Positions:        make([]placement.Position, len(doc.Positions)),
		Box:              r3.Vec{X: doc.Box[0], Y: doc.Box[1], Z: doc.Box[2]},
		LengthConversion: doc.LengthConversion,
		Catalog:          cat,
		Seed:             doc.Seed,
	}
	if doc.Stats != nil {
		res.Stats = *doc.Stats
	}
	for i, p := range doc.Positions {
		if p.Kind < 0 || p.Kind >= len(kinds) {
			return nil, errors.New(errors.ErrCodeInvalidFormat, "position %d: unknown kind %d", i, p.Kind)
		}
		res.Positions[i].Reset(r3.Vec{X: p.Pos[0], Y: p.Pos[1], Z: p.Pos[2]}, kinds[p.Kind], i, p.Molecule, p.InBulk, p.InFrame)
	}
	return res, nil
}

// ImportJSON reads a JSON result file at path.
func ImportJSON(path string) (*placement.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadJSON(f)
}

// storedCatalog serves the kinds of an imported result.
type storedCatalog struct {
	kinds map[string]*particle.Kind
}

func (c *storedCatalog) Kind(molecule, name string) (*particle.Kind, error) {
	if k, ok := c.kinds[molecule+"/"+name]; ok {
		return k, nil
	}
	return nil, errors.New(errors.ErrCodeNotFound, "no kind %s/%s in result", molecule, name)
}

func (c *storedCatalog) Molecules() []string {
	seen := map[string]bool{}
	var out []string
	for _, k := range c.kinds {
		if !seen[k.Molecule] {
			seen[k.Molecule] = true
			out = append(out, k.Molecule)
		}
	}
	sort.Strings(out)
	return out
}
