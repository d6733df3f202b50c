package particle

import (
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func TestPositionReset(t *testing.T) {
	k := &Kind{Particle: "W", Molecule: "H2O", Radius: 0.5}
	var p Position
	if p.Valid() {
		t.Error("zero Position should not be valid")
	}

	p.Reset(r3.Vec{X: 1, Y: 2, Z: 3}, k, 7, 2, true, true)
	if !p.Valid() {
		t.Fatal("reset Position should be valid")
	}
	if p.Pos != (r3.Vec{X: 1, Y: 2, Z: 3}) || p.ParticleIndex != 7 || p.MoleculeIndex != 2 {
		t.Errorf("unexpected position after reset: %+v", p)
	}
	if !p.InBulk || !p.InFrame {
		t.Error("flags should be set")
	}
}

func TestPositionCopySharesKind(t *testing.T) {
	k := &Kind{Particle: "W", Molecule: "H2O"}
	a := Position{Pos: r3.Vec{X: 1}, Kind: k}
	b := a
	b.Pos.X = 5

	if a.Pos.X != 1 {
		t.Error("copy should not alias coordinates")
	}
	if a.Kind != b.Kind {
		t.Error("copy should share Kind")
	}
}

func TestMapCatalog(t *testing.T) {
	c := NewMapCatalog(map[string]ParticleInfo{
		"C": {Color: "#ff0000", Radius: 0.7},
	}, 0.5)

	k1, err := c.Kind("Lipid", "C")
	if err != nil {
		t.Fatalf("Kind: %v", err)
	}
	if k1.Radius != 0.7 || k1.Color != "#ff0000" {
		t.Errorf("unexpected kind: %+v", k1)
	}

	k2, _ := c.Kind("Lipid", "C")
	if k1 != k2 {
		t.Error("repeated lookups should return the same pointer")
	}

	k3, _ := c.Kind("Other", "C")
	if k3 == k1 {
		t.Error("different molecules should get different kinds")
	}

	k4, _ := c.Kind("Lipid", "X")
	if k4.Radius != 0.5 || k4.Color != DefaultColor {
		t.Errorf("unknown particle should use defaults: %+v", k4)
	}

	if _, err := c.Kind("", "C"); err == nil {
		t.Error("empty molecule should fail")
	}

	mols := c.Molecules()
	if len(mols) != 2 || mols[0] != "Lipid" || mols[1] != "Other" {
		t.Errorf("Molecules() = %v", mols)
	}
}
