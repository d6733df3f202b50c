package placement

import (
	"context"
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/matzehuels/molplace/pkg/composition"
	"github.com/matzehuels/molplace/pkg/errors"
	"github.com/matzehuels/molplace/pkg/geom"
	"github.com/matzehuels/molplace/pkg/particle"
	"github.com/matzehuels/molplace/pkg/protein"
)

var center = r3.Vec{X: 5, Y: 5, Z: 5}

func newComposition(t *testing.T, rows ...composition.Row) *composition.Composition {
	t.Helper()
	c := &composition.Composition{
		Name:                "test",
		Seed:                42,
		ParticleRadius:      0.5,
		BondLength:          0.5,
		Density:             3,
		LengthConversion:    1,
		Box:                 r3.Vec{X: 10, Y: 10, Z: 10},
		MaxTrials:           1000,
		MaxCorrectionTrials: 100,
		Bodies:              []geom.Body{geom.NewSphereBody("cell", center, 3)},
		Rows:                rows,
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return c
}

func mixedRows() []composition.Row {
	return []composition.Row{
		{Molecule: "W", Topology: "W", Volume: 50},
		{Molecule: "BUT", Topology: "C-C-C-C", Volume: 10},
		{Molecule: "DMPC", Topology: "H-[T]4", Surface: 20, Body: "cell"},
		{Molecule: "ABC", Topology: "A-B(X)-C", Volume: 10, Body: "cell"},
		{Molecule: "PROT", Protein: &protein.Descriptor{Name: "PROT", Particles: []string{"P", "P", "P"}}, Volume: 2},
	}
}

type recorder struct {
	progress  []int
	errs      []error
	cancelled int
	rows      []string
	onRow     func()
}

func (r *recorder) OnProgress(p int)   { r.progress = append(r.progress, p) }
func (r *recorder) OnError(err error) { r.errs = append(r.errs, err) }
func (r *recorder) OnCancelled()      { r.cancelled++ }
func (r *recorder) OnRowComplete(m string, _ int) {
	r.rows = append(r.rows, m)
	if r.onRow != nil {
		r.onRow()
	}
}

func TestRunPlacesEveryParticle(t *testing.T) {
	comp := newComposition(t, mixedRows()...)
	rec := &recorder{}
	task, err := New(comp, comp.Catalog(), WithObserver(rec), WithGrowth(7))
	if err != nil {
		t.Fatal(err)
	}
	res, err := task.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if task.State() != Succeeded {
		t.Errorf("state = %v, want succeeded", task.State())
	}

	// 50 W + 10*4 BUT + 20*5 DMPC + 10*4 ABC + 2*3 PROT
	const want = 50 + 40 + 100 + 40 + 6
	if len(res.Positions) != want || comp.TotalParticles() != want {
		t.Fatalf("positions = %d (total %d), want %d", len(res.Positions), comp.TotalParticles(), want)
	}
	if res.Stats.Placed != want || res.Stats.Requested != want || res.Stats.Skipped != 0 {
		t.Errorf("stats = %+v", res.Stats)
	}
	if res.Box != comp.Box || res.Seed != 42 {
		t.Errorf("metadata box=%v seed=%d", res.Box, res.Seed)
	}

	bulk, _ := comp.Body("")
	for i, p := range res.Positions {
		if p.ParticleIndex != i {
			t.Fatalf("position %d has index %d", i, p.ParticleIndex)
		}
		if p.Kind == nil {
			t.Fatalf("position %d has no kind", i)
		}
		if p.InBulk && !bulk.Contains(p.Pos) {
			t.Errorf("bulk particle %d at %v outside the bulk", i, p.Pos)
		}
	}
	// Proteins are processed first.
	if res.Positions[0].Kind.Molecule != "PROT" {
		t.Errorf("first molecule = %s, want PROT", res.Positions[0].Kind.Molecule)
	}
	if got := res.Molecules(); got != 50+10+20+10+2 {
		t.Errorf("Molecules() = %d", got)
	}
	if got := res.InBulk(); got != 90 {
		t.Errorf("InBulk() = %d, want 90", got)
	}
	if rec.rows[0] != "PROT" || len(rec.rows) != 5 {
		t.Errorf("row order = %v", rec.rows)
	}
	if len(rec.errs) != 0 || rec.cancelled != 0 {
		t.Errorf("unexpected notifications: errs=%v cancelled=%d", rec.errs, rec.cancelled)
	}
}

func TestRunProgress(t *testing.T) {
	comp := newComposition(t, mixedRows()...)
	var seen []int
	if _, err := Place(context.Background(), comp, comp.Catalog(), WithProgress(func(p int) { seen = append(seen, p) })); err != nil {
		t.Fatal(err)
	}
	if len(seen) < 3 || seen[0] != 0 || seen[len(seen)-1] != 100 {
		t.Fatalf("progress = %v", seen)
	}
	for i := 1; i < len(seen); i++ {
		if seen[i] <= seen[i-1] {
			t.Errorf("progress not increasing: %v", seen)
		}
		if i < len(seen)-1 && seen[i] > 99 {
			t.Errorf("intermediate progress %d above 99", seen[i])
		}
	}
}

func TestRunDeterministic(t *testing.T) {
	run := func() []particle.Position {
		comp := newComposition(t, mixedRows()...)
		res, err := Place(context.Background(), comp, comp.Catalog())
		if err != nil {
			t.Fatal(err)
		}
		return res.Positions
	}
	a, b := run(), run()
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Pos != b[i].Pos || a[i].Kind.Particle != b[i].Kind.Particle {
			t.Fatalf("position %d differs: %v vs %v", i, a[i].Pos, b[i].Pos)
		}
	}
}

func TestRunCancelledAfterFirstRow(t *testing.T) {
	comp := newComposition(t,
		composition.Row{Molecule: "PROT", Protein: &protein.Descriptor{Name: "PROT", Particles: []string{"P", "P"}}, Volume: 1, Body: "cell"},
		composition.Row{Molecule: "W", Topology: "W", Volume: 10000},
	)

	shared := geom.NewPlacementContext()
	shared.Exclude(geom.BulkName, geom.Sphere{Center: r3.Vec{X: 1, Y: 1, Z: 1}, Radius: 0.5})

	rec := &recorder{}
	task, err := New(comp, comp.Catalog(), WithObserver(rec), WithPlacementContext(shared))
	if err != nil {
		t.Fatal(err)
	}
	rec.onRow = task.Stop

	res, err := task.Run(context.Background())
	if res != nil {
		t.Error("cancelled run returned a result")
	}
	if !errors.Is(err, errors.ErrCodeCancelled) {
		t.Fatalf("err = %v, want CANCELLED", err)
	}
	if task.State() != Cancelled {
		t.Errorf("state = %v", task.State())
	}
	if rec.cancelled != 1 || len(rec.errs) != 0 {
		t.Errorf("cancelled=%d errs=%v", rec.cancelled, rec.errs)
	}
	if len(rec.rows) != 1 {
		t.Errorf("rows completed = %v, want only the first", rec.rows)
	}
	for _, p := range rec.progress {
		if p == 100 {
			t.Error("cancelled run reported 100%")
		}
	}
	if shared.Count() != 1 || len(shared.Excluded("cell")) != 0 {
		t.Errorf("exclusions left behind: %v", shared.Snapshot())
	}
}

func TestStopBeforeRun(t *testing.T) {
	comp := newComposition(t, composition.Row{Molecule: "W", Topology: "W", Volume: 5})
	task, err := New(comp, comp.Catalog())
	if err != nil {
		t.Fatal(err)
	}
	task.Stop()
	if _, err := task.Run(context.Background()); !errors.Is(err, errors.ErrCodeCancelled) {
		t.Fatalf("err = %v", err)
	}
	if task.State() != Cancelled {
		t.Errorf("state = %v", task.State())
	}
}

func TestRunContextCancelled(t *testing.T) {
	comp := newComposition(t, composition.Row{Molecule: "W", Topology: "W", Volume: 5})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Place(ctx, comp, comp.Catalog())
	if !errors.Is(err, errors.ErrCodeCancelled) {
		t.Fatalf("err = %v", err)
	}
}

func TestRunMissingBody(t *testing.T) {
	comp := newComposition(t,
		composition.Row{Molecule: "W", Topology: "W", Volume: 5},
		composition.Row{Molecule: "X", Topology: "X", Volume: 5, Body: "nucleus"},
	)
	rec := &recorder{}
	task, _ := New(comp, comp.Catalog(), WithObserver(rec))
	_, err := task.Run(context.Background())
	if !errors.Is(err, errors.ErrCodeMissingConfiguration) {
		t.Fatalf("err = %v, want MISSING_CONFIGURATION", err)
	}
	if !errors.IsInternal(err) {
		t.Error("missing configuration should be an internal error")
	}
	if task.State() != Failed {
		t.Errorf("state = %v", task.State())
	}
	if len(rec.errs) != 1 || rec.cancelled != 0 {
		t.Errorf("errs=%v cancelled=%d", rec.errs, rec.cancelled)
	}
}

func TestRunTwice(t *testing.T) {
	comp := newComposition(t, composition.Row{Molecule: "W", Topology: "W", Volume: 1})
	task, _ := New(comp, comp.Catalog())
	if _, err := task.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := task.Run(context.Background()); err == nil {
		t.Error("second Run should fail")
	}
	if task.State() != Succeeded {
		t.Errorf("state = %v", task.State())
	}
}

func TestUnplaceableProteins(t *testing.T) {
	rows := func() []composition.Row {
		return []composition.Row{{
			Molecule: "BIG",
			Protein:  &protein.Descriptor{Name: "BIG", Particles: []string{"A", "B"}, Radius: 2.5},
			Volume:   10,
			Body:     "cell",
		}}
	}

	comp := newComposition(t, rows()...)
	_, err := Place(context.Background(), comp, comp.Catalog(), WithMaxTrials(200))
	if !errors.Is(err, errors.ErrCodeGeometryExhausted) {
		t.Fatalf("err = %v, want GEOMETRY_EXHAUSTED", err)
	}

	comp = newComposition(t, rows()...)
	res, err := Place(context.Background(), comp, comp.Catalog(), WithMaxTrials(200), WithSkipUnplaceable(true))
	if err != nil {
		t.Fatalf("Run with skipping: %v", err)
	}
	if res.Stats.Skipped == 0 || res.Stats.Skipped%2 != 0 {
		t.Errorf("skipped = %d", res.Stats.Skipped)
	}
	if len(res.Positions)+res.Stats.Skipped != 20 {
		t.Errorf("positions %d + skipped %d != 20", len(res.Positions), res.Stats.Skipped)
	}
}

type nilCatalog struct{}

func (nilCatalog) Kind(string, string) (*particle.Kind, error) { return nil, nil }
func (nilCatalog) Molecules() []string                        { return nil }

func TestRunDetectsUnpopulatedSlots(t *testing.T) {
	comp := newComposition(t, composition.Row{Molecule: "W", Topology: "W", Volume: 3})
	_, err := Place(context.Background(), comp, nilCatalog{})
	if !errors.Is(err, errors.ErrCodeInternalInconsistency) {
		t.Fatalf("err = %v, want INTERNAL_INCONSISTENCY", err)
	}
}

func TestNewRejectsHugeQuantities(t *testing.T) {
	tests := []struct {
		name string
		row  composition.Row
	}{
		{"surface", composition.Row{Molecule: "W", Topology: "W", Surface: 1 << 62, Body: "cell"}},
		{"volume", composition.Row{Molecule: "W", Topology: "W", Volume: 1 << 62}},
		{"product", composition.Row{Molecule: "A8", Topology: "[A]8", Volume: 1 << 61}},
		{"protein", composition.Row{Molecule: "P", Protein: &protein.Descriptor{Name: "P", Particles: []string{"P"}}, Surface: 1 << 62, Body: "cell"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Validated with a small count, then enlarged the way a caller
			// building compositions by hand could.
			small := tt.row
			small.Volume, small.Surface = min(small.Volume, 1), min(small.Surface, 1)
			comp := newComposition(t, small)
			comp.Rows[0].Volume, comp.Rows[0].Surface = tt.row.Volume, tt.row.Surface

			_, err := Place(context.Background(), comp, comp.Catalog())
			if !errors.Is(err, errors.ErrCodeInvalidInput) {
				t.Fatalf("err = %v, want INVALID_INPUT", err)
			}
		})
	}
}

// globuleRecorder remembers the exclusion sphere of every generated protein.
type globuleRecorder struct {
	protein.ShellGenerator
	spheres []geom.Sphere
}

func (g *globuleRecorder) Generate(d *protein.Descriptor, c r3.Vec, radius float64, o protein.Orientation, rng *rand.Rand) ([]r3.Vec, error) {
	g.spheres = append(g.spheres, geom.Sphere{Center: c, Radius: radius})
	return g.ShellGenerator.Generate(d, c, radius, o, rng)
}

func TestBulkParticlesAvoidGlobules(t *testing.T) {
	glob := &protein.Descriptor{Name: "GLOB", Particles: []string{"P", "P", "P", "P", "P", "P", "P", "P", "P", "P", "P", "P"}}
	comp := newComposition(t,
		composition.Row{Molecule: "GLOB", Protein: glob, Volume: 4},
		composition.Row{Molecule: "W", Topology: "W", Volume: 200},
		composition.Row{Molecule: "BUT", Topology: "C-C-C-C", Volume: 60},
	)
	gen := &globuleRecorder{}
	res, err := Place(context.Background(), comp, comp.Catalog(), WithProteinGenerator(gen))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(gen.spheres) != 4 {
		t.Fatalf("globules = %d, want 4", len(gen.spheres))
	}

	bulk, _ := comp.Body("")
	checked := 0
	for i, p := range res.Positions {
		if !p.InBulk {
			continue
		}
		checked++
		if !bulk.Contains(p.Pos) {
			t.Errorf("bulk particle %d at %v outside the bulk", i, p.Pos)
		}
		for _, s := range gen.spheres {
			if s.Contains(p.Pos) {
				t.Errorf("bulk particle %d at %v inside globule %v", i, p.Pos, s)
			}
		}
	}
	if checked != 200+60*4 {
		t.Errorf("bulk particles = %d, want %d", checked, 200+60*4)
	}
}

func TestNewRejectsBadOptions(t *testing.T) {
	comp := newComposition(t)
	if _, err := New(comp, comp.Catalog(), WithGrowth(0)); !errors.Is(err, errors.ErrCodeInvalidConfiguration) {
		t.Errorf("growth 0: err = %v", err)
	}
	if _, err := New(nil, comp.Catalog()); err == nil {
		t.Error("nil composition accepted")
	}
	if _, err := New(comp, nil); err == nil {
		t.Error("nil catalog accepted")
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		s    State
		want string
		done bool
	}{
		{NotStarted, "not_started", false},
		{Running, "running", false},
		{Succeeded, "succeeded", true},
		{Cancelled, "cancelled", true},
		{Failed, "failed", true},
	}
	for _, tt := range tests {
		if tt.s.String() != tt.want || tt.s.Done() != tt.done {
			t.Errorf("%d: %s done=%v", tt.s, tt.s, tt.s.Done())
		}
	}
}
