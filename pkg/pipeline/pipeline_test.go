package pipeline

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/matzehuels/molplace/pkg/cache"
	"github.com/matzehuels/molplace/pkg/errors"
	"github.com/matzehuels/molplace/pkg/particle"
	"github.com/matzehuels/molplace/pkg/placement"
	"github.com/matzehuels/molplace/pkg/store"
)

const smallComposition = `
name = "small"
box = [8.0, 8.0, 8.0]

[[bodies]]
name = "cell"
type = "sphere"
center = [4.0, 4.0, 4.0]
radius = 2.0

[[rows]]
molecule = "W"
topology = "W"
volume = 20

[[rows]]
molecule = "LIP"
topology = "H-T-T"
surface = 5
body = "cell"
`

func TestValidateFormat(t *testing.T) {
	tests := []struct {
		format  string
		wantErr bool
	}{
		{"json", false},
		{"xyz", false},
		{"svg", true},
		{"JSON", true}, // case-sensitive
		{"", true},
	}

	for _, tt := range tests {
		err := ValidateFormat(tt.format)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateFormat(%q) error = %v, wantErr %v", tt.format, err, tt.wantErr)
		}
	}
}

func TestParseFormats(t *testing.T) {
	got := ParseFormats(" json, XYZ ,,")
	if len(got) != 2 || got[0] != "json" || got[1] != "xyz" {
		t.Errorf("ParseFormats = %v", got)
	}
	if ParseFormats("") != nil {
		t.Error("empty list should be nil")
	}
}

func TestOptionsValidateAndSetDefaults(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
		check   func(*testing.T, Options)
	}{
		{"missing input", Options{}, true, nil},
		{"toml default", Options{Composition: "x"}, false, func(t *testing.T, o Options) {
			if o.Encoding != EncodingTOML || len(o.Formats) != 1 || o.Formats[0] != FormatJSON || o.Logger == nil {
				t.Errorf("defaults = %+v", o)
			}
		}},
		{"json inferred", Options{Path: "c.json"}, false, func(t *testing.T, o Options) {
			if o.Encoding != EncodingJSON {
				t.Errorf("encoding = %s", o.Encoding)
			}
		}},
		{"bad encoding", Options{Composition: "x", Encoding: "yaml"}, true, nil},
		{"bad format", Options{Composition: "x", Formats: []string{"pdb"}}, true, nil},
		{"negative trials", Options{Composition: "x", MaxTrials: -1}, true, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.ValidateAndSetDefaults()
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil {
				tt.check(t, tt.opts)
			}
		})
	}
}

func newTestRunner(t *testing.T) (*Runner, *store.MemoryStore) {
	t.Helper()
	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	runs := store.NewMemoryStore()
	return NewRunner(c, nil, runs, nil), runs
}

func TestExecuteCachesPlacement(t *testing.T) {
	ctx := context.Background()
	r, runs := newTestRunner(t)
	path := filepath.Join(t.TempDir(), "small.toml")
	if err := os.WriteFile(path, []byte(smallComposition), 0o644); err != nil {
		t.Fatal(err)
	}
	opts := Options{Path: path, Formats: []string{FormatJSON, FormatXYZ}}

	first, err := r.Execute(ctx, opts)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if first.CacheInfo.PlacementHit {
		t.Error("first run should miss the cache")
	}
	if got := len(first.Placement.Positions); got != 20+15 {
		t.Errorf("positions = %d, want 35", got)
	}
	if len(first.Artifacts[FormatJSON]) == 0 || len(first.Artifacts[FormatXYZ]) == 0 {
		t.Error("missing artifacts")
	}

	second, err := r.Execute(ctx, opts)
	if err != nil {
		t.Fatal(err)
	}
	if !second.CacheInfo.PlacementHit {
		t.Error("second run should hit the cache")
	}
	if !bytes.Equal(first.Artifacts[FormatXYZ], second.Artifacts[FormatXYZ]) {
		t.Error("cached result differs from the placed one")
	}
	if first.CacheInfo.Key != second.CacheInfo.Key {
		t.Error("cache keys differ")
	}

	third, err := r.Execute(ctx, Options{Path: path, Seed: 99})
	if err != nil {
		t.Fatal(err)
	}
	if third.CacheInfo.PlacementHit || third.Placement.Seed != 99 {
		t.Errorf("seed override: hit=%v seed=%d", third.CacheInfo.PlacementHit, third.Placement.Seed)
	}

	list, _ := runs.List(ctx, 0)
	if len(list) != 3 {
		t.Fatalf("runs = %d, want 3", len(list))
	}
	rec, err := runs.Get(ctx, second.Run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Status != store.StatusSucceeded || !rec.CacheHit || rec.Particles != 35 || rec.Progress != 100 {
		t.Errorf("run record = %+v", rec)
	}
}

func TestExecuteInlineJSON(t *testing.T) {
	r, _ := newTestRunner(t)
	res, err := r.Execute(context.Background(), Options{
		Composition: `{"box":[5,5,5],"rows":[{"molecule":"W","topology":"W","volume":3}]}`,
		Encoding:    EncodingJSON,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Placement.Positions) != 3 {
		t.Errorf("positions = %d", len(res.Placement.Positions))
	}
}

func TestExecuteInvalidComposition(t *testing.T) {
	r, runs := newTestRunner(t)
	_, err := r.Execute(context.Background(), Options{Composition: "box = [0.0, 1.0, 1.0]\n"})
	if !errors.Is(err, errors.ErrCodeInvalidConfiguration) {
		t.Errorf("err = %v", err)
	}
	if list, _ := runs.List(context.Background(), 0); len(list) != 0 {
		t.Error("invalid compositions should not be recorded")
	}
}

func TestJobStop(t *testing.T) {
	ctx := context.Background()
	r, runs := newTestRunner(t)
	job, err := r.Prepare(ctx, Options{Composition: smallComposition})
	if err != nil {
		t.Fatal(err)
	}
	if rec, err := runs.Get(ctx, job.ID()); err != nil || rec.Status != store.StatusRunning {
		t.Fatalf("prepared record = %+v, %v", rec, err)
	}

	job.Stop()
	if _, err := job.Run(ctx); !errors.Is(err, errors.ErrCodeCancelled) {
		t.Fatalf("err = %v, want CANCELLED", err)
	}
	rec, _ := runs.Get(ctx, job.ID())
	if rec.Status != store.StatusCancelled || rec.FinishedAt.IsZero() {
		t.Errorf("record = %+v", rec)
	}
	if job.Record().Status != store.StatusCancelled {
		t.Errorf("job record = %+v", job.Record())
	}
}

func TestJobRunRecoversPanic(t *testing.T) {
	ctx := context.Background()
	r, runs := newTestRunner(t)
	job, err := r.Prepare(ctx, Options{
		Composition: smallComposition,
		Observer:    placement.ObserverFuncs{Progress: func(int) { panic("boom") }},
	})
	if err != nil {
		t.Fatal(err)
	}

	res, err := job.Run(ctx)
	if res != nil {
		t.Errorf("result = %+v, want nil", res)
	}
	if !errors.Is(err, errors.ErrCodeInternal) || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("err = %v, want INTERNAL_ERROR mentioning the panic", err)
	}
	rec, err := runs.Get(ctx, job.ID())
	if err != nil {
		t.Fatal(err)
	}
	if rec.Status != store.StatusFailed || rec.FinishedAt.IsZero() || !strings.Contains(rec.Error, "boom") {
		t.Errorf("record = %+v", rec)
	}
}

func TestStorePlacement(t *testing.T) {
	kind := &particle.Kind{Particle: "W", Molecule: "W", Radius: 0.235}
	valid := &placement.Result{
		Box:       r3.Vec{X: 2, Y: 2, Z: 2},
		Positions: []placement.Position{{Pos: r3.Vec{X: 1, Y: 1, Z: 1}, Kind: kind}},
	}
	tests := []struct {
		name     string
		res      *placement.Result
		wantHit  bool
		wantWarn string
	}{
		{"valid", valid, true, ""},
		{"nan box", &placement.Result{Box: r3.Vec{X: math.NaN(), Y: 2, Z: 2}}, false, "cache encode failed"},
		{"infinite position", &placement.Result{
			Box:       r3.Vec{X: 2, Y: 2, Z: 2},
			Positions: []placement.Position{{Pos: r3.Vec{X: math.Inf(1)}, Kind: kind}},
		}, false, "cache encode failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			r, _ := newTestRunner(t)
			var logs bytes.Buffer
			logger := log.NewWithOptions(&logs, log.Options{})

			r.storePlacement(ctx, "placement/"+tt.name, tt.res, logger)

			_, hit, err := r.Cache.Get(ctx, "placement/"+tt.name)
			if err != nil {
				t.Fatal(err)
			}
			if hit != tt.wantHit {
				t.Errorf("cache hit = %v, want %v", hit, tt.wantHit)
			}
			if tt.wantWarn == "" {
				if logs.Len() != 0 {
					t.Errorf("unexpected log output: %s", logs.String())
				}
			} else if !strings.Contains(logs.String(), tt.wantWarn) {
				t.Errorf("log = %q, want %q", logs.String(), tt.wantWarn)
			}
		})
	}
}
