package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testComposition = `
name = "droplet"
box = [8.0, 8.0, 8.0]
seed = 7

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
surface = 4
body = "cell"
`

// setupHome points the cache and run directories at a temp dir.
func setupHome(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", filepath.Join(dir, "cache"))
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv(envRedisAddr, "")
	t.Setenv(envMongoURI, "")
	t.Setenv(envCacheScope, "")
	return dir
}

func writeComposition(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "droplet.toml")
	if err := os.WriteFile(path, []byte(testComposition), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// execute runs the root command with args and returns what it wrote through
// cobra's output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	c := New(io.Discard, LogInfo)
	root := c.RootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCacheDir(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/tmp/xdg")
	dir, err := cacheDir()
	if err != nil {
		t.Fatalf("cacheDir() error: %v", err)
	}
	if want := filepath.Join("/tmp/xdg", "molplace"); dir != want {
		t.Errorf("cacheDir() = %q, want %q", dir, want)
	}

	t.Setenv("XDG_CACHE_HOME", "")
	dir, err = cacheDir()
	if err != nil {
		t.Fatalf("cacheDir() error: %v", err)
	}
	if !strings.HasSuffix(dir, filepath.Join(".cache", "molplace")) {
		t.Errorf("cacheDir() = %q, should end with .cache/molplace", dir)
	}
}

func TestRunsDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/cfg")
	dir, err := runsDir()
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join("/tmp/cfg", "molplace", "runs"); dir != want {
		t.Errorf("runsDir() = %q, want %q", dir, want)
	}
}

func TestCachePath(t *testing.T) {
	home := setupHome(t)
	out, err := execute(t, "cache", "path")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != filepath.Join(home, "cache", "molplace") {
		t.Errorf("cache path = %q", out)
	}
}

func TestCacheClear(t *testing.T) {
	home := setupHome(t)
	input := writeComposition(t, home)
	if _, err := execute(t, "place", input, "-o", filepath.Join(home, "out.json")); err != nil {
		t.Fatalf("place: %v", err)
	}

	fc, err := openFileCache()
	if err != nil {
		t.Fatal(err)
	}
	if st, err := fc.Stats(); err != nil || st.Entries == 0 {
		t.Fatalf("placement not cached: %+v, %v", st, err)
	}
	for _, sub := range []string{"stats", "prune", "clear"} {
		if _, err := execute(t, "cache", sub); err != nil {
			t.Fatalf("cache %s: %v", sub, err)
		}
	}
	if st, _ := fc.Stats(); st.Entries != 0 {
		t.Errorf("entries after clear = %d", st.Entries)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1536, "1.5 KiB"},
		{5 << 20, "5.0 MiB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.n); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestValidateCommand(t *testing.T) {
	home := setupHome(t)
	if _, err := execute(t, "validate", writeComposition(t, home)); err != nil {
		t.Fatalf("validate: %v", err)
	}

	bad := filepath.Join(home, "bad.toml")
	os.WriteFile(bad, []byte("name = 3\n"), 0o644)
	if _, err := execute(t, "validate", bad); err == nil {
		t.Error("validate should reject a malformed composition")
	}
}

func TestPlaceCommand(t *testing.T) {
	home := setupHome(t)
	input := writeComposition(t, home)
	base := filepath.Join(home, "out")

	if _, err := execute(t, "place", input, "-o", base, "-f", "json,xyz"); err != nil {
		t.Fatalf("place: %v", err)
	}

	data, err := os.ReadFile(base + ".json")
	if err != nil {
		t.Fatalf("json output missing: %v", err)
	}
	var doc struct {
		Seed      uint64            `json:"seed"`
		Positions []json.RawMessage `json:"positions"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}
	if doc.Seed != 7 || len(doc.Positions) != 32 {
		t.Errorf("seed = %d, positions = %d, want 7 and 32", doc.Seed, len(doc.Positions))
	}

	xyz, err := os.ReadFile(base + ".xyz")
	if err != nil {
		t.Fatalf("xyz output missing: %v", err)
	}
	if !strings.HasPrefix(string(xyz), "32\n") {
		t.Errorf("xyz header = %q", strings.SplitN(string(xyz), "\n", 2)[0])
	}

	out, err := execute(t, "runs", "list")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "droplet") || !strings.Contains(out, "succeeded") {
		t.Errorf("runs list should show the finished run:\n%s", out)
	}
}

func TestPlaceDefaultOutput(t *testing.T) {
	home := setupHome(t)
	input := writeComposition(t, home)

	if _, err := execute(t, "place", input, "--no-cache"); err != nil {
		t.Fatalf("place: %v", err)
	}
	if _, err := os.Stat(filepath.Join(home, "droplet.placed.json")); err != nil {
		t.Errorf("default output missing: %v", err)
	}
}

func TestPlaceRejectsFormat(t *testing.T) {
	home := setupHome(t)
	if _, err := execute(t, "place", writeComposition(t, home), "-f", "pdb"); err == nil {
		t.Error("place should reject an unknown format")
	}
}

func TestTopologyDOT(t *testing.T) {
	home := setupHome(t)
	out := filepath.Join(home, "lipid.dot")
	if _, err := execute(t, "topology", "H-L(T)-[C]2", "-o", out, "--color", "H=gold"); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "graph Topology {") || !strings.Contains(string(data), `fillcolor="gold"`) {
		t.Errorf("unexpected DOT output:\n%s", data)
	}
}

func TestTopologyErrors(t *testing.T) {
	setupHome(t)
	tests := []struct {
		name string
		args []string
	}{
		{"bad topology", []string{"topology", "H-(", "-f", "dot"}},
		{"bad format", []string{"topology", "H-T", "-f", "png"}},
		{"bad color", []string{"topology", "H-T", "-f", "dot", "--color", "H"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := execute(t, tt.args...); err == nil {
				t.Errorf("%v should fail", tt.args)
			}
		})
	}
}

func TestCompletion(t *testing.T) {
	for _, shell := range completionShells {
		out, err := execute(t, "completion", shell)
		if err != nil {
			t.Fatalf("completion %s: %v", shell, err)
		}
		if !strings.Contains(out, "molplace") {
			t.Errorf("completion %s output should mention molplace", shell)
		}
	}
	if _, err := execute(t, "completion", "tcsh"); err == nil {
		t.Error("unknown shell should fail")
	}
}

func TestBasePath(t *testing.T) {
	tests := []struct {
		output, input, want string
	}{
		{"", "dir/vesicle.toml", "dir/vesicle.placed"},
		{"out.json", "a.toml", "out"},
		{"out.xyz", "a.toml", "out"},
		{"out", "a.toml", "out"},
		{"out.gro", "a.toml", "out.gro"},
	}
	for _, tt := range tests {
		if got := basePath(tt.output, tt.input); got != tt.want {
			t.Errorf("basePath(%q, %q) = %q, want %q", tt.output, tt.input, got, tt.want)
		}
	}
}

func TestParseColors(t *testing.T) {
	got, err := parseColors([]string{"H=red", "T=#00ff00"})
	if err != nil {
		t.Fatal(err)
	}
	if got["H"] != "red" || got["T"] != "#00ff00" {
		t.Errorf("parseColors = %v", got)
	}
	if _, err := parseColors([]string{"=red"}); err == nil {
		t.Error("empty name should fail")
	}
}
