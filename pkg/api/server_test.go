package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/matzehuels/molplace/pkg/cache"
	"github.com/matzehuels/molplace/pkg/pipeline"
	"github.com/matzehuels/molplace/pkg/store"
)

const composition = `
name = "api"
box = [6.0, 6.0, 6.0]

[[rows]]
molecule = "W"
topology = "W"
volume = 12
`

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	runner := pipeline.NewRunner(c, nil, store.NewMemoryStore(), nil)
	s := New(runner, nil)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		s.Shutdown()
	})
	return s, ts
}

func do(t *testing.T, method, url, contentType, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp, data
}

func TestPlacementLifecycle(t *testing.T) {
	s, ts := newTestServer(t)

	resp, body := do(t, http.MethodPost, ts.URL+"/placements?seed=7", "application/toml", composition)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("POST status = %d: %s", resp.StatusCode, body)
	}
	var created createResponse
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatal(err)
	}
	if !store.ValidID(created.ID) {
		t.Fatalf("id = %q", created.ID)
	}

	s.Wait()

	resp, body = do(t, http.MethodGet, ts.URL+"/placements/"+created.ID, "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET status = %d", resp.StatusCode)
	}
	var run store.Run
	if err := json.Unmarshal(body, &run); err != nil {
		t.Fatal(err)
	}
	if run.Status != store.StatusSucceeded || run.Particles != 12 || run.Seed != 7 {
		t.Errorf("run = %+v", run)
	}

	resp, body = do(t, http.MethodGet, ts.URL+"/placements/"+created.ID+"/positions", "", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"positions"`) {
		t.Errorf("positions json: %d %s", resp.StatusCode, body)
	}

	resp, body = do(t, http.MethodGet, ts.URL+"/placements/"+created.ID+"/positions?format=xyz", "", "")
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(string(body), "12\n") {
		t.Errorf("positions xyz: %d %q", resp.StatusCode, body)
	}

	resp, _ = do(t, http.MethodGet, ts.URL+"/placements/"+created.ID+"/positions?format=pdf", "", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad format status = %d", resp.StatusCode)
	}

	resp, _ = do(t, http.MethodDelete, ts.URL+"/placements/"+created.ID, "", "")
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("DELETE finished run status = %d", resp.StatusCode)
	}

	resp, body = do(t, http.MethodGet, ts.URL+"/placements", "", "")
	var runs []store.Run
	if err := json.Unmarshal(body, &runs); err != nil || resp.StatusCode != http.StatusOK || len(runs) != 1 {
		t.Errorf("list: %d %s", resp.StatusCode, body)
	}
}

func TestCreateJSONOptions(t *testing.T) {
	s, ts := newTestServer(t)
	payload, _ := json.Marshal(map[string]any{"composition": composition, "max_trials": 50})
	resp, body := do(t, http.MethodPost, ts.URL+"/placements", "application/json", string(payload))
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}
	s.Wait()
}

func TestCreateErrors(t *testing.T) {
	_, ts := newTestServer(t)
	tests := []struct {
		name        string
		contentType string
		body        string
		url         string
		want        int
	}{
		{"invalid toml", "application/toml", "box = [", "/placements", http.StatusBadRequest},
		{"invalid box", "application/toml", "box = [0.0, 1.0, 1.0]\n", "/placements", http.StatusBadRequest},
		{"unknown json field", "application/json", `{"path": "/etc/passwd"}`, "/placements", http.StatusBadRequest},
		{"bad seed", "application/toml", composition, "/placements?seed=abc", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, http.MethodPost, ts.URL+tt.url, tt.contentType, tt.body)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d: %s", resp.StatusCode, tt.want, body)
			}
		})
	}
}

func TestUnknownRun(t *testing.T) {
	_, ts := newTestServer(t)
	for _, path := range []string{"/placements/not-a-uuid", "/placements/4f9b1c52-6a43-4f4e-9d55-2f1f0d0c8a11"} {
		resp, _ := do(t, http.MethodGet, ts.URL+path, "", "")
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("GET %s status = %d", path, resp.StatusCode)
		}
	}
	resp, _ := do(t, http.MethodDelete, ts.URL+"/placements/4f9b1c52-6a43-4f4e-9d55-2f1f0d0c8a11", "", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("DELETE status = %d", resp.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	_, ts := newTestServer(t)
	resp, body := do(t, http.MethodGet, ts.URL+"/healthz", "", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "ok") {
		t.Errorf("healthz: %d %s", resp.StatusCode, body)
	}
}
