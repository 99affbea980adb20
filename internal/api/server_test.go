package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/star/isstracker/internal/roster"
	"github.com/star/isstracker/internal/stats"
	"github.com/star/isstracker/internal/stream"
	"github.com/star/isstracker/internal/tracker"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

type fakeState struct {
	mu      sync.Mutex
	snap    tracker.Snapshot
	visible bool
	ready   bool
}

func (f *fakeState) Snapshot() tracker.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.snap
	s.PathVisible = f.visible
	return s
}

func (f *fakeState) SetPathVisible(v bool) {
	f.mu.Lock()
	f.visible = v
	f.mu.Unlock()
}

func (f *fakeState) PathVisible() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visible
}

func (f *fakeState) Ready() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready
}

func newTestServer(state *fakeState) http.Handler {
	static := fstest.MapFS{
		"index.html": {Data: []byte("<!doctype html><title>ISS</title>")},
	}
	hub := stream.NewHub(state.Snapshot)
	streams := stream.NewHandler(hub, state, stream.Config{}, testLogger())
	return NewServer(":0", testLogger(), state, streams, static).Handler()
}

func testState() *fakeState {
	return &fakeState{
		visible: true,
		snap: tracker.Snapshot{
			Position: &tracker.Position{Lat: 12.5, Lon: -45, Source: "primary"},
			Location: "Over the ocean",
			Roster: roster.Roster{
				Crews:  []roster.Crew{{Craft: "ISS", People: []string{"A", "B"}}},
				Total:  2,
				Source: roster.SourceLive,
			},
			Stats: stats.Statistics{MissionDays: 10, Orbits: 155},
		},
	}
}

func TestRoutes(t *testing.T) {
	handler := newTestServer(testState())

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
		wantBody   string
	}{
		{"healthz", "GET", "/healthz", http.StatusOK, "ok"},
		{"metrics", "GET", "/metrics", http.StatusOK, "isstracker_"},
		{"snapshot", "GET", "/api/v1/snapshot", http.StatusOK, `"lat":12.5`},
		{"roster", "GET", "/api/v1/roster", http.StatusOK, `"craft":"ISS"`},
		{"stats", "GET", "/api/v1/stats", http.StatusOK, `"orbits":155`},
		{"visibility", "GET", "/api/v1/path/visibility", http.StatusOK, `"visible":true`},
		{"index", "GET", "/", http.StatusOK, "<title>ISS</title>"},
		{"unknown", "GET", "/nope", http.StatusNotFound, ""},
		{"wrong method", "POST", "/api/v1/snapshot", http.StatusMethodNotAllowed, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantBody != "" && !strings.Contains(w.Body.String(), tt.wantBody) {
				t.Errorf("body = %q, want it to contain %q", w.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestReadyzFollowsTracker(t *testing.T) {
	state := testState()
	handler := newTestServer(state)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/readyz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status before first sample = %d, want 503", w.Code)
	}

	state.mu.Lock()
	state.ready = true
	state.mu.Unlock()

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/readyz", nil))
	if w.Code != http.StatusOK {
		t.Errorf("status after first sample = %d, want 200", w.Code)
	}
}

func TestPutPathVisibility(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantStatus  int
		wantVisible bool
	}{
		{"hide", `{"visible":false}`, http.StatusOK, false},
		{"show", `{"visible":true}`, http.StatusOK, true},
		{"missing field", `{}`, http.StatusBadRequest, true},
		{"wrong type", `{"visible":"no"}`, http.StatusBadRequest, true},
		{"unknown field", `{"visible":false,"extra":1}`, http.StatusBadRequest, true},
		{"not json", `off`, http.StatusBadRequest, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := testState()
			handler := newTestServer(state)

			req := httptest.NewRequest("PUT", "/api/v1/path/visibility", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if got := state.PathVisible(); got != tt.wantVisible {
				t.Errorf("PathVisible = %v, want %v", got, tt.wantVisible)
			}

			var resp map[string]any
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("response is not JSON: %v", err)
			}
			if tt.wantStatus == http.StatusBadRequest && resp["error"] == nil {
				t.Error("expected error field in response")
			}
			if tt.wantStatus == http.StatusOK && resp["visible"] != tt.wantVisible {
				t.Errorf("visible = %v, want %v", resp["visible"], tt.wantVisible)
			}
		})
	}
}

func TestStreamThroughMiddleware(t *testing.T) {
	srv := httptest.NewServer(newTestServer(testState()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/stream")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	buf := make([]byte, 4096)
	var got strings.Builder
	for !strings.Contains(got.String(), `"type":"snapshot"`) {
		n, err := resp.Body.Read(buf)
		got.Write(buf[:n])
		if err != nil {
			t.Fatalf("read: %v (got %q)", err, got.String())
		}
	}
}

func TestProbePath(t *testing.T) {
	for path, want := range map[string]bool{
		"/healthz":         true,
		"/readyz":          true,
		"/api/v1/snapshot": false,
	} {
		if got := probePath(path); got != want {
			t.Errorf("probePath(%q) = %v, want %v", path, got, want)
		}
	}
}
