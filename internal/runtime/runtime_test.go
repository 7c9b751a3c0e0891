package runtime

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/phonescreen-labs/phonescreen-core/internal/config"
	"github.com/phonescreen-labs/phonescreen-core/internal/interview"
	"github.com/phonescreen-labs/phonescreen-core/internal/recordstore"
)

func newTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
	cfg := config.Default()
	cfg.RecordStore.Path = filepath.Join(t.TempDir(), "interviews.db")

	store, err := recordstore.Open(context.Background(), cfg.RecordStore, logger)
	if err != nil {
		t.Fatalf("open record store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	r := New(cfg, logger)
	r.store = store
	r.manager = interview.NewManager(store, logger)
	return r
}

func TestHealthzIsPureLiveness(t *testing.T) {
	r := newTestRuntime(t)

	// No bus connection, not marked ready: liveness still answers ok.
	rec := httptest.NewRecorder()
	r.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" || body["time"] == "" {
		t.Fatalf("unexpected health payload: %v", body)
	}
}

func TestReadyzGatesOnDependencies(t *testing.T) {
	r := newTestRuntime(t)
	r.ready.Store(true)

	// Store is healthy but there is no bus connection.
	rec := httptest.NewRecorder()
	r.handleReady(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without a bus connection, got %d", rec.Code)
	}
}

func TestGetInterview(t *testing.T) {
	r := newTestRuntime(t)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /interviews/{id}", r.handleGetInterview)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/interviews/absent", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown id, got %d", rec.Code)
	}

	created, err := r.manager.CreateRecord(context.Background(), "+14155552671", "databases")
	if err != nil {
		t.Fatalf("create record: %v", err)
	}
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/interviews/"+created.ID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got interview.Record
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if got.ID != created.ID || got.Topic != "databases" {
		t.Fatalf("unexpected record: %+v", got)
	}
}
