package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/divetag/internal/config"
	"github.com/hyperjump/divetag/internal/matcher"
	"github.com/hyperjump/divetag/internal/models"
	"github.com/hyperjump/divetag/internal/storage"
	"go.uber.org/zap"
)

func testMatcher() *matcher.Matcher {
	site := &models.DiveSite{ID: "a", Name: "North Reef", Location: &models.Coordinates{Latitude: 12.5, Longitude: -70.1}}
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	return matcher.New(matcher.NewIndex([]*models.Dive{
		{Number: 1, Start: day.Add(9 * time.Hour), DurationMinutes: 45, Site: site},
		{Number: 2, Start: day.Add(11 * time.Hour), DurationMinutes: 40, Site: site},
		{Number: 3, Start: day.Add(72 * time.Hour), DurationMinutes: 50, Site: site},
	}), matcher.DefaultPolicy())
}

func newTestServer(t *testing.T, withLedger bool) (*Server, *storage.SQLiteStorage) {
	t.Helper()
	var store *storage.SQLiteStorage
	var ledger storage.Ledger
	if withLedger {
		var err error
		store, err = storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "ledger.db"))
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { store.Close() })
		ledger = store
	}
	srv := NewServer(testMatcher(), ledger, &config.ServerConfig{Host: "localhost", Port: 8080}, zap.NewNop())
	return srv, store
}

func get(t *testing.T, srv *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, r)
	return w
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t, true)
	w := get(t, srv, "/health")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out struct {
		Status      string `json:"status"`
		Dives       int    `json:"dives"`
		Ledger      bool   `json:"ledger"`
		LedgerBytes *int64 `json:"ledger_bytes"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Status != "ok" || out.Dives != 3 || !out.Ledger {
		t.Errorf("health = %+v", out)
	}
	if out.LedgerBytes == nil || *out.LedgerBytes <= 0 {
		t.Errorf("ledger_bytes = %v", out.LedgerBytes)
	}
}

func TestHandleDives(t *testing.T) {
	srv, _ := newTestServer(t, false)

	var out struct {
		Dives []models.Dive `json:"dives"`
	}
	w := get(t, srv, "/api/v1/dives")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Dives) != 3 {
		t.Errorf("got %d dives, want 3", len(out.Dives))
	}

	w = get(t, srv, "/api/v1/dives?from=2024:03:01+00:00:00&to=2024:03:02+00:00:00")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	out.Dives = nil
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Dives) != 2 {
		t.Errorf("got %d dives in range, want 2", len(out.Dives))
	}

	if w := get(t, srv, "/api/v1/dives?from=yesterday"); w.Code != http.StatusBadRequest {
		t.Errorf("bad from: got %d", w.Code)
	}
}

func TestHandleMatch(t *testing.T) {
	srv, _ := newTestServer(t, false)

	t.Run("single candidate resolves", func(t *testing.T) {
		w := get(t, srv, "/api/v1/match?time=2024:03:04+01:20:00")
		if w.Code != http.StatusOK {
			t.Fatalf("status: got %d", w.Code)
		}
		var out matchResponse
		if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
			t.Fatal(err)
		}
		if len(out.Candidates) != 1 || out.Resolved == nil || out.Resolved.Dive.Number != 3 {
			t.Fatalf("response = %+v", out)
		}
		if out.Resolved.Confidence != models.ConfidenceNearDive {
			t.Errorf("confidence = %v", out.Resolved.Confidence)
		}
		if out.Resolved.Delta != "+1h 20m 0s" || out.Resolved.DeltaSecs != 4800 {
			t.Errorf("delta = %q (%d)", out.Resolved.Delta, out.Resolved.DeltaSecs)
		}
	})

	t.Run("ambiguous leaves resolved empty", func(t *testing.T) {
		w := get(t, srv, "/api/v1/match?time=2024:03:01+10:15:00")
		if w.Code != http.StatusOK {
			t.Fatalf("status: got %d", w.Code)
		}
		var out matchResponse
		if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
			t.Fatal(err)
		}
		if len(out.Candidates) != 2 || out.Resolved != nil {
			t.Errorf("response = %+v", out)
		}
	})

	t.Run("no candidates", func(t *testing.T) {
		w := get(t, srv, "/api/v1/match?time=2023:01:01+12:00:00")
		var out matchResponse
		if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
			t.Fatal(err)
		}
		if len(out.Candidates) != 0 || out.Resolved != nil {
			t.Errorf("response = %+v", out)
		}
	})

	for _, target := range []string{"/api/v1/match", "/api/v1/match?time=noon"} {
		if w := get(t, srv, target); w.Code != http.StatusBadRequest {
			t.Errorf("%s: got %d, want 400", target, w.Code)
		}
	}
}

func TestHandleRuns(t *testing.T) {
	srv, store := newTestServer(t, true)
	ctx := context.Background()

	run := &models.Run{MediaRoot: "/photos"}
	if err := store.StartRun(ctx, run); err != nil {
		t.Fatal(err)
	}
	item := &models.ItemResult{Path: "/photos/a.jpg", Outcome: models.OutcomeProcessed, DiveNumber: 1, GPSWritten: true}
	if err := store.RecordItem(ctx, run.ID, item); err != nil {
		t.Fatal(err)
	}

	w := get(t, srv, "/api/v1/runs?limit=5")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var runs struct {
		Runs []models.Run `json:"runs"`
	}
	if err := json.NewDecoder(w.Body).Decode(&runs); err != nil {
		t.Fatal(err)
	}
	if len(runs.Runs) != 1 || runs.Runs[0].ID != run.ID {
		t.Errorf("runs = %+v", runs.Runs)
	}

	w = get(t, srv, "/api/v1/runs/"+run.ID+"/items")
	if w.Code != http.StatusOK {
		t.Fatalf("items status: got %d", w.Code)
	}
	var items struct {
		RunID string `json:"run_id"`
		Items []struct {
			Path       string `json:"path"`
			Outcome    string `json:"outcome"`
			DiveNumber int    `json:"dive_number"`
		} `json:"items"`
	}
	if err := json.NewDecoder(w.Body).Decode(&items); err != nil {
		t.Fatal(err)
	}
	if items.RunID != run.ID || len(items.Items) != 1 || items.Items[0].Outcome != "processed" {
		t.Errorf("items = %+v", items)
	}

	if w := get(t, srv, "/api/v1/runs/nope/items"); w.Code != http.StatusNotFound {
		t.Errorf("unknown run: got %d", w.Code)
	}
	if w := get(t, srv, "/api/v1/runs?limit=-1"); w.Code != http.StatusBadRequest {
		t.Errorf("bad limit: got %d", w.Code)
	}
}

func TestHandleRunsWithoutLedger(t *testing.T) {
	srv, _ := newTestServer(t, false)
	for _, target := range []string{"/api/v1/runs", "/api/v1/runs/x/items"} {
		if w := get(t, srv, target); w.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: got %d, want 503", target, w.Code)
		}
	}
}
