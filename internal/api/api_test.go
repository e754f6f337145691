package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/vigil/internal/catalog"
	"github.com/starford/vigil/internal/index"
	"github.com/starford/vigil/internal/master"
	"github.com/starford/vigil/internal/models"
	"github.com/starford/vigil/internal/testutil"
)

// testEnv sets up a synced master file, SQLite DB, service, and router.
// An empty authToken means disabled mode.
func testEnv(t *testing.T, authToken string) http.Handler {
	t.Helper()
	db, store := testutil.SyncedDB(t, testutil.Sample)
	return NewRouter(catalog.NewService(db, store), authToken != "", authToken, nil)
}

func get(t *testing.T, router http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestListIncidents(t *testing.T) {
	router := testEnv(t, "")

	w := get(t, router, "/incidents?limit=2")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp IncidentListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 3 || len(resp.Incidents) != 2 || resp.Incidents[0].ID != "3003" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestListIncidents_StateFilter(t *testing.T) {
	router := testEnv(t, "")

	w := get(t, router, "/incidents?state=Texas")
	var resp IncidentListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 1 || resp.Incidents[0].City != "Austin" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestListIncidents_EmptyIsArray(t *testing.T) {
	router := testEnv(t, "")

	w := get(t, router, "/incidents?state=Nowhere")
	var raw map[string]json.RawMessage
	_ = json.Unmarshal(w.Body.Bytes(), &raw)
	if string(raw["incidents"]) != "[]" {
		t.Errorf("incidents = %s, want []", raw["incidents"])
	}
}

func TestGetIncident(t *testing.T) {
	router := testEnv(t, "")

	w := get(t, router, "/incidents/3001")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var inc IncidentDetail
	_ = json.Unmarshal(w.Body.Bytes(), &inc)
	if inc.City != "Provo" || inc.Killed != 1 || inc.Latitude == nil {
		t.Errorf("incident = %+v", inc)
	}
}

func TestGetIncident_NotFound(t *testing.T) {
	router := testEnv(t, "")

	if w := get(t, router, "/incidents/404"); w.Code != http.StatusNotFound {
		t.Errorf("missing incident = %d, want 404", w.Code)
	}
}

func TestSearchEndpoint(t *testing.T) {
	router := testEnv(t, "")

	w := get(t, router, "/search?q=Akron")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp SearchResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Results) != 1 || resp.Results[0].ID != "3003" {
		t.Errorf("results = %+v", resp.Results)
	}
}

func TestSearchMissingQuery(t *testing.T) {
	router := testEnv(t, "")

	if w := get(t, router, "/search"); w.Code != http.StatusBadRequest {
		t.Errorf("search no query = %d, want 400", w.Code)
	}
}

func TestSummaryEndpoint(t *testing.T) {
	router := testEnv(t, "")

	w := get(t, router, "/summary")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var s Summary
	_ = json.Unmarshal(w.Body.Bytes(), &s)
	if s.Total != 3 || s.Latest == nil || s.Latest.Location != "Akron, Ohio" {
		t.Errorf("summary = %+v", s)
	}
}

func TestSummaryEndpoint_StoreMissing(t *testing.T) {
	store, err := master.Open(filepath.Join(t.TempDir(), "gone.csv"), models.DefaultColumns())
	if err != nil {
		t.Fatal(err)
	}
	router := NewRouter(catalog.NewService(testutil.TestDB(t), store), false, "", nil)

	if w := get(t, router, "/summary"); w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestRunsEndpoint(t *testing.T) {
	db, store := testutil.SyncedDB(t, testutil.Sample)
	now := time.Now().UTC()
	_ = db.RecordRun(index.RunRow{ID: "r1", Year: 2025, StartedAt: now, FinishedAt: now, Status: index.RunFailed, Error: "boom"})
	router := NewRouter(catalog.NewService(db, store), false, "", nil)

	w := get(t, router, "/runs")
	var resp RunListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Runs) != 1 || resp.Runs[0].Error != "boom" {
		t.Errorf("runs = %+v", resp.Runs)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/incidents", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authed list = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	router := testEnv(t, "secret123")

	w := get(t, router, "/incidents")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
	if got := w.Header().Get("WWW-Authenticate"); !strings.HasPrefix(got, "Bearer") {
		t.Errorf("WWW-Authenticate = %q", got)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/incidents", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

// SSE endpoint auth tests.

func TestSSEEvents_AuthProtected(t *testing.T) {
	router := testEnvWithSSE(t, true, "secret")

	if w := get(t, router, "/events"); w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_AuthDisabled(t *testing.T) {
	router := testEnvWithSSE(t, false, "")

	// The stub blocks until the request context ends.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE should not require auth when disabled")
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	router := testEnvWithSSE(t, true, "tok")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}

// testEnvWithSSE creates a router with a dummy SSE handler to test auth on /events.
func testEnvWithSSE(t *testing.T, authEnabled bool, token string) http.Handler {
	t.Helper()
	p := filepath.Join(t.TempDir(), "m.csv")
	if err := os.WriteFile(p, []byte(testutil.Header), 0o644); err != nil {
		t.Fatal(err)
	}
	store, err := master.Open(p, models.DefaultColumns())
	if err != nil {
		t.Fatal(err)
	}

	sseHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	})

	return NewRouter(catalog.NewService(testutil.TestDB(t), store), authEnabled, token, sseHandler)
}
