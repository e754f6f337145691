package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/starford/vigil/internal/apperr"
	"github.com/starford/vigil/internal/index"
	"github.com/starford/vigil/internal/testutil"
)

func newService(t *testing.T) *Service {
	t.Helper()
	db, store := testutil.SyncedDB(t, testutil.Sample)
	svc := NewService(db, store)
	svc.now = func() time.Time { return time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC) }
	return svc
}

func TestListIncidents(t *testing.T) {
	svc := newService(t)
	items, total, err := svc.ListIncidents(context.Background(), ListParams{Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 || len(items) != 2 || items[0].ID != "3003" {
		t.Errorf("items = %+v total = %d", items, total)
	}

	if _, _, err := svc.ListIncidents(context.Background(), ListParams{Offset: -1}); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

func TestRecent(t *testing.T) {
	svc := newService(t)
	items, err := svc.Recent(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].City != "Akron" {
		t.Errorf("recent = %+v", items)
	}
}

func TestGetIncident(t *testing.T) {
	svc := newService(t)
	inc, err := svc.GetIncident(context.Background(), " 3001 ")
	if err != nil {
		t.Fatal(err)
	}
	if inc.State != "Utah" || inc.Latitude == nil || inc.Fields["Incident ID"] != "3001" {
		t.Errorf("incident = %+v", inc)
	}

	if _, err := svc.GetIncident(context.Background(), "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if _, err := svc.GetIncident(context.Background(), ""); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

func TestSearch(t *testing.T) {
	svc := newService(t)
	hits, err := svc.Search(context.Background(), "Provo", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].ID != "3001" {
		t.Errorf("hits = %+v", hits)
	}
	if _, err := svc.Search(context.Background(), "  ", 0); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

func TestSummary(t *testing.T) {
	svc := newService(t)
	s, err := svc.Summary(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if s.Total != 3 || s.CurrentYear != 2 || s.Latest == nil || s.Latest.ID != "3003" {
		t.Errorf("summary = %+v", s)
	}
}

func TestSchema(t *testing.T) {
	svc := newService(t)
	info, err := svc.Schema(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(info.Columns) != 9 || info.Roles.ID != "Incident ID" {
		t.Errorf("schema = %+v", info)
	}
}

func TestListRunsAndReady(t *testing.T) {
	db := testutil.TestDB(t)
	svc := NewService(db, testutil.MasterFile(t, testutil.Sample))

	if err := svc.Ready(context.Background()); err == nil {
		t.Error("unsynced index should not be ready")
	}

	now := time.Now().UTC().Truncate(time.Second)
	_ = db.RecordRun(index.RunRow{ID: "r1", Year: 2025, StartedAt: now, FinishedAt: now, Status: index.RunSucceeded, Added: 1})
	runs, err := svc.ListRuns(context.Background(), 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].ID != "r1" || runs[0].Status != index.RunSucceeded {
		t.Errorf("runs = %+v", runs)
	}
}
