package fetch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/vigil/internal/apperr"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestReadSnapshot(t *testing.T) {
	p := writeFile(t, t.TempDir(), "snap.csv", "Incident ID,Incident Date,State\n7,\"May 1, 2025\",Ohio\n")
	schema, recs, err := ReadSnapshot(p)
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}
	if len(schema) != 3 || len(recs) != 1 || recs[0]["Incident Date"] != "May 1, 2025" {
		t.Errorf("schema = %v recs = %v", schema, recs)
	}
}

func TestReadSnapshot_Missing(t *testing.T) {
	_, _, err := ReadSnapshot(filepath.Join(t.TempDir(), "nope.csv"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want ErrNotExist", err)
	}
}

func TestReadSnapshot_NoHeader(t *testing.T) {
	p := writeFile(t, t.TempDir(), "empty.csv", "")
	if _, _, err := ReadSnapshot(p); !errors.Is(err, apperr.ErrNoHeader) {
		t.Errorf("err = %v, want ErrNoHeader", err)
	}
}

func TestFileFetcher_NotOwnedKeepsFile(t *testing.T) {
	p := writeFile(t, t.TempDir(), "snap.csv", "Incident ID\n1\n")
	res, err := FileFetcher{Path: p}.Fetch(context.Background(), 2025)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.Year != 2025 || len(res.Records) != 1 {
		t.Errorf("res = %+v", res)
	}
	if err := res.Cleanup(); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if _, err := os.Stat(p); err != nil {
		t.Error("unowned snapshot was removed")
	}
}

func TestFileFetcher_OwnedRemovedOnce(t *testing.T) {
	p := writeFile(t, t.TempDir(), "snap.csv", "Incident ID\n1\n")
	res, err := FileFetcher{Path: p, Owned: true}.Fetch(context.Background(), 2025)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if err := res.Cleanup(); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if _, err := os.Stat(p); !errors.Is(err, os.ErrNotExist) {
		t.Error("owned snapshot should be removed")
	}
	if err := res.Cleanup(); err != nil {
		t.Errorf("second Cleanup: %v", err)
	}
}

func TestNilResultCleanup(t *testing.T) {
	var r *Result
	if err := r.Cleanup(); err != nil {
		t.Errorf("Cleanup on nil: %v", err)
	}
}

func TestWaitForDownload_FindsNewCSV(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "old.csv", "x")
	baseline, err := listDir(dir)
	if err != nil {
		t.Fatal(err)
	}

	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = os.WriteFile(filepath.Join(dir, "export.csv.crdownload"), []byte("partial"), 0o644)
		time.Sleep(30 * time.Millisecond)
		_ = os.WriteFile(filepath.Join(dir, "export.csv"), []byte("done"), 0o644)
	}()

	got, err := WaitForDownload(context.Background(), dir, baseline, 2*time.Second, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("WaitForDownload: %v", err)
	}
	if filepath.Base(got) != "export.csv" {
		t.Errorf("got %s", got)
	}
}

func TestWaitForDownload_Timeout(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "old.csv", "x")
	baseline, _ := listDir(dir)

	_, err := WaitForDownload(context.Background(), dir, baseline, 50*time.Millisecond, 10*time.Millisecond)
	if !errors.Is(err, ErrDownloadNotFound) {
		t.Errorf("err = %v, want ErrDownloadNotFound", err)
	}
}

func TestTargetName(t *testing.T) {
	at := time.Date(2025, 3, 4, 5, 6, 7, 0, time.FixedZone("EST", -5*3600))
	if got := TargetName("gvatemp", 2025, at); got != "gvatemp_2025_2025-03-04T10-06-07Z.csv" {
		t.Errorf("got %s", got)
	}
}

func TestOptionsValidate(t *testing.T) {
	if err := DefaultOptions().Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	o := DefaultOptions()
	o.Prefix = ""
	if err := o.Validate(); err == nil {
		t.Error("empty prefix should fail")
	}
	o = DefaultOptions()
	o.WaitTimeout = 0
	if err := o.Validate(); err == nil {
		t.Error("zero wait timeout should fail")
	}
}

func TestReportURL(t *testing.T) {
	if got := DefaultOptions().ReportURL(2024); got != "https://www.gunviolencearchive.org/reports/mass-shooting?year=2024" {
		t.Errorf("got %s", got)
	}
}

func TestExport_RejectsYear(t *testing.T) {
	opts := DefaultOptions()
	opts.OutDir = t.TempDir()
	b, err := NewBrowserExporter(opts, nil)
	if err != nil {
		t.Fatalf("NewBrowserExporter: %v", err)
	}
	if _, err := b.Export(context.Background(), 1999); err == nil {
		t.Error("expected year validation error")
	}
}

func TestPollClick_ReportsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := pollClick(ctx, []string{"//a"}, time.Minute); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if err := waitForLocation(ctx, "/export", time.Minute); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestPollClick_Timeout(t *testing.T) {
	ctx := context.Background()

	if err := pollClick(ctx, []string{"//a"}, 20*time.Millisecond); !errors.Is(err, ErrElementNotFound) {
		t.Errorf("err = %v, want ErrElementNotFound", err)
	}
	if err := waitForLocation(ctx, "/export", 20*time.Millisecond); !errors.Is(err, ErrTimeout) {
		t.Errorf("err = %v, want ErrTimeout", err)
	}
}
