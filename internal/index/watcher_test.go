package index

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"
)

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestWatcher_ResyncsOnRewrite(t *testing.T) {
	db := testDB(t)
	store := testStore(t, sample)
	if _, err := Sync(db, store, testLogger()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var changed int
	go Watch(ctx, db, store, testLogger(), func(res SyncResult, err error) {
		if err == nil && res.Changed {
			mu.Lock()
			changed++
			mu.Unlock()
		}
	})

	time.Sleep(100 * time.Millisecond)

	updated := sampleHeader + "3004,\"July 5, 2025\",Iowa,Ames,,0,4,,\n" + strings.TrimPrefix(sample, sampleHeader)
	if err := os.WriteFile(store.Path(), []byte(updated), 0o644); err != nil {
		t.Fatal(err)
	}

	eventually(t, 3*time.Second, 50*time.Millisecond, func() bool {
		_, err := db.GetIncident("3004")
		return err == nil
	}, "new incident should be mirrored")

	eventually(t, time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return changed >= 1
	}, "callback should report a changed sync")
}

func TestWatcher_AtomicReplace(t *testing.T) {
	db := testDB(t)
	store := testStore(t, sample)
	if _, err := Sync(db, store, testLogger()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Watch(ctx, db, store, testLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	tmp := store.Path() + ".tmp"
	if err := os.WriteFile(tmp, []byte(sample+"2999,\"May 1, 2024\",Iowa,Ames,,0,4,,\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, store.Path()); err != nil {
		t.Fatal(err)
	}

	eventually(t, 3*time.Second, 50*time.Millisecond, func() bool {
		_, err := db.GetIncident("2999")
		return err == nil
	}, "rename into place should trigger a resync")
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	db := testDB(t)
	store := testStore(t, sample)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	calls := 0
	go Watch(ctx, db, store, testLogger(), func(SyncResult, error) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(store.Path()+".lock", nil, 0o644)
	time.Sleep(500 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if calls != 0 {
		t.Errorf("callback calls = %d, want 0", calls)
	}
}

func TestWatcher_StopsOnCancel(t *testing.T) {
	db := testDB(t)
	store := testStore(t, sample)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, db, store, testLogger(), nil) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
