package retention

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeSweeper struct {
	mu     sync.Mutex
	calls  int
	block  chan struct{}
	maxAge time.Duration
	rows   int
}

func (f *fakeSweeper) Sweep(maxAge time.Duration, maxRows int, now time.Time) (int, error) {
	f.mu.Lock()
	f.calls++
	f.maxAge = maxAge
	f.rows = maxRows
	f.mu.Unlock()
	if f.block != nil {
		<-f.block
	}
	return 0, nil
}

func (f *fakeSweeper) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestNew_RejectsBadCron(t *testing.T) {
	if _, err := New(&fakeSweeper{}, Config{Cron: "not a cron"}); err == nil {
		t.Error("expected error for invalid cron expression")
	}
	if _, err := New(&fakeSweeper{}, Config{Cron: "0 * * * *"}); err != nil {
		t.Errorf("valid cron rejected: %v", err)
	}
}

func TestRunner_SweepOncePassesConfig(t *testing.T) {
	sw := &fakeSweeper{}
	r, err := New(sw, Config{Cron: "* * * * *", MaxAge: 2 * time.Hour, MaxRows: 50})
	if err != nil {
		t.Fatal(err)
	}

	r.sweepOnce()

	if sw.callCount() != 1 {
		t.Fatalf("expected 1 sweep, got %d", sw.callCount())
	}
	if sw.maxAge != 2*time.Hour || sw.rows != 50 {
		t.Errorf("sweep got maxAge=%s maxRows=%d", sw.maxAge, sw.rows)
	}
}

func TestRunner_RunStopsOnCancel(t *testing.T) {
	sw := &fakeSweeper{}
	r, err := New(sw, Config{Cron: "0 * * * *", MaxRows: 50})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned error on cancel: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	// Sweeps run inline in the loop, so none can outlive Run.
	if r.running.Load() {
		t.Error("sweep still in flight after Run returned")
	}
}

func TestRunner_OverlappingSweepIsSkipped(t *testing.T) {
	sw := &fakeSweeper{block: make(chan struct{})}
	r, err := New(sw, Config{Cron: "* * * * *", MaxRows: 50})
	if err != nil {
		t.Fatal(err)
	}

	started := make(chan struct{})
	go func() {
		close(started)
		r.sweepOnce()
	}()
	<-started

	// Wait for the first sweep to be in flight.
	deadline := time.Now().Add(time.Second)
	for sw.callCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("first sweep never started")
		}
		time.Sleep(time.Millisecond)
	}

	r.sweepOnce() // should be skipped while the first one holds the flag
	if got := sw.callCount(); got != 1 {
		t.Errorf("expected overlapping sweep to be skipped, got %d calls", got)
	}

	close(sw.block)
}
