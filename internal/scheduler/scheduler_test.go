package scheduler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Priya8975/price-tracker/internal/pricing"
	"github.com/google/go-cmp/cmp"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recorder struct {
	mu      sync.Mutex
	cycles  int
	sweeps  int
	grace   time.Duration
	cutoffs map[string]time.Time
	err     error
}

func (r *recorder) RunCycle(context.Context) (pricing.CycleSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cycles++
	return pricing.CycleSummary{}, r.err
}

func (r *recorder) RecoverOrphans(_ context.Context, grace time.Duration) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweeps++
	r.grace = grace
	return 0, r.err
}

type purger struct {
	name string
	r    *recorder
}

func (p purger) PurgeOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	return p.record(cutoff)
}

func (p purger) Purge(_ context.Context, cutoff time.Time) (int64, error) {
	return p.record(cutoff)
}

func (p purger) record(cutoff time.Time) (int64, error) {
	p.r.mu.Lock()
	defer p.r.mu.Unlock()
	p.r.cutoffs[p.name] = cutoff
	return 0, p.r.err
}

func (r *recorder) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cycles, r.sweeps
}

func newScheduler(r *recorder, cfg Config) *Scheduler {
	return New(r, r, purger{"logs", r}, purger{"jobs", r}, cfg, testLogger())
}

func TestScheduler_RunsLoopsUntilCancelled(t *testing.T) {
	r := &recorder{cutoffs: map[string]time.Time{}}
	s := newScheduler(r, Config{CheckInterval: 10 * time.Millisecond, RecoveryInterval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		cycles, sweeps := r.counts()
		if cycles >= 3 && sweeps >= 3 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("loops did not tick: cycles=%d sweeps=%d", cycles, sweeps)
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestScheduler_PurgeCutoffs(t *testing.T) {
	r := &recorder{cutoffs: map[string]time.Time{}}
	s := newScheduler(r, Config{PriceLogRetention: 48 * time.Hour, JobRetention: 24 * time.Hour})
	now := time.Date(2024, 7, 9, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	s.purge(context.Background())

	want := map[string]time.Time{
		"logs": now.Add(-48 * time.Hour),
		"jobs": now.Add(-24 * time.Hour),
	}
	if diff := cmp.Diff(want, r.cutoffs); diff != "" {
		t.Errorf("cutoffs mismatch (-want +got):\n%s", diff)
	}
}

func TestScheduler_Defaults(t *testing.T) {
	r := &recorder{cutoffs: map[string]time.Time{}}
	s := newScheduler(r, Config{})

	if s.cfg.PriceLogRetention != 365*24*time.Hour || s.cfg.PurgeInterval != 24*time.Hour {
		t.Errorf("unexpected defaults: %+v", s.cfg)
	}

	s.recover(context.Background())
	if r.grace != 30*time.Second {
		t.Errorf("expected default grace 30s, got %s", r.grace)
	}
}

func TestScheduler_ErrorsDoNotStopLoops(t *testing.T) {
	r := &recorder{cutoffs: map[string]time.Time{}, err: errors.New("db down")}
	s := newScheduler(r, Config{})
	ctx := context.Background()

	s.checkPrices(ctx)
	s.checkPrices(ctx)
	s.recover(ctx)
	s.purge(ctx)

	if cycles, sweeps := r.counts(); cycles != 2 || sweeps != 1 {
		t.Errorf("expected 2 cycles and 1 sweep, got %d and %d", cycles, sweeps)
	}
	if len(r.cutoffs) != 2 {
		t.Errorf("expected both purges attempted, got %v", r.cutoffs)
	}
}

func TestScheduler_LogsFailures(t *testing.T) {
	r := &recorder{cutoffs: map[string]time.Time{}, err: errors.New("db down")}
	var buf bytes.Buffer
	s := New(r, r, purger{"logs", r}, purger{"jobs", r}, Config{}, slog.New(slog.NewTextHandler(&buf, nil)))
	ctx := context.Background()

	s.checkPrices(ctx)
	s.recover(ctx)
	s.purge(ctx)

	out := buf.String()
	for _, msg := range []string{
		"price check cycle failed",
		"failed to recover orphaned jobs",
		"failed to purge price history",
		"failed to purge jobs",
	} {
		if !strings.Contains(out, msg) {
			t.Errorf("expected %q in log output:\n%s", msg, out)
		}
	}
	if strings.Count(out, "error=\"db down\"") != 4 {
		t.Errorf("expected every failure logged with its error:\n%s", out)
	}
}
