package engine

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Priya8975/price-tracker/internal/domain"
	"github.com/Priya8975/price-tracker/internal/store"
	"github.com/Priya8975/price-tracker/internal/store/memstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type brokenQueue struct{}

func (brokenQueue) Enqueue(context.Context, string, time.Time) error {
	return errors.New("connection refused")
}

func setupTestDispatcher(t *testing.T) (*Dispatcher, *memstore.Store, *store.RedisStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	jobs := memstore.New()
	rs := store.NewRedisFromClient(client)
	return NewDispatcher(jobs, rs, 2, testLogger()), jobs, rs
}

func priceJob(t *testing.T) domain.NotificationJob {
	t.Helper()
	job, err := domain.NewNotificationJob(domain.NotifyPriceChanged, "a@example.com", domain.PriceChangedPayload{
		ToEmail: "a@example.com", PreviousPrice: 50, NewPrice: 65, PriceDiff: 15, ChangeType: domain.ChangeRise,
	})
	if err != nil {
		t.Fatalf("building job: %v", err)
	}
	return job
}

func TestDispatch_WritesAuditAndQueuesEnvelope(t *testing.T) {
	d, jobs, rs := setupTestDispatcher(t)
	ctx := context.Background()

	id, err := d.Dispatch(ctx, priceJob(t))
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	rec, err := jobs.GetJob(ctx, id)
	if err != nil {
		t.Fatalf("audit missing: %v", err)
	}
	if rec.Status != domain.JobQueued || rec.SubmittedAt == nil {
		t.Errorf("expected a submitted QUEUED audit, got status=%s submitted=%v", rec.Status, rec.SubmittedAt)
	}

	members, err := rs.ClaimReady(ctx, time.Now().Add(time.Second), 10)
	if err != nil || len(members) != 1 {
		t.Fatalf("expected one queued envelope, got %v (err=%v)", members, err)
	}
	var env Envelope
	if err := json.Unmarshal([]byte(members[0]), &env); err != nil {
		t.Fatalf("decoding envelope: %v", err)
	}
	if env.JobID != id || env.Attempt != 1 || env.MaxRetries != 2 || env.Kind != domain.NotifyPriceChanged {
		t.Errorf("unexpected envelope %+v", env)
	}
}

func TestDispatch_RejectsUnknownKind(t *testing.T) {
	d, jobs, _ := setupTestDispatcher(t)
	ctx := context.Background()

	_, err := d.Dispatch(ctx, domain.NotificationJob{Kind: "newsletter", Recipient: "a@example.com"})
	if !domain.IsKind(err, domain.KindPermanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if n, _ := jobs.CountJobs(ctx, domain.JobFilter{}); n != 0 {
		t.Errorf("no audit should be written, found %d", n)
	}
}

func TestDispatchRetry_LinksOriginal(t *testing.T) {
	d, jobs, _ := setupTestDispatcher(t)
	ctx := context.Background()

	id, err := d.DispatchRetry(ctx, priceJob(t), "original-id")
	if err != nil {
		t.Fatalf("dispatch retry: %v", err)
	}

	rec, _ := jobs.GetJob(ctx, id)
	if rec.Status != domain.JobRequeued {
		t.Errorf("expected REQUEUED, got %s", rec.Status)
	}
	if rec.RetryOf == nil || *rec.RetryOf != "original-id" {
		t.Errorf("expected retry_of to reference the original, got %v", rec.RetryOf)
	}
}

func TestDispatch_QueueOutageLeavesOrphanForRecovery(t *testing.T) {
	_, jobs, rs := setupTestDispatcher(t)
	ctx := context.Background()
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	broken := NewDispatcher(jobs, brokenQueue{}, 2, testLogger())
	broken.now = func() time.Time { return start }

	id, err := broken.Dispatch(ctx, priceJob(t))
	if err != nil {
		t.Fatalf("dispatch should accept the job even when the queue is down: %v", err)
	}
	rec, _ := jobs.GetJob(ctx, id)
	if rec.SubmittedAt != nil {
		t.Fatal("job should not be marked submitted")
	}

	healthy := NewDispatcher(jobs, rs, 2, testLogger())

	healthy.now = func() time.Time { return start.Add(time.Minute) }
	n, err := healthy.RecoverOrphans(ctx, 2*time.Minute)
	if err != nil || n != 0 {
		t.Fatalf("job inside the grace period should be left alone, got %d (err=%v)", n, err)
	}

	healthy.now = func() time.Time { return start.Add(5 * time.Minute) }
	n, err = healthy.RecoverOrphans(ctx, 2*time.Minute)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 recovered job, got %d (err=%v)", n, err)
	}

	rec, _ = jobs.GetJob(ctx, id)
	if rec.SubmittedAt == nil {
		t.Error("recovered job should be marked submitted")
	}
	if depth, _ := rs.QueueDepth(ctx); depth != 1 {
		t.Errorf("expected 1 queued envelope, got %d", depth)
	}

	n, _ = healthy.RecoverOrphans(ctx, 2*time.Minute)
	if n != 0 {
		t.Errorf("second sweep should find nothing, got %d", n)
	}
}
