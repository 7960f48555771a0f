package scheduler

import (
	"context"
	"fmt"
	"testing"

	"tradelink_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeClaims struct {
	due         []uuid.UUID
	rescheduled []uuid.UUID
	claims      int
}

func (f *fakeClaims) ClaimDueScheduled(_ context.Context, limit int) ([]uuid.UUID, error) {
	f.claims++
	if len(f.due) > limit {
		out := f.due[:limit]
		f.due = f.due[limit:]
		return out, nil
	}
	out := f.due
	f.due = nil
	return out, nil
}

func (f *fakeClaims) MarkScheduled(_ context.Context, id uuid.UUID) error {
	f.rescheduled = append(f.rescheduled, id)
	return nil
}

type fakeEnqueuer struct {
	enqueued []uuid.UUID
	failFor  map[uuid.UUID]bool
}

func (f *fakeEnqueuer) EnqueueNotificationDue(_ context.Context, id uuid.UUID) error {
	if f.failFor[id] {
		return fmt.Errorf("queue unavailable")
	}
	f.enqueued = append(f.enqueued, id)
	return nil
}

func newTestDispatcher(claims *fakeClaims, enqueue *fakeEnqueuer) *Dispatcher {
	return &Dispatcher{
		claims:  claims,
		enqueue: enqueue,
		log:     logger.New("development"),
	}
}

func TestDispatchDuePromotesAndEnqueuesOnce(t *testing.T) {
	due := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	claims := &fakeClaims{due: append([]uuid.UUID{}, due...)}
	enqueue := &fakeEnqueuer{}
	d := newTestDispatcher(claims, enqueue)

	d.dispatchDue(context.Background())

	if len(enqueue.enqueued) != 3 {
		t.Fatalf("expected 3 enqueued notifications, got %d", len(enqueue.enqueued))
	}
	if len(claims.rescheduled) != 0 {
		t.Fatalf("successful enqueues must not be put back, got %v", claims.rescheduled)
	}

	// Once claimed, a notification is no longer due; the next tick finds
	// nothing and enqueues nothing.
	d.dispatchDue(context.Background())
	if len(enqueue.enqueued) != 3 {
		t.Fatalf("second tick must not re-enqueue, got %d", len(enqueue.enqueued))
	}
}

func TestDispatchDueRevertsFailedEnqueue(t *testing.T) {
	stuck := uuid.New()
	ok := uuid.New()
	claims := &fakeClaims{due: []uuid.UUID{stuck, ok}}
	enqueue := &fakeEnqueuer{failFor: map[uuid.UUID]bool{stuck: true}}
	d := newTestDispatcher(claims, enqueue)

	d.dispatchDue(context.Background())

	// One failure does not block the rest of the batch.
	if len(enqueue.enqueued) != 1 || enqueue.enqueued[0] != ok {
		t.Fatalf("expected only the healthy notification enqueued, got %v", enqueue.enqueued)
	}
	if len(claims.rescheduled) != 1 || claims.rescheduled[0] != stuck {
		t.Fatalf("expected the failed enqueue put back for the next tick, got %v", claims.rescheduled)
	}
}

func TestDispatchDueRespectsBatchLimit(t *testing.T) {
	due := make([]uuid.UUID, claimBatchSize+10)
	for i := range due {
		due[i] = uuid.New()
	}
	claims := &fakeClaims{due: due}
	enqueue := &fakeEnqueuer{}
	d := newTestDispatcher(claims, enqueue)

	d.dispatchDue(context.Background())

	if len(enqueue.enqueued) != claimBatchSize {
		t.Fatalf("expected one batch of %d, got %d", claimBatchSize, len(enqueue.enqueued))
	}
}
