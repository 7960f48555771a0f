package scheduler

import (
	"context"
	"time"

	notifrepo "tradelink_backend/internal/notification/repository"
	"tradelink_backend/platform/config"
	"tradelink_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Dispatcher ticks cover this many due notifications at a time.
const claimBatchSize = 50

// DueClaimer is the slice of the notification store the dispatcher drives:
// claiming due scheduled notifications and putting one back after a failed
// enqueue.
type DueClaimer interface {
	ClaimDueScheduled(ctx context.Context, limit int) ([]uuid.UUID, error)
	MarkScheduled(ctx context.Context, id uuid.UUID) error
}

// Enqueuer hands a claimed notification to the worker queue.
type Enqueuer interface {
	EnqueueNotificationDue(ctx context.Context, notificationID uuid.UUID) error
}

// Dispatcher scans for due scheduled notifications on a fixed interval and
// enqueues one task per notification. Notifications are processed
// independently; a failed enqueue is put back for the next tick and never
// blocks the rest of the batch.
type Dispatcher struct {
	client   *Client
	enqueue  Enqueuer
	claims   DueClaimer
	interval time.Duration
	log      *logger.Logger
}

func NewDispatcher(cfg config.SchedulerConfig, pool *pgxpool.Pool, log *logger.Logger) (*Dispatcher, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}

	interval := cfg.GetDispatchInterval()
	if interval <= 0 {
		interval = time.Minute
	}

	return &Dispatcher{
		client:   client,
		enqueue:  client,
		claims:   notifrepo.New(pool),
		interval: interval,
		log:      log,
	}, nil
}

func (d *Dispatcher) Close() error {
	if d == nil {
		return nil
	}
	return d.client.Close()
}

func (d *Dispatcher) Run(ctx context.Context) {
	if d == nil || d.enqueue == nil || d.claims == nil {
		return
	}

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		d.dispatchDue(ctx)
	}
}

// dispatchDue runs one tick: claim due scheduled notifications, then enqueue
// a task per notification.
func (d *Dispatcher) dispatchDue(ctx context.Context) {
	ids, err := d.claims.ClaimDueScheduled(ctx, claimBatchSize)
	if err != nil {
		d.log.Warn("scheduled notification claim failed", "error", err)
		return
	}

	for _, id := range ids {
		if err := d.enqueue.EnqueueNotificationDue(ctx, id); err != nil {
			d.log.Warn("enqueue of due notification failed", "notificationId", id, "error", err)
			_ = d.claims.MarkScheduled(ctx, id)
			continue
		}

		d.log.Info("scheduled notification dispatched", "notificationId", id)
	}
}
