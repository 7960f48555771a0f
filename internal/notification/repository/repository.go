// Package repository implements notification persistence: the notification
// records themselves plus their aggregate delivery counters. Per-recipient
// delivery records live in the delivery package.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tradelink_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Notification statuses. draft→(scheduled)→sending→sent|failed.
const (
	StatusDraft     = "draft"
	StatusScheduled = "scheduled"
	StatusSending   = "sending"
	StatusSent      = "sent"
	StatusFailed    = "failed"
)

// Notification types.
const (
	TypeLocal      = "local"
	TypeGlobal     = "global"
	TypeIndividual = "individual"
)

// Priorities. Urgent notifications additionally go out by email.
const (
	PriorityNormal = "normal"
	PriorityUrgent = "urgent"
)

// Notification is an operator broadcast with its targeting declaration and
// aggregate delivery stats.
type Notification struct {
	ID             uuid.UUID   `json:"id"`
	Title          string      `json:"title"`
	Message        string      `json:"message"`
	Type           string      `json:"type"`
	TargetCountry  *string     `json:"targetCountry,omitempty"`
	TargetUsers    []uuid.UUID `json:"targetUsers,omitempty"`
	TargetGroups   []uuid.UUID `json:"targetGroups,omitempty"`
	AllUsers       bool        `json:"allUsers"`
	Priority       string      `json:"priority"`
	Category       string      `json:"category"`
	ScheduledFor   *time.Time  `json:"scheduledFor,omitempty"`
	Status         string      `json:"status"`
	TotalTargets   int         `json:"totalTargets"`
	DeliveredCount int         `json:"deliveredCount"`
	FailedCount    int         `json:"failedCount"`
	ReadCount      int         `json:"readCount"`
	CreatedBy      uuid.UUID   `json:"createdBy"`
	CreatedAt      time.Time   `json:"createdAt"`
	SentAt         *time.Time  `json:"sentAt,omitempty"`
}

// CreateParams carries a new notification.
type CreateParams struct {
	Title         string
	Message       string
	Type          string
	TargetCountry *string
	TargetUsers   []uuid.UUID
	TargetGroups  []uuid.UUID
	AllUsers      bool
	Priority      string
	Category      string
	ScheduledFor  *time.Time
	CreatedBy     uuid.UUID
}

const notificationColumns = `id, title, message, type, target_country, target_users,
	target_groups, all_users, priority, category, scheduled_for, status,
	total_targets, delivered_count, failed_count, read_count, created_by,
	created_at, sent_at`

// Repo implements notification persistence with PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new notification repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Create inserts a notification. Scheduled notifications start in scheduled,
// all others in draft; the fan-out pipeline moves them forward.
func (r *Repo) Create(ctx context.Context, params CreateParams) (Notification, error) {
	status := StatusDraft
	if params.ScheduledFor != nil {
		status = StatusScheduled
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO notifications (title, message, type, target_country, target_users,
			target_groups, all_users, priority, category, scheduled_for, status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING `+notificationColumns,
		params.Title, params.Message, params.Type, params.TargetCountry,
		params.TargetUsers, params.TargetGroups, params.AllUsers,
		params.Priority, params.Category, params.ScheduledFor, status, params.CreatedBy)

	n, err := scanNotification(row)
	if err != nil {
		return Notification{}, fmt.Errorf("create notification: %w", err)
	}
	return n, nil
}

// GetByID retrieves a notification.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (Notification, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id)
	n, err := scanNotification(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Notification{}, apperr.NotFound("notification not found")
		}
		return Notification{}, fmt.Errorf("get notification by id: %w", err)
	}
	return n, nil
}

// List returns notifications newest first with the total count.
func (r *Repo) List(ctx context.Context, limit, offset int) ([]Notification, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	items := make([]Notification, 0, limit)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan notification: %w", err)
		}
		items = append(items, n)
	}
	if rows.Err() != nil {
		return nil, 0, fmt.Errorf("iterate notifications: %w", rows.Err())
	}
	return items, total, nil
}

// MarkSending moves the notification into the sending state. Re-running a
// half-finished fan-out finds it already sending, which is fine: the ledger
// makes the re-run idempotent.
func (r *Repo) MarkSending(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE notifications SET status = 'sending'
		WHERE id = $1 AND status IN ('draft', 'scheduled', 'sending')`, id)
	if err != nil {
		return fmt.Errorf("mark notification sending: %w", err)
	}
	return nil
}

// SetTotalTargets records the ledger-derived recipient count.
func (r *Repo) SetTotalTargets(ctx context.Context, id uuid.UUID, total int) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE notifications SET total_targets = $2 WHERE id = $1`, id, total)
	if err != nil {
		return fmt.Errorf("set total targets: %w", err)
	}
	return nil
}

// MarkSent finishes the pipeline. Only a sending notification can become
// sent; in particular a failed one stays failed until an operator
// reschedules it.
func (r *Repo) MarkSent(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE notifications SET status = 'sent', sent_at = now()
		WHERE id = $1 AND status = 'sending'`, id)
	if err != nil {
		return fmt.Errorf("mark notification sent: %w", err)
	}
	return nil
}

// MarkFailed records a fan-out failure. No automatic retry; an operator must
// reschedule.
func (r *Repo) MarkFailed(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE notifications SET status = 'failed' WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark notification failed: %w", err)
	}
	return nil
}

// IncrementDelivered bumps the delivered counter by one.
func (r *Repo) IncrementDelivered(ctx context.Context, id uuid.UUID) error {
	return r.increment(ctx, id, "delivered_count")
}

// IncrementRead bumps the read counter by one.
func (r *Repo) IncrementRead(ctx context.Context, id uuid.UUID) error {
	return r.increment(ctx, id, "read_count")
}

// IncrementFailed bumps the failed counter by one.
func (r *Repo) IncrementFailed(ctx context.Context, id uuid.UUID) error {
	return r.increment(ctx, id, "failed_count")
}

func (r *Repo) increment(ctx context.Context, id uuid.UUID, column string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE notifications SET `+column+` = `+column+` + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("increment %s: %w", column, err)
	}
	return nil
}

// MarkScheduled returns a claimed notification to the scheduled state so a
// later dispatcher tick retries the enqueue.
func (r *Repo) MarkScheduled(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE notifications SET status = 'scheduled'
		WHERE id = $1 AND status = 'sending'`, id)
	if err != nil {
		return fmt.Errorf("mark notification scheduled: %w", err)
	}
	return nil
}

// ClaimDueScheduled promotes due scheduled notifications to sending and
// returns their IDs. FOR UPDATE SKIP LOCKED lets concurrent dispatcher ticks
// claim disjoint sets.
func (r *Repo) ClaimDueScheduled(ctx context.Context, limit int) ([]uuid.UUID, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin claim tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT id FROM notifications
		WHERE status = 'scheduled' AND scheduled_for <= now()
		ORDER BY scheduled_for
		LIMIT $1
		FOR UPDATE SKIP LOCKED`, limit)
	if err != nil {
		return nil, fmt.Errorf("select due notifications: %w", err)
	}

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan due notification: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate due notifications: %w", rows.Err())
	}

	if len(ids) > 0 {
		if _, err := tx.Exec(ctx, `
			UPDATE notifications SET status = 'sending' WHERE id = ANY($1)`, ids); err != nil {
			return nil, fmt.Errorf("promote due notifications: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit claim tx: %w", err)
	}
	return ids, nil
}

func scanNotification(row pgx.Row) (Notification, error) {
	var n Notification
	err := row.Scan(&n.ID, &n.Title, &n.Message, &n.Type, &n.TargetCountry,
		&n.TargetUsers, &n.TargetGroups, &n.AllUsers, &n.Priority, &n.Category,
		&n.ScheduledFor, &n.Status, &n.TotalTargets, &n.DeliveredCount,
		&n.FailedCount, &n.ReadCount, &n.CreatedBy, &n.CreatedAt, &n.SentAt)
	return n, err
}
