// Package delivery implements the per-recipient delivery ledger. One record
// exists per (user, notification) pair; a unique index makes fan-out safe to
// re-run.
package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Delivery record statuses.
const (
	StatusPending   = "pending"
	StatusDelivered = "delivered"
	StatusFailed    = "failed"
	StatusRead      = "read"
)

// Record is one recipient's delivery state for one notification.
type Record struct {
	ID             uuid.UUID  `json:"id"`
	UserID         uuid.UUID  `json:"userId"`
	NotificationID uuid.UUID  `json:"notificationId"`
	Status         string     `json:"status"`
	DeliveredAt    *time.Time `json:"deliveredAt,omitempty"`
	ReadAt         *time.Time `json:"readAt,omitempty"`
}

// UserNotification is a delivery record joined with its notification content
// for the recipient-facing list.
type UserNotification struct {
	Record
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Priority  string    `json:"priority"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"createdAt"`
}

// Repo implements the ledger with PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new delivery ledger repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// FanOut inserts one pending record per target. ON CONFLICT DO NOTHING on
// the (user_id, notification_id) unique index makes overlapping re-runs
// create nothing extra. Returns the number of records actually created.
func (r *Repo) FanOut(ctx context.Context, notificationID uuid.UUID, targets []uuid.UUID) (int, error) {
	if len(targets) == 0 {
		return 0, nil
	}

	tag, err := r.pool.Exec(ctx, `
		INSERT INTO user_notifications (user_id, notification_id, status)
		SELECT unnest($1::uuid[]), $2, 'pending'
		ON CONFLICT (user_id, notification_id) DO NOTHING`, targets, notificationID)
	if err != nil {
		return 0, fmt.Errorf("fan out delivery records: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// CountTargets derives totalTargets from the ledger itself, so re-running a
// fan-out never double-counts.
func (r *Repo) CountTargets(ctx context.Context, notificationID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM user_notifications WHERE notification_id = $1`, notificationID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count delivery records: %w", err)
	}
	return count, nil
}

// MarkDelivered advances pending|failed→delivered. Returns whether the
// record actually transitioned; the caller bumps the aggregate counter only
// then. A failed record recovers here when the recipient acks in-app.
func (r *Repo) MarkDelivered(ctx context.Context, userID, notificationID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE user_notifications
		SET status = 'delivered', delivered_at = now()
		WHERE user_id = $1 AND notification_id = $2 AND status IN ('pending', 'failed')`,
		userID, notificationID)
	if err != nil {
		return false, fmt.Errorf("mark delivered: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkRead advances pending|delivered|failed→read under the same guard.
func (r *Repo) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE user_notifications
		SET status = 'read', read_at = now(),
		    delivered_at = COALESCE(delivered_at, now())
		WHERE user_id = $1 AND notification_id = $2 AND status IN ('pending', 'delivered', 'failed')`,
		userID, notificationID)
	if err != nil {
		return false, fmt.Errorf("mark read: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkFailed records a channel failure for one recipient. Only pending
// records move; a record the recipient already acked stays as it is.
func (r *Repo) MarkFailed(ctx context.Context, userID, notificationID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE user_notifications
		SET status = 'failed'
		WHERE user_id = $1 AND notification_id = $2 AND status = 'pending'`,
		userID, notificationID)
	if err != nil {
		return false, fmt.Errorf("mark delivery failed: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListForUser returns the user's delivery records joined with notification
// content, newest first, with the total count.
func (r *Repo) ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]UserNotification, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM user_notifications WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count user notifications: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT un.id, un.user_id, un.notification_id, un.status, un.delivered_at, un.read_at,
		       n.title, n.message, n.priority, n.category, n.created_at
		FROM user_notifications un
		JOIN notifications n ON n.id = un.notification_id
		WHERE un.user_id = $1
		ORDER BY n.created_at DESC
		LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list user notifications: %w", err)
	}
	defer rows.Close()

	items := make([]UserNotification, 0, limit)
	for rows.Next() {
		var un UserNotification
		if err := rows.Scan(&un.ID, &un.UserID, &un.NotificationID, &un.Status,
			&un.DeliveredAt, &un.ReadAt, &un.Title, &un.Message, &un.Priority,
			&un.Category, &un.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan user notification: %w", err)
		}
		items = append(items, un)
	}
	if rows.Err() != nil {
		return nil, 0, fmt.Errorf("iterate user notifications: %w", rows.Err())
	}
	return items, total, nil
}
