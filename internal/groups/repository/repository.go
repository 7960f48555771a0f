// Package repository implements group, membership, and read-watermark
// persistence over PostgreSQL.
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

const groupNotFoundMessage = "group not found"

// Scope values for groups and leads.
const (
	ScopeLocal  = "local"
	ScopeGlobal = "global"
)

// Group is a topical channel users join to post and read leads.
type Group struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Scope       string    `json:"scope"`
	CountryCode *string   `json:"countryCode,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// UnreadCounts is the per-group unread badge, split by lead type.
type UnreadCounts struct {
	BuyCount  int `json:"buyCount"`
	SellCount int `json:"sellCount"`
}

// Repo implements the Repository interface with PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new groups repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Compile-time check that Repo implements Repository.
var _ Repository = (*Repo)(nil)

// GetByID retrieves a group by its ID.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (Group, error) {
	var g Group
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, scope, country_code, created_at
		FROM groups
		WHERE id = $1`, id).Scan(&g.ID, &g.Name, &g.Scope, &g.CountryCode, &g.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Group{}, apperr.NotFound(groupNotFoundMessage)
		}
		return Group{}, fmt.Errorf("get group by id: %w", err)
	}
	return g, nil
}

// ListForUser retrieves all groups the user is a member of, local before
// global, newest membership first within a scope.
func (r *Repo) ListForUser(ctx context.Context, userID uuid.UUID) ([]Group, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT g.id, g.name, g.scope, g.country_code, g.created_at
		FROM groups g
		JOIN group_members m ON m.group_id = g.id
		WHERE m.user_id = $1
		ORDER BY g.scope, m.joined_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list groups for user: %w", err)
	}
	defer rows.Close()

	groups := make([]Group, 0)
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.ID, &g.Name, &g.Scope, &g.CountryCode, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		groups = append(groups, g)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate groups: %w", rows.Err())
	}
	return groups, nil
}

// Join adds the user to the group membership relation.
func (r *Repo) Join(ctx context.Context, groupID, userID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO group_members (group_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (group_id, user_id) DO NOTHING`, groupID, userID)
	if err != nil {
		return false, fmt.Errorf("join group: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Leave removes the user from the group membership relation.
func (r *Repo) Leave(ctx context.Context, groupID, userID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM group_members
		WHERE group_id = $1 AND user_id = $2`, groupID, userID)
	if err != nil {
		return false, fmt.Errorf("leave group: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// IsMember reports whether the user belongs to the group.
func (r *Repo) IsMember(ctx context.Context, groupID, userID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM group_members WHERE group_id = $1 AND user_id = $2
		)`, groupID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check group membership: %w", err)
	}
	return exists, nil
}

// MemberIDs returns the distinct user IDs subscribed to any of the groups.
func (r *Repo) MemberIDs(ctx context.Context, groupIDs []uuid.UUID) ([]uuid.UUID, error) {
	if len(groupIDs) == 0 {
		return []uuid.UUID{}, nil
	}

	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT user_id FROM group_members WHERE group_id = ANY($1)`, groupIDs)
	if err != nil {
		return nil, fmt.Errorf("list group members: %w", err)
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan member id: %w", err)
		}
		ids = append(ids, id)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate member ids: %w", rows.Err())
	}
	return ids, nil
}

// MarkRead upserts the (user, group) watermark to the database clock.
// GREATEST keeps the watermark monotonic even under clock skew between
// concurrent writers.
func (r *Repo) MarkRead(ctx context.Context, userID, groupID uuid.UUID) (time.Time, error) {
	var lastReadAt time.Time
	err := r.pool.QueryRow(ctx, `
		INSERT INTO group_read_states (user_id, group_id, last_read_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id, group_id)
		DO UPDATE SET last_read_at = GREATEST(group_read_states.last_read_at, EXCLUDED.last_read_at)
		RETURNING last_read_at`, userID, groupID).Scan(&lastReadAt)
	if err != nil {
		return time.Time{}, fmt.Errorf("mark group read: %w", err)
	}
	return lastReadAt, nil
}

// Watermark returns the user's last-read time for the group.
func (r *Repo) Watermark(ctx context.Context, userID, groupID uuid.UUID) (*time.Time, error) {
	var lastReadAt time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT last_read_at FROM group_read_states
		WHERE user_id = $1 AND group_id = $2`, userID, groupID).Scan(&lastReadAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get read watermark: %w", err)
	}
	return &lastReadAt, nil
}

// UnreadCounts derives the unread badge lazily from the approved-lead feed.
// No running counter is maintained.
func (r *Repo) UnreadCounts(ctx context.Context, userID, groupID uuid.UUID, since *time.Time) (UnreadCounts, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT lead_type, COUNT(*)
		FROM approved_leads
		WHERE group_id = $1
		  AND author_id <> $2
		  AND ($3::timestamptz IS NULL OR created_at > $3)
		GROUP BY lead_type`, groupID, userID, since)
	if err != nil {
		return UnreadCounts{}, fmt.Errorf("count unread leads: %w", err)
	}
	defer rows.Close()

	var counts UnreadCounts
	for rows.Next() {
		var leadType string
		var count int
		if err := rows.Scan(&leadType, &count); err != nil {
			return UnreadCounts{}, fmt.Errorf("scan unread counts: %w", err)
		}
		switch leadType {
		case "buy":
			counts.BuyCount = count
		case "sell":
			counts.SellCount = count
		}
	}
	if rows.Err() != nil {
		return UnreadCounts{}, fmt.Errorf("iterate unread counts: %w", rows.Err())
	}
	return counts, nil
}
