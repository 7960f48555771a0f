// Package repository provides read access to the user directory. The fan-out
// resolver uses it for country and all-user targeting, and the realtime layer
// uses it to resolve presence snapshots.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tradelink_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// User is a directory entry.
type User struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Role        string    `json:"role"`
	CountryCode string    `json:"countryCode"`
	CreatedAt   time.Time `json:"createdAt"`
}

// PresenceMember is the resolved identity of a connected room member.
type PresenceMember struct {
	UserID uuid.UUID `json:"userId"`
	Name   string    `json:"name"`
	Role   string    `json:"role"`
}

// Repo implements directory lookups over PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new user directory repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// GetByID retrieves a single user.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (User, error) {
	var u User
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, email, role, country_code, created_at
		FROM users
		WHERE id = $1`, id).Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.CountryCode, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, apperr.NotFound("user not found")
		}
		return User{}, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

// IDsByCountry returns the IDs of all users registered in the given country.
func (r *Repo) IDsByCountry(ctx context.Context, countryCode string) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM users WHERE country_code = $1`, strings.ToUpper(countryCode))
	if err != nil {
		return nil, fmt.Errorf("list users by country: %w", err)
	}
	defer rows.Close()

	return scanIDs(rows)
}

// AllIDs returns every user ID. Used only by the explicit all-users
// notification target.
func (r *Repo) AllIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM users`)
	if err != nil {
		return nil, fmt.Errorf("list all users: %w", err)
	}
	defer rows.Close()

	return scanIDs(rows)
}

// GetPresenceInfo bulk-resolves user IDs to presence triples. Unknown IDs
// are silently omitted; a stale connection must not break the snapshot.
func (r *Repo) GetPresenceInfo(ctx context.Context, ids []uuid.UUID) ([]PresenceMember, error) {
	if len(ids) == 0 {
		return []PresenceMember{}, nil
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, name, role FROM users WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve presence info: %w", err)
	}
	defer rows.Close()

	members := make([]PresenceMember, 0, len(ids))
	for rows.Next() {
		var m PresenceMember
		if err := rows.Scan(&m.UserID, &m.Name, &m.Role); err != nil {
			return nil, fmt.Errorf("scan presence info: %w", err)
		}
		members = append(members, m)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate presence info: %w", rows.Err())
	}

	return members, nil
}

// EmailRecipient pairs a user ID with their address so the email channel can
// attribute a failed send back to the recipient's delivery record.
type EmailRecipient struct {
	UserID uuid.UUID
	Email  string
}

// EmailRecipients bulk-resolves user IDs to addresses. Unknown IDs are
// omitted.
func (r *Repo) EmailRecipients(ctx context.Context, ids []uuid.UUID) ([]EmailRecipient, error) {
	if len(ids) == 0 {
		return []EmailRecipient{}, nil
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, email FROM users WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve user emails: %w", err)
	}
	defer rows.Close()

	recipients := make([]EmailRecipient, 0, len(ids))
	for rows.Next() {
		var rec EmailRecipient
		if err := rows.Scan(&rec.UserID, &rec.Email); err != nil {
			return nil, fmt.Errorf("scan user email: %w", err)
		}
		recipients = append(recipients, rec)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate user emails: %w", rows.Err())
	}
	return recipients, nil
}

func scanIDs(rows pgx.Rows) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate user ids: %w", rows.Err())
	}
	return ids, nil
}
