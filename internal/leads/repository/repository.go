// Package repository implements lead persistence over PostgreSQL. Requested
// leads and their approved snapshots live in separate tables; the snapshot is
// copied at approval time, never referenced.
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

// Lead statuses. A lead leaves pending exactly once.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Lead types.
const (
	LeadTypeBuy  = "buy"
	LeadTypeSell = "sell"
)

// Payload is the trade content of a lead. It is copied verbatim into the
// approved snapshot on approval.
type Payload struct {
	LeadType    string  `json:"leadType"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	Unit        string  `json:"unit"`
	PriceInfo   string  `json:"priceInfo"`
}

// Lead is a requested lead in the moderation queue.
type Lead struct {
	ID               uuid.UUID  `json:"id"`
	GroupID          uuid.UUID  `json:"groupId"`
	AuthorID         uuid.UUID  `json:"authorId"`
	Scope            string     `json:"scope"`
	CountryCode      string     `json:"countryCode"`
	Payload          Payload    `json:"payload"`
	Status           string     `json:"status"`
	ModeratorID      *uuid.UUID `json:"moderatorId,omitempty"`
	ModeratorComment *string    `json:"moderatorComment,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	DecidedAt        *time.Time `json:"decidedAt,omitempty"`
}

// ApprovedLead is the published snapshot of an approved lead. LeadID is nil
// for moderator fast-path posts that never passed through the queue.
type ApprovedLead struct {
	ID              uuid.UUID  `json:"id"`
	LeadID          *uuid.UUID `json:"leadId,omitempty"`
	GroupID         uuid.UUID  `json:"groupId"`
	AuthorID        uuid.UUID  `json:"authorId"`
	Scope           string     `json:"scope"`
	CountryCode     string     `json:"countryCode"`
	Payload         Payload    `json:"payload"`
	IsModeratorPost bool       `json:"isModeratorPost"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// CreateParams carries a new lead submission.
type CreateParams struct {
	GroupID     uuid.UUID
	AuthorID    uuid.UUID
	Scope       string
	CountryCode string
	Payload     Payload
}

// DirectPostParams carries a moderator fast-path post.
type DirectPostParams struct {
	GroupID     uuid.UUID
	AuthorID    uuid.UUID
	Scope       string
	CountryCode string
	Payload     Payload
}

const leadColumns = `id, group_id, author_id, scope, country_code, lead_type, title,
	description, quantity, unit, price_info, status, moderator_id,
	moderator_comment, created_at, decided_at`

const approvedColumns = `id, lead_id, group_id, author_id, scope, country_code, lead_type,
	title, description, quantity, unit, price_info, is_moderator_post, created_at`

// Repo implements the Repository interface with PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new leads repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

var _ Repository = (*Repo)(nil)

// Create inserts a pending lead.
func (r *Repo) Create(ctx context.Context, params CreateParams) (Lead, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO leads (group_id, author_id, scope, country_code, lead_type,
			title, description, quantity, unit, price_info, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 'pending')
		RETURNING `+leadColumns,
		params.GroupID, params.AuthorID, params.Scope, params.CountryCode,
		params.Payload.LeadType, params.Payload.Title, params.Payload.Description,
		params.Payload.Quantity, params.Payload.Unit, params.Payload.PriceInfo)

	lead, err := scanLead(row)
	if err != nil {
		return Lead{}, fmt.Errorf("create lead: %w", err)
	}
	return lead, nil
}

// GetByID retrieves a requested lead.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (Lead, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	lead, err := scanLead(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Lead{}, apperr.NotFound("lead not found")
		}
		return Lead{}, fmt.Errorf("get lead by id: %w", err)
	}
	return lead, nil
}

// ListPending returns pending leads, newest first, optionally filtered by
// country.
func (r *Repo) ListPending(ctx context.Context, countryCode *string) ([]Lead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE status = 'pending'
		  AND ($1::text IS NULL OR country_code = $1)
		ORDER BY created_at DESC`, countryCode)
	if err != nil {
		return nil, fmt.Errorf("list pending leads: %w", err)
	}
	defer rows.Close()

	leads := make([]Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending lead: %w", err)
		}
		leads = append(leads, lead)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate pending leads: %w", rows.Err())
	}
	return leads, nil
}

// Approve flips the lead to approved and inserts the snapshot in one
// transaction. The UPDATE is guarded on status='pending' so a concurrent
// second decision loses the race and gets a conflict, never an overwrite.
func (r *Repo) Approve(ctx context.Context, leadID, moderatorID uuid.UUID, comment string) (Lead, ApprovedLead, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Lead{}, ApprovedLead{}, fmt.Errorf("begin approve tx: %w", err)
	}
	defer tx.Rollback(ctx)

	lead, err := r.decideTx(ctx, tx, leadID, moderatorID, StatusApproved, comment)
	if err != nil {
		return Lead{}, ApprovedLead{}, err
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO approved_leads (lead_id, group_id, author_id, scope, country_code,
			lead_type, title, description, quantity, unit, price_info, is_moderator_post)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, false)
		RETURNING `+approvedColumns,
		lead.ID, lead.GroupID, lead.AuthorID, lead.Scope, lead.CountryCode,
		lead.Payload.LeadType, lead.Payload.Title, lead.Payload.Description,
		lead.Payload.Quantity, lead.Payload.Unit, lead.Payload.PriceInfo)

	approved, err := scanApproved(row)
	if err != nil {
		return Lead{}, ApprovedLead{}, fmt.Errorf("insert approved snapshot: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Lead{}, ApprovedLead{}, fmt.Errorf("commit approve tx: %w", err)
	}
	return lead, approved, nil
}

// Reject flips the lead to rejected under the same pending-only guard.
func (r *Repo) Reject(ctx context.Context, leadID, moderatorID uuid.UUID, comment string) (Lead, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Lead{}, fmt.Errorf("begin reject tx: %w", err)
	}
	defer tx.Rollback(ctx)

	lead, err := r.decideTx(ctx, tx, leadID, moderatorID, StatusRejected, comment)
	if err != nil {
		return Lead{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Lead{}, fmt.Errorf("commit reject tx: %w", err)
	}
	return lead, nil
}

func (r *Repo) decideTx(ctx context.Context, tx pgx.Tx, leadID, moderatorID uuid.UUID, status, comment string) (Lead, error) {
	var commentPtr *string
	if comment != "" {
		commentPtr = &comment
	}

	row := tx.QueryRow(ctx, `
		UPDATE leads
		SET status = $2, moderator_id = $3, moderator_comment = $4, decided_at = now()
		WHERE id = $1 AND status = 'pending'
		RETURNING `+leadColumns, leadID, status, moderatorID, commentPtr)

	lead, err := scanLead(row)
	if err == nil {
		return lead, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, fmt.Errorf("decide lead: %w", err)
	}

	// The guarded update matched nothing: either the lead is missing or it
	// was already decided.
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM leads WHERE id = $1)`, leadID).Scan(&exists); err != nil {
		return Lead{}, fmt.Errorf("check lead existence: %w", err)
	}
	if !exists {
		return Lead{}, apperr.NotFound("lead not found")
	}
	return Lead{}, apperr.Conflict("lead already decided")
}

// CreateModeratorPost inserts an approved lead directly with no queue entry.
func (r *Repo) CreateModeratorPost(ctx context.Context, params DirectPostParams) (ApprovedLead, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO approved_leads (lead_id, group_id, author_id, scope, country_code,
			lead_type, title, description, quantity, unit, price_info, is_moderator_post)
		VALUES (NULL, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, true)
		RETURNING `+approvedColumns,
		params.GroupID, params.AuthorID, params.Scope, params.CountryCode,
		params.Payload.LeadType, params.Payload.Title, params.Payload.Description,
		params.Payload.Quantity, params.Payload.Unit, params.Payload.PriceInfo)

	approved, err := scanApproved(row)
	if err != nil {
		return ApprovedLead{}, fmt.Errorf("create moderator post: %w", err)
	}
	return approved, nil
}

// ListApprovedByGroup returns the group feed page plus the total count.
func (r *Repo) ListApprovedByGroup(ctx context.Context, groupID uuid.UUID, limit, offset int) ([]ApprovedLead, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM approved_leads WHERE group_id = $1`, groupID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count approved leads: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+approvedColumns+`
		FROM approved_leads
		WHERE group_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, groupID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list approved leads: %w", err)
	}
	defer rows.Close()

	leads := make([]ApprovedLead, 0, limit)
	for rows.Next() {
		lead, err := scanApproved(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan approved lead: %w", err)
		}
		leads = append(leads, lead)
	}
	if rows.Err() != nil {
		return nil, 0, fmt.Errorf("iterate approved leads: %w", rows.Err())
	}
	return leads, total, nil
}

func scanLead(row pgx.Row) (Lead, error) {
	var l Lead
	err := row.Scan(&l.ID, &l.GroupID, &l.AuthorID, &l.Scope, &l.CountryCode,
		&l.Payload.LeadType, &l.Payload.Title, &l.Payload.Description,
		&l.Payload.Quantity, &l.Payload.Unit, &l.Payload.PriceInfo,
		&l.Status, &l.ModeratorID, &l.ModeratorComment, &l.CreatedAt, &l.DecidedAt)
	return l, err
}

func scanApproved(row pgx.Row) (ApprovedLead, error) {
	var a ApprovedLead
	err := row.Scan(&a.ID, &a.LeadID, &a.GroupID, &a.AuthorID, &a.Scope, &a.CountryCode,
		&a.Payload.LeadType, &a.Payload.Title, &a.Payload.Description,
		&a.Payload.Quantity, &a.Payload.Unit, &a.Payload.PriceInfo,
		&a.IsModeratorPost, &a.CreatedAt)
	return a, err
}
