package repository

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines persistence operations for requested and approved leads.
type Repository interface {
	Create(ctx context.Context, params CreateParams) (Lead, error)
	GetByID(ctx context.Context, id uuid.UUID) (Lead, error)
	// ListPending returns pending leads, newest first. A non-nil countryCode
	// restricts the result to that country.
	ListPending(ctx context.Context, countryCode *string) ([]Lead, error)

	// Approve flips the lead to approved and copies its payload into an
	// approved-lead snapshot in one transaction. The status flip is keyed on
	// status='pending'; a lead already decided returns a conflict error and
	// leaves no new snapshot.
	Approve(ctx context.Context, leadID, moderatorID uuid.UUID, comment string) (Lead, ApprovedLead, error)
	// Reject flips the lead to rejected under the same pending-only guard.
	Reject(ctx context.Context, leadID, moderatorID uuid.UUID, comment string) (Lead, error)

	// CreateModeratorPost inserts an approved lead directly, bypassing the
	// moderation queue.
	CreateModeratorPost(ctx context.Context, params DirectPostParams) (ApprovedLead, error)
	// ListApprovedByGroup returns the group's approved-lead feed, newest
	// first, with the total count for pagination.
	ListApprovedByGroup(ctx context.Context, groupID uuid.UUID, limit, offset int) ([]ApprovedLead, int, error)
}
