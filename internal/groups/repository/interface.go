package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines persistence operations for groups, membership, and
// per-user read watermarks.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (Group, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]Group, error)

	// Join adds the user to the group. Returns false if the user was
	// already a member (the call is then a no-op).
	Join(ctx context.Context, groupID, userID uuid.UUID) (bool, error)
	// Leave removes the user from the group. Returns false if the user was
	// not a member.
	Leave(ctx context.Context, groupID, userID uuid.UUID) (bool, error)
	IsMember(ctx context.Context, groupID, userID uuid.UUID) (bool, error)
	// MemberIDs returns the distinct user IDs across the given groups.
	MemberIDs(ctx context.Context, groupIDs []uuid.UUID) ([]uuid.UUID, error)

	// MarkRead advances the (user, group) watermark to now. The watermark
	// never moves backward.
	MarkRead(ctx context.Context, userID, groupID uuid.UUID) (time.Time, error)
	// Watermark returns the user's last-read time for the group, or nil if
	// the user has never read it.
	Watermark(ctx context.Context, userID, groupID uuid.UUID) (*time.Time, error)
	// UnreadCounts counts approved leads in the group newer than since
	// (all of them when since is nil), authored by someone else, split by
	// lead type.
	UnreadCounts(ctx context.Context, userID, groupID uuid.UUID, since *time.Time) (UnreadCounts, error)
}
