// Package fanout computes the concrete recipient set of a notification from
// its targeting declaration. Resolution is a pure set computation run once,
// at send time; later membership changes do not retarget an already-sent
// notification.
package fanout

import (
	"context"

	"tradelink_backend/internal/notification/repository"
	"tradelink_backend/platform/apperr"

	"github.com/google/uuid"
)

// UserDirectory enumerates users for country and all-user targeting.
type UserDirectory interface {
	IDsByCountry(ctx context.Context, countryCode string) ([]uuid.UUID, error)
	AllIDs(ctx context.Context) ([]uuid.UUID, error)
}

// GroupMembers expands group targets to their current member sets.
type GroupMembers interface {
	MemberIDs(ctx context.Context, groupIDs []uuid.UUID) ([]uuid.UUID, error)
}

// Resolver expands a notification's target declaration into user IDs.
type Resolver struct {
	users  UserDirectory
	groups GroupMembers
}

// NewResolver creates a resolver over the given directories.
func NewResolver(users UserDirectory, groups GroupMembers) *Resolver {
	return &Resolver{users: users, groups: groups}
}

// ResolveTargets computes the deduplicated recipient set.
//
// A global notification with no target groups resolves to nobody and fails
// validation; notifying every user requires the explicit allUsers flag.
func (r *Resolver) ResolveTargets(ctx context.Context, n repository.Notification) ([]uuid.UUID, error) {
	switch n.Type {
	case repository.TypeLocal:
		if n.TargetCountry == nil || *n.TargetCountry == "" {
			return nil, apperr.Validation("local notification requires a target country")
		}
		ids, err := r.users.IDsByCountry(ctx, *n.TargetCountry)
		if err != nil {
			return nil, err
		}
		return dedupe(ids), nil

	case repository.TypeGlobal:
		if n.AllUsers {
			ids, err := r.users.AllIDs(ctx)
			if err != nil {
				return nil, err
			}
			return dedupe(ids), nil
		}
		if len(n.TargetGroups) == 0 {
			return nil, apperr.Validation("global notification requires target groups or the allUsers flag")
		}
		ids, err := r.groups.MemberIDs(ctx, n.TargetGroups)
		if err != nil {
			return nil, err
		}
		return dedupe(ids), nil

	case repository.TypeIndividual:
		if len(n.TargetUsers) == 0 {
			return nil, apperr.Validation("individual notification requires target users")
		}
		return dedupe(n.TargetUsers), nil

	default:
		return nil, apperr.Validation("unknown notification type")
	}
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
