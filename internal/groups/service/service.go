// Package service implements group membership and read-watermark logic.
package service

import (
	"context"
	"time"

	"tradelink_backend/internal/events"
	"tradelink_backend/internal/groups/repository"
	"tradelink_backend/platform/logger"

	"github.com/google/uuid"
)

// GroupWithUnread is a group list entry with its lazily derived unread badge.
type GroupWithUnread struct {
	repository.Group
	Unread     repository.UnreadCounts `json:"unread"`
	LastReadAt *time.Time              `json:"lastReadAt,omitempty"`
}

// Service owns group membership and the per-user read watermarks.
type Service struct {
	repo repository.Repository
	bus  events.Bus
	log  *logger.Logger
}

// New creates a new groups service.
func New(repo repository.Repository, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, bus: bus, log: log}
}

// Join adds the user to the group and announces the membership change so the
// realtime layer can move live connections into the room and rebroadcast
// presence. Joining a group the user already belongs to is a no-op.
func (s *Service) Join(ctx context.Context, userID, groupID uuid.UUID) (repository.Group, error) {
	group, err := s.repo.GetByID(ctx, groupID)
	if err != nil {
		return repository.Group{}, err
	}

	joined, err := s.repo.Join(ctx, groupID, userID)
	if err != nil {
		return repository.Group{}, err
	}
	if joined && s.bus != nil {
		s.bus.Publish(ctx, events.GroupMembershipChanged{
			BaseEvent: events.NewBaseEvent(),
			UserID:    userID,
			GroupID:   groupID,
			Scope:     group.Scope,
			Joined:    true,
		})
	}

	return group, nil
}

// Leave removes the user from the group and announces the membership change.
func (s *Service) Leave(ctx context.Context, userID, groupID uuid.UUID) error {
	group, err := s.repo.GetByID(ctx, groupID)
	if err != nil {
		return err
	}

	left, err := s.repo.Leave(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if left && s.bus != nil {
		s.bus.Publish(ctx, events.GroupMembershipChanged{
			BaseEvent: events.NewBaseEvent(),
			UserID:    userID,
			GroupID:   groupID,
			Scope:     group.Scope,
			Joined:    false,
		})
	}

	return nil
}

// List returns the user's groups with unread counts computed against each
// group's read watermark. Counts are recomputed on every fetch rather than
// maintained incrementally.
func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]GroupWithUnread, error) {
	groups, err := s.repo.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := make([]GroupWithUnread, 0, len(groups))
	for _, group := range groups {
		watermark, err := s.repo.Watermark(ctx, userID, group.ID)
		if err != nil {
			return nil, err
		}
		unread, err := s.repo.UnreadCounts(ctx, userID, group.ID, watermark)
		if err != nil {
			return nil, err
		}
		result = append(result, GroupWithUnread{
			Group:      group,
			Unread:     unread,
			LastReadAt: watermark,
		})
	}

	return result, nil
}

// MarkRead advances the user's watermark for the group to now.
func (s *Service) MarkRead(ctx context.Context, userID, groupID uuid.UUID) (time.Time, error) {
	if _, err := s.repo.GetByID(ctx, groupID); err != nil {
		return time.Time{}, err
	}
	return s.repo.MarkRead(ctx, userID, groupID)
}
