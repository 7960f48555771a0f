// Package service implements the lead moderation state machine: submit into
// the pending queue, country-scoped moderation, approval snapshots, and the
// moderator fast-path post.
package service

import (
	"context"

	"tradelink_backend/internal/events"
	grouprepo "tradelink_backend/internal/groups/repository"
	"tradelink_backend/internal/leads/repository"
	"tradelink_backend/platform/apperr"
	"tradelink_backend/platform/logger"

	"github.com/google/uuid"
)

// Decision actions.
const (
	ActionApprove = "approve"
	ActionReject  = "reject"
)

// GroupDirectory is the slice of the groups module the lead lifecycle needs.
type GroupDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (grouprepo.Group, error)
	IsMember(ctx context.Context, groupID, userID uuid.UUID) (bool, error)
}

// Moderator identifies the deciding actor. CountryCode is nil for
// superadmins, who moderate unscoped.
type Moderator struct {
	ID          uuid.UUID
	CountryCode *string
}

// Service owns the pending→approved|rejected state machine.
type Service struct {
	repo   repository.Repository
	groups GroupDirectory
	bus    events.Bus
	log    *logger.Logger
}

// New creates a new leads service.
func New(repo repository.Repository, groups GroupDirectory, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, groups: groups, bus: bus, log: log}
}

// Submit creates a pending lead in the group's moderation queue. The lead
// inherits the group's scope; its country is the group's country for local
// groups and the author's country for global ones, so moderation scoping
// never has to re-derive it.
func (s *Service) Submit(ctx context.Context, authorID uuid.UUID, authorCountry string, groupID uuid.UUID, payload repository.Payload) (repository.Lead, error) {
	group, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return repository.Lead{}, err
	}

	member, err := s.groups.IsMember(ctx, groupID, authorID)
	if err != nil {
		return repository.Lead{}, err
	}
	if !member {
		return repository.Lead{}, apperr.Forbidden("must be a group member to post")
	}

	countryCode := authorCountry
	if group.Scope == grouprepo.ScopeLocal && group.CountryCode != nil {
		countryCode = *group.CountryCode
	}
	if countryCode == "" {
		return repository.Lead{}, apperr.Validation("lead country could not be determined")
	}

	lead, err := s.repo.Create(ctx, repository.CreateParams{
		GroupID:     groupID,
		AuthorID:    authorID,
		Scope:       group.Scope,
		CountryCode: countryCode,
		Payload:     payload,
	})
	if err != nil {
		return repository.Lead{}, err
	}

	s.bus.Publish(ctx, events.LeadSubmitted{
		BaseEvent:   events.NewBaseEvent(),
		LeadID:      lead.ID,
		GroupID:     lead.GroupID,
		AuthorID:    lead.AuthorID,
		Scope:       lead.Scope,
		CountryCode: lead.CountryCode,
	})

	return lead, nil
}

// ListPending returns the moderation queue visible to the moderator.
func (s *Service) ListPending(ctx context.Context, moderator Moderator) ([]repository.Lead, error) {
	return s.repo.ListPending(ctx, moderator.CountryCode)
}

// Decide approves or rejects a pending lead. A country-scoped moderator may
// only decide leads in their own country. The losing side of a decision race
// gets a conflict; the winner's approval also yields the published snapshot
// and a post-commit LeadApproved event.
func (s *Service) Decide(ctx context.Context, moderator Moderator, leadID uuid.UUID, action, comment string) (repository.Lead, error) {
	lead, err := s.repo.GetByID(ctx, leadID)
	if err != nil {
		return repository.Lead{}, err
	}
	if moderator.CountryCode != nil && lead.CountryCode != *moderator.CountryCode {
		return repository.Lead{}, apperr.Forbidden("lead is outside your country scope")
	}
	if lead.Status != repository.StatusPending {
		return repository.Lead{}, apperr.Conflict("lead already decided")
	}

	switch action {
	case ActionApprove:
		decided, approved, err := s.repo.Approve(ctx, leadID, moderator.ID, comment)
		if err != nil {
			return repository.Lead{}, err
		}
		s.publishApproved(ctx, approved)
		return decided, nil

	case ActionReject:
		decided, err := s.repo.Reject(ctx, leadID, moderator.ID, comment)
		if err != nil {
			return repository.Lead{}, err
		}
		s.bus.Publish(ctx, events.LeadRejected{
			BaseEvent:   events.NewBaseEvent(),
			LeadID:      decided.ID,
			GroupID:     decided.GroupID,
			AuthorID:    decided.AuthorID,
			ModeratorID: moderator.ID,
			Comment:     comment,
		})
		return decided, nil

	default:
		return repository.Lead{}, apperr.Validation("action must be approve or reject")
	}
}

// PostDirect publishes a moderator-authored lead immediately, bypassing the
// moderation queue.
func (s *Service) PostDirect(ctx context.Context, moderator Moderator, moderatorCountry string, groupID uuid.UUID, payload repository.Payload) (repository.ApprovedLead, error) {
	group, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return repository.ApprovedLead{}, err
	}

	countryCode := moderatorCountry
	if group.Scope == grouprepo.ScopeLocal && group.CountryCode != nil {
		countryCode = *group.CountryCode
	}

	approved, err := s.repo.CreateModeratorPost(ctx, repository.DirectPostParams{
		GroupID:     groupID,
		AuthorID:    moderator.ID,
		Scope:       group.Scope,
		CountryCode: countryCode,
		Payload:     payload,
	})
	if err != nil {
		return repository.ApprovedLead{}, err
	}

	s.publishApproved(ctx, approved)
	return approved, nil
}

// Feed returns a page of the group's approved leads. Only members may read
// the feed.
func (s *Service) Feed(ctx context.Context, userID, groupID uuid.UUID, page, limit int) ([]repository.ApprovedLead, int, error) {
	member, err := s.groups.IsMember(ctx, groupID, userID)
	if err != nil {
		return nil, 0, err
	}
	if !member {
		return nil, 0, apperr.Forbidden("must be a group member to read the feed")
	}

	return s.repo.ListApprovedByGroup(ctx, groupID, limit, (page-1)*limit)
}

// publishApproved announces the durably persisted snapshot. The broadcast is
// a best-effort post-commit hook; a subscriber that misses it catches up on
// its next feed fetch.
func (s *Service) publishApproved(ctx context.Context, approved repository.ApprovedLead) {
	var leadID uuid.UUID
	if approved.LeadID != nil {
		leadID = *approved.LeadID
	}
	s.bus.Publish(ctx, events.LeadApproved{
		BaseEvent:       events.NewBaseEvent(),
		ApprovedLeadID:  approved.ID,
		LeadID:          leadID,
		GroupID:         approved.GroupID,
		AuthorID:        approved.AuthorID,
		Scope:           approved.Scope,
		LeadType:        approved.Payload.LeadType,
		Title:           approved.Payload.Title,
		Description:     approved.Payload.Description,
		Quantity:        approved.Payload.Quantity,
		Unit:            approved.Payload.Unit,
		PriceInfo:       approved.Payload.PriceInfo,
		IsModeratorPost: approved.IsModeratorPost,
		CreatedAt:       approved.CreatedAt,
	})
}
