// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"tradelink_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Lead Domain Events
// =============================================================================

// LeadSubmitted is published when a user submits a lead into the moderation
// queue.
type LeadSubmitted struct {
	BaseEvent
	LeadID      uuid.UUID `json:"leadId"`
	GroupID     uuid.UUID `json:"groupId"`
	AuthorID    uuid.UUID `json:"authorId"`
	Scope       string    `json:"scope"`
	CountryCode string    `json:"countryCode"`
}

func (e LeadSubmitted) EventName() string { return "leads.lead.submitted" }

// LeadApproved is published after a lead's approval has been durably
// persisted. The realtime layer consumes it as a best-effort post-commit
// hook; a failed broadcast is recovered by the client's next full fetch.
// The event carries the whole snapshot so subscribers can render the lead
// without a follow-up fetch.
type LeadApproved struct {
	BaseEvent
	ApprovedLeadID  uuid.UUID `json:"approvedLeadId"`
	LeadID          uuid.UUID `json:"leadId"`
	GroupID         uuid.UUID `json:"groupId"`
	AuthorID        uuid.UUID `json:"authorId"`
	Scope           string    `json:"scope"`
	LeadType        string    `json:"leadType"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Quantity        float64   `json:"quantity"`
	Unit            string    `json:"unit"`
	PriceInfo       string    `json:"priceInfo"`
	IsModeratorPost bool      `json:"isModeratorPost"`
	CreatedAt       time.Time `json:"createdAt"`
}

func (e LeadApproved) EventName() string { return "leads.lead.approved" }

// LeadRejected is published when a moderator rejects a pending lead.
type LeadRejected struct {
	BaseEvent
	LeadID      uuid.UUID `json:"leadId"`
	GroupID     uuid.UUID `json:"groupId"`
	AuthorID    uuid.UUID `json:"authorId"`
	ModeratorID uuid.UUID `json:"moderatorId"`
	Comment     string    `json:"comment,omitempty"`
}

func (e LeadRejected) EventName() string { return "leads.lead.rejected" }

// =============================================================================
// Group Domain Events
// =============================================================================

// GroupMembershipChanged is published when a user joins or leaves a group.
// The realtime layer updates room subscriptions and rebroadcasts the room's
// presence snapshot in response.
type GroupMembershipChanged struct {
	BaseEvent
	UserID  uuid.UUID `json:"userId"`
	GroupID uuid.UUID `json:"groupId"`
	Scope   string    `json:"scope"`
	Joined  bool      `json:"joined"`
}

func (e GroupMembershipChanged) EventName() string { return "groups.membership.changed" }

// =============================================================================
// Notification Domain Events
// =============================================================================

// NotificationDue is published by the scheduler worker when a scheduled
// notification's fan-out should run.
type NotificationDue struct {
	BaseEvent
	NotificationID uuid.UUID `json:"notificationId"`
}

func (e NotificationDue) EventName() string { return "notification.due" }
