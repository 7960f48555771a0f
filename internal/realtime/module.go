package realtime

import (
	"context"

	"tradelink_backend/internal/events"
	apphttp "tradelink_backend/internal/http"
	"tradelink_backend/platform/logger"
)

type Module struct {
	hub     *Hub
	service *Service
}

// NewModule creates the realtime module and subscribes it to the domain
// events that drive broadcasts.
func NewModule(groups GroupLister, users PresenceDirectory, eventBus events.Bus, log *logger.Logger) *Module {
	hub := NewHub(log)
	svc := NewService(hub, groups, users, log)

	eventBus.Subscribe(events.LeadApproved{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		e, ok := event.(events.LeadApproved)
		if !ok {
			return nil
		}
		svc.PublishApprovedLead(e.Scope, e.GroupID, e)
		return nil
	}))

	eventBus.Subscribe(events.GroupMembershipChanged{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		e, ok := event.(events.GroupMembershipChanged)
		if !ok {
			return nil
		}
		svc.OnMembershipChange(ctx, e.UserID, e.GroupID, e.Scope, e.Joined)
		return nil
	}))

	return &Module{hub: hub, service: svc}
}

func (m *Module) Name() string {
	return "realtime"
}

// Service returns the realtime service for external use.
func (m *Module) Service() *Service {
	return m.service
}

// Close drops all live connections.
func (m *Module) Close() {
	m.hub.Close()
}

// RegisterRoutes mounts the SSE stream.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.GET("/events", SSEHandler(m.service))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
