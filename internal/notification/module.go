// Package notification wires the operator notification pipeline: targeting,
// the delivery ledger, recipient acknowledgements, realtime push, and the
// urgent email channel.
package notification

import (
	"context"

	"tradelink_backend/internal/events"
	grouprepo "tradelink_backend/internal/groups/repository"
	apphttp "tradelink_backend/internal/http"
	"tradelink_backend/internal/notification/delivery"
	"tradelink_backend/internal/notification/fanout"
	"tradelink_backend/internal/notification/handler"
	"tradelink_backend/internal/notification/repository"
	"tradelink_backend/internal/notification/service"
	userrepo "tradelink_backend/internal/users/repository"
	"tradelink_backend/platform/logger"
	"tradelink_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Module struct {
	handler *handler.HTTPHandler
	service *service.Service
	repo    *repository.Repo
}

// NewModule creates and initializes the notification module. The emailer is
// optional; without it urgent notifications only go out over the ledger and
// realtime channels.
func NewModule(pool *pgxpool.Pool, eventBus events.Bus, val *validator.Validator, emailer service.Emailer, log *logger.Logger) *Module {
	repo := repository.New(pool)
	ledger := delivery.New(pool)
	users := userrepo.New(pool)
	groups := grouprepo.New(pool)
	resolver := fanout.NewResolver(users, groups)
	svc := service.NewService(repo, ledger, resolver, users, emailer, log)

	// The scheduler worker announces due notifications; the fan-out pipeline
	// runs synchronously so the task fails visibly when delivery does.
	eventBus.Subscribe(events.NotificationDue{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		e, ok := event.(events.NotificationDue)
		if !ok {
			return nil
		}
		return svc.Deliver(ctx, e.NotificationID)
	}))

	return &Module{
		handler: handler.NewHTTPHandler(svc, val),
		service: svc,
		repo:    repo,
	}
}

func (m *Module) Name() string {
	return "notification"
}

// Service returns the notification service for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// Repository returns the notification store. The scheduler dispatcher uses
// it to claim due scheduled notifications.
func (m *Module) Repository() *repository.Repo {
	return m.repo
}

// SetBroadcaster attaches the realtime push channel once the realtime module
// exists.
func (m *Module) SetBroadcaster(b service.Broadcaster) {
	m.service.SetBroadcaster(b)
}

// RegisterRoutes mounts recipient routes for members and operator routes for
// superadmins.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterUserRoutes(ctx.Protected.Group("/notifications"))
	m.handler.RegisterAdminRoutes(ctx.Superadmin.Group("/notifications"))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
