// Package leads provides the lead moderation pipeline: submission into the
// pending queue, country-scoped moderation, approval snapshots, and the
// approved-lead feed.
package leads

import (
	"tradelink_backend/internal/events"
	apphttp "tradelink_backend/internal/http"
	"tradelink_backend/internal/leads/handler"
	"tradelink_backend/internal/leads/repository"
	"tradelink_backend/internal/leads/service"
	"tradelink_backend/platform/logger"
	"tradelink_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Module struct {
	handler *handler.HTTPHandler
	service *service.Service
}

// NewModule creates and initializes the leads module. The group directory is
// provided by the groups module.
func NewModule(pool *pgxpool.Pool, groups service.GroupDirectory, eventBus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, groups, eventBus, log)

	return &Module{
		handler: handler.NewHTTPHandler(svc, val),
		service: svc,
	}
}

func (m *Module) Name() string {
	return "leads"
}

// Service returns the leads service for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts lead routes: submission and the feed for members,
// the moderation queue for admins and superadmins.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterPublicRoutes(ctx.Protected)
	m.handler.RegisterModerationRoutes(ctx.Moderation.Group("/leads"))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
