// Package groups provides group membership, the per-user read watermark, and
// the derived unread badge.
package groups

import (
	"tradelink_backend/internal/events"
	"tradelink_backend/internal/groups/handler"
	"tradelink_backend/internal/groups/repository"
	"tradelink_backend/internal/groups/service"
	apphttp "tradelink_backend/internal/http"
	"tradelink_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Module struct {
	handler *handler.HTTPHandler
	service *service.Service
	repo    *repository.Repo
}

// NewModule creates and initializes the groups module.
func NewModule(pool *pgxpool.Pool, eventBus events.Bus, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, eventBus, log)

	return &Module{
		handler: handler.NewHTTPHandler(svc),
		service: svc,
		repo:    repo,
	}
}

func (m *Module) Name() string {
	return "groups"
}

// Service returns the groups service for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// Repository returns the groups repository. The fan-out resolver uses it to
// expand group targets to member IDs.
func (m *Module) Repository() *repository.Repo {
	return m.repo
}

// RegisterRoutes mounts group routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	groupsGroup := ctx.Protected.Group("/groups")
	m.handler.RegisterRoutes(groupsGroup)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
