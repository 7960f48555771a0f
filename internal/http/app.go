// Package http defines the module contract and the dependency container the
// composition root hands to the router.
package http

import (
	"context"

	"tradelink_backend/internal/events"
	"tradelink_backend/platform/config"
	"tradelink_backend/platform/logger"
)

// RouterConfig is the slice of application config the router needs.
type RouterConfig interface {
	config.HTTPConfig
	config.JWTConfig
}

// HealthChecker is the dependency probed by the health endpoint,
// typically the database pool.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// App bundles the initialized dependencies the router builds routes from.
// main.go constructs it after all modules are wired.
type App struct {
	Config RouterConfig
	Logger *logger.Logger
	Health HealthChecker
	// EventBus is exposed so the router can surface it to modules that
	// subscribe during registration.
	EventBus events.Bus
	// Modules is every HTTP-facing domain module, in registration order.
	Modules []Module
}
