// Package router contains routing and server setup for the HTTP delivery.
package router

import (
	"gateway/internal/delivery/api/middleware"
	"gateway/internal/delivery/api/router/handler"
	"gateway/internal/infra/metrics"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

type RouterParams struct {
	fx.In

	AuthHandler    *handler.AuthHandler
	AuthMiddleware *middleware.AuthMiddleware
	Metrics        *metrics.Metrics
}

// router holds all the handlers that need to be registered.
type router struct {
	authHandler    *handler.AuthHandler
	authMiddleware *middleware.AuthMiddleware
	metrics        *metrics.Metrics
}

// NewRouter is the constructor for the Router.
// Fx will inject the required handlers here.
func NewRouter(params RouterParams) *router {
	return &router{
		authHandler:    params.AuthHandler,
		authMiddleware: params.AuthMiddleware,
		metrics:        params.Metrics,
	}
}

// RegisterRoutes sets up all the API routes for the application.
func (r *router) RegisterRoutes(e *echo.Echo) {
	// Probes
	e.GET("/health", handler.HealthCheck)
	e.GET("/metrics", echo.WrapHandler(r.metrics.Handler()))

	gatewayGroup := e.Group("/gateway")
	{
		gatewayGroup.POST("/login", r.authHandler.Login)
		gatewayGroup.POST("/register", r.authHandler.Register)
		gatewayGroup.POST("/refresh", r.authHandler.Refresh)
		gatewayGroup.POST("/logout", r.authHandler.Logout)
	}

	// Routes that require a live access token
	gatewayGroup.GET("/me", r.authHandler.Me, r.authMiddleware.Authenticate)
}
