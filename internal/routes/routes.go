package routes

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/dklatt/gatehouse/internal/handlers"
	"github.com/dklatt/gatehouse/internal/middleware"
	"github.com/dklatt/gatehouse/internal/session"
)

// RegisterRoutes registers all application routes. Every route runs behind
// the session loader, so handlers can rely on a session being present; the
// guarded group additionally requires a valid login.
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	sessionManager *session.Manager,
	cookieConfig session.CookieConfig,
	logger *slog.Logger,
) {
	rateLimitConfig := middleware.DefaultAuthRateLimit()

	// Public routes, flood-guarded per IP
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/auth/login", authHandler.Login)
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/auth/register", authHandler.Register)

	// Protected routes, valid login session required
	router.Group(func(r chi.Router) {
		r.Use(session.RequireLogin(sessionManager, cookieConfig, logger))
		r.Use(middleware.CSRFProtection(logger))

		r.Post("/auth/logout", authHandler.Logout)
		r.Get("/auth/me", authHandler.Me)
	})
}
