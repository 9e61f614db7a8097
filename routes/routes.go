package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/upb/auth-service/app"
	"github.com/upb/auth-service/handlers"
	"github.com/upb/auth-service/internal/observability"
	"github.com/upb/auth-service/middleware"
	"github.com/upb/auth-service/models"
	"github.com/upb/auth-service/utils"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	cfg := deps.Config
	r := chi.NewRouter()

	// Core middleware
	r.Use(chimw.RequestID)
	r.Use(middleware.RequestContext(cfg.RateLimit.TrustProxyHeaders))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(requestTimeout(cfg.Server.RequestTimeout)))
	r.Use(deps.Metrics.Middleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader, "Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if deps.RateLimitMiddleware != nil {
		r.Use(deps.RateLimitMiddleware.Handler)
	}

	// Health and discovery endpoints
	r.Get("/healthz", deps.HealthHandler.HandleHealth)
	r.Get("/readyz", deps.HealthHandler.HandleReadiness)
	if cfg.Observability.MetricsEnabled {
		r.Handle("/metrics", deps.Metrics.Handler())
	}
	r.Get("/.well-known/jwks.json", handlers.JWKSHandler(deps.Signer, deps.Logger))

	auth := deps.AuthMiddleware

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", deps.AuthHandler.HandleLogin)
			r.Post("/signup", deps.AccountHandler.HandleSignup)
			r.Post("/refresh", deps.AuthHandler.HandleRefresh)
			r.Post("/logout", deps.AuthHandler.HandleLogout)
			r.With(auth.RequireAuth).Post("/logout-all", deps.AuthHandler.HandleLogoutAll)
			r.With(auth.RequireAuth).Patch("/update", deps.AccountHandler.HandleUpdate)
			r.With(auth.ResolvePrincipal).Get("/me", deps.AuthHandler.HandleMe)
		})

		r.Route("/oauth", func(r chi.Router) {
			r.Get("/providers", deps.OAuthHandler.HandleProviders)
			r.Get("/{provider}/login", deps.OAuthHandler.HandleLogin)
			r.Get("/{provider}/callback", deps.OAuthHandler.HandleCallback)
			r.With(auth.RequireAuth).Delete("/{provider}", deps.OAuthHandler.HandleUnlink)
		})

		r.Route("/users", func(r chi.Router) {
			r.With(auth.RequireAuth).Get("/me/history", deps.AccountHandler.HandleHistory)

			// Administration (require admin role)
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireRoles(models.RoleAdmin))
				r.Delete("/{id}", deps.AdminHandler.HandleDeleteUser)
				r.Get("/{id}/sessions", deps.AdminHandler.HandleListSessions)
				r.Delete("/{id}/sessions", deps.AdminHandler.HandleRevokeSessions)
				r.Put("/{id}/roles/{role}", deps.AdminHandler.HandleAssignRole)
				r.Delete("/{id}/roles/{role}", deps.AdminHandler.HandleUnassignRole)
			})
		})

		r.Route("/roles", func(r chi.Router) {
			r.Use(auth.RequireRoles(models.RoleAdmin))
			r.Get("/", deps.AdminHandler.HandleListRoles)
			r.Post("/", deps.AdminHandler.HandleCreateRole)
			r.Delete("/{id}", deps.AdminHandler.HandleDeleteRole)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "Endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "", nil)
	})

	return observability.HTTPHandler(r, "auth-service")
}

func requestTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return 30 * time.Second
	}
	return d
}
