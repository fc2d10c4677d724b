package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/isdelr/traderlibrary-be/internal/api/handlers"
	"github.com/isdelr/traderlibrary-be/internal/auth"
	"github.com/isdelr/traderlibrary-be/internal/config"
	"github.com/isdelr/traderlibrary-be/internal/models"
	"github.com/isdelr/traderlibrary-be/internal/services"
	"github.com/isdelr/traderlibrary-be/internal/websocket"
)

// Dependencies are the collaborators the HTTP layer is built from.
type Dependencies struct {
	Config        *config.Config
	Accounts      services.AccountServiceProvider
	Admin         services.AdminServiceProvider
	Events        services.EventServiceProvider
	Authenticator *auth.Authenticator
	Hub           *websocket.Hub
	DB            handlers.Pinger
	Stats         handlers.HostStatsProvider

	// APILimiter throttles every /api route; AuthLimiter additionally
	// throttles credential endpoints.
	APILimiter  *RateLimiter
	AuthLimiter *RateLimiter
}

// NewRouter creates and configures a new Chi router.
func NewRouter(d Dependencies) *chi.Mux {
	cfg := d.Config
	origins := NewOriginMatcher(cfg.CORSOrigins)

	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders(cfg.IsProduction()))
	r.Use(corsHandler(origins, d.Events))
	r.Use(clientInfo)

	r.NotFound(handlers.NotFound)
	r.MethodNotAllowed(handlers.MethodNotAllowed)

	// Initialize handlers
	var clients func() int
	if d.Hub != nil {
		clients = d.Hub.ConnectedClients
	}
	healthHandler := handlers.NewHealthHandler(d.DB, d.Stats, cfg.AppEnv, clients)
	authHandler := handlers.NewAuthHandler(d.Accounts, cfg.CookieName, cfg.IsProduction())
	adminHandler := handlers.NewAdminHandler(d.Admin)
	eventHandler := handlers.NewEventHandler(d.Events)
	premiumHandler := handlers.NewPremiumHandler()
	wsHandler := handlers.NewWebSocketHandler(d.Hub, origins.Allowed)

	authn := d.Authenticator

	r.Get("/", healthHandler.Welcome)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RequestSize(cfg.MaxBodyBytes))
		r.Use(sanitizeInput(d.Events))
		if d.APILimiter != nil {
			r.Use(d.APILimiter.Middleware)
		}

		r.Get("/health", healthHandler.Health)

		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				if d.AuthLimiter != nil {
					r.Use(d.AuthLimiter.Middleware)
				}
				r.Post("/register", authHandler.Register)
				r.Post("/login", authHandler.Login)
				r.Post("/forgot-password", authHandler.ForgotPassword)
				r.Post("/reset-password/{token}", authHandler.ResetPassword)
			})

			r.With(authn.Optional).Post("/logout", authHandler.Logout)

			r.Group(func(r chi.Router) {
				r.Use(authn.Require)
				r.Get("/me", authHandler.Me)
				r.Put("/update-profile", authHandler.UpdateProfile)
				r.Put("/change-password", authHandler.ChangePassword)
				r.Get("/events", wsHandler.Serve)
			})
		})

		r.Route("/premium", func(r chi.Router) {
			r.Use(authn.Require)
			r.Use(authn.RequireSubscription)
			r.Get("/access", premiumHandler.Access)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(authn.Require)
			r.Use(authn.RequireRole(models.RoleAdmin))
			r.Get("/subscribers", adminHandler.ListSubscribers)
			r.Get("/events", eventHandler.GetRecent)
			r.Route("/accounts/{id}", func(r chi.Router) {
				r.Put("/status", adminHandler.SetStatus)
				r.Put("/role", adminHandler.SetRole)
				r.Put("/subscription", adminHandler.UpdateSubscription)
			})
		})
	})

	return r
}
