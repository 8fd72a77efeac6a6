package router

import (
	"context"
	"net/http"

	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/trackvote/backend/internal/broker"
	"github.com/trackvote/backend/internal/catalog"
	"github.com/trackvote/backend/internal/config"
	"github.com/trackvote/backend/internal/crypto"
	"github.com/trackvote/backend/internal/handlers"
	"github.com/trackvote/backend/internal/ledger"
	"github.com/trackvote/backend/internal/metrics"
	"github.com/trackvote/backend/internal/middleware"
	"github.com/trackvote/backend/internal/roster"
	"github.com/trackvote/backend/internal/services"
)

// Deps are the long-lived components the HTTP layer serves.
type Deps struct {
	Config        *config.Config
	Catalog       *catalog.Snapshot
	Ledger        *ledger.Ledger
	Broker        *broker.Broker
	Roster        *roster.Roster
	PIN           *crypto.PINVerifier
	Registry      *prometheus.Registry
	VoteMetrics   *metrics.VoteMetrics
	StreamMetrics *metrics.StreamMetrics
	Clock         clockwork.Clock
}

// New builds the HTTP handler. Background work started here (rate limiter
// cleanup) stops when ctx is cancelled.
func New(ctx context.Context, d Deps) http.Handler {
	cfg := d.Config
	clock := d.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	r := chi.NewRouter()

	// Global middleware
	realIP := middleware.NewRealIPMiddleware(cfg.TrustedProxies)
	r.Use(realIP.Handler)
	r.Use(middleware.RequestContextMiddleware)
	r.Use(middleware.AccessLogMiddleware)
	if cfg.SentryDSN != "" {
		r.Use(sentryhttp.New(sentryhttp.Options{Repanic: true}).Handle)
	}
	r.Use(chimiddleware.Recoverer)
	r.Use(metrics.NewHTTPMetrics(d.Registry).Middleware)
	r.Use(middleware.CORSMiddleware(cfg.CORSAllowedOrigins))

	// Services
	authService := services.NewAuthService(cfg.JWTSecret, cfg.AdminTokenDuration)

	// Handlers
	configHandler := handlers.NewConfigHandler(cfg)
	trackHandler := handlers.NewTrackHandler(d.Catalog, d.Ledger, cfg.StatsTopN)
	voteHandler := handlers.NewVoteHandler(d.Ledger, d.Roster, cfg.RequireRosterVoter, d.VoteMetrics)
	adminHandler := handlers.NewAdminHandler(d.PIN, authService, d.Ledger, d.VoteMetrics)
	userHandler := handlers.NewUserHandler(d.Roster)
	sseHandler := handlers.NewSSEHandler(d.Broker, clock, handlers.DefaultHeartbeat, d.StreamMetrics)
	wsHandler := handlers.NewWebSocketHandler(d.Broker, clock, handlers.DefaultHeartbeat, cfg.CORSAllowedOrigins, d.StreamMetrics)

	// Rate limiters for writes and PIN guessing
	voteRateLimiter := middleware.NewRateLimiter(ctx, cfg.RateLimitPerMinute)
	loginRateLimiter := middleware.NewRateLimiter(ctx, 5)

	r.Handle("/metrics", metrics.Handler(d.Registry))

	// Routes
	r.Route("/api", func(r chi.Router) {
		// Health check
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"ok"}`))
		})

		// Public configuration (Spotify client ID, reset availability)
		r.Get("/config", configHandler.PublicConfig)

		r.Get("/tracks", trackHandler.List)
		r.Get("/tracks/{trackId}", trackHandler.Get)
		r.Get("/stats", trackHandler.Stats)
		r.With(voteRateLimiter.Middleware).Post("/votes", voteHandler.Submit)

		// Live updates
		r.Get("/events", sseHandler.Stream)
		r.Get("/ws", wsHandler.Stream)

		r.Get("/users", userHandler.List)

		// PIN login (no auth, tightly rate limited)
		r.With(loginRateLimiter.Middleware).Post("/admin/login", adminHandler.Login)

		// Admin-only routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(authService))
			r.Use(middleware.AdminOnlyMiddleware)

			r.Post("/reset", adminHandler.Reset)
			r.Put("/users", userHandler.Replace)
		})
	})

	return r
}
