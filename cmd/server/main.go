package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"

	"github.com/trackvote/backend/internal/broker"
	"github.com/trackvote/backend/internal/catalog"
	"github.com/trackvote/backend/internal/config"
	"github.com/trackvote/backend/internal/crypto"
	"github.com/trackvote/backend/internal/ledger"
	"github.com/trackvote/backend/internal/logging"
	"github.com/trackvote/backend/internal/metrics"
	"github.com/trackvote/backend/internal/retry"
	"github.com/trackvote/backend/internal/roster"
	"github.com/trackvote/backend/internal/router"
	"github.com/trackvote/backend/internal/sentry"
	"github.com/trackvote/backend/internal/services"
	"github.com/trackvote/backend/internal/store"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; real environment variables take precedence
	_ = godotenv.Load()

	// Initialize structured logging (reads LOGGING_LEVEL env var)
	logging.Initialize()

	// Load configuration
	cfg := config.Load()
	if cfg.JWTSecretGenerated {
		slog.Warn("JWT_SECRET not set, using a per-process signing key; admin tokens end on restart")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	flushSentry, err := sentry.Init(cfg.SentryDSN, cfg.SentryEnvironment)
	if err != nil {
		return fmt.Errorf("failed to initialize sentry: %w", err)
	}
	defer flushSentry()

	items, err := loadCatalog(ctx, cfg)
	if err != nil {
		return err
	}
	snapshot := catalog.NewSnapshot(items)
	slog.Info("catalog loaded", slog.Int("tracks", snapshot.Len()))

	voteStore, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	users, err := roster.Load(cfg.UsersPath)
	if err != nil {
		return fmt.Errorf("failed to load roster: %w", err)
	}

	pin, err := crypto.NewPINVerifier(cfg.ResetPIN)
	if err != nil {
		return err
	}
	if !pin.Enabled() {
		slog.Warn("RESET_PIN is not set; reset is disabled")
	}

	registry := metrics.NewRegistry()
	voteMetrics := metrics.NewVoteMetrics(registry)
	streamMetrics := metrics.NewStreamMetrics(registry)

	hub := broker.New(broker.WithDropHandler(func(sub *broker.Subscription) {
		streamMetrics.EvictionsTotal.Inc()
		slog.Warn("dropped slow event subscriber", slog.String("subscription_id", sub.ID.String()))
	}))

	votes := ledger.New(ctx, snapshot.IDs(), voteStore, hub, ledger.WithSaveTimeout(cfg.SaveTimeout))

	handler := router.New(ctx, router.Deps{
		Config:        cfg,
		Catalog:       snapshot,
		Ledger:        votes,
		Broker:        hub,
		Roster:        users,
		PIN:           pin,
		Registry:      registry,
		VoteMetrics:   voteMetrics,
		StreamMetrics: streamMetrics,
		Clock:         clockwork.NewRealClock(),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", slog.String("addr", srv.Addr), slog.String("store", cfg.StoreBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// loadCatalog reads the playlist from CATALOG_PATH when set, otherwise from
// Spotify with retries.
func loadCatalog(ctx context.Context, cfg *config.Config) ([]catalog.Item, error) {
	if cfg.CatalogPath != "" {
		return catalog.LoadFile(cfg.CatalogPath)
	}

	if cfg.SpotifyClientID == "" || cfg.SpotifyClientSecret == "" || cfg.SpotifyPlaylistID == "" {
		return nil, errors.New("set CATALOG_PATH or SPOTIFY_CLIENT_ID, SPOTIFY_CLIENT_SECRET and SPOTIFY_PLAYLIST_ID")
	}

	var source catalog.Source = services.NewSpotifyService(cfg.SpotifyClientID, cfg.SpotifyClientSecret)
	policy := retry.Policy{
		MaxAttempts:      5,
		InitialBackoff:   time.Second,
		RateLimitBackoff: 10 * time.Second,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			slog.Warn("playlist fetch failed, retrying",
				slog.Int("attempt", attempt),
				slog.Duration("backoff", backoff),
				slog.Any("error", err))
		},
	}

	items, err := retry.Do(ctx, policy, services.ClassifySpotifyError, func() ([]catalog.Item, error) {
		return source.PlaylistItems(ctx, cfg.SpotifyPlaylistID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load playlist: %w", err)
	}
	return items, nil
}

// openStore returns the configured vote store and its close func.
func openStore(cfg *config.Config) (ledger.Store, func(), error) {
	switch cfg.StoreBackend {
	case config.StoreBackendFile:
		return store.NewFileStore(cfg.VotesPath), func() {}, nil
	case config.StoreBackendSQLite:
		s, err := store.OpenSQLite(cfg.DatabasePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		return s, func() {
			if err := s.Close(); err != nil {
				slog.Error("failed to close database", slog.Any("error", err))
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
}
