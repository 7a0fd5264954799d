package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/coachbook/server/internal/api"
	"github.com/coachbook/server/internal/api/middleware"
	"github.com/coachbook/server/internal/audit"
	"github.com/coachbook/server/internal/auth"
	"github.com/coachbook/server/internal/auth/oauth"
	"github.com/coachbook/server/internal/config"
	"github.com/coachbook/server/internal/domain/bookings"
	"github.com/coachbook/server/internal/domain/dashboard"
	"github.com/coachbook/server/internal/domain/users"
	"github.com/coachbook/server/internal/metrics"
	"github.com/coachbook/server/internal/storage/postgres"
	"github.com/coachbook/server/internal/telemetry"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout   = 10 * time.Second
	dbMetricsInterval = 15 * time.Second
)

type serveOptions struct {
	host    string
	port    int
	migrate bool
}

func newServeCommand(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the coachbook HTTP server.

The server will:
- Load configuration from environment variables (or --config file if provided)
- Optionally apply pending database migrations (--migrate)
- Serve the JSON API, health probes and /metrics
- Shut down gracefully on SIGINT/SIGTERM

Examples:
  # Start with configuration from the environment
  server serve

  # Start on a specific host and port
  server serve --host 127.0.0.1 --port 9090

  # Apply migrations first
  server serve --migrate`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			opts.apply(&cfg)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg, opts.migrate)
		},
	}

	cmd.Flags().StringVar(&opts.host, "host", "", "server host address (default: 0.0.0.0)")
	cmd.Flags().IntVar(&opts.port, "port", 0, "server port (default: 8080)")
	cmd.Flags().BoolVar(&opts.migrate, "migrate", false, "apply pending migrations before serving")
	return cmd
}

// apply overrides configuration with flags that were set.
func (o *serveOptions) apply(cfg *config.Config) {
	if o.host != "" {
		cfg.Server.Host = o.host
	}
	if o.port != 0 {
		cfg.Server.Port = o.port
	}
}

func runServer(ctx context.Context, cfg config.Config, migrateFirst bool) error {
	logger := config.NewLogger(cfg.Logging)
	logger.Info().Str("version", Version).Str("environment", cfg.Environment).Msg("starting coachbook server")

	metrics.Init(Version, GitCommit, BuildDate)

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.Tracing, Version)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("tracing shutdown error")
		}
	}()

	if migrateFirst {
		if err := postgres.MigrateUp(cfg.Database.URL); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		logger.Info().Msg("migrations applied")
	}

	pool, err := postgres.Open(ctx, cfg.Database.URL, cfg.Database.MaxConnections)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer pool.Close()

	repo, err := postgres.NewRepository(pool)
	if err != nil {
		return fmt.Errorf("repository init failed: %w", err)
	}

	sessions, err := auth.NewSessionManager(cfg.Auth.SessionSecret, cfg.Auth.SessionTTL, "coachbook")
	if err != nil {
		return fmt.Errorf("session manager: %w", err)
	}

	auditLogger := audit.NewLoggerWithZerolog(logger)
	cache := dashboard.NewCache(cfg.Dashboard.CacheSize, cfg.Dashboard.CacheTTL)
	userService := users.NewService(repo.Users(), cache, auditLogger, logger)
	bookingService := bookings.NewService(repo.Bookings(), cache, auditLogger,
		bookings.Config{StrictTransitions: cfg.Bookings.StrictTransitions}, logger)
	dashboardService := dashboard.NewService(repo.Bookings(), userService, cache)

	var googleClient *oauth.GoogleClient
	if cfg.OAuth.Enabled() {
		googleClient = oauth.NewGoogleClient(oauth.GoogleConfig{
			ClientID:     cfg.OAuth.GoogleClientID,
			ClientSecret: cfg.OAuth.GoogleClientSecret,
			RedirectURL:  cfg.OAuth.GoogleRedirectURL,
		})
	} else {
		logger.Warn().Msg("GOOGLE_CLIENT_ID/GOOGLE_CLIENT_SECRET not set; sign-in disabled")
	}

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit)

	handler, err := api.NewRouter(api.Dependencies{
		Config:      cfg,
		Logger:      logger,
		Users:       userService,
		Bookings:    bookingService,
		Dashboard:   dashboardService,
		Cache:       cache,
		Database:    repo,
		Sessions:    sessions,
		OAuth:       googleClient,
		Audit:       auditLogger,
		RateLimiter: rateLimiter,
		Version:     Version,
		GitCommit:   GitCommit,
		BuildDate:   BuildDate,
	})
	if err != nil {
		return fmt.Errorf("router: %w", err)
	}

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rateLimiter.Run(gctx)
		return nil
	})
	g.Go(func() error {
		metrics.NewDBCollector(pool).Run(gctx, dbMetricsInterval)
		return nil
	})
	g.Go(func() error {
		logger.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return shutdown(server, logger)
	})

	return g.Wait()
}

func shutdown(server *http.Server, logger zerolog.Logger) error {
	logger.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
