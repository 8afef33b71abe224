package main

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/tpadesk/tpa/internal/config"
	"github.com/tpadesk/tpa/internal/domain/admission"
	"github.com/tpadesk/tpa/internal/domain/claims"
	"github.com/tpadesk/tpa/internal/domain/preauth"
	"github.com/tpadesk/tpa/internal/platform/auth"
	"github.com/tpadesk/tpa/internal/platform/db"
	"github.com/tpadesk/tpa/internal/platform/middleware"
	"github.com/tpadesk/tpa/internal/platform/notification"
	"github.com/tpadesk/tpa/internal/platform/reporting"
	"github.com/tpadesk/tpa/migrations"
)

const serviceName = "tpa-server"

func main() {
	rootCmd := &cobra.Command{
		Use:   serviceName,
		Short: "TPA desk pre-authorization API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tenantCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

// migrationSource returns the embedded migrations unless a directory is given.
func migrationSource(dir string) fs.FS {
	if dir == "" {
		return migrations.FS
	}
	return os.DirFS(dir)
}

func openPool(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenant, _ := cmd.Flags().GetString("tenant")
			dir, _ := cmd.Flags().GetString("dir")

			ctx := cmd.Context()
			pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			schema := db.SchemaName(tenant)
			fmt.Fprintf(cmd.OutOrStdout(), "Running migrations on schema: %s\n", schema)
			count, err := db.NewMigrator(pool, migrationSource(dir)).Up(ctx, schema)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("tenant", "default", "Tenant whose schema is migrated")
	upCmd.Flags().String("dir", "", "Migrations directory (embedded migrations when empty)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenant, _ := cmd.Flags().GetString("tenant")
			dir, _ := cmd.Flags().GetString("dir")

			ctx := cmd.Context()
			pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			schema := db.SchemaName(tenant)
			statuses, err := db.NewMigrator(pool, migrationSource(dir)).Status(ctx, schema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Migration status for schema: %s\n", schema)
			fmt.Fprintf(out, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status, appliedAt := "pending", ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Fprintf(out, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("tenant", "default", "Tenant whose schema is inspected")
	statusCmd.Flags().String("dir", "", "Migrations directory (embedded migrations when empty)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func tenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage tenants",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a tenant schema and apply migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			if name == "" {
				return fmt.Errorf("--name is required")
			}

			ctx := cmd.Context()
			pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "Creating tenant schema: %s\n", db.SchemaName(name))
			if err := db.CreateTenantSchema(ctx, pool, name, db.NewMigrator(pool, migrations.FS)); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Tenant created successfully.")
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Tenant identifier (alphanumeric)")

	cmd.AddCommand(createCmd)
	return cmd
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// newCacheStore picks Redis when REDIS_URL is set so every replica sees the
// same invalidations.
func newCacheStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (middleware.CacheStore, func(), error) {
	if cfg.RedisURL != "" {
		store, err := middleware.NewRedisCacheStoreFromURL(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		logger.Info().Msg("route cache backed by redis")
		return store, func() { _ = store.Close() }, nil
	}
	store := middleware.NewInMemoryCacheStore()
	store.StartCleanup(ctx, time.Minute)
	return store, func() {}, nil
}

func loadCatalog(path string) (*reporting.Catalog, error) {
	if path == "" {
		return reporting.NewCatalog()
	}
	extra, err := reporting.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return reporting.NewCatalog(extra...)
}

func authMiddleware(cfg *config.Config) echo.MiddlewareFunc {
	if cfg.IsDev() && cfg.AuthSigningKey == "" {
		return auth.DevAuthMiddleware()
	}
	return auth.JWTMiddleware(auth.JWTConfig{
		SigningKey: []byte(cfg.AuthSigningKey),
		Issuer:     cfg.AuthIssuer,
		Audience:   cfg.AuthAudience,
		Skipper:    auth.AuthSkipper,
	})
}

type server struct {
	echo  *echo.Echo
	cache *middleware.RouteCache
}

// newServer wires middleware, repositories, services and routes. The pool is
// only touched by requests, so routes can be built without a database.
func newServer(cfg *config.Config, logger zerolog.Logger, pool *pgxpool.Pool, store middleware.CacheStore, catalog *reporting.Catalog, mailer notification.EmailSender) *server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadHeaderTimeout = 10 * time.Second
	e.Server.ReadTimeout = 30 * time.Second
	// Intake sends mail inside its transaction.
	e.Server.WriteTimeout = 90 * time.Second
	e.Server.IdleTimeout = 2 * time.Minute

	// Validate has already accepted the value.
	bodyLimit, _ := middleware.ParseBodyLimit(cfg.BodyLimit)

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit(bodyLimit))
	e.Use(otelecho.Middleware(serviceName))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader, "X-Tenant-ID"},
	}))
	e.Use(authMiddleware(cfg))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	routeCache := middleware.NewRouteCache(store, cfg.CacheTTL, logger, preauth.PreAuthListPath, preauth.ClaimsListPath)

	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}))
	apiV1.Use(db.TenantMiddleware(pool, cfg.DefaultTenant))
	apiV1.Use(middleware.Audit(logger))

	admissionRepo := admission.NewRepoPG(pool)
	resolver := admission.NewResolver(admissionRepo)
	admission.NewHandler(resolver).RegisterRoutes(apiV1)

	claimRepo := claims.NewRepoPG(pool)
	claims.NewHandler(claims.NewService(claimRepo)).RegisterRoutes(apiV1, routeCache.Middleware())

	preauthSvc := preauth.NewService(
		preauth.NewRepoPG(pool),
		preauth.NewChatRepoPG(pool),
		claimRepo,
		resolver,
		mailer,
		db.NewTransactor(pool),
	)
	preauthSvc.SetRouteInvalidator(routeCache)
	preauth.NewHandler(preauthSvc).RegisterRoutes(apiV1, routeCache.Middleware())

	reporting.NewHandler(pool, catalog).RegisterRoutes(apiV1)

	return &server{echo: e, cache: routeCache}
}

func runServer() error {
	logger := newLogger(os.Getenv("ENV"))

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	store, closeStore, err := newCacheStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer closeStore()

	catalog, err := loadCatalog(cfg.ReportsFile)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load report measures")
	}

	mailer := notification.NewSMTPSender(notification.SMTPConfig(cfg.SMTP()))
	if !mailer.Configured() {
		logger.Warn().Msg("SMTP relay not configured; intake email dispatch will fail")
	}

	srv := newServer(cfg, logger, pool, store, catalog, mailer)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := srv.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.echo.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
