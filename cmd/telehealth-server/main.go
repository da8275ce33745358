package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/medilink/telehealth/internal/config"
	"github.com/medilink/telehealth/internal/domain/consultation"
	"github.com/medilink/telehealth/internal/domain/identity"
	"github.com/medilink/telehealth/internal/domain/messaging"
	"github.com/medilink/telehealth/internal/domain/prescription"
	"github.com/medilink/telehealth/internal/platform/apperr"
	"github.com/medilink/telehealth/internal/platform/auth"
	"github.com/medilink/telehealth/internal/platform/cache"
	"github.com/medilink/telehealth/internal/platform/db"
	"github.com/medilink/telehealth/internal/platform/jobs"
	"github.com/medilink/telehealth/internal/platform/middleware"
	"github.com/medilink/telehealth/internal/platform/relay"
)

const (
	version        = "0.1.0"
	cacheKeyPrefix = "telehealth:"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "telehealth-server",
		Short: "Telehealth consultation API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(indexesCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API and realtime relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run PostgreSQL migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			migrator, closePool, err := openMigrator(cmd)
			if err != nil {
				return err
			}
			defer closePool()

			count, err := migrator.Up(cmd.Context())
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			migrator, closePool, err := openMigrator(cmd)
			if err != nil {
				return err
			}
			defer closePool()

			statuses, err := migrator.Status(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status, appliedAt := "pending", ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	cmd.AddCommand(statusCmd)

	cmd.PersistentFlags().String("dir", "./migrations", "Path to migrations directory")
	cmd.PersistentFlags().String("schema", "public", "Target schema for migrations")
	return cmd
}

func openMigrator(cmd *cobra.Command) (*db.Migrator, func(), error) {
	dir, _ := cmd.Flags().GetString("dir")
	schema, _ := cmd.Flags().GetString("schema")

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, nil, fmt.Errorf("DATABASE_URL is required for migrations")
	}
	pool, err := db.NewPool(cmd.Context(), cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return db.NewMigrator(pool, os.DirFS(dir), schema), pool.Close, nil
}

func indexesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "indexes",
		Short: "Create the MongoDB indexes the repositories rely on",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			client, database, err := db.ConnectMongo(cmd.Context(), cfg.MongoURI, cfg.MongoDatabase)
			if err != nil {
				return err
			}
			defer client.Disconnect(context.Background())

			n, err := db.EnsureIndexes(cmd.Context(), database)
			if err != nil {
				return fmt.Errorf("ensure indexes: %w", err)
			}
			fmt.Printf("Ensured %d index(es) on %s.\n", n, cfg.MongoDatabase)
			return nil
		},
	}
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// repositories is the storage layer for one driver.
type repositories struct {
	accounts      identity.Repository
	consultations consultation.Repository
	messages      messaging.Repository
	prescriptions prescription.Repository
	checker       db.Checker
}

func openRepositories(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (repositories, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return repositories{}, nil, err
		}
		logger.Info().Str("driver", cfg.StoreDriver).Msg("connected to database")
		return repositories{
			accounts:      identity.NewRepoPG(pool),
			consultations: consultation.NewRepoPG(pool),
			messages:      messaging.NewRepoPG(pool),
			prescriptions: prescription.NewRepoPG(pool),
			checker:       db.PostgresChecker{Pool: pool},
		}, pool.Close, nil
	default:
		client, database, err := db.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return repositories{}, nil, err
		}
		n, err := db.EnsureIndexes(ctx, database)
		if err != nil {
			_ = client.Disconnect(context.Background())
			return repositories{}, nil, fmt.Errorf("ensure indexes: %w", err)
		}
		logger.Info().Str("driver", cfg.StoreDriver).Int("indexes", n).Msg("connected to database")
		closeFn := func() { _ = client.Disconnect(context.Background()) }
		return repositories{
			accounts:      identity.NewRepoMongo(database),
			consultations: consultation.NewRepoMongo(database),
			messages:      messaging.NewRepoMongo(database),
			prescriptions: prescription.NewRepoMongo(database),
			checker:       db.MongoChecker{Client: client},
		}, closeFn, nil
	}
}

func openCache(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (cache.Cache, func()) {
	if cfg.RedisURL == "" {
		return cache.Noop{}, func() {}
	}
	rc, err := cache.NewRedis(ctx, cfg.RedisURL, cacheKeyPrefix)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, account cache disabled")
		return cache.Noop{}, func() {}
	}
	logger.Info().Msg("connected to redis")
	return rc, func() { _ = rc.Close() }
}

// application is the wired HTTP surface plus the services the background
// jobs need.
type application struct {
	echo          *echo.Echo
	hub           *relay.Hub
	consultations *consultation.Service
	prescriptions *prescription.Service
}

func newApplication(cfg *config.Config, logger zerolog.Logger, repos repositories, c cache.Cache) *application {
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)

	identitySvc := identity.NewService(repos.accounts, tokens, c, cfg.CacheTTL)
	consultationSvc := consultation.NewService(repos.consultations, identitySvc)
	messagingSvc := messaging.NewService(repos.messages, consultationSvc, identitySvc)
	prescriptionSvc := prescription.NewService(repos.prescriptions, identitySvc, consultationSvc)
	prescriptionSvc.SetLogger(logger.With().Str("component", "prescription").Logger())

	hub := relay.NewHub(logger.With().Str("component", "relay").Logger())
	messagingSvc.SetBroadcaster(hub)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = apperr.EchoErrorHandler(logger)

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Sanitize(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(echomw.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	health := func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	}
	e.GET("/health", health)
	if repos.checker != nil {
		e.GET("/health/db", db.HealthHandler(repos.checker))
	}

	api := e.Group("/api",
		auth.JWTMiddleware(tokens, auth.AuthSkipper),
		middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimitRPS,
			BurstSize:         cfg.RateLimitBurst,
		}),
	)
	api.GET("/health", health)
	identity.NewHandler(identitySvc).RegisterRoutes(api)
	consultation.NewHandler(consultationSvc).RegisterRoutes(api)
	messaging.NewHandler(messagingSvc).RegisterRoutes(api)
	prescription.NewHandler(prescriptionSvc).RegisterRoutes(api)

	relayLogger := logger.With().Str("component", "relay").Logger()
	relay.NewServer(hub, tokens, identitySvc, consultationSvc, messagingSvc, relayLogger, cfg.CORSOrigins).RegisterRoutes(e)

	return &application{
		echo:          e,
		hub:           hub,
		consultations: consultationSvc,
		prescriptions: prescriptionSvc,
	}
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg.Env)

	ctx := context.Background()
	repos, closeStore, err := openRepositories(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer closeStore()

	c, closeCache := openCache(ctx, cfg, logger)
	defer closeCache()

	app := newApplication(cfg, logger, repos, c)

	var scheduler *jobs.Scheduler
	if cfg.JobsEnabled {
		scheduler = jobs.NewScheduler(logger.With().Str("component", "jobs").Logger())
		sched := jobs.Schedule{
			NoShowCron:             cfg.NoShowCron,
			NoShowGrace:            cfg.NoShowGrace,
			PrescriptionExpiryCron: cfg.PrescriptionExpiryCron,
		}
		if err := jobs.RegisterSweeps(scheduler, sched, app.consultations, app.prescriptions); err != nil {
			logger.Fatal().Err(err).Msg("failed to schedule jobs")
		}
		scheduler.Start()
	}

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("driver", cfg.StoreDriver).Msg("starting server")
		if err := app.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Int("relay_clients", app.hub.ClientCount()).Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if scheduler != nil {
		scheduler.Stop(shutdownCtx)
	}
	if err := app.echo.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
