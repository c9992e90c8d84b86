// Package main provides the entry point for the Rally communication dispatch service
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/rallyhq/rally/app/handlers"
	"github.com/rallyhq/rally/app/middleware"
	"github.com/rallyhq/rally/app/router"
	"github.com/rallyhq/rally/app/scheduler"
	"github.com/rallyhq/rally/app/services"
	businessflow "github.com/rallyhq/rally/business_flow"
	"github.com/rallyhq/rally/config"
	"github.com/rallyhq/rally/logger"
	"github.com/rallyhq/rally/models"
	"github.com/rallyhq/rally/repository"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Application represents the main application structure
type Application struct {
	router    *router.FiberRouter
	config    *config.ProductionConfig
	server    *fiber.App
	logger    *zap.Logger
	stopFuncs []func()
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "rally",
		Short:         "Rally communication dispatch service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCommand(), newMigrateCommand(), newTokenCommand())
	return root
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the dispatch scheduler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadProductionConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.LoadProductionConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			log, err := logger.New(cfg.Logging, "rally-migrate")
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer func() { _ = log.Sync() }()

			db, err := initializeDatabase(cfg.Database, log)
			if err != nil {
				return err
			}
			if err := db.AutoMigrate(models.All()...); err != nil {
				return fmt.Errorf("failed to migrate database: %w", err)
			}
			log.Info("Database migrated", zap.Int("models", len(models.All())))
			return nil
		},
	}
}

// newTokenCommand mints an access token for a user id so operators can call
// the API without going through the identity provider.
func newTokenCommand() *cobra.Command {
	var userID uint
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token for a user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if userID == 0 {
				return fmt.Errorf("--user is required")
			}
			cfg, err := config.LoadProductionConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			tokenService, err := newTokenService(cfg.JWT)
			if err != nil {
				return err
			}
			accessToken, _, err := tokenService.GenerateTokens(userID)
			if err != nil {
				return fmt.Errorf("failed to issue token: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), accessToken)
			return err
		},
	}
	cmd.Flags().UintVar(&userID, "user", 0, "user id the token is issued for")
	return cmd
}

func serve(parent context.Context, cfg *config.ProductionConfig) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := initializeApplication(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer func() { _ = app.logger.Sync() }()

	app.router.SetupRoutes()

	errCh := make(chan error, 1)
	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		errCh <- app.router.Start(address)
	}()

	select {
	case err := <-errCh:
		app.shutdownWorkers()
		return fmt.Errorf("server stopped: %w", err)
	case <-ctx.Done():
	}

	app.logger.Info("Shutting down gracefully")
	app.shutdownWorkers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		app.logger.Error("Error during shutdown", zap.Error(err))
	}

	app.logger.Info("Server stopped")
	return nil
}

func (a *Application) shutdownWorkers() {
	for i := len(a.stopFuncs) - 1; i >= 0; i-- {
		a.stopFuncs[i]()
	}
	a.stopFuncs = nil
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("Database connection established",
		zap.Int("max_open_conns", cfg.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.MaxIdleConns),
	)
	return db, nil
}

// initializeCache initializes the Redis client and verifies connectivity
func initializeCache(cfg config.CacheConfig, log *zap.Logger) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Info("Redis connection established", zap.Int("db", cfg.RedisDB))
	return rc, nil
}

// startCacheHealthMonitor periodically pings Redis. The returned func stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration, log *zap.Logger) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(monitorCtx, 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					log.Warn("Redis healthcheck failed", zap.Error(err))
				}
				c()
			}
		}
	}()
	return cancel
}

func initializeApplication(ctx context.Context, cfg *config.ProductionConfig) (*Application, error) {
	log, err := logger.New(cfg.Logging, "rally")
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	log = log.With(
		zap.String("environment", cfg.Deployment.Environment),
		zap.String("version", cfg.Deployment.Version),
	)

	db, err := initializeDatabase(cfg.Database, log)
	if err != nil {
		return nil, err
	}

	var stopFuncs []func()

	var locker services.DispatchLocker
	rc, err := initializeCache(cfg.Cache, log)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		locker = services.NewRedisDispatchLocker(rc, cfg.Cache.RedisPrefix)
		stopFuncs = append(stopFuncs,
			startCacheHealthMonitor(ctx, rc, 30*time.Second, log),
			func() { _ = rc.Close() },
		)
	} else {
		log.Warn("Redis disabled, dispatch locking is process-local only")
	}

	// Repositories
	orgRepo := repository.NewOrganizationRepository(db)
	memberRepo := repository.NewOrganizationMemberRepository(db)
	teamRepo := repository.NewTeamRepository(db)
	playerRepo := repository.NewPlayerRepository(db)
	coachRepo := repository.NewCoachRepository(db)
	commRepo := repository.NewCommunicationRepository(db)
	deliveryRepo := repository.NewCommunicationDeliveryRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)
	txManager := repository.NewTxManager(db)

	// Services
	tokenService, err := newTokenService(cfg.JWT)
	if err != nil {
		return nil, err
	}

	emailTemplate, err := services.NewEmailTemplate()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize email template: %w", err)
	}
	emailProvider := services.NewEmailProvider(cfg.Email)
	if !emailProvider.Configured() {
		log.Warn("Email provider is not configured, communications will be marked sent without deliveries")
	}

	// Business flows
	resolver := businessflow.NewRecipientResolver(teamRepo, playerRepo, coachRepo, log)
	emailChannel := businessflow.NewEmailChannel(emailProvider, emailTemplate, deliveryRepo, cfg.Email, log)
	communicationFlow := businessflow.NewCommunicationFlow(
		orgRepo,
		memberRepo,
		commRepo,
		deliveryRepo,
		auditRepo,
		txManager,
		resolver,
		[]businessflow.DeliveryChannel{emailChannel},
		locker,
		cfg.Dispatch,
		log,
	)
	reportFlow := businessflow.NewCommunicationReportFlow(commRepo, deliveryRepo, memberRepo, auditRepo, log)

	// Handlers
	communicationHandler := handlers.NewCommunicationHandler(communicationFlow, reportFlow, log)
	authMiddleware := middleware.NewAuthMiddleware(tokenService)

	appRouter := router.NewFiberRouter(cfg, communicationHandler, authMiddleware, log)

	if cfg.Scheduler.Enabled {
		sched := scheduler.NewCommunicationScheduler(commRepo, communicationFlow, cfg.Scheduler, log)
		sched.Start(ctx)
		stopFuncs = append(stopFuncs, sched.Stop)
	}

	return &Application{
		router:    appRouter,
		config:    cfg,
		server:    appRouter.GetApp(),
		logger:    log,
		stopFuncs: stopFuncs,
	}, nil
}

func newTokenService(cfg config.JWTConfig) (services.TokenService, error) {
	tokenService, err := services.NewTokenService(
		cfg.AccessTokenTTL,
		cfg.RefreshTokenTTL,
		cfg.Issuer,
		cfg.Audience,
		cfg.UseRSAKeys,
		cfg.PrivateKey,
		cfg.PublicKey,
		cfg.SecretKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}
	return tokenService, nil
}
