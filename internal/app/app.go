package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	emailadapter "github.com/price-tracker/tracker-service/internal/adapter/email"
	mongoadapter "github.com/price-tracker/tracker-service/internal/adapter/mongo"
	natsadapter "github.com/price-tracker/tracker-service/internal/adapter/nats"
	redisadapter "github.com/price-tracker/tracker-service/internal/adapter/redis"
	"github.com/price-tracker/tracker-service/internal/app/config"
	"github.com/price-tracker/tracker-service/internal/platform/logger"
	"github.com/price-tracker/tracker-service/internal/scraper"
	"github.com/price-tracker/tracker-service/internal/service"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

const shutdownTimeout = 30 * time.Second

type App struct {
	cfg *config.Config
	log logger.Logger

	reconciler     *service.Reconciler
	listingService service.ListingService
	alertService   service.AlertService

	mongoClient *mongo.Client
	redisClient *redis.Client
	natsConn    *nats.Conn
}

func New(cfg *config.Config) (*App, error) {
	ctx := context.Background()

	logCfg := logger.ZapLoggerConfig{
		Level:      cfg.Logger.Level,
		Encoding:   cfg.Logger.Encoding,
		TimeFormat: cfg.Logger.TimeFormat,
	}
	appLogger, err := logger.NewZapLogger(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	appLogger.Info("Logger initialized")
	appLogger.Infof("Configuration loaded: Env=%s, check interval: %s", cfg.Env, cfg.Checker.Interval)

	appLogger.Info("Initializing MongoDB client...")
	mongoClient, err := mongoadapter.NewClient(ctx, cfg.MongoDB)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MongoDB client: %w", err)
	}
	appLogger.Info("MongoDB client initialized successfully")

	appLogger.Info("Initializing Redis client...")
	redisClient, err := redisadapter.NewClient(ctx, cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Redis client: %w", err)
	}
	appLogger.Info("Redis client initialized successfully")

	appLogger.Info("Initializing NATS connection...")
	natsConn, err := natsadapter.NewConnection(cfg.NATS)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize NATS connection: %w", err)
	}
	msgPublisher, err := natsadapter.NewNATSPublisher(natsConn)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize NATS publisher: %w", err)
	}
	appLogger.Info("NATS publisher initialized successfully")

	listingRepo := mongoadapter.NewListingRepository(mongoClient, cfg.MongoDB)
	alertRepo := mongoadapter.NewAlertRepository(mongoClient, cfg.MongoDB)
	userRepo := mongoadapter.NewUserRepository(mongoClient, cfg.MongoDB)
	cooldownRepo := redisadapter.NewAlertCooldownRepository(redisClient)
	appLogger.Info("Repositories initialized")

	sender, err := emailadapter.NewSMTPSender(cfg.SMTP, appLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SMTP sender: %w", err)
	}

	extractor := scraper.NewExtractor(cfg.Checker.HTTPTimeout)
	retrier := scraper.NewRetrier(cfg.Checker.MaxAttempts, cfg.Checker.RetryBaseDelay)

	listingService := service.NewListingService(listingRepo, userRepo, extractor, retrier, sender, msgPublisher, appLogger)
	alertService := service.NewAlertService(alertRepo, listingRepo, userRepo, sender, appLogger)

	reconciler := service.NewReconciler(
		service.ReconcilerConfig{
			Interval:         cfg.Checker.Interval,
			GroupConcurrency: cfg.Checker.GroupConcurrency,
			AlertCooldown:    cfg.Alerts.Cooldown,
			BestDealsLimit:   cfg.Alerts.BestDealsLimit,
		},
		listingRepo,
		alertRepo,
		userRepo,
		cooldownRepo,
		extractor,
		retrier,
		sender,
		msgPublisher,
		appLogger,
	)
	appLogger.Info("Reconciler initialized")

	return &App{
		cfg:            cfg,
		log:            appLogger,
		reconciler:     reconciler,
		listingService: listingService,
		alertService:   alertService,
		mongoClient:    mongoClient,
		redisClient:    redisClient,
		natsConn:       natsConn,
	}, nil
}

// ListingService exposes the listing operations to the transport layer.
func (a *App) ListingService() service.ListingService { return a.listingService }

// AlertService exposes the alert operations to the transport layer.
func (a *App) AlertService() service.AlertService { return a.alertService }

func (a *App) Run() {
	a.log.Info("Starting application components...")

	a.reconciler.Start()
	a.log.Info("Reconciler started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	receivedSignal := <-quit
	a.log.Infof("Received shutdown signal: %v. Shutting down application...", receivedSignal)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Let the in-flight reconciliation pass finish persisting before the
	// connections below go away.
	if err := a.reconciler.Stop(shutdownCtx); err != nil {
		a.log.Errorf("Error during reconciler shutdown: %v", err)
	} else {
		a.log.Info("Reconciler stopped successfully")
	}

	a.log.Info("Closing connections...")

	if a.natsConn != nil {
		a.natsConn.Close()
		a.log.Info("NATS connection closed")
	}

	if a.mongoClient != nil {
		if err := a.mongoClient.Disconnect(shutdownCtx); err != nil {
			a.log.Errorf("Error disconnecting from MongoDB: %v", err)
		} else {
			a.log.Info("MongoDB connection closed successfully")
		}
	}

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.log.Errorf("Error closing Redis client: %v", err)
		} else {
			a.log.Info("Redis client closed successfully")
		}
	}

	a.log.Info("Application shut down successfully")
}
