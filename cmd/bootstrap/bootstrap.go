package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"telehealth-booking/config"
	deliveryHttp "telehealth-booking/internal/delivery/http"
	"telehealth-booking/internal/delivery/http/handler"
	"telehealth-booking/internal/delivery/http/middleware"
	deliveryMessaging "telehealth-booking/internal/delivery/messaging"
	"telehealth-booking/internal/infrastructure/cache"
	"telehealth-booking/internal/infrastructure/database"
	"telehealth-booking/internal/infrastructure/messaging"
	gateway "telehealth-booking/internal/infrastructure/payment"
	"telehealth-booking/internal/repository"
	"telehealth-booking/internal/service"
	"telehealth-booking/internal/usecase"
	"telehealth-booking/pkg/jwt"
	"telehealth-booking/pkg/validator"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// App holds all dependencies for the application
type App struct {
	Config      *config.Config
	DB          *gorm.DB
	RedisClient *redis.Client
	Server      *http.Server
	Publisher   *messaging.Publisher
	Consumer    *messaging.Consumer

	eventConsumer  *deliveryMessaging.PaymentEventConsumer
	cancelConsumer context.CancelFunc
	consumerDone   sync.WaitGroup
}

// New creates a new App instance with all dependencies initialized
func New() (*App, error) {
	app := &App{}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	app.Config = cfg

	// Setup logger
	setupLogger(cfg.App.LogLevel)
	logrus.Info("Configuration loaded successfully")

	loc, err := time.LoadLocation(cfg.App.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", cfg.App.Timezone, err)
	}

	// Initialize database
	db, err := database.NewPostgresConnection(cfg.DB, cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	app.DB = db
	logrus.Info("Database connected successfully")

	if err := database.RunMigrations(db); err != nil {
		app.Close()
		return nil, err
	}

	// Redis only accelerates serials and pushes live notifications
	redisClient, err := cache.NewRedisClient(cfg.Redis)
	if err != nil {
		logrus.Warnf("Redis unavailable, continuing without it: %v", err)
	} else {
		app.RedisClient = redisClient
		logrus.Info("Redis connected successfully")
	}

	paymentGateway, err := newPaymentGateway(cfg.Payment)
	if err != nil {
		app.Close()
		return nil, err
	}
	logrus.Infof("Payment provider: %s", paymentGateway.Name())

	if cfg.RabbitMQ.Enabled {
		if err := app.connectRabbitMQ(cfg.RabbitMQ); err != nil {
			app.Close()
			return nil, err
		}
		logrus.Info("RabbitMQ connected successfully")
	}

	// Initialize all layers
	app.Server = app.initializeServer(cfg, db, app.RedisClient, paymentGateway, loc)

	return app, nil
}

// setupLogger configures the logrus logger
func setupLogger(level string) {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetOutput(os.Stdout)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
}

func newPaymentGateway(cfg config.PaymentConfig) (gateway.Gateway, error) {
	switch cfg.Provider {
	case config.PaymentProviderStripe:
		return gateway.NewStripeGateway(cfg), nil
	case config.PaymentProviderMidtrans:
		return gateway.NewMidtransGateway(cfg), nil
	default:
		return nil, fmt.Errorf("unknown payment provider %q", cfg.Provider)
	}
}

func (app *App) connectRabbitMQ(cfg config.RabbitMQConfig) error {
	publisher, err := messaging.NewPublisher(cfg.URL, cfg.Exchange)
	if err != nil {
		return fmt.Errorf("failed to connect RabbitMQ publisher: %w", err)
	}
	app.Publisher = publisher

	consumer, err := messaging.NewConsumer(cfg.URL, cfg.Exchange, cfg.Queue, []string{
		messaging.RoutingKeyPaymentConfirmed,
		messaging.RoutingKeyPaymentFailed,
	})
	if err != nil {
		return fmt.Errorf("failed to connect RabbitMQ consumer: %w", err)
	}
	app.Consumer = consumer
	return nil
}

// initializeServer creates and configures the HTTP server
func (app *App) initializeServer(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, paymentGateway gateway.Gateway, loc *time.Location) *http.Server {
	// Initialize JWT service
	jwtService := jwt.NewJWTService(cfg.JWT)

	// Initialize validator
	customValidator := validator.NewValidator()

	// Initialize logger
	log := logrus.StandardLogger()

	transactor := database.NewTransactor(db)

	// Initialize repositories
	bookingRepo := repository.NewBookingRepository()
	paymentRepo := repository.NewPaymentRepository()
	availabilityRepo := repository.NewAvailabilityRepository()
	ledgerRepo := repository.NewLedgerRepository()
	historyRepo := repository.NewLedgerHistoryRepository()
	notificationRepo := repository.NewNotificationRepository()
	auditLogRepo := repository.NewAuditLogRepository()

	// Initialize services
	auditService := service.NewAuditService(log, auditLogRepo)
	notifier := service.NewNotificationService(transactor, redisClient, log, notificationRepo)
	serialService := service.NewBookingSerialService(transactor, redisClient, log, bookingRepo, cfg.Booking.NumberPrefix, loc)

	// Initialize usecases
	admissionUsecase := usecase.NewSlotAdmissionUsecase(transactor, log, availabilityRepo, bookingRepo, cfg.Booking.MinLeadTime, loc, time.Now)
	checkoutUsecase := usecase.NewCheckoutUsecase(transactor, log, admissionUsecase, serialService, auditService,
		bookingRepo, paymentRepo, paymentGateway, cfg.Booking.PlatformFeeRate)
	settlementUsecase := usecase.NewSettlementUsecase(transactor, log, notifier, auditService,
		bookingRepo, paymentRepo, ledgerRepo, historyRepo)
	cancellationUsecase := usecase.NewCancellationUsecase(transactor, log, notifier, auditService,
		bookingRepo, paymentRepo, ledgerRepo, historyRepo, paymentGateway)
	bookingUsecase := usecase.NewBookingUsecase(transactor, log, bookingRepo, paymentRepo, historyRepo, paymentGateway)
	walletUsecase := usecase.NewWalletUsecase(transactor, log, ledgerRepo, historyRepo)
	auditLogUsecase := usecase.NewAuditLogUsecase(transactor, log, auditLogRepo)

	// Events go through the broker when it is configured, otherwise they are settled inline
	var publisher handler.EventPublisher
	if app.Publisher != nil {
		publisher = app.Publisher
	}
	if app.Consumer != nil {
		app.eventConsumer = deliveryMessaging.NewPaymentEventConsumer(app.Consumer, settlementUsecase, log)
	}

	// Initialize handlers
	bookingHandler := handler.NewBookingHandler(admissionUsecase, checkoutUsecase, cancellationUsecase, bookingUsecase, customValidator)
	walletHandler := handler.NewWalletHandler(walletUsecase)
	webhookHandler := handler.NewWebhookHandler(paymentGateway, settlementUsecase, publisher, log)
	auditLogHandler := handler.NewAuditLogHandler(auditLogUsecase)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(jwtService)
	corsMiddleware := middleware.NewCORSMiddleware()

	// Initialize router
	router := deliveryHttp.NewRouter(bookingHandler, walletHandler, webhookHandler, auditLogHandler, authMiddleware, corsMiddleware)
	httpRouter := router.Setup()

	// Create server
	serverAddr := fmt.Sprintf(":%s", cfg.App.Port)
	return &http.Server{
		Addr:              serverAddr,
		Handler:           httpRouter,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Run starts the HTTP server and handles graceful shutdown
func (app *App) Run() {
	if app.eventConsumer != nil {
		ctx, cancel := context.WithCancel(context.Background())
		app.cancelConsumer = cancel
		app.consumerDone.Add(1)
		go func() {
			defer app.consumerDone.Done()
			logrus.Infof("Payment event consumer listening on %s", app.Config.RabbitMQ.Queue)
			app.eventConsumer.Supervise(ctx)
		}()
	}

	// Start server in goroutine
	go func() {
		logrus.Infof("Server starting on port %s", app.Config.App.Port)
		logrus.Infof("Environment: %s", app.Config.App.Env)
		if err := app.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	app.waitForShutdown()
}

// waitForShutdown blocks until an interrupt signal is received
func (app *App) waitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	// Create shutdown context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Shutdown HTTP server gracefully
	if err := app.Server.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	// Stop consuming; an in-flight settlement finishes or is requeued
	if app.cancelConsumer != nil {
		app.cancelConsumer()
		app.consumerDone.Wait()
	}

	// Close connections
	app.Close()

	logrus.Info("Server shutdown complete")
}

// Close closes all connections (database, redis, rabbitmq)
func (app *App) Close() {
	if app.Consumer != nil {
		app.Consumer.Close()
	}
	if app.Publisher != nil {
		app.Publisher.Close()
	}

	// Close database connection
	if app.DB != nil {
		sqlDB, err := app.DB.DB()
		if err == nil {
			sqlDB.Close()
		}
	}

	// Close Redis connection
	if app.RedisClient != nil {
		app.RedisClient.Close()
	}
}
