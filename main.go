// Package main provides the main entry point for the Disparador campaign service
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/velozap/disparador/app/handlers"
	"github.com/velozap/disparador/app/middleware"
	"github.com/velozap/disparador/app/router"
	"github.com/velozap/disparador/app/scheduler"
	"github.com/velozap/disparador/app/services"
	businessflow "github.com/velozap/disparador/business_flow"
	"github.com/velozap/disparador/config"
	"github.com/velozap/disparador/repository"
)

// Application represents the main application structure
type Application struct {
	router    router.Router
	config    *config.ProductionConfig
	server    *fiber.App
	stopFuncs []func()
}

func main() {
	log.Println("Starting Disparador application...")

	// Load production configuration
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize application
	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	// Setup routes
	app.router.SetupRoutes()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Printf("Server starting on %s", address)

		if err := app.server.Listen(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Println("Shutting down gracefully...")

	// Stop background workers; the orchestrator persists every in-flight
	// run's state before returning
	for _, fn := range app.stopFuncs {
		fn()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB for connection pooling configuration
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test the connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeCache initializes the Redis client and verifies connectivity
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
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

	log.Printf("Redis connection established to %s (db=%d)", cfg.RedisURL, cfg.RedisDB)
	return rc, nil
}

// startCacheHealthMonitor starts a background goroutine that periodically pings Redis
// to detect connectivity issues. The returned cancel function stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration) func() {
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
				ctx, c := context.WithTimeout(context.Background(), 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					log.Printf("Redis healthcheck failed: %v", err)
				}
				c()
			}
		}
	}()
	return cancel
}

// initializeSender builds the outbound message sender. The mock sender is an
// explicit opt-in; a missing webhook URL is a startup error, never a silent
// downgrade.
func initializeSender(cfg *config.ProductionConfig) (services.MessageSender, error) {
	switch cfg.Webhook.URL {
	case "":
		return nil, fmt.Errorf("no outbound webhook configured: set WEBHOOK_URL (or \"mock\" outside production)")
	case "mock":
		log.Println("WEBHOOK_URL=mock: outbound messages will not leave the process")
		return services.NewMockMessageSender(), nil
	default:
		return services.NewWebhookSender(&cfg.Webhook), nil
	}
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	var stopFuncs []func()

	// Initialize database
	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		cancel := startCacheHealthMonitor(context.Background(), rc, 30*time.Second)
		stopFuncs = append(stopFuncs, cancel)
	}

	// Initialize repositories
	customerRepo := repository.NewCustomerRepository(db)
	contactRepo := repository.NewContactRepository(db)
	campaignRepo := repository.NewCampaignRepository(db)
	campaignContactRepo := repository.NewCampaignContactRepository(db)

	// Initialize services
	sender, err := initializeSender(cfg)
	if err != nil {
		return nil, err
	}
	variation := services.NewAIVariationService(&cfg.Variation)

	// The daily send counter and run locks prefer Redis so multiple
	// instances share quota state; single-node deployments fall back to
	// process memory
	var counter repository.SendCounter
	var locker scheduler.RunLocker
	if rc != nil {
		counter = repository.NewRedisSendCounter(rc, cfg.Cache.RedisPrefix)
		locker = scheduler.NewRedisRunLocker(rc, cfg.Cache.RedisPrefix)
	} else {
		counter = repository.NewMemorySendCounter()
		locker = scheduler.NewMemoryRunLocker()
	}

	// Initialize the send orchestrator
	store := repository.NewGormCampaignStore(campaignRepo, campaignContactRepo, db)
	orchestrator := scheduler.NewCampaignOrchestrator(
		store,
		campaignRepo,
		counter,
		sender,
		variation,
		locker,
		cfg.Orchestrator,
	)
	stopFuncs = append(stopFuncs, orchestrator.Start(context.Background()))

	// Initialize flows
	campaignFlow := businessflow.NewCampaignFlow(
		campaignRepo,
		campaignContactRepo,
		contactRepo,
		customerRepo,
		orchestrator,
		db,
	)
	deliveryFlow := businessflow.NewDeliveryFlow(
		campaignRepo,
		campaignContactRepo,
		db,
	)

	// Initialize handlers
	campaignHandler := handlers.NewCampaignHandler(campaignFlow)
	deliveryHandler := handlers.NewDeliveryHandler(deliveryFlow)
	identity := middleware.NewIdentityMiddleware(customerRepo)

	// Initialize router
	appRouter := router.NewFiberRouter(cfg, identity, campaignHandler, deliveryHandler)

	return &Application{
		router:    appRouter,
		config:    cfg,
		server:    appRouter.GetApp(),
		stopFuncs: stopFuncs,
	}, nil
}
