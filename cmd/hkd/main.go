package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"

	"housekeeping-backend/config"
	"housekeeping-backend/internal/api"
	"housekeeping-backend/internal/booking"
	"housekeeping-backend/internal/db"
	"housekeeping-backend/internal/dispatch"
	"housekeeping-backend/internal/feed"
	"housekeeping-backend/internal/inventory"
	"housekeeping-backend/internal/notification"
	"housekeeping-backend/internal/refresh"
	"housekeeping-backend/internal/state"
	"housekeeping-backend/internal/store"
)

func main() {
	// Setup logger
	logger := log.New(os.Stdout, "hkd ", log.LstdFlags)

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)
	loc := cfg.Housekeeping.Location

	// Initialize database
	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)
	st := state.NewStore(state.Snapshot{})

	// The first load must succeed; later reloads may fail and keep the cache.
	refresher := refresh.NewService(cfg, appStore, st)
	if err := refresher.RefreshOnce(ctx); err != nil {
		logger.Fatalf("failed to load initial snapshot: %v", err)
	}
	go refresher.Run(ctx)

	dispatchSvc := dispatch.NewService(st, appStore, loc)
	inventorySvc := inventory.NewService(st, appStore, loc)
	bookingSvc := booking.NewService(st, appStore)
	bookingSvc.SetLocker(inventorySvc.Locker())

	var webpushOptions *webpush.Options
	if cfg.Push.Enabled() {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		pool := notification.NewWorkerPool(cfg.WorkerPool.Size, appStore, webpushOptions)
		pool.Start(ctx)
		dispatchSvc.SetNotifier(pool)
		logger.Printf("notification worker pool started with %d workers", cfg.WorkerPool.Size)
	} else {
		logger.Println("VAPID keys not configured; assignment pushes are disabled")
	}

	if cfg.Feed.Enabled {
		client, err := feed.NewClient(cfg.Feed.RedisURL)
		if err != nil {
			logger.Fatalf("failed to create redis client: %v", err)
		}
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Printf("Warning: redis not reachable, relying on periodic refresh: %v", err)
		}
		changes := feed.New(client, cfg.Feed.Channel)
		dispatchSvc.SetAnnouncer(changes)
		inventorySvc.SetAnnouncer(changes)
		bookingSvc.SetAnnouncer(changes)
		go changes.Run(ctx, client, st)
	}

	// Initialize router
	router := api.NewRouter(api.Deps{
		Config:    cfg,
		Store:     appStore,
		State:     st,
		Dispatch:  dispatchSvc,
		Inventory: inventorySvc,
		Bookings:  bookingSvc,
		WebPush:   webpushOptions,
	})
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start the server in a goroutine
	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	// Setup signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Println("Shutdown signal received, stopping services...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}

	logger.Println("Server gracefully stopped")
}
