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
	"gorm.io/gorm"

	"spotwise-backend/config"
	"spotwise-backend/internal/api"
	"spotwise-backend/internal/capture"
	"spotwise-backend/internal/db"
	"spotwise-backend/internal/detect"
	"spotwise-backend/internal/history"
	"spotwise-backend/internal/hub"
	"spotwise-backend/internal/ingest"
	"spotwise-backend/internal/notification"
	"spotwise-backend/internal/reconcile"
	"spotwise-backend/internal/registry"
	"spotwise-backend/internal/reservation"
	"spotwise-backend/internal/stats"
)

func main() {
	logger := log.New(os.Stdout, "spotwise ", log.LstdFlags)

	config.LoadEnv()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	var gormDB *gorm.DB
	if cfg.History.Enabled || cfg.Push.Enabled() {
		gormDB, err = db.Init(&cfg.Database)
		if err != nil {
			logger.Fatalf("failed to initialize database: %v", err)
		}
		logger.Println("database initialized successfully")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Registry, seeded with mock spots until the first detection arrives.
	ids := registry.NewIDGenerator()
	codes := registry.NewCodeGenerator()
	mock := registry.NewMockGenerator(cfg.Registry.MockSeed, ids, codes)
	store := registry.NewStore(mock.Generate(cfg.Registry.DefaultCount))
	go store.Run(ctx)

	loadTimer := time.AfterFunc(cfg.Registry.InitialLoadDelay, func() {
		if err := store.MarkLoaded(ctx); err != nil {
			logger.Printf("failed to clear loading state: %v", err)
		}
	})
	defer loadTimer.Stop()

	var (
		historyStore  history.Store
		snapshots     ingest.Recorder
		events        reservation.EventRecorder
		pruner        *history.Pruner
		captureStatus api.CaptureStatus
		loop          *capture.Loop
	)
	if cfg.History.Enabled {
		historyStore = history.NewGormStore(gormDB)
		snapshots = historyStore
		events = historyStore
		pruner = history.NewPruner(historyStore, cfg.History.Retention)
		if err := pruner.Start(cfg.History.PruneSchedule); err != nil {
			logger.Fatalf("failed to start history pruner: %v", err)
		}
	}

	detector := detect.NewClient(cfg.Detection)
	ingestSvc := ingest.NewService(
		detector,
		detect.NewAdapter(ids, cfg.Detection.NotFreeLabel),
		reconcile.NewEngine(cfg.Registry.DefaultCount, mock, ids),
		store,
		snapshots,
	)
	reservations := reservation.NewManager(store, codes, cfg.Reservation, events)

	wsHub := hub.NewHub()
	go wsHub.Run(ctx)
	store.OnChange(wsHub.OnRegistryChange)

	var webpushOptions *webpush.Options
	var subscriptionDB *gorm.DB
	if cfg.Push.Enabled() {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		subscriptionDB = gormDB
		workerPool := notification.NewWorkerPool(cfg.WorkerPool.Size, gormDB, webpushOptions)
		workerPool.Start(ctx)
		store.OnChange(workerPool.OnRegistryChange)
	} else {
		logger.Println("VAPID keys not configured, availability alerts disabled")
	}

	if cfg.Capture.Enabled {
		source := capture.NewDirSource(cfg.Capture.FramesDir, cfg.Capture.JPEGQuality)
		if err := source.Open(); err != nil {
			logger.Printf("capture disabled: %v", err)
		} else {
			loop = capture.NewLoop(source, ingestSvc, cfg.Capture.Interval)
			if err := loop.Start(ctx); err != nil {
				logger.Fatalf("failed to start capture loop: %v", err)
			}
			captureStatus = loop
		}
	}

	handler := api.NewHandler(api.Deps{
		Store:        store,
		Ingest:       ingestSvc,
		Visualizer:   detector,
		Reservations: reservations,
		Navigator:    stats.NewNavigator(cfg.Navigation),
		History:      historyStore,
		DB:           subscriptionDB,
		Capture:      captureStatus,
		Webpush:      webpushOptions,
	})
	router := api.NewRouter(cfg.Server, handler, wsHub)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Println("Shutdown signal received, stopping services...")

	if loop != nil {
		loop.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("HTTP server Shutdown: %v", err)
	}
	if pruner != nil {
		pruner.Stop()
	}

	cancel()
	<-store.Done()
	logger.Println("Server gracefully stopped")
}
