package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"campus-progression/config"
	"campus-progression/handlers"
	"campus-progression/metrics"
	"campus-progression/progression"
	"campus-progression/services"
	"campus-progression/storage"
	"campus-progression/workers"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("invalid configuration: ", err)
	}

	rules, err := progression.LoadRules(cfg.RulesFile)
	if err != nil {
		log.Fatal("failed to load progression rules: ", err)
	}
	if cfg.RulesFile != "" {
		log.Printf("📜 Progression rules loaded from %s", cfg.RulesFile)
	}

	store := openStore(cfg)

	m := metrics.New()
	progressionService := services.NewProgressionService(store, rules, m)
	catalogService := services.NewCatalogService(store, rules)
	activityService := services.NewActivityService(progressionService, catalogService)
	badgeService := services.NewBadgeService(progressionService)
	insightService := services.NewInsightService(progressionService)
	chatService := services.NewChatService(store)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := catalogService.SeedBadgeTypes(ctx); err != nil {
		log.Fatal(err)
	}
	if cfg.SeedCatalog || cfg.Store == config.StoreMemory {
		if err := catalogService.SeedSamples(ctx); err != nil {
			log.Fatal("failed to seed sample catalog: ", err)
		}
	}

	sweeper := workers.NewBadgeSweepWorker(badgeService, cfg.ReconcileInterval)
	if err := sweeper.Start(ctx); err != nil {
		log.Fatal(err)
	}

	if cfg.ProfileSyncURL != "" {
		syncWorker := workers.NewProfileSyncWorker(activityService, cfg.ProfileSyncURL, cfg.ProfileSyncPath, cfg.ProfileSyncToken, cfg.ProfileSyncInterval)
		syncWorker.Start(ctx)
	}

	app := handlers.NewApp(handlers.Services{
		Progression: progressionService,
		Activity:    activityService,
		Badges:      badgeService,
		Insights:    insightService,
		Chat:        chatService,
		Metrics:     m,
	}, handlers.Options{
		GatewayToken:   cfg.GatewayToken,
		AllowedOrigins: cfg.AllowedOrigins,
		AccessLog:      true,
	})

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s (store: %s)", cfg.Port, cfg.Store)
	log.Println("✅ GatewayAuthMiddleware enforced globally, all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %v", cfg.AllowedOrigins)

	<-ctx.Done()
	log.Println("Shutting down server...")

	if err := sweeper.Stop(); err != nil {
		log.Printf("Badge sweep shutdown error: %v", err)
	}
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	log.Println("Server stopped")
}

func openStore(cfg config.Config) storage.Store {
	if cfg.Store == config.StoreMemory {
		log.Println("⚠️  Using in-memory store, data is lost on restart")
		return storage.NewMemoryStore()
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database: ", err)
	}
	store := storage.NewGormStore(db)
	if err := store.AutoMigrate(); err != nil {
		log.Fatal("failed to migrate database: ", err)
	}
	return store
}
