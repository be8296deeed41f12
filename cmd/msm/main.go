package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/Sahaj33-op/msm/internal/api"
	"github.com/Sahaj33-op/msm/internal/background"
	"github.com/Sahaj33-op/msm/internal/backup"
	"github.com/Sahaj33-op/msm/internal/config"
	"github.com/Sahaj33-op/msm/internal/console"
	"github.com/Sahaj33-op/msm/internal/database"
	"github.com/Sahaj33-op/msm/internal/lifecycle"
	"github.com/Sahaj33-op/msm/internal/logging"
	"github.com/Sahaj33-op/msm/internal/scheduler"
	"github.com/Sahaj33-op/msm/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := setupLogging(cfg); err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logging.Close()

	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		runMigrations(cfg)
		return
	}

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	log.Println("Running database migrations...")
	if err := db.Migrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	servers := store.NewServerStore(db.DB)
	schedules := store.NewScheduleStore(db.DB)
	backupRecords := store.NewBackupStore(db.DB)

	registry := console.NewRegistry()
	engine := lifecycle.NewEngine(cfg, servers, registry)
	backups := backup.NewService(servers, backupRecords, cfg.Storage.BackupDir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Reconcile records left behind by a previous run before serving.
	if corrected, err := engine.SyncAll(ctx); err != nil {
		log.Printf("Startup reconciliation failed: %v", err)
	} else if corrected > 0 {
		log.Printf("Startup reconciliation corrected %d server records", corrected)
	}

	tasks := background.NewTaskManager(0)
	tasks.Register("sync-servers", 10*time.Second, true, func(ctx context.Context) {
		if _, err := engine.SyncAll(ctx); err != nil {
			log.Printf("[Background] sync failed: %v", err)
		}
	})
	tasks.Register("cleanup-registry", 30*time.Second, false, func(context.Context) {
		registry.CleanupDead()
	})
	tasks.Register("port-audit", time.Minute, false, func(ctx context.Context) {
		if _, err := engine.AuditPorts(ctx); err != nil {
			log.Printf("[Background] port audit failed: %v", err)
		}
	})
	tasks.Start(ctx)
	defer tasks.Stop()

	dispatcher := scheduler.NewDispatcher(schedules, engine, backups, cfg.Scheduler.CheckInterval)
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	log.Println("All components initialized successfully")

	router := api.SetupRouter(api.NewHandler(cfg, servers, schedules, engine, backups))
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	dispatcher.Stop()
	tasks.Stop()
	cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

func setupLogging(cfg *config.Config) error {
	if cfg != nil && strings.TrimSpace(cfg.Logging.File) == "" {
		dataDir := cfg.Storage.DataDir
		if dataDir == "" {
			dataDir = "./data"
		}
		cfg.Logging.File = filepath.Join(dataDir, "logs", "msm.log")
	}
	if cfg != nil && strings.TrimSpace(cfg.Logging.File) != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			return err
		}
	}
	_, err := logging.Init(cfg.Logging)
	return err
}

func runMigrations(cfg *config.Config) {
	log.Println("Running database migrations...")

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Println("Migrations completed successfully")
}
