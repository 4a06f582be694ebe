package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"scriptportal-backend-go/internal/autosave"
	"scriptportal-backend-go/internal/clock"
	"scriptportal-backend-go/internal/config"
	"scriptportal-backend-go/internal/contactcache"
	"scriptportal-backend-go/internal/db"
	httpapi "scriptportal-backend-go/internal/http"
	"scriptportal-backend-go/internal/migrations"
	"scriptportal-backend-go/internal/services"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	cleanupLogs, err := setupLogger()
	if err != nil {
		log.Printf("logger setup failed: %v", err)
	} else {
		defer cleanupLogs()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer database.Close()
	if err := migrations.Apply(ctx, database, "migrations"); err != nil {
		log.Fatalf("migrations: %v", err)
	}
	tokens := httpapi.NewTokenService(cfg)
	if err := services.EnsureAdmin(ctx, database, tokens, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		log.Fatalf("admin seed: %v", err)
	}
	tiers, err := config.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		log.Fatalf("catalog: %v", err)
	}

	cache, err := contactcache.Open(cfg.ContactCachePath)
	if err != nil {
		log.Printf("contact cache disabled: %v", err)
		cache = nil
	}
	contacts := &services.Contacts{
		DB:        database,
		Retention: time.Duration(cfg.ContactRetentionHours) * time.Hour,
	}
	if cache != nil {
		contacts.Cache = cache
		defer cache.Close()
	}

	queue := autosave.New(clock.Real(), time.Duration(cfg.AutosaveDebounceMS)*time.Millisecond, func(key string, err error) {
		log.Printf("autosave %s: %v", key, err)
	})
	reviews := &services.Reviews{DB: database, Queue: queue}

	hub := services.NewDashboardHub()
	go hub.Run(ctx)

	server := httpapi.NewServer(database, cfg, reviews, contacts, hub, tiers)
	go metricsLoop(ctx, server)
	if contacts.Cache != nil {
		go contactSyncLoop(ctx, contacts, time.Duration(cfg.ContactSyncSeconds)*time.Second)
	}

	addr := ":8080"
	if value := os.Getenv("PORT"); value != "" {
		addr = ":" + value
	}
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.Router(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("listening on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	<-stop
	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	_ = httpServer.Shutdown(ctxShutdown)
	if err := queue.Close(ctxShutdown); err != nil {
		log.Printf("autosave flush: %v", err)
	}
	cancel()
	log.Printf("shutdown complete")
}

func setupLogger() (func(), error) {
	logDir := os.Getenv("LOG_DIR")
	if logDir == "" {
		logDir = "storage/logs"
	}
	retentionDays := 7
	if value := os.Getenv("LOG_RETENTION_DAYS"); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil && parsed > 0 {
			if parsed > 30 {
				parsed = 30
			}
			retentionDays = parsed
		}
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, err
	}

	var mu sync.Mutex
	currentDate := time.Now().Format("2006-01-02")
	file, err := openLogFile(logDir, currentDate)
	if err != nil {
		return nil, err
	}
	log.SetOutput(io.MultiWriter(os.Stdout, file))
	cleanupOldLogs(logDir, retentionDays)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				date := time.Now().Format("2006-01-02")
				mu.Lock()
				if date != currentDate {
					newFile, err := openLogFile(logDir, date)
					if err == nil {
						log.SetOutput(io.MultiWriter(os.Stdout, newFile))
						_ = file.Close()
						file = newFile
						currentDate = date
						cleanupOldLogs(logDir, retentionDays)
					}
				}
				mu.Unlock()
			case <-ctx.Done():
				return
			}
		}
	}()

	return func() {
		cancel()
		mu.Lock()
		_ = file.Close()
		mu.Unlock()
	}, nil
}

func openLogFile(logDir, date string) (*os.File, error) {
	filename := filepath.Join(logDir, fmt.Sprintf("scriptportal-%s.log", date))
	return os.OpenFile(filename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}

func cleanupOldLogs(logDir string, retentionDays int) {
	entries, err := os.ReadDir(logDir)
	if err != nil {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -(retentionDays - 1))
	for _, entry := range entries {
		name := entry.Name()
		if !entry.Type().IsRegular() {
			continue
		}
		if !strings.HasPrefix(name, "scriptportal-") || !strings.HasSuffix(name, ".log") {
			continue
		}
		datePart := strings.TrimSuffix(strings.TrimPrefix(name, "scriptportal-"), ".log")
		logDate, err := time.Parse("2006-01-02", datePart)
		if err != nil {
			continue
		}
		if logDate.Before(cutoff) {
			_ = os.Remove(filepath.Join(logDir, name))
		}
	}
}

func metricsLoop(ctx context.Context, server *httpapi.Server) {
	interval := time.Duration(server.Config.MetricsSampleSeconds) * time.Second
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			sample, err := services.CaptureMetrics(server.DB, server.Config.MetricsDiskPath)
			if err != nil {
				log.Printf("metrics capture: %v", err)
				continue
			}
			server.Hub.Broadcast(sample)
		case <-ctx.Done():
			return
		}
	}
}

// contactSyncLoop pushes cached contacts the database missed and prunes old
// synced entries.
func contactSyncLoop(ctx context.Context, contacts *services.Contacts, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			result, err := contacts.Sync(ctx, time.Now().UTC())
			if err != nil {
				log.Printf("contact sync: %v", err)
				continue
			}
			if result.Pushed > 0 || result.Failed > 0 || result.Pruned > 0 {
				log.Printf("contact sync: pushed=%d failed=%d pruned=%d", result.Pushed, result.Failed, result.Pruned)
			}
		case <-ctx.Done():
			return
		}
	}
}
