package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dstark/habitforge/internal/backup"
	"github.com/dstark/habitforge/internal/database"
	"github.com/dstark/habitforge/internal/logging"
	"github.com/dstark/habitforge/internal/server"
)

func main() {
	godotenv.Load()

	logger := logging.Setup(os.Getenv("HABITFORGE_LOG_LEVEL"), os.Getenv("HABITFORGE_LOG_FORMAT"))

	port := envOr("HABITFORGE_PORT", "8080")
	dbPath := envOr("HABITFORGE_DB_PATH", "habitforge.db")

	jwtSecret := os.Getenv("HABITFORGE_JWT_SECRET")
	if jwtSecret == "" {
		logger.Error("HABITFORGE_JWT_SECRET is required")
		os.Exit(1)
	}

	db, err := database.Open(dbPath)
	if err != nil {
		logger.Error("failed to open database", "path", dbPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	backupCfg := backup.Config{
		S3: backup.S3Config{
			Endpoint:  os.Getenv("HABITFORGE_S3_ENDPOINT"),
			Bucket:    os.Getenv("HABITFORGE_S3_BUCKET"),
			Region:    envOr("HABITFORGE_S3_REGION", "us-east-1"),
			AccessKey: os.Getenv("HABITFORGE_S3_ACCESS_KEY"),
			SecretKey: os.Getenv("HABITFORGE_S3_SECRET_KEY"),
		},
		DBPath:        dbPath,
		Passphrase:    os.Getenv("HABITFORGE_BACKUP_PASSPHRASE"),
		ScheduleHour:  envInt("HABITFORGE_BACKUP_HOUR", 3),
		RetentionDays: envInt("HABITFORGE_BACKUP_RETENTION_DAYS", 30),
	}

	pushCfg := server.PushConfig{
		VAPIDPublicKey:  os.Getenv("HABITFORGE_VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey: os.Getenv("HABITFORGE_VAPID_PRIVATE_KEY"),
	}

	srv := server.New(db, []byte(jwtSecret), backupCfg, pushCfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if mgr := srv.BackupManager(); mgr.Enabled() {
		mgr.Start(ctx)
		defer mgr.Stop()
		logger.Info("scheduled backups enabled", "hour", backupCfg.ScheduleHour)
	}

	if sched := srv.PushScheduler(); sched != nil {
		sched.Start(ctx)
		defer sched.Stop()
		logger.Info("push reminders enabled")
	}

	// Expired rate limiter windows are swept periodically.
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				srv.RateLimiter().Cleanup()
			}
		}
	}()

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("habitforge listening", "port", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
