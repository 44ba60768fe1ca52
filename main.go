package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "time/tzdata"

	"github.com/gin-gonic/gin"
	"github.com/tradedesk/tradedesk-api/config"
	"github.com/tradedesk/tradedesk-api/logger"
	"github.com/tradedesk/tradedesk-api/models"
	"github.com/tradedesk/tradedesk-api/server"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLog := logger.New(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	defer func() { _ = appLog.Sync() }()

	if err := run(cfg, appLog); err != nil {
		appLog.Fatal("Server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, appLog *zap.Logger) error {
	appLog.Info("Starting TradeDesk API server...", zap.String("env", cfg.GoEnv))
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gormLog := logger.NewGormLogger(appLog, logger.GormLevel(cfg.DBLogLevel))
	if err := config.ConnectDatabase(cfg.DatabaseURL, gormLog, appLog); err != nil {
		return err
	}
	db := config.GetDB()

	if err := models.Migrate(db); err != nil {
		return err
	}
	if err := models.SeedReferenceData(db); err != nil {
		return err
	}
	appLog.Info("Database migration completed successfully")

	srv, err := server.New(ctx, cfg, db, appLog)
	if err != nil {
		return err
	}
	defer func() {
		if err := srv.Close(); err != nil {
			appLog.Warn("Failed to close integrations", zap.Error(err))
		}
	}()
	go srv.Limiter.Cleanup(ctx)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("Server is running", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	appLog.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
