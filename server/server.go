// Package server assembles the HTTP application from configuration: the
// router with its middleware chain and the optional Kafka, Redis and S3
// integrations behind the order services.
package server

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/tradedesk/tradedesk-api/config"
	"github.com/tradedesk/tradedesk-api/controllers"
	"github.com/tradedesk/tradedesk-api/logger"
	"github.com/tradedesk/tradedesk-api/metrics"
	"github.com/tradedesk/tradedesk-api/middleware"
	"github.com/tradedesk/tradedesk-api/routes"
	"github.com/tradedesk/tradedesk-api/services"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Server is the wired application
type Server struct {
	Router  *gin.Engine
	Orders  *services.OrderService
	Exports *services.ExportService
	Reports *services.ReportService
	Limiter *middleware.RateLimiter

	log     *zap.Logger
	closers []func() error
}

// Option overrides a dependency, mostly for tests
type Option func(*deps)

type deps struct {
	events  services.EventPublisher
	cache   services.RollupCache
	storage services.ArchiveStorage
	now     func() time.Time
}

// WithEvents replaces the configured event publisher
func WithEvents(p services.EventPublisher) Option {
	return func(d *deps) { d.events = p }
}

// WithRollupCache replaces the configured rollup cache
func WithRollupCache(c services.RollupCache) Option {
	return func(d *deps) { d.cache = c }
}

// WithArchiveStorage replaces the configured export storage
func WithArchiveStorage(s services.ArchiveStorage) Option {
	return func(d *deps) { d.storage = s }
}

// WithClock replaces the wall clock of the order services
func WithClock(now func() time.Time) Option {
	return func(d *deps) { d.now = now }
}

// New builds the application on an open, migrated database
func New(ctx context.Context, cfg *config.Config, db *gorm.DB, log *zap.Logger, opts ...Option) (*Server, error) {
	taxRate, err := decimal.NewFromString(cfg.TaxRate)
	if err != nil {
		return nil, fmt.Errorf("invalid TAX_RATE %q: %w", cfg.TaxRate, err)
	}

	s := &Server{log: log}
	d := &deps{}
	for _, opt := range opts {
		opt(d)
	}
	if err := s.integrations(ctx, cfg, d); err != nil {
		s.Close()
		return nil, err
	}

	orderOpts := []services.Option{
		services.WithLogger(log),
		services.WithLocation(cfg.Location()),
		services.WithTaxRate(taxRate),
		services.WithEvents(d.events),
	}
	if d.cache != nil {
		orderOpts = append(orderOpts, services.WithRollupCache(d.cache))
	}
	if d.now != nil {
		orderOpts = append(orderOpts, services.WithClock(d.now))
	}
	s.Orders = services.NewOrderService(db, orderOpts...)
	s.Exports = services.NewExportService(s.Orders, d.storage, log)
	s.Reports = services.NewReportService(db, log)

	auth, err := middleware.EnsureValidToken(cfg)
	if err != nil {
		s.Close()
		return nil, err
	}

	s.Limiter = middleware.NewRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst)
	s.Router = NewRouter(cfg, log, s.Limiter)
	routes.Setup(s.Router, db, auth, routes.NewHandlers(db,
		controllers.NewOrderController(s.Orders, s.Exports),
		controllers.NewReportController(s.Reports),
	))
	return s, nil
}

// integrations connects whatever optional backend is configured and not
// already supplied
func (s *Server) integrations(ctx context.Context, cfg *config.Config, d *deps) error {
	if d.events == nil {
		if len(cfg.KafkaBrokers) > 0 {
			publisher := services.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, s.log)
			s.closers = append(s.closers, publisher.Close)
			d.events = publisher
			s.log.Info("Publishing order events to Kafka",
				zap.Strings("brokers", cfg.KafkaBrokers),
				zap.String("topic", cfg.KafkaTopic),
			)
		} else {
			d.events = services.NoopPublisher{}
		}
	}

	if d.cache == nil && cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			s.log.Warn("Redis unavailable, rollup cache disabled", zap.String("addr", cfg.RedisAddr), zap.Error(err))
			_ = client.Close()
		} else {
			s.closers = append(s.closers, client.Close)
			d.cache = services.NewRedisRollupCache(client, cfg.RollupCacheTTL, s.log)
		}
	}

	if d.storage == nil && cfg.StorageEnabled() {
		storage, err := services.NewS3Storage(ctx, cfg, s.log)
		if err != nil {
			return fmt.Errorf("configure export storage: %w", err)
		}
		d.storage = storage
	}
	return nil
}

// NewRouter returns an engine with the shared middleware chain
func NewRouter(cfg *config.Config, log *zap.Logger, limiter *middleware.RateLimiter) *gin.Engine {
	router := gin.New()
	router.Use(
		middleware.RequestID(),
		logger.GinMiddleware(log),
		logger.Recovery(log),
		metrics.GinMiddleware(),
		cors.New(corsConfig(cfg.CORSAllowOrigins)),
	)
	if limiter != nil && cfg.RateLimitPerSecond > 0 {
		router.Use(limiter.Middleware())
	}
	return router
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader, "X-Device-ID"},
		ExposeHeaders:    []string{middleware.RequestIDHeader, "Content-Disposition", "X-RateLimit-Limit"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		c.AllowAllOrigins = true
		c.AllowCredentials = false
		return c
	}
	c.AllowOrigins = origins
	return c
}

// Close releases the integrations in reverse order of creation
func (s *Server) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
