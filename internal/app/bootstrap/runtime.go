package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"gorm.io/gorm"

	cacheadapter "github.com/viralforge/trading-signals/internal/adapters/cache"
	eventadapter "github.com/viralforge/trading-signals/internal/adapters/events"
	httpadapter "github.com/viralforge/trading-signals/internal/adapters/http"
	metricsadapter "github.com/viralforge/trading-signals/internal/adapters/metrics"
	"github.com/viralforge/trading-signals/internal/adapters/payments"
	"github.com/viralforge/trading-signals/internal/adapters/postgres"
	"github.com/viralforge/trading-signals/internal/adapters/security"
	"github.com/viralforge/trading-signals/internal/application"
	"github.com/viralforge/trading-signals/internal/domain"
	"github.com/viralforge/trading-signals/internal/ports"
)

const redisPingTimeout = 5 * time.Second

// Runtime owns the process-wide handles. The key-value store is built once
// here and handed to every component that needs it.
type Runtime struct {
	cfg     Config
	logger  *slog.Logger
	db      *gorm.DB
	redis   *redis.Client
	store   *cacheadapter.RedisStore
	repos   postgres.Repositories
	metrics *metricsadapter.Recorder
}

func newLogger(cfg Config) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)
	return logger
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.validateServer(); err != nil {
		return nil, err
	}

	logger := newLogger(cfg)
	logger.Info("bootstrapping trading signals service",
		"service", cfg.ServiceID,
		"http_port", cfg.HTTPPort,
		"grpc_port", cfg.GRPCPort,
	)

	db, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.MaxDBConns)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("gorm sql db: %w", err)
	}
	if err := postgres.RunMigrations(ctx, db); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	redisClient, err := cacheadapter.Connect(ctx, cfg.RedisURL, redisPingTimeout)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	return &Runtime{
		cfg:     cfg,
		logger:  logger,
		db:      db,
		redis:   redisClient,
		store:   cacheadapter.NewRedisStore(redisClient),
		repos:   postgres.NewRepositories(db),
		metrics: metricsadapter.NewRecorder(),
	}, nil
}

func (r *Runtime) close() {
	_ = r.redis.Close()
	if sqlDB, err := r.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func (r *Runtime) buildHandler() (http.Handler, error) {
	if err := r.cfg.validateBilling(); err != nil {
		return nil, err
	}
	signer, err := security.NewJWTSigner(r.cfg.JWTSecret, r.cfg.JWTIssuer)
	if err != nil {
		return nil, fmt.Errorf("init jwt signer: %w", err)
	}
	provider, err := payments.NewStripeProvider(payments.StripeConfig{
		SecretKey:       r.cfg.StripeSecretKey,
		WebhookSecret:   r.cfg.StripeWebhookSecret,
		PriceID:         r.cfg.StripePriceID,
		FrontendURL:     r.cfg.FrontendURL,
		BaseURL:         r.cfg.StripeAPIBase,
		BreakerFailures: uint32(r.cfg.BreakerFailures),
		BreakerTimeout:  r.cfg.BreakerTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("init stripe: %w", err)
	}

	svc := application.NewService(application.Dependencies{
		Config: application.Config{
			TokenTTL:        r.cfg.TokenTTL,
			SignalsCacheKey: r.cfg.SignalsCacheKey,
			SignalsCacheTTL: r.cfg.SignalsCacheTTL,
			PriceLabel:      r.cfg.PriceLabel,
		},
		Users:       r.repos.Users,
		Hasher:      security.NewBcryptHasher(r.cfg.BcryptCost),
		TokenSigner: signer,
		Payments:    provider,
		Guard:       newGuard(r.cfg, r.store),
		SignalCache: newSignalCache(r.cfg, r.store, r.metrics),
		Source: application.NewMockSignalGenerator(application.GeneratorConfig{
			Latency: r.cfg.SignalLatency,
		}, nil, nil),
		Metrics: r.metrics,
	})

	handler := httpadapter.NewHandler(httpadapter.HandlerDeps{
		Service: svc,
		Limiter: newLimiter(r.cfg, r.store, r.metrics),
		Limits: httpadapter.RateLimits{
			Signup:  r.cfg.RateLimits.Signup,
			Login:   r.cfg.RateLimits.Login,
			Signals: r.cfg.RateLimits.Signals,
		},
		TrustedProxies: r.cfg.TrustedProxies,
		Database:       r.repos.Users,
		Redis:          r.store,
	})
	return httpadapter.NewRouter(handler, httpadapter.RouterOptions{
		AllowedOrigins: r.cfg.AllowedOrigins,
		Observer:       r.metrics,
		Metrics:        r.metrics.Handler(),
	}), nil
}

func newLimiter(cfg Config, store *cacheadapter.RedisStore, metrics ports.Metrics) *application.RateLimiter {
	return application.NewRateLimiter(store, application.RateLimiterConfig{FailOpen: cfg.RateLimitFailOpen}, metrics)
}

func newGuard(cfg Config, store ports.KeyValueStore) *application.IdempotencyGuard {
	return application.NewIdempotencyGuard(store, application.IdempotencyConfig{
		Retention: cfg.IdempotencyRetention,
		ClaimTTL:  cfg.IdempotencyClaimTTL,
	})
}

func newSignalCache(cfg Config, store ports.KeyValueStore, metrics ports.Metrics) *application.ReadThroughCache[[]domain.Signal] {
	return application.NewReadThroughCache[[]domain.Signal](store, application.ReadThroughConfig{FailClosed: cfg.CacheFailClosed}, metrics)
}

func (r *Runtime) RunAPI(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer r.close()

	router, err := r.buildHandler()
	if err != nil {
		return err
	}
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", r.cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", r.cfg.GRPCPort))
	if err != nil {
		return fmt.Errorf("listen gRPC: %w", err)
	}

	errCh := make(chan error, 2)
	go func() {
		r.logger.Info("http server started", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		r.logger.Info("grpc health server started", "addr", lis.Addr().String())
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		r.logger.Info("shutdown signal received")
	case runErr = <-errCh:
		r.logger.Error("server failure", "error", runErr)
	}

	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
	grpcServer.GracefulStop()
	return runErr
}

// RunWorker relays outbox rows to Kafka, or to the log when no brokers are
// configured.
func (r *Runtime) RunWorker(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer r.close()

	var publisher ports.EventPublisher = eventadapter.NewLoggingPublisher(r.logger)
	if len(r.cfg.KafkaBrokers) > 0 {
		kafkaPublisher, err := eventadapter.NewKafkaPublisher(r.cfg.KafkaBrokers, r.cfg.KafkaTopics)
		if err != nil {
			return fmt.Errorf("init kafka publisher: %w", err)
		}
		defer func() { _ = kafkaPublisher.Close() }()
		publisher = kafkaPublisher
	} else {
		r.logger.Warn("no kafka brokers configured, outbox events go to the log")
	}

	worker := eventadapter.NewOutboxWorker(r.logger, r.repos.Outbox, publisher, eventadapter.OutboxWorkerConfig{
		Interval:   r.cfg.OutboxPollInterval,
		BatchSize:  r.cfg.OutboxBatchSize,
		ClaimTTL:   r.cfg.OutboxClaimTTL,
		MaxRetries: r.cfg.OutboxMaxRetries,
	})
	r.logger.Info("outbox worker started")
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
