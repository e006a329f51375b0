package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ledgerdesk/platform-auth/internal/core/port"
	"github.com/ledgerdesk/platform-auth/internal/infra/config"
	"github.com/ledgerdesk/platform-auth/internal/infra/database"
	kafkainfra "github.com/ledgerdesk/platform-auth/internal/infra/kafka"
	"github.com/ledgerdesk/platform-auth/internal/infra/logger"
	"github.com/ledgerdesk/platform-auth/internal/infra/notify"
	redisinfra "github.com/ledgerdesk/platform-auth/internal/infra/redis"
	"github.com/ledgerdesk/platform-auth/internal/infra/security"
	"github.com/ledgerdesk/platform-auth/internal/infra/session"
	"github.com/ledgerdesk/platform-auth/internal/infra/telemetry"
	postgresrepo "github.com/ledgerdesk/platform-auth/internal/repository/postgres"
	redisrepo "github.com/ledgerdesk/platform-auth/internal/repository/redis"
	"github.com/ledgerdesk/platform-auth/internal/transport/http/middleware"
	"github.com/ledgerdesk/platform-auth/internal/transport/http/routes"
	"github.com/ledgerdesk/platform-auth/internal/usecase"
)

// Application owns the wired object graph and the HTTP server lifecycle.
type Application struct {
	cfg      *config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	pool     *pgxpool.Pool
	redis    *redisinfra.Client
	registry *session.Registry
	producer *kafkainfra.Producer
}

// New wires the full service graph from configuration.
func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	metrics, err := telemetry.Attach(cfg)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	tokens, err := security.NewTokenService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.AccessTokenTTL, cfg.JWT.PendingMFATTL)
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init token service: %w", err)
	}

	hasher := security.NewPasswordHasher(cfg.Security.BcryptCost)
	repos := postgresrepo.NewRepositories(pool)

	var producer *kafkainfra.Producer
	var audit port.AuditPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("kafka producer init failed, audit events will only be logged", zap.Error(err))
			audit = kafkainfra.NewStubPublisher(log)
		} else {
			audit = kafkainfra.NewAuditPublisher(producer, cfg.App, log)
			log.Info("kafka audit publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, audit events will only be logged")
		audit = kafkainfra.NewStubPublisher(log)
	}

	var email port.EmailSender
	if cfg.Notify.ResendAPIKey != "" {
		email, err = notify.NewResendEmailSender(cfg.Notify, log)
		if err != nil {
			return nil, fmt.Errorf("init email sender: %w", err)
		}
	} else {
		log.Info("resend api key not configured, email delivery is log-only")
		email = notify.NewLogEmailSender(log)
	}

	var sms port.SMSSender
	if cfg.Notify.SMSGatewayURL != "" {
		sms, err = notify.NewGatewaySMSSender(cfg.Notify, log)
		if err != nil {
			return nil, fmt.Errorf("init sms sender: %w", err)
		}
	} else {
		log.Info("sms gateway not configured, sms delivery is log-only")
		sms = notify.NewLogSMSSender(log)
	}

	registry := session.NewRegistry(log,
		session.WithIdleTimeout(cfg.Session.IdleTimeout),
		session.WithSweepInterval(cfg.Session.SweepInterval),
	)

	rateLimitStore := redisrepo.NewRateLimitRepository(redisClient.Client(), redisrepo.SlidingWindowConfig{
		KeyPrefix: cfg.Redis.RateLimitPrefix,
		TTL:       cfg.Redis.RateLimitTTL,
	})
	rateLimiter := middleware.NewRateLimiter(rateLimitStore, log)

	mfaService := usecase.NewMFAService(&cfg.MFA, repos.Users, hasher, email, sms, audit, cfg.Security.NotificationTimeout, log)
	authService := usecase.NewAuthService(&cfg.Security, repos.Users, hasher, tokens, registry, mfaService, audit, metrics, log)
	registrationService := usecase.NewRegistrationService(&cfg.Security, cfg.App.BaseURL, repos.Users, hasher, email, sms, audit, log)
	resetService := usecase.NewPasswordResetService(&cfg.Security, cfg.App.BaseURL, repos.Users, repos.PasswordHistory, hasher, email, sms, audit, log)

	engine := routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: rateLimiter,
		Telemetry:   metrics,
		Database:    pool,
		Cache:       redisClient,
		Sessions:    registry,
		Services: routes.ServiceSet{
			Auth:          authService,
			Registration:  registrationService,
			PasswordReset: resetService,
			MFA:           mfaService,
		},
	})

	return &Application{
		cfg:      cfg,
		engine:   engine,
		logger:   log,
		pool:     pool,
		redis:    redisClient,
		registry: registry,
		producer: producer,
	}, nil
}

// Run starts the HTTP server and blocks until the context is cancelled or
// the server fails.
func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer a.pool.Close()
	defer func() {
		_ = a.redis.Close()
	}()
	defer a.registry.Shutdown()
	defer func() {
		if a.producer != nil {
			_ = a.producer.Close()
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting auth API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}
