package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/avolkov/identity-auth/internal/core/port"
	"github.com/avolkov/identity-auth/internal/infra/config"
	"github.com/avolkov/identity-auth/internal/infra/database"
	kafkainfra "github.com/avolkov/identity-auth/internal/infra/kafka"
	"github.com/avolkov/identity-auth/internal/infra/logger"
	"github.com/avolkov/identity-auth/internal/infra/notify"
	redisinfra "github.com/avolkov/identity-auth/internal/infra/redis"
	"github.com/avolkov/identity-auth/internal/infra/security"
	postgresrepo "github.com/avolkov/identity-auth/internal/repository/postgres"
	redisrepo "github.com/avolkov/identity-auth/internal/repository/redis"
	"github.com/avolkov/identity-auth/internal/transport/http/middleware"
	"github.com/avolkov/identity-auth/internal/transport/http/routes"
	"github.com/avolkov/identity-auth/internal/usecase"
)

type Application struct {
	cfg    *config.AppConfig
	engine *gin.Engine
	logger *zap.Logger
	pool   *pgxpool.Pool
	redis  *redisinfra.Client
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
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

	hasher, err := security.NewPasswordHasher(security.Argon2Config{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	})
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init password hasher: %w", err)
	}

	codec, err := security.NewTokenCodec([]byte(cfg.JWT.Secret))
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init token codec: %w", err)
	}

	issuer, err := security.NewTokenIssuer(codec, security.TokenTTLs{
		Access:      cfg.JWT.AccessTokenTTL,
		Refresh:     cfg.JWT.RefreshTokenTTL,
		Partial:     cfg.JWT.PartialTokenTTL,
		EmailVerify: cfg.JWT.EmailVerifyTokenTTL,
	})
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init token issuer: %w", err)
	}

	identities := postgresrepo.NewIdentityRepository(pool)
	codeStore := redisrepo.NewTwoFactorCodeStore(redisClient.Client(), cfg.Redis.TwoFactorPrefix)

	var eventPublisher port.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaProducer, err := kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			eventPublisher = kafkainfra.NewEventPublisher(kafkaProducer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	notifier := notify.NewLoggingNotifier(log)

	twoFactorService := usecase.NewTwoFactorService(codeStore, cfg.TwoFactor.CodeTTL)
	authService := usecase.NewAuthService(identities, hasher, issuer, twoFactorService, notifier, eventPublisher, log, cfg.Verification.RequireVerified)
	registrationService := usecase.NewRegistrationService(cfg, identities, hasher, issuer, notifier, eventPublisher, log)

	metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{Namespace: "auth"})
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	engine := routes.Register(routes.Dependencies{
		Config:   cfg,
		Logger:   log,
		Issuer:   issuer,
		Metrics:  metrics,
		Database: pool,
		Cache:    redisClient,
		Services: routes.ServiceSet{
			Auth:         authService,
			Registration: registrationService,
		},
	})

	return &Application{
		cfg:    cfg,
		engine: engine,
		logger: log,
		pool:   pool,
		redis:  redisClient,
	}, nil
}

func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer func() {
		if a.pool != nil {
			a.pool.Close()
		}
	}()
	defer func() {
		if a.redis != nil {
			_ = a.redis.Close()
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

	a.logger.Info("starting identity auth API",
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
