package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/learnstream/quiz-engine/internal/attempt"
	"github.com/learnstream/quiz-engine/internal/auth/jwt"
	"github.com/learnstream/quiz-engine/internal/config"
	"github.com/learnstream/quiz-engine/internal/logging"
	"github.com/learnstream/quiz-engine/internal/metrics"
	"github.com/learnstream/quiz-engine/internal/quiz"
	"github.com/learnstream/quiz-engine/internal/quiz/scoring"
	"github.com/learnstream/quiz-engine/internal/server"
	"github.com/learnstream/quiz-engine/internal/session"
	ws "github.com/learnstream/quiz-engine/pkg/http/ws"
)

// Options carries collaborator implementations the deployment supplies.
type Options struct {
	// CodeVerifier executes code answers against their test cases. When nil,
	// code questions never earn points.
	CodeVerifier scoring.CodeVerifier
}

// Application aggregates shared infrastructure (DB, cache, HTTP server) and
// the session engine.
type Application struct {
	cfg    *config.App
	logger zerolog.Logger

	pool     *pgxpool.Pool
	redis    *redis.Client
	http     *http.Server
	registry *session.Registry
}

// New bootstraps config, logger, Postgres, Redis and the engine wiring.
func New(ctx context.Context, cfg *config.App, opts Options) (*Application, error) {
	logger := logging.New(cfg.Name, cfg.Env)
	logger.Info().Msg("starting application bootstrap")

	connString := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s pool_max_conns=10",
		cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.User, cfg.Postgres.Password, cfg.Postgres.Database, cfg.Postgres.SSLMode)

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	promRegistry := prometheus.NewRegistry()
	engineMetrics := metrics.New(promRegistry)

	tokenMgr := jwt.NewManager(jwt.TokenConfig{
		Secret: []byte(cfg.Security.JWTSecret),
		Issuer: cfg.Name,
	})

	quizStore := quiz.NewCachingStore(
		quiz.NewDefinitionCache(redisClient, cfg.Engine.QuizCacheTTL),
		quiz.NewPostgresStore(pool),
		logger,
	)

	recorder := attempt.NewRecorder(
		attempt.NewPostgresSink(pool),
		attempt.NewPublisher(redisClient, cfg.Engine.CompletionsChannel, logger),
		logger,
	)

	scorer := scoring.NewEngine(opts.CodeVerifier)
	hub := ws.NewHub(logger)

	registry := session.NewRegistry(quizStore, scorer, recorder, hub, engineMetrics, session.RegistryOptions{
		SweepInterval: cfg.Engine.SweepInterval,
	}, logger)

	sessionHandler := session.NewHandler(registry, hub, tokenMgr, engineMetrics, session.HandlerOptions{
		SendQueueSize:     cfg.Engine.SendQueueSize,
		HandshakeDeadline: cfg.Engine.HandshakeDeadline,
	}, logger)

	apiServer := server.NewHTTPServer(cfg, logger, pool, redisClient, promRegistry, sessionHandler.HandleWebSocket)

	return &Application{
		cfg:      cfg,
		logger:   logger,
		pool:     pool,
		redis:    redisClient,
		http:     apiServer,
		registry: registry,
	}, nil
}

// Run starts the HTTP server and waits for termination signals.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server listening")
		if err := a.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		a.logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
		a.logger.Warn().Msg("context canceled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.GracefulShutdownTimeout)
	defer cancel()

	if err := a.http.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("http shutdown error")
	}

	// Session state is ephemeral; stop the sweepers and drop it.
	a.registry.Shutdown()

	a.pool.Close()
	if err := a.redis.Close(); err != nil {
		a.logger.Error().Err(err).Msg("redis shutdown error")
	}

	a.logger.Info().Msg("shutdown complete")
	return nil
}
