package config

import (
	"context"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// App holds core runtime configuration for the quiz session engine.
type App struct {
	Name                    string        `env:"APP_NAME" envDefault:"quiz-engine"`
	Env                     string        `env:"APP_ENV" envDefault:"development"`
	HTTPAddr                string        `env:"HTTP_ADDR" envDefault:"0.0.0.0:8080"`
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_SECONDS" envDefault:"20s"`

	Postgres Postgres
	Redis    Redis
	Security Security
	Engine   Engine
}

// Postgres captures connection info for the SQL database backing the quiz
// store and the attempt sink.
type Postgres struct {
	Host     string `env:"PG_HOST,notEmpty"`
	Port     int    `env:"PG_PORT" envDefault:"5432"`
	User     string `env:"PG_USER,notEmpty"`
	Password string `env:"PG_PASSWORD,notEmpty"`
	Database string `env:"PG_DATABASE,notEmpty"`
	SSLMode  string `env:"PG_SSL_MODE" envDefault:"disable"`
}

// Redis holds cache + pub/sub configuration.
type Redis struct {
	Addr     string `env:"REDIS_ADDR,notEmpty"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	PoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"20"`
}

// Security stores secrets for credential validation.
type Security struct {
	JWTSecret string `env:"JWT_SECRET,notEmpty"`
}

// Engine groups session runtime knobs.
type Engine struct {
	SweepInterval      time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"1s"`
	HandshakeDeadline  time.Duration `env:"HANDSHAKE_DEADLINE" envDefault:"10s"`
	SendQueueSize      int           `env:"WS_SEND_QUEUE_SIZE" envDefault:"256"`
	QuizCacheTTL       time.Duration `env:"QUIZ_CACHE_TTL" envDefault:"5m"`
	CompletionsChannel string        `env:"COMPLETIONS_CHANNEL" envDefault:"attempt:completed"`
}

// Load parses environment variables into App config.
func Load(ctx context.Context) (*App, error) {
	cfg := &App{}
	if err := env.ParseWithOptions(cfg, env.Options{RequiredIfNoDef: true}); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
