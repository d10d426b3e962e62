package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
)

func main() {
	command := flag.String("command", "up", "Migration command: up, down or status")
	dir := flag.String("dir", "db/migrations", "Directory containing migration files")
	flag.Parse()

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	dsn, err := dsnFromEnv()
	if err != nil {
		logger.Fatal().Err(err).Msg("incomplete database configuration")
	}

	migrationDir, err := filepath.Abs(*dir)
	if err != nil {
		logger.Fatal().Err(err).Str("dir", *dir).Msg("failed to resolve migration directory")
	}
	if _, err := os.Stat(migrationDir); err != nil {
		logger.Fatal().Err(err).Str("dir", migrationDir).Msg("migration directory not readable")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open database connection")
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatal().Err(err).Msg("failed to ping database")
	}

	goose.SetTableName("goose_db_version")

	var runErr error
	switch *command {
	case "up":
		runErr = goose.Up(db, migrationDir)
	case "down":
		runErr = goose.Down(db, migrationDir)
	case "status":
		runErr = goose.Status(db, migrationDir)
	default:
		logger.Fatal().Str("command", *command).Msg("unknown command, use up, down or status")
	}
	if runErr != nil {
		logger.Fatal().Err(runErr).Str("command", *command).Msg("migration failed")
	}
	logger.Info().Str("command", *command).Str("dir", migrationDir).Msg("migration command finished")
}

// dsnFromEnv assembles the connection string from PG_* variables, matching
// the api binary's configuration surface.
func dsnFromEnv() (string, error) {
	get := func(key, fallback string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return fallback
	}

	user := os.Getenv("PG_USER")
	password := os.Getenv("PG_PASSWORD")
	database := os.Getenv("PG_DATABASE")
	if user == "" || password == "" || database == "" {
		return "", fmt.Errorf("PG_USER, PG_PASSWORD and PG_DATABASE must be set")
	}

	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		get("PG_HOST", "localhost"), get("PG_PORT", "5432"),
		user, password, database, get("PG_SSL_MODE", "disable")), nil
}
