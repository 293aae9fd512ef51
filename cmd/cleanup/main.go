package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	dbutils "github.com/tendant/db-utils/db"
	"github.com/tendant/simple-emailauth/pkg/config"
	"github.com/tendant/simple-emailauth/pkg/emailidentity"
	"github.com/tendant/simple-emailauth/pkg/retention"
)

type Config struct {
	DbConfig        config.DatabaseConfig
	EmailAuthConfig config.EmailAuthConfig
}

// One-shot retention sweep, intended for cron.
func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg := Config{}
	cleanenv.ReadEnv(&cfg)

	dbConfig := cfg.DbConfig.ToDbConfig()
	pool, err := dbutils.NewDbPool(context.Background(), dbConfig)
	if err != nil {
		slog.Error("Failed creating dbpool", "db", dbConfig.Database, "host", dbConfig.Host, "port", dbConfig.Port, "user", dbConfig.User)
		os.Exit(-1)
	}
	defer pool.Close()

	repo := emailidentity.NewPostgresEmailIdentityRepository(pool)
	sweeper := retention.NewSweeper(repo, cfg.EmailAuthConfig.VerificationWindow())

	result, err := sweeper.Sweep(context.Background())
	if err != nil {
		slog.Error("Sweep failed", "err", err)
		os.Exit(-1)
	}

	fmt.Printf("Deleted %d expired emails and %d stale accounts\n", result.Emails, result.Accounts)
}
