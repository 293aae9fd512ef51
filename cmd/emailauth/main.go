package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/tendant/chi-demo/app"
	dbutils "github.com/tendant/db-utils/db"
	"github.com/tendant/simple-emailauth/pkg/config"
	"github.com/tendant/simple-emailauth/pkg/emailidentity"
	emailapi "github.com/tendant/simple-emailauth/pkg/emailidentity/api"
	"github.com/tendant/simple-emailauth/pkg/login"
	loginapi "github.com/tendant/simple-emailauth/pkg/login/api"
	"github.com/tendant/simple-emailauth/pkg/notification"
	"github.com/tendant/simple-emailauth/pkg/retention"
	"github.com/tendant/simple-emailauth/pkg/tokengenerator"
)

type JwtConfig struct {
	JwtSecret   string        `env:"JWT_SECRET" env-default:"very-secure-jwt-secret"`
	TokenExpiry time.Duration `env:"JWT_TOKEN_EXPIRY" env-default:"24h"`
}

type Config struct {
	DbConfig        config.DatabaseConfig
	AppConfig       app.AppConfig
	JwtConfig       JwtConfig
	EmailConfig     config.EmailConfig
	EmailAuthConfig config.EmailAuthConfig
}

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg := Config{}
	cleanenv.ReadEnv(&cfg)

	server := app.DefaultApp()

	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)

	dbConfig := cfg.DbConfig.ToDbConfig()
	pool, err := dbutils.NewDbPool(context.Background(), dbConfig)
	if err != nil {
		slog.Error("Failed creating dbpool", "db", dbConfig.Database, "host", dbConfig.Host, "port", dbConfig.Port, "user", dbConfig.User)
		os.Exit(-1)
	}

	repo := emailidentity.NewPostgresEmailIdentityRepository(pool)

	notificationManager, err := notification.NewNotificationManagerWithOptions(
		cfg.EmailAuthConfig.BaseURL,
		notification.WithSMTP(cfg.EmailConfig.ToSMTPConfig()),
		notification.WithDefaultTemplates(),
	)
	if err != nil {
		slog.Error("Failed creating notification manager", "err", err)
		os.Exit(-1)
	}

	credentialStore := login.NewBcryptCredentialStore(repo)

	emailService := emailidentity.NewEmailIdentityService(
		repo,
		tokengenerator.NewRandomGenerator(),
		credentialStore,
		notificationManager,
		emailidentity.WithVerificationWindow(cfg.EmailAuthConfig.VerificationWindow()),
		emailidentity.WithSingleEmailMode(cfg.EmailAuthConfig.SingleEmailMode),
		emailidentity.WithSiteName(cfg.EmailAuthConfig.SiteName),
	)

	loginService := login.NewLoginService(repo)
	tokenService := login.NewTokenService(cfg.JwtConfig.JwtSecret, cfg.JwtConfig.TokenExpiry)

	emailHandle := emailapi.NewHandler(emailService)
	loginHandle := loginapi.NewHandler(loginService, tokenService)

	server.R.Group(func(r chi.Router) {
		emailHandle.Routes(r)
		loginHandle.Routes(r)
	})

	tokenAuth := jwtauth.New("HS256", []byte(cfg.JwtConfig.JwtSecret), nil)

	server.R.Group(func(r chi.Router) {
		r.Use(jwtauth.Verifier(tokenAuth))
		r.Use(jwtauth.Authenticator(tokenAuth))
		emailHandle.ProtectedRoutes(r)
	})

	if cfg.EmailAuthConfig.AutoMaintenanceEnabled {
		sweeper := retention.NewSweeper(repo, cfg.EmailAuthConfig.VerificationWindow())
		go sweeper.Run(context.Background(), cfg.EmailAuthConfig.SweepInterval)
	}

	server.Run()
}
