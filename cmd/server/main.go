package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
	"github.com/ilyakaznacheev/cleanenv"

	"github.com/tendant/resource-store/pkg/resource/api"
	"github.com/tendant/resource-store/pkg/resource/config"
	s3storage "github.com/tendant/resource-store/pkg/resource/storage/s3"
)

type Config struct {
	Port        string `env:"PORT" env-default:"8080"`
	Environment string `env:"ENVIRONMENT" env-default:"development"`
	JWTSecret   string `env:"JWT_SECRET" env-default:"dev-secret"`
	BucketName  string `env:"RESOURCE_BUCKET_NAME" env-default:"uploads"`

	DatabaseURL  string `env:"DATABASE_URL" env-default:""`
	DatabaseType string `env:"DATABASE_TYPE" env-default:"memory"`

	StorageType string `env:"STORAGE_TYPE" env-default:"memory"`
	S3          S3Config

	EnableEventLogging bool `env:"ENABLE_EVENT_LOGGING" env-default:"true"`
}

type S3Config struct {
	Endpoint        string `env:"AWS_S3_ENDPOINT" env-default:""`
	AccessKeyID     string `env:"AWS_ACCESS_KEY_ID" env-default:""`
	SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" env-default:""`
	Bucket          string `env:"AWS_S3_BUCKET" env-default:""`
	Region          string `env:"AWS_S3_REGION" env-default:"us-east-1"`
	UsePathStyle    bool   `env:"AWS_S3_USE_PATH_STYLE" env-default:"false"`
	PublicURLBase   string `env:"PUBLIC_URL_BASE" env-default:""`
	OwnersID        string `env:"ACL_OWNERS_ID" env-default:""`
	EditorsID       string `env:"ACL_EDITORS_ID" env-default:""`
	ViewersID       string `env:"ACL_VIEWERS_ID" env-default:""`
}

func (c Config) toServerConfig() config.ServerConfig {
	return config.ServerConfig{
		Port:         c.Port,
		Environment:  c.Environment,
		DatabaseURL:  c.DatabaseURL,
		DatabaseType: c.DatabaseType,
		StorageType:  c.StorageType,
		S3: s3storage.Config{
			Endpoint:        c.S3.Endpoint,
			AccessKeyID:     c.S3.AccessKeyID,
			SecretAccessKey: c.S3.SecretAccessKey,
			Bucket:          c.S3.Bucket,
			Region:          c.S3.Region,
			UsePathStyle:    c.S3.UsePathStyle,
			PublicURLBase:   c.S3.PublicURLBase,
			OwnersID:        c.S3.OwnersID,
			EditorsID:       c.S3.EditorsID,
			ViewersID:       c.S3.ViewersID,
		},
		BucketName:         c.BucketName,
		EnableEventLogging: c.EnableEventLogging,
	}
}

func main() {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		slog.Error("Failed to read configuration", "err", err)
		os.Exit(1)
	}

	serverConfig := cfg.toServerConfig()
	if err := serverConfig.Validate(); err != nil {
		slog.Error("Invalid configuration", "err", err)
		os.Exit(1)
	}

	ctx := context.Background()
	svc, err := serverConfig.BuildService(ctx)
	if err != nil {
		slog.Error("Failed to build service", "err", err)
		os.Exit(1)
	}

	tokenAuth := jwtauth.New("HS256", []byte(cfg.JWTSecret), nil)
	handler := api.NewHandler(svc, api.AdminOnly(tokenAuth))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	// Parse tokens on every request so upload completion can attribute the
	// uploading user; enforcement happens in the admin middleware.
	r.Use(jwtauth.Verifier(tokenAuth))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/resource", handler.Routes())
	})

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		slog.Info("Resource store server starting", "port", cfg.Port, "env", cfg.Environment,
			"database", cfg.DatabaseType, "storage", cfg.StorageType)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server error", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "err", err)
		os.Exit(1)
	}

	slog.Info("Server exiting")
}
