// Command server boots the legal-assistant API: configuration, logging,
// SQLite schema, Redis context cache, OpenTelemetry, the background activity
// recorder, and the Gin HTTP server with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/go-legal-assistant-backend/internal/cache"
	"github.com/tbourn/go-legal-assistant-backend/internal/config"
	"github.com/tbourn/go-legal-assistant-backend/internal/extract"
	httpapi "github.com/tbourn/go-legal-assistant-backend/internal/http"
	"github.com/tbourn/go-legal-assistant-backend/internal/llm"
	"github.com/tbourn/go-legal-assistant-backend/internal/observability"
	"github.com/tbourn/go-legal-assistant-backend/internal/repo"
	"github.com/tbourn/go-legal-assistant-backend/internal/services"
	"github.com/tbourn/go-legal-assistant-backend/internal/sysutil"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// Optional .env for local development; real deployments use the
	// environment directly.
	_ = godotenv.Load()

	cfg := config.MustLoad()
	sysutil.SetLogLevel(cfg.LogLevel)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Tracing (no-op when disabled).
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown failed")
		}
	}()

	// Persistence.
	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database failed")
	}
	// SQL spans ride the same trace as the HTTP request; a no-op when
	// tracing is disabled.
	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		log.Fatal().Err(err).Msg("gorm tracing plugin failed")
	}

	// Document-context cache.
	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis connect failed")
	}
	defer func() { _ = redisClient.Close() }()
	contextCache := cache.NewContextCache(redisClient, cfg.DocumentTTL)

	// Generation backend.
	generator := llm.NewClient(llm.Config{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
	}, cfg.LLM.GenTimeout)

	// Services.
	authSvc := services.NewAuthService(db, services.BcryptHasher{}, cfg.JWTSecret, cfg.TokenTTL)

	quotaSvc := services.NewQuotaService(db)
	applyQuotaOverrides(quotaSvc, cfg.Quota)

	chatSvc := services.NewChatService(db, generator)
	chatSvc.GenTimeout = cfg.LLM.GenTimeout

	docSvc := services.NewDocumentService(db, contextCache, extract.NewService(cfg.OCREndpoint, cfg.LLM.GenTimeout), generator)
	docSvc.GenTimeout = cfg.LLM.GenTimeout

	activity := services.NewActivityRecorder(db, log.Logger, cfg.ActivityQueueDepth)
	activity.Start(ctx)
	defer activity.Stop()

	replay := services.NewReplayStore(db, cfg.ReplayTTL)

	// HTTP surface.
	router := gin.New()
	httpapi.RegisterRoutes(router, httpapi.Services{
		Auth:     authSvc,
		Quota:    quotaSvc,
		Chat:     chatSvc,
		Document: docSvc,
		Activity: activity,
		Replay:   replay,
	}, cfg)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Str("version", version).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
}

// applyQuotaOverrides folds non-zero config overrides into the default plan
// table. Premium stays unlimited regardless.
func applyQuotaOverrides(q *services.QuotaService, o config.QuotaConfig) {
	policies := services.DefaultPolicies()
	if o.FreePoints > 0 {
		p := policies["free"]
		p.Points = o.FreePoints
		policies["free"] = p
	}
	if o.ProPoints > 0 {
		p := policies["pro"]
		p.Points = o.ProPoints
		policies["pro"] = p
	}
	if o.Window > 0 {
		for name, p := range policies {
			if !p.Unlimited {
				p.Window = o.Window
				policies[name] = p
			}
		}
	}
	q.Policies = policies
}
