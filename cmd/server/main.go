// Command server runs the relay bot: it opens the SQLite store, wires
// every domain service, and serves the four HTTP routes of §6 until an
// interrupt or SIGTERM asks it to shut down.
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
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/forum-relay-bot/internal/admin"
	"github.com/tbourn/forum-relay-bot/internal/admission"
	"github.com/tbourn/forum-relay-bot/internal/boards"
	"github.com/tbourn/forum-relay-bot/internal/captcha"
	"github.com/tbourn/forum-relay-bot/internal/config"
	httpapi "github.com/tbourn/forum-relay-bot/internal/http"
	"github.com/tbourn/forum-relay-bot/internal/http/handlers"
	"github.com/tbourn/forum-relay-bot/internal/locks"
	"github.com/tbourn/forum-relay-bot/internal/observability"
	"github.com/tbourn/forum-relay-bot/internal/policy"
	"github.com/tbourn/forum-relay-bot/internal/relay"
	"github.com/tbourn/forum-relay-bot/internal/repo"
	"github.com/tbourn/forum-relay-bot/internal/session"
	"github.com/tbourn/forum-relay-bot/internal/store"
	"github.com/tbourn/forum-relay-bot/internal/sysutil"
	"github.com/tbourn/forum-relay-bot/internal/telegram"
)

// version is stamped by the release pipeline; left as a default for local
// and dev builds.
var version = "dev"

func main() {
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		if err := shutdownOTel(context.Background()); err != nil {
			log.Warn().Err(err).Msg("otel shutdown failed")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open sqlite failed")
	}
	if cfg.OTEL.Enabled {
		if err := db.Use(tracing.NewPlugin()); err != nil {
			log.Warn().Err(err).Msg("gorm otel tracing plugin install failed")
		}
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("automigrate failed")
	}

	client := telegram.New(cfg.BotToken)
	st := store.New(db, cfg.ConfigCacheTTL)
	lm := locks.New()
	dedup := locks.NewUpdateDedup(cfg.UpdateDedupTTL)

	capVerifier := captcha.New()
	sessVerifier := session.New(cfg.BotToken)
	admSvc := admission.New(db, st, cfg)
	polSvc := policy.New(db, st, admSvc)
	brdSvc := boards.New(client, db, st, lm, cfg)
	relSvc := relay.New(client, db, st, lm, brdSvc, cfg)
	adminSvc := admin.New(client, db, st, brdSvc, admSvc, cfg)

	h := handlers.New(cfg, db, client, st, capVerifier, sessVerifier, admSvc, polSvc, relSvc, brdSvc, adminSvc, dedup)

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, cfg, h)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("server shutdown failed")
	}

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("goodbye")
}
