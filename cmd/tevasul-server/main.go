// Command tevasul-server runs the HTTP API, the Telegram webhooks (or long
// polling when TELEGRAM_MODE=polling), the background sweeper and the
// scheduled accounting reports.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/tevasul/tevasul-backend/internal/app"
	"github.com/tevasul/tevasul-backend/internal/config"
	"github.com/tevasul/tevasul-backend/internal/observability"
	"github.com/tevasul/tevasul-backend/internal/repo"
	"github.com/tevasul/tevasul-backend/internal/sysutil"
)

// version is set with -ldflags "-X main.version=...".
var version = "dev"

const (
	sweepEvery      = 5 * time.Minute
	reportEvery     = time.Minute
	shutdownTimeout = 15 * time.Second
)

func main() {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		sysutil.SetupLogger(os.Stderr, "tevasul-backend", "info", false)
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	sysutil.SetupLogger(os.Stdout, cfg.OTEL.ServiceName, cfg.LogLevel, cfg.LogPretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup")
	}

	db, err := repo.Open(cfg.DB.Driver, cfg.DB.Path, cfg.DB.URL)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DB.Driver).Msg("open database")
	}
	if cfg.DB.AutoMigrate {
		if err := app.Migrate(cfg, db); err != nil {
			log.Fatal().Err(err).Msg("migrate")
		}
	}

	bots, err := app.ConnectBots(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("connect telegram")
	}
	if bots.Main == nil {
		log.Warn().Msg("TELEGRAM_BOT_TOKEN unset; notifications and the wizard are disabled")
	}

	a := app.New(cfg, db, bots, app.LoadIndex(cfg.FAQPath))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.Engine,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}
	go func() {
		log.Info().Str("addr", srv.Addr).Str("mode", cfg.Telegram.Mode).Str("version", version).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server")
			stop()
		}
	}()

	go a.RunSweeper(ctx, sweepEvery)
	go a.RunReports(ctx, reportEvery)

	polled := make(chan struct{})
	go func() {
		defer close(polled)
		if cfg.Telegram.Mode == "polling" {
			a.RunPollers(ctx)
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	<-polled
	if err := shutdownOTel(sctx); err != nil {
		log.Error().Err(err).Msg("otel shutdown")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
