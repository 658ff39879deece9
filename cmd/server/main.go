// Command server runs the demo accounts API behind the uniform error
// pipeline.
//
//	@title			go-api-errors
//	@version		1.0
//	@description	Demo API showing the uniform error envelope and request correlation.
//	@BasePath		/api/v1
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-api-errors/internal/config"
	httpapi "github.com/tbourn/go-api-errors/internal/http"
	"github.com/tbourn/go-api-errors/internal/logging"
	"github.com/tbourn/go-api-errors/internal/observability"
	"github.com/tbourn/go-api-errors/internal/repo"
	"github.com/tbourn/go-api-errors/internal/validation"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// A missing .env is fine; real deployments use the environment.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	logging.SetLevel(cfg.Log.Level)
	lg, err := logging.New(logging.Options{
		Service:      cfg.ServiceName,
		Pretty:       cfg.Log.Pretty,
		Async:        cfg.Log.Async,
		ErrorFile:    cfg.Log.ErrorFile,
		CombinedFile: cfg.Log.CombinedFile,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("logging")
	}
	defer func() { _ = lg.Close() }()
	log.Logger = lg.Zerolog()

	if err := run(cfg, lg); err != nil {
		log.Error().Err(err).Msg("server stopped")
		_ = lg.Close()
		os.Exit(1)
	}
}

func run(cfg config.Config, lg *logging.Zerolog) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, observability.Build{
		Version:     version,
		Environment: cfg.AppEnv,
	})
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		_ = shutdownOTel(sctx)
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer func() { _ = sqlDB.Close() }()
	}
	if err := repo.AutoMigrate(db); err != nil {
		return err
	}

	if err := validation.Register(); err != nil {
		return err
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, cfg, lg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("env", cfg.AppEnv).
			Str("version", version).
			Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(sctx)
}
