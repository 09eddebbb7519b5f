package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/attolytics/attolytics/internal/api"
	"github.com/attolytics/attolytics/internal/config"
	"github.com/attolytics/attolytics/internal/ingest"
	"github.com/attolytics/attolytics/internal/schema"
	"github.com/attolytics/attolytics/internal/store"
)

func main() {
	_ = godotenv.Load()
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	cfg := config.Load()

	sch, err := schema.Load(cfg.SchemaPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.SchemaPath).Msg("failed to load schema")
	}
	log.Info().Int("apps", len(sch.Apps)).Int("tables", len(sch.Tables)).Msg("schema loaded")

	st := store.Open(cfg.DatabaseURL, cfg.MaxOpenConns, cfg.MaxIdleConns)
	defer st.Close()

	// Tables must exist before any ingestion traffic is served.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := st.Materialize(ctx, sch); err != nil {
		cancel()
		log.Fatal().Err(err).Msg("failed to materialize tables")
	}
	cancel()
	log.Info().Int("tables", len(sch.Tables)).Msg("tables materialized")

	handler := api.NewEventsHandler(sch, ingest.New(sch, st), cfg.MaxBodyBytes)
	router := api.SetupRoutes(handler)

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		log.Info().Msg("shutting down server")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("server shutdown error")
		}
	}()

	log.Info().Str("addr", cfg.ServerAddr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server failed to start")
	}

	log.Info().Msg("server stopped")
}
