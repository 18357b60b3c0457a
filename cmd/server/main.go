package main

import (
	"context"
	"errors"
	"net/http"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/rs/zerolog/log"

	"github.com/wadjakorntonsri/go-shortlink/pkg/app"
	"github.com/wadjakorntonsri/go-shortlink/pkg/config"
	"github.com/wadjakorntonsri/go-shortlink/pkg/core/services"
	"github.com/wadjakorntonsri/go-shortlink/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	application, err := app.New(context.Background(), cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer application.Close()

	if err := serve(application); err != nil {
		log.Error().Err(err).Msg("server stopped")
	}
}

// serve runs the HTTP server, the optional expiry sweeper and the signal
// handler until one of them returns.
func serve(application *app.App) error {
	cfg := application.Config
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      application.Handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	g := new(run.Group)
	{
		g.Add(func() error {
			log.Info().Str("port", cfg.Port).Msg("server starting")
			if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		}, func(error) {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				log.Error().Err(err).Msg("graceful shutdown failed")
			}
		})
	}
	if cfg.SweepInterval > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		sweeper := services.NewExpirySweeper(application.Links, cfg.SweepInterval)
		g.Add(func() error {
			log.Info().Dur("interval", cfg.SweepInterval).Msg("expiry sweeper started")
			return sweeper.Run(ctx)
		}, func(error) {
			cancel()
		})
	}
	g.Add(run.SignalHandler(context.Background(), syscall.SIGINT, syscall.SIGTERM))

	err := g.Run()
	var sig run.SignalError
	if errors.As(err, &sig) {
		log.Info().Str("signal", sig.Signal.String()).Msg("shutting down")
		return nil
	}
	return err
}
