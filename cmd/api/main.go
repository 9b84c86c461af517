package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"voice-agent-console/internal/api"
	"voice-agent-console/internal/callsession"
	"voice-agent-console/internal/config"
	"voice-agent-console/internal/console"
	"voice-agent-console/internal/httpclient"
	"voice-agent-console/internal/logger"
	"voice-agent-console/internal/probe"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Options{}).WithError(err).Fatal("invalid configuration")
	}

	log := logger.New(logger.Options{Environment: cfg.Environment, Level: cfg.LogLevel})
	log.WithField("service", "voice-agent-console").
		WithField("api_base", cfg.APIBase).
		Info("starting service")

	hc := httpclient.New(httpclient.Options{
		BaseURL: cfg.APIBase,
		Headers: cfg.PassThroughHeaders(),
		Timeout: cfg.HTTPTimeout(),
		Log:     log,
	})
	backend := api.New(hc, api.WithFromNumber(cfg.FromNumber), api.WithLogger(log))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ready := probe.New(backend, cfg.ProbeInterval(), log)
	go ready.Run(ctx)

	sessions := callsession.NewRegistry(log)
	go sessions.RunSweeper(ctx, time.Minute, cfg.SessionIdle())
	srv := console.New(backend, sessions, ready, console.Settings{
		PageLimit:   cfg.PageLimit,
		ExportLimit: cfg.ExportLimit,
	}, log)

	httpSrv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      srv.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.WithField("addr", httpSrv.Addr).Info("listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server terminated")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("graceful shutdown failed")
	}
	sessions.CloseAll()
	log.Info("stopped")
}
