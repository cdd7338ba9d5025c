package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"GreyPulse/internal/domain/repository"
	"GreyPulse/internal/scheduler"
	"GreyPulse/pkg/config"
	xhttp "GreyPulse/pkg/http"
	applogger "GreyPulse/pkg/logger"
)

// Stream is a push-based source whose connection the app owns.
type Stream interface {
	Start(ctx context.Context) error
	Close() error
}

// App encapsulates the entire application lifecycle: stream connections, the
// cron scheduler, and the HTTP API.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	handler    xhttp.Handler
	sched      *scheduler.Scheduler
	streams    []Stream
	store      repository.ObservationStore
	publisher  repository.SpikePublisher
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	handler xhttp.Handler,
	sched *scheduler.Scheduler,
	streams []Stream,
	store repository.ObservationStore,
	publisher repository.SpikePublisher,
) *App {
	return &App{
		cfg:       cfg,
		log:       log,
		handler:   handler,
		sched:     sched,
		streams:   streams,
		store:     store,
		publisher: publisher,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, s := range a.streams {
		if err := s.Start(ctx); err != nil {
			a.log.Warn("stream start failed", applogger.Error(err))
		}
	}

	a.sched.Start()
	// Prime the pipeline so the API has data before the first cron tick.
	go a.sched.RunNow()

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)
	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("api listening", applogger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown stops everything in reverse start order.
func (a *App) shutdown(ctx context.Context) error {
	a.sched.Stop()

	for _, s := range a.streams {
		if err := s.Close(); err != nil {
			a.log.Warn("stream close error", applogger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if err := a.publisher.Close(); err != nil {
		a.log.Warn("publisher close error", applogger.Error(err))
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("store close error", applogger.Error(err))
	}

	a.log.Info("shutdown complete")
	return nil
}
