package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/walkplan/internal/adapters/http/api"
	"github.com/okian/walkplan/internal/adapters/http/swagger"
	service "github.com/okian/walkplan/internal/app"
	"github.com/okian/walkplan/internal/config"
	"github.com/okian/walkplan/pkg/logger"
	"github.com/okian/walkplan/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
)

func newServeCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), *cfgPath)
		},
	}
}

func runServe(parent context.Context, cfgPath string) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx, cfgPath)
	if err != nil {
		return err
	}
	if err := logger.Init(logger.WithLevel(cfg.LogLevel), logger.WithFormat(cfg.LogFormat)); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	log := logger.Named("main")

	metrics.RegisterBuildInfo()
	go metrics.RunSystemCollector(ctx)

	svc := service.New(
		service.WithLogger(logger.Named("service")),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.QueueSize),
		service.WithDedupeSize(cfg.DedupeSize),
		service.WithMaxScheduleWindow(cfg.MaxScheduleWindow),
		service.WithShutdownTimeout(cfg.ShutdownTimeout),
		service.WithEngineConfig(cfg.EngineConfig()),
		service.WithFutureSlotsOnly(cfg.FutureSlotsOnly),
		service.WithCache(cfg.CacheConfig()),
	)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}

	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc).Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info(ctx, "shutting down server")
	case err := <-serveErr:
		if err != nil {
			runErr = fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
	}
	if err := svc.Stop(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "service stop failed", logger.Error(err))
	}
	log.Info(shutdownCtx, "server stopped")
	return runErr
}
