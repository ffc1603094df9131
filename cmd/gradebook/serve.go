package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/okian/gradebook/internal/adapters/http/api"
	"github.com/okian/gradebook/internal/adapters/http/swagger"
	app "github.com/okian/gradebook/internal/app"
	"github.com/okian/gradebook/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 10 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	serviceMetricsInterval = 5 * time.Second
)

// newMux registers the docs and the business API.
func newMux(ctx context.Context, svc *app.Service, maxRankingLimit int) *http.ServeMux {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, svc, maxRankingLimit).Register(ctx, mux)
	return mux
}

func runServe(ctx context.Context, env *cliEnv, args []string) error {
	if err := exactArgs(args, 0); err != nil {
		return err
	}
	log := logger.Named("http")

	go startServiceMetricsUpdater(ctx, env.svc)

	srv := &http.Server{
		Addr:              env.cfg.Addr,
		Handler:           newMux(ctx, env.svc, env.cfg.MaxRankingLimit),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server",
			logger.String("addr", env.cfg.Addr),
			logger.String("backend", env.svc.Backend()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or a listener failure
	select {
	case <-ctx.Done():
	case err, ok := <-errCh:
		if ok {
			return err
		}
	}
	log.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
		return err
	}
	log.Info(ctx, "server stopped")
	return nil
}

// startServiceMetricsUpdater periodically refreshes the store size gauges.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = svc.GetStats()
		}
	}
}
