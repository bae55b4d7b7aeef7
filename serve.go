package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/samandartukhtayev/user-registry/config"
	"github.com/samandartukhtayev/user-registry/database"
	"github.com/samandartukhtayev/user-registry/handler"
	"github.com/samandartukhtayev/user-registry/logger"
	"github.com/samandartukhtayev/user-registry/metrics"
	"github.com/samandartukhtayev/user-registry/repository"
	"github.com/samandartukhtayev/user-registry/service"
)

// runServe serves /users until SIGINT or SIGTERM, then drains in-flight
// requests and closes the store.
func runServe(parent context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := logger.Named("serve")

	store, err := database.Open(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("close store", logger.Err(err))
		}
	}()
	log.Info("store connected",
		zap.String("driver", store.Driver()),
		zap.Int("replicas", len(store.Replicas())),
	)

	if cfg.Storage.Migrate {
		if err := store.Migrate(logger.ToContext(ctx, log)); err != nil {
			return err
		}
	}

	opts := handler.RouterOptions{
		ErrorMode: cfg.Server.ErrorMode,
		Health:    store,
	}
	if cfg.Metrics.Enabled {
		reg, httpMetrics, err := newMetricsRegistry(store)
		if err != nil {
			return err
		}
		opts.Metrics = httpMetrics
		opts.MetricsHandler = metrics.Handler(reg)
		opts.MetricsPath = cfg.Metrics.Path
	}

	users := service.NewUserService(repository.NewUserRepository(store))

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler.NewRouter(users, opts),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen %s: %w", srv.Addr, err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down", logger.Duration(cfg.Server.ShutdownTimeout))

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// newMetricsRegistry builds a private registry with process, Go runtime,
// HTTP and connection pool collectors.
func newMetricsRegistry(store *database.Manager) (*prometheus.Registry, *metrics.HTTPMetrics, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	httpMetrics, err := metrics.NewHTTPMetrics(reg)
	if err != nil {
		return nil, nil, err
	}

	if err := metrics.RegisterDBStats(reg, "primary", store.Writer()); err != nil {
		return nil, nil, err
	}
	for i, db := range store.Replicas() {
		if err := metrics.RegisterDBStats(reg, fmt.Sprintf("replica_%d", i), db); err != nil {
			return nil, nil, err
		}
	}

	return reg, httpMetrics, nil
}
