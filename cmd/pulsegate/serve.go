package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"pulsegate/pkg/control"
	"pulsegate/pkg/engine"
	"pulsegate/pkg/proxy"
	"pulsegate/pkg/stats"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the filtering proxy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger
	logger.Info("Initializing pulsegate",
		"target_host", cfg.Filter.TargetHost,
		"filter_by_dev_address", cfg.Filter.FilterByDevAddress,
		"filter_by_funding_wallet", cfg.Filter.FilterByFundingWallet,
		"dev_addresses", cfg.Filter.DevAddresses.Len(),
		"funder_addresses", cfg.Filter.FunderAddresses.Len())

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	agg := stats.NewAggregator(reg)
	d := engine.NewDispatcher(&cfg.Filter, agg, engine.WithLogger(logger), engine.WithRegisterer(reg))
	logger.Info("Filter policy", "criteria", d.Policy().Criteria())

	if cfg.Redis.Enabled {
		rdb := control.NewClient(cfg.Redis)
		defer rdb.Close()
		w := control.NewWatcher(rdb, cfg.Redis, &cfg.Filter, logger)
		if err := w.Seed(ctx); err != nil {
			logger.Warn("Failed to seed Redis address sets", "error", err)
		}
		if err := w.Start(ctx); err != nil {
			return err
		}
	}

	if cfg.Metrics.Enabled {
		go serveMetrics(ctx, a, reg)
	}

	srv, err := proxy.NewServer(cfg.Proxy, d, logger)
	if err != nil {
		return err
	}
	err = srv.Serve(ctx)

	logger.Info("Shutting down")
	logger.Info(agg.Summary())
	return err
}

func serveMetrics(ctx context.Context, a *app, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	srv := &http.Server{
		Addr:              a.cfg.Metrics.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	a.logger.Info("Metrics listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		a.logger.Error("Metrics server failed", "error", err)
	}
}
