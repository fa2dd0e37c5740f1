// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/ComplianceJourney/pkg/ux"
	"github.com/AleutianAI/ComplianceJourney/services/journey/telemetry"
)

func newMetricsCmd(withApp runner) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Serve journey metrics in Prometheus format until interrupted",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()
			ux.Info(fmt.Sprintf("Serving metrics on http://%s/metrics", addr))
			return serveMetrics(ctx, addr, metricsMux(a), a.logger.Slog())
		}),
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:9464", "listen address")
	return cmd
}

// metricsMux routes /metrics to the OpenTelemetry Prometheus exporter when
// it is configured, and to the invocation registry otherwise.
func metricsMux(a *app) *http.ServeMux {
	handler := telemetry.MetricsHandler()
	if handler == nil || a.cfg.Telemetry.MetricExporter != "prometheus" {
		handler = promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// serveMetrics runs the server until ctx is done, then shuts it down.
func serveMetrics(ctx context.Context, addr string, handler http.Handler, log *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("metrics server listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve metrics: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown metrics server: %w", err)
	}
	log.Info("metrics server stopped")
	return nil
}
