// Copyright 2025 The Rivaas Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

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

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	riverrors "rivaas.dev/errors"

	"rivaas.dev/guard"
	"rivaas.dev/guard/config"
	"rivaas.dev/guard/middleware"

	// Register WEBP, TIFF and BMP decoders for image validators.
	_ "rivaas.dev/guard/image/xformats"
)

const shutdownTimeout = 10 * time.Second

type serveFlags struct {
	addr          string
	maxMemory     int64
	noMetrics     bool
	problemURL    string
	traceExporter string
	otlpEndpoint  string
	otlpInsecure  bool
}

func newServeCmd(flags *globalFlags) *cobra.Command {
	sf := &serveFlags{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the configured validators over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, flags, sf)
		},
	}

	f := cmd.Flags()
	f.StringVar(&sf.addr, "addr", ":8080", "listen address")
	f.Int64Var(&sf.maxMemory, "max-memory", middleware.DefaultMaxMemory, "bytes of a multipart form kept in memory before spilling to disk")
	f.BoolVar(&sf.noMetrics, "no-metrics", false, "do not export metrics on /metrics")
	f.StringVar(&sf.problemURL, "problem-base-url", "", "base URL for problem type URIs in error responses")
	f.StringVar(&sf.traceExporter, "trace-exporter", traceNone, "span exporter: none, stdout or otlp")
	f.StringVar(&sf.otlpEndpoint, "otlp-endpoint", "", "OTLP/HTTP collector host:port (default from OTEL_EXPORTER_OTLP_ENDPOINT)")
	f.BoolVar(&sf.otlpInsecure, "otlp-insecure", false, "send OTLP spans over plain HTTP")

	return cmd
}

// meterProvider returns a meter provider backed by a dedicated Prometheus
// registry, and the handler that exposes it.
func meterProvider() (*sdkmetric.MeterProvider, http.Handler, error) {
	reg := promclient.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(reg))
	if err != nil {
		return nil, nil, fmt.Errorf("create prometheus exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))

	return mp, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), nil
}

func serve(ctx context.Context, flags *globalFlags, sf *serveFlags) error {
	logger, closeLogger, err := newLogger(flags)
	if err != nil {
		return err
	}
	defer func() { _ = closeLogger(context.Background()) }()

	instOpts := []guard.InstrumentationOption{guard.WithLogger(logger)}
	var metrics http.Handler
	if !sf.noMetrics {
		mp, h, mpErr := meterProvider()
		if mpErr != nil {
			return mpErr
		}
		defer func() { _ = mp.Shutdown(context.Background()) }()
		instOpts = append(instOpts, guard.WithMeterProvider(mp))
		metrics = h
	}
	tp, err := tracerProvider(ctx, sf.traceExporter, sf.otlpEndpoint, sf.otlpInsecure)
	if err != nil {
		return err
	}
	if tp != nil {
		defer func() { _ = tp.Shutdown(context.Background()) }()
		instOpts = append(instOpts, guard.WithTracerProvider(tp))
	}
	inst, err := guard.NewInstrumentation(instOpts...)
	if err != nil {
		return err
	}

	set, err := config.Load(flags.config, config.WithInstrumentation(inst))
	if err != nil {
		return err
	}
	logger.Info("configuration loaded", "path", flags.config, "validators", set.Len())

	handler := newRouter(set, metrics,
		middleware.WithLogger(logger),
		middleware.WithMaxMemory(sf.maxMemory),
		middleware.WithFormatter(riverrors.NewRFC9457(sf.problemURL)),
	)

	srv := &http.Server{
		Addr:              sf.addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", sf.addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err = <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", shutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err = srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", slog.Any("error", err))
		return err
	}

	return nil
}
