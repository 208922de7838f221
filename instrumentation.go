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

package guard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "rivaas.dev/guard"

// Validation results recorded on spans and metrics.
const (
	ResultPass      = "pass"
	ResultFail      = "fail"
	ResultError     = "error"
	ResultCancelled = "cancelled"
)

// Instrumentation records traces, metrics and logs for validations.
// One value is shared by all validators; it is safe for concurrent use.
// A nil *Instrumentation records nothing.
type Instrumentation struct {
	tracer      trace.Tracer
	validations metric.Int64Counter
	duration    metric.Float64Histogram
	inspected   metric.Int64Histogram
	logger      *slog.Logger
}

// InstrumentationOption configures an [Instrumentation].
type InstrumentationOption func(*instrumentationConfig)

type instrumentationConfig struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	logger         *slog.Logger
}

// WithTracerProvider sets the tracer provider. Defaults to the global provider.
func WithTracerProvider(tp trace.TracerProvider) InstrumentationOption {
	return func(c *instrumentationConfig) {
		c.tracerProvider = tp
	}
}

// WithMeterProvider sets the meter provider. Defaults to the global provider.
func WithMeterProvider(mp metric.MeterProvider) InstrumentationOption {
	return func(c *instrumentationConfig) {
		c.meterProvider = mp
	}
}

// WithLogger sets the logger for validation events. Defaults to slog.Default().
func WithLogger(l *slog.Logger) InstrumentationOption {
	return func(c *instrumentationConfig) {
		c.logger = l
	}
}

// WithoutLogging disables validation logging.
func WithoutLogging() InstrumentationOption {
	return func(c *instrumentationConfig) {
		c.logger = slog.New(slog.DiscardHandler)
	}
}

// NewInstrumentation creates an [Instrumentation].
//
//	inst, err := guard.NewInstrumentation(
//		guard.WithMeterProvider(meterProvider),
//		guard.WithLogger(logger),
//	)
func NewInstrumentation(opts ...InstrumentationOption) (*Instrumentation, error) {
	cfg := &instrumentationConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.tracerProvider == nil {
		cfg.tracerProvider = otel.GetTracerProvider()
	}
	if cfg.meterProvider == nil {
		cfg.meterProvider = otel.GetMeterProvider()
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	meter := cfg.meterProvider.Meter(instrumentationName)
	inst := &Instrumentation{
		tracer: cfg.tracerProvider.Tracer(instrumentationName),
		logger: cfg.logger,
	}

	var err error
	inst.validations, err = meter.Int64Counter(
		"guard_validations_total",
		metric.WithDescription("Total number of validations by validator and result"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create validations counter: %w", err)
	}

	inst.duration, err = meter.Float64Histogram(
		"guard_validation_duration_seconds",
		metric.WithDescription("Duration of validations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create validation duration histogram: %w", err)
	}

	inst.inspected, err = meter.Int64Histogram(
		"guard_inspected_bytes",
		metric.WithDescription("Bytes read while inspecting uploads"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create inspected bytes histogram: %w", err)
	}

	return inst, nil
}

// MustNewInstrumentation is like [NewInstrumentation] but panics on error.
func MustNewInstrumentation(opts ...InstrumentationOption) *Instrumentation {
	inst, err := NewInstrumentation(opts...)
	if err != nil {
		panic(err)
	}

	return inst
}

var defaultInstrumentation = sync.OnceValue(func() *Instrumentation {
	return MustNewInstrumentation()
})

// DefaultInstrumentation returns the instrumentation used by validators
// that were not given one. It uses the global OpenTelemetry providers and
// slog.Default().
func DefaultInstrumentation() *Instrumentation {
	return defaultInstrumentation()
}

// Logger returns the logger, never nil.
func (i *Instrumentation) Logger() *slog.Logger {
	if i == nil || i.logger == nil {
		return slog.New(slog.DiscardHandler)
	}

	return i.logger
}

// Observe runs a validation inside a span named "guard.validate" and
// records its result.
func (i *Instrumentation) Observe(ctx context.Context, validator string, fn func(context.Context) error) error {
	if i == nil {
		return fn(ctx)
	}

	ctx, span := i.tracer.Start(ctx, "guard.validate",
		trace.WithAttributes(attribute.String("guard.validator", validator)))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)

	result, kind := classify(err)
	attrs := []attribute.KeyValue{
		attribute.String("guard.validator", validator),
		attribute.String("guard.result", result),
	}
	if kind != KindNone {
		attrs = append(attrs, attribute.String("guard.kind", kind.String()))
	}
	span.SetAttributes(attrs...)

	switch result {
	case ResultPass:
		span.SetStatus(codes.Ok, "")
	case ResultFail:
		i.logger.DebugContext(ctx, "validation failed",
			"validator", validator,
			"kind", kind.String(),
			"error", err,
		)
	case ResultError:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		i.logger.WarnContext(ctx, "validation error",
			"validator", validator,
			"error", err,
		)
	}

	set := metric.WithAttributes(attrs...)
	i.validations.Add(ctx, 1, set)
	i.duration.Record(ctx, elapsed.Seconds(), set)

	return err
}

// RecordInspected records how many bytes an inspection read.
func (i *Instrumentation) RecordInspected(ctx context.Context, validator string, n int64) {
	if i == nil {
		return
	}
	i.inspected.Record(ctx, n, metric.WithAttributes(attribute.String("guard.validator", validator)))
}

func classify(err error) (string, Kind) {
	if err == nil {
		return ResultPass, KindNone
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ResultCancelled, KindNone
	}

	var gerr *Error
	if errors.As(err, &gerr) {
		if gerr.Kind == KindUnexpected {
			return ResultError, gerr.Kind
		}

		return ResultFail, gerr.Kind
	}

	return ResultError, KindNone
}
