package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/carlmjohnson/versioninfo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

type shutdownFunc func(context.Context) error

// tracingConfigured reports whether any OTLP trace endpoint is set in the environment.
// Without one the exporter would retry against localhost forever.
func tracingConfigured() bool {
	return os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" || os.Getenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT") != ""
}

func pdsResource(ctx context.Context, hostname string) (*resource.Resource, error) {
	opts := []resource.Option{
		resource.WithAttributes(
			semconv.ServiceName("pds"),
			semconv.ServiceVersion(versioninfo.Short()),
		),
	}
	if hostname != "" {
		opts = append(opts, resource.WithAttributes(semconv.ServiceInstanceID(hostname)))
	}
	return resource.New(ctx, opts...)
}

func startTracing(ctx context.Context, res *resource.Resource) (shutdownFunc, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	if !tracingConfigured() {
		slog.Info("no OTLP endpoint configured, traces are not exported")
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// startMetrics registers the prometheus reader behind the /metrics handler served by
// promhttp.
func startMetrics(res *resource.Resource) (shutdownFunc, error) {
	reader, err := prometheus.New()
	if err != nil {
		return nil, err
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)
	return mp.Shutdown, nil
}

func setupOTel(ctx context.Context, hostname string) (shutdownFunc, error) {
	res, err := pdsResource(ctx, hostname)
	if err != nil {
		return nil, err
	}
	stopTraces, err := startTracing(ctx, res)
	if err != nil {
		return nil, err
	}
	stopMetrics, err := startMetrics(res)
	if err != nil {
		return nil, errors.Join(err, stopTraces(ctx))
	}
	return func(ctx context.Context) error {
		return errors.Join(stopTraces(ctx), stopMetrics(ctx))
	}, nil
}
