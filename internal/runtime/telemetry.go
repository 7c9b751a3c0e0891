package runtime

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.30.0"

	"github.com/phonescreen-labs/phonescreen-core/internal/config"
)

// setupTelemetry installs the global tracer and meter providers. Traces go
// to an OTLP collector when one is configured and to stdout otherwise;
// metrics are exposed for Prometheus scrapes on the dedicated bind address.
// The question and telephony backend modes ride along as resource
// attributes so traces from different deployments can be told apart.
func setupTelemetry(cfg config.Config, logger *slog.Logger) (func(context.Context) error, http.Handler, error) {
	ctx := context.Background()
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			attribute.String("deployment.environment", cfg.Environment),
			attribute.String("phonescreen.question_mode", cfg.Question.Mode),
			attribute.String("phonescreen.telephony_mode", cfg.Telephony.Mode),
		),
	)
	if err != nil {
		return nil, nil, err
	}

	var traceExporter sdktrace.SpanExporter
	if endpoint := strings.TrimSpace(cfg.Telemetry.OTLPEndpoint); endpoint != "" {
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
		if cfg.Telemetry.OTLPInsecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		traceExporter, err = otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("tracing to otlp collector", slog.String("endpoint", endpoint))
	} else {
		traceExporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, nil, err
		}
		logger.Info("tracing to stdout")
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)

	var metricHandler http.Handler
	var meterProvider *sdkmetric.MeterProvider
	if promExporter, perr := prometheus.New(); perr != nil {
		logger.Warn("prometheus exporter unavailable, scrape endpoint disabled",
			slog.String("error", perr.Error()))
		meterProvider = sdkmetric.NewMeterProvider(sdkmetric.WithResource(res))
	} else {
		meterProvider = sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(promExporter),
			sdkmetric.WithResource(res),
		)
		metricHandler = promhttp.Handler()
	}
	otel.SetMeterProvider(meterProvider)

	shutdown := func(ctx context.Context) error {
		return errors.Join(
			meterProvider.Shutdown(ctx),
			tracerProvider.Shutdown(ctx),
		)
	}
	return shutdown, metricHandler, nil
}
