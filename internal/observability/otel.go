package observability

import (
	"context"

	"github.com/legitimus-pro/esqueleto-gateway/internal/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// InitOTel installs a process-wide TracerProvider. No collector endpoint is
// wired: turns are short-lived and this process is typically run alongside a
// sidecar that scrapes logs, so spans exist purely to carry trace/span IDs
// into zerolog (see LoggerWithTrace) and to attach cost/latency attributes
// for local debugging. Returns a shutdown func that flushes any registered
// span processors.
func InitOTel(ctx context.Context, obs config.TelemetryConfig) (func(context.Context) error, error) {
	if !obs.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	name := obs.ServiceName
	if name == "" {
		name = "turn-gateway"
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(name),
			attribute.String("deployment.endpoint", obs.Endpoint),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}
