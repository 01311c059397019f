// Package tracing provides a shared OTel tracer for the agent lifecycle
// (C3/C4): one span per managed agent's whole session, and one child span
// per turn, so a trace backend can show where a turn actually spent its
// time across the provider round trip.
//
// Real tracing requires OTEL_EXPORTER_OTLP_ENDPOINT to be set. Without it
// a no-op tracer is used (zero overhead).
package tracing

import (
	"context"
	"os"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const serviceName = "paseod"

var (
	initOnce       sync.Once
	tracerProvider trace.TracerProvider = noop.NewTracerProvider()
	sdkProvider    *sdktrace.TracerProvider
)

func initTracing() {
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		return
	}

	ctx := context.Background()

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpointHost(endpoint)),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	)
	if err != nil {
		res = resource.Default()
	}

	sdkProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	tracerProvider = sdkProvider
	otel.SetTracerProvider(tracerProvider)
}

func endpointHost(endpoint string) string {
	for _, prefix := range []string{"https://", "http://"} {
		if strings.HasPrefix(endpoint, prefix) {
			return endpoint[len(prefix):]
		}
	}
	return endpoint
}

func tracer() trace.Tracer {
	initOnce.Do(initTracing)
	return tracerProvider.Tracer("github.com/getpaseo/paseod/internal/agent")
}

// TraceAgentSession starts the span covering an agent's entire managed
// lifetime, from Start through Close. Callers hold the returned span and
// End it when the instance closes, so every per-turn span below it is
// exported as part of the same trace even though the session span itself
// may stay open for a long time.
func TraceAgentSession(ctx context.Context, agentID, provider string) (context.Context, trace.Span) {
	ctx, span := tracer().Start(ctx, "agent.session", trace.WithSpanKind(trace.SpanKindInternal))
	span.SetAttributes(
		attribute.String("agent_id", agentID),
		attribute.String("provider", provider),
	)
	return ctx, span
}

// TraceTurn starts a short-lived span for one send_agent_message turn.
func TraceTurn(ctx context.Context, agentID string) (context.Context, trace.Span) {
	ctx, span := tracer().Start(ctx, "agent.turn", trace.WithSpanKind(trace.SpanKindInternal))
	span.SetAttributes(attribute.String("agent_id", agentID))
	return ctx, span
}

// Shutdown flushes pending spans and shuts down the provider.
func Shutdown(ctx context.Context) error {
	if sdkProvider != nil {
		return sdkProvider.Shutdown(ctx)
	}
	return nil
}
