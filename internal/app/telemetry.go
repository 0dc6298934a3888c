package app

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/cimillas/giftlink"

// Telemetry holds the service spans and counters. A nil *Telemetry records nothing.
type Telemetry struct {
	tracer       trace.Tracer
	claims       metric.Int64Counter
	fulfillments metric.Int64Counter
	remainders   metric.Int64Counter
	rateLimited  metric.Int64Counter
}

// NewTelemetry builds instruments from the given providers, falling back to the globals.
func NewTelemetry(mp metric.MeterProvider, tp trace.TracerProvider) (*Telemetry, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	meter := mp.Meter(instrumentationName)

	t := &Telemetry{tracer: tp.Tracer(instrumentationName)}
	var err error
	if t.claims, err = meter.Int64Counter("giftlink.claims",
		metric.WithDescription("Claim attempts by result")); err != nil {
		return nil, err
	}
	if t.fulfillments, err = meter.Int64Counter("giftlink.fulfillments",
		metric.WithDescription("Fulfillment attempts by result")); err != nil {
		return nil, err
	}
	if t.remainders, err = meter.Int64Counter("giftlink.remainders",
		metric.WithDescription("Remainder requests by result")); err != nil {
		return nil, err
	}
	if t.rateLimited, err = meter.Int64Counter("giftlink.ratelimit.rejections",
		metric.WithDescription("Requests rejected by the rate limiter")); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Telemetry) start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if t == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return t.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (t *Telemetry) count(ctx context.Context, c metric.Int64Counter, result string) {
	if t == nil || c == nil {
		return
	}
	c.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func (t *Telemetry) claimed(ctx context.Context, result string) {
	if t != nil {
		t.count(ctx, t.claims, result)
	}
}

func (t *Telemetry) fulfilled(ctx context.Context, result string) {
	if t != nil {
		t.count(ctx, t.fulfillments, result)
	}
}

func (t *Telemetry) remainder(ctx context.Context, result string) {
	if t != nil {
		t.count(ctx, t.remainders, result)
	}
}

// RateLimited counts one rejected request for scope.
func (t *Telemetry) RateLimited(ctx context.Context, scope string) {
	if t == nil {
		return
	}
	t.rateLimited.Add(ctx, 1, metric.WithAttributes(attribute.String("scope", scope)))
}
