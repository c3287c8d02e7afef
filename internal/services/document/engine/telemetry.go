package engine

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/powerhouse-inc/contributor-billing/internal/services/document/engine"

type instruments struct {
	tracer    trace.Tracer
	appended  metric.Int64Counter
	rejected  metric.Int64Counter
	integrity metric.Int64Counter
	cacheMiss metric.Int64Counter
}

func newInstruments(tp trace.TracerProvider, mp metric.MeterProvider) (instruments, error) {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(instrumentationName)
	inst := instruments{tracer: tp.Tracer(instrumentationName)}

	var err error
	if inst.appended, err = meter.Int64Counter("document.operations.appended",
		metric.WithDescription("Operations persisted to a document log"),
		metric.WithUnit("{operation}"),
	); err != nil {
		return instruments{}, err
	}
	if inst.rejected, err = meter.Int64Counter("document.operations.rejected",
		metric.WithDescription("Operations recorded with a domain rejection"),
		metric.WithUnit("{operation}"),
	); err != nil {
		return instruments{}, err
	}
	if inst.integrity, err = meter.Int64Counter("document.integrity.failures",
		metric.WithDescription("Documents whose log failed replay verification"),
		metric.WithUnit("{document}"),
	); err != nil {
		return instruments{}, err
	}
	if inst.cacheMiss, err = meter.Int64Counter("document.cache.misses",
		metric.WithDescription("Loads that rehydrated a document from storage"),
		metric.WithUnit("{load}"),
	); err != nil {
		return instruments{}, err
	}
	return inst, nil
}

func (i instruments) start(ctx context.Context, name, documentID string) (context.Context, trace.Span) {
	return i.tracer.Start(ctx, name, trace.WithAttributes(attribute.String("document.id", documentID)))
}

// finish records err on span and ends it.
func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
