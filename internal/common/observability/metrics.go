package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Observability owns the OpenTelemetry meter used by the reconciliation
// sweeps. A zero value is safe to use and records nothing.
type Observability struct {
	meterProvider *metric.MeterProvider
	meter         otelmetric.Meter
	sweepCounter  otelmetric.Int64Counter
	sweepDuration otelmetric.Float64Histogram
}

func New(serviceName string) (*Observability, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return &Observability{}, err
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	sweepCounter, err := meter.Int64Counter(
		"reconciliation.sweeps",
		otelmetric.WithDescription("Number of reconciliation sweeps run"),
	)
	if err != nil {
		return &Observability{}, err
	}

	sweepDuration, err := meter.Float64Histogram(
		"reconciliation.sweep.duration",
		otelmetric.WithDescription("Reconciliation sweep duration"),
		otelmetric.WithUnit("ms"),
	)
	if err != nil {
		return &Observability{}, err
	}

	return &Observability{
		meterProvider: provider,
		meter:         meter,
		sweepCounter:  sweepCounter,
		sweepDuration: sweepDuration,
	}, nil
}

func (o *Observability) RecordSweep(ctx context.Context, class, status string, duration time.Duration) {
	if o == nil {
		return
	}
	attrs := otelmetric.WithAttributes(
		attribute.String("class", class),
		attribute.String("status", status),
	)
	if o.sweepCounter != nil {
		o.sweepCounter.Add(ctx, 1, attrs)
	}
	if o.sweepDuration != nil {
		o.sweepDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}

func (o *Observability) Shutdown() {
	if o != nil && o.meterProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = o.meterProvider.Shutdown(ctx)
	}
}
