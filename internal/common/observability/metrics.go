// internal/common/observability/metrics.go
package observability

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Observability records delivery metrics through OpenTelemetry and exposes them on the
// default Prometheus registry.
type Observability struct {
	meterProvider  *metric.MeterProvider
	meter          otelmetric.Meter
	deliveries     otelmetric.Int64Counter
	deliveryTime   otelmetric.Float64Histogram
	recipientsSent otelmetric.Int64Counter
}

func New(serviceName string) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	deliveries, _ := meter.Int64Counter(
		"notifications.deliveries",
		otelmetric.WithDescription("Number of notification delivery attempts"),
	)

	deliveryTime, _ := meter.Float64Histogram(
		"notifications.delivery.duration",
		otelmetric.WithDescription("Notification delivery duration"),
		otelmetric.WithUnit("ms"),
	)

	recipientsSent, _ := meter.Int64Counter(
		"notifications.recipients",
		otelmetric.WithDescription("Number of recipients reached"),
	)

	return &Observability{
		meterProvider:  provider,
		meter:          meter,
		deliveries:     deliveries,
		deliveryTime:   deliveryTime,
		recipientsSent: recipientsSent,
	}
}

// RecordDelivery records one send attempt. A zero Observability is a no-op.
func (o *Observability) RecordDelivery(ctx context.Context, channel, status string, sent int, duration time.Duration) {
	if o == nil {
		return
	}
	attrs := otelmetric.WithAttributes(
		attribute.String("channel", channel),
		attribute.String("status", status),
	)
	if o.deliveries != nil {
		o.deliveries.Add(ctx, 1, attrs)
	}
	if o.deliveryTime != nil {
		o.deliveryTime.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
	if o.recipientsSent != nil && sent > 0 {
		o.recipientsSent.Add(ctx, int64(sent), otelmetric.WithAttributes(attribute.String("channel", channel)))
	}
}

func (o *Observability) Shutdown() {
	if o != nil && o.meterProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		o.meterProvider.Shutdown(ctx)
	}
}
