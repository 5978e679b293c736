package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// OTelExporter provides OpenTelemetry metrics export following OTel standards
type OTelExporter struct {
	meterProvider *sdkmetric.MeterProvider
	collector     Collector

	// OTel meters and instruments
	meter                metric.Meter
	statusCountGauge     metric.Int64ObservableGauge
	eventCountGauge      metric.Int64ObservableGauge
	activeEndpointsGauge metric.Int64ObservableGauge
	activeWorkersGauge   metric.Int64ObservableGauge
}

// NewOTelExporter creates a new OpenTelemetry metrics exporter with Prometheus format
func NewOTelExporter(collector Collector) (*OTelExporter, error) {
	// Create Prometheus exporter
	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("creating prometheus exporter: %w", err)
	}

	// Create meter provider
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(meterProvider)

	// Create meter with service info
	meter := meterProvider.Meter(
		"webhook-outbox",
		metric.WithInstrumentationVersion("1.0.0"),
	)

	oe := &OTelExporter{
		meterProvider: meterProvider,
		collector:     collector,
		meter:         meter,
	}

	// Register metrics instruments
	if err := oe.registerInstruments(); err != nil {
		return nil, fmt.Errorf("registering instruments: %w", err)
	}

	return oe, nil
}

// registerInstruments creates and registers all OpenTelemetry metric instruments
func (oe *OTelExporter) registerInstruments() error {
	var err error

	// Delivery count gauge (per status)
	oe.statusCountGauge, err = oe.meter.Int64ObservableGauge(
		"webhook.deliveries.status",
		metric.WithDescription("Number of webhook deliveries by status"),
		metric.WithUnit("{deliveries}"),
		metric.WithInt64Callback(oe.observeStatusCounts),
	)
	if err != nil {
		return fmt.Errorf("creating status count gauge: %w", err)
	}

	// Delivery count gauge (per event type)
	oe.eventCountGauge, err = oe.meter.Int64ObservableGauge(
		"webhook.deliveries.event",
		metric.WithDescription("Number of webhook deliveries by event type"),
		metric.WithUnit("{deliveries}"),
		metric.WithInt64Callback(oe.observeEventCounts),
	)
	if err != nil {
		return fmt.Errorf("creating event count gauge: %w", err)
	}

	// Endpoint gauge (active vs total)
	oe.activeEndpointsGauge, err = oe.meter.Int64ObservableGauge(
		"webhook.endpoints",
		metric.WithDescription("Number of registered webhook endpoints"),
		metric.WithUnit("{endpoints}"),
		metric.WithInt64Callback(oe.observeEndpointCounts),
	)
	if err != nil {
		return fmt.Errorf("creating endpoints gauge: %w", err)
	}

	// Active workers gauge (per worker status)
	oe.activeWorkersGauge, err = oe.meter.Int64ObservableGauge(
		"webhook.workers.active",
		metric.WithDescription("Number of active dispatcher workers"),
		metric.WithUnit("{workers}"),
		metric.WithInt64Callback(oe.observeActiveWorkers),
	)
	if err != nil {
		return fmt.Errorf("creating active workers gauge: %w", err)
	}

	return nil
}

// observeStatusCounts is a callback that reports delivery counts by status
func (oe *OTelExporter) observeStatusCounts(ctx context.Context, observer metric.Int64Observer) error {
	statusCounts, err := oe.collector.GetStatusCounts(ctx)
	if err != nil {
		return err
	}

	for status, count := range statusCounts {
		observer.Observe(count, metric.WithAttributes(
			attribute.String("delivery.status", status),
		))
	}

	return nil
}

// observeEventCounts is a callback that reports delivery counts by event type
func (oe *OTelExporter) observeEventCounts(ctx context.Context, observer metric.Int64Observer) error {
	eventCounts, err := oe.collector.GetEventCounts(ctx)
	if err != nil {
		return err
	}

	for eventType, count := range eventCounts {
		observer.Observe(count, metric.WithAttributes(
			attribute.String("event.type", eventType),
		))
	}

	return nil
}

// observeEndpointCounts is a callback that reports endpoint counts
func (oe *OTelExporter) observeEndpointCounts(ctx context.Context, observer metric.Int64Observer) error {
	active, total, err := oe.collector.GetEndpointCounts(ctx)
	if err != nil {
		return err
	}

	observer.Observe(active, metric.WithAttributes(
		attribute.String("endpoint.state", "active"),
	))
	observer.Observe(total, metric.WithAttributes(
		attribute.String("endpoint.state", "total"),
	))

	return nil
}

// observeActiveWorkers is a callback that reports active worker counts
func (oe *OTelExporter) observeActiveWorkers(ctx context.Context, observer metric.Int64Observer) error {
	workers, err := oe.collector.GetActiveWorkers(ctx)
	if err != nil {
		return err
	}

	byStatus := make(map[string]int64)
	for _, w := range workers {
		byStatus[w.Status]++
	}
	for status, count := range byStatus {
		observer.Observe(count, metric.WithAttributes(
			attribute.String("worker.status", status),
		))
	}

	return nil
}

// ServeHTTP serves Prometheus-formatted metrics on the given HTTP handler
func (oe *OTelExporter) ServeHTTP() http.Handler {
	return promhttp.Handler()
}

// Shutdown gracefully shuts down the meter provider
func (oe *OTelExporter) Shutdown(ctx context.Context) error {
	if oe.meterProvider != nil {
		return oe.meterProvider.Shutdown(ctx)
	}
	return nil
}
