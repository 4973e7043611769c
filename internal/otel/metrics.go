// Package otel provides OpenTelemetry metrics integration for burnrig.
package otel

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// MetricsConfig holds configuration for the OpenTelemetry metrics.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active. Default: false (no-op).
	Enabled bool

	// ServiceName is the name of the service for metric attribution.
	ServiceName string

	// ServiceVersion is the version of the service.
	ServiceVersion string

	// ExporterType specifies which exporter to use.
	ExporterType ExporterType

	// OTLPEndpoint is the endpoint for OTLP exporters (e.g., "localhost:4317").
	OTLPEndpoint string

	// OTLPInsecure disables TLS for OTLP connections.
	OTLPInsecure bool

	// Attributes are additional attributes to add to all metrics.
	Attributes map[string]string
}

// DefaultMetricsConfig returns a default configuration with metrics disabled.
func DefaultMetricsConfig() *MetricsConfig {
	return &MetricsConfig{
		Enabled:      false,
		ServiceName:  "burnrig",
		ExporterType: ExporterNone,
	}
}

// Metrics wraps OpenTelemetry metrics functionality with burnrig-specific helpers.
type Metrics struct {
	config        *MetricsConfig
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	shutdown      func(context.Context) error
	mu            sync.RWMutex

	allocatedMB   atomic.Int64
	allocGauge    metric.Int64ObservableGauge
	allocGaugeReg metric.Registration

	// Metric instruments
	dutyCycleCounter metric.Int64Counter
	probeCounter     metric.Int64Counter
	storageCounter   metric.Int64Counter
	trialCounter     metric.Int64Counter
	verdictCounter   metric.Int64Counter
	errorCounter     metric.Int64Counter
}

// globalMetrics is the singleton metrics instance.
var (
	globalMetrics   *Metrics
	globalMetricsMu sync.RWMutex
)

// NewMetrics creates a new Metrics instance with the given configuration.
func NewMetrics(ctx context.Context, cfg *MetricsConfig) (*Metrics, error) {
	if cfg == nil {
		cfg = DefaultMetricsConfig()
	}

	m := &Metrics{
		config: cfg,
	}

	if !cfg.Enabled || cfg.ExporterType == ExporterNone {
		// Use no-op meter when disabled
		m.meterProvider = sdkmetric.NewMeterProvider()
		m.meter = m.meterProvider.Meter(cfg.ServiceName)
		m.shutdown = func(context.Context) error { return nil }
		return m, nil
	}

	// Create exporter based on type
	exporter, err := m.createExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics exporter: %w", err)
	}

	// Create resource with service information
	res, err := m.createResource(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics resource: %w", err)
	}

	// Create meter provider
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		sdkmetric.WithResource(res),
	)

	m.meterProvider = mp
	m.meter = mp.Meter(cfg.ServiceName)
	m.shutdown = mp.Shutdown

	// Register metric instruments
	if err := m.registerInstruments(); err != nil {
		return nil, fmt.Errorf("failed to register metric instruments: %w", err)
	}

	return m, nil
}

// createExporter creates the appropriate metrics exporter based on configuration.
func (m *Metrics) createExporter(ctx context.Context, cfg *MetricsConfig) (sdkmetric.Exporter, error) {
	switch cfg.ExporterType {
	case ExporterStdout:
		return stdoutmetric.New()

	case ExporterOTLPGRPC:
		opts := []otlpmetricgrpc.Option{}
		if cfg.OTLPEndpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint))
		}
		if cfg.OTLPInsecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		return otlpmetricgrpc.New(ctx, opts...)

	case ExporterOTLPHTTP:
		opts := []otlpmetrichttp.Option{}
		if cfg.OTLPEndpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(cfg.OTLPEndpoint))
		}
		if cfg.OTLPInsecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		return otlpmetrichttp.New(ctx, opts...)

	default:
		return nil, fmt.Errorf("unknown exporter type: %s", cfg.ExporterType)
	}
}

// createResource creates the OpenTelemetry resource with service information.
func (m *Metrics) createResource(cfg *MetricsConfig) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
	}

	if cfg.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(cfg.ServiceVersion))
	}

	// Add custom attributes
	for k, v := range cfg.Attributes {
		attrs = append(attrs, attribute.String(k, v))
	}

	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes("", attrs...),
	)
}

// registerInstruments creates and registers all metric instruments.
func (m *Metrics) registerInstruments() error {
	var err error

	// Duty cycle counter with category attribute
	m.dutyCycleCounter, err = m.meter.Int64Counter(
		"burnrig.duty_cycles",
		metric.WithDescription("Count of completed load duty cycles"),
	)
	if err != nil {
		return fmt.Errorf("failed to create duty cycle counter: %w", err)
	}

	// Network probe counter with success attribute
	m.probeCounter, err = m.meter.Int64Counter(
		"burnrig.probes",
		metric.WithDescription("Count of network probes"),
	)
	if err != nil {
		return fmt.Errorf("failed to create probe counter: %w", err)
	}

	// Storage verification cycle counter with ok attribute
	m.storageCounter, err = m.meter.Int64Counter(
		"burnrig.storage.cycles",
		metric.WithDescription("Count of storage write-verify cycles"),
	)
	if err != nil {
		return fmt.Errorf("failed to create storage cycle counter: %w", err)
	}

	// Audio trial counter with passed attribute
	m.trialCounter, err = m.meter.Int64Counter(
		"burnrig.trials",
		metric.WithDescription("Count of audio loopback trials"),
	)
	if err != nil {
		return fmt.Errorf("failed to create trial counter: %w", err)
	}

	// Verdict counter with category and verdict attributes
	m.verdictCounter, err = m.meter.Int64Counter(
		"burnrig.verdicts",
		metric.WithDescription("Count of final verdicts by category"),
	)
	if err != nil {
		return fmt.Errorf("failed to create verdict counter: %w", err)
	}

	// Error counter with category attribute
	m.errorCounter, err = m.meter.Int64Counter(
		"burnrig.errors",
		metric.WithDescription("Count of errors by category"),
	)
	if err != nil {
		return fmt.Errorf("failed to create error counter: %w", err)
	}

	// Allocated memory observable gauge
	m.allocGauge, err = m.meter.Int64ObservableGauge(
		"burnrig.memory.allocated_mb",
		metric.WithDescription("Memory currently held by the target controller"),
		metric.WithUnit("MBy"),
	)
	if err != nil {
		return fmt.Errorf("failed to create allocation gauge: %w", err)
	}

	// Register callback for allocation gauge
	m.allocGaugeReg, err = m.meter.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			o.ObserveInt64(m.allocGauge, m.allocatedMB.Load())
			return nil
		},
		m.allocGauge,
	)
	if err != nil {
		return fmt.Errorf("failed to register allocation gauge callback: %w", err)
	}

	return nil
}

// RecordDutyCycle counts one completed busy-pause cycle for a category.
func (m *Metrics) RecordDutyCycle(ctx context.Context, category string) {
	if m.dutyCycleCounter == nil {
		return
	}

	m.dutyCycleCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("category", category),
	))
}

// RecordProbe counts one network probe with its outcome.
func (m *Metrics) RecordProbe(ctx context.Context, success bool) {
	if m.probeCounter == nil {
		return
	}

	m.probeCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("success", success),
	))
}

// RecordStorageCycle counts one write-verify cycle with its outcome.
func (m *Metrics) RecordStorageCycle(ctx context.Context, ok bool) {
	if m.storageCounter == nil {
		return
	}

	m.storageCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("ok", ok),
	))
}

// RecordTrial counts one audio loopback trial with its outcome.
func (m *Metrics) RecordTrial(ctx context.Context, passed bool) {
	if m.trialCounter == nil {
		return
	}

	m.trialCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("passed", passed),
	))
}

// RecordRunVerdicts counts the final verdict of every category at the
// end of a run. pairs maps category name to verdict name.
func (m *Metrics) RecordRunVerdicts(ctx context.Context, pairs map[string]string) {
	if m.verdictCounter == nil {
		return
	}

	for category, verdict := range pairs {
		m.verdictCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("category", category),
			attribute.String("verdict", verdict),
		))
	}
}

// RecordError records an error with the specified category.
func (m *Metrics) RecordError(ctx context.Context, category string) {
	if m.errorCounter == nil {
		return
	}

	m.errorCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("category", category),
	))
}

// SetAllocatedMB sets the current allocation level for the observable
// gauge. This is thread-safe and will be read by the gauge callback.
func (m *Metrics) SetAllocatedMB(mb int64) {
	m.allocatedMB.Store(mb)
}

// Shutdown gracefully shuts down the metrics provider, flushing any pending metrics.
func (m *Metrics) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Unregister callback if registered
	if m.allocGaugeReg != nil {
		if err := m.allocGaugeReg.Unregister(); err != nil {
			return fmt.Errorf("failed to unregister allocation callback: %w", err)
		}
	}

	if m.shutdown != nil {
		return m.shutdown(ctx)
	}
	return nil
}

// Enabled returns whether metrics collection is enabled.
func (m *Metrics) Enabled() bool {
	return m.config.Enabled && m.config.ExporterType != ExporterNone
}

// MeterProvider returns the underlying meter provider.
func (m *Metrics) MeterProvider() *sdkmetric.MeterProvider {
	return m.meterProvider
}

// SetGlobalMetrics sets the global metrics instance.
func SetGlobalMetrics(m *Metrics) {
	globalMetricsMu.Lock()
	defer globalMetricsMu.Unlock()
	globalMetrics = m

	if m != nil && m.Enabled() {
		otel.SetMeterProvider(m.meterProvider)
	}
}

// GetGlobalMetrics returns the global metrics instance.
// Returns a no-op metrics instance if none has been set.
func GetGlobalMetrics() *Metrics {
	globalMetricsMu.RLock()
	defer globalMetricsMu.RUnlock()

	if globalMetrics == nil {
		// Return a no-op metrics instance
		cfg := DefaultMetricsConfig()
		m := &Metrics{
			config:        cfg,
			meterProvider: sdkmetric.NewMeterProvider(),
			shutdown:      func(context.Context) error { return nil },
		}
		m.meter = m.meterProvider.Meter(cfg.ServiceName)
		return m
	}

	return globalMetrics
}

// NoopMetrics returns a metrics instance that does nothing (for testing or when disabled).
func NoopMetrics() *Metrics {
	cfg := DefaultMetricsConfig()
	mp := sdkmetric.NewMeterProvider()
	return &Metrics{
		config:        cfg,
		meterProvider: mp,
		meter:         mp.Meter(cfg.ServiceName),
		shutdown:      func(context.Context) error { return nil },
	}
}
