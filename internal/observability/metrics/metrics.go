package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	paymentsRecorded metric.Int64Counter
	gatewayEvents    metric.Int64Counter
	checkTransitions metric.Int64Counter
	reconcileRuns    metric.Int64Counter
	orAllocFailures  metric.Int64Counter
	rateLimitDenied  metric.Int64Counter
	checkoutsCreated metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "feeledger"
	}
	meter := provider.Meter(name)

	paymentsRecorded, err := meter.Int64Counter("feeledger_payments_recorded_total")
	if err != nil {
		return nil, err
	}
	gatewayEvents, err := meter.Int64Counter("feeledger_gateway_events_total")
	if err != nil {
		return nil, err
	}
	checkTransitions, err := meter.Int64Counter("feeledger_check_transitions_total")
	if err != nil {
		return nil, err
	}
	reconcileRuns, err := meter.Int64Counter("feeledger_reconcile_runs_total")
	if err != nil {
		return nil, err
	}
	orAllocFailures, err := meter.Int64Counter("feeledger_or_allocation_failures_total")
	if err != nil {
		return nil, err
	}
	rateLimitDenied, err := meter.Int64Counter("feeledger_rate_limit_denied_total")
	if err != nil {
		return nil, err
	}
	checkoutsCreated, err := meter.Int64Counter("feeledger_checkouts_created_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		paymentsRecorded: paymentsRecorded,
		gatewayEvents:    gatewayEvents,
		checkTransitions: checkTransitions,
		reconcileRuns:    reconcileRuns,
		orAllocFailures:  orAllocFailures,
		rateLimitDenied:  rateLimitDenied,
		checkoutsCreated: checkoutsCreated,
	}, nil
}

// RecordPayment increments recorded payment counts.
func (m *Metrics) RecordPayment(ctx context.Context, method, status string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("method", strings.TrimSpace(method)),
		attribute.String("status", strings.TrimSpace(status)),
	)
	m.paymentsRecorded.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordGatewayEvent increments inbound gateway event counts.
func (m *Metrics) RecordGatewayEvent(ctx context.Context, gateway, eventType, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("gateway", strings.TrimSpace(gateway)),
		attribute.String("event_type", strings.TrimSpace(eventType)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.gatewayEvents.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordCheckTransition increments check resolution counts.
func (m *Metrics) RecordCheckTransition(ctx context.Context, target string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("target", strings.TrimSpace(target)))
	m.checkTransitions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordReconcile increments reconciler run counts.
func (m *Metrics) RecordReconcile(ctx context.Context, status string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("status", strings.TrimSpace(status)))
	m.reconcileRuns.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordORAllocationFailure increments receipt allocation failure counts.
func (m *Metrics) RecordORAllocationFailure(ctx context.Context) {
	if m == nil {
		return
	}
	m.orAllocFailures.Add(ctx, 1)
}

// RecordRateLimitDenied increments rate limit deny counts.
func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordCheckoutCreated increments gateway checkout session counts.
func (m *Metrics) RecordCheckoutCreated(ctx context.Context, gateway string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("gateway", strings.TrimSpace(gateway)))
	m.checkoutsCreated.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"gateway":     {},
	"event_type":  {},
	"outcome":     {},
	"method":      {},
	"status":      {},
	"target":      {},
	"endpoint":    {},
	"reason":      {},
	"status_code": {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
