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

const (
	OutcomeSuccess        = "success"
	OutcomeRejected       = "rejected"
	OutcomeTransportError = "transport_error"
)

// Metrics exposes payment orchestration instruments.
type Metrics struct {
	gatewayRequests   metric.Int64Counter
	gatewayDuration   metric.Float64Histogram
	statusTransitions metric.Int64Counter
	ledgerMismatches  metric.Int64Counter
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
				log.Info("shutting down meter provider")
				return provider.Shutdown(ctx)
			},
		})
	}

	log.Info("metrics initialized",
		zap.String("endpoint", cfg.ExporterEndpoint),
		zap.String("protocol", cfg.ExporterProtocol),
	)
	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "acquiring"
	}
	meter := provider.Meter(name)

	gatewayRequests, err := meter.Int64Counter("acquiring_gateway_requests_total")
	if err != nil {
		return nil, err
	}
	gatewayDuration, err := meter.Float64Histogram("acquiring_gateway_request_duration_seconds",
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	statusTransitions, err := meter.Int64Counter("acquiring_payment_status_transitions_total")
	if err != nil {
		return nil, err
	}
	ledgerMismatches, err := meter.Int64Counter("acquiring_ledger_write_failures_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		gatewayRequests:   gatewayRequests,
		gatewayDuration:   gatewayDuration,
		statusTransitions: statusTransitions,
		ledgerMismatches:  ledgerMismatches,
	}, nil
}

// RecordGatewayCall counts one gateway round trip and its latency.
func (m *Metrics) RecordGatewayCall(ctx context.Context, operation, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("operation", strings.TrimSpace(operation)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.gatewayRequests.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.gatewayDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(FilterAttributes(
		attribute.String("operation", strings.TrimSpace(operation)),
	)...))
}

// RecordStatusTransition counts a local payment status change.
func (m *Metrics) RecordStatusTransition(ctx context.Context, system, from, to string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("system", system),
		attribute.String("from", from),
		attribute.String("to", to),
	)
	m.statusTransitions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordLedgerWriteFailure counts local writes that failed after a gateway call completed.
func (m *Metrics) RecordLedgerWriteFailure(ctx context.Context, operation, write string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("operation", operation),
		attribute.String("write", write),
	)
	m.ledgerMismatches.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithInsecure()}
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
	"operation": {},
	"outcome":   {},
	"system":    {},
	"from":      {},
	"to":        {},
	"write":     {},
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
