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

// Metrics exposes ledger instruments. A nil *Metrics is a valid no-op.
type Metrics struct {
	provisionSteps       metric.Int64Counter
	indexEnsure          metric.Int64Counter
	lifecycleOps         metric.Int64Counter
	denominationMismatch metric.Int64Counter
	cacheInvalidations   metric.Int64Counter
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

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(15*time.Second))
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

// New configures the ledger instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "moiledger"
	}
	meter := provider.Meter(name)

	provisionSteps, err := meter.Int64Counter("moiledger_tenant_provision_steps_total",
		metric.WithDescription("Tenant collection provisioning steps by entity kind and outcome"))
	if err != nil {
		return nil, err
	}
	indexEnsure, err := meter.Int64Counter("moiledger_tenant_index_ensure_total",
		metric.WithDescription("Tenant index provisioning attempts by outcome"))
	if err != nil {
		return nil, err
	}
	lifecycleOps, err := meter.Int64Counter("moiledger_lifecycle_operations_total")
	if err != nil {
		return nil, err
	}
	denominationMismatch, err := meter.Int64Counter("moiledger_denomination_mismatch_total")
	if err != nil {
		return nil, err
	}
	cacheInvalidations, err := meter.Int64Counter("moiledger_cache_invalidations_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		provisionSteps:       provisionSteps,
		indexEnsure:          indexEnsure,
		lifecycleOps:         lifecycleOps,
		denominationMismatch: denominationMismatch,
		cacheInvalidations:   cacheInvalidations,
	}, nil
}

// NewNop returns instruments bound to a no-op provider.
func NewNop() *Metrics {
	m, _ := New(Config{}, noop.NewMeterProvider())
	return m
}

func (m *Metrics) RecordProvisionStep(ctx context.Context, kind, status string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("entity_kind", strings.TrimSpace(kind)),
		attribute.String("status", strings.TrimSpace(status)),
	)
	m.provisionSteps.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordIndexEnsure(ctx context.Context, kind, status string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("entity_kind", strings.TrimSpace(kind)),
		attribute.String("status", strings.TrimSpace(status)),
	)
	m.indexEnsure.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordLifecycle(ctx context.Context, entity, action string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("entity", strings.TrimSpace(entity)),
		attribute.String("action", strings.TrimSpace(action)),
	)
	m.lifecycleOps.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordDenominationMismatch(ctx context.Context) {
	if m == nil {
		return
	}
	m.denominationMismatch.Add(ctx, 1)
}

func (m *Metrics) RecordCacheInvalidation(ctx context.Context, status string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("status", strings.TrimSpace(status)))
	m.cacheInvalidations.Add(ctx, 1, metric.WithAttributes(attrs...))
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

// Tenant identifiers are deliberately absent: one series per tenant would be unbounded.
var allowedLabelKeys = map[attribute.Key]struct{}{
	"entity_kind": {},
	"entity":      {},
	"action":      {},
	"status":      {},
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
