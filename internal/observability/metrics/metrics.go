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
	ordersCreated     metric.Int64Counter
	orderTransitions  metric.Int64Counter
	assignments       metric.Int64Counter
	assignConflicts   metric.Int64Counter
	jobCardMutations  metric.Int64Counter
	paymentsSettled   metric.Int64Counter
	broadcastsDropped metric.Int64Counter
	rateLimitDenied   metric.Int64Counter
	jobRuns           metric.Int64Counter
	jobDuration       metric.Float64Histogram
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
		name = "fieldops"
	}
	meter := provider.Meter(name)

	m := &Metrics{}
	var err error
	if m.ordersCreated, err = meter.Int64Counter("fieldops_orders_created_total"); err != nil {
		return nil, err
	}
	if m.orderTransitions, err = meter.Int64Counter("fieldops_order_transitions_total"); err != nil {
		return nil, err
	}
	if m.assignments, err = meter.Int64Counter("fieldops_assignments_total"); err != nil {
		return nil, err
	}
	if m.assignConflicts, err = meter.Int64Counter("fieldops_assignment_conflicts_total"); err != nil {
		return nil, err
	}
	if m.jobCardMutations, err = meter.Int64Counter("fieldops_job_card_mutations_total"); err != nil {
		return nil, err
	}
	if m.paymentsSettled, err = meter.Int64Counter("fieldops_payments_settled_total"); err != nil {
		return nil, err
	}
	if m.broadcastsDropped, err = meter.Int64Counter("fieldops_realtime_dropped_total"); err != nil {
		return nil, err
	}
	if m.rateLimitDenied, err = meter.Int64Counter("fieldops_rate_limit_denied_total"); err != nil {
		return nil, err
	}
	if m.jobRuns, err = meter.Int64Counter("fieldops_scheduler_job_runs_total"); err != nil {
		return nil, err
	}
	if m.jobDuration, err = meter.Float64Histogram("fieldops_scheduler_job_duration_seconds", metric.WithUnit("s")); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) RecordOrderCreated(ctx context.Context, source string) {
	if m == nil {
		return
	}
	m.ordersCreated.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.String("source", source))...))
}

func (m *Metrics) RecordOrderTransition(ctx context.Context, status string) {
	if m == nil {
		return
	}
	m.orderTransitions.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.String("status", status))...))
}

// RecordAssignment counts assignment attempts by outcome; conflicts are also tallied separately.
func (m *Metrics) RecordAssignment(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.assignments.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.String("outcome", outcome))...))
	if outcome == "conflict" {
		m.assignConflicts.Add(ctx, 1)
	}
}

func (m *Metrics) RecordJobCardMutation(ctx context.Context, action string) {
	if m == nil {
		return
	}
	m.jobCardMutations.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.String("action", action))...))
}

func (m *Metrics) RecordPaymentSettled(ctx context.Context, method, provider string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("method", strings.TrimSpace(method)),
		attribute.String("provider", strings.TrimSpace(provider)),
	)
	m.paymentsSettled.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordBroadcastDropped(ctx context.Context, stream string) {
	if m == nil {
		return
	}
	m.broadcastsDropped.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.String("stream", stream))...))
}

func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint string) {
	if m == nil {
		return
	}
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attribute.String("endpoint", endpoint))...))
}

// RecordJobRun tallies a scheduler job run by outcome (ok, error, timeout).
func (m *Metrics) RecordJobRun(ctx context.Context, job, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(FilterAttributes(
		attribute.String("job", job),
		attribute.String("outcome", outcome),
	)...)
	m.jobRuns.Add(ctx, 1, attrs)
	m.jobDuration.Record(ctx, took.Seconds(), attrs)
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
	"source":   {},
	"status":   {},
	"outcome":  {},
	"action":   {},
	"method":   {},
	"provider": {},
	"stream":   {},
	"endpoint": {},
	"job":      {},
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
