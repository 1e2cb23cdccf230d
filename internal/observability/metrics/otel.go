package metrics

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
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

// Config configures the OTLP metrics pipeline that mirrors the prometheus
// instruments to a collector.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Interval         time.Duration
}

type instruments struct {
	invitations metric.Int64Counter
	capDenials  metric.Int64Counter
	usageCost   metric.Float64Counter
	teamSyncs   metric.Int64Counter
	jobErrors   metric.Int64Counter
}

var mirror atomic.Pointer[instruments]

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

	interval := cfg.Interval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))
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

// Install creates the mirrored instruments on provider. Until it runs only
// the prometheus instruments record.
func Install(cfg Config, provider metric.MeterProvider) error {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "proppass"
	}
	meter := provider.Meter(name)

	invitations, err := meter.Int64Counter("proppass.invitations")
	if err != nil {
		return err
	}
	capDenials, err := meter.Int64Counter("proppass.cap_denials")
	if err != nil {
		return err
	}
	usageCost, err := meter.Float64Counter("proppass.usage_cost")
	if err != nil {
		return err
	}
	teamSyncs, err := meter.Int64Counter("proppass.team_syncs")
	if err != nil {
		return err
	}
	jobErrors, err := meter.Int64Counter("proppass.scheduler.job_errors")
	if err != nil {
		return err
	}

	mirror.Store(&instruments{
		invitations: invitations,
		capDenials:  capDenials,
		usageCost:   usageCost,
		teamSyncs:   teamSyncs,
		jobErrors:   jobErrors,
	})
	return nil
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	endpoint = strings.TrimSpace(endpoint)
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "http", "http/protobuf", "":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

func mirrorAdd(fn func(m *instruments)) {
	if m := mirror.Load(); m != nil {
		fn(m)
	}
}

func attrs(kv ...attribute.KeyValue) metric.AddOption {
	return metric.WithAttributes(kv...)
}
