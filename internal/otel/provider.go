// Package otel owns the OpenTelemetry log and metric pipelines of a session.
package otel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// DefaultServiceName is used when Config.ServiceName is empty.
const DefaultServiceName = "timeslider"

// Config holds OTel configuration
type Config struct {
	Enabled        bool
	ServiceName    string
	BatchTimeout   time.Duration
	MetricInterval time.Duration

	// LogWriter receives pretty-printed log records and periodic metric
	// dumps. Required unless Endpoint is set.
	LogWriter io.Writer
	Endpoint  string // OTLP/HTTP collector for logs
	Insecure  bool
}

// Provider manages OpenTelemetry providers for logs and metrics
type Provider struct {
	logProvider   *sdklog.LoggerProvider
	meterProvider *sdkmetric.MeterProvider
	enabled       bool
}

// New builds the pipelines described by cfg. A disabled config yields a
// provider whose methods are no-ops. The meter provider exists only with a
// LogWriter; it is installed globally so instruments created through
// otel.Meter report to it.
func New(cfg Config) (*Provider, error) {
	p := &Provider{enabled: cfg.Enabled}
	if !cfg.Enabled {
		return p, nil
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = DefaultServiceName
	}

	ctx := context.Background()
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporters, err := logExporters(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if len(exporters) == 0 {
		return nil, errors.New("OTel enabled but no log writer or endpoint configured")
	}

	logOpts := []sdklog.LoggerProviderOption{sdklog.WithResource(res)}
	for _, exp := range exporters {
		logOpts = append(logOpts, sdklog.WithProcessor(
			sdklog.NewBatchProcessor(exp, sdklog.WithExportTimeout(cfg.BatchTimeout))))
	}
	p.logProvider = sdklog.NewLoggerProvider(logOpts...)

	if cfg.LogWriter != nil {
		p.meterProvider, err = newMeterProvider(res, cfg.LogWriter, cfg.MetricInterval)
		if err != nil {
			return nil, err
		}
		otel.SetMeterProvider(p.meterProvider)
	}
	return p, nil
}

func logExporters(ctx context.Context, cfg Config) ([]sdklog.Exporter, error) {
	var out []sdklog.Exporter

	if cfg.LogWriter != nil {
		exp, err := stdoutlog.New(stdoutlog.WithWriter(cfg.LogWriter), stdoutlog.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create file log exporter: %w", err)
		}
		out = append(out, exp)
	}

	if cfg.Endpoint != "" {
		opts := []otlploghttp.Option{otlploghttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlploghttp.WithInsecure())
		}
		exp, err := otlploghttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP log exporter: %w", err)
		}
		out = append(out, exp)
	}
	return out, nil
}

func newMeterProvider(res *resource.Resource, w io.Writer, interval time.Duration) (*sdkmetric.MeterProvider, error) {
	exp, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("failed to create file metric exporter: %w", err)
	}
	var readerOpts []sdkmetric.PeriodicReaderOption
	if interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(interval))
	}
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, readerOpts...)),
	), nil
}

// LoggerProvider returns the provider for the otelslog bridge, or nil when
// OTel is disabled.
func (p *Provider) LoggerProvider() *sdklog.LoggerProvider {
	return p.logProvider
}

// Meter returns a meter from this provider, or from the global one when
// metrics are not exported.
func (p *Provider) Meter(name string) metric.Meter {
	if p.meterProvider != nil {
		return p.meterProvider.Meter(name)
	}
	return otel.Meter(name)
}

// Flush exports everything buffered so far.
func (p *Provider) Flush(ctx context.Context) error {
	var errs []error
	if p.logProvider != nil {
		if err := p.logProvider.ForceFlush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("log flush failed: %w", err))
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.ForceFlush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metric flush failed: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Shutdown flushes and stops both pipelines. Metrics go first so their last
// export lands before the log writer is released.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metric shutdown failed: %w", err))
		}
	}
	if p.logProvider != nil {
		if err := p.logProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("log shutdown failed: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Enabled returns whether OTel is enabled
func (p *Provider) Enabled() bool {
	return p.enabled
}
