package syncer

import (
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/xenking/storesync/internal/domain/user"
)

const instrumentationName = "github.com/xenking/storesync/internal/domain/syncer"

type config struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	passwords      func() (string, error)
}

func newConfig(opts []Option) config {
	cfg := config{
		tracerProvider: tracenoop.NewTracerProvider(),
		meterProvider:  metricnoop.NewMeterProvider(),
		passwords: func() (string, error) {
			return user.GeneratePassword(user.DefaultPasswordLength)
		},
	}
	for _, o := range opts {
		o(&cfg)
	}
	return cfg
}

// Option configures a Service.
type Option func(*config)

// WithTracerProvider sets the tracer provider used for sync spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *config) {
		if tp != nil {
			c.tracerProvider = tp
		}
	}
}

// WithMeterProvider sets the meter provider used for sync counters.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *config) {
		if mp != nil {
			c.meterProvider = mp
		}
	}
}

// WithPasswordGenerator replaces the generator of new account passwords.
func WithPasswordGenerator(f func() (string, error)) Option {
	return func(c *config) {
		if f != nil {
			c.passwords = f
		}
	}
}
