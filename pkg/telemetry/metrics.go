/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package telemetry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
)

const metricNamePrefix = "hearthline_"

// MetricOptions describes an instrument. Name must come from BuildMetricName;
// Unit defaults to "1".
type MetricOptions struct {
	Name        string
	Description string
	Unit        string
}

func (o MetricOptions) validate() error {
	if !strings.HasPrefix(o.Name, metricNamePrefix) || len(o.Name) == len(metricNamePrefix) {
		return fmt.Errorf("metric name %q must be built with BuildMetricName", o.Name)
	}
	return nil
}

func (o MetricOptions) unit() string {
	if o.Unit == "" {
		return "1"
	}
	return o.Unit
}

// Counter is a monotonic count. A nil *Counter records nothing.
type Counter struct {
	counter otelmetric.Int64Counter
}

func NewCounter(meter otelmetric.Meter, opts MetricOptions) (*Counter, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	counter, err := meter.Int64Counter(opts.Name,
		otelmetric.WithDescription(opts.Description),
		otelmetric.WithUnit(opts.unit()))
	if err != nil {
		return nil, fmt.Errorf("failed to create counter %s: %w", opts.Name, err)
	}
	return &Counter{counter: counter}, nil
}

// Add ignores non-positive values; merged batches are often empty
func (c *Counter) Add(ctx context.Context, value int64, attrs ...attribute.KeyValue) {
	if c == nil || value <= 0 {
		return
	}
	c.counter.Add(ctx, value, otelmetric.WithAttributes(attrs...))
}

func (c *Counter) Inc(ctx context.Context, attrs ...attribute.KeyValue) {
	c.Add(ctx, 1, attrs...)
}

type Histogram struct {
	histogram otelmetric.Float64Histogram
}

func NewHistogram(meter otelmetric.Meter, opts MetricOptions) (*Histogram, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	histogram, err := meter.Float64Histogram(opts.Name,
		otelmetric.WithDescription(opts.Description),
		otelmetric.WithUnit(opts.unit()))
	if err != nil {
		return nil, fmt.Errorf("failed to create histogram %s: %w", opts.Name, err)
	}
	return &Histogram{histogram: histogram}, nil
}

func (h *Histogram) Record(ctx context.Context, value float64, attrs ...attribute.KeyValue) {
	if h == nil {
		return
	}
	h.histogram.Record(ctx, value, otelmetric.WithAttributes(attrs...))
}

// RecordSince records the seconds elapsed since start
func (h *Histogram) RecordSince(ctx context.Context, start time.Time, attrs ...attribute.KeyValue) {
	h.Record(ctx, time.Since(start).Seconds(), attrs...)
}

// GaugeCallback reports the current value when the reader collects
type GaugeCallback func(context.Context) (float64, []attribute.KeyValue)

// Gauge is observed on collection; it holds no state of its own
type Gauge struct {
	gauge        otelmetric.Float64ObservableGauge
	registration otelmetric.Registration
}

func NewGauge(meter otelmetric.Meter, opts MetricOptions, callback GaugeCallback) (*Gauge, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if callback == nil {
		return nil, fmt.Errorf("gauge %s needs a callback", opts.Name)
	}

	gauge, err := meter.Float64ObservableGauge(opts.Name,
		otelmetric.WithDescription(opts.Description),
		otelmetric.WithUnit(opts.unit()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gauge %s: %w", opts.Name, err)
	}
	registration, err := meter.RegisterCallback(func(ctx context.Context, o otelmetric.Observer) error {
		value, attrs := callback(ctx)
		o.ObserveFloat64(gauge, value, otelmetric.WithAttributes(attrs...))
		return nil
	}, gauge)
	if err != nil {
		return nil, fmt.Errorf("failed to register gauge %s: %w", opts.Name, err)
	}
	return &Gauge{gauge: gauge, registration: registration}, nil
}

// Unregister stops observing the gauge
func (g *Gauge) Unregister() error {
	if g == nil || g.registration == nil {
		return nil
	}
	return g.registration.Unregister()
}

// UpDownCounter tracks a level such as runs in flight. A nil *UpDownCounter records nothing.
type UpDownCounter struct {
	counter otelmetric.Int64UpDownCounter
}

func NewUpDownCounter(meter otelmetric.Meter, opts MetricOptions) (*UpDownCounter, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	counter, err := meter.Int64UpDownCounter(opts.Name,
		otelmetric.WithDescription(opts.Description),
		otelmetric.WithUnit(opts.unit()))
	if err != nil {
		return nil, fmt.Errorf("failed to create up-down counter %s: %w", opts.Name, err)
	}
	return &UpDownCounter{counter: counter}, nil
}

func (u *UpDownCounter) Inc(ctx context.Context, attrs ...attribute.KeyValue) {
	u.add(ctx, 1, attrs)
}

func (u *UpDownCounter) Dec(ctx context.Context, attrs ...attribute.KeyValue) {
	u.add(ctx, -1, attrs)
}

func (u *UpDownCounter) add(ctx context.Context, delta int64, attrs []attribute.KeyValue) {
	if u == nil {
		return
	}
	u.counter.Add(ctx, delta, otelmetric.WithAttributes(attrs...))
}
