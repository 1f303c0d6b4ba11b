package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
)

// StoreMetrics counts record store diagnostics
type StoreMetrics struct {
	DecodeSkippedTotal *Counter
}

func NewStoreMetrics(meter otelmetric.Meter) (*StoreMetrics, error) {
	skipped, err := NewCounter(meter, MetricOptions{
		Name:        BuildMetricName("store_decode_skipped", MetricNameSuffixTotal),
		Description: "persisted collections read as empty because they did not decode",
		Unit:        "1",
	})
	if err != nil {
		return nil, err
	}
	return &StoreMetrics{DecodeSkippedTotal: skipped}, nil
}

func (st *StoreMetrics) RecordDecodeSkipped(ctx context.Context, key string) {
	if st == nil {
		return
	}
	st.DecodeSkippedTotal.Inc(ctx, WithCollection(key))
}

// NewConnectivityGauge reports 1 while online and 0 while offline
func NewConnectivityGauge(meter otelmetric.Meter, online func() bool) (*Gauge, error) {
	return NewGauge(meter, MetricOptions{
		Name:        BuildMetricName("connectivity_online", ""),
		Description: "1 when the connectivity probe last succeeded",
		Unit:        "1",
	}, func(context.Context) (float64, []attribute.KeyValue) {
		if online() {
			return 1, nil
		}
		return 0, nil
	})
}
