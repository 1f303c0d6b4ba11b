package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestMetricOptions_Validation(t *testing.T) {
	_, provider := setupMeter(t)
	meter := provider.Meter("test")

	tests := []struct {
		name    string
		opts    MetricOptions
		wantErr bool
	}{
		{name: "built name", opts: MetricOptions{Name: BuildMetricName("ok", MetricNameSuffixTotal)}},
		{name: "empty name", opts: MetricOptions{}, wantErr: true},
		{name: "bare prefix", opts: MetricOptions{Name: "hearthline_"}, wantErr: true},
		{name: "foreign name", opts: MetricOptions{Name: "requests_total"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCounter(meter, tt.opts)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}

	_, err := NewGauge(meter, MetricOptions{Name: BuildMetricName("no_callback", "")}, nil)
	assert.Error(t, err)
}

func TestCounter_IgnoresNonPositive(t *testing.T) {
	reader, provider := setupMeter(t)
	c, err := NewCounter(provider.Meter("test"), MetricOptions{Name: BuildMetricName("things", MetricNameSuffixTotal)})
	require.NoError(t, err)
	ctx := context.Background()
	attr := attribute.String("k", "v")

	c.Add(ctx, 0, attr)
	c.Add(ctx, -3, attr)
	c.Add(ctx, 4, attr)
	c.Inc(ctx, attr)

	assert.Equal(t, int64(5), sumFor(t, collect(t, reader)["hearthline_things_total"], attr))
}

func TestHistogram_RecordSince(t *testing.T) {
	reader, provider := setupMeter(t)
	h, err := NewHistogram(provider.Meter("test"), MetricOptions{
		Name: BuildMetricName("work", MetricNameSuffixDuration),
		Unit: "s",
	})
	require.NoError(t, err)

	h.RecordSince(context.Background(), time.Now().Add(-2*time.Second))

	m := collect(t, reader)["hearthline_work_duration_seconds"]
	assert.Equal(t, "s", m.Unit)
	hist, ok := m.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.GreaterOrEqual(t, hist.DataPoints[0].Sum, 2.0)
}

func TestGauge_Unregister(t *testing.T) {
	reader, provider := setupMeter(t)
	g, err := NewGauge(provider.Meter("test"), MetricOptions{Name: BuildMetricName("level", "")},
		func(context.Context) (float64, []attribute.KeyValue) { return 7, nil })
	require.NoError(t, err)

	m := collect(t, reader)["hearthline_level"]
	assert.Equal(t, "1", m.Unit)
	gv, ok := m.Data.(metricdata.Gauge[float64])
	require.True(t, ok)
	require.Len(t, gv.DataPoints, 1)
	assert.Equal(t, float64(7), gv.DataPoints[0].Value)

	require.NoError(t, g.Unregister())
}

func TestNilInstrumentsAreNoops(t *testing.T) {
	ctx := context.Background()
	var c *Counter
	var h *Histogram
	var u *UpDownCounter
	var g *Gauge

	assert.NotPanics(t, func() {
		c.Inc(ctx)
		h.RecordSince(ctx, time.Now())
		u.Inc(ctx)
		u.Dec(ctx)
		assert.NoError(t, g.Unregister())
	})
}
