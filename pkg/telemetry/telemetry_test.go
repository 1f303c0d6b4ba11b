package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func setupMeter(t *testing.T) (*metric.ManualReader, *metric.MeterProvider) {
	t.Helper()
	reader := metric.NewManualReader()
	provider := metric.NewMeterProvider(metric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return reader, provider
}

func collect(t *testing.T, reader *metric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumFor(t *testing.T, m metricdata.Metrics, attr attribute.KeyValue) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)

	var total int64
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attr.Key); ok && v == attr.Value {
			total += dp.Value
		}
	}
	return total
}

func TestBuildMetricName(t *testing.T) {
	assert.Equal(t, "hearthline_sync_count_total", BuildMetricName("sync_count", MetricNameSuffixTotal))
	assert.Equal(t, "hearthline_sync_in_flight", BuildMetricName("sync_in_flight", ""))
}

func TestEndpointHost(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"localhost:4318", "localhost:4318"},
		{"http://collector:4318/v1/metrics", "collector:4318"},
		{" https://Collector:4318?x=1 ", "collector:4318"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, endpointHost(tt.in))
	}
}

func TestSyncMetrics(t *testing.T) {
	reader, provider := setupMeter(t)
	sm, err := NewSyncMetrics(provider.Meter("test"))
	require.NoError(t, err)
	ctx := context.Background()

	sm.RecordSyncStart(ctx, "api")(nil)
	sm.RecordSyncStart(ctx, "background-sync")(errors.New("peer link down"))
	sm.RecordMerged(ctx, 2, 3)

	metrics := collect(t, reader)
	assert.Equal(t, int64(1), sumFor(t, metrics["hearthline_sync_count_total"], WithTrigger("api")))
	assert.Equal(t, int64(1), sumFor(t, metrics["hearthline_sync_error_total"], WithTrigger("background-sync")))
	assert.Equal(t, int64(0), sumFor(t, metrics["hearthline_sync_error_total"], WithTrigger("api")))
	assert.Equal(t, int64(2), sumFor(t, metrics["hearthline_sync_merged_records_total"], WithCollection("alerts")))
	assert.Equal(t, int64(3), sumFor(t, metrics["hearthline_sync_merged_records_total"], WithCollection("messages")))
	assert.Contains(t, metrics, "hearthline_sync_duration_seconds")
}

func TestAssetMetrics(t *testing.T) {
	reader, provider := setupMeter(t)
	am, err := NewAssetMetrics(provider.Meter("test"))
	require.NoError(t, err)
	ctx := context.Background()

	am.RecordFetch(ctx, "hit")
	am.RecordFetch(ctx, "hit")
	am.RecordFetch(ctx, "fallback")
	am.RecordInstall(ctx, "v2", errors.New("unreachable"))
	am.RecordActivate(ctx, "v1", nil)

	metrics := collect(t, reader)
	assert.Equal(t, int64(2), sumFor(t, metrics["hearthline_asset_fetch_total"], WithOutcome("hit")))
	assert.Equal(t, int64(1), sumFor(t, metrics["hearthline_asset_fetch_total"], WithOutcome("fallback")))
	assert.Equal(t, int64(1), sumFor(t, metrics["hearthline_asset_install_total"], WithStatus(StatusError)))
	assert.Equal(t, int64(1), sumFor(t, metrics["hearthline_asset_activate_total"], WithGeneration("v1")))
}

func TestStoreMetrics(t *testing.T) {
	reader, provider := setupMeter(t)
	st, err := NewStoreMetrics(provider.Meter("test"))
	require.NoError(t, err)

	st.RecordDecodeSkipped(context.Background(), "hearthline_alerts")

	metrics := collect(t, reader)
	assert.Equal(t, int64(1), sumFor(t, metrics["hearthline_store_decode_skipped_total"], WithCollection("hearthline_alerts")))
}

func TestConnectivityGauge(t *testing.T) {
	reader, provider := setupMeter(t)
	online := true
	_, err := NewConnectivityGauge(provider.Meter("test"), func() bool { return online })
	require.NoError(t, err)

	gauge := func() float64 {
		m := collect(t, reader)["hearthline_connectivity_online"]
		g, ok := m.Data.(metricdata.Gauge[float64])
		require.True(t, ok)
		require.Len(t, g.DataPoints, 1)
		return g.DataPoints[0].Value
	}

	assert.Equal(t, float64(1), gauge())
	online = false
	assert.Equal(t, float64(0), gauge())
}

func TestNilMetricsAreNoops(t *testing.T) {
	ctx := context.Background()
	var sm *SyncMetrics
	var am *AssetMetrics
	var st *StoreMetrics

	assert.NotPanics(t, func() {
		sm.RecordSyncStart(ctx, "api")(nil)
		sm.RecordMerged(ctx, 1, 1)
		am.RecordFetch(ctx, "hit")
		am.RecordInstall(ctx, "v1", nil)
		am.RecordActivate(ctx, "v1", nil)
		st.RecordDecodeSkipped(ctx, "k")
	})
}

func TestInit_Disabled(t *testing.T) {
	require.NoError(t, Init(context.Background(), Config{Enabled: false}))
	assert.NotNil(t, GetMeter("test"))
	require.NoError(t, Shutdown(context.Background()))
}
