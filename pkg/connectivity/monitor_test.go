package connectivity

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/mocktracer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthline/hearthline/pkg/request/httpclient"
)

type stubProber struct {
	err error
}

func (s *stubProber) Probe(context.Context) error {
	return s.err
}

func TestMonitor_ReconnectListeners(t *testing.T) {
	prober := &stubProber{err: errors.New("no route to host")}
	m := NewMonitor(prober, true)
	ctx := context.Background()

	var reconnects atomic.Int32
	m.OnReconnect(func(context.Context) { reconnects.Add(1) })

	tests := []struct {
		name           string
		probeErr       error
		wantOnline     bool
		wantReconnects int32
	}{
		{name: "goes offline", probeErr: errors.New("down"), wantOnline: false, wantReconnects: 0},
		{name: "stays offline", probeErr: errors.New("down"), wantOnline: false, wantReconnects: 0},
		{name: "comes back", probeErr: nil, wantOnline: true, wantReconnects: 1},
		{name: "stays online", probeErr: nil, wantOnline: true, wantReconnects: 1},
		{name: "drops again", probeErr: errors.New("down"), wantOnline: false, wantReconnects: 1},
		{name: "returns again", probeErr: nil, wantOnline: true, wantReconnects: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prober.err = tt.probeErr
			assert.Equal(t, tt.wantOnline, m.Poll(ctx))
			assert.Equal(t, tt.wantOnline, m.Online())
			require.NoError(t, m.Wait(ctx))
			assert.Equal(t, tt.wantReconnects, reconnects.Load())
		})
	}

	assert.False(t, m.Status().LastProbe.IsZero())
}

func TestMonitor_SetOnlineWithoutProber(t *testing.T) {
	m := NewMonitor(nil, false)
	ctx := context.Background()

	var called atomic.Int32
	m.OnReconnect(func(context.Context) { called.Add(1) })

	assert.False(t, m.Poll(ctx))
	before := m.Status().Since

	m.SetOnline(ctx, true)
	assert.True(t, m.Poll(ctx))
	require.NoError(t, m.Wait(ctx))
	assert.Equal(t, int32(1), called.Load())
	assert.True(t, m.Status().Since.After(before) || m.Status().Since.Equal(before))
	assert.True(t, m.Status().LastProbe.IsZero())
}

func TestMonitor_PollDoesNotWaitForReconnectListeners(t *testing.T) {
	prober := &stubProber{err: errors.New("down")}
	m := NewMonitor(prober, false)

	release := make(chan struct{})
	listenerErr := make(chan error, 1)
	m.OnReconnect(func(ctx context.Context) {
		<-release
		listenerErr <- ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	prober.err = nil

	start := time.Now()
	assert.True(t, m.Poll(ctx))
	assert.Less(t, time.Since(start), time.Second)

	// the poll's context ending does not cancel the running listener
	cancel()

	short, cancelShort := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancelShort()
	assert.ErrorIs(t, m.Wait(short), context.DeadlineExceeded)

	close(release)
	require.NoError(t, m.Wait(context.Background()))
	assert.NoError(t, <-listenerErr)
}

func TestHTTPProber(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusNoContent)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		w.WriteHeader(int(status.Load()))
	}))
	defer srv.Close()

	p, err := NewHTTPProber(http.DefaultClient, srv.URL)
	require.NoError(t, err)
	ctx := context.Background()

	assert.NoError(t, p.Probe(ctx))

	status.Store(http.StatusNotFound)
	assert.NoError(t, p.Probe(ctx))

	status.Store(http.StatusServiceUnavailable)
	assert.Error(t, p.Probe(ctx))

	srv.Close()
	assert.Error(t, p.Probe(ctx))
}

func TestNewHTTPProber_Validation(t *testing.T) {
	_, err := NewHTTPProber(nil, "http://localhost")
	assert.Error(t, err)

	_, err = NewHTTPProber(http.DefaultClient, "")
	assert.Error(t, err)
}

func TestHTTPProber_ConfiguredClient(t *testing.T) {
	tracer := mocktracer.New()
	previous := opentracing.GlobalTracer()
	opentracing.SetGlobalTracer(tracer)
	t.Cleanup(func() { opentracing.SetGlobalTracer(previous) })

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client, err := httpclient.InitializeClient("connectivity-test-probe",
		httpclient.ConnectionPoolConfig{TimeoutInMs: 1000},
		httpclient.HystrixResiliencyConfig{}, nil, 0, nil)
	require.NoError(t, err)

	p, err := NewHTTPProber(client, srv.URL)
	require.NoError(t, err)
	require.NoError(t, p.Probe(context.Background()))

	var ops []string
	for _, sp := range tracer.FinishedSpans() {
		ops = append(ops, sp.OperationName)
	}
	assert.ElementsMatch(t, []string{"HTTP HEAD", "HTTP Client"}, ops)
}
