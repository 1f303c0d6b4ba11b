package httpclient

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/gojek/heimdall/v7"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/mocktracer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPoolConfig() ConnectionPoolConfig {
	return ConnectionPoolConfig{
		TimeoutInMs:          1000,
		MaxIdleConnections:   2,
		IdleConnTimeoutInMs:  1000,
		KeepAliveTimeoutInMs: 1000,
	}
}

func TestInitializeClient_Validation(t *testing.T) {
	tests := []struct {
		name        string
		commandName string
		pool        ConnectionPoolConfig
		wantErr     bool
	}{
		{name: "valid", commandName: "test-valid", pool: testPoolConfig()},
		{name: "missing command name", commandName: "", pool: testPoolConfig(), wantErr: true},
		{name: "zero timeout", commandName: "test-zero", pool: ConnectionPoolConfig{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := InitializeClient(tt.commandName, tt.pool, HystrixResiliencyConfig{}, nil, 0, nil)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, client)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, client)
		})
	}
}

func TestInitializeClient_Do(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	}))
	defer srv.Close()

	client, err := InitializeClient("test-do", testPoolConfig(), HystrixResiliencyConfig{
		MaxConcurrentRequests:  10,
		RequestVolumeThreshold: 20,
		ErrorPercentThreshold:  50,
		CircuitBreakerTimeout:  1000,
	}, DefaultRetrier(), 0, nil)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))
}

func TestInitializeClient_Retries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := InitializeClient("test-retries", testPoolConfig(), HystrixResiliencyConfig{
		RequestVolumeThreshold: 100,
	}, DefaultRetrier(), 2, nil)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func tracedClient(t *testing.T, name string, tracer *mocktracer.MockTracer) heimdall.Client {
	t.Helper()
	client, err := InitializeClient(name, testPoolConfig(), HystrixResiliencyConfig{}, nil, 0, nil)
	require.NoError(t, err)
	tc, ok := client.(*tracingClient)
	require.True(t, ok)
	tc.tracer = func() opentracing.Tracer { return tracer }
	return tc
}

func TestTracingClient_FinishesSpansOnBodyClose(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("Mockpfx-Ids-Traceid"))
		_, _ = io.WriteString(w, "traced")
	}))
	defer srv.Close()

	tracer := mocktracer.New()
	client := tracedClient(t, "test-trace", tracer)

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "traced", string(body))

	// the root span stays open until the body is closed
	for _, sp := range tracer.FinishedSpans() {
		assert.NotEqual(t, "HTTP Client", sp.OperationName)
	}

	require.NoError(t, resp.Body.Close())

	var root, child int
	for _, sp := range tracer.FinishedSpans() {
		switch sp.OperationName {
		case "HTTP Client":
			root++
		case "HTTP GET":
			child++
			assert.Equal(t, componentName, sp.Tag("component"))
			assert.Equal(t, uint16(http.StatusOK), sp.Tag("http.status_code"))
		}
	}
	assert.Equal(t, 1, root)
	assert.Equal(t, 1, child)
}

func TestTracingClient_FinishesSpanOnTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	tracer := mocktracer.New()
	client := tracedClient(t, "test-trace-error", tracer)

	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	_, err = client.Do(req)
	require.Error(t, err)

	var root int
	for _, sp := range tracer.FinishedSpans() {
		if sp.OperationName == "HTTP Client" {
			root++
		}
	}
	assert.Equal(t, 1, root)
}

func TestTracingClient_GlobalTracerByDefault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client, err := InitializeClient("test-trace-global", testPoolConfig(), HystrixResiliencyConfig{}, nil, 0, nil)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodHead, srv.URL, nil)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}
