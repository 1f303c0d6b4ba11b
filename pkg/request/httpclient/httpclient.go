package httpclient

import (
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gojek/heimdall/v7"
	"github.com/gojek/heimdall/v7/hystrix"
	"github.com/opentracing-contrib/go-stdlib/nethttp"
	"github.com/opentracing/opentracing-go"
)

type ConnectionPoolConfig struct {
	TimeoutInMs          int64 `mapstructure:"timeoutInMs"`
	MaxIdleConnections   int   `mapstructure:"maxIdleConnections"`
	IdleConnTimeoutInMs  int64 `mapstructure:"idleConnTimeoutInMs"`
	KeepAliveTimeoutInMs int64 `mapstructure:"keepAliveTimeoutInMs"`
}

type HystrixResiliencyConfig struct {
	MaxConcurrentRequests     int `mapstructure:"maxConcurrentRequests"`
	RequestVolumeThreshold    int `mapstructure:"requestVolumeThreshold"`
	CircuitBreakerSleepWindow int `mapstructure:"circuitBreakerSleepWindow"`
	ErrorPercentThreshold     int `mapstructure:"errorPercentThreshold"`
	CircuitBreakerTimeout     int `mapstructure:"circuitBreakerTimeout"`
}

// InitializeClient builds a hystrix-wrapped heimdall client
// commandName scopes the circuit breaker, so each caller gets its own breaker.
func InitializeClient(
	commandName string,
	connectionPoolConfig ConnectionPoolConfig,
	hystrixResiliencyConfig HystrixResiliencyConfig,
	retrier heimdall.Retriable,
	retryCount int,
	tlsConfig *tls.Config,
) (heimdall.Client, error) {
	if commandName == "" {
		return nil, fmt.Errorf("command name is required")
	}
	if connectionPoolConfig.TimeoutInMs <= 0 {
		return nil, fmt.Errorf("connection timeout must be positive")
	}

	timeout := time.Duration(connectionPoolConfig.TimeoutInMs) * time.Millisecond

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: time.Duration(connectionPoolConfig.KeepAliveTimeoutInMs) * time.Millisecond,
		}).DialContext,
		MaxIdleConns:        connectionPoolConfig.MaxIdleConnections,
		MaxIdleConnsPerHost: connectionPoolConfig.MaxIdleConnections,
		IdleConnTimeout:     time.Duration(connectionPoolConfig.IdleConnTimeoutInMs) * time.Millisecond,
		TLSClientConfig:     tlsConfig,
	}

	opts := []hystrix.Option{
		hystrix.WithCommandName(commandName),
		hystrix.WithHTTPTimeout(timeout),
		hystrix.WithHTTPClient(&http.Client{
			Transport: &nethttp.Transport{RoundTripper: transport},
			Timeout:   timeout,
		}),
		hystrix.WithRetryCount(retryCount),
	}
	if retrier != nil {
		opts = append(opts, hystrix.WithRetrier(retrier))
	}
	if hystrixResiliencyConfig.CircuitBreakerTimeout > 0 {
		opts = append(opts, hystrix.WithHystrixTimeout(
			time.Duration(hystrixResiliencyConfig.CircuitBreakerTimeout)*time.Millisecond))
	}
	if hystrixResiliencyConfig.MaxConcurrentRequests > 0 {
		opts = append(opts, hystrix.WithMaxConcurrentRequests(hystrixResiliencyConfig.MaxConcurrentRequests))
	}
	if hystrixResiliencyConfig.RequestVolumeThreshold > 0 {
		opts = append(opts, hystrix.WithRequestVolumeThreshold(hystrixResiliencyConfig.RequestVolumeThreshold))
	}
	if hystrixResiliencyConfig.CircuitBreakerSleepWindow > 0 {
		opts = append(opts, hystrix.WithSleepWindow(hystrixResiliencyConfig.CircuitBreakerSleepWindow))
	}
	if hystrixResiliencyConfig.ErrorPercentThreshold > 0 {
		opts = append(opts, hystrix.WithErrorPercentThreshold(hystrixResiliencyConfig.ErrorPercentThreshold))
	}

	return &tracingClient{
		Client: hystrix.NewClient(opts...),
		tracer: opentracing.GlobalTracer,
	}, nil
}

// DefaultRetrier is the constant backoff used by every in-repo client
func DefaultRetrier() heimdall.Retriable {
	return heimdall.NewRetrier(heimdall.NewConstantBackoff(100*time.Millisecond, 50*time.Millisecond))
}

// tracingClient opens a client span around every Do. The wrapped client must
// send through nethttp.Transport; the httptrace hooks dereference the span it starts.
type tracingClient struct {
	heimdall.Client
	tracer func() opentracing.Tracer
}

func (c *tracingClient) Do(req *http.Request) (*http.Response, error) {
	req, ht := nethttp.TraceRequest(c.tracer(), req, nethttp.ComponentName(componentName))
	resp, err := c.Client.Do(req)
	if err != nil || resp == nil {
		ht.Finish()
		return resp, err
	}
	resp.Body = &finishOnClose{ReadCloser: resp.Body, finish: ht.Finish}
	return resp, nil
}

const componentName = "hearthline-httpclient"

// finishOnClose ends the root span once the caller is done with the body
type finishOnClose struct {
	io.ReadCloser
	once   sync.Once
	finish func()
}

func (b *finishOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.once.Do(b.finish)
	return err
}
