package connectivity

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gojek/heimdall/v7"
	"github.com/sirupsen/logrus"

	"github.com/hearthline/hearthline/pkg/logger"
)

// Prober checks whether the wider network is reachable
type Prober interface {
	Probe(ctx context.Context) error
}

// HTTPProber treats any non-5xx answer from url as online
type HTTPProber struct {
	client heimdall.Doer
	url    string
}

func NewHTTPProber(client heimdall.Doer, url string) (*HTTPProber, error) {
	if client == nil {
		return nil, fmt.Errorf("http client is required")
	}
	if url == "" {
		return nil, fmt.Errorf("probe url is required")
	}
	return &HTTPProber{client: client, url: url}, nil
}

func (p *HTTPProber) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		return err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("probe %s failed: %w", p.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("probe %s returned %d", p.url, resp.StatusCode)
	}
	return nil
}

// Listener is called on a connectivity transition
type Listener func(ctx context.Context)

// Status is a point-in-time view of the monitor
type Status struct {
	Online    bool      `json:"online"`
	Since     time.Time `json:"since"`
	LastProbe time.Time `json:"lastProbe,omitempty"`
}

// Monitor tracks online/offline state and notifies listeners when the link
// comes back
type Monitor struct {
	prober Prober

	mu        sync.RWMutex
	online    bool
	since     time.Time
	lastProbe time.Time

	listenersMu sync.RWMutex
	onReconnect []Listener
	running     sync.WaitGroup
}

// NewMonitor starts in the given state. A nil prober leaves the state to SetOnline.
func NewMonitor(prober Prober, online bool) *Monitor {
	return &Monitor{
		prober: prober,
		online: online,
		since:  time.Now(),
	}
}

// OnReconnect registers l for offline-to-online transitions
func (m *Monitor) OnReconnect(l Listener) {
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()
	m.onReconnect = append(m.onReconnect, l)
}

func (m *Monitor) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Status{Online: m.online, Since: m.since, LastProbe: m.lastProbe}
}

// SetOnline records the current state. On an offline to online change every
// reconnect listener starts in the background with a context detached from ctx's
// cancellation; Wait blocks until they return.
func (m *Monitor) SetOnline(ctx context.Context, online bool) {
	m.mu.Lock()
	changed := m.online != online
	if changed {
		m.online = online
		m.since = time.Now()
	}
	m.mu.Unlock()

	if !changed {
		return
	}

	logger.Logger(ctx).WithFields(logrus.Fields{
		"online": online,
	}).Info("connectivity changed")

	if !online {
		return
	}
	m.listenersMu.RLock()
	listeners := append([]Listener(nil), m.onReconnect...)
	m.listenersMu.RUnlock()

	detached := context.WithoutCancel(ctx)
	for _, l := range listeners {
		m.running.Add(1)
		go func(l Listener) {
			defer m.running.Done()
			l(detached)
		}(l)
	}
}

// Wait blocks until the reconnect listeners started so far have returned, or
// ctx is done
func (m *Monitor) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.running.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Poll probes once and records the result
func (m *Monitor) Poll(ctx context.Context) bool {
	if m.prober == nil {
		return m.Online()
	}

	err := m.prober.Probe(ctx)
	m.mu.Lock()
	m.lastProbe = time.Now()
	m.mu.Unlock()

	if err != nil {
		logger.Logger(ctx).WithError(err).Debug("connectivity probe failed")
	}
	m.SetOnline(ctx, err == nil)
	return err == nil
}
