package assetcache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/gojek/heimdall/v7"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/hearthline/hearthline/pkg/cache"
	"github.com/hearthline/hearthline/pkg/logger"
	"github.com/hearthline/hearthline/pkg/telemetry"
)

const (
	// SyncTagBackground is the sync event tag that triggers reconciliation
	SyncTagBackground = "background-sync"

	keyPrefix      = "hearthline-assets:"
	generationsKey = keyPrefix + "generations"

	defaultConcurrency = 4
)

var (
	// ErrCacheInstallFailed is returned when a generation could not be fully
	// fetched or committed. Nothing of the new generation is stored.
	ErrCacheInstallFailed = errors.New("asset cache install failed")

	// ErrFetchUnserviceable is returned when neither the cache, the network nor
	// the fallback document can answer a request
	ErrFetchUnserviceable = errors.New("asset fetch unserviceable")

	ErrUnknownGeneration = errors.New("unknown asset generation")
)

// fetch outcomes, recorded per request
const (
	outcomeHit           = "hit"
	outcomeNetwork       = "network"
	outcomeFallback      = "fallback"
	outcomeBypass        = "bypass"
	outcomeUnserviceable = "unserviceable"
)

// SyncHook reconciles local state when a background sync event arrives
type SyncHook func(ctx context.Context) error

// Generation is the index record of one committed generation
type Generation struct {
	// Paths are the request URIs stored for the generation
	Paths    []string `json:"paths"`
	Fallback string   `json:"fallback,omitempty"`
}

// Entry is one cached response
type Entry struct {
	Status     int         `json:"status"`
	Header     http.Header `json:"header"`
	Body       []byte      `json:"body"`
	Generation string      `json:"generation"`
}

type Option func(*Manager)

// WithConcurrency bounds parallel resource downloads during Install
func WithConcurrency(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.concurrency = n
		}
	}
}

func WithMetrics(metrics *telemetry.AssetMetrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// Manager is the offline asset cache in front of one origin
// Lookups take the read lock; Activate takes the write lock, so a request is
// answered entirely from one generation.
type Manager struct {
	mu     sync.RWMutex
	active string

	cache       cache.Cache
	client      heimdall.Doer
	origin      *url.URL
	concurrency int
	metrics     *telemetry.AssetMetrics

	hookMu sync.RWMutex
	onSync SyncHook
}

// New creates a Manager serving origin, fetching through client
func New(c cache.Cache, client heimdall.Doer, origin string, opts ...Option) (*Manager, error) {
	if c == nil {
		return nil, fmt.Errorf("cache is required")
	}
	if client == nil {
		return nil, fmt.Errorf("http client is required")
	}
	u, err := url.Parse(origin)
	if err != nil {
		return nil, fmt.Errorf("invalid origin %q: %w", origin, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("origin %q must be an absolute URL", origin)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/"

	m := &Manager{
		cache:       c,
		client:      client,
		origin:      u,
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// SetSyncHook registers the reconciliation hook run by HandleSyncEvent
func (m *Manager) SetSyncHook(hook SyncHook) {
	m.hookMu.Lock()
	defer m.hookMu.Unlock()
	m.onSync = hook
}

// Active returns the generation currently serving, or "" before activation
func (m *Manager) Active() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

// Install downloads every resource of manifest and commits them with the
// generation index in one transaction. Any failed download, non-2xx response or
// cancellation commits nothing and returns ErrCacheInstallFailed.
func (m *Manager) Install(ctx context.Context, manifest *Manifest) (err error) {
	if manifest == nil {
		return fmt.Errorf("%w: manifest is required", ErrCacheInstallFailed)
	}
	log := logger.Logger(ctx).WithField("generation", manifest.Version)
	defer func() {
		m.metrics.RecordInstall(ctx, manifest.Version, err)
	}()

	if err := manifest.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrCacheInstallFailed, err)
	}

	targets := make([]*url.URL, len(manifest.Resources))
	paths := make([]string, len(manifest.Resources))
	for i, resource := range manifest.Resources {
		target, err := m.resolve(resource)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrCacheInstallFailed, err)
		}
		targets[i] = target
		paths[i] = target.RequestURI()
	}

	entries := make([]Entry, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)
	for i, target := range targets {
		g.Go(func() error {
			entry, err := m.download(gctx, target)
			if err != nil {
				return fmt.Errorf("failed to fetch %s: %w", paths[i], err)
			}
			entry.Generation = manifest.Version
			entries[i] = *entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.WithError(err).Warn("asset install aborted")
		return fmt.Errorf("%w: %w", ErrCacheInstallFailed, err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCacheInstallFailed, err)
	}

	generation := Generation{Paths: uniq(paths)}
	if manifest.Fallback != "" {
		fallback, err := m.resolve(manifest.Fallback)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrCacheInstallFailed, err)
		}
		generation.Fallback = fallback.RequestURI()
	}

	err = m.cache.Update(ctx, func(tx cache.Tx) error {
		index, err := loadIndex(tx)
		if err != nil {
			return err
		}

		// a reinstall of the same tag drops paths the new manifest no longer lists
		if previous, ok := index[manifest.Version]; ok {
			for _, p := range previous.Paths {
				tx.Delete(entryKey(manifest.Version, p))
			}
		}
		for i, entry := range entries {
			data, err := json.Marshal(entry)
			if err != nil {
				return fmt.Errorf("failed to marshal entry %s: %w", paths[i], err)
			}
			tx.Set(entryKey(manifest.Version, paths[i]), string(data))
		}

		index[manifest.Version] = generation
		return stageIndex(tx, index)
	}, generationsKey)
	if err != nil {
		return fmt.Errorf("%w: failed to commit generation %s: %w", ErrCacheInstallFailed, manifest.Version, err)
	}

	log.WithField("resources", len(generation.Paths)).Info("asset generation installed")
	return nil
}

// Activate makes version the serving generation and purges every other one
// Entries of superseded generations are gone before the first request is
// answered from version.
func (m *Manager) Activate(ctx context.Context, version string) (err error) {
	defer func() {
		m.metrics.RecordActivate(ctx, version, err)
	}()

	m.mu.Lock()
	defer m.mu.Unlock()

	var purged []string
	err = m.cache.Update(ctx, func(tx cache.Tx) error {
		purged = purged[:0]
		index, err := loadIndex(tx)
		if err != nil {
			return err
		}
		if _, ok := index[version]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownGeneration, version)
		}

		for tag, generation := range index {
			if tag == version {
				continue
			}
			for _, p := range generation.Paths {
				tx.Delete(entryKey(tag, p))
			}
			delete(index, tag)
			purged = append(purged, tag)
		}
		return stageIndex(tx, index)
	}, generationsKey)
	if err != nil {
		return fmt.Errorf("failed to activate generation %s: %w", version, err)
	}

	m.active = version
	logger.Logger(ctx).WithFields(logrus.Fields{
		"generation": version,
		"purged":     purged,
	}).Info("asset generation activated")
	return nil
}

// Resume serves the newest committed generation without purging anything
// It is used at startup when a fresh install is not possible.
func (m *Manager) Resume(ctx context.Context) (string, error) {
	tags, err := m.Generations(ctx)
	if err != nil {
		return "", err
	}
	if len(tags) == 0 {
		return "", fmt.Errorf("%w: no committed generation", ErrUnknownGeneration)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = tags[len(tags)-1]
	return m.active, nil
}

// Generations returns the committed generation tags, sorted
func (m *Manager) Generations(ctx context.Context) ([]string, error) {
	index, err := m.readIndex(ctx)
	if err != nil {
		return nil, err
	}
	tags := make([]string, 0, len(index))
	for tag := range index {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags, nil
}

// Fetch answers req cache-first
// Cross-origin requests go straight to the network. Same-origin misses are
// fetched live and not stored. When both fail, document requests get the
// fallback document and everything else gets ErrFetchUnserviceable.
func (m *Manager) Fetch(ctx context.Context, req *http.Request) (*http.Response, error) {
	target := m.origin.ResolveReference(req.URL)
	log := logger.Logger(ctx).WithFields(logrus.Fields{
		"method": req.Method,
		"url":    target.String(),
	})

	out := req.Clone(ctx)
	out.URL = target
	out.Host = ""
	out.RequestURI = ""

	if !m.sameOrigin(target) {
		m.metrics.RecordFetch(ctx, outcomeBypass)
		return m.client.Do(out)
	}

	cacheable := req.Method == http.MethodGet || req.Method == http.MethodHead
	if cacheable {
		entry, err := m.lookup(ctx, target.RequestURI())
		if err != nil {
			log.WithError(err).Warn("asset cache lookup failed, trying network")
		}
		if entry != nil {
			m.metrics.RecordFetch(ctx, outcomeHit)
			return entry.response(req), nil
		}
	}

	resp, netErr := m.client.Do(out)
	if netErr == nil {
		m.metrics.RecordFetch(ctx, outcomeNetwork)
		return resp, nil
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	if cacheable && isDocumentRequest(req) {
		entry, err := m.fallback(ctx)
		if err != nil {
			log.WithError(err).Warn("failed to read fallback document")
		}
		if entry != nil {
			log.WithError(netErr).Debug("serving fallback document")
			m.metrics.RecordFetch(ctx, outcomeFallback)
			return entry.response(req), nil
		}
	}

	m.metrics.RecordFetch(ctx, outcomeUnserviceable)
	return nil, fmt.Errorf("%w: %s: %w", ErrFetchUnserviceable, target.RequestURI(), netErr)
}

// HandleSyncEvent runs the sync hook for SyncTagBackground
// Hook errors and panics are logged and never reach the caller.
func (m *Manager) HandleSyncEvent(ctx context.Context, tag string) {
	log := logger.Logger(ctx).WithField("tag", tag)
	if tag != SyncTagBackground {
		log.Debug("ignoring sync event")
		return
	}

	m.hookMu.RLock()
	hook := m.onSync
	m.hookMu.RUnlock()
	if hook == nil {
		log.Debug("no sync hook registered")
		return
	}

	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("background sync panicked")
		}
	}()

	log.Info("background sync triggered")
	if err := hook(ctx); err != nil {
		log.WithError(err).Warn("background sync failed")
	}
}

// Transport returns an http.RoundTripper that answers through Fetch
func (m *Manager) Transport() http.RoundTripper {
	return roundTripper{m: m}
}

type roundTripper struct {
	m *Manager
}

func (rt roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return rt.m.Fetch(req.Context(), req)
}

func (m *Manager) lookup(ctx context.Context, path string) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.active == "" {
		return nil, nil
	}
	return m.readEntry(ctx, m.active, path)
}

func (m *Manager) fallback(ctx context.Context) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.active == "" {
		return nil, nil
	}

	index, err := m.readIndex(ctx)
	if err != nil {
		return nil, err
	}
	generation, ok := index[m.active]
	if !ok || generation.Fallback == "" {
		return nil, nil
	}
	return m.readEntry(ctx, m.active, generation.Fallback)
}

func (m *Manager) readEntry(ctx context.Context, tag, path string) (*Entry, error) {
	val, err := m.cache.Get(ctx, entryKey(tag, path))
	if errors.Is(err, cache.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	raw, ok := val.(string)
	if !ok {
		return nil, fmt.Errorf("unexpected entry type %T", val)
	}

	entry := &Entry{}
	if err := json.Unmarshal([]byte(raw), entry); err != nil {
		return nil, fmt.Errorf("failed to decode entry %s: %w", path, err)
	}
	return entry, nil
}

func (m *Manager) readIndex(ctx context.Context) (map[string]Generation, error) {
	val, err := m.cache.Get(ctx, generationsKey)
	if errors.Is(err, cache.ErrNotFound) {
		return map[string]Generation{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read generation index: %w", err)
	}
	raw, ok := val.(string)
	if !ok {
		return nil, fmt.Errorf("unexpected generation index type %T", val)
	}
	return decodeIndex(raw)
}

func (m *Manager) download(ctx context.Context, target *url.URL) (*Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	return &Entry{
		Status: resp.StatusCode,
		Header: resp.Header.Clone(),
		Body:   body,
	}, nil
}

func (m *Manager) resolve(resource string) (*url.URL, error) {
	ref, err := url.Parse(resource)
	if err != nil {
		return nil, fmt.Errorf("invalid resource %q: %w", resource, err)
	}
	target := m.origin.ResolveReference(ref)
	if !m.sameOrigin(target) {
		return nil, fmt.Errorf("resource %q is not served by %s", resource, m.origin)
	}
	return target, nil
}

func (m *Manager) sameOrigin(u *url.URL) bool {
	return strings.EqualFold(u.Scheme, m.origin.Scheme) && strings.EqualFold(u.Host, m.origin.Host)
}

func (e *Entry) response(req *http.Request) *http.Response {
	body := e.Body
	if req.Method == http.MethodHead {
		body = nil
	}
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", e.Status, http.StatusText(e.Status)),
		StatusCode:    e.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        e.Header.Clone(),
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(e.Body)),
		Request:       req,
	}
}

// isDocumentRequest reports whether req is a top-level navigation
func isDocumentRequest(req *http.Request) bool {
	if dest := req.Header.Get("Sec-Fetch-Dest"); dest != "" {
		return dest == "document"
	}
	return req.Method == http.MethodGet && strings.Contains(req.Header.Get("Accept"), "text/html")
}

func entryKey(tag, path string) string {
	return keyPrefix + tag + ":" + path
}

func loadIndex(tx cache.Tx) (map[string]Generation, error) {
	raw, err := tx.Get(generationsKey)
	if errors.Is(err, cache.ErrNotFound) {
		return map[string]Generation{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read generation index: %w", err)
	}
	return decodeIndex(raw)
}

func stageIndex(tx cache.Tx, index map[string]Generation) error {
	if len(index) == 0 {
		tx.Delete(generationsKey)
		return nil
	}
	data, err := json.Marshal(index)
	if err != nil {
		return fmt.Errorf("failed to marshal generation index: %w", err)
	}
	tx.Set(generationsKey, string(data))
	return nil
}

func decodeIndex(raw string) (map[string]Generation, error) {
	index := map[string]Generation{}
	if err := json.Unmarshal([]byte(raw), &index); err != nil {
		return nil, fmt.Errorf("failed to decode generation index: %w", err)
	}
	return index, nil
}

func uniq(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
