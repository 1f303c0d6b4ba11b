package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/hearthline/hearthline/pkg/logger"
	"github.com/hearthline/hearthline/pkg/mesh"
	"github.com/hearthline/hearthline/pkg/store"
	"github.com/hearthline/hearthline/pkg/telemetry"
	"github.com/hearthline/hearthline/pkg/types"
)

// ErrSyncUnavailable is returned when the mesh could not be reached
// Nothing is merged and the sync can be retried.
var ErrSyncUnavailable = errors.New("sync unavailable")

const (
	TriggerManual     = "manual"
	TriggerBackground = "background-sync"

	syncKey = "sync"
)

// Snapshot is the local state handed to reloaders after a sync
type Snapshot struct {
	Alerts   []types.Alert   `json:"alerts"`
	Messages []types.Message `json:"messages"`
	Devices  []types.Device  `json:"devices"`
}

// Reloader refreshes whatever displays local state
type Reloader interface {
	Reload(ctx context.Context, snapshot Snapshot)
}

// ReloaderFunc adapts a function to Reloader
type ReloaderFunc func(ctx context.Context, snapshot Snapshot)

func (f ReloaderFunc) Reload(ctx context.Context, snapshot Snapshot) {
	f(ctx, snapshot)
}

// Result describes a completed sync
type Result struct {
	Trigger        string    `json:"trigger"`
	AlertsMerged   int       `json:"alertsMerged"`
	MessagesMerged int       `json:"messagesMerged"`
	Committed      bool      `json:"committed"`
	StartedAt      time.Time `json:"startedAt"`
	FinishedAt     time.Time `json:"finishedAt"`
}

type Option func(*Coordinator)

func WithMetrics(m *telemetry.SyncMetrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

func WithReloader(r Reloader) Option {
	return func(c *Coordinator) {
		c.reloaders = append(c.reloaders, r)
	}
}

// Coordinator pulls records from the mesh into the local store
type Coordinator struct {
	network mesh.Network
	store   store.RecordStore
	metrics *telemetry.SyncMetrics

	group singleflight.Group

	mu        sync.RWMutex
	reloaders []Reloader
	last      *Result
}

func New(network mesh.Network, recordStore store.RecordStore, opts ...Option) (*Coordinator, error) {
	if network == nil {
		return nil, fmt.Errorf("mesh network is required")
	}
	if recordStore == nil {
		return nil, fmt.Errorf("record store is required")
	}

	c := &Coordinator{
		network: network,
		store:   recordStore,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// AddReloader registers r for every later sync
func (c *Coordinator) AddReloader(r Reloader) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reloaders = append(c.reloaders, r)
}

// TriggerSync runs a user-requested sync
func (c *Coordinator) TriggerSync(ctx context.Context) (*Result, error) {
	return c.Sync(ctx, TriggerManual)
}

// Sync pulls pending records and merges them. Overlapping calls share the
// in-flight run and its result. The run is detached from the caller's
// cancellation; each caller stops waiting when its own ctx is done.
func (c *Coordinator) Sync(ctx context.Context, trigger string) (*Result, error) {
	ch := c.group.DoChan(syncKey, func() (interface{}, error) {
		return c.run(context.WithoutCancel(ctx), trigger)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			logger.Logger(ctx).WithField("trigger", trigger).Debug("joined in-flight sync")
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Result), nil
	}
}

func (c *Coordinator) run(ctx context.Context, trigger string) (result *Result, err error) {
	log := logger.Logger(ctx).WithField("trigger", trigger)
	done := c.metrics.RecordSyncStart(ctx, trigger)
	defer func() { done(err) }()

	result = &Result{Trigger: trigger, StartedAt: time.Now()}

	data, err := c.network.SyncData(ctx)
	if err != nil {
		log.WithError(err).Warn("mesh sync failed")
		return nil, fmt.Errorf("%w: %w", ErrSyncUnavailable, err)
	}
	if data == nil {
		data = &mesh.SyncData{}
	}

	if err := c.store.Merge(ctx, data.Alerts, data.Messages); err != nil {
		log.WithError(err).Error("failed to merge synced records")
		return nil, err
	}
	result.AlertsMerged = len(data.Alerts)
	result.MessagesMerged = len(data.Messages)
	c.metrics.RecordMerged(ctx, result.AlertsMerged, result.MessagesMerged)

	if committer, ok := c.network.(mesh.Committer); ok {
		// the batch is redelivered on the next sync when the ack fails
		if err := committer.Commit(ctx, data); err != nil {
			log.WithError(err).Warn("failed to acknowledge synced batch")
		} else {
			result.Committed = true
		}
	}

	snapshot, err := c.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	c.reload(ctx, snapshot)

	result.FinishedAt = time.Now()
	c.mu.Lock()
	c.last = result
	c.mu.Unlock()

	log.WithFields(logrus.Fields{
		"alerts":    result.AlertsMerged,
		"messages":  result.MessagesMerged,
		"committed": result.Committed,
	}).Info("sync completed")
	return result, nil
}

func (c *Coordinator) snapshot(ctx context.Context) (Snapshot, error) {
	alerts, err := c.store.GetAlerts(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	messages, err := c.store.GetMessages(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	devices, err := c.store.GetDevices(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Alerts: alerts, Messages: messages, Devices: devices}, nil
}

func (c *Coordinator) reload(ctx context.Context, snapshot Snapshot) {
	c.mu.RLock()
	reloaders := append([]Reloader(nil), c.reloaders...)
	c.mu.RUnlock()

	for _, r := range reloaders {
		r.Reload(ctx, snapshot)
	}
}

// ScanDevices returns the peers currently visible on the mesh; nothing is persisted
func (c *Coordinator) ScanDevices(ctx context.Context) ([]types.Device, error) {
	devices, err := c.network.ScanForDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSyncUnavailable, err)
	}
	if devices == nil {
		devices = []types.Device{}
	}
	return devices, nil
}

// LastResult returns the most recent successful sync, or nil
func (c *Coordinator) LastResult() *Result {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.last == nil {
		return nil
	}
	r := *c.last
	return &r
}
