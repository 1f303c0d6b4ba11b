package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/hearthline/hearthline/pkg/cache"
	"github.com/hearthline/hearthline/pkg/types"
)

// DefaultKeyPrefix namespaces the persisted collections
const DefaultKeyPrefix = "hearthline_"

// Keys names the persisted collections
type Keys struct {
	Alerts   string
	Messages string
	Devices  string
}

// KeysWithPrefix returns the standard key names under prefix
func KeysWithPrefix(prefix string) Keys {
	return Keys{
		Alerts:   prefix + "alerts",
		Messages: prefix + "messages",
		Devices:  prefix + "devices",
	}
}

func (k Keys) validate() error {
	if k.Alerts == "" || k.Messages == "" || k.Devices == "" {
		return fmt.Errorf("all collection keys are required")
	}
	if k.Alerts == k.Messages || k.Alerts == k.Devices || k.Messages == k.Devices {
		return fmt.Errorf("collection keys must be distinct")
	}
	return nil
}

func (k Keys) all() []string {
	return []string{k.Alerts, k.Messages, k.Devices}
}

// DecodeObserver is notified whenever a persisted collection is treated as empty
// because it could not be decoded
type DecodeObserver func(ctx context.Context, skipped *DecodeSkipped)

type Option func(*options)

type options struct {
	keys    Keys
	observe DecodeObserver
}

// WithKeys overrides the collection key names
func WithKeys(keys Keys) Option {
	return func(o *options) {
		o.keys = keys
	}
}

// WithDecodeObserver registers a diagnostic hook for undecodable collections
func WithDecodeObserver(observe DecodeObserver) Option {
	return func(o *options) {
		o.observe = observe
	}
}

// Store implements RecordStore over a cache.Cache
// Every write is a transactional read-modify-write of one or more collections,
// so concurrent writers never lose updates.
type Store struct {
	Alert   AlertStoreInterface
	Message MessageStoreInterface
	Device  DeviceStoreInterface

	cache    cache.Cache
	keys     Keys
	alerts   *AlertStore
	messages *MessageStore
	devices  *DeviceStore
}

// New creates a new Store instance with all sub-stores initialized
func New(c cache.Cache, opts ...Option) (*Store, error) {
	if c == nil {
		return nil, fmt.Errorf("cache is required")
	}

	o := options{keys: KeysWithPrefix(DefaultKeyPrefix)}
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.keys.validate(); err != nil {
		return nil, err
	}

	alerts := newAlertStore(c, o.keys.Alerts, o.observe)
	messages := newMessageStore(c, o.keys.Messages, o.observe)
	devices := newDeviceStore(c, o.keys.Devices, o.observe)

	return &Store{
		Alert:    alerts,
		Message:  messages,
		Device:   devices,
		cache:    c,
		keys:     o.keys,
		alerts:   alerts,
		messages: messages,
		devices:  devices,
	}, nil
}

// Keys returns the collection key names
func (s *Store) Keys() Keys {
	return s.keys
}

func (s *Store) SaveAlert(ctx context.Context, alert types.Alert) error {
	return s.Alert.Save(ctx, alert)
}

func (s *Store) GetAlerts(ctx context.Context) ([]types.Alert, error) {
	return s.Alert.List(ctx)
}

func (s *Store) SaveMessage(ctx context.Context, message types.Message) error {
	return s.Message.Save(ctx, message)
}

func (s *Store) GetMessages(ctx context.Context) ([]types.Message, error) {
	return s.Message.List(ctx)
}

func (s *Store) SaveDevice(ctx context.Context, device types.Device) error {
	return s.Device.Save(ctx, device)
}

func (s *Store) GetDevices(ctx context.Context) ([]types.Device, error) {
	return s.Device.List(ctx)
}

func (s *Store) Merge(ctx context.Context, alerts []types.Alert, messages []types.Message) error {
	if len(alerts) == 0 && len(messages) == 0 {
		return nil
	}

	err := s.cache.Update(ctx, func(tx cache.Tx) error {
		if len(alerts) > 0 {
			current, err := s.alerts.load(ctx, tx)
			if err != nil {
				return err
			}
			if err := s.alerts.stage(tx, append(current, alerts...)); err != nil {
				return err
			}
		}
		if len(messages) > 0 {
			current, err := s.messages.load(ctx, tx)
			if err != nil {
				return err
			}
			if err := s.messages.stage(tx, append(current, messages...)); err != nil {
				return err
			}
		}
		return nil
	}, s.keys.Alerts, s.keys.Messages)
	if err != nil {
		return writeFailed("merged records", err)
	}
	return nil
}

func (s *Store) ClearAll(ctx context.Context) error {
	err := s.cache.Update(ctx, func(tx cache.Tx) error {
		for _, key := range s.keys.all() {
			tx.Delete(key)
		}
		return nil
	}, s.keys.all()...)
	if err != nil {
		return writeFailed("collection reset", err)
	}
	return nil
}

// StorageUsage reads the three collections in one read-only transaction
// TotalBytes is the sum of the raw blob lengths; counts follow the same decode
// rules as the Get methods, so an undecodable collection counts as zero.
func (s *Store) StorageUsage(ctx context.Context) (*Usage, error) {
	var usage Usage
	err := s.cache.Update(ctx, func(tx cache.Tx) error {
		usage = Usage{}
		for _, key := range s.keys.all() {
			raw, err := tx.Get(key)
			if errors.Is(err, cache.ErrNotFound) {
				continue
			}
			if err != nil {
				return readFailed(key, err)
			}

			usage.TotalBytes += int64(len(raw))
			switch key {
			case s.keys.Alerts:
				usage.AlertsCount = s.alerts.decodedLen(ctx, raw)
			case s.keys.Messages:
				usage.MessagesCount = s.messages.decodedLen(ctx, raw)
			case s.keys.Devices:
				usage.DevicesCount = s.devices.decodedLen(ctx, raw)
			}
		}
		return nil
	}, s.keys.all()...)
	if err != nil {
		if errors.Is(err, ErrStorageReadFailed) {
			return nil, err
		}
		return nil, readFailed("storage usage", err)
	}
	return &usage, nil
}

// Compile-time interface compliance checks
var (
	_ AlertStoreInterface   = (*AlertStore)(nil)
	_ MessageStoreInterface = (*MessageStore)(nil)
	_ DeviceStoreInterface  = (*DeviceStore)(nil)
	_ RecordStore           = (*Store)(nil)
)
