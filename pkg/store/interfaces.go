package store

import (
	"context"

	"github.com/hearthline/hearthline/pkg/types"
)

// AlertStoreInterface defines operations on the append-only alert collection
type AlertStoreInterface interface {
	// Save appends an alert; duplicate ids are retained as distinct entries
	Save(ctx context.Context, alert types.Alert) error

	// List returns every alert in insertion order
	// Returns an empty slice if nothing is persisted or the data does not decode
	List(ctx context.Context) ([]types.Alert, error)
}

// MessageStoreInterface defines operations on the append-only message collection
type MessageStoreInterface interface {
	Save(ctx context.Context, message types.Message) error
	List(ctx context.Context) ([]types.Message, error)
}

// DeviceStoreInterface defines operations on the device collection
type DeviceStoreInterface interface {
	// Save replaces the device with the same id in place, or appends it
	Save(ctx context.Context, device types.Device) error
	List(ctx context.Context) ([]types.Device, error)
}

// RecordStore is the local durable store for alerts, messages and devices
// This is the primary interface that should be used by consumers
type RecordStore interface {
	SaveAlert(ctx context.Context, alert types.Alert) error
	GetAlerts(ctx context.Context) ([]types.Alert, error)

	SaveMessage(ctx context.Context, message types.Message) error
	GetMessages(ctx context.Context) ([]types.Message, error)

	SaveDevice(ctx context.Context, device types.Device) error
	GetDevices(ctx context.Context) ([]types.Device, error)

	// Merge appends alerts and messages in one transaction, with the same
	// semantics as SaveAlert and SaveMessage
	Merge(ctx context.Context, alerts []types.Alert, messages []types.Message) error

	// ClearAll removes all three collections atomically
	ClearAll(ctx context.Context) error

	// StorageUsage reports the serialized size and record counts of the collections
	StorageUsage(ctx context.Context) (*Usage, error)
}

// Usage is the storage footprint of the record collections
type Usage struct {
	TotalBytes    int64 `json:"totalBytes"`
	AlertsCount   int   `json:"alertsCount"`
	MessagesCount int   `json:"messagesCount"`
	DevicesCount  int   `json:"devicesCount"`
}
