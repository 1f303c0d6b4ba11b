package store

import (
	"context"

	"github.com/hearthline/hearthline/pkg/cache"
	"github.com/hearthline/hearthline/pkg/types"
)

// DeviceStore handles the device collection, keyed by device id
type DeviceStore struct {
	collection[types.Device]
}

func newDeviceStore(c cache.Cache, key string, observe DecodeObserver) *DeviceStore {
	return &DeviceStore{collection[types.Device]{cache: c, key: key, observe: observe}}
}

// Save replaces the device with the same id in place, or appends it
// The stored record is the full payload of the latest call; fields are not merged.
func (s *DeviceStore) Save(ctx context.Context, device types.Device) error {
	return s.update(ctx, func(devices []types.Device) []types.Device {
		return upsertDevice(devices, device)
	})
}

func (s *DeviceStore) List(ctx context.Context) ([]types.Device, error) {
	return s.list(ctx)
}

func upsertDevice(devices []types.Device, device types.Device) []types.Device {
	for i := range devices {
		if devices[i].ID == device.ID {
			devices[i] = device
			return devices
		}
	}
	return append(devices, device)
}
