package store

import (
	"context"

	"github.com/hearthline/hearthline/pkg/cache"
	"github.com/hearthline/hearthline/pkg/types"
)

// AlertStore handles the append-only alert collection
type AlertStore struct {
	collection[types.Alert]
}

// newAlertStore creates a new AlertStore instance
func newAlertStore(c cache.Cache, key string, observe DecodeObserver) *AlertStore {
	return &AlertStore{collection[types.Alert]{cache: c, key: key, observe: observe}}
}

// Save appends alert and persists the full sequence
// Alerts sharing an id are kept as distinct entries.
func (s *AlertStore) Save(ctx context.Context, alert types.Alert) error {
	return s.update(ctx, func(alerts []types.Alert) []types.Alert {
		return append(alerts, alert)
	})
}

// List returns every alert in insertion order
func (s *AlertStore) List(ctx context.Context) ([]types.Alert, error) {
	return s.list(ctx)
}
