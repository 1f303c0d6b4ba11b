package store

import (
	"context"

	"github.com/hearthline/hearthline/pkg/cache"
	"github.com/hearthline/hearthline/pkg/types"
)

// MessageStore handles the append-only message collection
type MessageStore struct {
	collection[types.Message]
}

func newMessageStore(c cache.Cache, key string, observe DecodeObserver) *MessageStore {
	return &MessageStore{collection[types.Message]{cache: c, key: key, observe: observe}}
}

func (s *MessageStore) Save(ctx context.Context, message types.Message) error {
	return s.update(ctx, func(messages []types.Message) []types.Message {
		return append(messages, message)
	})
}

func (s *MessageStore) List(ctx context.Context) ([]types.Message, error) {
	return s.list(ctx)
}
