package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/hearthline/hearthline/pkg/cache"
	"github.com/hearthline/hearthline/pkg/logger"
)

// collection is one JSON-array valued key holding records of type T
// It is shared by the alert, message and device stores, which differ only in
// how they mutate the decoded sequence.
type collection[T any] struct {
	cache   cache.Cache
	key     string
	observe DecodeObserver
}

// list reads the committed sequence
// Absent or undecodable data yields an empty, non-nil slice.
func (c *collection[T]) list(ctx context.Context) ([]T, error) {
	val, err := c.cache.Get(ctx, c.key)
	if errors.Is(err, cache.ErrNotFound) {
		return []T{}, nil
	}
	if err != nil {
		return nil, readFailed(c.key, err)
	}

	raw, err := asString(val)
	if err != nil {
		c.skipped(ctx, &DecodeSkipped{Key: c.key, Err: err})
		return []T{}, nil
	}
	return c.decode(ctx, raw), nil
}

// load reads the sequence inside a transaction
// A value of the wrong type decodes as empty, matching list, so the write
// overwrites it.
func (c *collection[T]) load(ctx context.Context, tx cache.Tx) ([]T, error) {
	raw, err := tx.Get(c.key)
	if errors.Is(err, cache.ErrNotFound) {
		return []T{}, nil
	}
	if errors.Is(err, cache.ErrUnexpectedType) {
		c.skipped(ctx, &DecodeSkipped{Key: c.key, Err: err})
		return []T{}, nil
	}
	if err != nil {
		return nil, readFailed(c.key, err)
	}
	return c.decode(ctx, raw), nil
}

// stage buffers the full sequence for writing when the transaction commits
func (c *collection[T]) stage(tx cache.Tx, records []T) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", c.key, err)
	}
	tx.Set(c.key, string(data))
	return nil
}

// update runs a read-modify-write of the whole sequence in one transaction
func (c *collection[T]) update(ctx context.Context, mutate func(records []T) []T) error {
	err := c.cache.Update(ctx, func(tx cache.Tx) error {
		records, err := c.load(ctx, tx)
		if err != nil {
			return err
		}
		return c.stage(tx, mutate(records))
	}, c.key)
	if err != nil {
		return writeFailed(c.key, err)
	}
	return nil
}

func (c *collection[T]) decode(ctx context.Context, raw string) []T {
	var records []T
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		c.skipped(ctx, &DecodeSkipped{Key: c.key, Size: len(raw), Err: err})
		return []T{}
	}
	if records == nil {
		return []T{}
	}
	return records
}

func (c *collection[T]) skipped(ctx context.Context, d *DecodeSkipped) {
	logger.Logger(ctx).WithFields(logrus.Fields{
		"key":  d.Key,
		"size": d.Size,
	}).WithError(d.Err).Debug("treating undecodable collection as empty")

	if c.observe != nil {
		c.observe(ctx, d)
	}
}

// decodedLen counts the records of raw the same way list decodes them
func (c *collection[T]) decodedLen(ctx context.Context, raw string) int {
	return len(c.decode(ctx, raw))
}

func asString(val interface{}) (string, error) {
	switch v := val.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return "", fmt.Errorf("unexpected value type %T", val)
	}
}
