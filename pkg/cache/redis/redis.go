package redis

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	goredis "github.com/redis/go-redis/v9"

	"github.com/hearthline/hearthline/pkg/cache"
)

// DriverName is the cache.Config driver value selecting this package
const DriverName = "redis"

const (
	defaultTxRetries = 10
	scanBatchSize    = 100
	pingTimeout      = 5 * time.Second
)

// Config is the redis driver configuration
type Config = cache.RedisConfig

func init() {
	cache.Register(DriverName, func(cfg *cache.Config) (cache.Cache, error) {
		return NewCache(&cfg.Redis)
	})
}

// Cache is a durable cache backed by redis
// Update uses WATCH/MULTI/EXEC with optimistic retries.
type Cache struct {
	client    *goredis.Client
	txRetries int
}

// NewClient builds an instrumented redis client from cfg
func NewClient(cfg *Config) (*goredis.Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis cache config is required")
	}
	if cfg.Host == "" {
		return nil, fmt.Errorf("redis host is required")
	}

	port := cfg.Port
	if port == "" {
		port = "6379"
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:       net.JoinHostPort(cfg.Host, port),
		Username:   cfg.Username,
		Password:   cfg.Password,
		DB:         cfg.Database,
		MaxRetries: cfg.MaxRetries,
	})

	if err := redisotel.InstrumentTracing(client); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to instrument redis tracing: %w", err)
	}
	if err := redisotel.InstrumentMetrics(client); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to instrument redis metrics: %w", err)
	}

	return client, nil
}

// NewCache connects to redis and verifies the connection
func NewCache(cfg *Config) (*Cache, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	retries := cfg.TxRetries
	if retries <= 0 {
		retries = defaultTxRetries
	}

	return &Cache{client: client, txRetries: retries}, nil
}

func (c *Cache) Get(ctx context.Context, key string) (interface{}, error) {
	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, cache.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

func (c *Cache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if expiration < 0 {
		expiration = 0
	}
	return c.client.Set(ctx, key, value, expiration).Err()
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

func (c *Cache) GetByPattern(ctx context.Context, pattern string) (map[string]interface{}, error) {
	results := make(map[string]interface{})

	iter := c.client.Scan(ctx, 0, pattern, scanBatchSize).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		val, err := c.client.Get(ctx, key).Result()
		if errors.Is(err, goredis.Nil) {
			// deleted between SCAN and GET
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get key %s: %w", key, err)
		}
		results[key] = val
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan keys: %w", err)
	}

	return results, nil
}

func (c *Cache) Update(ctx context.Context, fn func(tx cache.Tx) error, keys ...string) error {
	for attempt := 0; attempt < c.txRetries; attempt++ {
		err := c.client.Watch(ctx, func(rtx *goredis.Tx) error {
			tx := &redisTx{ctx: ctx, rtx: rtx}
			if err := fn(tx); err != nil {
				return err
			}
			if tx.buf.Empty() {
				return nil
			}

			_, err := rtx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
				for _, op := range tx.buf.Ops {
					if op.Delete {
						pipe.Del(ctx, op.Key)
						continue
					}
					pipe.Set(ctx, op.Key, op.Value, 0)
				}
				return nil
			})
			return err
		}, keys...)

		if errors.Is(err, goredis.TxFailedErr) {
			continue
		}
		return err
	}

	return fmt.Errorf("%w: gave up after %d attempts", cache.ErrConflict, c.txRetries)
}

func (c *Cache) Close() error {
	return c.client.Close()
}

type redisTx struct {
	ctx context.Context
	rtx *goredis.Tx
	buf cache.WriteBuffer
}

func (t *redisTx) Get(key string) (string, error) {
	val, err := t.rtx.Get(t.ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", cache.ErrNotFound
	}
	return val, err
}

func (t *redisTx) Set(key, value string) {
	t.buf.Set(key, value)
}

func (t *redisTx) Delete(key string) {
	t.buf.Delete(key)
}

var _ cache.Cache = (*Cache)(nil)
