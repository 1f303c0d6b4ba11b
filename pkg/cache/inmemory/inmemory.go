package inmemory

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/hearthline/hearthline/pkg/cache"
)

// DriverName is the cache.Config driver value selecting this package
const DriverName = "memory"

// Config is the in-memory driver configuration, expirations in seconds
type Config = cache.InMemoryConfig

func init() {
	cache.Register(DriverName, func(cfg *cache.Config) (cache.Cache, error) {
		return NewCache(&cfg.InMemory)
	})
}

// Cache is a process-local cache backed by go-cache
// A RWMutex around the store makes Update transactions atomic with respect to
// every other operation on the same instance.
type Cache struct {
	mu    sync.RWMutex
	store *gocache.Cache
}

// NewCache creates an in-memory cache
func NewCache(cfg *Config) (*Cache, error) {
	if cfg == nil {
		return nil, fmt.Errorf("inmemory cache config is required")
	}
	if cfg.CleanupInterval < 0 {
		return nil, fmt.Errorf("cleanup interval must not be negative")
	}

	defaultExpiration := gocache.NoExpiration
	if cfg.DefaultExpiration > 0 {
		defaultExpiration = time.Duration(cfg.DefaultExpiration) * time.Second
	}

	return &Cache{
		store: gocache.New(defaultExpiration, time.Duration(cfg.CleanupInterval)*time.Second),
	}, nil
}

func (c *Cache) Get(_ context.Context, key string) (interface{}, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	val, found := c.store.Get(key)
	if !found {
		return nil, cache.ErrNotFound
	}
	return val, nil
}

func (c *Cache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.store.Set(key, value, expiration)
	return nil
}

func (c *Cache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.store.Delete(key)
	return nil
}

// GetByPattern matches keys the way redis SCAN MATCH does: * and ? also match "/"
func (c *Cache) GetByPattern(_ context.Context, pattern string) (map[string]interface{}, error) {
	re, err := globToRegexp(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	results := make(map[string]interface{})
	for key, item := range c.store.Items() {
		if re.MatchString(key) {
			results[key] = item.Object
		}
	}
	return results, nil
}

func globToRegexp(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("(?s)^")
	for i := 0; i < len(pattern); i++ {
		switch ch := pattern[i]; ch {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		case '[':
			end := strings.IndexByte(pattern[i+1:], ']')
			if end < 0 {
				return nil, fmt.Errorf("unterminated character class")
			}
			class := pattern[i+1 : i+1+end]
			if strings.HasPrefix(class, "^") {
				class = "^" + regexp.QuoteMeta(class[1:])
			} else {
				class = regexp.QuoteMeta(class)
			}
			b.WriteString("[" + class + "]")
			i += end + 1
		case '\\':
			if i+1 < len(pattern) {
				i++
			}
			b.WriteString(regexp.QuoteMeta(string(pattern[i])))
		default:
			b.WriteString(regexp.QuoteMeta(string(ch)))
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}

func (c *Cache) Update(ctx context.Context, fn func(tx cache.Tx) error, _ ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	tx := &memTx{store: c.store}
	if err := fn(tx); err != nil {
		return err
	}

	for _, op := range tx.buf.Ops {
		if op.Delete {
			c.store.Delete(op.Key)
			continue
		}
		c.store.Set(op.Key, op.Value, cache.NoExpiration)
	}
	return nil
}

func (c *Cache) Close() error {
	return nil
}

type memTx struct {
	store *gocache.Cache
	buf   cache.WriteBuffer
}

func (t *memTx) Get(key string) (string, error) {
	val, found := t.store.Get(key)
	if !found {
		return "", cache.ErrNotFound
	}
	switch v := val.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return "", fmt.Errorf("%w: value at %s is %T", cache.ErrUnexpectedType, key, val)
	}
}

func (t *memTx) Set(key, value string) {
	t.buf.Set(key, value)
}

func (t *memTx) Delete(key string) {
	t.buf.Delete(key)
}

var _ cache.Cache = (*Cache)(nil)
