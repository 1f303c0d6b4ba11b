package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// NoExpiration marks an entry that never expires
const NoExpiration time.Duration = -1

var (
	// ErrNotFound is returned when a key is absent
	ErrNotFound = errors.New("cache: key not found")

	// ErrConflict is returned when a transaction could not commit after repeated
	// concurrent modifications of its watched keys
	ErrConflict = errors.New("cache: transaction conflict")

	// ErrUnexpectedType is returned by Tx.Get when a key holds a value that is
	// not a string
	ErrUnexpectedType = errors.New("cache: unexpected value type")
)

// Cache is the key-value substrate used by the record store and the asset cache
// Values are strings; callers own their serialization.
type Cache interface {
	// Get returns the value stored at key, or ErrNotFound
	Get(ctx context.Context, key string) (interface{}, error)

	// Set stores value at key
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error

	// Delete removes key; deleting an absent key is not an error
	Delete(ctx context.Context, key string) error

	// GetByPattern returns every key matching a glob pattern ("user:*") with its value
	GetByPattern(ctx context.Context, pattern string) (map[string]interface{}, error)

	// Update runs fn as one transaction over the watched keys
	// Reads inside fn observe a consistent view and buffered writes are applied
	// atomically after fn returns nil. If fn returns an error nothing is written.
	// fn may run more than once when a driver retries a conflicting transaction.
	Update(ctx context.Context, fn func(tx Tx) error, keys ...string) error

	// Close releases the underlying connections
	Close() error
}

// Tx is the view of the cache inside Update
type Tx interface {
	// Get returns the committed value of key, or ErrNotFound
	// Writes buffered in the same transaction are not visible to Get.
	Get(key string) (string, error)
	Set(key, value string)
	Delete(key string)
}

// Config selects and configures a cache driver
type Config struct {
	Driver   string         `mapstructure:"driver" yaml:"driver"`
	InMemory InMemoryConfig `mapstructure:"inmemory" yaml:"inmemory"`
	Redis    RedisConfig    `mapstructure:"redis" yaml:"redis"`
}

// InMemoryConfig holds expiration settings in seconds
type InMemoryConfig struct {
	DefaultExpiration int32 `mapstructure:"defaultExpiration" yaml:"defaultExpiration"`
	CleanupInterval   int32 `mapstructure:"cleanupInterval" yaml:"cleanupInterval"`
}

type RedisConfig struct {
	Host       string `mapstructure:"host" yaml:"host"`
	Port       string `mapstructure:"port" yaml:"port"`
	Username   string `mapstructure:"username" yaml:"username"`
	Password   string `mapstructure:"password" yaml:"password"`
	Database   int    `mapstructure:"database" yaml:"database"`
	MaxRetries int    `mapstructure:"maxRetries" yaml:"maxRetries"`
	// TxRetries bounds optimistic transaction retries before ErrConflict
	TxRetries int `mapstructure:"txRetries" yaml:"txRetries"`
}

// Factory builds a Cache from its config
type Factory func(cfg *Config) (Cache, error)

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Factory)
)

// Register makes a driver available to New
// Drivers call it from init; registering a name twice panics.
func Register(name string, factory Factory) {
	driversMu.Lock()
	defer driversMu.Unlock()

	if factory == nil {
		panic("cache: Register factory is nil")
	}
	if _, dup := drivers[name]; dup {
		panic("cache: Register called twice for driver " + name)
	}
	drivers[name] = factory
}

// Drivers returns the sorted names of registered drivers
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()

	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New builds the cache selected by cfg.Driver
func New(cfg *Config) (Cache, error) {
	if cfg == nil {
		return nil, fmt.Errorf("cache config is required")
	}

	driversMu.RLock()
	factory, ok := drivers[cfg.Driver]
	driversMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown cache driver %q (registered: %v)", cfg.Driver, Drivers())
	}

	c, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s cache: %w", cfg.Driver, err)
	}
	return c, nil
}
