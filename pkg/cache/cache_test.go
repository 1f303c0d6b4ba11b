package cache

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_UnknownDriver(t *testing.T) {
	_, err := New(&Config{Driver: "etcd"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown cache driver "etcd"`)

	_, err = New(nil)
	assert.Error(t, err)
}

func TestRegister(t *testing.T) {
	boom := errors.New("boom")
	Register("failing-test-driver", func(cfg *Config) (Cache, error) {
		return nil, boom
	})

	assert.Contains(t, Drivers(), "failing-test-driver")

	_, err := New(&Config{Driver: "failing-test-driver"})
	assert.ErrorIs(t, err, boom)

	assert.Panics(t, func() {
		Register("failing-test-driver", func(cfg *Config) (Cache, error) { return nil, nil })
	})
	assert.Panics(t, func() {
		Register("nil-driver", nil)
	})
}

func TestWriteBuffer(t *testing.T) {
	var b WriteBuffer
	assert.True(t, b.Empty())

	b.Set("a", "1")
	b.Delete("a")
	assert.False(t, b.Empty())
	assert.Equal(t, []Op{{Key: "a", Value: "1"}, {Key: "a", Delete: true}}, b.Ops)
}
