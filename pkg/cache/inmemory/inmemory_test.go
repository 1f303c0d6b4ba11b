package inmemory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthline/hearthline/pkg/cache"
	"github.com/hearthline/hearthline/pkg/cache/cachetest"
)

func TestCache_Conformance(t *testing.T) {
	cachetest.RunConformance(t, func(t *testing.T) cache.Cache {
		c, err := NewCache(&Config{
			DefaultExpiration: 300,
			CleanupInterval:   600,
		})
		require.NoError(t, err)
		return c
	})
}

func TestNewCache_InvalidConfig(t *testing.T) {
	_, err := NewCache(nil)
	assert.Error(t, err)

	_, err = NewCache(&Config{CleanupInterval: -1})
	assert.Error(t, err)
}

func TestNew_RegisteredDriver(t *testing.T) {
	c, err := cache.New(&cache.Config{Driver: DriverName})
	require.NoError(t, err)
	assert.IsType(t, &Cache{}, c)
}

func TestCache_UpdateCanceledContext(t *testing.T) {
	c, err := NewCache(&Config{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err = c.Update(ctx, func(tx cache.Tx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestCache_GetByPatternInvalid(t *testing.T) {
	c, err := NewCache(&Config{})
	require.NoError(t, err)

	_, err = c.GetByPattern(context.Background(), "[")
	assert.Error(t, err)
}

func TestGlobToRegexp(t *testing.T) {
	tests := []struct {
		pattern string
		key     string
		want    bool
	}{
		{"hearthline-assets:v1:*", "hearthline-assets:v1:/styles/main.css", true},
		{"hearthline-assets:v1:*", "hearthline-assets:v2:/index.html", false},
		{"h?llo", "hello", true},
		{"h[ae]llo", "hallo", true},
		{"h[^e]llo", "hello", false},
		{"a.b", "axb", false},
		{`a\*`, "a*", true},
		{`a\*`, "ab", false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"_"+tt.key, func(t *testing.T) {
			re, err := globToRegexp(tt.pattern)
			require.NoError(t, err)
			assert.Equal(t, tt.want, re.MatchString(tt.key))
		})
	}
}
