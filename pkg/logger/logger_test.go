package logger

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit(t *testing.T) {
	defer func() {
		require.NoError(t, Init("info", "text"))
	}()

	require.NoError(t, Init("debug", "json"))
	assert.Equal(t, logrus.DebugLevel, Base().GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, Base().Formatter)

	assert.Error(t, Init("loud", "text"))
	assert.Error(t, Init("info", "xml"))
}

func TestLogger_ContextFields(t *testing.T) {
	ctx := WithFields(context.Background(), logrus.Fields{"request_id": "abc"})
	ctx = WithFields(ctx, logrus.Fields{"component": "store"})

	entry := Logger(ctx)
	assert.Equal(t, "abc", entry.Data["request_id"])
	assert.Equal(t, "store", entry.Data["component"])

	plain := Logger(context.Background())
	assert.Empty(t, plain.Data)
}
