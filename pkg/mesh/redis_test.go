package mesh

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthline/hearthline/pkg/types"
)

func setupRedisNetworks(t *testing.T) (*RedisNetwork, *RedisNetwork, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	a, err := NewRedisNetwork(client, "node-a", "Radio A", time.Minute)
	require.NoError(t, err)
	b, err := NewRedisNetwork(client, "node-b", "Radio B", time.Minute)
	require.NoError(t, err)
	return a, b, mr
}

func TestNewRedisNetwork_Validation(t *testing.T) {
	client := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()

	_, err := NewRedisNetwork(nil, "node", "", 0)
	assert.Error(t, err)

	_, err = NewRedisNetwork(client, "", "", 0)
	assert.Error(t, err)

	n, err := NewRedisNetwork(client, "node", "", 0)
	require.NoError(t, err)
	assert.Equal(t, defaultPeerTTL, n.peerTTL)
}

func TestRedisNetwork_SyncAcrossNodes(t *testing.T) {
	a, b, _ := setupRedisNetworks(t)
	ctx := context.Background()

	alert := types.Alert{
		ID:        "a1",
		Type:      types.AlertTypeEvacuation,
		Details:   "flood on main street",
		Timestamp: "2024-01-01T00:00:00.000Z",
		Status:    types.AlertStatusActive,
	}
	message := types.Message{ID: "m1", Text: "meet at the school", Sender: "Radio A", Timestamp: "2024-01-01T00:01:00.000Z"}
	require.NoError(t, a.BroadcastAlert(ctx, alert))
	require.NoError(t, a.BroadcastMessage(ctx, message))

	batch, err := b.SyncData(ctx)
	require.NoError(t, err)
	assert.Equal(t, []types.Alert{alert}, batch.Alerts)
	assert.Equal(t, []types.Message{message}, batch.Messages)

	// without a commit the same batch is read again
	again, err := b.SyncData(ctx)
	require.NoError(t, err)
	assert.Equal(t, batch.Alerts, again.Alerts)

	require.NoError(t, b.Commit(ctx, batch))

	after, err := b.SyncData(ctx)
	require.NoError(t, err)
	assert.True(t, after.Empty())

	// the sender never receives its own records
	own, err := a.SyncData(ctx)
	require.NoError(t, err)
	assert.True(t, own.Empty())
}

func TestRedisNetwork_SkipsUndecodableEntries(t *testing.T) {
	a, b, mr := setupRedisNetworks(t)
	ctx := context.Background()

	_, err := mr.XAdd(StreamAlerts, "*", []string{"node", "node-c", "data", "{broken"})
	require.NoError(t, err)
	require.NoError(t, a.BroadcastAlert(ctx, types.Alert{ID: "a1", Type: types.AlertTypeOther, Details: "x"}))

	batch, err := b.SyncData(ctx)
	require.NoError(t, err)
	require.Len(t, batch.Alerts, 1)
	assert.Equal(t, "a1", batch.Alerts[0].ID)

	require.NoError(t, b.Commit(ctx, batch))
	after, err := b.SyncData(ctx)
	require.NoError(t, err)
	assert.True(t, after.Empty())
}

func TestRedisNetwork_ScanForDevices(t *testing.T) {
	a, b, _ := setupRedisNetworks(t)
	ctx := context.Background()

	devices, err := b.ScanForDevices(ctx)
	require.NoError(t, err)
	assert.Empty(t, devices)

	require.NoError(t, a.Announce(ctx))

	devices, err = b.ScanForDevices(ctx)
	require.NoError(t, err)
	assert.Equal(t, []types.Device{{ID: "node-a", Name: "Radio A", Connected: true}}, devices)

	// node-a falls silent for longer than the peer TTL
	b.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	devices, err = b.ScanForDevices(ctx)
	require.NoError(t, err)
	assert.Equal(t, []types.Device{{ID: "node-a", Name: "Radio A", Connected: false}}, devices)
}

func TestRedisNetwork_Unavailable(t *testing.T) {
	a, _, mr := setupRedisNetworks(t)
	mr.Close()
	ctx := context.Background()

	assert.ErrorIs(t, a.BroadcastAlert(ctx, types.Alert{ID: "a1"}), ErrUnavailable)
	_, err := a.SyncData(ctx)
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = a.ScanForDevices(ctx)
	assert.ErrorIs(t, err, ErrUnavailable)
}
