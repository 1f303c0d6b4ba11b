package mesh

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/hearthline/hearthline/pkg/logger"
	"github.com/hearthline/hearthline/pkg/types"
)

const (
	StreamAlerts   = "mesh:alerts"
	StreamMessages = "mesh:messages"

	peersKey     = "mesh:peers"
	cursorPrefix = "mesh:cursor:"

	defaultPeerTTL = 30 * time.Second
)

// presence is the value stored per node in the peers hash
type presence struct {
	Name     string `json:"name"`
	LastSeen int64  `json:"lastSeen"`
}

// RedisNetwork carries mesh traffic over redis streams
// Each node appends to the shared streams and reads them from its own cursor;
// the cursor only moves on Commit, so an unmerged batch is read again.
type RedisNetwork struct {
	client  goredis.UniversalClient
	node    types.Device
	peerTTL time.Duration
	now     func() time.Time
}

func NewRedisNetwork(client goredis.UniversalClient, nodeID, nodeName string, peerTTL time.Duration) (*RedisNetwork, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if nodeID == "" {
		return nil, fmt.Errorf("node id is required")
	}
	if peerTTL <= 0 {
		peerTTL = defaultPeerTTL
	}
	return &RedisNetwork{
		client:  client,
		node:    types.Device{ID: nodeID, Name: nodeName, Connected: true},
		peerTTL: peerTTL,
		now:     time.Now,
	}, nil
}

func (n *RedisNetwork) BroadcastAlert(ctx context.Context, alert types.Alert) error {
	return n.publish(ctx, StreamAlerts, alert)
}

func (n *RedisNetwork) BroadcastMessage(ctx context.Context, message types.Message) error {
	return n.publish(ctx, StreamMessages, message)
}

// Announce refreshes this node's presence
func (n *RedisNetwork) Announce(ctx context.Context) error {
	data, err := json.Marshal(presence{Name: n.node.Name, LastSeen: n.now().UnixMilli()})
	if err != nil {
		return err
	}
	if err := n.client.HSet(ctx, peersKey, n.node.ID, string(data)).Err(); err != nil {
		return fmt.Errorf("%w: failed to announce presence: %w", ErrUnavailable, err)
	}
	return nil
}

// ScanForDevices lists every other node that ever announced itself; nodes seen
// within the peer TTL are connected
func (n *RedisNetwork) ScanForDevices(ctx context.Context) ([]types.Device, error) {
	if err := n.Announce(ctx); err != nil {
		return nil, err
	}

	peers, err := n.client.HGetAll(ctx, peersKey).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list peers: %w", ErrUnavailable, err)
	}

	now := n.now()
	devices := make([]types.Device, 0, len(peers))
	for id, raw := range peers {
		if id == n.node.ID {
			continue
		}
		var p presence
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			logger.Logger(ctx).WithField("peer", id).WithError(err).Warn("skipping malformed peer presence")
			continue
		}
		devices = append(devices, types.Device{
			ID:        id,
			Name:      p.Name,
			Connected: now.Sub(time.UnixMilli(p.LastSeen)) <= n.peerTTL,
		})
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].ID < devices[j].ID })
	return devices, nil
}

// SyncData reads both streams from this node's cursor without blocking
// Entries this node published itself are skipped.
func (n *RedisNetwork) SyncData(ctx context.Context) (*SyncData, error) {
	cursor, err := n.client.HGetAll(ctx, n.cursorKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read sync cursor: %w", ErrUnavailable, err)
	}
	next := map[string]string{
		StreamAlerts:   positionOf(cursor, StreamAlerts),
		StreamMessages: positionOf(cursor, StreamMessages),
	}

	streams, err := n.client.XRead(ctx, &goredis.XReadArgs{
		Streams: []string{StreamAlerts, StreamMessages, next[StreamAlerts], next[StreamMessages]},
		Block:   -1,
	}).Result()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("%w: failed to read streams: %w", ErrUnavailable, err)
	}

	data := &SyncData{
		Alerts:   []types.Alert{},
		Messages: []types.Message{},
		cursor:   next,
	}
	log := logger.Logger(ctx)
	for _, stream := range streams {
		for _, entry := range stream.Messages {
			next[stream.Stream] = entry.ID
			if entry.Values["node"] == n.node.ID {
				continue
			}
			raw, _ := entry.Values["data"].(string)

			var decodeErr error
			switch stream.Stream {
			case StreamAlerts:
				var alert types.Alert
				if decodeErr = json.Unmarshal([]byte(raw), &alert); decodeErr == nil {
					data.Alerts = append(data.Alerts, alert)
				}
			case StreamMessages:
				var message types.Message
				if decodeErr = json.Unmarshal([]byte(raw), &message); decodeErr == nil {
					data.Messages = append(data.Messages, message)
				}
			}
			if decodeErr != nil {
				log.WithFields(logrus.Fields{
					"stream":  stream.Stream,
					"entryId": entry.ID,
				}).WithError(decodeErr).Warn("skipping undecodable mesh entry")
			}
		}
	}
	return data, nil
}

// Commit advances this node's cursor past the batch
func (n *RedisNetwork) Commit(ctx context.Context, data *SyncData) error {
	if data == nil || len(data.cursor) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(data.cursor)*2)
	for stream, id := range data.cursor {
		values = append(values, stream, id)
	}
	if err := n.client.HSet(ctx, n.cursorKey(), values...).Err(); err != nil {
		return fmt.Errorf("failed to commit sync cursor: %w", err)
	}
	return nil
}

func (n *RedisNetwork) publish(ctx context.Context, stream string, record interface{}) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal %s record: %w", stream, err)
	}
	err = n.client.XAdd(ctx, &goredis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			"node": n.node.ID,
			"data": string(data),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("%w: failed to publish to %s: %w", ErrUnavailable, stream, err)
	}
	return n.Announce(ctx)
}

func (n *RedisNetwork) cursorKey() string {
	return cursorPrefix + n.node.ID
}

func positionOf(cursor map[string]string, stream string) string {
	if id, ok := cursor[stream]; ok && id != "" {
		return id
	}
	return "0"
}

var (
	_ Network   = (*RedisNetwork)(nil)
	_ Committer = (*RedisNetwork)(nil)
	_ Announcer = (*RedisNetwork)(nil)
)
