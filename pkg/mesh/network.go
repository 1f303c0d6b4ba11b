/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

//go:generate mockgen -source=network.go -destination=mocks/mock_network.go -package=mocks

package mesh

import (
	"context"
	"errors"

	"github.com/hearthline/hearthline/pkg/types"
)

// ErrUnavailable is returned when no peer link can carry the request
var ErrUnavailable = errors.New("mesh network unavailable")

// Network is the peer transport
// Every call may block on the network and must honour ctx.
type Network interface {
	BroadcastAlert(ctx context.Context, alert types.Alert) error
	BroadcastMessage(ctx context.Context, message types.Message) error

	// ScanForDevices returns the peers currently discoverable
	ScanForDevices(ctx context.Context) ([]types.Device, error)

	// SyncData returns the records peers have published since the last commit
	SyncData(ctx context.Context) (*SyncData, error)
}

// Committer is implemented by transports that redeliver a batch until it is
// acknowledged. Commit is called once the batch is durably merged.
type Committer interface {
	Commit(ctx context.Context, data *SyncData) error
}

// Announcer is implemented by transports that publish this node's presence
type Announcer interface {
	Announce(ctx context.Context) error
}

// SyncData is one batch of records received from peers
type SyncData struct {
	Alerts   []types.Alert   `json:"alerts"`
	Messages []types.Message `json:"messages"`

	// cursor positions the transport advances to on Commit
	cursor map[string]string
}

// Empty reports whether the batch carries no records
func (d *SyncData) Empty() bool {
	return d == nil || (len(d.Alerts) == 0 && len(d.Messages) == 0)
}
