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

package handlers

import (
	"context"
	"io"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/hearthline/hearthline/pkg/logger"
	"github.com/hearthline/hearthline/pkg/syncer"
)

const (
	reloadEvent      = "reload"
	subscriberBuffer = 4
)

// EventStream fans reload snapshots out to connected SSE clients
// A subscriber that falls behind misses snapshots rather than blocking sync.
type EventStream struct {
	mu          sync.Mutex
	subscribers map[chan syncer.Snapshot]struct{}
}

func NewEventStream() *EventStream {
	return &EventStream{subscribers: make(map[chan syncer.Snapshot]struct{})}
}

// Reload implements syncer.Reloader
func (e *EventStream) Reload(ctx context.Context, snapshot syncer.Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()

	dropped := 0
	for ch := range e.subscribers {
		select {
		case ch <- snapshot:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		logger.Logger(ctx).WithField("dropped", dropped).Debug("slow event subscribers skipped a snapshot")
	}
}

func (e *EventStream) Subscribers() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subscribers)
}

func (e *EventStream) subscribe() (<-chan syncer.Snapshot, func()) {
	ch := make(chan syncer.Snapshot, subscriberBuffer)
	e.mu.Lock()
	e.subscribers[ch] = struct{}{}
	e.mu.Unlock()

	return ch, func() {
		e.mu.Lock()
		delete(e.subscribers, ch)
		e.mu.Unlock()
	}
}

// Events streams reload snapshots as server-sent events
func (h *Handlers) Events(c *gin.Context) {
	ch, unsubscribe := h.events.subscribe()
	defer unsubscribe()

	ctx := c.Request.Context()
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case snapshot := <-ch:
			c.SSEvent(reloadEvent, snapshot)
			return true
		case <-ctx.Done():
			return false
		}
	})
}
