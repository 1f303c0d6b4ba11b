package mesh

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/hearthline/hearthline/pkg/logger"
	"github.com/hearthline/hearthline/pkg/types"
)

// Simulated is an in-process transport
// Peers are fixed at construction; records from peers are injected with Deliver
// and stay pending until committed.
type Simulated struct {
	mu        sync.Mutex
	peers     []types.Device
	reachable bool

	sentAlerts   []types.Alert
	sentMessages []types.Message

	inboxAlerts   []types.Alert
	inboxMessages []types.Message
}

func NewSimulated(peers []types.Device) *Simulated {
	return &Simulated{
		peers:     append([]types.Device(nil), peers...),
		reachable: true,
	}
}

// SetReachable simulates losing or regaining every peer link
func (s *Simulated) SetReachable(reachable bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reachable = reachable
}

// Deliver queues records as if a peer had published them
func (s *Simulated) Deliver(alerts []types.Alert, messages []types.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inboxAlerts = append(s.inboxAlerts, alerts...)
	s.inboxMessages = append(s.inboxMessages, messages...)
}

// Sent returns everything broadcast so far
func (s *Simulated) Sent() ([]types.Alert, []types.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.Alert(nil), s.sentAlerts...), append([]types.Message(nil), s.sentMessages...)
}

func (s *Simulated) BroadcastAlert(ctx context.Context, alert types.Alert) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	s.sentAlerts = append(s.sentAlerts, alert)
	s.mu.Unlock()

	logger.Logger(ctx).WithFields(logrus.Fields{
		"alertId": alert.ID,
		"type":    alert.Type,
	}).Debug("alert broadcast to simulated mesh")
	return nil
}

func (s *Simulated) BroadcastMessage(ctx context.Context, message types.Message) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	s.sentMessages = append(s.sentMessages, message)
	s.mu.Unlock()
	return nil
}

func (s *Simulated) ScanForDevices(ctx context.Context) ([]types.Device, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.Device{}, s.peers...), nil
}

// SyncData returns every pending record; they stay pending until Commit
func (s *Simulated) SyncData(ctx context.Context) (*SyncData, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return &SyncData{
		Alerts:   append([]types.Alert{}, s.inboxAlerts...),
		Messages: append([]types.Message{}, s.inboxMessages...),
		cursor: map[string]string{
			StreamAlerts:   strconv.Itoa(len(s.inboxAlerts)),
			StreamMessages: strconv.Itoa(len(s.inboxMessages)),
		},
	}, nil
}

// Commit drops the records a batch returned; records delivered afterwards stay
func (s *Simulated) Commit(ctx context.Context, data *SyncData) error {
	if data == nil {
		return nil
	}
	alerts, err := strconv.Atoi(data.cursor[StreamAlerts])
	if err != nil {
		return fmt.Errorf("invalid alert cursor: %w", err)
	}
	messages, err := strconv.Atoi(data.cursor[StreamMessages])
	if err != nil {
		return fmt.Errorf("invalid message cursor: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inboxAlerts = s.inboxAlerts[min(alerts, len(s.inboxAlerts)):]
	s.inboxMessages = s.inboxMessages[min(messages, len(s.inboxMessages)):]
	return nil
}

func (s *Simulated) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.reachable {
		return ErrUnavailable
	}
	return nil
}

var (
	_ Network   = (*Simulated)(nil)
	_ Committer = (*Simulated)(nil)
)
