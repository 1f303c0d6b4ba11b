package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/hearthline/hearthline/pkg/assetcache"
	"github.com/hearthline/hearthline/pkg/connectivity"
	"github.com/hearthline/hearthline/pkg/logger"
	"github.com/hearthline/hearthline/pkg/mesh"
	"github.com/hearthline/hearthline/pkg/store"
	"github.com/hearthline/hearthline/pkg/syncer"
	"github.com/hearthline/hearthline/pkg/types"
)

const DefaultSender = "You"

// Dependencies are the collaborators of the client service
type Dependencies struct {
	Store   store.RecordStore
	Network mesh.Network
	Syncer  *syncer.Coordinator
	Monitor *connectivity.Monitor
	// Assets is optional; without it the service reports no active generation
	Assets *assetcache.Manager

	DefaultSender string
}

// AlertInput is what a user supplies to raise an alert
type AlertInput struct {
	Type    types.AlertType `json:"type"`
	Details string          `json:"details"`
}

// MessageInput is what a user supplies to send a message
type MessageInput struct {
	Text   string `json:"text"`
	Sender string `json:"sender,omitempty"`
}

// Status summarises the local node for the UI
type Status struct {
	Online           bool           `json:"online"`
	OnlineSince      time.Time      `json:"onlineSince"`
	ActiveGeneration string         `json:"activeGeneration,omitempty"`
	LastSync         *syncer.Result `json:"lastSync,omitempty"`
	Usage            *store.Usage   `json:"usage"`
}

// Service implements the user actions of the offline client
type Service struct {
	store         store.RecordStore
	network       mesh.Network
	syncer        *syncer.Coordinator
	monitor       *connectivity.Monitor
	assets        *assetcache.Manager
	defaultSender string

	now   func() time.Time
	newID func() (string, error)
}

func New(deps Dependencies) (*Service, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("record store is required")
	}
	if deps.Network == nil {
		return nil, fmt.Errorf("mesh network is required")
	}
	if deps.Syncer == nil {
		return nil, fmt.Errorf("sync coordinator is required")
	}
	if deps.Monitor == nil {
		return nil, fmt.Errorf("connectivity monitor is required")
	}

	sender := strings.TrimSpace(deps.DefaultSender)
	if sender == "" {
		sender = DefaultSender
	}

	return &Service{
		store:         deps.Store,
		network:       deps.Network,
		syncer:        deps.Syncer,
		monitor:       deps.Monitor,
		assets:        deps.Assets,
		defaultSender: sender,
		now:           time.Now,
		newID:         newRecordID,
	}, nil
}

// newRecordID returns a time-ordered id
func newRecordID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// CreateAlert persists a new active alert and then broadcasts it
// A failed broadcast is logged; the alert stays saved locally.
func (s *Service) CreateAlert(ctx context.Context, in AlertInput) (*types.Alert, error) {
	id, err := s.newID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate alert id: %w", err)
	}

	alert := types.Alert{
		ID:        id,
		Type:      in.Type,
		Details:   strings.TrimSpace(in.Details),
		Timestamp: types.FormatTimestamp(s.now()),
		Status:    types.AlertStatusActive,
	}
	if err := alert.Validate(); err != nil {
		return nil, err
	}

	if err := s.store.SaveAlert(ctx, alert); err != nil {
		return nil, err
	}

	log := logger.Logger(ctx).WithFields(logrus.Fields{
		"alertId": alert.ID,
		"type":    alert.Type,
	})
	log.Info("alert created")

	if err := s.network.BroadcastAlert(ctx, alert); err != nil {
		log.WithError(err).Warn("failed to broadcast alert")
	}
	return &alert, nil
}

// SendMessage persists a message and then broadcasts it
func (s *Service) SendMessage(ctx context.Context, in MessageInput) (*types.Message, error) {
	id, err := s.newID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate message id: %w", err)
	}

	sender := strings.TrimSpace(in.Sender)
	if sender == "" {
		sender = s.defaultSender
	}

	message := types.Message{
		ID:        id,
		Text:      strings.TrimSpace(in.Text),
		Sender:    sender,
		Timestamp: types.FormatTimestamp(s.now()),
	}
	if err := message.Validate(); err != nil {
		return nil, err
	}

	if err := s.store.SaveMessage(ctx, message); err != nil {
		return nil, err
	}

	if err := s.network.BroadcastMessage(ctx, message); err != nil {
		logger.Logger(ctx).WithError(err).WithField("messageId", message.ID).Warn("failed to broadcast message")
	}
	return &message, nil
}

// RegisterDevice upserts a device by id
func (s *Service) RegisterDevice(ctx context.Context, device types.Device) (*types.Device, error) {
	device.Name = strings.TrimSpace(device.Name)
	if err := device.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.SaveDevice(ctx, device); err != nil {
		return nil, err
	}
	return &device, nil
}

// ScanDevices lists reachable peers without saving them
func (s *Service) ScanDevices(ctx context.Context) ([]types.Device, error) {
	return s.syncer.ScanDevices(ctx)
}

func (s *Service) Sync(ctx context.Context) (*syncer.Result, error) {
	return s.syncer.TriggerSync(ctx)
}

func (s *Service) Alerts(ctx context.Context) ([]types.Alert, error) {
	return s.store.GetAlerts(ctx)
}

func (s *Service) Messages(ctx context.Context) ([]types.Message, error) {
	return s.store.GetMessages(ctx)
}

func (s *Service) Devices(ctx context.Context) ([]types.Device, error) {
	return s.store.GetDevices(ctx)
}

func (s *Service) Usage(ctx context.Context) (*store.Usage, error) {
	return s.store.StorageUsage(ctx)
}

// Reset clears every local record
func (s *Service) Reset(ctx context.Context) error {
	if err := s.store.ClearAll(ctx); err != nil {
		return err
	}
	logger.Logger(ctx).Info("local data cleared")
	return nil
}

func (s *Service) Connectivity() connectivity.Status {
	return s.monitor.Status()
}

// SetOnline records a connectivity change reported by the client
func (s *Service) SetOnline(ctx context.Context, online bool) connectivity.Status {
	s.monitor.SetOnline(ctx, online)
	return s.monitor.Status()
}

func (s *Service) Status(ctx context.Context) (*Status, error) {
	usage, err := s.store.StorageUsage(ctx)
	if err != nil {
		return nil, err
	}

	conn := s.monitor.Status()
	status := &Status{
		Online:      conn.Online,
		OnlineSince: conn.Since,
		LastSync:    s.syncer.LastResult(),
		Usage:       usage,
	}
	if s.assets != nil {
		status.ActiveGeneration = s.assets.Active()
	}
	return status, nil
}

// Precache installs and activates the manifest's generation. When the install
// fails the last committed generation keeps serving.
func (s *Service) Precache(ctx context.Context, manifest *assetcache.Manifest) (string, error) {
	if s.assets == nil {
		return "", fmt.Errorf("asset cache is not configured")
	}
	log := logger.Logger(ctx)

	if err := s.assets.Install(ctx, manifest); err != nil {
		log.WithError(err).Warn("asset install failed, keeping previous generation")
		if active := s.assets.Active(); active != "" {
			return active, err
		}
		if tag, resumeErr := s.assets.Resume(ctx); resumeErr == nil {
			return tag, err
		}
		return "", err
	}

	if err := s.assets.Activate(ctx, manifest.Version); err != nil {
		return "", err
	}
	return manifest.Version, nil
}
