package types

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidRecord is returned when a record fails validation
var ErrInvalidRecord = errors.New("invalid record")

// TimestampLayout is the ISO-8601 form used for every record timestamp
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

type AlertType string

const (
	AlertTypeMedical    AlertType = "medical"
	AlertTypeSecurity   AlertType = "security"
	AlertTypeResource   AlertType = "resource"
	AlertTypeEvacuation AlertType = "evacuation"
	AlertTypeOther      AlertType = "other"
)

var alertTypeNames = map[AlertType]string{
	AlertTypeMedical:    "Medical Emergency",
	AlertTypeSecurity:   "Security Threat",
	AlertTypeResource:   "Resource Shortage",
	AlertTypeEvacuation: "Evacuation Needed",
	AlertTypeOther:      "Emergency Alert",
}

// Valid reports whether t is one of the known alert types
func (t AlertType) Valid() bool {
	_, ok := alertTypeNames[t]
	return ok
}

// DisplayName returns the human readable label, "Emergency Alert" for unknown types
func (t AlertType) DisplayName() string {
	if name, ok := alertTypeNames[t]; ok {
		return name
	}
	return alertTypeNames[AlertTypeOther]
}

type AlertStatus string

const (
	AlertStatusActive   AlertStatus = "active"
	AlertStatusResolved AlertStatus = "resolved"
)

func (s AlertStatus) Valid() bool {
	return s == AlertStatusActive || s == AlertStatusResolved
}

// Alert is an emergency alert recorded on this device or received from a peer
type Alert struct {
	ID        string      `json:"id"`
	Type      AlertType   `json:"type"`
	Details   string      `json:"details"`
	Timestamp string      `json:"timestamp"`
	Status    AlertStatus `json:"status"`
}

// Validate checks the alert fields. It does not check id uniqueness.
func (a *Alert) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("%w: alert id is required", ErrInvalidRecord)
	}
	if !a.Type.Valid() {
		return fmt.Errorf("%w: unknown alert type %q", ErrInvalidRecord, a.Type)
	}
	if strings.TrimSpace(a.Details) == "" {
		return fmt.Errorf("%w: alert details are required", ErrInvalidRecord)
	}
	if !a.Status.Valid() {
		return fmt.Errorf("%w: unknown alert status %q", ErrInvalidRecord, a.Status)
	}
	if _, err := ParseTimestamp(a.Timestamp); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	return nil
}

// Message is a short team message
type Message struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Sender    string `json:"sender"`
	Timestamp string `json:"timestamp"`
}

func (m *Message) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("%w: message id is required", ErrInvalidRecord)
	}
	if strings.TrimSpace(m.Text) == "" {
		return fmt.Errorf("%w: message text is required", ErrInvalidRecord)
	}
	if _, err := ParseTimestamp(m.Timestamp); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	return nil
}

// Device is a peer device, either discovered by a scan or persisted by the user
type Device struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Connected bool   `json:"connected"`
}

func (d *Device) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("%w: device id is required", ErrInvalidRecord)
	}
	return nil
}

// FormatTimestamp renders t in UTC with millisecond precision
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp accepts any RFC 3339 timestamp, with or without fractional seconds
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}
