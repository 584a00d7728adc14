package alerts

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Priority represents the urgency tier of an alert
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Status represents the lifecycle state of an alert
type Status string

const (
	StatusActive       Status = "active"
	StatusAcknowledged Status = "acknowledged"
	StatusInProgress   Status = "in_progress"
	StatusResolved     Status = "resolved"
	StatusDismissed    Status = "dismissed"
)

// Type tags the operational domain an alert belongs to
type Type string

const (
	TypeGuestServiceRequest Type = "guest_service_request"
	TypeMaintenanceRequired Type = "maintenance_required"
	TypeInventoryCritical   Type = "inventory_critical"
	TypeSecurityAlert       Type = "security_alert"
	TypeChannelSyncFailure  Type = "channel_sync_failure"
	TypeRateDistribution    Type = "rate_distribution"
)

// Action is a staff operation on an alert, executed server-side
type Action string

const (
	ActionAcknowledge  Action = "acknowledge"
	ActionStartWorking Action = "start-working"
	ActionResolve      Action = "resolve"
	ActionDismiss      Action = "dismiss"
)

// Alert is a discrete notifiable event with a priority, status and lifecycle.
// The server is authoritative for every field; the console never derives or
// mutates alert state locally.
type Alert struct {
	ID           string     `json:"id" validate:"required"`
	Type         Type       `json:"type" validate:"required"`
	Priority     Priority   `json:"priority" validate:"required,oneof=low medium high critical"`
	Status       Status     `json:"status" validate:"required,oneof=active acknowledged in_progress resolved dismissed"`
	Title        string     `json:"title" validate:"required"`
	Message      string     `json:"message"`
	PropertyID   string     `json:"property_id,omitempty"`
	RoomNumber   string     `json:"room_number,omitempty"`
	GuestName    string     `json:"guest_name,omitempty"`
	AssignedTo   string     `json:"assigned_to,omitempty"`
	UrgencyScore int        `json:"urgency_score,omitempty" validate:"gte=0,lte=100"`
	Escalated    bool       `json:"escalated,omitempty"`
	Notes        string     `json:"notes,omitempty"`
	CreatedAt    time.Time  `json:"created_at" validate:"required"`
	UpdatedAt    time.Time  `json:"updated_at"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// LastModified is the timestamp used for last-write-wins merging. Alerts that
// have never been mutated carry a zero UpdatedAt and fall back to CreatedAt.
func (a Alert) LastModified() time.Time {
	if a.UpdatedAt.IsZero() {
		return a.CreatedAt
	}
	return a.UpdatedAt
}

// Open reports whether the alert still belongs in the active view.
func (a Alert) Open() bool {
	return a.Status != StatusResolved && a.Status != StatusDismissed
}

// EventName identifies a server-pushed event on the real-time channel
type EventName string

const (
	EventAlertNew       EventName = "staff-alert:new"
	EventAlertUpdated   EventName = "staff-alert:updated"
	EventAlertResolved  EventName = "staff-alert:resolved"
	EventAlertEscalated EventName = "staff-alert:escalated"
)

// EventNames lists every alert event the console subscribes to.
func EventNames() []EventName {
	return []EventName{EventAlertNew, EventAlertUpdated, EventAlertResolved, EventAlertEscalated}
}

// Event is the tagged union decoded from a real-time payload, discriminated
// by the event name it arrived under.
type Event struct {
	Name  EventName `json:"-"`
	Alert Alert     `json:"alert"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// DecodeEvent parses and validates a raw push payload. Malformed or
// incomplete payloads return an error so the caller can drop them without
// breaking the shared dispatch loop.
func DecodeEvent(name EventName, payload []byte) (Event, error) {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return Event{}, fmt.Errorf("failed to decode %s payload: %w", name, err)
	}
	event.Name = name

	if err := validate.Struct(event.Alert); err != nil {
		return Event{}, fmt.Errorf("invalid alert in %s payload: %w", name, err)
	}
	return event, nil
}
