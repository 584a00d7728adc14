package view

import (
	"strings"
	"time"

	"github.com/stayops/console/internal/alerts"
)

// Icon selects the glyph the browser shell renders for an alert
type Icon string

const (
	IconFlash   Icon = "flash"
	IconWarning Icon = "warning"
	IconCircle  Icon = "circle"
)

// Badge is the status chip rendered next to an alert
type Badge struct {
	Text  string `json:"text"`
	Color string `json:"color"`
}

// AlertView is the render-ready projection of an alert. It is a pure function
// of the alert; no component state leaks in.
type AlertView struct {
	ID         string          `json:"id"`
	Type       alerts.Type     `json:"type"`
	Priority   alerts.Priority `json:"priority"`
	Status     alerts.Status   `json:"status"`
	Title      string          `json:"title"`
	Message    string          `json:"message"`
	RoomNumber string          `json:"room_number,omitempty"`
	GuestName  string          `json:"guest_name,omitempty"`
	AssignedTo string          `json:"assigned_to,omitempty"`
	Escalated  bool            `json:"escalated,omitempty"`
	Icon       Icon            `json:"icon"`
	Badge      Badge           `json:"badge"`
	Actions    []alerts.Action `json:"actions"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Render maps an alert to its view model.
func Render(alert alerts.Alert) AlertView {
	return AlertView{
		ID:         alert.ID,
		Type:       alert.Type,
		Priority:   alert.Priority,
		Status:     alert.Status,
		Title:      alert.Title,
		Message:    alert.Message,
		RoomNumber: alert.RoomNumber,
		GuestName:  alert.GuestName,
		AssignedTo: alert.AssignedTo,
		Escalated:  alert.Escalated,
		Icon:       IconFor(alert.Priority),
		Badge:      BadgeFor(alert.Status),
		Actions:    AllowedActions(alert.Status),
		CreatedAt:  alert.CreatedAt,
	}
}

// IconFor selects the icon by priority tier.
func IconFor(priority alerts.Priority) Icon {
	switch priority {
	case alerts.PriorityCritical:
		return IconFlash
	case alerts.PriorityHigh:
		return IconWarning
	default:
		return IconCircle
	}
}

// BadgeFor maps a status onto its badge text and color.
func BadgeFor(status alerts.Status) Badge {
	switch status {
	case alerts.StatusActive:
		return Badge{Text: "Active", Color: "red"}
	case alerts.StatusAcknowledged:
		return Badge{Text: "Acknowledged", Color: "orange"}
	case alerts.StatusInProgress:
		return Badge{Text: "In Progress", Color: "blue"}
	case alerts.StatusResolved:
		return Badge{Text: "Resolved", Color: "green"}
	case alerts.StatusDismissed:
		return Badge{Text: "Dismissed", Color: "gray"}
	default:
		return Badge{Text: string(status), Color: "gray"}
	}
}

// AllowedActions returns the staff actions permitted for an alert in the
// given status. Resolved and dismissed alerts accept none.
func AllowedActions(status alerts.Status) []alerts.Action {
	switch status {
	case alerts.StatusActive:
		return []alerts.Action{alerts.ActionAcknowledge, alerts.ActionStartWorking, alerts.ActionResolve, alerts.ActionDismiss}
	case alerts.StatusAcknowledged, alerts.StatusInProgress:
		return []alerts.Action{alerts.ActionResolve, alerts.ActionDismiss}
	default:
		return []alerts.Action{}
	}
}

// Filter narrows an already-fetched page of alerts. Zero-valued fields match
// everything; Search is a case-insensitive substring over the title, message
// and people fields.
type Filter struct {
	Status   alerts.Status   `form:"status" json:"status,omitempty"`
	Priority alerts.Priority `form:"priority" json:"priority,omitempty"`
	Type     alerts.Type     `form:"type" json:"type,omitempty"`
	Search   string          `form:"search" json:"search,omitempty"`
}

// Match reports whether the alert passes every active criterion.
func (f Filter) Match(alert alerts.Alert) bool {
	if f.Status != "" && alert.Status != f.Status {
		return false
	}
	if f.Priority != "" && alert.Priority != f.Priority {
		return false
	}
	if f.Type != "" && alert.Type != f.Type {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		haystacks := []string{alert.Title, alert.Message, alert.GuestName, alert.AssignedTo}
		found := false
		for _, field := range haystacks {
			if strings.Contains(strings.ToLower(field), needle) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Apply filters a page and renders the survivors.
func Apply(filter Filter, page []alerts.Alert) []AlertView {
	views := make([]AlertView, 0, len(page))
	for _, alert := range page {
		if filter.Match(alert) {
			views = append(views, Render(alert))
		}
	}
	return views
}
