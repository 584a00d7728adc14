package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/stayops/console/internal/alerts"
)

func alertWith(id string, priority alerts.Priority, alertType alerts.Type) alerts.Alert {
	return alerts.Alert{
		ID:        id,
		Type:      alertType,
		Priority:  priority,
		Status:    alerts.StatusActive,
		Title:     "title",
		Message:   "message",
		CreatedAt: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
	}
}

func TestRequiresImmediate(t *testing.T) {
	assert.True(t, RequiresImmediate(alertWith("a", alerts.PriorityCritical, alerts.TypeGuestServiceRequest)))
	assert.True(t, RequiresImmediate(alertWith("a", alerts.PriorityLow, alerts.TypeSecurityAlert)))
	assert.True(t, RequiresImmediate(alertWith("a", alerts.PriorityMedium, alerts.TypeInventoryCritical)))
	assert.False(t, RequiresImmediate(alertWith("a", alerts.PriorityHigh, alerts.TypeMaintenanceRequired)))
}

func TestDispatcher_UrgencyTiers(t *testing.T) {
	t.Run("Immediate Gets Long Error Toast", func(t *testing.T) {
		dispatcher := NewDispatcher(zap.NewNop())
		toast, ok := dispatcher.AlertInserted(alertWith("a-1", alerts.PriorityCritical, alerts.TypeSecurityAlert))
		require.True(t, ok)
		assert.Equal(t, StyleError, toast.Style)
		assert.Equal(t, DurationImmediate, toast.Duration)
		assert.True(t, toast.Immediate)
	})

	t.Run("Urgent Gets Short Error Toast", func(t *testing.T) {
		dispatcher := NewDispatcher(zap.NewNop())
		toast, ok := dispatcher.AlertInserted(alertWith("a-1", alerts.PriorityHigh, alerts.TypeMaintenanceRequired))
		require.True(t, ok)
		assert.Equal(t, StyleError, toast.Style)
		assert.Equal(t, DurationUrgent, toast.Duration)
		assert.False(t, toast.Immediate)
	})

	t.Run("Everything Else Gets Success Toast", func(t *testing.T) {
		dispatcher := NewDispatcher(zap.NewNop())
		toast, ok := dispatcher.AlertInserted(alertWith("a-1", alerts.PriorityLow, alerts.TypeGuestServiceRequest))
		require.True(t, ok)
		assert.Equal(t, StyleSuccess, toast.Style)
		assert.Equal(t, DurationDefault, toast.Duration)
	})
}

func TestDispatcher_Dedup(t *testing.T) {
	dispatcher := NewDispatcher(zap.NewNop())
	sink := NewRingSink(10)
	dispatcher.AddSink(sink)

	alert := alertWith("a-1", alerts.PriorityCritical, alerts.TypeSecurityAlert)

	_, ok := dispatcher.AlertInserted(alert)
	assert.True(t, ok)

	// Same identifier through a second delivery path produces nothing.
	_, ok = dispatcher.AlertInserted(alert)
	assert.False(t, ok)

	_, ok = dispatcher.AlertInserted(alertWith("a-2", alerts.PriorityLow, alerts.TypeGuestServiceRequest))
	assert.True(t, ok)

	assert.Len(t, sink.Recent(), 2)
}

func TestDispatcher_FansOutToAllSinks(t *testing.T) {
	dispatcher := NewDispatcher(zap.NewNop())
	first := NewRingSink(10)
	second := NewRingSink(10)
	dispatcher.AddSink(first)
	dispatcher.AddSink(second)

	dispatcher.AlertInserted(alertWith("a-1", alerts.PriorityHigh, alerts.TypeMaintenanceRequired))

	assert.Len(t, first.Recent(), 1)
	assert.Len(t, second.Recent(), 1)
}

func TestDispatcher_ActionFailed(t *testing.T) {
	dispatcher := NewDispatcher(zap.NewNop())
	sink := NewRingSink(10)
	dispatcher.AddSink(sink)

	dispatcher.ActionFailed("a-1", alerts.ActionAcknowledge, assert.AnError)

	toasts := sink.Recent()
	require.Len(t, toasts, 1)
	assert.Equal(t, StyleError, toasts[0].Style)
	assert.Equal(t, "a-1", toasts[0].AlertID)
}

func TestRingSink_Capacity(t *testing.T) {
	sink := NewRingSink(3)
	for i := 0; i < 5; i++ {
		sink.Deliver(Toast{ID: string(rune('a' + i))})
	}
	recent := sink.Recent()
	require.Len(t, recent, 3)
	assert.Equal(t, "c", recent[0].ID)
	assert.Equal(t, "e", recent[2].ID)
}
