package alerts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testAlert(id string, priority Priority, status Status, created time.Time) Alert {
	return Alert{
		ID:        id,
		Type:      TypeGuestServiceRequest,
		Priority:  priority,
		Status:    status,
		Title:     "Extra towels requested",
		Message:   "Guest in 412 requested extra towels",
		CreatedAt: created,
	}
}

func TestStore_ApplyIncoming(t *testing.T) {
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	t.Run("Insert Then Replace", func(t *testing.T) {
		store := NewStore(zap.NewNop())

		alert := testAlert("a-1", PriorityHigh, StatusActive, base)
		assert.Equal(t, OutcomeInserted, store.ApplyIncoming(alert))

		alert.Status = StatusAcknowledged
		alert.UpdatedAt = base.Add(time.Minute)
		assert.Equal(t, OutcomeReplaced, store.ApplyIncoming(alert))

		held, ok := store.Get("a-1")
		require.True(t, ok)
		assert.Equal(t, StatusAcknowledged, held.Status)
		assert.Equal(t, 1, store.Len())
	})

	t.Run("Stale Update Discarded", func(t *testing.T) {
		store := NewStore(zap.NewNop())

		newer := testAlert("a-1", PriorityHigh, StatusInProgress, base)
		newer.UpdatedAt = base.Add(5 * time.Minute)
		require.Equal(t, OutcomeInserted, store.ApplyIncoming(newer))

		stale := testAlert("a-1", PriorityHigh, StatusActive, base)
		stale.UpdatedAt = base.Add(time.Minute)
		assert.Equal(t, OutcomeDiscarded, store.ApplyIncoming(stale))

		held, _ := store.Get("a-1")
		assert.Equal(t, StatusInProgress, held.Status)
	})

	t.Run("Identical Replay Discarded", func(t *testing.T) {
		store := NewStore(zap.NewNop())

		alert := testAlert("a-1", PriorityCritical, StatusActive, base)
		require.Equal(t, OutcomeInserted, store.ApplyIncoming(alert))
		assert.Equal(t, OutcomeDiscarded, store.ApplyIncoming(alert))
		assert.Equal(t, 1, store.Len())
	})

	t.Run("Latest Timestamp Wins Regardless Of Order", func(t *testing.T) {
		versions := []Alert{
			{ID: "a-1", Type: TypeSecurityAlert, Priority: PriorityHigh, Status: StatusActive, Title: "v1", CreatedAt: base},
			{ID: "a-1", Type: TypeSecurityAlert, Priority: PriorityHigh, Status: StatusAcknowledged, Title: "v2", CreatedAt: base, UpdatedAt: base.Add(time.Minute)},
			{ID: "a-1", Type: TypeSecurityAlert, Priority: PriorityHigh, Status: StatusResolved, Title: "v3", CreatedAt: base, UpdatedAt: base.Add(2 * time.Minute)},
		}

		orders := [][]int{{0, 1, 2}, {2, 1, 0}, {1, 2, 0}, {2, 0, 1}}
		for _, order := range orders {
			store := NewStore(zap.NewNop())
			for _, i := range order {
				store.ApplyIncoming(versions[i])
			}
			held, ok := store.Get("a-1")
			require.True(t, ok)
			assert.Equal(t, "v3", held.Title, "order %v should keep the latest version", order)
		}
	})
}

func TestStore_ApplySnapshot(t *testing.T) {
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	store := NewStore(zap.NewNop())

	held := testAlert("a-1", PriorityHigh, StatusAcknowledged, base)
	held.UpdatedAt = base.Add(10 * time.Minute)
	require.Equal(t, OutcomeInserted, store.ApplyIncoming(held))

	stale := testAlert("a-1", PriorityHigh, StatusActive, base)
	fresh := testAlert("a-2", PriorityLow, StatusActive, base.Add(time.Minute))
	inserted := store.ApplySnapshot([]Alert{stale, fresh})

	require.Len(t, inserted, 1, "only genuinely new alerts reported")
	assert.Equal(t, "a-2", inserted[0].ID)

	kept, _ := store.Get("a-1")
	assert.Equal(t, StatusAcknowledged, kept.Status, "stale snapshot entry discarded")
}

func TestStore_Summary(t *testing.T) {
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	store := NewStore(zap.NewNop())

	store.ApplyIncoming(testAlert("a-1", PriorityCritical, StatusActive, base))
	store.ApplyIncoming(testAlert("a-2", PriorityCritical, StatusAcknowledged, base.Add(time.Minute)))
	store.ApplyIncoming(testAlert("a-3", PriorityHigh, StatusActive, base.Add(2*time.Minute)))
	store.ApplyIncoming(testAlert("a-4", PriorityMedium, StatusInProgress, base.Add(3*time.Minute)))
	store.ApplyIncoming(testAlert("a-5", PriorityLow, StatusActive, base.Add(4*time.Minute)))
	store.ApplyIncoming(testAlert("a-6", PriorityHigh, StatusResolved, base.Add(5*time.Minute)))

	summary := store.Summary()
	assert.Equal(t, 5, summary.TotalActive)
	assert.Equal(t, 2, summary.CriticalCount)
	assert.Equal(t, 1, summary.UrgentCount)
	assert.Equal(t, 0, summary.EscalatedCount)
	assert.Equal(t, 3, summary.ByStatus[StatusActive])
	assert.Equal(t, 1, summary.ByStatus[StatusResolved])
}

func TestStore_EscalatedCount(t *testing.T) {
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	store := NewStore(zap.NewNop())

	escalated := testAlert("a-1", PriorityCritical, StatusActive, base)
	escalated.Escalated = true
	store.ApplyIncoming(escalated)
	store.ApplyIncoming(testAlert("a-2", PriorityLow, StatusActive, base))

	assert.Equal(t, 1, store.Summary().EscalatedCount)
}

func TestStore_Recent(t *testing.T) {
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	store := NewStore(zap.NewNop())

	for i, id := range []string{"a-1", "a-2", "a-3", "a-4"} {
		store.ApplyIncoming(testAlert(id, PriorityMedium, StatusActive, base.Add(time.Duration(i)*time.Minute)))
	}
	store.ApplyIncoming(testAlert("a-5", PriorityMedium, StatusResolved, base.Add(10*time.Minute)))

	t.Run("Newest First Up To Limit", func(t *testing.T) {
		var ids []string
		for alert := range store.Recent(3) {
			ids = append(ids, alert.ID)
		}
		assert.Equal(t, []string{"a-4", "a-3", "a-2"}, ids)
	})

	t.Run("Excludes Closed Alerts", func(t *testing.T) {
		for alert := range store.Recent(10) {
			assert.True(t, alert.Open())
		}
	})

	t.Run("Restartable", func(t *testing.T) {
		seq := store.Recent(2)
		first := collectIDs(seq)
		second := collectIDs(seq)
		assert.Equal(t, first, second)
	})

	t.Run("Early Break", func(t *testing.T) {
		count := 0
		for range store.Recent(10) {
			count++
			if count == 1 {
				break
			}
		}
		assert.Equal(t, 1, count)
	})

	t.Run("History Holds Closed Alerts", func(t *testing.T) {
		ids := collectIDs(store.History(10))
		assert.Equal(t, []string{"a-5"}, ids)
	})
}

func collectIDs(seq func(func(Alert) bool)) []string {
	var ids []string
	for alert := range seq {
		ids = append(ids, alert.ID)
	}
	return ids
}
