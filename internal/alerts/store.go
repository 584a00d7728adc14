package alerts

import (
	"iter"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// MergeOutcome describes what ApplyIncoming did with an alert
type MergeOutcome int

const (
	// OutcomeDiscarded means the incoming alert was stale (timestamp older
	// than or equal to the entry already held) and was dropped.
	OutcomeDiscarded MergeOutcome = iota
	// OutcomeInserted means the identifier was not in the store before.
	OutcomeInserted
	// OutcomeReplaced means an existing entry was overwritten by a newer one.
	OutcomeReplaced
)

// Summary holds alert counts partitioned by priority tier and by status
type Summary struct {
	TotalActive    int            `json:"totalActive"`
	CriticalCount  int            `json:"criticalCount"`
	UrgentCount    int            `json:"urgentCount"`
	EscalatedCount int            `json:"escalatedCount"`
	ByStatus       map[Status]int `json:"byStatus"`
}

// Store holds the current set of alerts known to the console. It is the only
// client-side alert state; every mutation flows through the timestamp-based
// merge so the store never disagrees with the most recent server word it has
// seen, regardless of the order poll responses and push events land in.
type Store struct {
	mu     sync.RWMutex
	byID   map[string]Alert
	logger *zap.Logger
}

// NewStore creates an empty alert store
func NewStore(logger *zap.Logger) *Store {
	return &Store{
		byID:   make(map[string]Alert),
		logger: logger,
	}
}

// ApplyIncoming merges a single alert by identifier with insert-or-replace
// semantics. An incoming alert whose timestamp is older than or equal to the
// held entry loses: last write wins by timestamp, not by arrival order.
func (s *Store) ApplyIncoming(alert Alert) MergeOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.byID[alert.ID]
	if !ok {
		s.byID[alert.ID] = alert
		return OutcomeInserted
	}

	if !alert.LastModified().After(existing.LastModified()) {
		s.logger.Debug("Discarded stale alert update",
			zap.String("alert_id", alert.ID),
			zap.Time("incoming", alert.LastModified()),
			zap.Time("held", existing.LastModified()))
		return OutcomeDiscarded
	}

	s.byID[alert.ID] = alert
	return OutcomeReplaced
}

// ApplySnapshot merges a polled page of alerts through the same per-alert
// rule as ApplyIncoming and returns the alerts that were genuinely new.
func (s *Store) ApplySnapshot(page []Alert) []Alert {
	var inserted []Alert
	for _, alert := range page {
		if s.ApplyIncoming(alert) == OutcomeInserted {
			inserted = append(inserted, alert)
		}
	}
	return inserted
}

// Get returns the alert held under the given identifier.
func (s *Store) Get(id string) (Alert, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	alert, ok := s.byID[id]
	return alert, ok
}

// Len returns the total number of alerts held, including history.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// Summary returns counts over the open alerts, partitioned by priority tier
// and by status. Resolved and dismissed alerts are excluded from the tier
// counts but still reported under ByStatus.
func (s *Store) Summary() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := Summary{ByStatus: make(map[Status]int)}
	for _, alert := range s.byID {
		summary.ByStatus[alert.Status]++
		if !alert.Open() {
			continue
		}
		summary.TotalActive++
		switch alert.Priority {
		case PriorityCritical:
			summary.CriticalCount++
		case PriorityHigh:
			summary.UrgentCount++
		}
		if alert.Escalated {
			summary.EscalatedCount++
		}
	}
	return summary
}

// Recent returns a lazy, restartable sequence of the most recent open alerts,
// newest first, up to limit. Each range over the sequence observes a fresh
// snapshot of the store.
func (s *Store) Recent(limit int) iter.Seq[Alert] {
	return s.sequence(limit, Alert.Open)
}

// History returns resolved and dismissed alerts, newest first, up to limit.
func (s *Store) History(limit int) iter.Seq[Alert] {
	return s.sequence(limit, func(a Alert) bool { return !a.Open() })
}

func (s *Store) sequence(limit int, keep func(Alert) bool) iter.Seq[Alert] {
	return func(yield func(Alert) bool) {
		for _, alert := range s.snapshot(keep) {
			if limit == 0 {
				return
			}
			if !yield(alert) {
				return
			}
			limit--
		}
	}
}

func (s *Store) snapshot(keep func(Alert) bool) []Alert {
	s.mu.RLock()
	out := make([]Alert, 0, len(s.byID))
	for _, alert := range s.byID {
		if keep(alert) {
			out = append(out, alert)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
