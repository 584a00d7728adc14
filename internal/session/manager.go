package session

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// API is the slice of the platform REST client the session manager uses.
type API interface {
	Sessions(ctx context.Context) ([]Record, error)
	UpdateRiskScore(ctx context.Context, sessionID string, score int, reason string) (Record, error)
	EndSession(ctx context.Context, sessionID string) error
}

// Manager caches the login-session records shown on the security screen.
// Every mutation is a direct REST call; the cache is only ever refreshed from
// server responses, never adjusted speculatively.
type Manager struct {
	api    API
	logger *zap.Logger

	mu      sync.RWMutex
	records map[string]Record
}

// NewManager creates a session manager over the given API client.
func NewManager(api API, logger *zap.Logger) *Manager {
	return &Manager{
		api:     api,
		logger:  logger,
		records: make(map[string]Record),
	}
}

// Refresh replaces the cached records with the server's current view.
func (m *Manager) Refresh(ctx context.Context) error {
	records, err := m.api.Sessions(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh sessions: %w", err)
	}

	m.mu.Lock()
	m.records = make(map[string]Record, len(records))
	for _, record := range records {
		m.records[record.ID] = record
	}
	m.mu.Unlock()

	m.logger.Debug("Sessions refreshed", zap.Int("count", len(records)))
	return nil
}

// Records returns the cached sessions, riskiest first.
func (m *Manager) Records() []Record {
	m.mu.RLock()
	out := make([]Record, 0, len(m.records))
	for _, record := range m.records {
		out = append(out, record)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].RiskScore == out[j].RiskScore {
			return out[i].LastActivityAt.After(out[j].LastActivityAt)
		}
		return out[i].RiskScore > out[j].RiskScore
	})
	return out
}

// Get returns a cached record by session identifier.
func (m *Manager) Get(sessionID string) (Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.records[sessionID]
	return record, ok
}

// UpdateRiskScore sets a session's risk score server-side and folds the
// returned record back into the cache. On failure the cache is untouched.
func (m *Manager) UpdateRiskScore(ctx context.Context, sessionID string, score int, reason string) (Record, error) {
	if score < 0 || score > 100 {
		return Record{}, fmt.Errorf("risk score %d out of range 0-100", score)
	}

	record, err := m.api.UpdateRiskScore(ctx, sessionID, score, reason)
	if err != nil {
		return Record{}, err
	}

	m.mu.Lock()
	m.records[record.ID] = record
	m.mu.Unlock()

	m.logger.Info("Session risk score updated",
		zap.String("session_id", sessionID),
		zap.Int("risk_score", score))
	return record, nil
}

// EndSession terminates a session server-side and drops it from the cache.
func (m *Manager) EndSession(ctx context.Context, sessionID string) error {
	if err := m.api.EndSession(ctx, sessionID); err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.records, sessionID)
	m.mu.Unlock()

	m.logger.Info("Session ended", zap.String("session_id", sessionID))
	return nil
}
