package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeAPI struct {
	records   []Record
	listErr   error
	updateErr error
	endErr    error
	ended     []string
}

func (f *fakeAPI) Sessions(ctx context.Context) ([]Record, error) {
	return f.records, f.listErr
}

func (f *fakeAPI) UpdateRiskScore(ctx context.Context, sessionID string, score int, reason string) (Record, error) {
	if f.updateErr != nil {
		return Record{}, f.updateErr
	}
	return Record{ID: sessionID, RiskScore: score, Active: true}, nil
}

func (f *fakeAPI) EndSession(ctx context.Context, sessionID string) error {
	if f.endErr != nil {
		return f.endErr
	}
	f.ended = append(f.ended, sessionID)
	return nil
}

func TestRiskTier(t *testing.T) {
	cases := map[int]Tier{
		0:   TierLow,
		24:  TierLow,
		25:  TierMedium,
		49:  TierMedium,
		50:  TierHigh,
		74:  TierHigh,
		75:  TierCritical,
		100: TierCritical,
	}
	for score, tier := range cases {
		assert.Equal(t, tier, RiskTier(score), "score %d", score)
	}
}

func TestManager_Refresh(t *testing.T) {
	api := &fakeAPI{records: []Record{
		{ID: "s-1", RiskScore: 10, Active: true},
		{ID: "s-2", RiskScore: 85, Flags: []Flag{FlagSuspiciousIP, FlagVPNDetected}, Active: true},
		{ID: "s-3", RiskScore: 40, Active: true},
	}}
	manager := NewManager(api, zap.NewNop())

	require.NoError(t, manager.Refresh(context.Background()))

	records := manager.Records()
	require.Len(t, records, 3)
	assert.Equal(t, "s-2", records[0].ID, "riskiest session listed first")
	assert.True(t, records[0].Flagged(FlagVPNDetected))
	assert.False(t, records[0].Flagged(FlagBruteForce))

	t.Run("Refresh Failure Leaves Cache Intact", func(t *testing.T) {
		api.listErr = errors.New("backend down")
		assert.Error(t, manager.Refresh(context.Background()))
		assert.Len(t, manager.Records(), 3)
	})
}

func TestManager_UpdateRiskScore(t *testing.T) {
	api := &fakeAPI{}
	manager := NewManager(api, zap.NewNop())

	record, err := manager.UpdateRiskScore(context.Background(), "s-1", 90, "manual review")
	require.NoError(t, err)
	assert.Equal(t, 90, record.RiskScore)
	assert.Equal(t, TierCritical, record.Tier())

	cached, ok := manager.Get("s-1")
	require.True(t, ok)
	assert.Equal(t, 90, cached.RiskScore)

	t.Run("Out Of Range Rejected Locally", func(t *testing.T) {
		_, err := manager.UpdateRiskScore(context.Background(), "s-1", 120, "")
		assert.Error(t, err)
	})

	t.Run("Failure Leaves Cache Unchanged", func(t *testing.T) {
		api.updateErr = errors.New("forbidden")
		_, err := manager.UpdateRiskScore(context.Background(), "s-1", 10, "")
		assert.Error(t, err)

		cached, _ := manager.Get("s-1")
		assert.Equal(t, 90, cached.RiskScore)
	})
}

func TestManager_EndSession(t *testing.T) {
	api := &fakeAPI{records: []Record{{ID: "s-1", Active: true}}}
	manager := NewManager(api, zap.NewNop())
	require.NoError(t, manager.Refresh(context.Background()))

	require.NoError(t, manager.EndSession(context.Background(), "s-1"))
	assert.Equal(t, []string{"s-1"}, api.ended)

	_, ok := manager.Get("s-1")
	assert.False(t, ok, "ended session dropped from cache")

	t.Run("Failure Keeps Record", func(t *testing.T) {
		api.records = []Record{{ID: "s-2", Active: true}}
		require.NoError(t, manager.Refresh(context.Background()))

		api.endErr = errors.New("not found")
		assert.Error(t, manager.EndSession(context.Background(), "s-2"))

		_, ok := manager.Get("s-2")
		assert.True(t, ok)
	})
}

func TestInspectToken(t *testing.T) {
	t.Run("Valid Token", func(t *testing.T) {
		expiry := time.Now().Add(20 * time.Minute)
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": "ops-manager",
			"exp": expiry.Unix(),
			"iat": time.Now().Unix(),
		})
		signed, err := token.SignedString([]byte("test-secret"))
		require.NoError(t, err)

		info, err := InspectToken(signed)
		require.NoError(t, err)
		assert.Equal(t, "ops-manager", info.Subject)
		assert.WithinDuration(t, expiry, info.ExpiresAt, time.Second)
		assert.True(t, info.ExpiringSoon(30*time.Minute))
		assert.False(t, info.ExpiringSoon(5*time.Minute))
	})

	t.Run("Garbage Rejected", func(t *testing.T) {
		_, err := InspectToken("not-a-jwt")
		assert.Error(t, err)
	})

	t.Run("No Expiry Never Expiring", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "svc"})
		signed, err := token.SignedString([]byte("test-secret"))
		require.NoError(t, err)

		info, err := InspectToken(signed)
		require.NoError(t, err)
		assert.False(t, info.ExpiringSoon(time.Hour))
	})
}
