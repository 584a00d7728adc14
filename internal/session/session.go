package session

import "time"

// Flag is an enumerated security observation attached to a login session by
// the server-side risk pipeline.
type Flag string

const (
	FlagSuspiciousIP     Flag = "suspicious_ip"
	FlagVPNDetected      Flag = "vpn_detected"
	FlagUnusualHours     Flag = "unusual_hours"
	FlagMultipleDevices  Flag = "multiple_devices"
	FlagImpossibleTravel Flag = "impossible_travel"
	FlagBruteForce       Flag = "brute_force"
)

// Record is a snapshot of a login session. The risk score is computed
// server-side and is display-only here; the console never derives it.
type Record struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	UserName       string    `json:"user_name"`
	PropertyID     string    `json:"property_id,omitempty"`
	DeviceInfo     string    `json:"device_info"`
	IPAddress      string    `json:"ip_address"`
	Location       string    `json:"location,omitempty"`
	RiskScore      int       `json:"risk_score"`
	Flags          []Flag    `json:"flags,omitempty"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// Tier buckets a risk score for display
type Tier string

const (
	TierLow      Tier = "low"
	TierMedium   Tier = "medium"
	TierHigh     Tier = "high"
	TierCritical Tier = "critical"
)

// RiskTier maps a 0-100 risk score onto its display band.
func RiskTier(score int) Tier {
	switch {
	case score >= 75:
		return TierCritical
	case score >= 50:
		return TierHigh
	case score >= 25:
		return TierMedium
	default:
		return TierLow
	}
}

// Tier returns the record's risk display band.
func (r Record) Tier() Tier {
	return RiskTier(r.RiskScore)
}

// Flagged reports whether the session carries the given security flag.
func (r Record) Flagged(flag Flag) bool {
	for _, f := range r.Flags {
		if f == flag {
			return true
		}
	}
	return false
}
