package models

import (
	"time"
)

// Plan represents a service tier vouchers are sold against.
// Duration and data/speed limits are resolved at authorization time;
// a plan referenced by vouchers is deactivated, never deleted.
type Plan struct {
	ID        int64     `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	Name        string `json:"name" db:"name"`
	Description string `json:"description" db:"description"`

	// DurationMinutes is the session time budget
	DurationMinutes int `json:"durationMinutes" db:"duration_minutes"`

	// DataLimitMB caps cumulative usage; nil means unlimited
	DataLimitMB *int64 `json:"dataLimitMb,omitempty" db:"data_limit_mb"`

	SpeedLimitDownMbps int `json:"speedLimitDownMbps" db:"speed_limit_down_mbps"`
	SpeedLimitUpMbps   int `json:"speedLimitUpMbps" db:"speed_limit_up_mbps"`

	MaxDevices int `json:"maxDevices" db:"max_devices"`

	Price string `json:"price" db:"price"`

	IsActive bool `json:"isActive" db:"is_active"`
}

// Duration returns the plan's time budget as a time.Duration
func (p *Plan) Duration() time.Duration {
	return time.Duration(p.DurationMinutes) * time.Minute
}

// Unlimited reports whether the plan has no data cap
func (p *Plan) Unlimited() bool {
	return p.DataLimitMB == nil
}
