package models

import (
	"time"
)

// Session represents one device's network access under a redeemed voucher.
// Created exactly once per successful redemption; ended by explicit
// disconnect or by the usage monitor when a plan limit is exceeded.
type Session struct {
	ID        int64 `json:"id" db:"id"`
	VoucherID int64 `json:"voucherId" db:"voucher_id"`

	IPAddress  string `json:"ipAddress" db:"ip_address"`
	MACAddress string `json:"macAddress" db:"mac_address"`

	// DeviceType is a coarse classification: mobile, laptop, tablet, desktop
	DeviceType string `json:"deviceType" db:"device_type"`
	UserAgent  string `json:"userAgent" db:"user_agent"`

	StartTime time.Time  `json:"startTime" db:"start_time"`
	EndTime   *time.Time `json:"endTime,omitempty" db:"end_time"`

	// DataUsedMB is cumulative consumption as last reported by the backend
	DataUsedMB int64 `json:"dataUsedMb" db:"data_used_mb"`

	IsActive     bool      `json:"isActive" db:"is_active"`
	LastActivity time.Time `json:"lastActivity" db:"last_activity"`
}

// Elapsed returns how long the session has been running
func (s *Session) Elapsed(now time.Time) time.Duration {
	return now.Sub(s.StartTime)
}
