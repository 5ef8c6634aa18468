package models

import (
	"time"
)

// AnalyticsSnapshot is a per-day rollup of session activity
type AnalyticsSnapshot struct {
	ID   int64     `json:"id" db:"id"`
	Date time.Time `json:"date" db:"date"`

	TotalSessions int64 `json:"totalSessions" db:"total_sessions"`
	// TotalDataUsedMB is the sum over all sessions that day
	TotalDataUsedMB int64  `json:"totalDataUsedMb" db:"total_data_used_mb"`
	TotalRevenue    string `json:"totalRevenue" db:"total_revenue"`

	// AvgSessionMinutes is the mean completed-session duration
	AvgSessionMinutes int64 `json:"avgSessionMinutes" db:"avg_session_minutes"`
	PeakUsers         int64 `json:"peakUsers" db:"peak_users"`
	UniqueDevices     int64 `json:"uniqueDevices" db:"unique_devices"`
}
