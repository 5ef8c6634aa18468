package storage

import (
	"context"
	"time"

	"github.com/hotspot-server/hotspot-server-pro/internal/models"
)

// ========== Analytics ==========

// ListAnalytics returns daily snapshots within the range
func (s *PostgresStore) ListAnalytics(ctx context.Context, start, end time.Time) ([]*models.AnalyticsSnapshot, error) {
	query := `
        SELECT id, date, total_sessions, total_data_used_mb, total_revenue,
               avg_session_minutes, peak_users, unique_devices
        FROM analytics_snapshots
        WHERE date >= $1 AND date <= $2
        ORDER BY date`

	rows, err := s.getDB().QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snapshots []*models.AnalyticsSnapshot
	for rows.Next() {
		snap := &models.AnalyticsSnapshot{}
		if err := rows.Scan(
			&snap.ID, &snap.Date, &snap.TotalSessions, &snap.TotalDataUsedMB,
			&snap.TotalRevenue, &snap.AvgSessionMinutes, &snap.PeakUsers,
			&snap.UniqueDevices,
		); err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snap)
	}

	return snapshots, rows.Err()
}

// CreateAnalyticsSnapshot inserts a daily rollup row
func (s *PostgresStore) CreateAnalyticsSnapshot(ctx context.Context, snapshot *models.AnalyticsSnapshot) error {
	query := `
        INSERT INTO analytics_snapshots (
            date, total_sessions, total_data_used_mb, total_revenue,
            avg_session_minutes, peak_users, unique_devices
        ) VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id`

	return s.getDB().QueryRowContext(ctx, query,
		snapshot.Date, snapshot.TotalSessions, snapshot.TotalDataUsedMB,
		snapshot.TotalRevenue, snapshot.AvgSessionMinutes,
		snapshot.PeakUsers, snapshot.UniqueDevices,
	).Scan(&snapshot.ID)
}
