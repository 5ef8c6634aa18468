package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/hotspot-server/hotspot-server-pro/internal/models"
)

// ========== Session Methods ==========

// CreateSession creates a session row for a successful redemption
func (s *PostgresStore) CreateSession(ctx context.Context, session *models.Session) error {
	now := time.Now()
	if session.StartTime.IsZero() {
		session.StartTime = now
	}
	session.LastActivity = now
	session.IsActive = true

	query := `
        INSERT INTO sessions (
            voucher_id, ip_address, mac_address, device_type, user_agent,
            start_time, data_used_mb, is_active, last_activity
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7, $8, $9
        ) RETURNING id`

	return s.getDB().QueryRowContext(ctx, query,
		session.VoucherID, session.IPAddress, session.MACAddress,
		session.DeviceType, session.UserAgent, session.StartTime,
		session.DataUsedMB, session.IsActive, session.LastActivity,
	).Scan(&session.ID)
}

// GetSession gets a session by ID
func (s *PostgresStore) GetSession(ctx context.Context, id int64) (*models.Session, error) {
	query := `
        SELECT id, voucher_id, ip_address, mac_address, device_type,
               user_agent, start_time, end_time, data_used_mb, is_active,
               last_activity
        FROM sessions
        WHERE id = $1`

	session := &models.Session{}
	err := s.getDB().QueryRowContext(ctx, query, id).Scan(
		&session.ID, &session.VoucherID, &session.IPAddress,
		&session.MACAddress, &session.DeviceType, &session.UserAgent,
		&session.StartTime, &session.EndTime, &session.DataUsedMB,
		&session.IsActive, &session.LastActivity,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return session, nil
}

// EndSession marks a session ended. Returns false if the session was not
// active, which callers treat as a no-op.
func (s *PostgresStore) EndSession(ctx context.Context, id int64) (bool, error) {
	query := `
        UPDATE sessions
        SET is_active = false, end_time = $2
        WHERE id = $1 AND is_active = true`

	result, err := s.getDB().ExecContext(ctx, query, id, time.Now())
	if err != nil {
		return false, err
	}

	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// UpdateSessionActivity updates a session's consumption counters
func (s *PostgresStore) UpdateSessionActivity(ctx context.Context, id int64, dataUsedMB int64) (bool, error) {
	query := `
        UPDATE sessions
        SET data_used_mb = $2, last_activity = $3
        WHERE id = $1 AND is_active = true`

	result, err := s.getDB().ExecContext(ctx, query, id, dataUsedMB, time.Now())
	if err != nil {
		return false, err
	}

	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// ListActiveSessions lists all currently active sessions
func (s *PostgresStore) ListActiveSessions(ctx context.Context) ([]*models.Session, error) {
	query := `
        SELECT id, voucher_id, ip_address, mac_address, device_type,
               user_agent, start_time, end_time, data_used_mb, is_active,
               last_activity
        FROM sessions
        WHERE is_active = true
        ORDER BY start_time DESC`

	rows, err := s.getDB().QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		session := &models.Session{}
		if err := rows.Scan(
			&session.ID, &session.VoucherID, &session.IPAddress,
			&session.MACAddress, &session.DeviceType, &session.UserAgent,
			&session.StartTime, &session.EndTime, &session.DataUsedMB,
			&session.IsActive, &session.LastActivity,
		); err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}

	return sessions, rows.Err()
}

// CountActiveSessionsForVoucher counts live sessions under a voucher,
// used to enforce the plan's device cap at authorization time
func (s *PostgresStore) CountActiveSessionsForVoucher(ctx context.Context, voucherID int64) (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM sessions WHERE voucher_id = $1 AND is_active = true`
	err := s.getDB().QueryRowContext(ctx, query, voucherID).Scan(&count)
	return count, err
}

// GetSessionStats returns dashboard session statistics
func (s *PostgresStore) GetSessionStats(ctx context.Context) (*SessionStats, error) {
	stats := &SessionStats{}

	today := time.Now().Truncate(24 * time.Hour)

	query := `SELECT COUNT(*) FROM sessions WHERE is_active = true`
	if err := s.getDB().QueryRowContext(ctx, query).Scan(&stats.Connected); err != nil {
		return nil, err
	}

	query = `SELECT COUNT(*) FROM sessions WHERE start_time >= $1`
	if err := s.getDB().QueryRowContext(ctx, query, today).Scan(&stats.PeakToday); err != nil {
		return nil, err
	}

	query = `
        SELECT COALESCE(AVG(EXTRACT(EPOCH FROM (end_time - start_time)) / 60), 0)
        FROM sessions
        WHERE end_time IS NOT NULL AND start_time >= $1`
	var avg float64
	if err := s.getDB().QueryRowContext(ctx, query, today).Scan(&avg); err != nil {
		return nil, err
	}
	stats.AvgDurationMins = int64(avg)

	query = `SELECT COALESCE(SUM(data_used_mb), 0) FROM sessions WHERE start_time >= $1`
	if err := s.getDB().QueryRowContext(ctx, query, today).Scan(&stats.TotalDataTodayMB); err != nil {
		return nil, err
	}

	return stats, nil
}
