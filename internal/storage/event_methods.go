package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hotspot-server/hotspot-server-pro/internal/models"
)

// ========== Event Log Methods ==========

// CreateEventLog creates an event log entry
func (s *PostgresStore) CreateEventLog(ctx context.Context, event *models.EventLog) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.CreatedAt = time.Now()

	if event.Level == "" {
		event.Level = models.EventLevelInfo
	}

	query := `
        INSERT INTO event_logs (
            id, created_at, voucher_id, session_id, mac_address,
            type, level, description, details
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.getDB().ExecContext(ctx, query,
		event.ID, event.CreatedAt, event.VoucherID, event.SessionID,
		event.MACAddress, event.Type, event.Level, event.Description,
		event.Details,
	)
	return err
}

// ListEventLogs lists event log entries, newest first
func (s *PostgresStore) ListEventLogs(ctx context.Context, limit, offset int) ([]*models.EventLog, int64, error) {
	var total int64
	if err := s.getDB().QueryRowContext(ctx, `SELECT COUNT(*) FROM event_logs`).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
        SELECT id, created_at, voucher_id, session_id, mac_address,
               type, level, description, details
        FROM event_logs
        ORDER BY created_at DESC
        LIMIT $1 OFFSET $2`

	rows, err := s.getDB().QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var events []*models.EventLog
	for rows.Next() {
		event := &models.EventLog{}
		if err := rows.Scan(
			&event.ID, &event.CreatedAt, &event.VoucherID, &event.SessionID,
			&event.MACAddress, &event.Type, &event.Level,
			&event.Description, &event.Details,
		); err != nil {
			return nil, 0, err
		}
		events = append(events, event)
	}

	return events, total, rows.Err()
}
