package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/hotspot-server/hotspot-server-pro/internal/models"
)

// ========== Plan Methods ==========

// CreatePlan creates a new service plan
func (s *PostgresStore) CreatePlan(ctx context.Context, plan *models.Plan) error {
	now := time.Now()
	plan.CreatedAt = now
	plan.UpdatedAt = now

	if plan.MaxDevices == 0 {
		plan.MaxDevices = 1
	}

	query := `
        INSERT INTO plans (
            created_at, updated_at, name, description, duration_minutes,
            data_limit_mb, speed_limit_down_mbps, speed_limit_up_mbps,
            max_devices, price, is_active
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
        ) RETURNING id`

	err := s.getDB().QueryRowContext(ctx, query,
		plan.CreatedAt, plan.UpdatedAt, plan.Name, plan.Description,
		plan.DurationMinutes, plan.DataLimitMB, plan.SpeedLimitDownMbps,
		plan.SpeedLimitUpMbps, plan.MaxDevices, plan.Price, plan.IsActive,
	).Scan(&plan.ID)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrDuplicateKey
		}
		return err
	}

	return nil
}

// GetPlan gets a plan by ID
func (s *PostgresStore) GetPlan(ctx context.Context, id int64) (*models.Plan, error) {
	query := `
        SELECT id, created_at, updated_at, name, description, duration_minutes,
               data_limit_mb, speed_limit_down_mbps, speed_limit_up_mbps,
               max_devices, price, is_active
        FROM plans
        WHERE id = $1`

	plan := &models.Plan{}
	err := s.getDB().QueryRowContext(ctx, query, id).Scan(
		&plan.ID, &plan.CreatedAt, &plan.UpdatedAt, &plan.Name,
		&plan.Description, &plan.DurationMinutes, &plan.DataLimitMB,
		&plan.SpeedLimitDownMbps, &plan.SpeedLimitUpMbps,
		&plan.MaxDevices, &plan.Price, &plan.IsActive,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return plan, nil
}

// UpdatePlan updates a plan
func (s *PostgresStore) UpdatePlan(ctx context.Context, plan *models.Plan) error {
	plan.UpdatedAt = time.Now()

	query := `
        UPDATE plans
        SET updated_at = $2, name = $3, description = $4, duration_minutes = $5,
            data_limit_mb = $6, speed_limit_down_mbps = $7,
            speed_limit_up_mbps = $8, max_devices = $9, price = $10,
            is_active = $11
        WHERE id = $1`

	result, err := s.getDB().ExecContext(ctx, query,
		plan.ID, plan.UpdatedAt, plan.Name, plan.Description,
		plan.DurationMinutes, plan.DataLimitMB, plan.SpeedLimitDownMbps,
		plan.SpeedLimitUpMbps, plan.MaxDevices, plan.Price, plan.IsActive,
	)
	if err != nil {
		return err
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// DeactivatePlan marks a plan inactive. Plans referenced by vouchers are
// never deleted.
func (s *PostgresStore) DeactivatePlan(ctx context.Context, id int64) error {
	query := `UPDATE plans SET is_active = false, updated_at = $2 WHERE id = $1`

	result, err := s.getDB().ExecContext(ctx, query, id, time.Now())
	if err != nil {
		return err
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// ListPlans lists plans, optionally only active ones
func (s *PostgresStore) ListPlans(ctx context.Context, activeOnly bool) ([]*models.Plan, error) {
	query := `
        SELECT id, created_at, updated_at, name, description, duration_minutes,
               data_limit_mb, speed_limit_down_mbps, speed_limit_up_mbps,
               max_devices, price, is_active
        FROM plans`
	if activeOnly {
		query += ` WHERE is_active = true`
	}
	query += ` ORDER BY price, id`

	rows, err := s.getDB().QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []*models.Plan
	for rows.Next() {
		plan := &models.Plan{}
		if err := rows.Scan(
			&plan.ID, &plan.CreatedAt, &plan.UpdatedAt, &plan.Name,
			&plan.Description, &plan.DurationMinutes, &plan.DataLimitMB,
			&plan.SpeedLimitDownMbps, &plan.SpeedLimitUpMbps,
			&plan.MaxDevices, &plan.Price, &plan.IsActive,
		); err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}

	return plans, rows.Err()
}
