package storage

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/hotspot-server/hotspot-server-pro/internal/models"
)

// ========== Voucher Methods ==========

// CreateVouchers inserts a batch of vouchers
func (s *PostgresStore) CreateVouchers(ctx context.Context, vouchers []*models.Voucher) error {
	now := time.Now()

	query := `
        INSERT INTO vouchers (
            created_at, code, plan_id, status, created_by, valid_until
        ) VALUES (
            $1, $2, $3, $4, $5, $6
        ) RETURNING id`

	for _, v := range vouchers {
		v.CreatedAt = now
		if v.Status == "" {
			v.Status = models.VoucherStatusActive
		}

		err := s.getDB().QueryRowContext(ctx, query,
			v.CreatedAt, v.Code, v.PlanID, v.Status, v.CreatedBy, v.ValidUntil,
		).Scan(&v.ID)
		if err != nil {
			if strings.Contains(err.Error(), "duplicate key") {
				return ErrDuplicateKey
			}
			return err
		}
	}

	return nil
}

// GetVoucher gets a voucher by ID
func (s *PostgresStore) GetVoucher(ctx context.Context, id int64) (*models.Voucher, error) {
	return s.getVoucherBy(ctx, "id = $1", id)
}

// GetVoucherByCode gets a voucher by its code. Callers are expected to
// normalize the code first.
func (s *PostgresStore) GetVoucherByCode(ctx context.Context, code string) (*models.Voucher, error) {
	return s.getVoucherBy(ctx, "code = $1", code)
}

func (s *PostgresStore) getVoucherBy(ctx context.Context, where string, arg interface{}) (*models.Voucher, error) {
	query := `
        SELECT id, created_at, code, plan_id, status, created_by,
               valid_until, used_at, used_by
        FROM vouchers
        WHERE ` + where

	v := &models.Voucher{}
	err := s.getDB().QueryRowContext(ctx, query, arg).Scan(
		&v.ID, &v.CreatedAt, &v.Code, &v.PlanID, &v.Status,
		&v.CreatedBy, &v.ValidUntil, &v.UsedAt, &v.UsedBy,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return v, nil
}

// UpdateVoucherStatus transitions a voucher's status. When the new status
// is used, the used_at/used_by columns are stamped in the same statement.
func (s *PostgresStore) UpdateVoucherStatus(ctx context.Context, id int64, status models.VoucherStatus, usedBy *string) error {
	var result sql.Result
	var err error

	if status == models.VoucherStatusUsed {
		query := `UPDATE vouchers SET status = $2, used_at = $3, used_by = $4 WHERE id = $1`
		result, err = s.getDB().ExecContext(ctx, query, id, status, time.Now(), usedBy)
	} else {
		query := `UPDATE vouchers SET status = $2 WHERE id = $1`
		result, err = s.getDB().ExecContext(ctx, query, id, status)
	}
	if err != nil {
		return err
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// ListVouchers lists vouchers with optional filters
func (s *PostgresStore) ListVouchers(ctx context.Context, filters VoucherFilters, limit, offset int) ([]*models.Voucher, int64, error) {
	where := "1=1"
	args := []interface{}{}
	argIdx := 1

	if filters.PlanID != nil {
		where += " AND plan_id = $" + strconv.Itoa(argIdx)
		args = append(args, *filters.PlanID)
		argIdx++
	}
	if filters.Status != nil {
		where += " AND status = $" + strconv.Itoa(argIdx)
		args = append(args, *filters.Status)
		argIdx++
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM vouchers WHERE ` + where
	if err := s.getDB().QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
        SELECT id, created_at, code, plan_id, status, created_by,
               valid_until, used_at, used_by
        FROM vouchers
        WHERE ` + where + `
        ORDER BY created_at DESC
        LIMIT $` + strconv.Itoa(argIdx) + ` OFFSET $` + strconv.Itoa(argIdx+1)
	args = append(args, limit, offset)

	rows, err := s.getDB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var vouchers []*models.Voucher
	for rows.Next() {
		v := &models.Voucher{}
		if err := rows.Scan(
			&v.ID, &v.CreatedAt, &v.Code, &v.PlanID, &v.Status,
			&v.CreatedBy, &v.ValidUntil, &v.UsedAt, &v.UsedBy,
		); err != nil {
			return nil, 0, err
		}
		vouchers = append(vouchers, v)
	}

	return vouchers, total, rows.Err()
}

// GetVoucherStats returns voucher counts grouped by status
func (s *PostgresStore) GetVoucherStats(ctx context.Context) (*VoucherStats, error) {
	query := `SELECT status, COUNT(*) FROM vouchers GROUP BY status`

	rows, err := s.getDB().QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := &VoucherStats{}
	for rows.Next() {
		var status models.VoucherStatus
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}

		stats.Total += count
		switch status {
		case models.VoucherStatusActive:
			stats.Active = count
		case models.VoucherStatusUsed:
			stats.Used = count
		case models.VoucherStatusExpired:
			stats.Expired = count
		case models.VoucherStatusDisabled:
			stats.Disabled = count
		}
	}

	return stats, rows.Err()
}

// ExpireOverdueVouchers marks vouchers whose valid_until has passed as
// expired. Used vouchers are swept too; the transition is terminal either
// way.
func (s *PostgresStore) ExpireOverdueVouchers(ctx context.Context, now time.Time) (int64, error) {
	query := `
        UPDATE vouchers
        SET status = $1
        WHERE valid_until IS NOT NULL
          AND valid_until < $2
          AND status IN ($3, $4)`

	result, err := s.getDB().ExecContext(ctx, query,
		models.VoucherStatusExpired, now,
		models.VoucherStatusActive, models.VoucherStatusUsed,
	)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}
