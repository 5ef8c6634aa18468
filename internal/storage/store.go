package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/hotspot-server/hotspot-server-pro/internal/models"
)

// Common errors
var (
	ErrNotFound     = errors.New("not found")
	ErrDuplicateKey = errors.New("duplicate key")
	ErrInvalidData  = errors.New("invalid data")
)

// VoucherStats summarizes vouchers by status
type VoucherStats struct {
	Total    int64 `json:"total"`
	Active   int64 `json:"active"`
	Used     int64 `json:"used"`
	Expired  int64 `json:"expired"`
	Disabled int64 `json:"disabled"`
}

// SessionStats summarizes session activity for the dashboard
type SessionStats struct {
	Connected        int64 `json:"connected"`
	PeakToday        int64 `json:"peakToday"`
	AvgDurationMins  int64 `json:"avgDurationMins"`
	TotalDataTodayMB int64 `json:"totalDataTodayMb"`
}

// VoucherFilters narrows voucher listings
type VoucherFilters struct {
	PlanID *int64
	Status *models.VoucherStatus
}

// Store defines the storage interface
type Store interface {
	// Transaction support
	BeginTx(ctx context.Context) (Store, error)
	Commit() error
	Rollback() error

	// User methods
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	ListUsers(ctx context.Context, limit, offset int) ([]*models.User, int64, error)

	// Plan methods
	CreatePlan(ctx context.Context, plan *models.Plan) error
	GetPlan(ctx context.Context, id int64) (*models.Plan, error)
	UpdatePlan(ctx context.Context, plan *models.Plan) error
	DeactivatePlan(ctx context.Context, id int64) error
	ListPlans(ctx context.Context, activeOnly bool) ([]*models.Plan, error)

	// Voucher methods
	CreateVouchers(ctx context.Context, vouchers []*models.Voucher) error
	GetVoucher(ctx context.Context, id int64) (*models.Voucher, error)
	GetVoucherByCode(ctx context.Context, code string) (*models.Voucher, error)
	UpdateVoucherStatus(ctx context.Context, id int64, status models.VoucherStatus, usedBy *string) error
	ListVouchers(ctx context.Context, filters VoucherFilters, limit, offset int) ([]*models.Voucher, int64, error)
	GetVoucherStats(ctx context.Context) (*VoucherStats, error)
	ExpireOverdueVouchers(ctx context.Context, now time.Time) (int64, error)

	// Session methods
	CreateSession(ctx context.Context, session *models.Session) error
	GetSession(ctx context.Context, id int64) (*models.Session, error)
	EndSession(ctx context.Context, id int64) (bool, error)
	UpdateSessionActivity(ctx context.Context, id int64, dataUsedMB int64) (bool, error)
	ListActiveSessions(ctx context.Context) ([]*models.Session, error)
	CountActiveSessionsForVoucher(ctx context.Context, voucherID int64) (int64, error)
	GetSessionStats(ctx context.Context) (*SessionStats, error)

	// System settings
	ListSystemSettings(ctx context.Context) ([]*models.SystemSetting, error)
	UpdateSystemSetting(ctx context.Context, key, value string) (*models.SystemSetting, error)

	// Portal settings
	GetPortalSettings(ctx context.Context) (*models.PortalSetting, error)
	UpdatePortalSettings(ctx context.Context, settings *models.PortalSetting) (*models.PortalSetting, error)

	// Analytics
	ListAnalytics(ctx context.Context, start, end time.Time) ([]*models.AnalyticsSnapshot, error)
	CreateAnalyticsSnapshot(ctx context.Context, snapshot *models.AnalyticsSnapshot) error

	// Event log methods
	CreateEventLog(ctx context.Context, event *models.EventLog) error
	ListEventLogs(ctx context.Context, limit, offset int) ([]*models.EventLog, int64, error)

	// Close the store
	Close() error
}
