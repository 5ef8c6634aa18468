package models

import (
	"time"
)

// VoucherStatus represents the lifecycle state of a voucher
type VoucherStatus string

const (
	VoucherStatusActive   VoucherStatus = "active"
	VoucherStatusUsed     VoucherStatus = "used"
	VoucherStatusExpired  VoucherStatus = "expired"
	VoucherStatusDisabled VoucherStatus = "disabled"
)

// Valid reports whether s is a known voucher status
func (s VoucherStatus) Valid() bool {
	switch s {
	case VoucherStatusActive, VoucherStatusUsed, VoucherStatusExpired, VoucherStatusDisabled:
		return true
	}
	return false
}

// Voucher represents a redeemable access code tied to a plan.
// Status transitions are monotonic: active -> used/expired/disabled.
// A used voucher may later be swept to expired but never re-activated.
type Voucher struct {
	ID        int64     `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	Code   string        `json:"code" db:"code"`
	PlanID int64         `json:"planId" db:"plan_id"`
	Status VoucherStatus `json:"status" db:"status"`

	CreatedBy *string `json:"createdBy,omitempty" db:"created_by"`

	ValidUntil *time.Time `json:"validUntil,omitempty" db:"valid_until"`

	UsedAt *time.Time `json:"usedAt,omitempty" db:"used_at"`
	// UsedBy is the MAC address of the redeeming device
	UsedBy *string `json:"usedBy,omitempty" db:"used_by"`
}

// Expired reports whether the voucher's validity deadline has passed
func (v *Voucher) Expired(now time.Time) bool {
	return v.ValidUntil != nil && now.After(*v.ValidUntil)
}
