package models

import (
	"time"

	"github.com/google/uuid"
)

// EventLog represents an event log entry
type EventLog struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	VoucherID  *int64  `json:"voucherId,omitempty" db:"voucher_id"`
	SessionID  *int64  `json:"sessionId,omitempty" db:"session_id"`
	MACAddress *string `json:"macAddress,omitempty" db:"mac_address"`

	Type        EventType  `json:"type" db:"type"`
	Level       EventLevel `json:"level" db:"level"`
	Description string     `json:"description" db:"description"`

	Details Variables `json:"details,omitempty" db:"details"`
}

// EventType represents event types
type EventType string

const (
	// Voucher events
	EventTypeVouchersCreated EventType = "VOUCHERS_CREATED"
	EventTypeVoucherExpired  EventType = "VOUCHER_EXPIRED"

	// Session events
	EventTypeSessionStarted EventType = "SESSION_STARTED"
	EventTypeSessionEnded   EventType = "SESSION_ENDED"

	// Device authorization events
	EventTypeDeviceAuthorized   EventType = "DEVICE_AUTHORIZED"
	EventTypeDeviceDeauthorized EventType = "DEVICE_DEAUTHORIZED"
	EventTypeLimitEnforced      EventType = "LIMIT_ENFORCED"

	EventTypeError EventType = "ERROR"
)

// EventLevel represents event severity
type EventLevel string

const (
	EventLevelInfo    EventLevel = "INFO"
	EventLevelWarning EventLevel = "WARNING"
	EventLevelError   EventLevel = "ERROR"
)
