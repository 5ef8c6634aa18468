package events

import (
	"time"

	"github.com/hotspot-server/hotspot-server-pro/internal/models"
)

// Type identifies an event kind on the wire
type Type string

const (
	TypeVouchersCreated    Type = "vouchers_created"
	TypeSessionStarted     Type = "session_started"
	TypeSessionEnded       Type = "session_ended"
	TypeDeviceAuthorized   Type = "device_authorized"
	TypeDeviceDeauthorized Type = "device_deauthorized"
)

// Event is a single notification fanned out to observers
type Event struct {
	Type    Type        `json:"type"`
	Time    time.Time   `json:"time"`
	Payload interface{} `json:"payload,omitempty"`
}

// VouchersCreated is emitted after a batch of vouchers is generated
type VouchersCreated struct {
	Count int `json:"count"`
}

// SessionStarted is emitted after a successful redemption
type SessionStarted struct {
	Session          *models.Session `json:"session"`
	Voucher          *models.Voucher `json:"voucher"`
	NetworkSessionID string          `json:"networkSessionId"`
}

// SessionEnded is emitted when a session is disconnected or enforced
type SessionEnded struct {
	SessionID int64  `json:"sessionId"`
	Reason    string `json:"reason,omitempty"`
}

// DeviceAuthorized is emitted when network policy is applied for a device
type DeviceAuthorized struct {
	MACAddress       string `json:"macAddress"`
	IPAddress        string `json:"ipAddress"`
	VoucherID        int64  `json:"voucherId"`
	NetworkSessionID string `json:"networkSessionId"`
}

// DeviceDeauthorized is emitted when network policy is removed
type DeviceDeauthorized struct {
	MACAddress string `json:"macAddress"`
	VoucherID  int64  `json:"voucherId"`
	Reason     string `json:"reason,omitempty"`
}

// New builds an event stamped with the current time
func New(t Type, payload interface{}) Event {
	return Event{Type: t, Time: time.Now(), Payload: payload}
}
