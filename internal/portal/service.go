package portal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hotspot-server/hotspot-server-pro/internal/events"
	"github.com/hotspot-server/hotspot-server-pro/internal/models"
	"github.com/hotspot-server/hotspot-server-pro/internal/network"
	"github.com/hotspot-server/hotspot-server-pro/internal/storage"
	"github.com/hotspot-server/hotspot-server-pro/pkg/crypto"
)

// Redemption errors surfaced to the captive portal
var (
	ErrVoucherNotFound    = errors.New("voucher not found")
	ErrVoucherAlreadyUsed = errors.New("voucher already used")
	ErrVoucherExpired     = errors.New("voucher expired")
	ErrVoucherDisabled    = errors.New("voucher disabled")
	ErrPlanInactive       = errors.New("plan no longer available")
)

// RedeemRequest carries the portal form input plus the client identity
type RedeemRequest struct {
	Code       string
	MACAddress string
	IPAddress  string
	UserAgent  string
}

// RedeemResult is returned on successful redemption
type RedeemResult struct {
	Session *models.Session `json:"session"`
	Voucher *models.Voucher `json:"voucher"`
	Plan    *models.Plan    `json:"plan"`
	Device  *network.Device `json:"device"`
}

// Service implements voucher redemption and batch generation. The
// redemption path applies network policy before any database write is
// committed, a voucher is never burned for a device that got no access.
type Service struct {
	store    storage.Store
	orch     *network.Orchestrator
	notifier *events.Notifier
	logger   zerolog.Logger
}

// NewService wires the portal service
func NewService(store storage.Store, orch *network.Orchestrator, notifier *events.Notifier, logger zerolog.Logger) *Service {
	return &Service{
		store:    store,
		orch:     orch,
		notifier: notifier,
		logger:   logger.With().Str("component", "portal").Logger(),
	}
}

// Redeem validates the voucher, authorizes the device on the network
// backend and records the session. Voucher-used and session-create
// happen in one transaction after the backend accepted the policy.
func (s *Service) Redeem(ctx context.Context, req RedeemRequest) (*RedeemResult, error) {
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if code == "" {
		return nil, ErrVoucherNotFound
	}

	voucher, err := s.store.GetVoucherByCode(ctx, code)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrVoucherNotFound
		}
		return nil, fmt.Errorf("lookup voucher: %w", err)
	}

	switch voucher.Status {
	case models.VoucherStatusUsed:
		return nil, ErrVoucherAlreadyUsed
	case models.VoucherStatusExpired:
		return nil, ErrVoucherExpired
	case models.VoucherStatusDisabled:
		return nil, ErrVoucherDisabled
	}

	if voucher.Expired(time.Now()) {
		// Lazily flip the status so listings agree with the rejection
		if err := s.store.UpdateVoucherStatus(ctx, voucher.ID, models.VoucherStatusExpired, nil); err != nil {
			s.logger.Error().Err(err).Int64("voucher_id", voucher.ID).Msg("Failed to mark voucher expired")
		}
		return nil, ErrVoucherExpired
	}

	plan, err := s.store.GetPlan(ctx, voucher.PlanID)
	if err != nil {
		return nil, fmt.Errorf("load plan: %w", err)
	}
	if !plan.IsActive {
		return nil, ErrPlanInactive
	}

	device, err := s.orch.Authorize(ctx, voucher, plan, network.DeviceInfo{
		MACAddress: req.MACAddress,
		IPAddress:  req.IPAddress,
		UserAgent:  req.UserAgent,
	})
	if err != nil {
		return nil, err
	}

	session, err := s.commitRedemption(ctx, voucher, device, req)
	if err != nil {
		// Roll the network policy back, the voucher was not burned
		if _, derr := s.orch.Deauthorize(ctx, device.MACAddress, "redemption_failed"); derr != nil {
			s.logger.Error().Err(derr).Str("mac", device.MACAddress).Msg("Failed to roll back authorization")
		}
		return nil, err
	}

	s.orch.BindSession(device.MACAddress, session.ID)
	voucher.Status = models.VoucherStatusUsed
	now := session.StartTime
	voucher.UsedAt = &now
	voucher.UsedBy = &device.MACAddress

	s.logSessionStarted(ctx, voucher, session, device)
	s.notifier.Publish(events.New(events.TypeSessionStarted, events.SessionStarted{
		Session:          session,
		Voucher:          voucher,
		NetworkSessionID: device.NetworkSessionID,
	}))

	s.logger.Info().
		Str("code", voucher.Code).
		Str("mac", device.MACAddress).
		Int64("session_id", session.ID).
		Str("plan", plan.Name).
		Msg("Voucher redeemed")

	return &RedeemResult{Session: session, Voucher: voucher, Plan: plan, Device: device}, nil
}

func (s *Service) commitRedemption(ctx context.Context, voucher *models.Voucher, device *network.Device, req RedeemRequest) (*models.Session, error) {
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := tx.UpdateVoucherStatus(ctx, voucher.ID, models.VoucherStatusUsed, &device.MACAddress); err != nil {
		return nil, fmt.Errorf("mark voucher used: %w", err)
	}

	now := time.Now()
	session := &models.Session{
		VoucherID:    voucher.ID,
		IPAddress:    device.IPAddress,
		MACAddress:   device.MACAddress,
		DeviceType:   classifyDevice(req.UserAgent),
		UserAgent:    req.UserAgent,
		StartTime:    now,
		IsActive:     true,
		LastActivity: now,
	}
	if err := tx.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit redemption: %w", err)
	}
	return session, nil
}

// GenerateVouchers creates a batch of codes for the plan. validDays of
// zero means the vouchers never expire on their own.
func (s *Service) GenerateVouchers(ctx context.Context, planID int64, count, validDays int, createdBy *string) ([]*models.Voucher, error) {
	if count < 1 {
		return nil, fmt.Errorf("%w: count must be at least 1", storage.ErrInvalidData)
	}

	plan, err := s.store.GetPlan(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("load plan: %w", err)
	}
	if !plan.IsActive {
		return nil, ErrPlanInactive
	}

	var validUntil *time.Time
	if validDays > 0 {
		t := time.Now().AddDate(0, 0, validDays)
		validUntil = &t
	}

	// Code collisions are rare, retry the whole batch a few times
	// rather than checking each code up front
	for attempt := 0; attempt < 3; attempt++ {
		vouchers := make([]*models.Voucher, 0, count)
		for i := 0; i < count; i++ {
			code, err := crypto.GenerateVoucherCode(time.Now())
			if err != nil {
				return nil, fmt.Errorf("generate code: %w", err)
			}
			vouchers = append(vouchers, &models.Voucher{
				Code:       code,
				PlanID:     planID,
				Status:     models.VoucherStatusActive,
				CreatedBy:  createdBy,
				ValidUntil: validUntil,
			})
		}

		err := s.store.CreateVouchers(ctx, vouchers)
		if err == nil {
			s.logVouchersCreated(ctx, len(vouchers), plan)
			s.notifier.Publish(events.New(events.TypeVouchersCreated, events.VouchersCreated{Count: len(vouchers)}))
			return vouchers, nil
		}
		if !errors.Is(err, storage.ErrDuplicateKey) {
			return nil, fmt.Errorf("create vouchers: %w", err)
		}
	}
	return nil, fmt.Errorf("%w: could not generate unique codes", storage.ErrDuplicateKey)
}

// DisableVoucher disables an active voucher. Used and expired vouchers
// keep their terminal status.
func (s *Service) DisableVoucher(ctx context.Context, id int64) (*models.Voucher, error) {
	voucher, err := s.store.GetVoucher(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrVoucherNotFound
		}
		return nil, err
	}

	switch voucher.Status {
	case models.VoucherStatusUsed:
		return nil, ErrVoucherAlreadyUsed
	case models.VoucherStatusExpired:
		return nil, ErrVoucherExpired
	case models.VoucherStatusDisabled:
		return voucher, nil
	}

	if err := s.store.UpdateVoucherStatus(ctx, id, models.VoucherStatusDisabled, nil); err != nil {
		return nil, err
	}
	voucher.Status = models.VoucherStatusDisabled
	return voucher, nil
}

// DisconnectSession ends an active session by id, tearing down the
// network policy. Returns false when the session is unknown or already
// ended.
func (s *Service) DisconnectSession(ctx context.Context, sessionID int64) (bool, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if !session.IsActive {
		return false, nil
	}

	removed, err := s.orch.Deauthorize(ctx, session.MACAddress, network.ReasonManual)
	if err != nil {
		return false, err
	}
	if !removed {
		// Registry lost track of the device (e.g. after a restart),
		// close the row directly
		ended, err := s.store.EndSession(ctx, sessionID)
		if err != nil {
			return false, err
		}
		if ended {
			s.notifier.Publish(events.New(events.TypeSessionEnded, events.SessionEnded{
				SessionID: sessionID,
				Reason:    network.ReasonManual,
			}))
		}
		return ended, nil
	}
	return true, nil
}

func (s *Service) logSessionStarted(ctx context.Context, voucher *models.Voucher, session *models.Session, device *network.Device) {
	entry := &models.EventLog{
		Type:        models.EventTypeSessionStarted,
		Level:       models.EventLevelInfo,
		Description: fmt.Sprintf("Session started for %s with voucher %s", device.MACAddress, voucher.Code),
		VoucherID:   &voucher.ID,
		SessionID:   &session.ID,
		MACAddress:  &device.MACAddress,
	}
	if err := s.store.CreateEventLog(ctx, entry); err != nil {
		s.logger.Error().Err(err).Msg("Failed to persist event log")
	}
}

func (s *Service) logVouchersCreated(ctx context.Context, count int, plan *models.Plan) {
	entry := &models.EventLog{
		Type:        models.EventTypeVouchersCreated,
		Level:       models.EventLevelInfo,
		Description: fmt.Sprintf("%d voucher(s) created for plan %s", count, plan.Name),
		Details:     models.Variables{"count": count, "planId": plan.ID},
	}
	if err := s.store.CreateEventLog(ctx, entry); err != nil {
		s.logger.Error().Err(err).Msg("Failed to persist event log")
	}
}

// classifyDevice buckets a user agent into the coarse device types the
// dashboard charts
func classifyDevice(userAgent string) string {
	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "ipad") || strings.Contains(ua, "tablet"):
		return "tablet"
	case strings.Contains(ua, "mobile") || strings.Contains(ua, "iphone") || strings.Contains(ua, "android"):
		return "mobile"
	case strings.Contains(ua, "macintosh") || strings.Contains(ua, "windows") || strings.Contains(ua, "linux"):
		return "laptop"
	case ua == "":
		return "unknown"
	default:
		return "desktop"
	}
}
