package portal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hotspot-server/hotspot-server-pro/internal/events"
	"github.com/hotspot-server/hotspot-server-pro/internal/models"
	"github.com/hotspot-server/hotspot-server-pro/internal/network"
	"github.com/hotspot-server/hotspot-server-pro/internal/storage"
)

// portalStore stubs the Store methods the redemption path touches.
// BeginTx returns the same stub so transactional writes land in the
// same fields.
type portalStore struct {
	storage.Store

	mu       sync.Mutex
	vouchers map[string]*models.Voucher
	plans    map[int64]*models.Plan
	sessions map[int64]*models.Session

	nextSessionID    int64
	statusUpdates    []models.VoucherStatus
	createSessionErr error
	createBatchErrs  []error
	createdBatches   [][]*models.Voucher
	commits          int
	rollbacks        int
	ended            []int64
}

func newPortalStore() *portalStore {
	return &portalStore{
		vouchers:      make(map[string]*models.Voucher),
		plans:         make(map[int64]*models.Plan),
		sessions:      make(map[int64]*models.Session),
		nextSessionID: 100,
	}
}

func (s *portalStore) BeginTx(_ context.Context) (storage.Store, error) { return s, nil }

func (s *portalStore) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commits++
	return nil
}

func (s *portalStore) Rollback() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rollbacks++
	return nil
}

func (s *portalStore) GetVoucherByCode(_ context.Context, code string) (*models.Voucher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.vouchers[code]; ok {
		copied := *v
		return &copied, nil
	}
	return nil, storage.ErrNotFound
}

func (s *portalStore) GetVoucher(_ context.Context, id int64) (*models.Voucher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.vouchers {
		if v.ID == id {
			copied := *v
			return &copied, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *portalStore) GetPlan(_ context.Context, id int64) (*models.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.plans[id]; ok {
		return p, nil
	}
	return nil, storage.ErrNotFound
}

func (s *portalStore) UpdateVoucherStatus(_ context.Context, id int64, status models.VoucherStatus, usedBy *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusUpdates = append(s.statusUpdates, status)
	for _, v := range s.vouchers {
		if v.ID == id {
			v.Status = status
			v.UsedBy = usedBy
		}
	}
	return nil
}

func (s *portalStore) CreateSession(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createSessionErr != nil {
		return s.createSessionErr
	}
	s.nextSessionID++
	session.ID = s.nextSessionID
	s.sessions[session.ID] = session
	return nil
}

func (s *portalStore) GetSession(_ context.Context, id int64) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		return sess, nil
	}
	return nil, storage.ErrNotFound
}

func (s *portalStore) EndSession(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended = append(s.ended, id)
	if sess, ok := s.sessions[id]; ok && sess.IsActive {
		sess.IsActive = false
		return true, nil
	}
	return false, nil
}

func (s *portalStore) CreateVouchers(_ context.Context, vouchers []*models.Voucher) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.createBatchErrs) > 0 {
		err := s.createBatchErrs[0]
		s.createBatchErrs = s.createBatchErrs[1:]
		if err != nil {
			return err
		}
	}
	s.createdBatches = append(s.createdBatches, vouchers)
	return nil
}

func (s *portalStore) CountActiveSessionsForVoucher(_ context.Context, _ int64) (int64, error) {
	return 0, nil
}

func (s *portalStore) CreateEventLog(_ context.Context, _ *models.EventLog) error { return nil }

// fakeAdapter is the minimal backend double for redemption tests
type fakeAdapter struct {
	mu          sync.Mutex
	applyErr    error
	applyCalls  int
	removeCalls int
}

func (f *fakeAdapter) Name() string { return "fake" }

func (f *fakeAdapter) ApplyPolicy(_ context.Context, _ network.DeviceInfo, _ network.Policy) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applyCalls++
	return f.applyErr
}

func (f *fakeAdapter) RemovePolicy(_ context.Context, _ network.DeviceInfo, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeCalls++
	return nil
}

func (f *fakeAdapter) Usage(_ context.Context, _ network.DeviceInfo) (*network.Usage, error) {
	return nil, network.ErrUsageUnsupported
}

type fixture struct {
	store   *portalStore
	adapter *fakeAdapter
	orch    *network.Orchestrator
	svc     *Service
}

func newFixture() *fixture {
	store := newPortalStore()
	adapter := &fakeAdapter{}
	notifier := events.NewNotifier(64, zerolog.Nop())
	orch := network.NewOrchestrator(adapter, network.NewRegistry(), store, notifier,
		network.Options{Attempts: 1, Backoff: time.Millisecond}, zerolog.Nop())
	return &fixture{
		store:   store,
		adapter: adapter,
		orch:    orch,
		svc:     NewService(store, orch, notifier, zerolog.Nop()),
	}
}

func (f *fixture) addPlan(plan *models.Plan) { f.store.plans[plan.ID] = plan }

func (f *fixture) addVoucher(v *models.Voucher) { f.store.vouchers[v.Code] = v }

func activePlan() *models.Plan {
	return &models.Plan{ID: 1, Name: "Standard", DurationMinutes: 60, MaxDevices: 2, IsActive: true}
}

func activeVoucher() *models.Voucher {
	return &models.Voucher{ID: 42, Code: "WIFI-2026-ABC123", PlanID: 1, Status: models.VoucherStatusActive}
}

func redeemReq() RedeemRequest {
	return RedeemRequest{
		Code:       "WIFI-2026-ABC123",
		MACAddress: "aa:bb:cc:dd:ee:ff",
		IPAddress:  "10.0.0.5",
		UserAgent:  "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) Mobile",
	}
}

func TestRedeemSuccess(t *testing.T) {
	f := newFixture()
	f.addPlan(activePlan())
	f.addVoucher(activeVoucher())

	result, err := f.svc.Redeem(context.Background(), redeemReq())
	require.NoError(t, err)

	assert.Equal(t, models.VoucherStatusUsed, result.Voucher.Status)
	require.NotNil(t, result.Voucher.UsedBy)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", *result.Voucher.UsedBy)

	require.NotNil(t, result.Session)
	assert.Equal(t, "mobile", result.Session.DeviceType)
	assert.True(t, result.Session.IsActive)

	assert.Equal(t, 1, f.store.commits)

	device := f.orch.Registry().Get("AA:BB:CC:DD:EE:FF")
	require.NotNil(t, device)
	assert.Equal(t, result.Session.ID, device.SessionRowID)
}

func TestRedeemNormalizesCode(t *testing.T) {
	f := newFixture()
	f.addPlan(activePlan())
	f.addVoucher(activeVoucher())

	req := redeemReq()
	req.Code = "  wifi-2026-abc123 "
	_, err := f.svc.Redeem(context.Background(), req)
	assert.NoError(t, err)
}

func TestRedeemUnknownCode(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Redeem(context.Background(), redeemReq())
	assert.ErrorIs(t, err, ErrVoucherNotFound)

	_, err = f.svc.Redeem(context.Background(), RedeemRequest{Code: "   "})
	assert.ErrorIs(t, err, ErrVoucherNotFound)
}

func TestRedeemRejectsTerminalStatuses(t *testing.T) {
	tests := []struct {
		status models.VoucherStatus
		want   error
	}{
		{models.VoucherStatusUsed, ErrVoucherAlreadyUsed},
		{models.VoucherStatusExpired, ErrVoucherExpired},
		{models.VoucherStatusDisabled, ErrVoucherDisabled},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			f := newFixture()
			f.addPlan(activePlan())
			v := activeVoucher()
			v.Status = tt.status
			f.addVoucher(v)

			_, err := f.svc.Redeem(context.Background(), redeemReq())
			assert.ErrorIs(t, err, tt.want)
			assert.Zero(t, f.adapter.applyCalls)
		})
	}
}

func TestRedeemLazyExpiry(t *testing.T) {
	f := newFixture()
	f.addPlan(activePlan())
	v := activeVoucher()
	past := time.Now().Add(-time.Hour)
	v.ValidUntil = &past
	f.addVoucher(v)

	_, err := f.svc.Redeem(context.Background(), redeemReq())
	assert.ErrorIs(t, err, ErrVoucherExpired)
	assert.Equal(t, []models.VoucherStatus{models.VoucherStatusExpired}, f.store.statusUpdates)
	assert.Zero(t, f.adapter.applyCalls)
}

func TestRedeemPlanInactive(t *testing.T) {
	f := newFixture()
	plan := activePlan()
	plan.IsActive = false
	f.addPlan(plan)
	f.addVoucher(activeVoucher())

	_, err := f.svc.Redeem(context.Background(), redeemReq())
	assert.ErrorIs(t, err, ErrPlanInactive)
	assert.Zero(t, f.adapter.applyCalls)
}

func TestRedeemDoesNotBurnVoucherOnBackendFailure(t *testing.T) {
	f := newFixture()
	f.addPlan(activePlan())
	f.addVoucher(activeVoucher())
	f.adapter.applyErr = errors.New("connection refused")

	_, err := f.svc.Redeem(context.Background(), redeemReq())
	assert.ErrorIs(t, err, network.ErrBackendUnreachable)

	v, _ := f.store.GetVoucherByCode(context.Background(), "WIFI-2026-ABC123")
	assert.Equal(t, models.VoucherStatusActive, v.Status)
	assert.Zero(t, f.store.commits)
}

func TestRedeemRollsBackAuthorizationOnCommitFailure(t *testing.T) {
	f := newFixture()
	f.addPlan(activePlan())
	f.addVoucher(activeVoucher())
	f.store.createSessionErr = errors.New("disk full")

	_, err := f.svc.Redeem(context.Background(), redeemReq())
	require.Error(t, err)

	assert.Equal(t, 1, f.adapter.removeCalls, "network policy rolled back")
	assert.Zero(t, f.orch.Registry().Count())
	assert.Zero(t, f.store.commits)
}

func TestGenerateVouchers(t *testing.T) {
	f := newFixture()
	f.addPlan(activePlan())

	createdBy := "admin@example.com"
	vouchers, err := f.svc.GenerateVouchers(context.Background(), 1, 5, 7, &createdBy)
	require.NoError(t, err)
	require.Len(t, vouchers, 5)

	prefix := fmt.Sprintf("WIFI-%d-", time.Now().Year())
	seen := make(map[string]bool)
	for _, v := range vouchers {
		assert.True(t, strings.HasPrefix(v.Code, prefix), "code %q", v.Code)
		assert.False(t, seen[v.Code], "duplicate code in batch")
		seen[v.Code] = true
		assert.Equal(t, models.VoucherStatusActive, v.Status)
		require.NotNil(t, v.ValidUntil)
		assert.WithinDuration(t, time.Now().AddDate(0, 0, 7), *v.ValidUntil, time.Minute)
	}
}

func TestGenerateVouchersNoExpiry(t *testing.T) {
	f := newFixture()
	f.addPlan(activePlan())

	vouchers, err := f.svc.GenerateVouchers(context.Background(), 1, 2, 0, nil)
	require.NoError(t, err)
	for _, v := range vouchers {
		assert.Nil(t, v.ValidUntil)
	}
}

func TestGenerateVouchersValidation(t *testing.T) {
	f := newFixture()
	f.addPlan(activePlan())

	_, err := f.svc.GenerateVouchers(context.Background(), 1, 0, 0, nil)
	assert.ErrorIs(t, err, storage.ErrInvalidData)

	inactive := activePlan()
	inactive.ID = 2
	inactive.IsActive = false
	f.addPlan(inactive)
	_, err = f.svc.GenerateVouchers(context.Background(), 2, 1, 0, nil)
	assert.ErrorIs(t, err, ErrPlanInactive)

	_, err = f.svc.GenerateVouchers(context.Background(), 99, 1, 0, nil)
	assert.Error(t, err)
}

func TestGenerateVouchersRetriesOnCollision(t *testing.T) {
	f := newFixture()
	f.addPlan(activePlan())
	f.store.createBatchErrs = []error{storage.ErrDuplicateKey, storage.ErrDuplicateKey}

	vouchers, err := f.svc.GenerateVouchers(context.Background(), 1, 3, 0, nil)
	require.NoError(t, err)
	assert.Len(t, vouchers, 3)
	assert.Len(t, f.store.createdBatches, 1)
}

func TestGenerateVouchersGivesUpAfterCollisions(t *testing.T) {
	f := newFixture()
	f.addPlan(activePlan())
	f.store.createBatchErrs = []error{storage.ErrDuplicateKey, storage.ErrDuplicateKey, storage.ErrDuplicateKey}

	_, err := f.svc.GenerateVouchers(context.Background(), 1, 3, 0, nil)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestDisableVoucher(t *testing.T) {
	f := newFixture()
	f.addVoucher(activeVoucher())

	v, err := f.svc.DisableVoucher(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, models.VoucherStatusDisabled, v.Status)

	// Disabling again is a no-op
	v, err = f.svc.DisableVoucher(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, models.VoucherStatusDisabled, v.Status)
}

func TestDisableVoucherTerminalStatuses(t *testing.T) {
	f := newFixture()
	used := activeVoucher()
	used.Status = models.VoucherStatusUsed
	f.addVoucher(used)

	_, err := f.svc.DisableVoucher(context.Background(), 42)
	assert.ErrorIs(t, err, ErrVoucherAlreadyUsed)

	_, err = f.svc.DisableVoucher(context.Background(), 99)
	assert.ErrorIs(t, err, ErrVoucherNotFound)
}

func TestDisconnectSession(t *testing.T) {
	f := newFixture()
	f.addPlan(activePlan())
	f.addVoucher(activeVoucher())

	result, err := f.svc.Redeem(context.Background(), redeemReq())
	require.NoError(t, err)

	ok, err := f.svc.DisconnectSession(context.Background(), result.Session.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, f.orch.Registry().Count())
	assert.Equal(t, 1, f.adapter.removeCalls)
}

func TestDisconnectSessionUnknown(t *testing.T) {
	f := newFixture()

	ok, err := f.svc.DisconnectSession(context.Background(), 12345)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDisconnectSessionAfterRestart(t *testing.T) {
	// The registry is empty after a restart but the session row is
	// still active, disconnect must close it directly
	f := newFixture()
	f.store.sessions[200] = &models.Session{ID: 200, MACAddress: "AA:BB:CC:DD:EE:FF", IsActive: true}

	ok, err := f.svc.DisconnectSession(context.Background(), 200)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, f.store.ended, int64(200))
}

func TestClassifyDevice(t *testing.T) {
	tests := []struct {
		ua   string
		want string
	}{
		{"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0) Mobile", "mobile"},
		{"Mozilla/5.0 (Linux; Android 14) Mobile Safari", "mobile"},
		{"Mozilla/5.0 (iPad; CPU OS 17_0)", "tablet"},
		{"Mozilla/5.0 (Windows NT 10.0; Win64; x64)", "laptop"},
		{"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7)", "laptop"},
		{"", "unknown"},
		{"curl/8.0", "desktop"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, classifyDevice(tt.ua), "ua %q", tt.ua)
	}
}
