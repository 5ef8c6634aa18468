package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hotspot-server/hotspot-server-pro/internal/config"
	"github.com/hotspot-server/hotspot-server-pro/internal/models"
	"github.com/hotspot-server/hotspot-server-pro/internal/storage"
	"github.com/hotspot-server/hotspot-server-pro/pkg/crypto"
)

// schema creates all tables used by the server. Idempotent, safe to
// run against an existing database.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id UUID PRIMARY KEY,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL,
    email TEXT NOT NULL UNIQUE,
    first_name TEXT NOT NULL DEFAULT '',
    last_name TEXT NOT NULL DEFAULT '',
    password_hash TEXT NOT NULL,
    role TEXT NOT NULL DEFAULT 'staff',
    is_active BOOLEAN NOT NULL DEFAULT true,
    last_login_at TIMESTAMPTZ,
    settings JSONB NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS plans (
    id BIGSERIAL PRIMARY KEY,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL,
    name TEXT NOT NULL UNIQUE,
    description TEXT NOT NULL DEFAULT '',
    duration_minutes INTEGER NOT NULL,
    data_limit_mb BIGINT,
    speed_limit_down_mbps INTEGER NOT NULL DEFAULT 0,
    speed_limit_up_mbps INTEGER NOT NULL DEFAULT 0,
    max_devices INTEGER NOT NULL DEFAULT 1,
    price TEXT NOT NULL DEFAULT '0.00',
    is_active BOOLEAN NOT NULL DEFAULT true
);

CREATE TABLE IF NOT EXISTS vouchers (
    id BIGSERIAL PRIMARY KEY,
    created_at TIMESTAMPTZ NOT NULL,
    code TEXT NOT NULL UNIQUE,
    plan_id BIGINT NOT NULL REFERENCES plans(id),
    status TEXT NOT NULL DEFAULT 'active',
    created_by TEXT,
    valid_until TIMESTAMPTZ,
    used_at TIMESTAMPTZ,
    used_by TEXT
);
CREATE INDEX IF NOT EXISTS idx_vouchers_status ON vouchers(status);
CREATE INDEX IF NOT EXISTS idx_vouchers_plan ON vouchers(plan_id);

CREATE TABLE IF NOT EXISTS sessions (
    id BIGSERIAL PRIMARY KEY,
    voucher_id BIGINT NOT NULL REFERENCES vouchers(id),
    ip_address TEXT NOT NULL DEFAULT '',
    mac_address TEXT NOT NULL,
    device_type TEXT NOT NULL DEFAULT 'unknown',
    user_agent TEXT NOT NULL DEFAULT '',
    start_time TIMESTAMPTZ NOT NULL,
    end_time TIMESTAMPTZ,
    data_used_mb BIGINT NOT NULL DEFAULT 0,
    is_active BOOLEAN NOT NULL DEFAULT true,
    last_activity TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_active ON sessions(is_active);
CREATE INDEX IF NOT EXISTS idx_sessions_voucher ON sessions(voucher_id);

CREATE TABLE IF NOT EXISTS system_settings (
    id BIGSERIAL PRIMARY KEY,
    key TEXT NOT NULL UNIQUE,
    value TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS portal_settings (
    id BIGSERIAL PRIMARY KEY,
    updated_at TIMESTAMPTZ NOT NULL,
    business_name TEXT NOT NULL DEFAULT '',
    welcome_message TEXT NOT NULL DEFAULT '',
    primary_color TEXT NOT NULL DEFAULT '#2563eb',
    logo_url TEXT NOT NULL DEFAULT '',
    terms_required BOOLEAN NOT NULL DEFAULT false,
    terms_content TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS analytics_snapshots (
    id BIGSERIAL PRIMARY KEY,
    date DATE NOT NULL UNIQUE,
    total_sessions BIGINT NOT NULL DEFAULT 0,
    total_data_used_mb BIGINT NOT NULL DEFAULT 0,
    total_revenue TEXT NOT NULL DEFAULT '0.00',
    avg_session_minutes BIGINT NOT NULL DEFAULT 0,
    peak_users BIGINT NOT NULL DEFAULT 0,
    unique_devices BIGINT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS event_logs (
    id UUID PRIMARY KEY,
    created_at TIMESTAMPTZ NOT NULL,
    voucher_id BIGINT,
    session_id BIGINT,
    mac_address TEXT,
    type TEXT NOT NULL,
    level TEXT NOT NULL DEFAULT 'INFO',
    description TEXT NOT NULL DEFAULT '',
    details JSONB
);
CREATE INDEX IF NOT EXISTS idx_event_logs_created ON event_logs(created_at DESC);
`

func main() {
	var configFile string
	var withSamples bool
	flag.StringVar(&configFile, "config", "config/hotspot-server.yml", "Configuration file path")
	flag.BoolVar(&withSamples, "samples", false, "Also create sample vouchers")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	store, err := storage.NewPostgresStore(cfg.Database.DSN, storage.PoolOptions{})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer store.Close()

	ctx := context.Background()

	if _, err := store.DB().ExecContext(ctx, schema); err != nil {
		log.Fatal().Err(err).Msg("Failed to create schema")
	}
	log.Info().Msg("Schema created")

	seedAdmin(ctx, store)
	plans := seedPlans(ctx, store)

	if withSamples && len(plans) > 0 {
		seedVouchers(ctx, store, plans[0])
	}

	log.Info().Msg("Seeding complete")
}

func seedAdmin(ctx context.Context, store storage.Store) {
	email := os.Getenv("ADMIN_EMAIL")
	if email == "" {
		email = "admin@example.com"
	}

	if _, err := store.GetUserByEmail(ctx, email); err == nil {
		log.Info().Str("email", email).Msg("Admin user already exists")
		return
	}

	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		password = "admin123"
		log.Warn().Msg("ADMIN_PASSWORD not set, using default password, change it immediately")
	}

	hash, err := crypto.HashPassword(password)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash admin password")
	}

	admin := &models.User{
		Email:        email,
		FirstName:    "Admin",
		PasswordHash: hash,
		Role:         "admin",
		IsActive:     true,
		Settings:     make(models.Variables),
	}
	if err := store.CreateUser(ctx, admin); err != nil {
		log.Fatal().Err(err).Msg("Failed to create admin user")
	}
	log.Info().Str("email", email).Msg("Admin user created")
}

func seedPlans(ctx context.Context, store storage.Store) []*models.Plan {
	existing, err := store.ListPlans(ctx, false)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list plans")
	}
	if len(existing) > 0 {
		log.Info().Int("count", len(existing)).Msg("Plans already seeded")
		return existing
	}

	gb := func(n int64) *int64 { mb := n * 1024; return &mb }

	plans := []*models.Plan{
		{
			Name:               "Basic",
			Description:        "1 hour of browsing for quick visits",
			DurationMinutes:    60,
			DataLimitMB:        gb(1),
			SpeedLimitDownMbps: 5,
			SpeedLimitUpMbps:   2,
			MaxDevices:         1,
			Price:              "2.00",
			IsActive:           true,
		},
		{
			Name:               "Standard",
			Description:        "4 hours with more data for work sessions",
			DurationMinutes:    240,
			DataLimitMB:        gb(5),
			SpeedLimitDownMbps: 10,
			SpeedLimitUpMbps:   5,
			MaxDevices:         2,
			Price:              "5.00",
			IsActive:           true,
		},
		{
			Name:               "Premium",
			Description:        "24 hours, unlimited data",
			DurationMinutes:    1440,
			SpeedLimitDownMbps: 20,
			SpeedLimitUpMbps:   10,
			MaxDevices:         3,
			Price:              "10.00",
			IsActive:           true,
		},
		{
			Name:               "Guest Pass",
			Description:        "30 free minutes, light browsing",
			DurationMinutes:    30,
			DataLimitMB:        gb(1),
			SpeedLimitDownMbps: 2,
			SpeedLimitUpMbps:   1,
			MaxDevices:         1,
			Price:              "0.00",
			IsActive:           true,
		},
	}

	for _, plan := range plans {
		if err := store.CreatePlan(ctx, plan); err != nil {
			log.Fatal().Err(err).Str("plan", plan.Name).Msg("Failed to create plan")
		}
		log.Info().Str("plan", plan.Name).Int64("id", plan.ID).Msg("Plan created")
	}
	return plans
}

func seedVouchers(ctx context.Context, store storage.Store, plan *models.Plan) {
	validUntil := time.Now().AddDate(0, 0, 30)
	createdBy := "seed"

	vouchers := make([]*models.Voucher, 0, 10)
	for i := 0; i < 10; i++ {
		code, err := crypto.GenerateVoucherCode(time.Now())
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to generate voucher code")
		}
		vouchers = append(vouchers, &models.Voucher{
			Code:       code,
			PlanID:     plan.ID,
			Status:     models.VoucherStatusActive,
			CreatedBy:  &createdBy,
			ValidUntil: &validUntil,
		})
	}

	if err := store.CreateVouchers(ctx, vouchers); err != nil {
		log.Fatal().Err(err).Msg("Failed to create sample vouchers")
	}

	for _, v := range vouchers {
		log.Info().Str("code", v.Code).Msg("Sample voucher")
	}
}
