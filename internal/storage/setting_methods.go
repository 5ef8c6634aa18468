package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/hotspot-server/hotspot-server-pro/internal/models"
)

// ========== System Settings ==========

// ListSystemSettings lists all system settings
func (s *PostgresStore) ListSystemSettings(ctx context.Context) ([]*models.SystemSetting, error) {
	query := `
        SELECT id, key, value, description, updated_at
        FROM system_settings
        ORDER BY key`

	rows, err := s.getDB().QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var settings []*models.SystemSetting
	for rows.Next() {
		setting := &models.SystemSetting{}
		if err := rows.Scan(
			&setting.ID, &setting.Key, &setting.Value,
			&setting.Description, &setting.UpdatedAt,
		); err != nil {
			return nil, err
		}
		settings = append(settings, setting)
	}

	return settings, rows.Err()
}

// UpdateSystemSetting upserts a system setting by key
func (s *PostgresStore) UpdateSystemSetting(ctx context.Context, key, value string) (*models.SystemSetting, error) {
	query := `
        INSERT INTO system_settings (key, value, updated_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (key) DO UPDATE SET value = $2, updated_at = $3
        RETURNING id, key, value, description, updated_at`

	setting := &models.SystemSetting{}
	err := s.getDB().QueryRowContext(ctx, query, key, value, time.Now()).Scan(
		&setting.ID, &setting.Key, &setting.Value,
		&setting.Description, &setting.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return setting, nil
}

// ========== Portal Settings ==========

// GetPortalSettings returns the portal branding row
func (s *PostgresStore) GetPortalSettings(ctx context.Context) (*models.PortalSetting, error) {
	query := `
        SELECT id, updated_at, business_name, welcome_message, primary_color,
               logo_url, terms_required, terms_content
        FROM portal_settings
        ORDER BY id
        LIMIT 1`

	setting := &models.PortalSetting{}
	err := s.getDB().QueryRowContext(ctx, query).Scan(
		&setting.ID, &setting.UpdatedAt, &setting.BusinessName,
		&setting.WelcomeMessage, &setting.PrimaryColor, &setting.LogoURL,
		&setting.TermsRequired, &setting.TermsContent,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return setting, nil
}

// UpdatePortalSettings upserts the portal branding row
func (s *PostgresStore) UpdatePortalSettings(ctx context.Context, settings *models.PortalSetting) (*models.PortalSetting, error) {
	settings.UpdatedAt = time.Now()

	existing, err := s.GetPortalSettings(ctx)
	if err != nil && err != ErrNotFound {
		return nil, err
	}

	if existing == nil {
		query := `
            INSERT INTO portal_settings (
                updated_at, business_name, welcome_message, primary_color,
                logo_url, terms_required, terms_content
            ) VALUES ($1, $2, $3, $4, $5, $6, $7)
            RETURNING id`
		err = s.getDB().QueryRowContext(ctx, query,
			settings.UpdatedAt, settings.BusinessName, settings.WelcomeMessage,
			settings.PrimaryColor, settings.LogoURL, settings.TermsRequired,
			settings.TermsContent,
		).Scan(&settings.ID)
		if err != nil {
			return nil, err
		}
		return settings, nil
	}

	settings.ID = existing.ID
	query := `
        UPDATE portal_settings
        SET updated_at = $2, business_name = $3, welcome_message = $4,
            primary_color = $5, logo_url = $6, terms_required = $7,
            terms_content = $8
        WHERE id = $1`
	_, err = s.getDB().ExecContext(ctx, query,
		settings.ID, settings.UpdatedAt, settings.BusinessName,
		settings.WelcomeMessage, settings.PrimaryColor, settings.LogoURL,
		settings.TermsRequired, settings.TermsContent,
	)
	if err != nil {
		return nil, err
	}

	return settings, nil
}
