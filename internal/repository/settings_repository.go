package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/studyspace/admin-api/internal/models"
)

// SettingsRepository manages the singleton settings row.
type SettingsRepository struct {
	db *sqlx.DB
}

// NewSettingsRepository constructs a SettingsRepository.
func NewSettingsRepository(db *sqlx.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get returns the settings row, or nil when none has been created yet.
func (r *SettingsRepository) Get(ctx context.Context) (*models.Settings, error) {
	const query = `SELECT id, brand_name, logo_url, primary_color, total_seats, default_monthly_fee, updated_at
        FROM settings ORDER BY updated_at DESC LIMIT 1`
	var settings models.Settings
	if err := r.db.GetContext(ctx, &settings, query); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get settings: %w", err)
	}
	return &settings, nil
}

// Upsert writes the settings row, creating it on first save.
func (r *SettingsRepository) Upsert(ctx context.Context, settings *models.Settings) error {
	if settings.ID == "" {
		settings.ID = uuid.NewString()
	}
	settings.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO settings (id, brand_name, logo_url, primary_color, total_seats, default_monthly_fee, updated_at)
        VALUES (:id, :brand_name, :logo_url, :primary_color, :total_seats, :default_monthly_fee, :updated_at)
        ON CONFLICT (id)
        DO UPDATE SET brand_name = EXCLUDED.brand_name, logo_url = EXCLUDED.logo_url, primary_color = EXCLUDED.primary_color, total_seats = EXCLUDED.total_seats, default_monthly_fee = EXCLUDED.default_monthly_fee, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, settings); err != nil {
		return fmt.Errorf("upsert settings: %w", err)
	}
	return nil
}
