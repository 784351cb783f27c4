package database

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/hudhuria/core/settings"
)

type settingsRepository struct {
	db *sqlx.DB
}

var _ settings.Repository = (*settingsRepository)(nil)

func NewSettingsRepository(db *sqlx.DB) *settingsRepository {
	return &settingsRepository{db: db}
}

func (repo *settingsRepository) GetSettings(ctx context.Context) (settings.Settings, error) {
	q := `SELECT grace_period_minutes, sms_notifications_enabled, late_threshold_minutes FROM settings WHERE id = 1`
	var s settings.Settings
	if err := repo.db.GetContext(ctx, &s, q); err != nil {
		if err == sql.ErrNoRows {
			return settings.Settings{}, settings.ErrNotFound
		}
		return settings.Settings{}, errors.Wrap(err, "getting settings")
	}
	return s, nil
}

func (repo *settingsRepository) SaveSettings(ctx context.Context, s settings.Settings) (settings.Settings, error) {
	q := `
	INSERT INTO settings (id, grace_period_minutes, sms_notifications_enabled, late_threshold_minutes)
	VALUES (1, $1, $2, $3)
	ON CONFLICT (id) DO UPDATE
	SET grace_period_minutes = EXCLUDED.grace_period_minutes,
	    sms_notifications_enabled = EXCLUDED.sms_notifications_enabled,
	    late_threshold_minutes = EXCLUDED.late_threshold_minutes`
	if _, err := repo.db.ExecContext(ctx, q, s.GracePeriodMinutes, s.SMSNotificationsEnabled, s.LateThresholdMinutes); err != nil {
		return settings.Settings{}, errors.Wrap(err, "saving settings")
	}
	return s, nil
}
