// Package settings holds the single mutable system settings record.
package settings

import (
	"context"

	"github.com/pkg/errors"
)

// Defaults seeded on first read.
const (
	DefaultGracePeriodMinutes   = 15
	DefaultLateThresholdMinutes = 30
)

var ErrNotFound = errors.New("settings not found")

type (
	Settings struct {
		GracePeriodMinutes      int  `json:"grace_period_minutes" db:"grace_period_minutes"`
		SMSNotificationsEnabled bool `json:"sms_notifications_enabled" db:"sms_notifications_enabled"`
		LateThresholdMinutes    int  `json:"late_threshold_minutes" db:"late_threshold_minutes"`
	}

	// Update leaves nil fields untouched.
	Update struct {
		GracePeriodMinutes      *int  `json:"grace_period_minutes" validate:"omitempty,min=0"`
		SMSNotificationsEnabled *bool `json:"sms_notifications_enabled"`
		LateThresholdMinutes    *int  `json:"late_threshold_minutes" validate:"omitempty,min=0"`
	}

	Repository interface {
		GetSettings(ctx context.Context) (Settings, error)
		SaveSettings(ctx context.Context, s Settings) (Settings, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func defaults() Settings {
	return Settings{
		GracePeriodMinutes:      DefaultGracePeriodMinutes,
		SMSNotificationsEnabled: true,
		LateThresholdMinutes:    DefaultLateThresholdMinutes,
	}
}

// Get returns the settings record, seeding defaults on first access.
func (svc *Service) Get(ctx context.Context) (Settings, error) {
	s, err := svc.repo.GetSettings(ctx)
	if err == ErrNotFound {
		return svc.repo.SaveSettings(ctx, defaults())
	}
	return s, err
}

func (svc *Service) Update(ctx context.Context, upd Update) (Settings, error) {
	s, err := svc.Get(ctx)
	if err != nil {
		return Settings{}, err
	}
	if upd.GracePeriodMinutes != nil {
		s.GracePeriodMinutes = *upd.GracePeriodMinutes
	}
	if upd.SMSNotificationsEnabled != nil {
		s.SMSNotificationsEnabled = *upd.SMSNotificationsEnabled
	}
	if upd.LateThresholdMinutes != nil {
		s.LateThresholdMinutes = *upd.LateThresholdMinutes
	}
	return svc.repo.SaveSettings(ctx, s)
}
