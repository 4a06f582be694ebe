package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"scriptportal-backend-go/internal/config"
	"scriptportal-backend-go/internal/models"
	"scriptportal-backend-go/internal/rubric"
)

const (
	SettingPricingTiers  = "pricing_tiers"
	SettingSMTP          = "smtp"
	SettingNotifications = "notifications"
)

// NotificationSettings are the email toggles stored under "notifications".
type NotificationSettings struct {
	NotifySubmission      bool   `json:"notify_submission"`
	NotifyAssignment      bool   `json:"notify_assignment"`
	NotifyReviewSubmitted bool   `json:"notify_review_submitted"`
	NotifyContact         bool   `json:"notify_contact"`
	AdminEmail            string `json:"admin_email,omitempty"`
}

var DefaultNotificationSettings = NotificationSettings{
	NotifySubmission:      true,
	NotifyAssignment:      true,
	NotifyReviewSubmitted: true,
	NotifyContact:         true,
}

func ListSettings(ctx context.Context, db *sqlx.DB) ([]models.SiteSetting, error) {
	items := []models.SiteSetting{}
	err := db.SelectContext(ctx, &items, `SELECT key, value, updated_at FROM site_settings ORDER BY key`)
	return items, err
}

func GetSetting(ctx context.Context, db *sqlx.DB, key string) (models.SiteSetting, error) {
	var item models.SiteSetting
	err := db.GetContext(ctx, &item, `SELECT key, value, updated_at FROM site_settings WHERE key = $1`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return models.SiteSetting{}, ErrNotFound("Setting not found")
	}
	return item, err
}

// PutSetting validates known keys before upserting the JSON value.
func PutSetting(ctx context.Context, db *sqlx.DB, key string, value json.RawMessage) (models.SiteSetting, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return models.SiteSetting{}, ErrBadRequest("Setting key is required")
	}
	if len(value) == 0 || !json.Valid(value) {
		return models.SiteSetting{}, ErrBadRequest("Setting value must be valid JSON")
	}
	if err := validateSetting(key, value); err != nil {
		return models.SiteSetting{}, err
	}
	now := time.Now().UTC()
	_, err := db.ExecContext(ctx, `
INSERT INTO site_settings (key, value, updated_at)
VALUES ($1, $2::jsonb, $3)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
`, key, string(value), now)
	if err != nil {
		return models.SiteSetting{}, err
	}
	return models.SiteSetting{Key: key, Value: models.JSON(value), UpdatedAt: now}, nil
}

func validateSetting(key string, value json.RawMessage) error {
	switch key {
	case SettingPricingTiers:
		var tiers []models.Tier
		if err := json.Unmarshal(value, &tiers); err != nil {
			return ErrBadRequest("pricing_tiers must be a list of tiers")
		}
		for _, tier := range tiers {
			if strings.TrimSpace(tier.ID) == "" || tier.Amount < 0 {
				return ErrBadRequest("Each tier needs an id and a non-negative amount")
			}
			if _, err := rubric.ParseGranularity(string(tier.Granularity)); err != nil {
				return ErrBadRequest(err.Error())
			}
		}
	case SettingSMTP:
		var smtp config.SMTPConfig
		if err := json.Unmarshal(value, &smtp); err != nil {
			return ErrBadRequest("smtp must be an object")
		}
	case SettingNotifications:
		var toggles NotificationSettings
		if err := json.Unmarshal(value, &toggles); err != nil {
			return ErrBadRequest("notifications must be an object of toggles")
		}
	}
	return nil
}

// loadSettingInto decodes the stored value into dest and reports whether the
// key exists.
func loadSettingInto(ctx context.Context, db *sqlx.DB, key string, dest interface{}) (bool, error) {
	var raw models.JSON
	err := db.GetContext(ctx, &raw, `SELECT value FROM site_settings WHERE key = $1`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, WrapError(err, "decode setting "+key)
	}
	return true, nil
}

// LoadTiers returns the pricing_tiers setting, or fallback when it is unset
// or empty.
func LoadTiers(ctx context.Context, db *sqlx.DB, fallback []models.Tier) ([]models.Tier, error) {
	var tiers []models.Tier
	found, err := loadSettingInto(ctx, db, SettingPricingTiers, &tiers)
	if err != nil {
		return nil, err
	}
	if !found || len(tiers) == 0 {
		return fallback, nil
	}
	for i := range tiers {
		tiers[i].Granularity, _ = rubric.ParseGranularity(string(tiers[i].Granularity))
	}
	return tiers, nil
}

func LoadNotificationSettings(ctx context.Context, db *sqlx.DB) (NotificationSettings, error) {
	toggles := DefaultNotificationSettings
	if _, err := loadSettingInto(ctx, db, SettingNotifications, &toggles); err != nil {
		return DefaultNotificationSettings, err
	}
	return toggles, nil
}

// LoadSMTP overlays the smtp setting on the environment fallback.
func LoadSMTP(ctx context.Context, db *sqlx.DB, fallback config.SMTPConfig) (config.SMTPConfig, error) {
	merged := fallback
	var stored config.SMTPConfig
	found, err := loadSettingInto(ctx, db, SettingSMTP, &stored)
	if err != nil || !found {
		return fallback, err
	}
	if stored.Host != "" {
		merged.Host = stored.Host
	}
	if stored.Port != 0 {
		merged.Port = stored.Port
	}
	if stored.User != "" {
		merged.User = stored.User
	}
	if stored.Password != "" {
		merged.Password = stored.Password
	}
	if stored.From != "" {
		merged.From = stored.From
	}
	return merged, nil
}
