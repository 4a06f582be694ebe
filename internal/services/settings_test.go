package services

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"testing"

	"scriptportal-backend-go/internal/config"
	"scriptportal-backend-go/internal/rubric"
	"scriptportal-backend-go/internal/testutil"
)

func TestPutSettingValidatesKnownKeys(t *testing.T) {
	db, script := testutil.NewDB(t)
	_, err := PutSetting(context.Background(), db, SettingPricingTiers, json.RawMessage(`[{"id":"","amount":100}]`))
	if serr, ok := AsServiceError(err); !ok || serr.Status != 400 {
		t.Fatalf("expected 400, got %v", err)
	}
	_, err = PutSetting(context.Background(), db, "banner", json.RawMessage(`{not json`))
	if serr, ok := AsServiceError(err); !ok || serr.Status != 400 {
		t.Fatalf("expected 400 for invalid json, got %v", err)
	}
	if len(script.Executed()) != 0 {
		t.Fatalf("invalid settings must not be written")
	}
}

func TestPutSettingUpserts(t *testing.T) {
	db, script := testutil.NewDB(t,
		testutil.Exec(`ON CONFLICT \(key\) DO UPDATE`, 1).WithArgs("notifications", `{"notify_assignment":false}`, testutil.AnyArg),
	)
	setting, err := PutSetting(context.Background(), db, " notifications ", json.RawMessage(`{"notify_assignment":false}`))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	script.Verify(t)
	if setting.Key != "notifications" {
		t.Fatalf("unexpected key %q", setting.Key)
	}
}

func TestLoadTiersFallsBackWhenUnset(t *testing.T) {
	db, _ := testutil.NewDB(t, testutil.Query(`SELECT value FROM site_settings`, []string{"value"}))
	tiers, err := LoadTiers(context.Background(), db, DefaultTiers)
	if err != nil || len(tiers) != len(DefaultTiers) {
		t.Fatalf("expected default tiers, got %v (%v)", tiers, err)
	}
}

func TestLoadTiersFromSetting(t *testing.T) {
	db, _ := testutil.NewDB(t, testutil.Query(`SELECT value FROM site_settings`, []string{"value"},
		[]driver.Value{`[{"id":"pages","name":"Pages","amount":90000,"granularity":"per_page"},{"id":"basic","amount":1000}]`}))
	tiers, err := LoadTiers(context.Background(), db, DefaultTiers)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(tiers) != 2 || tiers[0].Granularity != rubric.PerPage || tiers[1].Granularity != rubric.WholeScript {
		t.Fatalf("unexpected tiers %#v", tiers)
	}
}

func TestLoadSMTPOverlaysSetting(t *testing.T) {
	db, _ := testutil.NewDB(t, testutil.Query(`SELECT value FROM site_settings`, []string{"value"},
		[]driver.Value{`{"host":"smtp.example.com","from":"Scripts <no-reply@example.com>"}`}))
	cfg, err := LoadSMTP(context.Background(), db, config.SMTPConfig{Host: "localhost", Port: 587, User: "env-user"})
	if err != nil {
		t.Fatalf("load smtp: %v", err)
	}
	if cfg.Host != "smtp.example.com" || cfg.Port != 587 || cfg.User != "env-user" || cfg.From == "" {
		t.Fatalf("unexpected merge %#v", cfg)
	}
}

func TestNotificationDefaultsWhenUnset(t *testing.T) {
	db, _ := testutil.NewDB(t, testutil.Query(`SELECT value FROM site_settings`, []string{"value"}))
	toggles, err := LoadNotificationSettings(context.Background(), db)
	if err != nil || toggles != DefaultNotificationSettings {
		t.Fatalf("expected defaults, got %#v (%v)", toggles, err)
	}
}
