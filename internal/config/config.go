package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds runtime configuration loaded from environment variables.
type Config struct {
	DatabaseURL           string
	JWTSecret             string
	JWTIssuer             string
	AccessTTLSeconds      int64
	RefreshTTLSeconds     int64
	StoragePath           string
	PublicBaseURL         string
	SignedURLTTLSeconds   int64
	MetricsDiskPath       string
	MetricsSampleSeconds  int
	CorsOrigins           []string
	AutosaveDebounceMS    int
	ContactCachePath      string
	ContactRetentionHours int
	ContactSyncSeconds    int
	PaymentFunctionURL    string
	PaymentWebhookSecret  string
	SMTP                  SMTPConfig
	CatalogPath           string
	LogoHeaderPath        string
	LogoFooterPath        string
	AdminEmail            string
	AdminPassword         string
}

// SMTPConfig is the environment fallback for outgoing mail. The "smtp" site
// setting takes precedence when present.
type SMTPConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	From     string `json:"from"`
}

func Load() Config {
	return Config{
		DatabaseURL:           mustEnv("DATABASE_URL"),
		JWTSecret:             mustEnv("JWT_SECRET"),
		JWTIssuer:             envOr("JWT_ISSUER", "scriptportal"),
		AccessTTLSeconds:      int64(envOrInt("ACCESS_TTL_SECONDS", 14400)),
		RefreshTTLSeconds:     int64(envOrInt("REFRESH_TTL_SECONDS", 1209600)),
		StoragePath:           envOr("STORAGE_PATH", "storage/files"),
		PublicBaseURL:         strings.TrimRight(envOr("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		SignedURLTTLSeconds:   int64(envOrInt("SIGNED_URL_TTL_SECONDS", 900)),
		MetricsDiskPath:       envOr("METRICS_DISK_PATH", "storage/files"),
		MetricsSampleSeconds:  envOrInt("METRICS_SAMPLE_INTERVAL", 30),
		CorsOrigins:           parseCSV(envOr("CORS_ORIGINS", "")),
		AutosaveDebounceMS:    envOrInt("AUTOSAVE_DEBOUNCE_MS", 2000),
		ContactCachePath:      envOr("CONTACT_CACHE_PATH", "storage/contact-cache.db"),
		ContactRetentionHours: envOrInt("CONTACT_CACHE_RETENTION_HOURS", 24),
		ContactSyncSeconds:    envOrInt("CONTACT_SYNC_INTERVAL", 60),
		PaymentFunctionURL:    envOr("PAYMENT_FUNCTION_URL", ""),
		PaymentWebhookSecret:  envOr("PAYMENT_WEBHOOK_SECRET", ""),
		SMTP: SMTPConfig{
			Host:     envOr("SMTP_HOST", ""),
			Port:     envOrInt("SMTP_PORT", 587),
			User:     envOr("SMTP_USER", ""),
			Password: envOr("SMTP_PASS", ""),
			From:     envOr("SMTP_FROM", ""),
		},
		CatalogPath:    envOr("CATALOG_PATH", ""),
		LogoHeaderPath: envOr("LOGO_HEADER_PATH", ""),
		LogoFooterPath: envOr("LOGO_FOOTER_PATH", ""),
		AdminEmail:     envOr("ADMIN_EMAIL", ""),
		AdminPassword:  envOr("ADMIN_PASSWORD", ""),
	}
}

func mustEnv(key string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		panic("missing env var: " + key)
	}
	return value
}

func envOr(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		value := strings.TrimSpace(part)
		if value != "" {
			items = append(items, value)
		}
	}
	return items
}
