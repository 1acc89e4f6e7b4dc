package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("ADMIN_EMAIL", "")
	t.Setenv("AUTO_COMPLETE_INTERVAL", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" || !cfg.IsDevelopment() {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.AdminEmail != "" {
		t.Fatalf("expected no admin email by default, got %q", cfg.AdminEmail)
	}
	if !cfg.AutoCompleteEnabled {
		t.Fatalf("expected auto completion enabled by default")
	}
	if cfg.AutoCompleteInterval != time.Hour {
		t.Fatalf("expected default completion interval, got %s", cfg.AutoCompleteInterval)
	}
	if cfg.ChangeChannel != "appointments:changes" {
		t.Fatalf("unexpected change channel %q", cfg.ChangeChannel)
	}
	if cfg.CORSAllowedOrigins != nil {
		t.Fatalf("expected no CORS origins, got %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("PUBLIC_BASE_URL", "https://agenda.example.com/")
	t.Setenv("ADMIN_EMAIL", " doctora@example.com ")
	t.Setenv("AUTO_COMPLETE_ENABLED", "false")
	t.Setenv("AUTO_COMPLETE_INTERVAL", "15m")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, ,https://b.example.com")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 192.168.1.10")
	t.Setenv("PUBLIC_RATE_LIMIT", "2.5")
	t.Setenv("DEFAULT_PHONE_REGION", "mx")
	t.Setenv("EMAIL_PROVIDER", " SES ")

	cfg := Load()
	if cfg.Port != "9090" || cfg.Env != "production" || cfg.IsDevelopment() {
		t.Fatalf("unexpected port/env: %s/%s", cfg.Port, cfg.Env)
	}
	if cfg.PublicBaseURL != "https://agenda.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %s", cfg.PublicBaseURL)
	}
	if cfg.AdminEmail != "doctora@example.com" {
		t.Fatalf("expected trimmed admin email, got %q", cfg.AdminEmail)
	}
	if cfg.AutoCompleteEnabled {
		t.Fatalf("expected auto completion disabled")
	}
	if cfg.AutoCompleteInterval != 15*time.Minute {
		t.Fatalf("expected 15m interval, got %s", cfg.AutoCompleteInterval)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example.com" {
		t.Fatalf("unexpected origins %v", cfg.CORSAllowedOrigins)
	}
	if cfg.PublicRateLimit != 2.5 {
		t.Fatalf("expected rate 2.5, got %v", cfg.PublicRateLimit)
	}
	if cfg.DefaultPhoneRegion != "MX" {
		t.Fatalf("expected upper-cased region, got %s", cfg.DefaultPhoneRegion)
	}
	if cfg.EmailProvider != "ses" {
		t.Fatalf("expected normalized provider, got %s", cfg.EmailProvider)
	}
	if len(cfg.TrustedProxies) != 2 || cfg.TrustedProxies[0] != "10.0.0.0/8" {
		t.Fatalf("unexpected trusted proxies %v", cfg.TrustedProxies)
	}
}

func TestLocationFallsBackToUTC(t *testing.T) {
	cfg := &Config{ClinicTimezone: "Not/AZone"}
	if cfg.Location() != time.UTC {
		t.Fatalf("expected UTC fallback")
	}
	cfg.ClinicTimezone = "America/Mexico_City"
	if cfg.Location().String() != "America/Mexico_City" {
		t.Fatalf("unexpected location %s", cfg.Location())
	}
}
