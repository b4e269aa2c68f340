package config

import (
	"os"
	"testing"
	"time"

	"github.com/web3-frozen/defi-overview/internal/llama"
)

func TestEnvOr(t *testing.T) {
	// Unset key returns fallback
	os.Unsetenv("TEST_ENVOR_KEY")
	if got := envOr("TEST_ENVOR_KEY", "default"); got != "default" {
		t.Errorf("envOr unset key = %q, want %q", got, "default")
	}

	// Set key returns value
	os.Setenv("TEST_ENVOR_KEY", "custom")
	defer os.Unsetenv("TEST_ENVOR_KEY")
	if got := envOr("TEST_ENVOR_KEY", "default"); got != "custom" {
		t.Errorf("envOr set key = %q, want %q", got, "custom")
	}

	// Empty string returns fallback
	os.Setenv("TEST_ENVOR_KEY", "")
	if got := envOr("TEST_ENVOR_KEY", "fallback"); got != "fallback" {
		t.Errorf("envOr empty key = %q, want %q", got, "fallback")
	}
}

func TestDurationOr(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"", time.Minute},
		{"90s", 90 * time.Second},
		{"2h", 2 * time.Hour},
		{"soon", time.Minute},
		{"-5s", time.Minute},
	}
	defer os.Unsetenv("TEST_DURATION_KEY")
	for _, tt := range tests {
		os.Setenv("TEST_DURATION_KEY", tt.value)
		if got := durationOr("TEST_DURATION_KEY", time.Minute); got != tt.want {
			t.Errorf("durationOr(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestBoolOr(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"", false},
		{"true", true},
		{"1", true},
		{"false", false},
		{"maybe", false},
	}
	defer os.Unsetenv("TEST_BOOL_KEY")
	for _, tt := range tests {
		os.Setenv("TEST_BOOL_KEY", tt.value)
		if got := boolOr("TEST_BOOL_KEY", false); got != tt.want {
			t.Errorf("boolOr(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	// Clear all relevant env vars
	for _, k := range []string{
		"PORT", "DATABASE_URL", "FRONTEND_ORIGIN", "CORS_PREVIEW_ORIGIN", "REDIS_URL", "REDIS_PASSWORD",
		"LLAMA_API_URL", "YIELDS_API_URL", "METADATA_REFRESH", "CACHE_TTL", "HTTP_TIMEOUT",
		"GOVERNANCE_PROPOSALS", "INFISICAL_CLIENT_ID", "INFISICAL_CLIENT_SECRET",
	} {
		os.Unsetenv(k)
	}

	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want %q", cfg.Port, "8080")
	}
	if cfg.FrontendOrigin != "*" {
		t.Errorf("FrontendOrigin = %q, want %q", cfg.FrontendOrigin, "*")
	}
	if cfg.PreviewOrigin != "" {
		t.Errorf("PreviewOrigin = %q, want empty", cfg.PreviewOrigin)
	}
	if cfg.DatabaseURL != "" {
		t.Errorf("DatabaseURL = %q, want empty", cfg.DatabaseURL)
	}
	if cfg.RedisURL != "" {
		t.Errorf("RedisURL = %q, want empty", cfg.RedisURL)
	}
	if cfg.Endpoints != llama.DefaultEndpoints() {
		t.Errorf("Endpoints = %+v, want defaults", cfg.Endpoints)
	}
	if cfg.MetadataRefresh != 10*time.Minute {
		t.Errorf("MetadataRefresh = %v, want 10m", cfg.MetadataRefresh)
	}
	if cfg.CacheTTL != 5*time.Minute {
		t.Errorf("CacheTTL = %v, want 5m", cfg.CacheTTL)
	}
	if cfg.HTTPTimeout != 30*time.Second {
		t.Errorf("HTTPTimeout = %v, want 30s", cfg.HTTPTimeout)
	}
	if cfg.GovernanceProposals {
		t.Error("GovernanceProposals should default to false")
	}
}

func TestLoadFromEnv(t *testing.T) {
	os.Setenv("PORT", "9090")
	os.Setenv("DATABASE_URL", "postgres://test")
	os.Setenv("FRONTEND_ORIGIN", "http://localhost:3000")
	os.Setenv("LLAMA_API_URL", "http://llama.local")
	os.Setenv("CACHE_TTL", "45s")
	os.Setenv("GOVERNANCE_PROPOSALS", "true")
	defer func() {
		os.Unsetenv("PORT")
		os.Unsetenv("DATABASE_URL")
		os.Unsetenv("FRONTEND_ORIGIN")
		os.Unsetenv("LLAMA_API_URL")
		os.Unsetenv("CACHE_TTL")
		os.Unsetenv("GOVERNANCE_PROPOSALS")
	}()

	cfg := Load()

	if cfg.Port != "9090" {
		t.Errorf("Port = %q, want %q", cfg.Port, "9090")
	}
	if cfg.DatabaseURL != "postgres://test" {
		t.Errorf("DatabaseURL = %q, want %q", cfg.DatabaseURL, "postgres://test")
	}
	if cfg.FrontendOrigin != "http://localhost:3000" {
		t.Errorf("FrontendOrigin = %q, want %q", cfg.FrontendOrigin, "http://localhost:3000")
	}
	if cfg.Endpoints.Llama != "http://llama.local" {
		t.Errorf("Endpoints.Llama = %q, want %q", cfg.Endpoints.Llama, "http://llama.local")
	}
	if cfg.Endpoints.Yields != llama.DefaultEndpoints().Yields {
		t.Errorf("Endpoints.Yields = %q, want default", cfg.Endpoints.Yields)
	}
	if cfg.CacheTTL != 45*time.Second {
		t.Errorf("CacheTTL = %v, want 45s", cfg.CacheTTL)
	}
	if !cfg.GovernanceProposals {
		t.Error("GovernanceProposals should be true")
	}
}
