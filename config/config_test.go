package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SERVER_PORT", "")
	t.Setenv("RATES_INTERVAL", "")
	t.Setenv("SERVER_ALLOWED_ORIGINS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() unexpected error = %v", err)
	}
	if cfg.HTTP.Port != defaultPort {
		t.Errorf("Port = %d, want %d", cfg.HTTP.Port, defaultPort)
	}
	if cfg.Rates.Interval != time.Hour {
		t.Errorf("Rates.Interval = %v, want 1h", cfg.Rates.Interval)
	}
	if cfg.Rates.Path != "$.rates" {
		t.Errorf("Rates.Path = %q, want $.rates", cfg.Rates.Path)
	}
	if len(cfg.HTTP.AllowedOrigins) != 0 {
		t.Errorf("AllowedOrigins = %v, want none", cfg.HTTP.AllowedOrigins)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("RATES_INTERVAL", "15m")
	t.Setenv("SERVER_ALLOWED_ORIGINS", "http://localhost:3000, https://app.example.com,")
	t.Setenv("SUPABASE_URL", "https://project.supabase.co/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() unexpected error = %v", err)
	}
	if cfg.HTTP.Addr() != "0.0.0.0:9090" {
		t.Errorf("Addr() = %q", cfg.HTTP.Addr())
	}
	if cfg.Rates.Interval != 15*time.Minute {
		t.Errorf("Rates.Interval = %v, want 15m", cfg.Rates.Interval)
	}
	if len(cfg.HTTP.AllowedOrigins) != 2 {
		t.Errorf("AllowedOrigins = %v, want 2 entries", cfg.HTTP.AllowedOrigins)
	}
	if cfg.Supabase.URL != "https://project.supabase.co" {
		t.Errorf("Supabase.URL = %q, want trailing slash trimmed", cfg.Supabase.URL)
	}
}

func TestLoad_Invalid(t *testing.T) {
	testCases := map[string]string{
		"SERVER_PORT":       "99999",
		"SYNC_LOAD_TIMEOUT": "soon",
	}
	for key, value := range testCases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Errorf("Load() with %s=%q: expected an error", key, value)
			}
		})
	}
}

func TestLoad_File(t *testing.T) {
	t.Setenv("REDIS_CHANNEL", "")
	os.Unsetenv("REDIS_CHANNEL")
	t.Setenv("REDIS_DB", "3")

	file := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(file, []byte("REDIS_CHANNEL=alerts:test\nREDIS_DB=7\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("Load() unexpected error = %v", err)
	}
	if cfg.Redis.Channel != "alerts:test" {
		t.Errorf("Redis.Channel = %q, want the file value", cfg.Redis.Channel)
	}
	if cfg.Redis.DB != 3 {
		t.Errorf("Redis.DB = %d, want the environment to win", cfg.Redis.DB)
	}
}
