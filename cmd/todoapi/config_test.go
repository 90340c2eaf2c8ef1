package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadConfig_SampleFile(t *testing.T) {
	t.Setenv("TODOAPI_AUTH_SECRET_KEY", "sample-secret-0123456789")
	t.Setenv("TODOAPI_DATABASE_DSN", ":memory:")
	t.Setenv("TODOAPI_SERVER_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := loadConfig("config.yaml")
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.Auth.SecretKey != "sample-secret-0123456789" || cfg.Database.DSN != ":memory:" {
		t.Errorf("env overrides not applied: %+v %+v", cfg.Auth, cfg.Database)
	}
	if got := cfg.Server.AllowedOrigins; len(got) != 2 || got[1] != "https://b.example" {
		t.Errorf("allowed_origins = %v", got)
	}
	if cfg.Tokens.RefreshTTL != 7*24*time.Hour || cfg.Tokens.AccessTTL != 30*time.Minute {
		t.Errorf("tokens = %+v", cfg.Tokens)
	}
	if cfg.Auth.Issuer != "todoapi" || cfg.Log.Format != "json" {
		t.Errorf("file values not loaded: %+v %+v", cfg.Auth, cfg.Log)
	}
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("TODOAPI_AUTH_SECRET_KEY", "defaults-secret-0123456789")

	cfg, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	want := DefaultConfig()
	if cfg.Server.Addr != want.Server.Addr || cfg.Pagination != want.Pagination || cfg.Database.Driver != want.Database.Driver {
		t.Errorf("defaults not kept: %+v", cfg)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "no secret",
			yaml:    "auth:\n  secret_key: \"\"\n",
			wantErr: "Auth.SecretKey",
		},
		{
			name:    "short secret",
			yaml:    "auth:\n  secret_key: short\n",
			wantErr: "Auth.SecretKey",
		},
		{
			name:    "unknown driver",
			yaml:    "auth:\n  secret_key: long-enough-secret-key\ndatabase:\n  driver: oracle\n",
			wantErr: "Database.Driver",
		},
		{
			name:    "page size above max",
			yaml:    "auth:\n  secret_key: long-enough-secret-key\npagination:\n  page_size: 50\n  max_page_size: 10\n",
			wantErr: "page_size",
		},
		{
			name:    "bad utilization",
			yaml:    "auth:\n  secret_key: long-enough-secret-key\nserver:\n  utilization_percent: 150\n",
			wantErr: "Server.UtilizationPercent",
		},
		{
			name:    "bad log format",
			yaml:    "auth:\n  secret_key: long-enough-secret-key\nlog:\n  format: xml\n",
			wantErr: "Log.Format",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.yaml), 0o600); err != nil {
				t.Fatal(err)
			}
			_, err := loadConfig(path)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("loadConfig() error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}
