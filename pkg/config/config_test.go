package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type testConfig struct {
	Database struct {
		DSN      string `yaml:"dsn" json:"dsn"`
		MaxConns int    `yaml:"max_conns" json:"max_conns"`
	} `yaml:"database" json:"database"`
	Server struct {
		Port    int           `yaml:"port" json:"port"`
		Host    string        `yaml:"host" json:"host"`
		Timeout time.Duration `yaml:"timeout" json:"timeout"`
		Origins []string      `yaml:"origins" json:"origins"`
		Debug   bool          `yaml:"debug" json:"debug"`
	} `yaml:"server" json:"server"`
	Log struct {
		Format string `yaml:"format"`
	} `yaml:"log"`
}

const sampleYAML = `
database:
  dsn: "postgres://localhost/test"
  max_conns: 25
server:
  port: 8080
  host: "localhost"
  timeout: 15s
`

func TestLoadYAML(t *testing.T) {
	path := createTempFile(t, "test.yaml", sampleYAML)

	var cfg testConfig
	if err := Load(path, &cfg); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Database.DSN != "postgres://localhost/test" {
		t.Errorf("Database.DSN = %v", cfg.Database.DSN)
	}
	if cfg.Database.MaxConns != 25 {
		t.Errorf("Database.MaxConns = %v, want 25", cfg.Database.MaxConns)
	}
	if cfg.Server.Timeout != 15*time.Second {
		t.Errorf("Server.Timeout = %v, want 15s", cfg.Server.Timeout)
	}
}

func TestLoadJSON(t *testing.T) {
	path := createTempFile(t, "test.json", `{"database":{"dsn":"postgres://localhost/test","max_conns":25},"server":{"port":8080}}`)

	var cfg testConfig
	if err := Load(path, &cfg); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Database.DSN != "postgres://localhost/test" || cfg.Server.Port != 8080 {
		t.Errorf("unexpected config: %+v", cfg)
	}
}

func TestLoadWithEnv(t *testing.T) {
	path := createTempFile(t, "test.yaml", sampleYAML)

	t.Setenv("APP_DATABASE_DSN", "postgres://env/test")
	t.Setenv("APP_SERVER_PORT", "9090")
	t.Setenv("APP_SERVER_TIMEOUT", "2m")
	t.Setenv("APP_SERVER_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("APP_SERVER_DEBUG", "true")

	var cfg testConfig
	if err := LoadWithEnv(path, "APP", &cfg); err != nil {
		t.Fatalf("LoadWithEnv failed: %v", err)
	}
	if cfg.Database.DSN != "postgres://env/test" {
		t.Errorf("Database.DSN = %v, want postgres://env/test", cfg.Database.DSN)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %v, want 9090", cfg.Server.Port)
	}
	if cfg.Server.Host != "localhost" {
		t.Errorf("Server.Host = %v, want localhost", cfg.Server.Host)
	}
	if cfg.Server.Timeout != 2*time.Minute {
		t.Errorf("Server.Timeout = %v, want 2m", cfg.Server.Timeout)
	}
	if len(cfg.Server.Origins) != 2 || cfg.Server.Origins[1] != "http://b.test" {
		t.Errorf("Server.Origins = %v", cfg.Server.Origins)
	}
	if !cfg.Server.Debug {
		t.Error("Server.Debug should be true")
	}
}

func TestLoadWithEnv_InvalidValue(t *testing.T) {
	t.Setenv("APP_SERVER_PORT", "eighty")

	var cfg testConfig
	if err := LoadWithEnv("", "APP", &cfg); err == nil {
		t.Fatal("expected error for non-numeric port")
	}
}

func TestLoadOptional_MissingFile(t *testing.T) {
	t.Setenv("APP_DATABASE_DSN", "file::memory:")

	var cfg testConfig
	cfg.Server.Port = 8080
	if err := LoadOptional(filepath.Join(t.TempDir(), "absent.yaml"), "APP", &cfg); err != nil {
		t.Fatalf("LoadOptional failed: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("defaults should survive, got port %d", cfg.Server.Port)
	}
	if cfg.Database.DSN != "file::memory:" {
		t.Errorf("Database.DSN = %v", cfg.Database.DSN)
	}

	if err := LoadWithEnv(filepath.Join(t.TempDir(), "absent.yaml"), "APP", &cfg); err == nil {
		t.Error("LoadWithEnv should fail on a missing file")
	}
}

func TestRequiredFields(t *testing.T) {
	var cfg testConfig
	cfg.Database.MaxConns = 25

	validator := RequiredFields("Database.DSN")
	if err := validator.Validate(&cfg); err == nil {
		t.Error("RequiredFields should fail for empty DSN")
	}

	cfg.Database.DSN = "postgres://localhost/test"
	if err := validator.Validate(&cfg); err != nil {
		t.Errorf("RequiredFields should pass for valid config: %v", err)
	}

	if err := RequiredFields("Database.Nope").Validate(&cfg); err == nil {
		t.Error("unknown fields should be reported")
	}
}

func TestRangeValidator(t *testing.T) {
	var cfg testConfig
	cfg.Database.MaxConns = 5

	validator := RangeValidator("Database.MaxConns", 10, 100)
	if err := validator.Validate(&cfg); err == nil {
		t.Error("RangeValidator should fail for value below minimum")
	}

	cfg.Database.MaxConns = 50
	if err := validator.Validate(&cfg); err != nil {
		t.Errorf("RangeValidator should pass for value in range: %v", err)
	}
}

func TestStringLengthAndOneOf(t *testing.T) {
	var cfg testConfig
	cfg.Server.Host = "h"
	cfg.Log.Format = "xml"

	err := Validate(&cfg,
		StringLengthValidator("Server.Host", 1, 255),
		OneOfValidator("Log.Format", "text", "json"),
	)
	if err == nil {
		t.Fatal("expected OneOfValidator to reject xml")
	}

	cfg.Log.Format = "JSON"
	if err := OneOfValidator("Log.Format", "text", "json").Validate(&cfg); err != nil {
		t.Errorf("case-insensitive match should pass: %v", err)
	}

	cfg.Server.Host = ""
	if err := StringLengthValidator("Server.Host", 1, 255).Validate(&cfg); err == nil {
		t.Error("empty host should fail length validation")
	}
}

func createTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	return path
}
