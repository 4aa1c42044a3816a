package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestLoadWritesDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, resolved, err := Load(nil, path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if resolved != path {
		t.Fatalf("resolved path = %q, want %q", resolved, path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config was not written: %v", err)
	}

	def := Default()
	if cfg.Addr != def.Addr || cfg.Storage.Driver != "sqlite" || cfg.JWT.TTL != def.JWT.TTL {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.AllowedOrigins, []string{"*"}) {
		t.Fatalf("unexpected origins %v", cfg.AllowedOrigins)
	}
}

func TestLoadFileAndEnvPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`addr: ":5000"
shutdown_timeout: 9s
storage:
  driver: sqlite
  sqlite_path: /tmp/file.db
nats:
  url: nats://file:4222
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("CHATRELAY_NATS_URL", "nats://env:4222")
	t.Setenv("CHATRELAY_ALLOWED_ORIGINS", "a.example.com,b.example.com")
	t.Setenv("CHATRELAY_JWT_REQUIRED", "true")

	cfg, _, err := Load(nil, path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":5000" || cfg.ShutdownTimeout != 9*time.Second || cfg.Storage.SQLitePath != "/tmp/file.db" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.NATS.URL != "nats://env:4222" {
		t.Fatalf("env should override file, got %q", cfg.NATS.URL)
	}
	if !reflect.DeepEqual(cfg.AllowedOrigins, []string{"a.example.com", "b.example.com"}) {
		t.Fatalf("unexpected origins %v", cfg.AllowedOrigins)
	}
	if !cfg.JWT.Required {
		t.Fatalf("expected jwt.required from env")
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv("CHATRELAY_STORAGE_DRIVER", "cassandra")

	if _, _, err := Load(nil, path); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestUpdateFrom(t *testing.T) {
	cfg := Default()
	cfg.UpdateFrom(Config{Addr: ":9999", LogLevel: "debug"})

	if cfg.Addr != ":9999" || cfg.LogLevel != "debug" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.ShutdownTimeout != Default().ShutdownTimeout {
		t.Fatalf("zero values must not override")
	}
}
