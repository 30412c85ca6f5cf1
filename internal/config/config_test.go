package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORAGE_DRIVER", "")
	t.Setenv("REDIS_URL", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage.Driver != DriverSQLite {
		t.Fatalf("driver = %q", cfg.Storage.Driver)
	}
	if cfg.JWT.TTL != 24*time.Hour {
		t.Fatalf("jwt ttl = %v", cfg.JWT.TTL)
	}
	if cfg.Redis.URL != "" {
		t.Fatalf("redis should be disabled by default, got %q", cfg.Redis.URL)
	}
	if cfg.Address() != "0.0.0.0:8080" {
		t.Fatalf("address = %q", cfg.Address())
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "test.env")
	content := "JWT_SECRET=from-file\nSTORAGE_DRIVER=Postgres\nOUTBOX_SYNC_INTERVAL=5\nJWT_TTL=90m\nDB_USER=alice\nDB_PASSWORD=pw\n"
	if err := os.WriteFile(file, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"JWT_SECRET", "STORAGE_DRIVER", "OUTBOX_SYNC_INTERVAL", "JWT_TTL", "DB_USER", "DB_PASSWORD", "DATABASE_URL"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.JWT.Secret != "from-file" || cfg.Storage.Driver != DriverPostgres {
		t.Fatalf("env file not applied: %+v", cfg.JWT)
	}
	if cfg.Outbox.SyncInterval != 5*time.Second || cfg.JWT.TTL != 90*time.Minute {
		t.Fatalf("durations: %v %v", cfg.Outbox.SyncInterval, cfg.JWT.TTL)
	}
	if cfg.Database.URL != "postgres://alice:pw@localhost:5432/taskhub?sslmode=disable" {
		t.Fatalf("database url = %q", cfg.Database.URL)
	}
}

func TestValidate(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	if _, err := Load(filepath.Join(t.TempDir(), "none.env")); err == nil {
		t.Fatal("expected error without JWT_SECRET")
	}

	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORAGE_DRIVER", "mongo")
	if _, err := Load(filepath.Join(t.TempDir(), "none.env")); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
