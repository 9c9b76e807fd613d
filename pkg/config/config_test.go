package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Success(t *testing.T) {
	setMinimalEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}

	if cfg.App.Env != "production" {
		t.Fatalf("expected App.Env to be production, got %q", cfg.App.Env)
	}
	if cfg.API.Timeout != 30*time.Second {
		t.Fatalf("expected default api timeout 30s, got %v", cfg.API.Timeout)
	}
	if cfg.API.PollInterval != 15*time.Second {
		t.Fatalf("expected default poll interval 15s, got %v", cfg.API.PollInterval)
	}
	if cfg.OTP.TTL != 5*time.Minute || cfg.OTP.MaxAttempts != 3 || cfg.OTP.CodeLength != 6 {
		t.Fatalf("unexpected otp defaults %+v", cfg.OTP)
	}
	if cfg.OTP.AllowedDomain != "gmail.com" {
		t.Fatalf("unexpected otp domain %q", cfg.OTP.AllowedDomain)
	}
	if cfg.State.Normalized() != StateBackendMemory {
		t.Fatalf("expected memory state backend, got %q", cfg.State.Backend)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	setMinimalEnv(t)
	if err := os.Unsetenv(EnvAPIBaseURL); err != nil {
		t.Fatalf("failed to unset %s: %v", EnvAPIBaseURL, err)
	}

	if _, err := Load(); err == nil {
		t.Fatal("expected missing required env to return an error")
	}
}

func TestLoad_SQLiteBackendRequiresDSN(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvStateBackend, "sqlite")

	if _, err := Load(); err == nil {
		t.Fatal("expected sqlite backend without dsn to fail")
	}

	t.Setenv(EnvDBDSN, "file:state.db")
	if _, err := Load(); err != nil {
		t.Fatalf("expected sqlite backend with dsn to load, got %v", err)
	}
}

func TestLoad_LegacyPostgresDSN(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvDBHost, "db.local")
	t.Setenv(EnvDBUser, "drop")
	t.Setenv(EnvDBName, "client")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}
	if cfg.DB.DSN != "postgres://drop@db.local:5432/client?sslmode=disable" {
		t.Fatalf("unexpected dsn %q", cfg.DB.DSN)
	}
	if cfg.DB.Driver != StateBackendPostgres {
		t.Fatalf("expected postgres driver, got %q", cfg.DB.Driver)
	}
}

func TestLoad_UnknownStateBackend(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvStateBackend, "floppy")

	if _, err := Load(); err == nil {
		t.Fatal("expected unknown backend to fail")
	}
}

func setMinimalEnv(t *testing.T) {
	t.Helper()

	t.Setenv(EnvAppEnv, "production")
	t.Setenv(EnvPort, "8081")
	t.Setenv(EnvAPIBaseURL, "https://api.localdrop.test/")
	t.Setenv(EnvJWTSecret, "secret")
}
