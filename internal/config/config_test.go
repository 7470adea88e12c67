package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("STORE_DRIVER", "memory")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.IdempotencyTTL != 48*time.Hour {
		t.Fatalf("expected 48h idempotency ttl, got %s", cfg.IdempotencyTTL)
	}
	if cfg.StoreDriver != DriverMemory {
		t.Fatalf("expected memory driver, got %s", cfg.StoreDriver)
	}
}

func TestLoadConfig_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	content := "PORT=9090\nREQUEST_TIMEOUT=3s\nRATE_LIMIT_BURST=7\nSTORE_DRIVER=memory\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	// godotenv never overrides variables that are already set, so make sure
	// the keys under test are absent.
	for _, k := range []string{"PORT", "REQUEST_TIMEOUT", "RATE_LIMIT_BURST", "STORE_DRIVER"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "9090" {
		t.Fatalf("expected port from file, got %s", cfg.Port)
	}
	if cfg.RequestTimeout != 3*time.Second {
		t.Fatalf("expected 3s timeout, got %s", cfg.RequestTimeout)
	}
	if cfg.RateLimitBurst != 7 {
		t.Fatalf("expected burst 7, got %d", cfg.RateLimitBurst)
	}
}

func TestValidate(t *testing.T) {
	base := Config{
		StoreDriver:        DriverDynamoDB,
		RefundRequestTable: "refund_requests",
		IdempotencyTable:   "idempotency",
		JWTSecret:          "s3cret",
		RateLimitRPS:       1,
		RateLimitBurst:     1,
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	bad := base
	bad.StoreDriver = "postgres"
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for unknown driver")
	}

	bad = base
	bad.IdempotencyTable = ""
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for missing idempotency table")
	}

	bad = base
	bad.Env = "production"
	bad.JWTSecret = defaultJWTSecret
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for default secret in production")
	}
}
