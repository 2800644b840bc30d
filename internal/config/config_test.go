package config

import (
	"bytes"
	"os"
	"testing"
	"time"
)

func TestGetEnv(t *testing.T) {
	os.Setenv("TEST_GET_ENV", "test_value")
	defer os.Unsetenv("TEST_GET_ENV")

	if got := getEnv("TEST_GET_ENV", "default"); got != "test_value" {
		t.Errorf("got %q", got)
	}
	if got := getEnv("TEST_GET_ENV_MISSING", "default"); got != "default" {
		t.Errorf("got %q", got)
	}
}

func TestGetEnvInt(t *testing.T) {
	os.Setenv("TEST_GET_INT", "42")
	os.Setenv("TEST_GET_INT_BAD", "not-a-number")
	defer os.Unsetenv("TEST_GET_INT")
	defer os.Unsetenv("TEST_GET_INT_BAD")

	if got := getEnvInt("TEST_GET_INT", 7); got != 42 {
		t.Errorf("got %d", got)
	}
	if got := getEnvInt("TEST_GET_INT_BAD", 7); got != 7 {
		t.Errorf("invalid values fall back: got %d", got)
	}
	if got := getEnvInt("TEST_GET_INT_MISSING", 7); got != 7 {
		t.Errorf("got %d", got)
	}
}

func TestGetEnvDuration(t *testing.T) {
	os.Setenv("TEST_GET_DUR", "90s")
	defer os.Unsetenv("TEST_GET_DUR")

	if got := getEnvDuration("TEST_GET_DUR", time.Minute); got != 90*time.Second {
		t.Errorf("got %v", got)
	}
	if got := getEnvDuration("TEST_GET_DUR_MISSING", time.Minute); got != time.Minute {
		t.Errorf("got %v", got)
	}
}

func TestGetEnvSlice(t *testing.T) {
	os.Setenv("TEST_GET_SLICE", "a,b,c")
	defer os.Unsetenv("TEST_GET_SLICE")

	got := getEnvSlice("TEST_GET_SLICE", nil)
	if len(got) != 3 || got[0] != "a" || got[2] != "c" {
		t.Errorf("got %v", got)
	}
}

func TestGetEnvWithFallback(t *testing.T) {
	os.Setenv("TEST_FALLBACK_SECOND", "second")
	defer os.Unsetenv("TEST_FALLBACK_SECOND")

	if got := getEnvWithFallback("TEST_FALLBACK_FIRST", "TEST_FALLBACK_SECOND", "dflt"); got != "second" {
		t.Errorf("got %q", got)
	}
	if got := getEnvWithFallback("TEST_FB_NONE_A", "TEST_FB_NONE_B", "dflt"); got != "dflt" {
		t.Errorf("got %q", got)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d", cfg.Port)
	}
	if cfg.WorkerPollInterval != 2*time.Second || cfg.WorkerConcurrency != 4 {
		t.Errorf("worker defaults: %v / %d", cfg.WorkerPollInterval, cfg.WorkerConcurrency)
	}
	if cfg.StaleJobAge != time.Hour {
		t.Errorf("StaleJobAge = %v", cfg.StaleJobAge)
	}
	if len(cfg.SigningKey) != 32 {
		t.Errorf("signing key must be 32 bytes, got %d", len(cfg.SigningKey))
	}
	if cfg.JWTSecret == "" {
		t.Error("a random secret must be generated when none is set")
	}
}

func TestDeriveSigningKeyDeterministic(t *testing.T) {
	k1 := deriveSigningKey("secret-a")
	k2 := deriveSigningKey("secret-a")
	k3 := deriveSigningKey("secret-b")

	if !bytes.Equal(k1, k2) {
		t.Error("same secret must derive the same key")
	}
	if bytes.Equal(k1, k3) {
		t.Error("different secrets must derive different keys")
	}
	if len(k1) != 32 {
		t.Errorf("key length = %d", len(k1))
	}
}

func TestStorageEnabledRequiresBucketAndEndpoint(t *testing.T) {
	os.Setenv("BUCKET_NAME", "easel-test")
	defer os.Unsetenv("BUCKET_NAME")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.StorageEnabled {
		t.Error("bucket without endpoint must leave storage disabled")
	}

	os.Setenv("AWS_ENDPOINT_URL_S3", "https://fly.storage.tigris.dev")
	defer os.Unsetenv("AWS_ENDPOINT_URL_S3")

	cfg, err = Load()
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.StorageEnabled {
		t.Error("bucket plus endpoint must enable storage")
	}
}
