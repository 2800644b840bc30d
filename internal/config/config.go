// Package config handles application configuration.
package config

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/hkdf"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	Port    int
	BaseURL string

	// Database
	DatabaseURL string

	// Authentication
	JWTSecret     string
	SessionExpiry time.Duration
	SigningKey    []byte // 32-byte HMAC key for session tokens, derived from JWTSecret

	// Image providers
	GeminiAPIKey string
	GeminiBaseURL string
	RelayAPIKey  string
	RelayBaseURL string

	// Stripe
	StripeSecretKey     string
	StripeWebhookSecret string

	// CORS
	CORSOrigins []string

	// Object Storage (Tigris/S3-compatible)
	StorageEnabled   bool
	StorageEndpoint  string // AWS_ENDPOINT_URL_S3 for Tigris
	StorageAccessKey string // AWS_ACCESS_KEY_ID
	StorageSecretKey string // AWS_SECRET_ACCESS_KEY
	StorageBucket    string // Bucket name (one per environment)
	StorageRegion    string // Region (auto for Tigris)
	PresignExpiry    time.Duration

	// Worker
	WorkerPollInterval        time.Duration // How often to poll for new jobs (default 2s)
	WorkerConcurrency         int           // Number of concurrent workers (default 4)
	WorkerShutdownGracePeriod time.Duration // Max time to wait for running jobs during shutdown (default 5m)

	// Stale job sweep
	StaleJobAge time.Duration // Jobs processing longer than this are failed and refunded (default 1h)
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:          getEnvInt("PORT", 8080),
		BaseURL:       getEnv("BASE_URL", "http://localhost:8080"),
		DatabaseURL:   getEnv("DATABASE_URL", "file:easel.db?_journal=WAL&_timeout=5000"),
		JWTSecret:     getEnv("JWT_SECRET", ""),
		SessionExpiry: getEnvDuration("SESSION_EXPIRY", 720*time.Hour),

		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		GeminiBaseURL: getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
		RelayAPIKey:   getEnv("RELAY_API_KEY", ""),
		RelayBaseURL:  getEnv("RELAY_BASE_URL", "https://api.kie.ai"),

		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),

		CORSOrigins: getEnvSlice("CORS_ORIGINS", []string{"http://localhost:3000"}),

		// Object Storage (Tigris/S3-compatible) - uses Fly's standard env vars
		// BUCKET_NAME is set automatically by `fly storage create`
		StorageEndpoint:  getEnv("AWS_ENDPOINT_URL_S3", ""),
		StorageAccessKey: getEnv("AWS_ACCESS_KEY_ID", ""),
		StorageSecretKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		StorageBucket:    getEnvWithFallback("BUCKET_NAME", "STORAGE_BUCKET", ""),
		StorageRegion:    getEnv("AWS_REGION", "auto"),
		PresignExpiry:    getEnvDuration("PRESIGN_EXPIRY", time.Hour),
	}

	// Enable storage if bucket is configured
	cfg.StorageEnabled = cfg.StorageBucket != "" && cfg.StorageEndpoint != ""

	// Worker configuration
	cfg.WorkerPollInterval = getEnvDuration("WORKER_POLL_INTERVAL", 2*time.Second)
	cfg.WorkerConcurrency = getEnvInt("WORKER_CONCURRENCY", 4)
	cfg.WorkerShutdownGracePeriod = getEnvDuration("WORKER_SHUTDOWN_GRACE_PERIOD", 5*time.Minute)

	// Stale job sweep
	cfg.StaleJobAge = getEnvDuration("STALE_JOB_AGE", time.Hour)

	// Generate a random JWT secret if not provided; sessions won't survive
	// restarts in that case, which is fine for local development.
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = generateRandomSecret(64)
	}
	cfg.SigningKey = deriveSigningKey(cfg.JWTSecret)

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

func getEnvWithFallback(primary, fallback, defaultValue string) string {
	if value := os.Getenv(primary); value != "" {
		return value
	}
	if value := os.Getenv(fallback); value != "" {
		return value
	}
	return defaultValue
}

func generateRandomSecret(length int) string {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback (should never happen)
		return "dev-secret-change-me-" + base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("%d", time.Now().UnixNano())))
	}
	return base64.URLEncoding.EncodeToString(bytes)
}

// deriveSigningKey creates a 32-byte HMAC key from a secret string using HKDF.
// HKDF (HMAC-based Key Derivation Function) is appropriate for deriving keys
// from high-entropy secrets like JWT secrets. For low-entropy passwords, use
// Argon2 instead.
func deriveSigningKey(secret string) []byte {
	// - Salt: fixed but unique to this application
	// - Info: context string to bind the key to its purpose
	salt := []byte("easel-api-signing-key-v1")
	info := []byte("session-token-hmac")

	hkdfReader := hkdf.New(sha256.New, []byte(secret), salt, info)

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdfReader, key); err != nil {
		// This should never happen with valid inputs
		panic("hkdf: failed to derive key: " + err.Error())
	}

	return key
}
