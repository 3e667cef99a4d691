// Package config provides centralized configuration for the draftroom server.
// All configurable values are loaded from environment variables with sensible defaults.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all server configuration values.
type Config struct {
	// Port is the HTTP server listen port.
	Port string

	// DBPath is the path to the SQLite database file.
	DBPath string

	// StorageCapBytes is the global byte cap for stored draft assets.
	StorageCapBytes int64

	// RemoteBaseURL is the base URL of the remote content store API.
	RemoteBaseURL string

	// RemoteToken is the bearer token for the remote content store.
	RemoteToken string

	// RewriteKey is the API key for the AI rewrite endpoint.
	RewriteKey string

	// RewriteBaseURL overrides the rewrite endpoint (OpenAI-compatible).
	RewriteBaseURL string

	// RewriteModel is the default model identifier for rewrite calls.
	RewriteModel string

	// AutosaveDelay is the idle debounce before in-progress edits persist.
	AutosaveDelay time.Duration

	// HTTPTimeout is the timeout for outgoing HTTP requests (ingest, rewrite, commit).
	HTTPTimeout time.Duration

	// CORSOrigin is the allowed CORS origin. Defaults to "*".
	CORSOrigin string
}

// Load reads configuration from environment variables, applying defaults.
func Load() Config {
	return Config{
		Port:            envOr("PORT", "8080"),
		DBPath:          envOr("DB_PATH", "draftroom.db"),
		StorageCapBytes: envInt64("DRAFT_STORAGE_CAP_BYTES", 100<<20),
		RemoteBaseURL:   envOr("REMOTE_API_URL", "http://localhost:9000/api"),
		RemoteToken:     os.Getenv("REMOTE_API_TOKEN"),
		RewriteKey:      os.Getenv("REWRITE_API_KEY"),
		RewriteBaseURL:  envOr("REWRITE_API_URL", "https://api.openai.com/v1"),
		RewriteModel:    envOr("REWRITE_MODEL", "gpt-4o-mini"),
		AutosaveDelay:   envDuration("AUTOSAVE_DELAY", 2*time.Second),
		HTTPTimeout:     envDuration("HTTP_TIMEOUT", 60*time.Second),
		CORSOrigin:      envOr("CORS_ORIGIN", "*"),
	}
}

// UseStubRewrite returns true when no rewrite API key is configured.
func (c Config) UseStubRewrite() bool {
	return c.RewriteKey == ""
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}
