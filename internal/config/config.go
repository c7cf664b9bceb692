// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port               string
	FrontendURL        string
	AllowedOrigins     []string
	DBPath             string
	MaxRequestBodySize int64
	Upstream           UpstreamConfig
	Session            SessionConfig
	Persona            PersonaConfig
	Upload             UploadConfig
	Auth               AuthConfig
	RateLimit          RateLimitConfig
}

// UpstreamConfig controls the generative-language API client.
type UpstreamConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// SessionConfig controls in-memory conversation retention.
// HistoryCap bounds stored turns; PromptWindow bounds the rendered transcript.
type SessionConfig struct {
	HistoryCap    int
	PromptWindow  int
	TTL           time.Duration
	SweepInterval time.Duration
}

// PersonaConfig names the assistant identity used in prompts and scrubbing.
type PersonaConfig struct {
	Name    string
	Aliases []string
	Creator string
}

// UploadConfig controls file upload storage.
type UploadConfig struct {
	Dir      string
	MaxBytes int64
}

// AuthConfig controls token signing.
type AuthConfig struct {
	TokenSecret string
	TokenTTL    time.Duration
}

// RateLimitConfig controls per-client request throttling on the chat API.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:               getEnv("PORT", "3000"),
		FrontendURL:        getEnv("FRONTEND_URL", ""),
		AllowedOrigins:     getEnvList("ALLOWED_ORIGINS", []string{"*"}),
		DBPath:             getEnv("DB_PATH", "./data/chat.db"),
		MaxRequestBodySize: int64(getEnvInt("MAX_REQUEST_BODY_BYTES", 1<<20)),
		Upstream: UpstreamConfig{
			APIKey:  strings.TrimSpace(getEnv("GEMINI_API_KEY", "")),
			Model:   getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
			BaseURL: getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
			Timeout: getEnvDuration("UPSTREAM_TIMEOUT", 25*time.Second),
		},
		Session: SessionConfig{
			HistoryCap:    getEnvInt("SESSION_HISTORY_CAP", 20),
			PromptWindow:  getEnvInt("SESSION_PROMPT_WINDOW", 8),
			TTL:           getEnvDuration("SESSION_TTL", 24*time.Hour),
			SweepInterval: getEnvDuration("SESSION_SWEEP_INTERVAL", time.Hour),
		},
		Persona: PersonaConfig{
			Name:    getEnv("PERSONA_NAME", "Brahma AI"),
			Aliases: getEnvList("PERSONA_ALIASES", []string{"Quant"}),
			Creator: getEnv("PERSONA_CREATOR", "Divyansh"),
		},
		Upload: UploadConfig{
			Dir:      getEnv("UPLOAD_DIR", "./uploads"),
			MaxBytes: int64(getEnvInt("UPLOAD_MAX_BYTES", 10<<20)),
		},
		Auth: AuthConfig{
			TokenSecret: getEnv("AUTH_TOKEN_SECRET", ""),
			TokenTTL:    getEnvDuration("AUTH_TOKEN_TTL", 24*time.Hour),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvFloat("RATE_LIMIT_RPS", 1),
			Burst:             getEnvInt("RATE_LIMIT_BURST", 10),
		},
	}

	if cfg.Auth.TokenSecret == "" && cfg.IsDevelopment() {
		cfg.Auth.TokenSecret = "dev-insecure-secret"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
// An empty GEMINI_API_KEY is allowed; chat requests then fail individually.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_BYTES must be > 0")
	}
	if c.Upstream.Model == "" {
		return fmt.Errorf("GEMINI_MODEL cannot be empty")
	}
	if c.Upstream.Timeout <= 0 {
		return fmt.Errorf("UPSTREAM_TIMEOUT must be > 0")
	}
	if c.Session.HistoryCap <= 0 {
		return fmt.Errorf("SESSION_HISTORY_CAP must be > 0")
	}
	if c.Session.PromptWindow <= 0 {
		return fmt.Errorf("SESSION_PROMPT_WINDOW must be > 0")
	}
	if c.Session.TTL <= 0 || c.Session.SweepInterval <= 0 {
		return fmt.Errorf("SESSION_TTL and SESSION_SWEEP_INTERVAL must be > 0")
	}
	if c.Persona.Name == "" {
		return fmt.Errorf("PERSONA_NAME cannot be empty")
	}
	if c.Upload.Dir == "" {
		return fmt.Errorf("UPLOAD_DIR cannot be empty")
	}
	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("UPLOAD_MAX_BYTES must be > 0")
	}
	if c.Auth.TokenSecret == "" {
		return fmt.Errorf("AUTH_TOKEN_SECRET cannot be empty outside development")
	}
	if c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	if env := os.Getenv("APP_ENV"); env != "" {
		return env == "development"
	}
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

// getEnvList splits a comma-separated value, dropping blanks.
func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
