// Package config provides server configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/abhisek/mathpad/internal/canvas"
)

// Config holds all server configuration.
type Config struct {
	Port            string
	DBPath          string
	CredentialsPath string
	AuthSecret      string
	RedisURL        string // empty selects the in-memory session store
	SessionTTL      time.Duration
	LogMode         string
	AllowedOrigins  []string
	SecureCookies   bool
	CanvasWidth     int
	CanvasHeight    int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		DBPath:          getEnv("MATHPAD_DB", ""),
		CredentialsPath: getEnv("MATHPAD_CREDENTIALS", "config.yaml"),
		AuthSecret:      getEnv("MATHPAD_AUTH_SECRET", ""),
		RedisURL:        getEnv("MATHPAD_REDIS_URL", ""),
		SessionTTL:      getEnvDuration("MATHPAD_SESSION_TTL", 24*time.Hour),
		LogMode:         getEnv("MATHPAD_LOG_MODE", "dev"),
		AllowedOrigins:  getEnvList("MATHPAD_ALLOWED_ORIGINS"),
		SecureCookies:   getEnvBool("MATHPAD_SECURE_COOKIES", false),
		CanvasWidth:     getEnvInt("MATHPAD_CANVAS_WIDTH", canvas.DefaultWidth),
		CanvasHeight:    getEnvInt("MATHPAD_CANVAS_HEIGHT", canvas.DefaultHeight),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.CredentialsPath == "" {
		return fmt.Errorf("MATHPAD_CREDENTIALS cannot be empty")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("MATHPAD_SESSION_TTL must be > 0")
	}
	if err := c.CanvasSettings().Validate(); err != nil {
		return fmt.Errorf("MATHPAD_CANVAS_WIDTH/HEIGHT: %w", err)
	}
	return nil
}

// CanvasSettings returns the default drawing settings for new sessions.
func (c *Config) CanvasSettings() canvas.Settings {
	s := canvas.DefaultSettings()
	s.Width = c.CanvasWidth
	s.Height = c.CanvasHeight
	return s
}

// IsDevelopment reports whether the server runs with development logging.
func (c *Config) IsDevelopment() bool {
	switch strings.ToLower(c.LogMode) {
	case "prod", "production":
		return false
	}
	return true
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
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

func getEnvList(key string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
