package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	LogLevel       string
	LogFile        string
	DebugAddr      string
	RequestTimeout time.Duration
	HTTPTimeout    time.Duration
	Gemini         GeminiConfig
	Session        SessionConfig
	Retry          RetryConfig
}

type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type SessionConfig struct {
	// ClearResetsInstructions makes Clear drop the system instructions
	// together with the history.
	ClearResetsInstructions bool
}

type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// LoadEnvFile preloads variables from a dotenv file without overriding
// variables already present in the process environment. A missing file is
// not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func Load() (Config, error) {
	var cfg Config

	cfg.LogLevel = getEnv("LOG_LEVEL", "info")
	cfg.LogFile = getEnv("LOG_FILE", "amzaki.log")
	cfg.DebugAddr = getEnv("DEBUG_ADDR", "")

	reqTimeout, err := parseDuration(getEnv("REQUEST_TIMEOUT", "60s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse REQUEST_TIMEOUT: %w", err)
	}
	cfg.RequestTimeout = reqTimeout

	httpTimeout, err := parseDuration(getEnv("HTTP_CLIENT_TIMEOUT", "90s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse HTTP_CLIENT_TIMEOUT: %w", err)
	}
	cfg.HTTPTimeout = httpTimeout

	cfg.Gemini = GeminiConfig{
		APIKey:  getEnv("GOOGLE_API_KEY", ""),
		Model:   getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		BaseURL: getEnv("GEMINI_BASE_URL", ""),
	}

	clearResets, err := parseBoolDefault(getEnv("CLEAR_RESETS_INSTRUCTIONS", ""), false)
	if err != nil {
		return Config{}, fmt.Errorf("parse CLEAR_RESETS_INSTRUCTIONS: %w", err)
	}
	cfg.Session = SessionConfig{ClearResetsInstructions: clearResets}

	attempts, err := parseIntDefault(getEnv("RETRY_MAX_ATTEMPTS", ""), 1)
	if err != nil {
		return Config{}, fmt.Errorf("parse RETRY_MAX_ATTEMPTS: %w", err)
	}
	if attempts < 1 {
		return Config{}, fmt.Errorf("RETRY_MAX_ATTEMPTS must be >= 1, got %d", attempts)
	}
	baseDelay, err := parseDuration(getEnv("RETRY_BASE_DELAY", "500ms"))
	if err != nil {
		return Config{}, fmt.Errorf("parse RETRY_BASE_DELAY: %w", err)
	}
	cfg.Retry = RetryConfig{MaxAttempts: attempts, BaseDelay: baseDelay}

	return cfg, nil
}

// HasCredential reports whether an API key is configured.
func (c Config) HasCredential() bool {
	return c.Gemini.APIKey != ""
}

func parseDuration(value string) (time.Duration, error) {
	if value == "" {
		return 0, fmt.Errorf("duration is empty")
	}
	return time.ParseDuration(value)
}

func getEnv(key, def string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return def
}

// parseBoolDefault parses optional boolean with default value.
func parseBoolDefault(value string, def bool) (bool, error) {
	if value == "" {
		return def, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, err
	}
	return parsed, nil
}

func parseIntDefault(value string, def int) (int, error) {
	if value == "" {
		return def, nil
	}
	return strconv.Atoi(value)
}
