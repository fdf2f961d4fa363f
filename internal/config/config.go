// Package config holds the client's single externally visible setting,
// the backend base URL, plus the local knobs of the CLI.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// EnvPrefix is prepended to flag names when reading them from the environment
const EnvPrefix = "SMARTRECEIPT"

// DefaultAPIURL is the backend address used when nothing is configured
const DefaultAPIURL = "http://localhost:8000"

type Config struct {
	// Backend
	APIURL string

	// Local only
	LogLevel  string
	ExportDir string
	Port      int
}

// LoadDotEnv loads a .env file from the working directory if one exists.
// Variables already set in the environment win.
func LoadDotEnv() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to load .env file", "error", err)
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	u, err := url.Parse(c.APIURL)
	switch {
	case c.APIURL == "":
		errors = append(errors, "API URL cannot be empty")
	case err != nil:
		errors = append(errors, fmt.Sprintf("invalid API URL '%s': %v", c.APIURL, err))
	case u.Scheme != "http" && u.Scheme != "https":
		errors = append(errors, fmt.Sprintf("invalid API URL scheme '%s': must be 'http' or 'https'", u.Scheme))
	case u.Host == "":
		errors = append(errors, fmt.Sprintf("invalid API URL '%s': missing host", c.APIURL))
	}

	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		errors = append(errors, err.Error())
	}

	if c.Port < 0 || c.Port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 0 and 65535", c.Port))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// ParseLogLevel maps debug, info, warn and error onto slog levels.
// An empty string is info.
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level '%s': must be debug, info, warn or error", s)
	}
	return level, nil
}
