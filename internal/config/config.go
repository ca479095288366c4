/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config covers process level configuration read from an optional YAML file
// and environment variables. Environment variables win over file values.
type Config struct {
	Environment string `yaml:"environment"`

	// Jellyfin (upstream playback service, read-only)
	JellyfinURL    string `yaml:"jellyfin_url"`
	JellyfinAPIKey string `yaml:"jellyfin_api_key"`

	// SABnzbd (downstream download queue)
	SabURL    string `yaml:"sab_url"`
	SabAPIKey string `yaml:"sab_api_key"`

	// Loop behavior
	Interval       time.Duration `yaml:"-"`
	ResumeCooldown time.Duration `yaml:"-"`
	IncludePaused  bool          `yaml:"include_paused"`

	// HTTP transport shared by both clients
	VerifyTLS      bool          `yaml:"verify_tls"`
	RequestTimeout time.Duration `yaml:"-"`

	LogLevel string `yaml:"log_level"`

	// Status/metrics HTTP server
	HTTPBind string `yaml:"http_bind"`
	HTTPPort int    `yaml:"http_port"`

	// Tracing configuration
	TracingEnabled    bool    `yaml:"tracing_enabled"`
	OTLPEndpoint      string  `yaml:"otlp_endpoint"`
	TracingSampleRate float64 `yaml:"tracing_sample_rate"`

	// InstanceID identifies this process in logs and /api/status.
	// Generated when not configured.
	InstanceID string `yaml:"instance_id"`

	LegacyEnvWarnings []string `yaml:"-"`

	// Seconds-valued knobs as they appear in the YAML file and environment.
	IntervalSeconds       int `yaml:"interval_seconds"`
	ResumeCooldownSeconds int `yaml:"resume_cooldown_seconds"`
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds"`
}

// Load reads the optional YAML file at path (empty path skips the file),
// applies environment variables on top, fills defaults, and validates the
// result. A missing Jellyfin or SABnzbd URL/key is a fatal configuration
// error reported here, before the loop ever starts.
func Load(path string) (*Config, error) {
	// .env is a convenience for local runs; absence is not an error.
	_ = godotenv.Load()

	cfg := &Config{
		Environment:           "production",
		IntervalSeconds:       30,
		ResumeCooldownSeconds: 60,
		VerifyTLS:             true,
		RequestTimeoutSeconds: 8,
		LogLevel:              "info",
		HTTPBind:              "0.0.0.0",
		HTTPPort:              8080,
		OTLPEndpoint:          "localhost:4317",
		TracingSampleRate:     1.0,
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.Environment = getEnvAny([]string{"PLAYGATE_ENV"}, cfg.Environment)
	cfg.JellyfinURL = getEnvAny([]string{"PLAYGATE_JELLYFIN_URL", "JELLYFIN_URL"}, cfg.JellyfinURL)
	cfg.JellyfinAPIKey = getEnvAny([]string{"PLAYGATE_JELLYFIN_API_KEY", "JELLYFIN_API_KEY"}, cfg.JellyfinAPIKey)
	cfg.SabURL = getEnvAny([]string{"PLAYGATE_SAB_URL", "SAB_URL"}, cfg.SabURL)
	cfg.SabAPIKey = getEnvAny([]string{"PLAYGATE_SAB_API_KEY", "SAB_API_KEY"}, cfg.SabAPIKey)
	cfg.IntervalSeconds = getEnvIntAny([]string{"PLAYGATE_INTERVAL", "INTERVAL"}, cfg.IntervalSeconds)
	cfg.ResumeCooldownSeconds = getEnvIntAny([]string{"PLAYGATE_RESUME_COOLDOWN", "RESUME_COOLDOWN"}, cfg.ResumeCooldownSeconds)
	cfg.IncludePaused = getEnvBoolAny([]string{"PLAYGATE_INCLUDE_PAUSED", "INCLUDE_PAUSED"}, cfg.IncludePaused)
	cfg.VerifyTLS = getEnvBoolAny([]string{"PLAYGATE_VERIFY_TLS", "VERIFY_TLS"}, cfg.VerifyTLS)
	cfg.RequestTimeoutSeconds = getEnvIntAny([]string{"PLAYGATE_REQUEST_TIMEOUT", "REQUEST_TIMEOUT"}, cfg.RequestTimeoutSeconds)
	cfg.LogLevel = getEnvAny([]string{"PLAYGATE_LOG_LEVEL", "LOG_LEVEL"}, cfg.LogLevel)
	cfg.HTTPBind = getEnvAny([]string{"PLAYGATE_HTTP_BIND"}, cfg.HTTPBind)
	cfg.HTTPPort = getEnvIntAny([]string{"PLAYGATE_HTTP_PORT"}, cfg.HTTPPort)
	cfg.TracingEnabled = getEnvBoolAny([]string{"PLAYGATE_TRACING_ENABLED"}, cfg.TracingEnabled)
	cfg.OTLPEndpoint = getEnvAny([]string{"PLAYGATE_OTLP_ENDPOINT"}, cfg.OTLPEndpoint)
	cfg.TracingSampleRate = getEnvFloatAny([]string{"PLAYGATE_TRACING_SAMPLE_RATE"}, cfg.TracingSampleRate)
	cfg.InstanceID = getEnvAny([]string{"PLAYGATE_INSTANCE_ID"}, cfg.InstanceID)

	if err := cfg.normalize(); err != nil {
		return nil, err
	}

	cfg.LegacyEnvWarnings = detectLegacyEnvWarnings()
	return cfg, nil
}

func (c *Config) normalize() error {
	missing := []string{}
	if c.JellyfinURL == "" {
		missing = append(missing, "PLAYGATE_JELLYFIN_URL")
	}
	if c.JellyfinAPIKey == "" {
		missing = append(missing, "PLAYGATE_JELLYFIN_API_KEY")
	}
	if c.SabURL == "" {
		missing = append(missing, "PLAYGATE_SAB_URL")
	}
	if c.SabAPIKey == "" {
		missing = append(missing, "PLAYGATE_SAB_API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing configuration: %s", strings.Join(missing, ", "))
	}

	if c.IntervalSeconds <= 0 {
		return fmt.Errorf("poll interval must be positive, got %d", c.IntervalSeconds)
	}
	if c.ResumeCooldownSeconds < 0 {
		return fmt.Errorf("resume cooldown must not be negative, got %d", c.ResumeCooldownSeconds)
	}
	if c.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("request timeout must be positive, got %d", c.RequestTimeoutSeconds)
	}

	c.JellyfinURL = strings.TrimRight(c.JellyfinURL, "/")
	c.SabURL = strings.TrimRight(c.SabURL, "/")

	c.Interval = time.Duration(c.IntervalSeconds) * time.Second
	c.ResumeCooldown = time.Duration(c.ResumeCooldownSeconds) * time.Second
	c.RequestTimeout = time.Duration(c.RequestTimeoutSeconds) * time.Second

	if c.InstanceID == "" {
		c.InstanceID = uuid.NewString()
	}
	return nil
}

func detectLegacyEnvWarnings() []string {
	legacy := map[string]string{
		"JELLYFIN_URL":     "use PLAYGATE_JELLYFIN_URL",
		"JELLYFIN_API_KEY": "use PLAYGATE_JELLYFIN_API_KEY",
		"SAB_URL":          "use PLAYGATE_SAB_URL",
		"SAB_API_KEY":      "use PLAYGATE_SAB_API_KEY",
		"INTERVAL":         "use PLAYGATE_INTERVAL",
		"RESUME_COOLDOWN":  "use PLAYGATE_RESUME_COOLDOWN",
		"INCLUDE_PAUSED":   "use PLAYGATE_INCLUDE_PAUSED",
		"VERIFY_TLS":       "use PLAYGATE_VERIFY_TLS",
		"REQUEST_TIMEOUT":  "use PLAYGATE_REQUEST_TIMEOUT",
		"LOG_LEVEL":        "use PLAYGATE_LOG_LEVEL",
	}

	warnings := make([]string, 0, len(legacy))
	for key, recommendation := range legacy {
		if os.Getenv(key) != "" {
			warnings = append(warnings, fmt.Sprintf("legacy env key %s is set; %s", key, recommendation))
		}
	}
	return warnings
}

// getEnvAny returns the first non-empty environment variable value from keys, or def if none set.
func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

// getEnvIntAny returns the first set integer environment variable value from keys, or def.
func getEnvIntAny(keys []string, def int) int {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				return parsed
			}
		}
	}
	return def
}

// getEnvFloatAny returns the first set float environment variable value from keys, or def.
func getEnvFloatAny(keys []string, def float64) float64 {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				return parsed
			}
		}
	}
	return def
}

// getEnvBoolAny returns the first set boolean environment variable value from keys, or def.
func getEnvBoolAny(keys []string, def bool) bool {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "true" || v == "1" || v == "yes" {
				return true
			}
			if v == "false" || v == "0" || v == "no" {
				return false
			}
		}
	}
	return def
}
