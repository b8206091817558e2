// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package config loads application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// ErrConfiguration is matched by every configuration error, including MissingError.
var ErrConfiguration = errors.New("configuration error")

// Config holds the application configuration loaded from environment variables.
type Config struct {
	GitHub GitHubConfig

	ContentDir string `env:"SITECMS_CONTENT_DIR" envDefault:"content"`
	ServerHost string `env:"SITECMS_SERVER_HOST" envDefault:"localhost"`
	ServerPort int    `env:"SITECMS_SERVER_PORT" envDefault:"8080"`
	Env        string `env:"SITECMS_ENV" envDefault:"development"`
	LogLevel   string `env:"SITECMS_LOG_LEVEL" envDefault:"info"`

	// Cache configuration
	CacheTTL          time.Duration `env:"SITECMS_CACHE_TTL" envDefault:"30s"`                 // Freshness window of collection lists
	RedisURL          string        `env:"SITECMS_REDIS_URL"`                                  // Optional Redis URL for a shared cache
	CachePrefix       string        `env:"SITECMS_CACHE_PREFIX" envDefault:"sitecms:"`         // Redis key prefix
	CacheMaxSize      int           `env:"SITECMS_CACHE_MAX_SIZE" envDefault:"1000"`           // Max memory cache entries
	CacheWarmSchedule string        `env:"SITECMS_CACHE_WARM_SCHEDULE" envDefault:"@every 5m"` // Cron spec, empty disables warming

	// Change notifications
	WebhookURLs   []string `env:"SITECMS_WEBHOOK_URLS" envSeparator:","`
	WebhookSecret string   `env:"SITECMS_WEBHOOK_SECRET"`

	SanitizeHTML bool     `env:"SITECMS_SANITIZE_HTML" envDefault:"true"`
	Sections     []string `env:"SITECMS_SECTIONS" envSeparator:"," envDefault:"blogs,events,newsletter,teams"`

	// API rate limiting per client IP
	APIRate  float64 `env:"SITECMS_API_RATE" envDefault:"20"`
	APIBurst int     `env:"SITECMS_API_BURST" envDefault:"40"`
}

// GitHubConfig holds the settings of the repository that stores the content documents.
// Owner, Repo and Token are required but checked lazily so the process can start
// and report the problem on each request.
type GitHubConfig struct {
	Owner     string        `env:"GITHUB_OWNER"`
	Repo      string        `env:"GITHUB_REPO"`
	Token     string        `env:"GITHUB_TOKEN"`
	Branch    string        `env:"GITHUB_BRANCH" envDefault:"main"`
	APIURL    string        `env:"GITHUB_API_URL" envDefault:"https://api.github.com"`
	UserAgent string        `env:"GITHUB_USER_AGENT" envDefault:"sitecms"`
	Timeout   time.Duration `env:"GITHUB_TIMEOUT" envDefault:"15s"`
}

// MissingError reports required settings that are not set.
type MissingError struct {
	Vars []string
}

func (e *MissingError) Error() string {
	return "missing required environment variables: " + strings.Join(e.Vars, ", ")
}

// Is reports whether target is ErrConfiguration.
func (e *MissingError) Is(target error) bool {
	return target == ErrConfiguration
}

// Validate returns a *MissingError naming every unset required variable.
func (g GitHubConfig) Validate() error {
	var missing []string
	if strings.TrimSpace(g.Owner) == "" {
		missing = append(missing, "GITHUB_OWNER")
	}
	if strings.TrimSpace(g.Repo) == "" {
		missing = append(missing, "GITHUB_REPO")
	}
	if strings.TrimSpace(g.Token) == "" {
		missing = append(missing, "GITHUB_TOKEN")
	}
	if len(missing) > 0 {
		return &MissingError{Vars: missing}
	}
	return nil
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// WebhooksEnabled returns true if at least one notification URL is configured.
func (c Config) WebhooksEnabled() bool {
	return len(c.WebhookURLs) > 0
}

// Load parses environment variables and returns a Config struct.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.CacheTTL <= 0 {
		return nil, fmt.Errorf("%w: SITECMS_CACHE_TTL must be positive, got %s", ErrConfiguration, cfg.CacheTTL)
	}
	if cfg.ServerPort <= 0 || cfg.ServerPort > 65535 {
		return nil, fmt.Errorf("%w: SITECMS_SERVER_PORT out of range: %d", ErrConfiguration, cfg.ServerPort)
	}

	cfg.ContentDir = strings.Trim(cfg.ContentDir, "/")
	cfg.Sections = trimEmpty(cfg.Sections)
	cfg.WebhookURLs = trimEmpty(cfg.WebhookURLs)

	return cfg, nil
}

func trimEmpty(vals []string) []string {
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}
