// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"fmt"
	"net/url"
	"time"
)

// Backend types.
const (
	TypeMemory = "memory"
	TypeRedis  = "redis"
)

// Config holds configuration for cache creation.
type Config struct {
	// RedisURL selects the Redis backend when non-empty.
	// Example: redis://localhost:6379/0
	RedisURL string

	// Prefix is the key prefix for Redis.
	Prefix string

	DefaultTTL      time.Duration
	MaxItems        int // memory cache only (0 = unlimited)
	CleanupInterval time.Duration
}

// Result describes the backend NewCache actually created.
type Result struct {
	Cache Cacher
	Type  string

	// FallbackErr is set when Redis was requested but unreachable
	// and an in-memory cache was created instead.
	FallbackErr error
}

// NewCache creates a Redis cache when RedisURL is set, falling back to an
// in-memory cache if Redis cannot be reached. The service keeps working
// without Redis; only cross-instance invalidation is lost.
func NewCache(cfg Config) Result {
	if cfg.RedisURL != "" {
		rc, err := NewRedisCache(RedisCacheOptions{
			URL:        cfg.RedisURL,
			Prefix:     cfg.Prefix,
			DefaultTTL: cfg.DefaultTTL,
			IOTimeout:  3 * time.Second,
		})
		if err == nil {
			return Result{Cache: rc, Type: TypeRedis}
		}
		return Result{
			Cache:       newMemory(cfg),
			Type:        TypeMemory,
			FallbackErr: fmt.Errorf("connecting to redis %s: %w", SanitizeRedisURL(cfg.RedisURL), err),
		}
	}
	return Result{Cache: newMemory(cfg), Type: TypeMemory}
}

func newMemory(cfg Config) *MemoryCache {
	cleanup := cfg.CleanupInterval
	if cleanup == 0 {
		cleanup = time.Minute
	}
	return NewMemoryCache(MemoryCacheOptions{
		DefaultTTL:      cfg.DefaultTTL,
		MaxItems:        cfg.MaxItems,
		CleanupInterval: cleanup,
	})
}

// SanitizeRedisURL masks the password in a Redis URL so it can be logged.
func SanitizeRedisURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "[invalid URL]"
	}
	if u.User != nil {
		if _, hasPassword := u.User.Password(); hasPassword {
			u.User = url.UserPassword(u.User.Username(), "***")
		}
	}
	return u.String()
}
