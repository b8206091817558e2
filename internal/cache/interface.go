// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package cache provides the caching backends used for collection reads.
package cache

import (
	"context"
	"time"
)

// Cacher is a byte-oriented cache shared by the collection and section
// stores. Implementations must be safe for concurrent use.
type Cacher interface {
	// Get returns the value at key, or ErrCacheMiss when it is absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value at key for ttl. A zero ttl selects the backend default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key.
	Delete(ctx context.Context, key string) error

	// Incr atomically adds one to the counter at key and returns the new
	// value. Counters never expire and read back through Get as decimal text.
	Incr(ctx context.Context, key string) (int64, error)

	// Close releases any resources held by the cache.
	Close() error
}

// StatsProvider is implemented by caches that count their traffic.
type StatsProvider interface {
	Stats() Stats
}

// Stats holds cache counters.
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Sets   int64 `json:"sets"`
	Items  int   `json:"items"`
}

// Error is a cache sentinel error.
type Error string

func (e Error) Error() string {
	return string(e)
}

const (
	// ErrCacheMiss indicates the key was not found in cache or has expired.
	ErrCacheMiss Error = "cache miss"

	// ErrCacheClosed indicates the cache has been closed.
	ErrCacheClosed Error = "cache closed"
)
