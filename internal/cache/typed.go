// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"
)

// TypedCache stores JSON-encoded values of type T, each tagged with the
// generation of its key. Invalidate moves a key to a new generation, so a
// value fetched before an invalidation and stored after it is never served.
type TypedCache[T any] struct {
	cache Cacher
	ttl   time.Duration
}

type generationEntry[T any] struct {
	Generation int64 `json:"gen"`
	Value      T     `json:"value"`
}

// NewTypedCache wraps c. Values live for ttl.
func NewTypedCache[T any](c Cacher, ttl time.Duration) *TypedCache[T] {
	return &TypedCache[T]{cache: c, ttl: ttl}
}

// Generation returns the current generation of key. Keys that were never
// invalidated are at generation zero.
func (c *TypedCache[T]) Generation(ctx context.Context, key string) (int64, error) {
	raw, err := c.cache.Get(ctx, generationKey(key))
	if errors.Is(err, ErrCacheMiss) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(string(raw), 10, 64)
}

// Get returns the value at key if it was stored at the current generation.
func (c *TypedCache[T]) Get(ctx context.Context, key string) (T, bool) {
	var zero T
	gen, err := c.Generation(ctx, key)
	if err != nil {
		return zero, false
	}
	raw, err := c.cache.Get(ctx, key)
	if err != nil {
		return zero, false
	}
	var e generationEntry[T]
	if err := json.Unmarshal(raw, &e); err != nil || e.Generation != gen {
		return zero, false
	}
	return e.Value, true
}

// Set stores value at key on behalf of a reader that observed gen before
// fetching it.
func (c *TypedCache[T]) Set(ctx context.Context, key string, gen int64, value T) error {
	raw, err := json.Marshal(generationEntry[T]{Generation: gen, Value: value})
	if err != nil {
		return err
	}
	return c.cache.Set(ctx, key, raw, c.ttl)
}

// Invalidate advances the generation of key and drops its value.
func (c *TypedCache[T]) Invalidate(ctx context.Context, key string) error {
	if _, err := c.cache.Incr(ctx, generationKey(key)); err != nil {
		return err
	}
	return c.cache.Delete(ctx, key)
}

// Load returns the cached value at key, or calls fetch and caches its
// result under the generation seen before the fetch. cached reports which
// path served the value. Errors from fetch are returned and nothing is
// stored; cache errors only cost a fetch.
func (c *TypedCache[T]) Load(ctx context.Context, key string, fetch func(context.Context) (T, error)) (value T, cached bool, err error) {
	if v, ok := c.Get(ctx, key); ok {
		return v, true, nil
	}

	gen, genErr := c.Generation(ctx, key)
	value, err = fetch(ctx)
	if err != nil {
		return value, false, err
	}
	if genErr == nil {
		_ = c.Set(ctx, key, gen, value)
	}
	return value, false, nil
}

func generationKey(key string) string { return key + ":gen" }
