// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package docstore

import (
	"context"
	"time"

	"github.com/olegiv/sitecms/internal/cache"
)

// DefaultCacheTTL is how long a cached list stays fresh.
const DefaultCacheTTL = 30 * time.Second

// ListCache holds decoded record lists keyed by collection name.
// One instance is shared by every store in the process.
type ListCache struct {
	lists *cache.TypedCache[[]Record]
}

// NewListCache wraps c. A non-positive ttl selects DefaultCacheTTL.
func NewListCache(c cache.Cacher, ttl time.Duration) *ListCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &ListCache{lists: cache.NewTypedCache[[]Record](c, ttl)}
}

// Load returns the cached list for name, or fetches and caches it. A list
// fetched while the collection is being invalidated is returned to its
// caller but never served from the cache.
func (lc *ListCache) Load(ctx context.Context, name string, fetch func(context.Context) ([]Record, error)) ([]Record, bool, error) {
	return lc.lists.Load(ctx, listKey(name), fetch)
}

// Invalidate drops the cached list for name.
func (lc *ListCache) Invalidate(ctx context.Context, name string) error {
	return lc.lists.Invalidate(ctx, listKey(name))
}

func listKey(name string) string { return "list:" + name }
