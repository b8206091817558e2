// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

type testPost struct {
	ID    string   `json:"id"`
	Title string   `json:"title"`
	Tags  []string `json:"tags"`
}

func newTestTypedCache(t *testing.T) *TypedCache[[]testPost] {
	t.Helper()
	mem, _ := newTestMemoryCache(t, MemoryCacheOptions{DefaultTTL: time.Hour})
	return NewTypedCache[[]testPost](mem, time.Hour)
}

func TestTypedCache_SetGet(t *testing.T) {
	tc := newTestTypedCache(t)
	ctx := context.Background()

	if _, ok := tc.Get(ctx, "posts"); ok {
		t.Fatal("Get on empty cache should miss")
	}

	posts := []testPost{{ID: "1", Title: "Audit", Tags: []string{"tax"}}}
	if err := tc.Set(ctx, "posts", 0, posts); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, ok := tc.Get(ctx, "posts")
	if !ok {
		t.Fatal("Get should hit after Set")
	}
	if len(got) != 1 || got[0].Title != "Audit" || got[0].Tags[0] != "tax" {
		t.Errorf("Get = %+v", got)
	}
}

func TestTypedCache_InvalidateAdvancesGeneration(t *testing.T) {
	tc := newTestTypedCache(t)
	ctx := context.Background()

	gen, err := tc.Generation(ctx, "posts")
	if err != nil || gen != 0 {
		t.Fatalf("Generation = %d, %v; want 0", gen, err)
	}

	_ = tc.Set(ctx, "posts", gen, []testPost{{ID: "1"}})
	if err := tc.Invalidate(ctx, "posts"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}

	if gen, _ := tc.Generation(ctx, "posts"); gen != 1 {
		t.Errorf("Generation after Invalidate = %d, want 1", gen)
	}
	if _, ok := tc.Get(ctx, "posts"); ok {
		t.Error("Get after Invalidate should miss")
	}
}

func TestTypedCache_SetFromOlderGenerationIsNeverServed(t *testing.T) {
	tc := newTestTypedCache(t)
	ctx := context.Background()

	before, _ := tc.Generation(ctx, "posts")
	// A write lands between the reader's fetch and its Set.
	if err := tc.Invalidate(ctx, "posts"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if err := tc.Set(ctx, "posts", before, []testPost{{ID: "old"}}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if got, ok := tc.Get(ctx, "posts"); ok {
		t.Errorf("Get = %+v, want miss for a value of an older generation", got)
	}
}

func TestTypedCache_Load(t *testing.T) {
	tc := newTestTypedCache(t)
	ctx := context.Background()

	calls := 0
	fetch := func(context.Context) ([]testPost, error) {
		calls++
		return []testPost{{ID: "1"}}, nil
	}

	got, cached, err := tc.Load(ctx, "posts", fetch)
	if err != nil || cached || len(got) != 1 {
		t.Fatalf("first Load = %+v, cached=%v, err=%v", got, cached, err)
	}
	got, cached, err = tc.Load(ctx, "posts", fetch)
	if err != nil || !cached || len(got) != 1 {
		t.Fatalf("second Load = %+v, cached=%v, err=%v", got, cached, err)
	}
	if calls != 1 {
		t.Errorf("fetch called %d times, want 1", calls)
	}
}

func TestTypedCache_LoadErrorIsNotCached(t *testing.T) {
	tc := newTestTypedCache(t)
	ctx := context.Background()
	upstream := errors.New("upstream down")

	_, _, err := tc.Load(ctx, "posts", func(context.Context) ([]testPost, error) {
		return nil, upstream
	})
	if !errors.Is(err, upstream) {
		t.Fatalf("Load error = %v, want %v", err, upstream)
	}
	if _, ok := tc.Get(ctx, "posts"); ok {
		t.Error("failed fetch must not populate the cache")
	}
}

func TestTypedCache_LoadRacingInvalidate(t *testing.T) {
	tc := newTestTypedCache(t)
	ctx := context.Background()

	_, _, err := tc.Load(ctx, "posts", func(ctx context.Context) ([]testPost, error) {
		if err := tc.Invalidate(ctx, "posts"); err != nil {
			t.Errorf("Invalidate: %v", err)
		}
		return []testPost{{ID: "stale"}}, nil
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	got, cached, _ := tc.Load(ctx, "posts", func(context.Context) ([]testPost, error) {
		return []testPost{{ID: "fresh"}}, nil
	})
	if cached || len(got) != 1 || got[0].ID != "fresh" {
		t.Errorf("Load after racing invalidate = %+v (cached=%v), want a fresh fetch", got, cached)
	}
}

func TestTypedCache_CorruptValueIsMiss(t *testing.T) {
	mem, _ := newTestMemoryCache(t, MemoryCacheOptions{DefaultTTL: time.Hour})
	tc := NewTypedCache[[]testPost](mem, time.Hour)
	ctx := context.Background()

	_ = mem.Set(ctx, "posts", []byte("not json"), 0)
	if _, ok := tc.Get(ctx, "posts"); ok {
		t.Error("undecodable value should be a miss")
	}
}
