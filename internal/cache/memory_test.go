// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeClock is a settable time source for expiry tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestMemoryCache(t *testing.T, opts MemoryCacheOptions) (*MemoryCache, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
	c := NewMemoryCache(opts)
	c.now = clock.Now
	t.Cleanup(func() { _ = c.Close() })
	return c, clock
}

func TestMemoryCache_BasicOperations(t *testing.T) {
	c, _ := newTestMemoryCache(t, MemoryCacheOptions{DefaultTTL: time.Hour})
	ctx := context.Background()

	if _, err := c.Get(ctx, "list:posts"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("Get on empty cache = %v, want ErrCacheMiss", err)
	}

	if err := c.Set(ctx, "list:posts", []byte(`[1]`), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := c.Get(ctx, "list:posts")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != `[1]` {
		t.Errorf("Get = %q, want [1]", got)
	}

	got[0] = 'X'
	again, _ := c.Get(ctx, "list:posts")
	if string(again) != `[1]` {
		t.Errorf("stored value changed through returned slice: %q", again)
	}

	if err := c.Delete(ctx, "list:posts"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := c.Get(ctx, "list:posts"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get after Delete = %v, want ErrCacheMiss", err)
	}
}

func TestMemoryCache_Expiration(t *testing.T) {
	tests := []struct {
		name    string
		ttl     time.Duration
		advance time.Duration
		wantHit bool
	}{
		{"default ttl inside window", 0, 59 * time.Second, true},
		{"default ttl at deadline", 0, time.Minute, false},
		{"custom ttl inside window", 5 * time.Second, 4 * time.Second, true},
		{"custom ttl after window", 5 * time.Second, 6 * time.Second, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, clock := newTestMemoryCache(t, MemoryCacheOptions{DefaultTTL: time.Minute})
			ctx := context.Background()

			_ = c.Set(ctx, "k", []byte("v"), tt.ttl)
			clock.Advance(tt.advance)

			_, err := c.Get(ctx, "k")
			if hit := err == nil; hit != tt.wantHit {
				t.Errorf("hit = %v, want %v (err %v)", hit, tt.wantHit, err)
			}
		})
	}
}

func TestMemoryCache_Incr(t *testing.T) {
	c, clock := newTestMemoryCache(t, MemoryCacheOptions{DefaultTTL: time.Second})
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		n, err := c.Incr(ctx, "list:posts:gen")
		if err != nil {
			t.Fatalf("Incr: %v", err)
		}
		if n != want {
			t.Errorf("Incr = %d, want %d", n, want)
		}
	}

	clock.Advance(time.Hour)
	got, err := c.Get(ctx, "list:posts:gen")
	if err != nil {
		t.Fatalf("counter expired: %v", err)
	}
	if string(got) != "3" {
		t.Errorf("counter reads back as %q, want 3", got)
	}
}

func TestMemoryCache_MaxItemsEvictsEarliestDeadline(t *testing.T) {
	c, _ := newTestMemoryCache(t, MemoryCacheOptions{DefaultTTL: time.Hour, MaxItems: 3})
	ctx := context.Background()

	if _, err := c.Incr(ctx, "gen"); err != nil {
		t.Fatalf("Incr: %v", err)
	}
	_ = c.Set(ctx, "short", []byte("1"), time.Minute)
	_ = c.Set(ctx, "long", []byte("2"), 2*time.Hour)
	_ = c.Set(ctx, "new", []byte("3"), 0)

	if _, err := c.Get(ctx, "short"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("entry closest to expiry should be evicted, got %v", err)
	}
	for _, key := range []string{"gen", "long", "new"} {
		if _, err := c.Get(ctx, key); err != nil {
			t.Errorf("Get(%q) = %v, want hit", key, err)
		}
	}
}

func TestMemoryCache_Stats(t *testing.T) {
	c, _ := newTestMemoryCache(t, MemoryCacheOptions{DefaultTTL: time.Hour})
	ctx := context.Background()

	_ = c.Set(ctx, "a", []byte("1"), 0)
	_, _ = c.Get(ctx, "a")
	_, _ = c.Get(ctx, "a")
	_, _ = c.Get(ctx, "missing")

	s := c.Stats()
	if s.Hits != 2 || s.Misses != 1 || s.Sets != 1 || s.Items != 1 {
		t.Errorf("Stats = %+v, want 2 hits, 1 miss, 1 set, 1 item", s)
	}
}

func TestMemoryCache_Closed(t *testing.T) {
	c, _ := newTestMemoryCache(t, MemoryCacheOptions{DefaultTTL: time.Hour, CleanupInterval: time.Millisecond})
	ctx := context.Background()

	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if err := c.Set(ctx, "k", []byte("v"), 0); !errors.Is(err, ErrCacheClosed) {
		t.Errorf("Set after Close = %v, want ErrCacheClosed", err)
	}
	if _, err := c.Incr(ctx, "k"); !errors.Is(err, ErrCacheClosed) {
		t.Errorf("Incr after Close = %v, want ErrCacheClosed", err)
	}
}

func TestMemoryCache_Concurrent(t *testing.T) {
	c, _ := newTestMemoryCache(t, MemoryCacheOptions{DefaultTTL: time.Hour})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			key := fmt.Sprintf("key-%d", i%5)
			_ = c.Set(ctx, key, []byte("v"), 0)
			_, _ = c.Get(ctx, key)
			_, _ = c.Incr(ctx, "gen")
		}()
	}
	wg.Wait()

	got, err := c.Get(ctx, "gen")
	if err != nil || string(got) != "20" {
		t.Errorf("gen = %q (%v), want 20", got, err)
	}
}
