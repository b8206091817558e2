// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/sitecms/internal/cache"
	"github.com/olegiv/sitecms/internal/docstore"
)

func TestObserver(t *testing.T) {
	m := New()

	m.ObserveRead("posts", "cache")
	m.ObserveRead("posts", "cache")
	m.ObserveRead("posts", "repository")
	m.ObserveWrite("events", docstore.ActionCreate, "conflict")
	m.WarmFailed("articles")
	m.LogEvent("warn", "store")

	assert.InDelta(t, 2, testutil.ToFloat64(m.reads.WithLabelValues("posts", "cache")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.reads.WithLabelValues("posts", "repository")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.writes.WithLabelValues("events", "create", "conflict")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.warmFailures.WithLabelValues("articles")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.logEvents.WithLabelValues("warn", "store")), 0)
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := New()

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/blogs/{idOrSlug}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, slug := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/blogs/"+slug, nil))
	}

	got := testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "/api/blogs/{idOrSlug}", "404"))
	assert.InDelta(t, 2, got, 0)
}

func TestHandlerExposesCacheStats(t *testing.T) {
	m := New()
	mem := cache.NewMemoryCache(cache.MemoryCacheOptions{DefaultTTL: time.Minute})
	defer func() { _ = mem.Close() }()
	m.RegisterCacheStats("memory", mem)

	_ = mem.Set(context.Background(), "k", []byte("v"), 0)
	_, _ = mem.Get(context.Background(), "k")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), `sitecms_cache_hits_total{backend="memory"} 1`)
	assert.Contains(t, string(body), `sitecms_cache_items{backend="memory"} 1`)
}
