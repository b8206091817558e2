// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/olegiv/sitecms/internal/docstore"
	"github.com/olegiv/sitecms/internal/testutil"
)

func TestGenerateSignature(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		secret  string
	}{
		{"empty payload", []byte{}, "secret"},
		{"simple payload", []byte(`{"type":"posts.created"}`), "mysecret"},
		{"empty secret", []byte(`test`), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := GenerateSignature(tt.payload, tt.secret)
			if len(result) != 64 {
				t.Errorf("GenerateSignature() returned signature with length %d, expected 64", len(result))
			}
			if again := GenerateSignature(tt.payload, tt.secret); result != again {
				t.Errorf("GenerateSignature() not consistent: %s != %s", result, again)
			}
		})
	}
}

func TestGenerateSignature_KnownVector(t *testing.T) {
	// RFC 4231 test case 2.
	got := GenerateSignature([]byte("what do ya want for nothing?"), "Jefe")
	want := "5bdcc146bf60754e6a042426089575c75a003f089d2739839dec58b964ec3843"
	if got != want {
		t.Errorf("GenerateSignature() = %s, want %s", got, want)
	}
}

func TestVerifySignature(t *testing.T) {
	payload := []byte(`{"title":"Тест","content":"日本語"}`)
	secret := "unicode-secret-ключ"
	signature := GenerateSignature(payload, secret)

	if !VerifySignature(payload, signature, secret) {
		t.Error("VerifySignature() = false for a valid signature")
	}
	if VerifySignature(payload, signature, "wrong-secret") {
		t.Error("VerifySignature() should return false with wrong secret")
	}

	for _, bad := range []string{"", "not-hex", "abc123", "0000000000000000000000000000000000000000000000000000000000000000"} {
		if VerifySignature(payload, bad, secret) {
			t.Errorf("VerifySignature(%q) should return false", bad)
		}
	}
}

func TestRetryPolicyBackoff(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5, InitialBackoff: time.Second, MaxBackoff: 10 * time.Second}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, time.Second}, // Treated as attempt 1
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second}, // Capped
		{50, 10 * time.Second},
	}

	for _, tt := range tests {
		if got := p.backoff(tt.attempt); got != tt.expected {
			t.Errorf("backoff(%d) = %v, want %v", tt.attempt, got, tt.expected)
		}
	}
}

func TestEventType(t *testing.T) {
	tests := []struct {
		action docstore.Action
		want   string
	}{
		{docstore.ActionCreate, "events.created"},
		{docstore.ActionUpdate, "events.updated"},
		{docstore.ActionDelete, "events.deleted"},
	}

	for _, tt := range tests {
		if got := EventType(docstore.Change{Collection: "events", Action: tt.action}); got != tt.want {
			t.Errorf("EventType(%s) = %s, want %s", tt.action, got, tt.want)
		}
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Workers != 3 {
		t.Errorf("Workers = %d, want 3", cfg.Workers)
	}
	if cfg.Retry.MaxAttempts != 4 {
		t.Errorf("Retry.MaxAttempts = %d, want 4", cfg.Retry.MaxAttempts)
	}
}

func TestDispatcher_DeliversSignedChange(t *testing.T) {
	type received struct {
		body      []byte
		signature string
		event     string
	}
	got := make(chan received, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got <- received{body: body, signature: r.Header.Get("X-Webhook-Signature"), event: r.Header.Get("X-Webhook-Event")}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := NewDispatcher(testutil.TestLoggerSilent(), Config{URLs: []string{srv.URL}, Secret: "s3cret"})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)
	defer d.Stop()

	d.Notify(ctx, docstore.Change{
		Collection: "posts",
		Action:     docstore.ActionCreate,
		Record:     docstore.Record{"id": "1", "slug": "hello", "title": "Hello"},
		SHA:        "abc",
	})

	select {
	case r := <-got:
		if r.event != "posts.created" {
			t.Errorf("X-Webhook-Event = %q, want posts.created", r.event)
		}
		if !VerifySignature(r.body, r.signature, "s3cret") {
			t.Error("signature does not verify")
		}
		var ev struct {
			Type string          `json:"type"`
			Data ChangeEventData `json:"data"`
		}
		if err := json.Unmarshal(r.body, &ev); err != nil {
			t.Fatalf("decoding payload: %v", err)
		}
		if ev.Data.Slug != "hello" || ev.Data.SHA != "abc" {
			t.Errorf("unexpected payload %+v", ev.Data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("webhook was not delivered")
	}
}

func TestDispatcher_RetriesServerErrors(t *testing.T) {
	var attempts atomic.Int32
	var once sync.Once
	done := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		once.Do(func() { close(done) })
	}))
	defer srv.Close()

	d := NewDispatcher(testutil.TestLoggerSilent(), Config{
		URLs:  []string{srv.URL},
		Retry: RetryPolicy{MaxAttempts: 5, InitialBackoff: 10 * time.Millisecond, MaxBackoff: 20 * time.Millisecond},
	})
	ctx := context.Background()
	d.Start(ctx)
	defer d.Stop()

	if err := d.Dispatch(ctx, NewEvent("blogs.updated", map[string]string{"id": "1"})); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	select {
	case <-done:
		if n := attempts.Load(); n != 3 {
			t.Errorf("attempts = %d, want 3", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("delivery did not succeed, attempts = %d", attempts.Load())
	}
}

func TestDispatcher_ClientErrorIsFinal(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	d := NewDispatcher(testutil.TestLoggerSilent(), Config{
		URLs:  []string{srv.URL},
		Retry: RetryPolicy{MaxAttempts: 5, InitialBackoff: 5 * time.Millisecond},
	})
	d.Start(context.Background())

	_ = d.Dispatch(context.Background(), NewEvent("blogs.deleted", nil))
	time.Sleep(100 * time.Millisecond)
	d.Stop()

	if n := attempts.Load(); n != 1 {
		t.Errorf("attempts = %d, want 1", n)
	}
}

func TestDispatcher_NotRunning(t *testing.T) {
	d := NewDispatcher(testutil.TestLoggerSilent(), Config{URLs: []string{"http://127.0.0.1:1"}})
	if err := d.Dispatch(context.Background(), NewEvent("blogs.created", nil)); err != nil {
		t.Errorf("Dispatch on stopped dispatcher = %v, want nil", err)
	}
}
