// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package docstore_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/olegiv/sitecms/internal/cache"
	"github.com/olegiv/sitecms/internal/docstore"
	"github.com/olegiv/sitecms/internal/testutil"
)

const teamsPath = "content/sections/teams.json"

func newSectionStore(t *testing.T, repo *testutil.MemoryRepository, c cache.Cacher, opts ...docstore.Option) *docstore.SectionStore {
	t.Helper()
	base := []docstore.Option{
		docstore.WithLogger(testutil.TestLoggerSilent()),
		docstore.WithClock(fixedClock(t, "2025-06-01T10:00:00.000Z")),
	}
	return docstore.NewSectionStore(repo, "content", []string{"blogs", "teams"}, c, time.Hour, append(base, opts...)...)
}

func TestSectionStore_RoundTrip(t *testing.T) {
	repo := testutil.NewMemoryRepository()
	store := newSectionStore(t, repo, newMemoryCache(t))
	ctx := context.Background()

	empty, err := store.Get(ctx, "teams")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if empty.Title != "" || empty.Members != nil {
		t.Errorf("Get on a section never saved = %+v, want empty", empty)
	}

	saved, err := store.Save(ctx, "teams", docstore.Section{
		Title:   "Our Team",
		Content: "<p>People</p>",
		Meta:    "Since 1998",
		Members: []docstore.Record{{"name": "Ada", "image": nil}},
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if saved.Title != "Our Team" {
		t.Errorf("saved.Title = %q", saved.Title)
	}

	got, err := store.Get(ctx, "teams")
	if err != nil {
		t.Fatalf("Get after Save: %v", err)
	}
	if got.Title != "Our Team" || got.Meta != "Since 1998" {
		t.Errorf("Get after Save = %+v", got)
	}
	if len(got.Members) != 1 || got.Members[0]["name"] != "Ada" {
		t.Errorf("Members = %v", got.Members)
	}

	commits := repo.Commits()
	if len(commits) != 1 {
		t.Fatalf("commits = %d, want 1", len(commits))
	}
	if commits[0].Path != teamsPath {
		t.Errorf("commit path = %q, want %q", commits[0].Path, teamsPath)
	}
	if want := "Update teams section: Our Team - 2025-06-01T10:00:00.000Z"; commits[0].Message != want {
		t.Errorf("commit message = %q, want %q", commits[0].Message, want)
	}

	// A second save must present the current sha.
	if _, err := store.Save(ctx, "teams", docstore.Section{Title: "Team"}); err != nil {
		t.Fatalf("second Save: %v", err)
	}
	if n := len(repo.Commits()); n != 2 {
		t.Errorf("commits = %d, want 2", n)
	}
}

func TestSectionStore_GetIsCached(t *testing.T) {
	repo := testutil.NewMemoryRepository()
	repo.Seed(teamsPath, `{"title":"Team"}`)
	store := newSectionStore(t, repo, newMemoryCache(t))
	ctx := context.Background()

	for range 3 {
		if _, err := store.Get(ctx, "teams"); err != nil {
			t.Fatalf("Get: %v", err)
		}
	}
	if n := repo.Gets(teamsPath); n != 1 {
		t.Errorf("repository reads = %d, want 1", n)
	}
}

func TestSectionStore_ConcurrentSaveConflicts(t *testing.T) {
	repo := testutil.NewMemoryRepository()
	repo.Seed(teamsPath, `{"title":"Team"}`)

	var readers sync.WaitGroup
	readers.Add(2)
	repo.AfterGet = func(string) {
		readers.Done()
		readers.Wait()
	}
	store := newSectionStore(t, repo, nil)

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i, title := range []string{"First", "Second"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = store.Save(context.Background(), "teams", docstore.Section{Title: title})
		}()
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		var conflict *docstore.ConflictError
		switch {
		case err == nil:
			ok++
		case errors.As(err, &conflict) && conflict.Reason == docstore.ConflictStaleHash:
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || conflicts != 1 {
		t.Errorf("ok = %d, conflicts = %d; want exactly one of each", ok, conflicts)
	}
	if n := len(repo.Commits()); n != 1 {
		t.Errorf("commits = %d, want 1", n)
	}
}

func TestSectionStore_NotifiesWithSectionFields(t *testing.T) {
	repo := testutil.NewMemoryRepository()
	notifier := &recordingNotifier{}
	store := newSectionStore(t, repo, nil, docstore.WithNotifier(notifier))

	_, err := store.Save(context.Background(), "blogs", docstore.Section{Title: "Insights", Subtitle: "News"})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	if len(notifier.changes) != 1 {
		t.Fatalf("changes = %d, want 1", len(notifier.changes))
	}
	c := notifier.changes[0]
	if c.Collection != "sections" || c.Action != docstore.ActionUpdate {
		t.Errorf("change = %s/%s, want sections/update", c.Collection, c.Action)
	}
	if c.Record["section"] != "blogs" || c.Record["title"] != "Insights" || c.Record["subtitle"] != "News" {
		t.Errorf("change record = %v", c.Record)
	}
	if _, ok := c.Record["members"]; ok {
		t.Error("members should be omitted when empty")
	}
}

func TestSectionStore_UnknownSection(t *testing.T) {
	store := newSectionStore(t, testutil.NewMemoryRepository(), nil)

	if _, err := store.Get(context.Background(), "pricing"); !errors.Is(err, docstore.ErrNotFound) {
		t.Errorf("Get error = %v, want ErrNotFound", err)
	}
	if _, err := store.Save(context.Background(), "pricing", docstore.Section{Title: "x"}); !errors.Is(err, docstore.ErrNotFound) {
		t.Errorf("Save error = %v, want ErrNotFound", err)
	}
}

func TestSectionStore_Names(t *testing.T) {
	store := newSectionStore(t, testutil.NewMemoryRepository(), nil)

	names := store.Names()
	if len(names) != 2 || names[0] != "blogs" || names[1] != "teams" {
		t.Errorf("Names() = %v, want [blogs teams]", names)
	}
}

func TestSectionStore_Validation(t *testing.T) {
	tests := []struct {
		name  string
		sec   docstore.Section
		field string
	}{
		{"blank title", docstore.Section{Title: " "}, "title"},
		{"image not a string", docstore.Section{Title: "T", Image: 42.0}, "image"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := testutil.NewMemoryRepository()
			store := newSectionStore(t, repo, nil)

			_, err := store.Save(context.Background(), "blogs", tt.sec)
			var verr *docstore.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Save error = %v, want *ValidationError", err)
			}
			if _, ok := verr.Fields[tt.field]; !ok {
				t.Errorf("Fields = %v, want %q", verr.Fields, tt.field)
			}
			if n := len(repo.Commits()); n != 0 {
				t.Errorf("commits = %d, want 0", n)
			}
		})
	}
}
