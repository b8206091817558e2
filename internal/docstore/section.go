// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"slices"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/olegiv/sitecms/internal/cache"
)

// Section is the editable header of a static page.
type Section struct {
	Title    string   `json:"title"`
	Subtitle string   `json:"subtitle"`
	Content  string   `json:"content"`
	Image    any      `json:"image"`
	Meta     string   `json:"meta"`
	Members  []Record `json:"members,omitempty"`
}

// Validate checks the section fields.
func (s Section) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Title, validation.Required, nonBlankString),
		validation.Field(&s.Image, validation.By(func(value any) error {
			switch value.(type) {
			case nil, string:
				return nil
			default:
				return validation.NewError("validation_is_string", "must be a string or null")
			}
		})),
	)
}

// record flattens s for change notifications.
func (s Section) record(name string) Record {
	rec := Record{
		"section":  name,
		"title":    s.Title,
		"subtitle": s.Subtitle,
		"content":  s.Content,
		"image":    s.Image,
		"meta":     s.Meta,
	}
	if len(s.Members) > 0 {
		rec["members"] = s.Members
	}
	return rec
}

// SectionStore keeps one JSON document per page section under dir/sections.
type SectionStore struct {
	repo      Repository
	dir       string
	names     []string
	cache     *cache.TypedCache[Section]
	now       func() time.Time
	logger    *slog.Logger
	notifier  Notifier
	sanitizer Sanitizer
}

// NewSectionStore serves the named sections stored under contentDir.
// c may be nil to disable caching. Only the clock, logger, notifier and
// sanitizer options apply.
func NewSectionStore(repo Repository, contentDir string, names []string, c cache.Cacher, ttl time.Duration, opts ...Option) *SectionStore {
	base := &Store{now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(base)
	}

	ss := &SectionStore{
		repo:      repo,
		dir:       path.Join(contentDir, "sections"),
		names:     slices.Clone(names),
		now:       base.now,
		logger:    base.logger.With("collection", "sections"),
		notifier:  base.notifier,
		sanitizer: base.sanitizer,
	}
	if c != nil {
		if ttl <= 0 {
			ttl = DefaultCacheTTL
		}
		ss.cache = cache.NewTypedCache[Section](c, ttl)
	}
	return ss
}

// Names returns the configured section names.
func (ss *SectionStore) Names() []string { return slices.Clone(ss.names) }

// Get returns the stored section. A section that was never saved is empty.
func (ss *SectionStore) Get(ctx context.Context, name string) (Section, error) {
	if err := ss.check(name); err != nil {
		return Section{}, err
	}

	fetch := func(ctx context.Context) (Section, error) {
		sec, _, err := ss.read(ctx, name)
		return sec, err
	}
	if ss.cache == nil {
		return fetch(ctx)
	}
	sec, _, err := ss.cache.Load(ctx, sectionKey(name), fetch)
	return sec, err
}

// Save replaces the section document with sec.
func (ss *SectionStore) Save(ctx context.Context, name string, sec Section) (Section, error) {
	if err := ss.check(name); err != nil {
		return Section{}, err
	}
	if ss.sanitizer != nil {
		sec.Content = ss.sanitizer.Sanitize(sec.Content)
	}
	if err := newValidationError(sec.Validate()); err != nil {
		return Section{}, err
	}

	_, sha, err := ss.read(ctx, name)
	if err != nil {
		return Section{}, err
	}

	content, err := encodeJSON(sec)
	if err != nil {
		return Section{}, fmt.Errorf("encoding section %s: %w", name, err)
	}

	p := ss.path(name)
	ctx = context.WithoutCancel(ctx)
	newSHA, err := ss.repo.Put(ctx, p, WriteRequest{
		Message: fmt.Sprintf("Update %s section: %s - %s", name, sec.Title, ss.now().UTC().Format(TimeFormat)),
		Content: content,
		SHA:     sha,
	})
	if errors.Is(err, ErrStaleHash) {
		ss.logger.Warn("write rejected, document changed since read", "section", name, "sha", sha)
		return Section{}, &ConflictError{Reason: ConflictStaleHash, Label: name + " section", Identifier: sha, Err: err}
	}
	if err != nil {
		ss.logger.Error("failed to write section", "section", name, "error", err)
		return Section{}, fmt.Errorf("writing %s: %w", p, err)
	}

	if ss.cache != nil {
		if err := ss.cache.Invalidate(ctx, sectionKey(name)); err != nil {
			ss.logger.Warn("failed to invalidate section cache", "section", name, "error", err)
		}
	}
	ss.logger.Info("section committed", "section", name, "sha", newSHA)

	if ss.notifier != nil {
		ss.notifier.Notify(ctx, Change{
			Collection: "sections",
			Action:     ActionUpdate,
			Record:     sec.record(name),
			SHA:        newSHA,
			At:         ss.now().UTC(),
		})
	}
	return sec, nil
}

func (ss *SectionStore) read(ctx context.Context, name string) (Section, string, error) {
	p := ss.path(name)
	doc, err := ss.repo.Get(ctx, p)
	if errors.Is(err, ErrDocumentNotFound) {
		return Section{}, "", nil
	}
	if err != nil {
		ss.logger.Error("failed to read section", "section", name, "error", err)
		return Section{}, "", fmt.Errorf("reading %s: %w", p, err)
	}

	var sec Section
	if err := json.Unmarshal(doc.Content, &sec); err != nil {
		return Section{}, "", fmt.Errorf("decoding %s: %w", p, err)
	}
	return sec, doc.SHA, nil
}

func (ss *SectionStore) check(name string) error {
	if !slices.Contains(ss.names, name) {
		return fmt.Errorf("section %q: %w", name, ErrNotFound)
	}
	return nil
}

func (ss *SectionStore) path(name string) string {
	return path.Join(ss.dir, name+".json")
}

func sectionKey(name string) string { return "section:" + name }
