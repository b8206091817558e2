// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package docstore keeps collections of records in JSON documents of a
// versioned repository, using the document sha for compare-and-swap writes.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Action is a record mutation.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Change describes a committed write.
type Change struct {
	Collection string    `json:"collection"`
	Action     Action    `json:"action"`
	Record     Record    `json:"record"`
	SHA        string    `json:"sha"`
	At         time.Time `json:"at"`
}

// Notifier receives every committed change.
type Notifier interface {
	Notify(ctx context.Context, change Change)
}

// Observer records store activity. Implementations must be safe for concurrent use.
type Observer interface {
	// ObserveRead is called with source "cache" or "repository".
	ObserveRead(collection, source string)
	// ObserveWrite is called with outcome "ok", "conflict" or "error".
	ObserveWrite(collection string, action Action, outcome string)
}

// Sanitizer cleans user-supplied HTML. *bluemonday.Policy satisfies it.
type Sanitizer interface {
	Sanitize(s string) string
}

// Option configures a Store.
type Option func(*Store)

// WithCache serves List from lc and invalidates it after writes.
func WithCache(lc *ListCache) Option {
	return func(s *Store) { s.cache = lc }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator replaces the random UUID generator used for new records.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithNotifier sends committed changes to n.
func WithNotifier(n Notifier) Option {
	return func(s *Store) { s.notifier = n }
}

// WithObserver reports reads and writes to o.
func WithObserver(o Observer) Option {
	return func(s *Store) { s.observer = o }
}

// WithSanitizer cleans the content field of incoming records.
func WithSanitizer(p Sanitizer) Option {
	return func(s *Store) { s.sanitizer = p }
}

// Store is a collection of records kept in one repository document.
// Store does not lock: concurrent writers race and the repository's sha
// check admits exactly one of them.
type Store struct {
	repo      Repository
	coll      Collection
	cache     *ListCache
	now       func() time.Time
	newID     func() string
	logger    *slog.Logger
	notifier  Notifier
	observer  Observer
	sanitizer Sanitizer
}

// New creates a store for coll backed by repo.
func New(repo Repository, coll Collection, opts ...Option) *Store {
	s := &Store{
		repo:   repo,
		coll:   coll,
		now:    time.Now,
		newID:  uuid.NewString,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("collection", coll.Name)
	return s
}

// Collection returns the collection this store manages.
func (s *Store) Collection() Collection { return s.coll }

// List returns all records, most recent first. A missing document is an
// empty collection.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	if s.cache == nil {
		records, _, err := s.read(ctx)
		if err != nil {
			return nil, err
		}
		s.observeRead("repository")
		return records, nil
	}

	records, cached, err := s.cache.Load(ctx, s.coll.Name, func(ctx context.Context) ([]Record, error) {
		records, _, err := s.read(ctx)
		return records, err
	})
	if err != nil {
		return nil, err
	}
	if cached {
		s.observeRead("cache")
	} else {
		s.observeRead("repository")
	}
	return records, nil
}

// Get returns the record whose id or slug equals identifier.
func (s *Store) Get(ctx context.Context, identifier string) (Record, error) {
	records, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	idx, err := s.resolve(records, Identifier{ID: identifier, Slug: identifier})
	if err != nil {
		return nil, err
	}
	return records[idx], nil
}

// Mutate creates or updates a record and commits the collection.
//
// Create rejects a slug or id already in use, assigns an id when missing, stamps
// createdAt and updatedAt and prepends the record. Update locates the
// target by id or slug, merges the supplied fields over it and refreshes
// updatedAt in place. A concurrent commit surfaces as a *ConflictError
// with ConflictStaleHash; nothing is retried.
func (s *Store) Mutate(ctx context.Context, action Action, rec Record) (Record, error) {
	rec = s.prepare(rec)

	switch action {
	case ActionCreate:
		if err := s.coll.validateRecord(rec); err != nil {
			return nil, err
		}
	case ActionUpdate:
		if err := s.coll.validatePatch(rec); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}

	records, sha, err := s.read(ctx)
	if err != nil {
		return nil, err
	}

	var (
		result Record
		next   []Record
	)
	switch action {
	case ActionCreate:
		slug := rec.Slug()
		if slices.ContainsFunc(records, func(r Record) bool { return r.Slug() == slug }) {
			err := &ConflictError{Reason: ConflictDuplicateSlug, Label: s.coll.Label, Identifier: slug}
			s.logger.Warn("duplicate slug", "slug", slug)
			s.observeWrite(action, "conflict")
			return nil, err
		}
		if id := rec.ID(); id != "" && slices.ContainsFunc(records, func(r Record) bool { return r.ID() == id }) {
			err := &ConflictError{Reason: ConflictDuplicateID, Label: s.coll.Label, Identifier: id}
			s.logger.Warn("duplicate id", "id", id)
			s.observeWrite(action, "conflict")
			return nil, err
		}

		result = rec
		if result.ID() == "" {
			result[FieldID] = s.newID()
		}
		ts := s.timestamp("")
		result[FieldCreatedAt] = ts
		result[FieldUpdatedAt] = ts

		next = make([]Record, 0, len(records)+1)
		next = append(next, result)
		next = append(next, records...)

	case ActionUpdate:
		idx, err := s.resolve(records, Identifier{ID: rec.ID(), Slug: rec.Slug()})
		if err != nil {
			s.observeWrite(action, outcomeOf(err))
			return nil, err
		}

		current := records[idx]
		result = current.Merge(rec)
		// Identity and creation time belong to the stored record.
		restore(result, current, FieldID)
		restore(result, current, FieldCreatedAt)
		result[FieldUpdatedAt] = s.timestamp(current.String(FieldUpdatedAt))

		if err := s.coll.validateRecord(result); err != nil {
			return nil, err
		}

		next = slices.Clone(records)
		next[idx] = result
	}

	verb := "Create"
	if action == ActionUpdate {
		verb = "Update"
	}
	ctx = context.WithoutCancel(ctx)
	newSHA, err := s.write(ctx, action, next, sha, verb, result)
	if err != nil {
		return nil, err
	}

	s.committed(ctx, action, result, newSHA)
	return result, nil
}

// Delete removes the record whose id or slug equals identifier and
// commits the collection. It returns the removed record.
func (s *Store) Delete(ctx context.Context, identifier string) (Record, error) {
	if strings.TrimSpace(identifier) == "" {
		return nil, &ValidationError{Fields: map[string]string{FieldSlug: "cannot be blank"}}
	}

	records, sha, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	if sha == "" {
		s.observeWrite(ActionDelete, "not_found")
		return nil, fmt.Errorf("%s document %s: %w", s.coll.Label, s.coll.Path, ErrNotFound)
	}

	idx, err := s.resolve(records, Identifier{ID: identifier, Slug: identifier})
	if err != nil {
		s.observeWrite(ActionDelete, outcomeOf(err))
		return nil, err
	}

	removed := records[idx]
	next := slices.Delete(slices.Clone(records), idx, idx+1)

	ctx = context.WithoutCancel(ctx)
	newSHA, err := s.write(ctx, ActionDelete, next, sha, "Delete", removed)
	if err != nil {
		return nil, err
	}

	s.committed(ctx, ActionDelete, removed, newSHA)
	return removed, nil
}

// Invalidate drops the cached list.
func (s *Store) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Invalidate(ctx, s.coll.Name)
}

// Warm replaces the cached list with a fresh read.
func (s *Store) Warm(ctx context.Context) error {
	if err := s.Invalidate(ctx); err != nil {
		return err
	}
	_, err := s.List(ctx)
	return err
}

// read fetches and decodes the document. A missing document yields an
// empty list and an empty sha.
func (s *Store) read(ctx context.Context) ([]Record, string, error) {
	doc, err := s.repo.Get(ctx, s.coll.Path)
	if errors.Is(err, ErrDocumentNotFound) {
		return []Record{}, "", nil
	}
	if err != nil {
		s.logger.Error("failed to read document", "path", s.coll.Path, "error", err)
		return nil, "", fmt.Errorf("reading %s: %w", s.coll.Path, err)
	}

	records, err := decodeDocument(doc.Content, s.coll.ListKey)
	if err != nil {
		s.logger.Error("failed to decode document", "path", s.coll.Path, "error", err)
		return nil, "", fmt.Errorf("reading %s: %w", s.coll.Path, err)
	}
	return records, doc.SHA, nil
}

// write encodes records and commits them conditioned on sha. Callers pass
// a context without cancellation: a conditional write that reached the
// repository may have committed, so it is always allowed to finish.
func (s *Store) write(ctx context.Context, action Action, records []Record, sha, verb string, subject Record) (string, error) {
	content, err := encodeDocument(s.coll.ListKey, records)
	if err != nil {
		return "", fmt.Errorf("encoding %s: %w", s.coll.Path, err)
	}

	req := WriteRequest{
		Message: fmt.Sprintf("%s %s: %s - %s", verb, s.coll.Label, subject.Title(), s.now().UTC().Format(TimeFormat)),
		Content: content,
		SHA:     sha,
	}

	newSHA, err := s.repo.Put(ctx, s.coll.Path, req)
	if errors.Is(err, ErrStaleHash) {
		s.logger.Warn("write rejected, document changed since read", "action", action, "sha", sha)
		s.observeWrite(action, "conflict")
		return "", &ConflictError{Reason: ConflictStaleHash, Label: s.coll.Label, Identifier: sha, Err: err}
	}
	if err != nil {
		s.logger.Error("failed to write document", "path", s.coll.Path, "action", action, "error", err)
		s.observeWrite(action, "error")
		return "", fmt.Errorf("writing %s: %w", s.coll.Path, err)
	}
	return newSHA, nil
}

// committed runs after a successful write.
func (s *Store) committed(ctx context.Context, action Action, rec Record, sha string) {
	if err := s.Invalidate(ctx); err != nil {
		s.logger.Warn("failed to invalidate list cache", "error", err)
	}
	s.observeWrite(action, "ok")
	s.logger.Info("record committed", "action", action, "id", rec.ID(), "slug", rec.Slug(), "sha", sha)

	if s.notifier != nil {
		s.notifier.Notify(ctx, Change{
			Collection: s.coll.Name,
			Action:     action,
			Record:     rec,
			SHA:        sha,
			At:         s.now().UTC(),
		})
	}
}

// prepare copies rec and sanitizes its content field.
func (s *Store) prepare(rec Record) Record {
	rec = rec.Clone()
	if s.sanitizer != nil {
		if content, ok := rec[FieldContent].(string); ok {
			rec[FieldContent] = s.sanitizer.Sanitize(content)
		}
	}
	return rec
}

// timestamp returns the current time in TimeFormat, moved forward if
// needed so it is strictly after prev.
func (s *Store) timestamp(prev string) string {
	t := s.now().UTC().Truncate(time.Millisecond)
	if prev != "" {
		if p, err := time.Parse(time.RFC3339Nano, prev); err == nil {
			p = p.UTC().Truncate(time.Millisecond)
			if !t.After(p) {
				t = p.Add(time.Millisecond)
			}
		}
	}
	return t.Format(TimeFormat)
}

func (s *Store) resolve(records []Record, ident Identifier) (int, error) {
	idx, err := resolve(records, ident)
	switch {
	case errors.Is(err, errAmbiguous):
		s.logger.Warn("ambiguous identifier", "id", ident.ID, "slug", ident.Slug)
		key := ident.ID
		if key == "" {
			key = ident.Slug
		}
		return -1, &ConflictError{Reason: ConflictAmbiguous, Label: s.coll.Label, Identifier: key}
	case err != nil:
		return -1, fmt.Errorf("%s %s: %w", s.coll.Label, ident, err)
	}
	return idx, nil
}

func (s *Store) observeRead(source string) {
	if s.observer != nil {
		s.observer.ObserveRead(s.coll.Name, source)
	}
}

func (s *Store) observeWrite(action Action, outcome string) {
	if s.observer != nil {
		s.observer.ObserveWrite(s.coll.Name, action, outcome)
	}
}

func outcomeOf(err error) string {
	var conflict *ConflictError
	switch {
	case errors.As(err, &conflict):
		return "conflict"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

func restore(dst, src Record, key string) {
	if v, ok := src[key]; ok {
		dst[key] = v
	} else {
		delete(dst, key)
	}
}
