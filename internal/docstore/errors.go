// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package docstore

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var (
	// ErrValidation is wrapped by every *ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound means the target record (or the document holding it) does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidAction is returned by Mutate for anything other than create or update.
	ErrInvalidAction = errors.New(`invalid action: must be "create" or "update"`)

	// ErrDocumentNotFound is returned by a Repository when the path does not exist.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrStaleHash is returned by a Repository when a conditional write
	// presents a sha that no longer matches the stored document.
	ErrStaleHash = errors.New("stale content hash")
)

// ValidationError lists the fields that failed validation.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// newValidationError converts ozzo validation errors into a *ValidationError.
// Internal rule failures are returned unchanged.
func newValidationError(err error) error {
	if err == nil {
		return nil
	}
	var internal validation.InternalError
	if errors.As(err, &internal) {
		return err
	}

	fields := make(map[string]string)
	var errs validation.Errors
	if errors.As(err, &errs) {
		for name, fieldErr := range errs {
			fields[name] = fieldErr.Error()
		}
	} else {
		fields["record"] = err.Error()
	}
	return &ValidationError{Fields: fields}
}

// ConflictReason tells apart the ways a write can conflict.
type ConflictReason string

const (
	ConflictDuplicateSlug ConflictReason = "duplicate_slug"
	ConflictDuplicateID   ConflictReason = "duplicate_id"
	ConflictStaleHash     ConflictReason = "stale_hash"
	ConflictAmbiguous     ConflictReason = "ambiguous_identifier"
)

// ConflictError is returned when a mutation cannot be applied to the
// current document. Callers that want to retry must re-read first.
type ConflictError struct {
	Reason     ConflictReason
	Label      string // "blog post", "event", ...
	Identifier string
	Err        error
}

func (e *ConflictError) Error() string {
	switch e.Reason {
	case ConflictDuplicateSlug:
		return fmt.Sprintf("a %s with slug %q already exists", e.Label, e.Identifier)
	case ConflictDuplicateID:
		return fmt.Sprintf("a %s with id %q already exists", e.Label, e.Identifier)
	case ConflictStaleHash:
		return fmt.Sprintf("the %s collection was modified concurrently; reload and try again", e.Label)
	case ConflictAmbiguous:
		return fmt.Sprintf("identifier %q matches more than one %s by id and slug", e.Identifier, e.Label)
	default:
		return fmt.Sprintf("%s conflict", e.Label)
	}
}

func (e *ConflictError) Unwrap() error { return e.Err }
