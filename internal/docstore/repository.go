// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package docstore

import "context"

// Document is a stored file together with its content hash.
type Document struct {
	Content []byte
	SHA     string
}

// WriteRequest describes a conditional write. An empty SHA creates the
// document; a non-empty SHA must match the stored one.
type WriteRequest struct {
	Message string
	Content []byte
	SHA     string
}

// Repository is the versioned file store documents live in.
type Repository interface {
	// Get returns ErrDocumentNotFound when path does not exist.
	Get(ctx context.Context, path string) (Document, error)

	// Put returns the new sha, or an error wrapping ErrStaleHash when
	// the presented sha is out of date.
	Put(ctx context.Context, path string, req WriteRequest) (string, error)
}
