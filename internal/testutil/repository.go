// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package testutil

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/olegiv/sitecms/internal/docstore"
)

// Commit is one accepted write.
type Commit struct {
	Path    string
	Message string
	SHA     string
}

// MemoryRepository is an in-memory docstore.Repository with git blob
// shas and the same conditional write rules as the GitHub contents API.
type MemoryRepository struct {
	// AfterGet, when set, runs after every Get has taken its snapshot.
	// Tests use it to line up concurrent readers.
	AfterGet func(path string)

	// GetErr and PutErr, when set, are returned instead of doing the operation.
	GetErr error
	PutErr error

	// PutDelay makes Put wait before writing, like a slow upstream. Put
	// gives up with the context error if ctx ends first.
	PutDelay time.Duration

	mu      sync.Mutex
	files   map[string]memoryFile
	gets    map[string]int
	commits []Commit
}

type memoryFile struct {
	content []byte
	sha     string
}

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		files: make(map[string]memoryFile),
		gets:  make(map[string]int),
	}
}

// BlobSHA returns the git blob sha of content.
func BlobSHA(content []byte) string {
	h := sha1.New()
	_, _ = fmt.Fprintf(h, "blob %d\x00", len(content))
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}

// Seed stores content at path without recording a commit and returns its sha.
func (m *MemoryRepository) Seed(path string, content string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	sha := BlobSHA([]byte(content))
	m.files[path] = memoryFile{content: []byte(content), sha: sha}
	return sha
}

// Get implements docstore.Repository.
func (m *MemoryRepository) Get(_ context.Context, path string) (docstore.Document, error) {
	m.mu.Lock()
	m.gets[path]++
	f, ok := m.files[path]
	getErr := m.GetErr
	m.mu.Unlock()

	if m.AfterGet != nil {
		m.AfterGet(path)
	}

	if getErr != nil {
		return docstore.Document{}, getErr
	}
	if !ok {
		return docstore.Document{}, docstore.ErrDocumentNotFound
	}
	return docstore.Document{Content: slices.Clone(f.content), SHA: f.sha}, nil
}

// Put implements docstore.Repository. A missing sha may only create a
// document and a present sha must match the stored one.
func (m *MemoryRepository) Put(ctx context.Context, path string, req docstore.WriteRequest) (string, error) {
	if m.PutDelay > 0 {
		select {
		case <-time.After(m.PutDelay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.PutErr != nil {
		return "", m.PutErr
	}

	current, exists := m.files[path]
	switch {
	case req.SHA == "" && exists:
		return "", fmt.Errorf("%s: sha not supplied for existing file: %w", path, docstore.ErrStaleHash)
	case req.SHA != "" && (!exists || current.sha != req.SHA):
		return "", fmt.Errorf("%s does not match %s: %w", path, req.SHA, docstore.ErrStaleHash)
	}

	sha := BlobSHA(req.Content)
	m.files[path] = memoryFile{content: slices.Clone(req.Content), sha: sha}
	m.commits = append(m.commits, Commit{Path: path, Message: req.Message, SHA: sha})
	return sha, nil
}

// Content returns the stored content of path and whether it exists.
func (m *MemoryRepository) Content(path string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.files[path]
	return slices.Clone(f.content), ok
}

// SHA returns the current sha of path, or "" if absent.
func (m *MemoryRepository) SHA(path string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.files[path].sha
}

// Gets returns how many times path was read.
func (m *MemoryRepository) Gets(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gets[path]
}

// Commits returns the accepted writes in order.
func (m *MemoryRepository) Commits() []Commit {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.commits)
}

var _ docstore.Repository = (*MemoryRepository)(nil)
