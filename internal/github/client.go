// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package github reads and writes repository files through the GitHub
// contents API.
package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/olegiv/sitecms/internal/config"
	"github.com/olegiv/sitecms/internal/docstore"
)

const (
	apiVersion     = "2022-11-28"
	acceptHeader   = "application/vnd.github.v3+json"
	maxResponseLen = 5 << 20 // contents API serves files up to 1MB inline; leave room for base64
)

// APIError is a non-success response from GitHub.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("GitHub API error: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("GitHub API error: %d - %s", e.StatusCode, e.Message)
}

// Client implements docstore.Repository for one repository and branch.
type Client struct {
	cfg        config.GitHubConfig
	httpClient *http.Client
}

// NewClient creates a client. Configuration is checked on every call,
// not here, so the server can start without credentials.
// A nil httpClient selects one with cfg.Timeout.
func NewClient(cfg config.GitHubConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	if cfg.APIURL == "" {
		cfg.APIURL = "https://api.github.com"
	}
	if cfg.Branch == "" {
		cfg.Branch = "main"
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "sitecms"
	}
	return &Client{cfg: cfg, httpClient: httpClient}
}

type contentResponse struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
	SHA      string `json:"sha"`
}

type putRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	Branch  string `json:"branch"`
	SHA     string `json:"sha,omitempty"`
}

type putResponse struct {
	Content struct {
		SHA string `json:"sha"`
	} `json:"content"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// Get fetches path from the configured branch.
func (c *Client) Get(ctx context.Context, path string) (docstore.Document, error) {
	if err := c.cfg.Validate(); err != nil {
		return docstore.Document{}, err
	}

	endpoint := c.contentsURL(path) + "?ref=" + url.QueryEscape(c.cfg.Branch)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return docstore.Document{}, fmt.Errorf("creating request: %w", err)
	}

	body, status, err := c.do(req)
	if err != nil {
		return docstore.Document{}, err
	}
	if status == http.StatusNotFound {
		return docstore.Document{}, fmt.Errorf("%s: %w", path, docstore.ErrDocumentNotFound)
	}
	if status != http.StatusOK {
		return docstore.Document{}, apiError(status, body)
	}

	var resp contentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return docstore.Document{}, fmt.Errorf("decoding contents response: %w", err)
	}
	if resp.Encoding != "" && resp.Encoding != "base64" {
		return docstore.Document{}, fmt.Errorf("unsupported content encoding %q for %s", resp.Encoding, path)
	}

	// GitHub wraps base64 content at 60 columns.
	content, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(resp.Content, "\n", ""))
	if err != nil {
		return docstore.Document{}, fmt.Errorf("decoding %s content: %w", path, err)
	}
	return docstore.Document{Content: content, SHA: resp.SHA}, nil
}

// Put writes path on the configured branch. A stale or missing sha is
// reported as docstore.ErrStaleHash.
func (c *Client) Put(ctx context.Context, path string, w docstore.WriteRequest) (string, error) {
	if err := c.cfg.Validate(); err != nil {
		return "", err
	}

	payload, err := json.Marshal(putRequest{
		Message: w.Message,
		Content: base64.StdEncoding.EncodeToString(w.Content),
		Branch:  c.cfg.Branch,
		SHA:     w.SHA,
	})
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.contentsURL(path), bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, status, err := c.do(req)
	if err != nil {
		return "", err
	}

	switch {
	case status == http.StatusOK || status == http.StatusCreated:
		var resp putResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", fmt.Errorf("decoding update response: %w", err)
		}
		return resp.Content.SHA, nil
	case isStaleHash(status, body):
		return "", fmt.Errorf("%s: %w", path, docstore.ErrStaleHash)
	default:
		return "", apiError(status, body)
	}
}

func (c *Client) do(req *http.Request) ([]byte, int, error) {
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseLen))
	if err != nil {
		return nil, 0, fmt.Errorf("reading response: %w", err)
	}
	return body, resp.StatusCode, nil
}

func (c *Client) contentsURL(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return fmt.Sprintf("%s/repos/%s/%s/contents/%s",
		strings.TrimRight(c.cfg.APIURL, "/"),
		url.PathEscape(c.cfg.Owner),
		url.PathEscape(c.cfg.Repo),
		strings.Join(segments, "/"))
}

// isStaleHash reports whether a failed write was rejected because of its sha.
// GitHub answers 409 for a mismatched sha and 422 when a sha is missing or invalid.
func isStaleHash(status int, body []byte) bool {
	switch status {
	case http.StatusConflict:
		return true
	case http.StatusUnprocessableEntity:
		return strings.Contains(strings.ToLower(errorMessage(body)), "sha")
	default:
		return false
	}
}

func apiError(status int, body []byte) *APIError {
	return &APIError{StatusCode: status, Message: errorMessage(body)}
}

func errorMessage(body []byte) string {
	var e errorResponse
	if err := json.Unmarshal(body, &e); err == nil && e.Message != "" {
		return e.Message
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}

var _ docstore.Repository = (*Client)(nil)
