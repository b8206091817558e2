// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package api provides the JSON handlers of the content API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/sitecms/internal/config"
	"github.com/olegiv/sitecms/internal/docstore"
	"github.com/olegiv/sitecms/internal/github"
	"github.com/olegiv/sitecms/internal/middleware"
	"github.com/olegiv/sitecms/internal/version"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Handler holds shared dependencies for all API handlers.
type Handler struct {
	stores   []*docstore.Store
	sections *docstore.SectionStore
	version  version.Info
	logger   *slog.Logger
}

// NewHandler creates a new API handler. sections may be nil.
func NewHandler(stores []*docstore.Store, sections *docstore.SectionStore, info version.Info, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		stores:   stores,
		sections: sections,
		version:  info,
		logger:   logger,
	}
}

// Routes registers the API on r. It is meant to be mounted under /api.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/status", h.Status)
	r.Post("/slugify", h.Slugify)

	for _, s := range h.stores {
		c := &collectionHandler{store: s, logger: h.logger.With("collection", s.Collection().Name)}
		r.Route("/"+s.Collection().Route, func(r chi.Router) {
			r.Get("/", c.List)
			r.Put("/", c.Put)
			r.Get("/{idOrSlug}", c.Get)
			r.Delete("/{idOrSlug}", c.Delete)
		})
	}

	if h.sections != nil {
		r.Get("/content", h.ListSections)
		r.Get("/content/{section}", h.GetSection)
		r.Put("/content/{section}", h.PutSection)
	}
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteError writes an error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, code, message string, details map[string]string) {
	middleware.WriteAPIError(w, statusCode, code, message, details)
}

// WriteBadRequest writes a 400 Bad Request response.
func WriteBadRequest(w http.ResponseWriter, message string, details map[string]string) {
	WriteError(w, http.StatusBadRequest, "bad_request", message, details)
}

// WriteNotFound writes a 404 Not Found response.
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, "not_found", message, nil)
}

// WriteInternalError writes a 500 Internal Server Error response.
func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, "internal_error", message, nil)
}

// WriteValidationError writes a 400 response with field errors.
func WriteValidationError(w http.ResponseWriter, fieldErrors map[string]string) {
	WriteError(w, http.StatusBadRequest, "validation_error", "Validation failed", fieldErrors)
}

// writeStoreError maps a store error to its response. label names the
// thing that was looked up, e.g. "Blog post".
func writeStoreError(w http.ResponseWriter, logger *slog.Logger, label string, err error) {
	var (
		verr     *docstore.ValidationError
		conflict *docstore.ConflictError
		upstream *github.APIError
		urlErr   *url.Error
	)

	switch {
	case errors.As(err, &verr):
		WriteValidationError(w, verr.Fields)
	case errors.Is(err, docstore.ErrInvalidAction):
		WriteBadRequest(w, err.Error(), nil)
	case errors.As(err, &conflict):
		WriteError(w, http.StatusConflict, "conflict", conflict.Error(), map[string]string{
			"reason": string(conflict.Reason),
		})
	case errors.Is(err, docstore.ErrNotFound):
		WriteNotFound(w, label+" not found")
	case errors.Is(err, config.ErrConfiguration):
		logger.Error("content repository not configured", "error", err)
		WriteError(w, http.StatusInternalServerError, "configuration_error", err.Error(), nil)
	case errors.As(err, &upstream):
		WriteError(w, http.StatusInternalServerError, "upstream_error", "Content repository request failed", map[string]string{
			"status":  strconv.Itoa(upstream.StatusCode),
			"message": upstream.Message,
		})
	case errors.As(err, &urlErr), errors.Is(err, context.DeadlineExceeded):
		WriteError(w, http.StatusInternalServerError, "upstream_error", "Content repository unreachable", nil)
	default:
		logger.Error("unexpected store error", "error", err)
		WriteInternalError(w, "Internal server error")
	}
}

// decodeJSON decodes a size-limited JSON request body.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

// StatusResponse contains API status information.
type StatusResponse struct {
	Status  string       `json:"status"`
	Version version.Info `json:"version"`
}

// Status returns the API status.
func (h *Handler) Status(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, StatusResponse{
		Status:  "ok",
		Version: h.version,
	})
}
