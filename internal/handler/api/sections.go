// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/sitecms/internal/docstore"
	"github.com/olegiv/sitecms/internal/util"
)

// ListSections handles GET /api/content with the editable section names.
func (h *Handler) ListSections(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string][]string{"sections": h.sections.Names()})
}

// GetSection handles GET /api/content/{section}.
func (h *Handler) GetSection(w http.ResponseWriter, r *http.Request) {
	sec, err := h.sections.Get(r.Context(), chi.URLParam(r, "section"))
	if err != nil {
		writeStoreError(w, h.logger, "Section", err)
		return
	}
	WriteJSON(w, http.StatusOK, sec)
}

// PutSection handles PUT /api/content/{section}. The body replaces the section.
func (h *Handler) PutSection(w http.ResponseWriter, r *http.Request) {
	var sec docstore.Section
	if err := decodeJSON(w, r, &sec); err != nil {
		WriteBadRequest(w, "Invalid JSON body", nil)
		return
	}

	saved, err := h.sections.Save(r.Context(), chi.URLParam(r, "section"), sec)
	if err != nil {
		writeStoreError(w, h.logger, "Section", err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Section saved successfully",
		"section": saved,
	})
}

// Slugify handles POST /api/slugify with {"title": "..."}.
func (h *Handler) Slugify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		WriteBadRequest(w, "Invalid JSON body", nil)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"slug": util.Slugify(req.Title)})
}
