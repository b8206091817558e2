// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/sitecms/internal/docstore"
)

// collectionHandler serves one collection.
type collectionHandler struct {
	store  *docstore.Store
	logger *slog.Logger
}

// List handles GET /api/{collection}.
func (c *collectionHandler) List(w http.ResponseWriter, r *http.Request) {
	coll := c.store.Collection()
	records, err := c.store.List(r.Context())
	if err != nil {
		writeStoreError(w, c.logger, coll.DisplayLabel(), err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{coll.ListKey: records})
}

// Get handles GET /api/{collection}/{idOrSlug}.
func (c *collectionHandler) Get(w http.ResponseWriter, r *http.Request) {
	coll := c.store.Collection()
	rec, err := c.store.Get(r.Context(), chi.URLParam(r, "idOrSlug"))
	if err != nil {
		writeStoreError(w, c.logger, coll.DisplayLabel(), err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{coll.ItemKey: rec})
}

// Put handles PUT /api/{collection} with {"action": ..., "<itemKey>": {...}}.
func (c *collectionHandler) Put(w http.ResponseWriter, r *http.Request) {
	coll := c.store.Collection()

	var body map[string]json.RawMessage
	if err := decodeJSON(w, r, &body); err != nil {
		WriteBadRequest(w, "Invalid JSON body", nil)
		return
	}

	var action string
	if raw, ok := body["action"]; ok {
		if err := json.Unmarshal(raw, &action); err != nil {
			WriteBadRequest(w, "action must be a string", nil)
			return
		}
	}
	rawItem, hasItem := body[coll.ItemKey]
	if strings.TrimSpace(action) == "" || !hasItem {
		WriteBadRequest(w, "Missing required fields: action and "+coll.ItemKey, nil)
		return
	}

	var item docstore.Record
	if err := json.Unmarshal(rawItem, &item); err != nil || item == nil {
		WriteBadRequest(w, coll.ItemKey+" must be a JSON object", nil)
		return
	}

	rec, err := c.store.Mutate(r.Context(), docstore.Action(action), item)
	if err != nil {
		writeStoreError(w, c.logger, coll.DisplayLabel(), err)
		return
	}

	verb := "created"
	if docstore.Action(action) == docstore.ActionUpdate {
		verb = "updated"
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"message":    coll.DisplayLabel() + " " + verb + " successfully",
		coll.ItemKey: rec,
	})
}

// Delete handles DELETE /api/{collection}/{idOrSlug}.
func (c *collectionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	coll := c.store.Collection()
	removed, err := c.store.Delete(r.Context(), chi.URLParam(r, "idOrSlug"))
	if err != nil {
		writeStoreError(w, c.logger, coll.DisplayLabel(), err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"message":       coll.DisplayLabel() + " deleted successfully",
		coll.DeletedKey: removed,
	})
}
