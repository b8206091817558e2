// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package webhook notifies external endpoints of committed content changes.
package webhook

import (
	"time"

	"github.com/olegiv/sitecms/internal/docstore"
)

// Event represents a webhook event to be dispatched.
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// NewEvent creates a new webhook event.
func NewEvent(eventType string, data any) *Event {
	return &Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// ChangeEventData is the payload of a content change event.
type ChangeEventData struct {
	Collection string          `json:"collection"`
	ID         string          `json:"id,omitempty"`
	Slug       string          `json:"slug,omitempty"`
	Title      string          `json:"title,omitempty"`
	SHA        string          `json:"sha"`
	Record     docstore.Record `json:"record"`
}

// EventType returns the event name of a change, e.g. "posts.created".
func EventType(c docstore.Change) string {
	switch c.Action {
	case docstore.ActionCreate:
		return c.Collection + ".created"
	case docstore.ActionDelete:
		return c.Collection + ".deleted"
	default:
		return c.Collection + ".updated"
	}
}

// NewChangeEvent builds the event sent for a committed change.
func NewChangeEvent(c docstore.Change) *Event {
	ev := NewEvent(EventType(c), ChangeEventData{
		Collection: c.Collection,
		ID:         c.Record.ID(),
		Slug:       c.Record.Slug(),
		Title:      c.Record.Title(),
		SHA:        c.SHA,
		Record:     c.Record,
	})
	if !c.At.IsZero() {
		ev.Timestamp = c.At
	}
	return ev
}
