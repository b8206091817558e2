// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package logging provides a slog handler that reports warnings and errors
// to an event sink such as the metrics registry.
package logging

import (
	"context"
	"log/slog"
	"slices"
	"strings"
)

// Event categories.
const (
	CategoryCache   = "cache"
	CategoryConfig  = "config"
	CategoryStore   = "store"
	CategoryWebhook = "webhook"
	CategorySystem  = "system"
)

// Sink receives one call per forwarded log record.
type Sink interface {
	LogEvent(level, category string)
}

// EventHandler is a slog.Handler that wraps another handler and also reports
// WARN and ERROR records to a Sink.
type EventHandler struct {
	inner slog.Handler
	sink  Sink
	level slog.Level // Minimum level to forward (default: WARN)
	attrs []slog.Attr
}

// NewEventHandler creates an EventHandler forwarding WARN and above.
func NewEventHandler(inner slog.Handler, sink Sink) *EventHandler {
	return NewEventHandlerWithLevel(inner, sink, slog.LevelWarn)
}

// NewEventHandlerWithLevel creates an EventHandler with a custom minimum level.
func NewEventHandlerWithLevel(inner slog.Handler, sink Sink, level slog.Level) *EventHandler {
	return &EventHandler{
		inner: inner,
		sink:  sink,
		level: level,
	}
}

// Enabled implements slog.Handler.
func (h *EventHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *EventHandler) Handle(ctx context.Context, r slog.Record) error {
	if err := h.inner.Handle(ctx, r); err != nil {
		return err
	}

	if r.Level >= h.level && h.sink != nil {
		h.sink.LogEvent(levelName(r.Level), h.category(r))
	}
	return nil
}

// WithAttrs implements slog.Handler.
func (h *EventHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &EventHandler{
		inner: h.inner.WithAttrs(attrs),
		sink:  h.sink,
		level: h.level,
		attrs: append(slices.Clip(h.attrs), attrs...),
	}
}

// WithGroup implements slog.Handler.
func (h *EventHandler) WithGroup(name string) slog.Handler {
	return &EventHandler{
		inner: h.inner.WithGroup(name),
		sink:  h.sink,
		level: h.level,
		attrs: h.attrs,
	}
}

func levelName(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "error"
	case level >= slog.LevelWarn:
		return "warn"
	default:
		return "info"
	}
}

// category uses an explicit "category" attribute, then a "collection"
// attribute from the record or logger, then keywords in the message.
func (h *EventHandler) category(r slog.Record) string {
	var category, collection string
	find := func(a slog.Attr) bool {
		switch a.Key {
		case "category":
			category = a.Value.String()
		case "collection":
			collection = a.Value.String()
		}
		return category == ""
	}
	r.Attrs(find)
	if category == "" {
		for _, a := range h.attrs {
			if !find(a) {
				break
			}
		}
	}

	switch {
	case category != "":
		return category
	case collection != "":
		return CategoryStore
	}

	msg := strings.ToLower(r.Message)
	switch {
	case strings.Contains(msg, "cache"):
		return CategoryCache
	case strings.Contains(msg, "webhook") || strings.Contains(msg, "delivery"):
		return CategoryWebhook
	case strings.Contains(msg, "config"):
		return CategoryConfig
	case strings.Contains(msg, "document") || strings.Contains(msg, "commit"):
		return CategoryStore
	default:
		return CategorySystem
	}
}
