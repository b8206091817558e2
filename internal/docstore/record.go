// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package docstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
)

// Record field names interpreted by the store. Everything else is opaque.
const (
	FieldID        = "id"
	FieldSlug      = "slug"
	FieldTitle     = "title"
	FieldContent   = "content"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

// TimeFormat is the layout of createdAt and updatedAt.
const TimeFormat = "2006-01-02T15:04:05.000Z"

// Record is one entry of a collection. Numbers decode as json.Number so
// fields the store does not understand round-trip unchanged.
type Record map[string]any

// UnmarshalJSON decodes the record keeping numbers exact.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return err
	}
	*r = m
	return nil
}

// String returns the field as a string, or "" when absent or not a string.
func (r Record) String(key string) string {
	s, _ := r[key].(string)
	return s
}

func (r Record) ID() string    { return r.String(FieldID) }
func (r Record) Slug() string  { return r.String(FieldSlug) }
func (r Record) Title() string { return r.String(FieldTitle) }

// Clone returns a shallow copy.
func (r Record) Clone() Record {
	if r == nil {
		return Record{}
	}
	return maps.Clone(r)
}

// Merge returns a copy of r with every top-level field of patch applied over it.
func (r Record) Merge(patch Record) Record {
	out := r.Clone()
	maps.Copy(out, patch)
	return out
}

// decodeDocument extracts the record list stored under listKey.
// A missing or null key yields an empty list.
func decodeDocument(data []byte, listKey string) ([]Record, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding document: %w", err)
	}

	raw, ok := doc[listKey]
	if !ok {
		return []Record{}, nil
	}

	var records []Record
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decoding %q list: %w", listKey, err)
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

// encodeDocument renders {listKey: records} with two-space indentation.
// HTML is not escaped so editor content stays readable in the repository.
func encodeDocument(listKey string, records []Record) ([]byte, error) {
	if records == nil {
		records = []Record{}
	}
	return encodeJSON(map[string]any{listKey: records})
}

func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
