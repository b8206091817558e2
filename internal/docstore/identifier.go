// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package docstore

import (
	"errors"
	"fmt"
)

var errAmbiguous = errors.New("ambiguous identifier")

// Identifier locates a record by id or slug. Empty fields are ignored.
type Identifier struct {
	ID   string
	Slug string
}

func (i Identifier) String() string {
	switch {
	case i.ID != "" && i.ID == i.Slug:
		return fmt.Sprintf("%q", i.ID)
	case i.ID != "" && i.Slug != "":
		return fmt.Sprintf("id=%q slug=%q", i.ID, i.Slug)
	case i.ID != "":
		return fmt.Sprintf("id=%q", i.ID)
	default:
		return fmt.Sprintf("slug=%q", i.Slug)
	}
}

// resolve returns the index of the single record matching ident.
// It fails with ErrNotFound when nothing matches and errAmbiguous when
// the id and the slug match two different records.
func resolve(records []Record, ident Identifier) (int, error) {
	byID, bySlug := -1, -1
	for i, r := range records {
		if byID < 0 && ident.ID != "" && r.ID() == ident.ID {
			byID = i
		}
		if bySlug < 0 && ident.Slug != "" && r.Slug() == ident.Slug {
			bySlug = i
		}
	}

	switch {
	case byID >= 0 && bySlug >= 0 && byID != bySlug:
		return -1, errAmbiguous
	case byID >= 0:
		return byID, nil
	case bySlug >= 0:
		return bySlug, nil
	default:
		return -1, ErrNotFound
	}
}
