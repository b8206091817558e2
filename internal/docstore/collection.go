// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package docstore

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Collection describes one JSON document of records and how it is exposed.
type Collection struct {
	Name       string // cache key and metrics label
	Route      string // URL segment under /api
	Path       string // document path inside the repository
	ListKey    string // key holding the record list in the document
	ItemKey    string // key carrying a single record in requests and responses
	DeletedKey string // key carrying the removed record in delete responses
	Label      string // human-readable singular, used in commit messages

	// Rules are applied on top of the required title, content and slug checks.
	Rules []*validation.KeyRules
}

// DisplayLabel returns Label with its first letter upper-cased.
func (c Collection) DisplayLabel() string {
	if c.Label == "" {
		return c.Label
	}
	return strings.ToUpper(c.Label[:1]) + c.Label[1:]
}

var (
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

	nonBlankString = validation.By(func(value any) error {
		s, ok := value.(string)
		if !ok {
			return validation.NewError("validation_is_string", "must be a string")
		}
		if strings.TrimSpace(s) == "" {
			return validation.NewError("validation_required", "cannot be blank")
		}
		return nil
	})

	absoluteURL = validation.By(func(value any) error {
		if value == nil {
			return nil
		}
		s, ok := value.(string)
		if !ok {
			return validation.NewError("validation_is_string", "must be a string")
		}
		if s == "" {
			return nil
		}
		u, err := url.Parse(s)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return validation.NewError("validation_is_url", "must be a valid http(s) URL")
		}
		return nil
	})

	stringList = validation.By(func(value any) error {
		if value == nil {
			return nil
		}
		items, ok := value.([]any)
		if !ok {
			return validation.NewError("validation_is_list", "must be a list")
		}
		for _, item := range items {
			if _, ok := item.(string); !ok {
				return validation.NewError("validation_is_string_list", "must be a list of strings")
			}
		}
		return nil
	})

	boolean = validation.By(func(value any) error {
		if value == nil {
			return nil
		}
		if _, ok := value.(bool); !ok {
			return validation.NewError("validation_is_bool", "must be true or false")
		}
		return nil
	})
)

// Document file names inside the content directory.
const (
	PostsFile    = "blog-posts.json"
	EventsFile   = "events.json"
	ArticlesFile = "news-articles.json"
)

// Posts is the blog post collection stored under contentDir.
func Posts(contentDir string) Collection {
	return Collection{
		Name:       "posts",
		Route:      "blogs",
		Path:       path.Join(contentDir, PostsFile),
		ListKey:    "posts",
		ItemKey:    "blogPost",
		DeletedKey: "deletedPost",
		Label:      "blog post",
		Rules: []*validation.KeyRules{
			validation.Key("tags", stringList).Optional(),
		},
	}
}

// Events is the event collection stored under contentDir.
func Events(contentDir string) Collection {
	return Collection{
		Name:       "events",
		Route:      "events",
		Path:       path.Join(contentDir, EventsFile),
		ListKey:    "events",
		ItemKey:    "event",
		DeletedKey: "deletedEvent",
		Label:      "event",
		Rules: []*validation.KeyRules{
			validation.Key("email", validation.Match(emailPattern).Error("must be a valid email address")).Optional(),
			validation.Key("registrationLink", absoluteURL).Optional(),
			validation.Key("registrationRequired", boolean).Optional(),
		},
	}
}

// Articles is the news article collection stored under contentDir.
func Articles(contentDir string) Collection {
	return Collection{
		Name:       "articles",
		Route:      "news",
		Path:       path.Join(contentDir, ArticlesFile),
		ListKey:    "articles",
		ItemKey:    "article",
		DeletedKey: "deletedArticle",
		Label:      "news article",
		Rules: []*validation.KeyRules{
			validation.Key("urgent", boolean).Optional(),
		},
	}
}

// Collections returns every collection served by the API.
func Collections(contentDir string) []Collection {
	return []Collection{Posts(contentDir), Events(contentDir), Articles(contentDir)}
}

// validateRecord checks a complete record: required fields plus collection rules.
func (c Collection) validateRecord(r Record) error {
	keys := []*validation.KeyRules{
		validation.Key(FieldTitle, validation.Required, nonBlankString),
		validation.Key(FieldContent, validation.Required, nonBlankString),
		validation.Key(FieldSlug, validation.Required, nonBlankString),
	}
	keys = append(keys, c.Rules...)
	return newValidationError(validation.Validate(map[string]any(r), validation.Map(keys...).AllowExtraKeys()))
}

// validatePatch checks an update patch. Required fields may be absent but
// not blank, and the patch must carry an id or slug to locate its target.
func (c Collection) validatePatch(r Record) error {
	if r.ID() == "" && r.Slug() == "" {
		return &ValidationError{Fields: map[string]string{
			FieldID: "id or slug is required to update",
		}}
	}
	keys := []*validation.KeyRules{
		validation.Key(FieldTitle, validation.Required, nonBlankString).Optional(),
		validation.Key(FieldContent, validation.Required, nonBlankString).Optional(),
		validation.Key(FieldSlug, validation.Required, nonBlankString).Optional(),
	}
	keys = append(keys, c.Rules...)
	return newValidationError(validation.Validate(map[string]any(r), validation.Map(keys...).AllowExtraKeys()))
}
