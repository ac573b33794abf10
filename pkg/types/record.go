// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Record is the normalized shape every source adapter produces. Records are
// created by adapters and only ever selected, never modified, by filters.
type Record struct {
	// SourceLabel names where the record came from. It always starts with
	// the configured source name and may carry a sub-label
	// ("arxiv-feed/cs.RO", "dblp/NeurIPS").
	SourceLabel string `json:"source" yaml:"source"`

	// Title is the display title. Adapters substitute a placeholder
	// ("Untitled", "Item 3") when the upstream item has none.
	Title string `json:"title" yaml:"title"`

	// Content is the primary body text. It may be empty but is never absent.
	Content string `json:"content" yaml:"content"`

	// URL links to the item. Empty means the source supplied none.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// PublishedAt is the date text as the source reported it (or as
	// normalized by feed adapters). It is not guaranteed to parse.
	PublishedAt string `json:"published_at,omitempty" yaml:"published_at,omitempty"`

	// Authors in upstream order.
	Authors []string `json:"authors,omitempty" yaml:"authors,omitempty"`

	// Abstract is set by academic adapters and is distinct from Content.
	Abstract string `json:"abstract,omitempty" yaml:"abstract,omitempty"`

	// Categories in upstream order (subject classes, venues).
	Categories []string `json:"categories,omitempty" yaml:"categories,omitempty"`

	// Metadata holds adapter-specific provenance. Filters never read it.
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// AbstractOrContent returns Abstract when set and Content otherwise.
func (r Record) AbstractOrContent() string {
	if r.Abstract != "" {
		return r.Abstract
	}
	return r.Content
}
