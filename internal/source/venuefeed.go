// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"strings"

	"github.com/pdiddy/research-digest/pkg/types"
)

// aclFeedURL is the ACL Anthology announcement feed. Declared as a var so
// tests can substitute an httptest server.
var aclFeedURL = "https://aclanthology.org/rss-feed.xml"

// knownVenues are the category terms recognized as ACL venues.
var knownVenues = map[string]bool{
	"ACL":      true,
	"EMNLP":    true,
	"NAACL":    true,
	"EACL":     true,
	"COLING":   true,
	"AACL":     true,
	"Findings": true,
}

// VenueFeedAdapter reads a conference announcement feed and optionally
// restricts it to an allow-list of venues (kind "acl_anthology").
//
// Options: conferences (allow-list), max_results (20).
type VenueFeedAdapter struct {
	deps Deps
}

// Kind returns the adapter's kind tag.
func (a *VenueFeedAdapter) Kind() string { return "acl_anthology" }

// Fetch reads the feed and returns the newest max_results entries.
func (a *VenueFeedAdapter) Fetch(ctx context.Context, src types.SourceConfig) ([]types.Record, error) {
	feedURL := aclFeedURL
	if src.URL != "" {
		feedURL = src.URL
	}

	feed, err := a.deps.fetchFeed(ctx, src, feedURL)
	if err != nil {
		return nil, err
	}

	allow := make(map[string]bool)
	for _, c := range src.Options.Strings("conferences") {
		allow[strings.ToUpper(c)] = true
	}

	var records []types.Record
	for _, item := range feed.Items {
		venue := venueOf(item.Categories)
		if len(allow) > 0 && !allow[strings.ToUpper(venue)] {
			continue
		}

		title := collapse(item.Title)
		if title == "" {
			title = untitled
		}
		summary := feedItemSummary(item)
		records = append(records, types.Record{
			SourceLabel: label(src, venue),
			Title:       title,
			Content:     summary,
			Abstract:    summary,
			URL:         strings.TrimSpace(item.Link),
			PublishedAt: feedItemDate(item),
			Authors:     feedItemAuthors(item),
			Categories:  append([]string(nil), item.Categories...),
			Metadata:    map[string]any{"conference": venue},
		})
	}

	sortByDateDesc(records)
	return truncate(records, src.Options.Int("max_results", 20)), nil
}

// venueOf returns the first category that names a known venue.
func venueOf(categories []string) string {
	for _, c := range categories {
		if knownVenues[strings.TrimSpace(c)] {
			return strings.TrimSpace(c)
		}
	}
	return ""
}
