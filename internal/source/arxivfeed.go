// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"errors"
	"net/url"
	"path"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/pdiddy/research-digest/pkg/types"
)

// arxivFeedBase serves the per-category daily listings. Declared as a var
// so tests can substitute an httptest server.
var arxivFeedBase = "https://rss.arxiv.org"

const arxivOAIPrefix = "oai:arXiv.org:"

// ArxivFeedAdapter reads arXiv's per-category announcement feeds
// (kind "arxiv_rss").
//
// Options: categories (required), max_results (20).
type ArxivFeedAdapter struct {
	deps Deps
}

// Kind returns the adapter's kind tag.
func (a *ArxivFeedAdapter) Kind() string { return "arxiv_rss" }

// MaxRequests counts an RSS and an Atom request per category.
func (a *ArxivFeedAdapter) MaxRequests(src types.SourceConfig) int {
	return 2 * len(src.Options.Strings("categories"))
}

// Fetch reads the RSS listing of every category, falling back to the Atom
// listing when RSS yields nothing, then returns the newest max_results
// entries across all categories.
func (a *ArxivFeedAdapter) Fetch(ctx context.Context, src types.SourceConfig) ([]types.Record, error) {
	categories := src.Options.Strings("categories")
	if len(categories) == 0 {
		return nil, configErr(src, "categories is required")
	}

	var (
		records []types.Record
		errs    []error
	)
	for _, cat := range categories {
		items, err := a.categoryItems(ctx, src, cat)
		if err != nil {
			a.deps.Logger.Warn().Err(err).
				Str("source", src.Name).
				Str("category", cat).
				Msg("arXiv category feed failed")
			errs = append(errs, err)
			continue
		}
		for _, item := range items {
			if rec, ok := arxivFeedRecord(src, cat, item); ok {
				records = append(records, rec)
			}
		}
	}

	if len(records) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	sortByDateDesc(records)
	return truncate(records, src.Options.Int("max_results", 20)), nil
}

// categoryItems tries the RSS dialect first and the Atom dialect when RSS
// fails or has no entries.
func (a *ArxivFeedAdapter) categoryItems(ctx context.Context, src types.SourceConfig, cat string) ([]*gofeed.Item, error) {
	rssFeed, rssErr := a.deps.fetchFeed(ctx, src, arxivFeedBase+"/rss/"+url.PathEscape(cat))
	if rssErr == nil && len(rssFeed.Items) > 0 {
		return rssFeed.Items, nil
	}

	atomFeed, atomErr := a.deps.fetchFeed(ctx, src, arxivFeedBase+"/atom/"+url.PathEscape(cat))
	if atomErr != nil {
		if rssErr != nil {
			return nil, errors.Join(rssErr, atomErr)
		}
		// RSS parsed but was empty; an empty listing is not a failure.
		return nil, nil
	}
	return atomFeed.Items, nil
}

func arxivFeedRecord(src types.SourceConfig, cat string, item *gofeed.Item) (types.Record, bool) {
	title := collapse(item.Title)
	if title == "" {
		return types.Record{}, false
	}

	link := strings.TrimSpace(item.Link)
	id := arxivIDFromLink(link)
	if id == "" && strings.HasPrefix(item.GUID, arxivOAIPrefix) {
		id = strings.TrimPrefix(item.GUID, arxivOAIPrefix)
	}
	if id != "" {
		title = "[" + id + "] " + title
		if link == "" {
			link = "https://arxiv.org/abs/" + id
		}
	}

	abstract := stripAnnouncePrefix(feedItemSummary(item))
	rec := types.Record{
		SourceLabel: label(src, cat),
		Title:       title,
		Content:     abstract,
		Abstract:    abstract,
		URL:         link,
		PublishedAt: feedItemDate(item),
		Authors:     feedItemAuthors(item),
		Categories:  append([]string(nil), item.Categories...),
		Metadata:    map[string]any{"arxiv_id": id, "category": cat},
	}
	return rec, true
}

// arxivIDFromLink returns the last path segment of an arxiv.org link
// without a ".pdf" suffix, or "" for other hosts.
func arxivIDFromLink(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	if host != "arxiv.org" && !strings.HasSuffix(host, ".arxiv.org") {
		return ""
	}
	seg := path.Base(strings.TrimSuffix(u.Path, "/"))
	if seg == "." || seg == "/" {
		return ""
	}
	return strings.TrimSuffix(seg, ".pdf")
}

// stripAnnouncePrefix removes the "arXiv:… Announce Type: new Abstract:"
// preamble arXiv puts in front of feed descriptions.
func stripAnnouncePrefix(s string) string {
	if !strings.HasPrefix(s, "arXiv:") {
		return s
	}
	if i := strings.Index(s, "Abstract:"); i >= 0 {
		return strings.TrimSpace(s[i+len("Abstract:"):])
	}
	return s
}
