// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/pdiddy/research-digest/internal/dates"
	"github.com/pdiddy/research-digest/pkg/types"
)

// fetchFeed downloads and parses an RSS or Atom document, reporting
// failures as *FetchError or *ParseError.
func (d Deps) fetchFeed(ctx context.Context, src types.SourceConfig, feedURL string) (*gofeed.Feed, error) {
	body, err := d.Client.Get(ctx, feedURL, nil)
	if err != nil {
		return nil, fetchErr(src, err)
	}
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, parseErr(src, fmt.Errorf("parsing feed %s: %w", feedURL, err))
	}
	return feed, nil
}

// feedItemDate returns the item date normalized to RFC 3339 in UTC. The
// timestamp gofeed parsed wins; raw pubDate, dc:date and updated follow.
func feedItemDate(item *gofeed.Item) string {
	if item.PublishedParsed != nil {
		return item.PublishedParsed.UTC().Format(time.RFC3339)
	}
	var dc string
	if item.DublinCoreExt != nil && len(item.DublinCoreExt.Date) > 0 {
		dc = item.DublinCoreExt.Date[0]
	}
	if s := dates.First(item.Published, dc); s != "" {
		return s
	}
	if item.UpdatedParsed != nil {
		return item.UpdatedParsed.UTC().Format(time.RFC3339)
	}
	return dates.First(item.Updated)
}

// feedItemAuthors returns the item's author names in order.
func feedItemAuthors(item *gofeed.Item) []string {
	var out []string
	for _, p := range item.Authors {
		if p == nil {
			continue
		}
		if name := collapse(p.Name); name != "" {
			out = append(out, name)
		}
	}
	if len(out) == 0 && item.DublinCoreExt != nil {
		for _, c := range item.DublinCoreExt.Creator {
			if name := collapse(c); name != "" {
				out = append(out, name)
			}
		}
	}
	return out
}

// feedItemSummary prefers the item description over its full content.
func feedItemSummary(item *gofeed.Item) string {
	if s := collapse(item.Description); s != "" {
		return s
	}
	return collapse(item.Content)
}
