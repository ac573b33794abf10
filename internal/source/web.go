// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pdiddy/research-digest/pkg/types"
)

const (
	defaultTitleSelector = "h1, h2, h3, title"
	defaultDateSelector  = "[datetime], time, .date"
	fieldTitleSelector   = "h1"
	fieldContentSelector = ".content"
	fieldDateSelector    = ".date"
	untitled             = "Untitled"
)

// WebAdapter scrapes records out of an HTML page with CSS selectors
// (kind "web").
type WebAdapter struct {
	deps Deps
}

// Kind returns the adapter's kind tag.
func (a *WebAdapter) Kind() string { return "web" }

// Fetch downloads the page and emits one record per selected element, or
// one record for the whole document when no selector is configured.
func (a *WebAdapter) Fetch(ctx context.Context, src types.SourceConfig) ([]types.Record, error) {
	if src.URL == "" {
		return nil, configErr(src, "url is required")
	}

	header := http.Header{}
	for k, v := range src.Headers {
		header.Set(k, v)
	}
	body, err := a.deps.Client.Get(ctx, src.URL, header)
	if err != nil {
		return nil, fetchErr(src, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, parseErr(src, fmt.Errorf("parsing HTML: %w", err))
	}

	elements := doc.Selection
	if src.Selector != "" {
		elements = doc.Find(src.Selector)
	}

	var records []types.Record
	elements.Each(func(_ int, el *goquery.Selection) {
		records = append(records, webRecord(src, el))
	})
	return records, nil
}

func webRecord(src types.SourceConfig, el *goquery.Selection) types.Record {
	var title, content, date string
	if len(src.Fields) > 0 {
		title = selectText(el, fieldOr(src.Fields, "title", fieldTitleSelector))
		content = selectText(el, fieldOr(src.Fields, "content", fieldContentSelector))
		date = selectDate(el, fieldOr(src.Fields, "date", fieldDateSelector))
	} else {
		title = selectText(el, defaultTitleSelector)
		content = collapse(el.Text())
		date = selectDate(el, defaultDateSelector)
	}
	if title == "" {
		title = untitled
	}

	rec := types.Record{
		SourceLabel: label(src, ""),
		Title:       title,
		Content:     content,
		URL:         src.URL,
		PublishedAt: date,
	}
	if html, err := goquery.OuterHtml(el); err == nil {
		rec.Metadata = map[string]any{"html": html}
	}
	return rec
}

func fieldOr(fields map[string]string, key, def string) string {
	if v := strings.TrimSpace(fields[key]); v != "" {
		return v
	}
	return def
}

// selectText returns the collapsed text of the first match of sel.
func selectText(el *goquery.Selection, sel string) string {
	return collapse(el.Find(sel).First().Text())
}

// selectDate prefers a datetime attribute over the element text.
func selectDate(el *goquery.Selection, sel string) string {
	match := el.Find(sel).First()
	if match.Length() == 0 {
		return ""
	}
	if dt, ok := match.Attr("datetime"); ok && strings.TrimSpace(dt) != "" {
		return strings.TrimSpace(dt)
	}
	return collapse(match.Text())
}
