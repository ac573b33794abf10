// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/pdiddy/research-digest/pkg/types"
)

// arxivAPIBase is the arXiv search endpoint. Declared as a var so tests
// can substitute an httptest server.
var arxivAPIBase = "https://export.arxiv.org/api/query"

// ArxivAdapter queries the arXiv search API (kind "arxiv").
//
// Options: search_query (default "all"), categories, max_results (10),
// sort_by (submittedDate), sort_order (descending).
type ArxivAdapter struct {
	deps Deps
}

// Kind returns the adapter's kind tag.
func (a *ArxivAdapter) Kind() string { return "arxiv" }

// Fetch runs one search and maps each Atom entry to a record.
func (a *ArxivAdapter) Fetch(ctx context.Context, src types.SourceConfig) ([]types.Record, error) {
	opts := src.Options
	params := url.Values{
		"search_query": {buildArxivQuery(opts.String("search_query", "all"), opts.Strings("categories"))},
		"start":        {"0"},
		"max_results":  {strconv.Itoa(opts.Int("max_results", 10))},
		"sortBy":       {opts.String("sort_by", "submittedDate")},
		"sortOrder":    {opts.String("sort_order", "descending")},
	}

	body, err := a.deps.Client.Get(ctx, arxivAPIBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fetchErr(src, err)
	}

	var feed arxivFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, parseErr(src, fmt.Errorf("decoding Atom: %w", err))
	}

	records := make([]types.Record, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		records = append(records, arxivRecord(src, entry))
	}
	return records, nil
}

func arxivRecord(src types.SourceConfig, entry arxivEntry) types.Record {
	id := extractArxivID(entry.ID)
	abstract := collapse(entry.Summary)

	title := collapse(entry.Title)
	if title == "" {
		title = untitled
	}
	if id != "" {
		title = "[" + id + "] " + title
	}

	rec := types.Record{
		SourceLabel: label(src, ""),
		Title:       title,
		Content:     abstract,
		Abstract:    abstract,
		URL:         entry.pdfLink(),
		PublishedAt: strings.TrimSpace(entry.Published),
		Metadata:    map[string]any{"arxiv_id": id},
	}
	for _, au := range entry.Authors {
		if name := collapse(au.Name); name != "" {
			rec.Authors = append(rec.Authors, name)
		}
	}
	for _, c := range entry.Categories {
		if c.Term != "" {
			rec.Categories = append(rec.Categories, c.Term)
		}
	}
	return rec
}

// buildArxivQuery combines a free-text query with a category filter.
// Categories are OR-ed inside parentheses and AND-ed with the query unless
// the query is the match-everything "all".
func buildArxivQuery(query string, categories []string) string {
	query = strings.TrimSpace(query)
	if len(categories) == 0 {
		if query == "" {
			return "all"
		}
		return query
	}

	cats := make([]string, 0, len(categories))
	for _, c := range categories {
		if !strings.HasPrefix(c, "cat:") {
			c = "cat:" + c
		}
		cats = append(cats, c)
	}
	group := strings.Join(cats, " OR ")

	if query == "" || query == "all" {
		return group
	}
	return query + " AND (" + group + ")"
}

// arXiv Atom feed XML structures.
type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID         string          `xml:"id"`
	Title      string          `xml:"title"`
	Summary    string          `xml:"summary"`
	Published  string          `xml:"published"`
	Authors    []arxivAuthor   `xml:"author"`
	Links      []arxivLink     `xml:"link"`
	Categories []arxivCategory `xml:"category"`
}

type arxivAuthor struct {
	Name string `xml:"name"`
}

type arxivLink struct {
	Href  string `xml:"href,attr"`
	Rel   string `xml:"rel,attr"`
	Title string `xml:"title,attr"`
}

type arxivCategory struct {
	Term string `xml:"term,attr"`
}

// pdfLink returns the link titled "pdf", if any.
func (e arxivEntry) pdfLink() string {
	for _, l := range e.Links {
		if l.Title == "pdf" {
			return l.Href
		}
	}
	return ""
}

// extractArxivID pulls the arXiv ID from an abstract or PDF URL
// (e.g. "http://arxiv.org/abs/2301.07041v1" → "2301.07041").
func extractArxivID(idURL string) string {
	idURL = strings.TrimSpace(idURL)
	var id string
	switch {
	case strings.Contains(idURL, "/abs/"):
		id = idURL[strings.Index(idURL, "/abs/")+len("/abs/"):]
	case strings.Contains(idURL, "/pdf/"):
		id = idURL[strings.Index(idURL, "/pdf/")+len("/pdf/"):]
	default:
		id = idURL[strings.LastIndex(idURL, "/")+1:]
	}
	id = strings.TrimSuffix(strings.TrimSuffix(id, "/"), ".pdf")

	// Strip version suffix (e.g. "v1", "v2").
	if vIdx := strings.LastIndex(id, "v"); vIdx > 0 {
		if _, err := strconv.Atoi(id[vIdx+1:]); err == nil {
			id = id[:vIdx]
		}
	}
	return id
}
