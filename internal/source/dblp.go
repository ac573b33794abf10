// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/pdiddy/research-digest/pkg/types"
)

// DBLP endpoints. Declared as vars so tests can substitute an httptest
// server.
var (
	dblpSearchBase = "https://dblp.org/search/publ/api"
	dblpFeedURL    = "https://dblp.org/feed/"
)

// DBLPAdapter searches the DBLP bibliography and watches its publication
// feed for new proceedings (kind "dblp").
//
// Options: query (keyword search), conferences (feed watch list),
// expand (fetch each matched proceedings page), max_results (20).
type DBLPAdapter struct {
	deps Deps
}

// Kind returns the adapter's kind tag.
func (a *DBLPAdapter) Kind() string { return "dblp" }

// MaxRequests counts the search, the feed and one proceedings page per
// conference when expand is on.
func (a *DBLPAdapter) MaxRequests(src types.SourceConfig) int {
	n := 0
	if src.Options.String("query", "") != "" {
		n++
	}
	if conferences := src.Options.Strings("conferences"); len(conferences) > 0 {
		n++
		if src.Options.Bool("expand", false) {
			n += len(conferences)
		}
	}
	return n
}

// Fetch runs the keyword search and the feed watch when configured,
// concatenates both, drops repeated titles and truncates to max_results.
func (a *DBLPAdapter) Fetch(ctx context.Context, src types.SourceConfig) ([]types.Record, error) {
	query := src.Options.String("query", "")
	conferences := src.Options.Strings("conferences")
	if query == "" && len(conferences) == 0 {
		return nil, configErr(src, "query or conferences is required")
	}
	maxResults := src.Options.Int("max_results", 20)

	var (
		records []types.Record
		errs    []error
	)
	if query != "" {
		found, err := a.search(ctx, src, query, maxResults)
		if err != nil {
			a.deps.Logger.Warn().Err(err).Str("source", src.Name).Msg("DBLP search failed")
			errs = append(errs, err)
		}
		records = append(records, found...)
	}
	if len(conferences) > 0 {
		found, err := a.watch(ctx, src, conferences, maxResults)
		if err != nil {
			a.deps.Logger.Warn().Err(err).Str("source", src.Name).Msg("DBLP feed failed")
			errs = append(errs, err)
		}
		records = append(records, found...)
	}

	if len(records) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return truncate(uniqueTitles(records), maxResults), nil
}

func (a *DBLPAdapter) search(ctx context.Context, src types.SourceConfig, query string, maxResults int) ([]types.Record, error) {
	params := url.Values{
		"q":      {query},
		"h":      {strconv.Itoa(maxResults)},
		"format": {"json"},
	}
	body, err := a.deps.Client.Get(ctx, dblpSearchBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fetchErr(src, err)
	}

	var resp dblpResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, parseErr(src, fmt.Errorf("decoding JSON: %w", err))
	}

	records := make([]types.Record, 0, len(resp.Result.Hits.Hit))
	for _, hit := range resp.Result.Hits.Hit {
		records = append(records, dblpSearchRecord(src, hit.Info))
	}
	return records, nil
}

func dblpSearchRecord(src types.SourceConfig, info dblpInfo) types.Record {
	title := collapse(html.UnescapeString(info.Title))
	if title == "" {
		title = untitled
	}
	venue := info.Venue.Join()
	year := strings.TrimSpace(info.Year)
	link := rewriteArxivDOI(info.EE.First())
	if link == "" {
		link = info.URL
	}

	rec := types.Record{
		SourceLabel: label(src, venue),
		Title:       title,
		Content:     fmt.Sprintf("%s (%s)", venue, year),
		Abstract:    fmt.Sprintf("%s. %s (%s)", title, venue, year),
		URL:         link,
		PublishedAt: year,
		Metadata: map[string]any{
			"venue": venue,
			"year":  year,
			"doi":   info.DOI,
		},
	}
	if venue != "" {
		rec.Categories = []string{venue}
	}
	for _, au := range info.Authors.Author {
		if name := collapse(html.UnescapeString(au.Text)); name != "" {
			rec.Authors = append(rec.Authors, name)
		}
	}
	return rec
}

// rewriteArxivDOI turns an arXiv DOI link (https://doi.org/10.48550/arXiv.2401.00001)
// into the abstract page URL.
func rewriteArxivDOI(link string) string {
	link = strings.TrimSpace(link)
	if !strings.Contains(link, "doi.org") {
		return link
	}
	i := strings.LastIndex(link, "arXiv.")
	if i < 0 {
		return link
	}
	id := link[i+len("arXiv."):]
	if id == "" {
		return link
	}
	return "https://arxiv.org/abs/" + id
}

// watch scans the DBLP feed for entries naming one of the conferences.
func (a *DBLPAdapter) watch(ctx context.Context, src types.SourceConfig, conferences []string, maxResults int) ([]types.Record, error) {
	feed, err := a.deps.fetchFeed(ctx, src, dblpFeedURL)
	if err != nil {
		return nil, err
	}
	expand := src.Options.Bool("expand", false)

	var (
		records  []types.Record
		expanded = make(map[string]bool)
	)
	for _, item := range feed.Items {
		conf := matchConference(item, conferences)
		if conf == "" {
			continue
		}
		if !expand {
			records = append(records, dblpFeedRecord(src, conf, item))
			continue
		}
		if expanded[conf] {
			continue
		}
		expanded[conf] = true

		papers, err := a.proceedings(ctx, src, conf, item.Link, maxResults)
		if err != nil {
			a.deps.Logger.Warn().Err(err).
				Str("source", src.Name).
				Str("conference", conf).
				Msg("DBLP proceedings page failed")
			continue
		}
		records = append(records, papers...)
	}
	return records, nil
}

// matchConference returns the upper-cased conference token found in the
// item's title or link, or "".
func matchConference(item *gofeed.Item, conferences []string) string {
	title := strings.ToLower(item.Title)
	link := strings.ToLower(item.Link)
	for _, c := range conferences {
		token := strings.ToLower(strings.TrimSpace(c))
		if token == "" {
			continue
		}
		if strings.Contains(title, token) || strings.Contains(link, token) {
			return strings.ToUpper(strings.TrimSpace(c))
		}
	}
	return ""
}

func dblpFeedRecord(src types.SourceConfig, conf string, item *gofeed.Item) types.Record {
	title := collapse(item.Title)
	if title == "" {
		title = untitled
	}
	content := feedItemSummary(item)
	if content == "" {
		content = conf
	}
	return types.Record{
		SourceLabel: label(src, conf),
		Title:       title,
		Content:     content,
		URL:         strings.TrimSpace(item.Link),
		PublishedAt: feedItemDate(item),
		Categories:  []string{conf},
		Metadata:    map[string]any{"venue": conf},
	}
}

// proceedings scrapes the publication list of one proceedings page.
func (a *DBLPAdapter) proceedings(ctx context.Context, src types.SourceConfig, conf, pageURL string, maxResults int) ([]types.Record, error) {
	body, err := a.deps.Client.Get(ctx, pageURL, nil)
	if err != nil {
		return nil, fetchErr(src, err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, parseErr(src, fmt.Errorf("parsing HTML: %w", err))
	}

	var records []types.Record
	doc.Find("li.entry").EachWithBreak(func(_ int, entry *goquery.Selection) bool {
		if maxResults > 0 && len(records) >= maxResults {
			return false
		}
		title := collapse(entry.Find("span.title").First().Text())
		if title == "" {
			return true
		}

		var authors []string
		entry.Find(`span[itemprop="author"], span.author`).Each(func(_ int, s *goquery.Selection) {
			if name := collapse(s.Text()); name != "" {
				authors = append(authors, name)
			}
		})

		year := collapse(entry.Find(`span.year, span[itemprop="datePublished"]`).First().Text())
		records = append(records, types.Record{
			SourceLabel: label(src, conf),
			Title:       title,
			Content:     strings.TrimSpace(conf + " " + year),
			Abstract:    title,
			URL:         proceedingsLink(entry),
			PublishedAt: year,
			Authors:     authors,
			Categories:  []string{conf},
			Metadata:    map[string]any{"venue": conf, "year": year},
		})
		return true
	})
	return records, nil
}

// proceedingsLink prefers a PDF link and otherwise the DBLP record page.
func proceedingsLink(entry *goquery.Selection) string {
	var rec string
	var pdf string
	entry.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		switch {
		case strings.HasSuffix(href, ".pdf"):
			pdf = href
			return false
		case rec == "" && strings.Contains(href, "dblp.org/rec/"):
			rec = href
		}
		return true
	})
	if pdf != "" {
		return pdf
	}
	return rec
}

// uniqueTitles keeps the first record for every exact title.
func uniqueTitles(records []types.Record) []types.Record {
	seen := make(map[string]bool, len(records))
	out := make([]types.Record, 0, len(records))
	for _, r := range records {
		if seen[r.Title] {
			continue
		}
		seen[r.Title] = true
		out = append(out, r)
	}
	return out
}

// DBLP search API JSON structures.
type dblpResponse struct {
	Result struct {
		Hits struct {
			Hit []dblpHit `json:"hit"`
		} `json:"hits"`
	} `json:"result"`
}

type dblpHit struct {
	Info dblpInfo `json:"info"`
}

type dblpInfo struct {
	Title   string      `json:"title"`
	Venue   flexStrings `json:"venue"`
	Year    string      `json:"year"`
	DOI     string      `json:"doi"`
	EE      flexStrings `json:"ee"`
	URL     string      `json:"url"`
	Authors struct {
		Author dblpAuthors `json:"author"`
	} `json:"authors"`
}

type dblpAuthor struct {
	Text string `json:"text"`
}

// dblpAuthors decodes DBLP's author field, which is an object for a
// single author and an array otherwise.
type dblpAuthors []dblpAuthor

func (a *dblpAuthors) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var one dblpAuthor
		if err := json.Unmarshal(data, &one); err != nil {
			return err
		}
		*a = dblpAuthors{one}
		return nil
	}
	var many []dblpAuthor
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*a = many
	return nil
}

// flexStrings decodes a field that is either a string or an array of
// strings.
type flexStrings []string

func (f *flexStrings) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var many []string
		if err := json.Unmarshal(data, &many); err != nil {
			return err
		}
		*f = many
		return nil
	}
	var one string
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*f = flexStrings{one}
	return nil
}

// First returns the first value or "".
func (f flexStrings) First() string {
	if len(f) == 0 {
		return ""
	}
	return f[0]
}

// Join returns all values separated by ", ".
func (f flexStrings) Join() string {
	return strings.Join(f, ", ")
}
