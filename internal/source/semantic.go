// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pdiddy/research-digest/pkg/types"
)

// semanticAPIBase is the Semantic Scholar paper search endpoint. Declared
// as a var so tests can substitute an httptest server.
var semanticAPIBase = "https://api.semanticscholar.org/graph/v1/paper/search"

const (
	semanticFields    = "title,abstract,authors,year,venue,url"
	semanticKeySecret = "semantic-scholar-api-key"
)

// SemanticScholarAdapter searches the Semantic Scholar graph API
// (kind "semantic_scholar").
//
// Options: query (required), max_results (20), api_key.
type SemanticScholarAdapter struct {
	deps Deps
}

// Kind returns the adapter's kind tag.
func (a *SemanticScholarAdapter) Kind() string { return "semantic_scholar" }

// Fetch runs one search and maps each hit to a record.
func (a *SemanticScholarAdapter) Fetch(ctx context.Context, src types.SourceConfig) ([]types.Record, error) {
	query := src.Options.String("query", "")
	if query == "" {
		return nil, configErr(src, "query is required")
	}

	params := url.Values{
		"query":  {query},
		"limit":  {strconv.Itoa(src.Options.Int("max_results", 20))},
		"fields": {semanticFields},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, semanticAPIBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fetchErr(src, fmt.Errorf("creating request: %w", err))
	}
	if key := src.Options.String("api_key", a.deps.secret(semanticKeySecret)); key != "" {
		req.Header.Set("x-api-key", key)
	}

	body, err := a.deps.Client.ReadAll(ctx, req)
	if err != nil {
		return nil, fetchErr(src, err)
	}

	var sr semanticResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, parseErr(src, fmt.Errorf("decoding JSON: %w", err))
	}

	records := make([]types.Record, 0, len(sr.Data))
	for _, paper := range sr.Data {
		records = append(records, semanticRecord(src, paper))
	}
	return records, nil
}

func semanticRecord(src types.SourceConfig, paper semanticPaper) types.Record {
	title := collapse(paper.Title)
	if title == "" {
		title = untitled
	}

	rec := types.Record{
		SourceLabel: label(src, ""),
		Title:       title,
		Content:     paper.Abstract,
		Abstract:    paper.Abstract,
		URL:         paper.URL,
		Metadata: map[string]any{
			"paper_id": paper.PaperID,
			"venue":    paper.Venue,
		},
	}
	if paper.Year > 0 {
		rec.PublishedAt = strconv.Itoa(paper.Year)
	}
	if paper.Venue != "" {
		rec.Categories = []string{paper.Venue}
	}
	for _, au := range paper.Authors {
		if au.Name != "" {
			rec.Authors = append(rec.Authors, au.Name)
		}
	}
	return rec
}

// Semantic Scholar API JSON structures.
type semanticResponse struct {
	Total  int             `json:"total"`
	Offset int             `json:"offset"`
	Data   []semanticPaper `json:"data"`
}

type semanticPaper struct {
	PaperID  string           `json:"paperId"`
	Title    string           `json:"title"`
	Abstract string           `json:"abstract"`
	Year     int              `json:"year"`
	Venue    string           `json:"venue"`
	URL      string           `json:"url"`
	Authors  []semanticAuthor `json:"authors"`
}

type semanticAuthor struct {
	AuthorID string `json:"authorId"`
	Name     string `json:"name"`
}
