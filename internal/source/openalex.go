// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/pdiddy/research-digest/pkg/types"
)

// openAlexSearchBase is the OpenAlex Works search endpoint. Declared as a
// var so tests can substitute an httptest server.
var openAlexSearchBase = "https://api.openalex.org/works"

const openAlexEmailSecret = "openalex-email"

// OpenAlexAdapter searches OpenAlex works (kind "openalex").
//
// Options: query (required), max_results (20, capped at 200), email
// (polite-pool mailto, defaults to the openalex-email secret).
type OpenAlexAdapter struct {
	deps Deps
}

// Kind returns the adapter's kind tag.
func (a *OpenAlexAdapter) Kind() string { return "openalex" }

// Fetch runs one works search and maps each work to a record.
func (a *OpenAlexAdapter) Fetch(ctx context.Context, src types.SourceConfig) ([]types.Record, error) {
	query := src.Options.String("query", "")
	if query == "" {
		return nil, configErr(src, "query is required")
	}

	perPage := src.Options.Int("max_results", 20)
	if perPage <= 0 {
		perPage = 20
	}
	if perPage > 200 {
		perPage = 200
	}

	params := url.Values{
		"search":   {query},
		"per_page": {strconv.Itoa(perPage)},
		"page":     {"1"},
	}
	if email := src.Options.String("email", a.deps.secret(openAlexEmailSecret)); email != "" {
		params.Set("mailto", email)
	}

	body, err := a.deps.Client.Get(ctx, openAlexSearchBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fetchErr(src, err)
	}

	var oar openAlexResponse
	if err := json.Unmarshal(body, &oar); err != nil {
		return nil, parseErr(src, fmt.Errorf("decoding JSON: %w", err))
	}

	records := make([]types.Record, 0, len(oar.Results))
	for _, work := range oar.Results {
		records = append(records, openAlexRecord(src, work))
	}
	return records, nil
}

func openAlexRecord(src types.SourceConfig, work openAlexWork) types.Record {
	title := collapse(work.Title)
	if title == "" {
		title = untitled
	}
	abstract := reconstructAbstract(work.AbstractInvertedIndex)

	rec := types.Record{
		SourceLabel: label(src, ""),
		Title:       title,
		Content:     abstract,
		Abstract:    abstract,
		URL:         work.landingURL(),
		PublishedAt: work.PublicationDate,
		Metadata: map[string]any{
			"openalex_id": work.ID,
			"doi":         strings.TrimPrefix(work.DOI, "https://doi.org/"),
		},
	}
	if rec.PublishedAt == "" && work.PublicationYear > 0 {
		rec.PublishedAt = strconv.Itoa(work.PublicationYear)
	}
	for _, authorship := range work.Authorships {
		if authorship.Author.DisplayName != "" {
			rec.Authors = append(rec.Authors, authorship.Author.DisplayName)
		}
	}
	if venue := work.PrimaryLocation.Source.DisplayName; venue != "" {
		rec.Categories = []string{venue}
	}
	return rec
}

// reconstructAbstract converts OpenAlex's abstract_inverted_index back to
// plain text. The inverted index maps each word to the positions where it
// appears.
func reconstructAbstract(invertedIndex map[string][]int) string {
	if len(invertedIndex) == 0 {
		return ""
	}

	type posWord struct {
		pos  int
		word string
	}
	var pairs []posWord
	for word, positions := range invertedIndex {
		for _, pos := range positions {
			pairs = append(pairs, posWord{pos: pos, word: word})
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].pos < pairs[j].pos
	})

	words := make([]string, len(pairs))
	for i, p := range pairs {
		words[i] = p.word
	}
	return strings.Join(words, " ")
}

// OpenAlex API JSON structures.
type openAlexResponse struct {
	Results []openAlexWork `json:"results"`
}

type openAlexWork struct {
	ID                    string               `json:"id"`
	Title                 string               `json:"title"`
	DOI                   string               `json:"doi"`
	PublicationDate       string               `json:"publication_date"`
	PublicationYear       int                  `json:"publication_year"`
	Authorships           []openAlexAuthorship `json:"authorships"`
	AbstractInvertedIndex map[string][]int     `json:"abstract_inverted_index"`
	PrimaryLocation       openAlexLocation     `json:"primary_location"`
	OpenAccess            openAlexOpenAccess   `json:"open_access"`
}

// landingURL prefers the open-access copy, then the DOI, then the
// OpenAlex page.
func (w openAlexWork) landingURL() string {
	switch {
	case w.OpenAccess.OAURL != "":
		return w.OpenAccess.OAURL
	case w.DOI != "":
		return w.DOI
	default:
		return w.ID
	}
}

type openAlexAuthorship struct {
	Author struct {
		DisplayName string `json:"display_name"`
	} `json:"author"`
}

type openAlexLocation struct {
	Source struct {
		DisplayName string `json:"display_name"`
	} `json:"source"`
}

type openAlexOpenAccess struct {
	OAURL string `json:"oa_url"`
}
