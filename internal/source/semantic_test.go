// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-digest/pkg/types"
)

const semanticFixture = `{"total":2,"offset":0,"data":[
  {"paperId":"abc123","title":"RT-2: Vision-Language-Action Models","abstract":"We study VLA.","year":2023,"venue":"CoRL","url":"https://www.semanticscholar.org/paper/abc123",
   "authors":[{"authorId":"1","name":"Anthony Brohan"},{"authorId":"2","name":"Noah Brown"}]},
  {"paperId":"def456","title":null,"abstract":null,"year":null,"venue":"","url":"","authors":[]}
]}`

func TestSemanticScholarAdapterRequiresQuery(t *testing.T) {
	a := &SemanticScholarAdapter{}
	records, err := a.Fetch(context.Background(), types.SourceConfig{Name: "s2"})
	assert.Empty(t, records)
	assert.True(t, IsConfigError(err))
}

func TestSemanticScholarAdapterFetch(t *testing.T) {
	var capturedReq *http.Request
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedReq = r
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, semanticFixture)
	}))
	defer ts.Close()

	old := semanticAPIBase
	semanticAPIBase = ts.URL
	defer func() { semanticAPIBase = old }()

	deps := testDeps(ts)
	deps.Secrets = map[string]string{semanticKeySecret: "sk_test"}
	a := &SemanticScholarAdapter{deps: deps}

	records, err := a.Fetch(context.Background(), types.SourceConfig{
		Name:    "s2",
		Options: types.Options{"query": "vision language action", "max_results": 15},
	})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assertWellFormed(t, "s2", records)

	q := capturedReq.URL.Query()
	assert.Equal(t, "vision language action", q.Get("query"))
	assert.Equal(t, "15", q.Get("limit"))
	for _, f := range []string{"title", "abstract", "authors", "year", "venue", "url"} {
		assert.True(t, strings.Contains(q.Get("fields"), f), "fields missing %q", f)
	}
	assert.Equal(t, "sk_test", capturedReq.Header.Get("x-api-key"))
	assert.Equal(t, "digest-test", capturedReq.Header.Get("User-Agent"))

	r := records[0]
	assert.Equal(t, "RT-2: Vision-Language-Action Models", r.Title)
	assert.Equal(t, "We study VLA.", r.Content)
	assert.Equal(t, "We study VLA.", r.Abstract)
	assert.Equal(t, "2023", r.PublishedAt)
	assert.Equal(t, []string{"CoRL"}, r.Categories)
	assert.Equal(t, []string{"Anthony Brohan", "Noah Brown"}, r.Authors)
	assert.Equal(t, "abc123", r.Metadata["paper_id"])

	empty := records[1]
	assert.Equal(t, "Untitled", empty.Title)
	assert.Equal(t, "", empty.Content)
	assert.Equal(t, "", empty.PublishedAt)
	assert.Empty(t, empty.Categories)
}

func TestSemanticScholarAdapterOptionKeyWins(t *testing.T) {
	var gotKey string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		fmt.Fprint(w, `{"data":[]}`)
	}))
	defer ts.Close()

	old := semanticAPIBase
	semanticAPIBase = ts.URL
	defer func() { semanticAPIBase = old }()

	deps := testDeps(ts)
	deps.Secrets = map[string]string{semanticKeySecret: "from-secret"}
	a := &SemanticScholarAdapter{deps: deps}

	_, err := a.Fetch(context.Background(), types.SourceConfig{
		Name:    "s2",
		Options: types.Options{"query": "robots", "api_key": "from-option"},
	})
	require.NoError(t, err)
	assert.Equal(t, "from-option", gotKey)
}

func TestSemanticScholarAdapterRateLimited(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	old := semanticAPIBase
	semanticAPIBase = ts.URL
	defer func() { semanticAPIBase = old }()

	a := &SemanticScholarAdapter{deps: testDeps(ts)}
	records, err := a.Fetch(context.Background(), types.SourceConfig{
		Name:    "s2",
		Options: types.Options{"query": "robots"},
	})
	assert.Empty(t, records)
	var fe *FetchError
	assert.ErrorAs(t, err, &fe)
}
