// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package filter

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-digest/internal/observability"
	"github.com/pdiddy/research-digest/pkg/types"
)

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestPipeline() *Pipeline {
	p := New(zerolog.Nop(), nil)
	p.Now = func() time.Time { return fixedNow }
	return p
}

func intPtr(n int) *int { return &n }

func titles(records []types.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Title
	}
	return out
}

// --- Pipeline ---

func TestApplyNoRules(t *testing.T) {
	in := []types.Record{{Title: "a"}, {Title: "b"}}
	assert.Equal(t, in, newTestPipeline().Apply(in, nil))
}

func TestApplyNilInputReturnsEmpty(t *testing.T) {
	got := newTestPipeline().Apply(nil, nil)
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestApplyRunsStagesInOrder(t *testing.T) {
	in := []types.Record{
		{Title: "Robot arm", Content: "grasping"},
		{Title: "Robot arm", Content: "grasping again"},
		{Title: "Language model", Content: "tokens"},
		{Title: "Robot leg", Content: "walking"},
	}
	rules := []types.FilterRule{
		{Kind: types.RuleKeyword, Scope: types.ScopeTitle, Keyword: &types.KeywordRule{Keywords: []string{"robot"}}},
		{Kind: types.RuleDeduplicate},
		{Kind: types.RuleRegex, Action: types.ActionRemove, Regex: &types.RegexRule{Pattern: "leg"}},
	}
	got := newTestPipeline().Apply(in, rules)
	assert.Equal(t, []string{"Robot arm"}, titles(got))
	assert.Equal(t, "grasping", got[0].Content)
}

func TestApplySkipsUnknownKind(t *testing.T) {
	in := []types.Record{{Title: "a"}, {Title: "b"}}
	rules := []types.FilterRule{
		{Kind: "sentiment"},
		{Kind: types.RuleKeyword, Keyword: &types.KeywordRule{Keywords: []string{"b"}}},
	}
	assert.Equal(t, []string{"b"}, titles(newTestPipeline().Apply(in, rules)))
}

func TestApplySkipsInvalidRegex(t *testing.T) {
	in := []types.Record{{Title: "a"}}
	rules := []types.FilterRule{{Kind: types.RuleRegex, Regex: &types.RegexRule{Pattern: "("}}}
	assert.Equal(t, in, newTestPipeline().Apply(in, rules))
}

func TestApplyDoesNotModifyInput(t *testing.T) {
	in := []types.Record{{Title: "keep"}, {Title: "drop"}, {Title: "keep too"}}
	rules := []types.FilterRule{{Kind: types.RuleKeyword, Keyword: &types.KeywordRule{Keywords: []string{"keep"}}}}
	_ = newTestPipeline().Apply(in, rules)
	assert.Equal(t, []string{"keep", "drop", "keep too"}, titles(in))
}

func TestApplyRecordsStageMetrics(t *testing.T) {
	m := observability.NewMetrics(prometheus.NewRegistry())
	p := New(zerolog.Nop(), m)
	in := []types.Record{{Title: "x"}, {Title: "x"}, {Title: "y"}}
	p.Apply(in, []types.FilterRule{{Kind: types.RuleDeduplicate}})

	assert.Equal(t, 3.0, testutil.ToFloat64(m.FilterRecords.WithLabelValues("deduplicate", "in")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.FilterRecords.WithLabelValues("deduplicate", "out")))
}

func TestSearchText(t *testing.T) {
	r := types.Record{Title: "T", Content: "C", Abstract: "A"}
	assert.Equal(t, "T", searchText(r, types.ScopeTitle))
	assert.Equal(t, "A", searchText(r, types.ScopeAbstract))
	assert.Equal(t, "T A", searchText(r, types.ScopeAll))
	assert.Equal(t, "T A", searchText(r, ""))

	noAbstract := types.Record{Title: "T", Content: "C"}
	assert.Equal(t, "C", searchText(noAbstract, types.ScopeAbstract))
	assert.Equal(t, "T C", searchText(noAbstract, types.ScopeAll))
}

// --- Regex ---

func TestRegexStage(t *testing.T) {
	in := []types.Record{
		{Title: "TEST case"},
		{Title: "other"},
	}
	tests := []struct {
		name string
		rule types.FilterRule
		want []string
	}{
		{
			"case insensitive by default",
			types.FilterRule{Kind: types.RuleRegex, Regex: &types.RegexRule{Pattern: "test"}},
			[]string{"TEST case"},
		},
		{
			"case sensitive",
			types.FilterRule{Kind: types.RuleRegex, CaseSensitive: true, Regex: &types.RegexRule{Pattern: "test"}},
			[]string{},
		},
		{
			"remove",
			types.FilterRule{Kind: types.RuleRegex, Action: types.ActionRemove, Regex: &types.RegexRule{Pattern: "^test"}},
			[]string{"other"},
		},
		{
			"empty pattern is a no-op",
			types.FilterRule{Kind: types.RuleRegex, Regex: &types.RegexRule{}},
			[]string{"TEST case", "other"},
		},
		{
			"missing payload is a no-op",
			types.FilterRule{Kind: types.RuleRegex},
			[]string{"TEST case", "other"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := newTestPipeline().Apply(in, []types.FilterRule{tt.rule})
			assert.Equal(t, tt.want, titles(got))
		})
	}
}

func TestRegexStageScope(t *testing.T) {
	in := []types.Record{
		{Title: "Plain title", Abstract: "uses transformers"},
		{Title: "Transformers everywhere", Content: "body"},
	}
	rule := types.FilterRule{Kind: types.RuleRegex, Scope: types.ScopeAbstract, Regex: &types.RegexRule{Pattern: `transformers?`}}
	assert.Equal(t, []string{"Plain title"}, titles(newTestPipeline().Apply(in, []types.FilterRule{rule})))
}

func TestCompileRegex(t *testing.T) {
	re, err := CompileRegex(types.FilterRule{Regex: &types.RegexRule{Pattern: "a+b"}})
	require.NoError(t, err)
	assert.True(t, re.MatchString("AAB"))

	_, err = CompileRegex(types.FilterRule{Regex: &types.RegexRule{Pattern: "[a-"}})
	assert.Error(t, err)

	re, err = CompileRegex(types.FilterRule{})
	assert.NoError(t, err)
	assert.Nil(t, re)
}

// --- Keyword ---

func TestKeywordVLAScenario(t *testing.T) {
	in := []types.Record{
		{Title: "A VLA model", Abstract: "robot learning"},
		{Title: "B", Abstract: "unrelated NLP work"},
	}
	rule := types.FilterRule{
		Kind:    types.RuleKeyword,
		Action:  types.ActionKeep,
		Scope:   types.ScopeTitle,
		Keyword: &types.KeywordRule{Keywords: []string{"vla"}},
	}
	got := newTestPipeline().Apply(in, []types.FilterRule{rule})
	require.Len(t, got, 1)
	assert.Equal(t, in[0], got[0])
}

func TestKeywordStage(t *testing.T) {
	in := []types.Record{
		{Title: "Robot grasping", Content: "diffusion policy"},
		{Title: "Robot walking", Content: "reinforcement learning"},
		{Title: "Protein folding", Content: "diffusion"},
	}
	tests := []struct {
		name string
		rule types.FilterRule
		want []string
	}{
		{
			"any",
			types.FilterRule{Keyword: &types.KeywordRule{Keywords: []string{"robot", "folding"}}},
			[]string{"Robot grasping", "Robot walking", "Protein folding"},
		},
		{
			"all",
			types.FilterRule{Keyword: &types.KeywordRule{Keywords: []string{"robot", "diffusion"}, Match: types.MatchAll}},
			[]string{"Robot grasping"},
		},
		{
			"remove any",
			types.FilterRule{Action: types.ActionRemove, Keyword: &types.KeywordRule{Keywords: []string{"diffusion"}}},
			[]string{"Robot walking"},
		},
		{
			"remove all",
			types.FilterRule{Action: types.ActionRemove, Keyword: &types.KeywordRule{Keywords: []string{"robot", "diffusion"}, Match: types.MatchAll}},
			[]string{"Robot walking", "Protein folding"},
		},
		{
			"case sensitive",
			types.FilterRule{CaseSensitive: true, Keyword: &types.KeywordRule{Keywords: []string{"robot"}}},
			[]string{},
		},
		{
			"empty keyword list is a no-op",
			types.FilterRule{Keyword: &types.KeywordRule{}},
			[]string{"Robot grasping", "Robot walking", "Protein folding"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.rule.Kind = types.RuleKeyword
			got := newTestPipeline().Apply(in, []types.FilterRule{tt.rule})
			assert.Equal(t, tt.want, titles(got))
		})
	}
}

func TestKeywordStageIdempotent(t *testing.T) {
	in := []types.Record{
		{Title: "Vision-language-action models", Content: "robots"},
		{Title: "Sparse attention", Content: "efficient transformers"},
		{Title: "VLA survey", Content: "robots again"},
		{Title: "Compilers", Content: "SSA"},
	}
	rules := []types.FilterRule{{
		Kind:    types.RuleKeyword,
		Action:  types.ActionKeep,
		Keyword: &types.KeywordRule{Keywords: []string{"robot", "transformer"}, Match: types.MatchAny},
	}}
	p := newTestPipeline()
	once := p.Apply(in, rules)
	twice := p.Apply(once, rules)
	assert.Equal(t, once, twice)
	assert.Len(t, once, 3)
}

// --- Length ---

func TestLengthStage(t *testing.T) {
	in := []types.Record{
		{Title: "ab", Content: "cd"},
		{Title: "Short title", Content: "short body"},
		{Title: "Long", Content: strings.Repeat("x", 300)},
		{Title: "Ünïcödé", Content: "ä", Abstract: strings.Repeat("z", 500)},
	}
	tests := []struct {
		name string
		rule types.LengthRule
		want []string
	}{
		{"min and max", types.LengthRule{Min: intPtr(10), Max: intPtr(200)}, []string{"Short title"}},
		{"min only", types.LengthRule{Min: intPtr(9)}, []string{"Short title", "Long", "Ünïcödé"}},
		{"max only", types.LengthRule{Max: intPtr(9)}, []string{"ab", "Ünïcödé"}},
		{"no bounds", types.LengthRule{}, []string{"ab", "Short title", "Long", "Ünïcödé"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := tt.rule
			got := newTestPipeline().Apply(in, []types.FilterRule{{Kind: types.RuleLength, Length: &rule}})
			assert.Equal(t, tt.want, titles(got))
		})
	}
}

func TestLengthFiveCharactersDropped(t *testing.T) {
	in := []types.Record{{Title: "ab", Content: "cd"}}
	rule := types.FilterRule{Kind: types.RuleLength, Length: &types.LengthRule{Min: intPtr(10), Max: intPtr(200)}}
	assert.Empty(t, newTestPipeline().Apply(in, []types.FilterRule{rule}))
}

// --- Deduplicate ---

func TestDedupePaperX(t *testing.T) {
	in := []types.Record{
		{Title: "Paper X", URL: "https://a.example/x"},
		{Title: "Paper X", URL: "https://b.example/x"},
	}
	rule := types.FilterRule{Kind: types.RuleDeduplicate, Dedupe: &types.DedupeRule{Fields: []types.DedupeField{types.DedupeTitle}}}
	got := newTestPipeline().Apply(in, []types.FilterRule{rule})
	require.Len(t, got, 1)
	assert.Equal(t, "https://a.example/x", got[0].URL)
}

func TestDedupeFields(t *testing.T) {
	long := strings.Repeat("y", dedupeContentRunes)
	in := []types.Record{
		{Title: "P", Content: long + " tail one", URL: "u1"},
		{Title: "P", Content: long + " tail two", URL: "u2"},
		{Title: "P", Content: "short", URL: "u1"},
		{Title: "Q", Content: "short"},
		{Title: "Q", Content: "short"},
	}
	tests := []struct {
		name   string
		fields []types.DedupeField
		want   int
	}{
		{"default title", nil, 2},
		{"content prefix", []types.DedupeField{types.DedupeContent}, 2},
		{"title and url", []types.DedupeField{types.DedupeTitle, types.DedupeURL}, 3},
		{"title and content", []types.DedupeField{types.DedupeTitle, types.DedupeContent}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := types.FilterRule{Kind: types.RuleDeduplicate, Dedupe: &types.DedupeRule{Fields: tt.fields}}
			got := newTestPipeline().Apply(in, []types.FilterRule{rule})
			assert.Len(t, got, tt.want)

			seen := map[string]bool{}
			fields := tt.fields
			if len(fields) == 0 {
				fields = []types.DedupeField{types.DedupeTitle}
			}
			for _, r := range got {
				key := dedupeKey(r, fields)
				assert.False(t, seen[key], "duplicate key %q", key)
				seen[key] = true
			}
			assert.Equal(t, in[0], got[0], "first occurrence wins")
		})
	}
}

func TestDedupeKeyURLOnlyWhenPresent(t *testing.T) {
	fields := []types.DedupeField{types.DedupeTitle, types.DedupeURL}
	assert.Equal(t, "T|u", dedupeKey(types.Record{Title: "T", URL: "u"}, fields))
	assert.Equal(t, "T", dedupeKey(types.Record{Title: "T"}, fields))
}

func TestPrefixRunes(t *testing.T) {
	assert.Equal(t, "ab", prefixRunes("abc", 2))
	assert.Equal(t, "äö", prefixRunes("äöü", 2))
	assert.Equal(t, "ab", prefixRunes("ab", 5))
	assert.Equal(t, "", prefixRunes("", 3))
}

// --- Recency ---

func TestRecencyScenario(t *testing.T) {
	in := []types.Record{
		{Title: "old", PublishedAt: fixedNow.Add(-48 * time.Hour).Format(time.RFC3339)},
		{Title: "garbled", PublishedAt: "not-a-date"},
	}
	rule := types.FilterRule{Kind: types.RuleRecency, Recency: &types.RecencyRule{Hours: 24}}
	assert.Equal(t, []string{"garbled"}, titles(newTestPipeline().Apply(in, []types.FilterRule{rule})))
}

func TestRecencyNamedZone(t *testing.T) {
	// 08:00 EST is 13:00Z, one hour inside a 24h window ending 12:00Z.
	in := []types.Record{{Title: "eastern", PublishedAt: "Mon, 09 Mar 2026 08:00:00 EST"}}
	rule := types.FilterRule{Kind: types.RuleRecency, Recency: &types.RecencyRule{Hours: 24}}
	assert.Equal(t, []string{"eastern"}, titles(newTestPipeline().Apply(in, []types.FilterRule{rule})))
}

func TestRecencyWindowCapped(t *testing.T) {
	assert.Equal(t, types.MaxRecencyWindow, types.RecencyRule{Days: 213504}.Window())
	assert.Equal(t, types.MaxRecencyWindow, types.RecencyRule{Hours: 1 << 40}.Window())
	assert.Equal(t, 48*time.Hour, types.RecencyRule{Days: 2}.Window())
}

func TestRecencyStage(t *testing.T) {
	cutoff := fixedNow.Add(-24 * time.Hour)
	in := []types.Record{
		{Title: "boundary", PublishedAt: cutoff.Format(time.RFC3339)},
		{Title: "just before", PublishedAt: cutoff.Add(-time.Second).Format(time.RFC3339)},
		{Title: "fresh", PublishedAt: "Tue, 10 Mar 2026 08:00:00 +0000"},
		{Title: "no date"},
		{Title: "date only today", PublishedAt: "2026-03-10"},
		{Title: "year", PublishedAt: "2019"},
	}
	tests := []struct {
		name string
		rule types.RecencyRule
		want []string
	}{
		{"hours", types.RecencyRule{Hours: 24}, []string{"boundary", "fresh", "no date", "date only today"}},
		{"hours win over days", types.RecencyRule{Hours: 24, Days: 3650}, []string{"boundary", "fresh", "no date", "date only today"}},
		{"days", types.RecencyRule{Days: 365 * 20}, []string{"boundary", "just before", "fresh", "no date", "date only today", "year"}},
		{"no window", types.RecencyRule{}, []string{"boundary", "just before", "fresh", "no date", "date only today", "year"}},
		{"huge days capped", types.RecencyRule{Days: 213504}, []string{"boundary", "just before", "fresh", "no date", "date only today", "year"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := tt.rule
			got := newTestPipeline().Apply(in, []types.FilterRule{{Kind: types.RuleRecency, Recency: &rule}})
			assert.Equal(t, tt.want, titles(got))
		})
	}
}
