// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package filter

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pdiddy/research-digest/internal/dates"
	"github.com/pdiddy/research-digest/pkg/types"
)

// dedupeContentRunes is how much of the content participates in a
// deduplication key.
const dedupeContentRunes = 100

func lengthStage(rule types.FilterRule) stage {
	if rule.Length == nil || (rule.Length.Min == nil && rule.Length.Max == nil) {
		return nil
	}
	lo, hi := rule.Length.Min, rule.Length.Max
	return func(records []types.Record) []types.Record {
		return keepIf(records, func(r types.Record) bool {
			n := utf8.RuneCountInString(r.Title + " " + r.Content)
			if lo != nil && n < *lo {
				return false
			}
			if hi != nil && n > *hi {
				return false
			}
			return true
		})
	}
}

func dedupeStage(rule types.FilterRule) stage {
	fields := []types.DedupeField{types.DedupeTitle}
	if rule.Dedupe != nil && len(rule.Dedupe.Fields) > 0 {
		fields = rule.Dedupe.Fields
	}
	return func(records []types.Record) []types.Record {
		seen := make(map[string]bool, len(records))
		return keepIf(records, func(r types.Record) bool {
			key := dedupeKey(r, fields)
			if seen[key] {
				return false
			}
			seen[key] = true
			return true
		})
	}
}

// dedupeKey joins the selected fields with "|". The URL contributes only
// when the record has one.
func dedupeKey(r types.Record, fields []types.DedupeField) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		switch f {
		case types.DedupeTitle:
			parts = append(parts, r.Title)
		case types.DedupeContent:
			parts = append(parts, prefixRunes(r.Content, dedupeContentRunes))
		case types.DedupeURL:
			if r.URL != "" {
				parts = append(parts, r.URL)
			}
		}
	}
	return strings.Join(parts, "|")
}

func prefixRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// recencyStage keeps records dated at or after now minus the window.
// Records without a parseable date are kept.
func recencyStage(rule types.FilterRule, now time.Time) stage {
	if rule.Recency == nil {
		return nil
	}
	window := rule.Recency.Window()
	if window <= 0 {
		return nil
	}
	cutoff := now.Add(-window)
	return func(records []types.Record) []types.Record {
		return keepIf(records, func(r types.Record) bool {
			t, ok := dates.Parse(r.PublishedAt)
			if !ok {
				return true
			}
			return !t.Before(cutoff)
		})
	}
}
