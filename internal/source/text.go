// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pdiddy/research-digest/internal/dates"
	"github.com/pdiddy/research-digest/pkg/types"
)

// collapse trims s and folds internal whitespace runs into single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// stringify renders a decoded JSON value as plain text.
func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case map[string]any, []any:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	default:
		return fmt.Sprint(x)
	}
}

// sortByDateDesc orders records newest first. Records whose date does not
// parse sort after all dated records and keep their relative order.
func sortByDateDesc(records []types.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		ti, oki := dates.Parse(records[i].PublishedAt)
		tj, okj := dates.Parse(records[j].PublishedAt)
		switch {
		case oki && okj:
			return ti.After(tj)
		case oki:
			return true
		default:
			return false
		}
	})
}

// truncate returns at most n records.
func truncate(records []types.Record, n int) []types.Record {
	if n > 0 && len(records) > n {
		return records[:n]
	}
	return records
}
