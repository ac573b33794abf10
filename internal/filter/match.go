// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package filter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pdiddy/research-digest/pkg/types"
)

// CompileRegex compiles a regex rule's pattern, case-insensitively unless
// the rule is case sensitive. The config loader uses it to reject bad
// patterns before any task runs.
func CompileRegex(rule types.FilterRule) (*regexp.Regexp, error) {
	if rule.Regex == nil || rule.Regex.Pattern == "" {
		return nil, nil
	}
	pattern := rule.Regex.Pattern
	if !rule.CaseSensitive {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compiling pattern %q: %w", rule.Regex.Pattern, err)
	}
	return re, nil
}

func regexStage(rule types.FilterRule) (stage, error) {
	re, err := CompileRegex(rule)
	if err != nil || re == nil {
		return nil, err
	}
	return func(records []types.Record) []types.Record {
		return keepIf(records, func(r types.Record) bool {
			return rule.Keeps(re.MatchString(searchText(r, rule.Scope)))
		})
	}, nil
}

func keywordStage(rule types.FilterRule) stage {
	if rule.Keyword == nil {
		return nil
	}
	var keywords []string
	for _, k := range rule.Keyword.Keywords {
		if k == "" {
			continue
		}
		if !rule.CaseSensitive {
			k = strings.ToLower(k)
		}
		keywords = append(keywords, k)
	}
	if len(keywords) == 0 {
		return nil
	}
	all := rule.Keyword.Match == types.MatchAll

	return func(records []types.Record) []types.Record {
		return keepIf(records, func(r types.Record) bool {
			text := searchText(r, rule.Scope)
			if !rule.CaseSensitive {
				text = strings.ToLower(text)
			}
			hits := 0
			for _, k := range keywords {
				if strings.Contains(text, k) {
					hits++
				}
			}
			matched := hits > 0
			if all {
				matched = hits == len(keywords)
			}
			return rule.Keeps(matched)
		})
	}
}
