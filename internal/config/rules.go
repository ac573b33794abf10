// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package config

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"

	"github.com/pdiddy/research-digest/internal/filter"
	"github.com/pdiddy/research-digest/pkg/types"
)

// Accepted spellings of rule kinds and scopes.
var (
	kindAliases = map[string]types.RuleKind{
		"regex":       types.RuleRegex,
		"keyword":     types.RuleKeyword,
		"length":      types.RuleLength,
		"deduplicate": types.RuleDeduplicate,
		"dedupe":      types.RuleDeduplicate,
		"recency":     types.RuleRecency,
		"date":        types.RuleRecency,
	}
	scopeAliases = map[string]types.Scope{
		"":              types.ScopeAll,
		"all":           types.ScopeAll,
		"title":         types.ScopeTitle,
		"title_only":    types.ScopeTitle,
		"abstract":      types.ScopeAbstract,
		"abstract_only": types.ScopeAbstract,
		"content_only":  types.ScopeAbstract,
	}
)

// buildRule converts the flat YAML rule into its typed form and rejects
// payloads the pipeline could not apply. A rule of an unknown kind is
// returned with only its kind set; the pipeline skips it with a warning.
func buildRule(raw rawRule) (types.FilterRule, error) {
	name := strings.ToLower(strings.TrimSpace(raw.Type))
	if name == "" {
		return types.FilterRule{}, fmt.Errorf("type is required")
	}
	kind, ok := kindAliases[name]
	if !ok {
		return types.FilterRule{Kind: types.RuleKind(name)}, nil
	}

	rule := types.FilterRule{Kind: kind, CaseSensitive: raw.CaseSensitive}

	switch strings.ToLower(raw.Action) {
	case "", "keep":
		rule.Action = types.ActionKeep
	case "remove":
		rule.Action = types.ActionRemove
	default:
		return rule, fmt.Errorf("action %q is not keep or remove", raw.Action)
	}

	scope, ok := scopeAliases[strings.ToLower(raw.Scope)]
	if !ok {
		return rule, fmt.Errorf("scope %q is not all, title or abstract", raw.Scope)
	}
	rule.Scope = scope

	switch kind {
	case types.RuleRegex:
		rule.Regex = &types.RegexRule{Pattern: raw.Pattern}
		if _, err := filter.CompileRegex(rule); err != nil {
			return rule, err
		}

	case types.RuleKeyword:
		mode := types.MatchMode(strings.ToLower(raw.Match))
		switch mode {
		case "":
			mode = types.MatchAny
		case types.MatchAny, types.MatchAll:
		default:
			return rule, fmt.Errorf("match %q is not any or all", raw.Match)
		}
		for i, k := range raw.Keywords {
			if strings.TrimSpace(k) == "" {
				return rule, fmt.Errorf("keyword %d is empty", i)
			}
		}
		rule.Keyword = &types.KeywordRule{Keywords: raw.Keywords, Match: mode}

	case types.RuleLength:
		if raw.Min != nil && *raw.Min < 0 {
			return rule, fmt.Errorf("min must not be negative")
		}
		if raw.Max != nil && *raw.Max < 0 {
			return rule, fmt.Errorf("max must not be negative")
		}
		if raw.Min != nil && raw.Max != nil && *raw.Min > *raw.Max {
			return rule, fmt.Errorf("min %d exceeds max %d", *raw.Min, *raw.Max)
		}
		rule.Length = &types.LengthRule{Min: raw.Min, Max: raw.Max}

	case types.RuleDeduplicate:
		fields := make([]types.DedupeField, 0, len(raw.Fields))
		for _, f := range raw.Fields {
			field := types.DedupeField(strings.ToLower(strings.TrimSpace(f)))
			switch field {
			case types.DedupeTitle, types.DedupeContent, types.DedupeURL:
				fields = append(fields, field)
			default:
				return rule, fmt.Errorf("dedupe field %q is not title, content or url", f)
			}
		}
		if len(fields) == 0 {
			fields = append(fields, types.DedupeTitle)
		}
		rule.Dedupe = &types.DedupeRule{Fields: fields}

	case types.RuleRecency:
		if raw.Hours < 0 || raw.Days < 0 {
			return rule, fmt.Errorf("hours and days must not be negative")
		}
		if maxHours := int(types.MaxRecencyWindow / time.Hour); raw.Hours > maxHours || raw.Days > maxHours/24 {
			return rule, fmt.Errorf("recency window exceeds %d days", maxHours/24)
		}
		rule.Recency = &types.RecencyRule{Hours: raw.Hours, Days: raw.Days}
	}
	return rule, nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// secondsDurationHook decodes bare numbers into durations as seconds, so
// "timeout: 30" means thirty seconds.
func secondsDurationHook() mapstructure.DecodeHookFuncType {
	return func(_ reflect.Type, to reflect.Type, data any) (any, error) {
		if to != durationType {
			return data, nil
		}
		switch v := data.(type) {
		case int:
			return time.Duration(v) * time.Second, nil
		case int64:
			return time.Duration(v) * time.Second, nil
		case float64:
			return time.Duration(v * float64(time.Second)), nil
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return time.Duration(f * float64(time.Second)), nil
			}
		}
		return data, nil
	}
}
