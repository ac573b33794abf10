// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// RuleKind identifies a filter stage.
type RuleKind string

const (
	RuleRegex       RuleKind = "regex"
	RuleKeyword     RuleKind = "keyword"
	RuleLength      RuleKind = "length"
	RuleDeduplicate RuleKind = "deduplicate"
	RuleRecency     RuleKind = "recency"
)

// Action decides whether matching records are kept or removed.
type Action string

const (
	ActionKeep   Action = "keep"
	ActionRemove Action = "remove"
)

// Scope selects the text a regex or keyword stage searches.
type Scope string

const (
	// ScopeAll searches the title followed by the abstract (or content).
	ScopeAll Scope = "all"
	// ScopeTitle searches the title only.
	ScopeTitle Scope = "title"
	// ScopeAbstract searches the abstract, falling back to content.
	ScopeAbstract Scope = "abstract"
)

// MatchMode decides how many keywords must occur.
type MatchMode string

const (
	MatchAny MatchMode = "any"
	MatchAll MatchMode = "all"
)

// DedupeField is a record field that contributes to a deduplication key.
type DedupeField string

const (
	DedupeTitle   DedupeField = "title"
	DedupeContent DedupeField = "content"
	DedupeURL     DedupeField = "url"
)

// FilterRule configures one stage of the filter pipeline. Exactly one
// payload pointer matching Kind is set; rules of an unknown Kind carry no
// payload and are skipped by the pipeline.
type FilterRule struct {
	Kind          RuleKind `json:"type" yaml:"type"`
	Action        Action   `json:"action,omitempty" yaml:"action,omitempty"`
	Scope         Scope    `json:"scope,omitempty" yaml:"scope,omitempty"`
	CaseSensitive bool     `json:"case_sensitive,omitempty" yaml:"case_sensitive,omitempty"`

	Regex   *RegexRule   `json:"regex,omitempty" yaml:"regex,omitempty"`
	Keyword *KeywordRule `json:"keyword,omitempty" yaml:"keyword,omitempty"`
	Length  *LengthRule  `json:"length,omitempty" yaml:"length,omitempty"`
	Dedupe  *DedupeRule  `json:"dedupe,omitempty" yaml:"dedupe,omitempty"`
	Recency *RecencyRule `json:"recency,omitempty" yaml:"recency,omitempty"`
}

// Keeps reports whether a record with the given match outcome survives
// the rule's action.
func (r FilterRule) Keeps(matched bool) bool {
	if r.Action == ActionRemove {
		return !matched
	}
	return matched
}

// RegexRule matches a regular expression against the scoped text.
type RegexRule struct {
	Pattern string `json:"pattern" yaml:"pattern"`
}

// KeywordRule matches literal substrings against the scoped text.
type KeywordRule struct {
	Keywords []string  `json:"keywords" yaml:"keywords"`
	Match    MatchMode `json:"match,omitempty" yaml:"match,omitempty"`
}

// LengthRule bounds the character count of title plus content. A nil
// bound imposes no constraint.
type LengthRule struct {
	Min *int `json:"min,omitempty" yaml:"min,omitempty"`
	Max *int `json:"max,omitempty" yaml:"max,omitempty"`
}

// DedupeRule keeps the first record for each key built from Fields.
type DedupeRule struct {
	Fields []DedupeField `json:"fields" yaml:"fields"`
}

// RecencyRule drops records published before now minus the window.
type RecencyRule struct {
	Hours int `json:"hours,omitempty" yaml:"hours,omitempty"`
	Days  int `json:"days,omitempty" yaml:"days,omitempty"`
}

// MaxRecencyWindow bounds a recency window (100 years).
const MaxRecencyWindow = 100 * 365 * 24 * time.Hour

// Window returns the look-back window, at most MaxRecencyWindow. Hours
// take precedence over days; zero means no window.
func (r RecencyRule) Window() time.Duration {
	const maxHours = int(MaxRecencyWindow / time.Hour)
	switch {
	case r.Hours > maxHours:
		return MaxRecencyWindow
	case r.Hours > 0:
		return time.Duration(r.Hours) * time.Hour
	case r.Days > maxHours/24:
		return MaxRecencyWindow
	case r.Days > 0:
		return time.Duration(r.Days) * 24 * time.Hour
	}
	return 0
}
