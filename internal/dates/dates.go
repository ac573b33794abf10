// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package dates parses the loosely formatted date strings found in feeds,
// APIs and scraped pages. Feed adapters and the recency filter share it so
// that a date one of them understands is understood by the other.
package dates

import (
	"strings"
	"time"
)

// Layouts lists the accepted formats in the order they are tried. Layouts
// without a zone are read as UTC.
var Layouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2 Jan 2006 15:04:05 -0700",
	"2 Jan 2006",
	"02 Jan 2006",
	"2006",
}

// obsoleteZones maps the RFC 2822 named zones to numeric offsets. Go
// reads an unknown abbreviation as a zero offset.
var obsoleteZones = map[string]string{
	"UT":  "+0000",
	"GMT": "+0000",
	"Z":   "+0000",
	"EST": "-0500",
	"EDT": "-0400",
	"CST": "-0600",
	"CDT": "-0500",
	"MST": "-0700",
	"MDT": "-0600",
	"PST": "-0800",
	"PDT": "-0700",
}

// numericZone rewrites a trailing named zone as its offset.
func numericZone(s string) string {
	i := strings.LastIndexByte(s, ' ')
	if i < 0 {
		return s
	}
	if off, ok := obsoleteZones[strings.ToUpper(s[i+1:])]; ok {
		return s[:i+1] + off
	}
	return s
}

// Parse tries every layout in Layouts and reports whether one matched.
func Parse(raw string) (time.Time, bool) {
	s := numericZone(strings.TrimSpace(raw))
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range Layouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Normalize returns raw re-encoded as RFC 3339 in UTC, or "" when it does
// not parse.
func Normalize(raw string) string {
	t, ok := Parse(raw)
	if !ok {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// First returns the first candidate that parses, normalized to RFC 3339.
func First(candidates ...string) string {
	for _, c := range candidates {
		if s := Normalize(c); s != "" {
			return s
		}
	}
	return ""
}
