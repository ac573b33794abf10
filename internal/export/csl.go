// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package export

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/research-digest/internal/dates"
	"github.com/pdiddy/research-digest/pkg/types"
)

// CSLItem is a bibliographic entry in CSL (Citation Style Language) form,
// consumable by Pandoc and reference managers.
type CSLItem struct {
	ID             string    `yaml:"id"`
	Type           string    `yaml:"type"`
	Title          string    `yaml:"title"`
	Author         []CSLName `yaml:"author,omitempty"`
	Abstract       string    `yaml:"abstract,omitempty"`
	ContainerTitle string    `yaml:"container-title,omitempty"`
	Issued         *CSLDate  `yaml:"issued,omitempty"`
	DOI            string    `yaml:"DOI,omitempty"`
	URL            string    `yaml:"URL,omitempty"`
	Source         string    `yaml:"source,omitempty"`
}

// CSLName is a person's name in CSL form.
type CSLName struct {
	Family  string `yaml:"family,omitempty"`
	Given   string `yaml:"given,omitempty"`
	Literal string `yaml:"literal,omitempty"`
}

// CSLDate is a date as CSL date-parts.
type CSLDate struct {
	DateParts [][]int `yaml:"date-parts"`
}

// WriteCSL writes the run's records as a CSL-YAML list to w.
func WriteCSL(result types.RunResult, w io.Writer) error {
	items := make([]CSLItem, len(result.Records))
	for i, r := range result.Records {
		items[i] = toCSLItem(result.Task, i, r)
	}
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	if err := enc.Encode(items); err != nil {
		return fmt.Errorf("encoding bibliography: %w", err)
	}
	return nil
}

func toCSLItem(task string, i int, r types.Record) CSLItem {
	item := CSLItem{
		ID:       cslID(task, i, r),
		Type:     "article",
		Title:    r.Title,
		Abstract: r.Abstract,
		URL:      r.URL,
		Source:   r.SourceLabel,
		DOI:      metaString(r.Metadata, "doi"),
	}
	if venue := metaString(r.Metadata, "venue"); venue != "" {
		item.Type = "paper-conference"
		item.ContainerTitle = venue
	}

	for _, a := range r.Authors {
		item.Author = append(item.Author, parseAuthorName(a))
	}

	if t, ok := dates.Parse(r.PublishedAt); ok {
		item.Issued = &CSLDate{DateParts: [][]int{{t.Year(), int(t.Month()), t.Day()}}}
	} else if year, err := strconv.Atoi(metaString(r.Metadata, "year")); err == nil && year > 0 {
		item.Issued = &CSLDate{DateParts: [][]int{{year}}}
	}
	return item
}

// cslID prefers stable upstream identifiers and falls back to the record's
// position in the run.
func cslID(task string, i int, r types.Record) string {
	if id := metaString(r.Metadata, "arxiv_id"); id != "" {
		return "arXiv:" + id
	}
	if doi := metaString(r.Metadata, "doi"); doi != "" {
		return doi
	}
	if r.URL != "" {
		return r.URL
	}
	return fmt.Sprintf("%s-%d", safeName(task), i+1)
}

func metaString(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// parseAuthorName splits a full name on the last space into given and
// family parts. Single-token names use the literal field.
func parseAuthorName(name string) CSLName {
	name = strings.TrimSpace(name)
	if name == "" {
		return CSLName{}
	}
	idx := strings.LastIndex(name, " ")
	if idx < 0 {
		return CSLName{Literal: name}
	}
	return CSLName{
		Given:  name[:idx],
		Family: name[idx+1:],
	}
}
