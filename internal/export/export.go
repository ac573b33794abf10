// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package export writes run results to files and terminal tables.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/research-digest/pkg/types"
)

// Format selects the export encoding.
type Format string

const (
	FormatYAML  Format = "yaml"
	FormatJSON  Format = "json"
	FormatCSL   Format = "csl"
	FormatTable Format = "table"
)

// ParseFormat accepts yaml, yml, json, csl and table in any case.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "yaml", "yml":
		return FormatYAML, nil
	case "json":
		return FormatJSON, nil
	case "csl":
		return FormatCSL, nil
	case "table":
		return FormatTable, nil
	}
	return "", fmt.Errorf("unknown export format %q (want yaml, json, csl or table)", s)
}

// FileName returns the export file name for a task in the given format.
func FileName(task string, format Format) string {
	ext := "yaml"
	switch format {
	case FormatJSON:
		ext = "json"
	case FormatCSL:
		ext = "csl.yaml"
	}
	return safeName(task) + "." + ext
}

// WriteFile writes result to <dir>/<task>.<ext>, creating dir as needed,
// and returns the path written. The table format is terminal-only and is
// rejected here.
func WriteFile(dir string, result types.RunResult, format Format) (string, error) {
	data, err := Marshal(result, format)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}
	path := filepath.Join(dir, FileName(result.Task, format))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing export file: %w", err)
	}
	return path, nil
}

// Marshal encodes result as YAML, JSON or a CSL bibliography.
func Marshal(result types.RunResult, format Format) ([]byte, error) {
	if result.Records == nil {
		result.Records = []types.Record{}
	}
	switch format {
	case FormatYAML, "":
		data, err := yaml.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("marshaling run result: %w", err)
		}
		return data, nil
	case FormatJSON:
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshaling run result: %w", err)
		}
		return append(data, '\n'), nil
	case FormatCSL:
		var buf bytes.Buffer
		if err := WriteCSL(result, &buf); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("format %q cannot be written to a file", format)
}

// ReadFile loads a YAML or JSON result written by WriteFile. The encoding
// is chosen by the file extension.
func ReadFile(path string) (*types.RunResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading export file: %w", err)
	}

	var result types.RunResult
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &result)
	default:
		err = yaml.Unmarshal(data, &result)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing export file %s: %w", path, err)
	}
	return &result, nil
}

// Alignment is the horizontal alignment of a table column.
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignRight
)

// RenderTable renders rows under headers as a rounded box table.
func RenderTable(headers []string, rows [][]string, aligns []Alignment) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, len(row))
		for i, cell := range row {
			r[i] = cell
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, len(headers))
	for i := range headers {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == AlignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

// titleWidth caps the title column so tables fit a terminal.
const titleWidth = 72

// WriteTable writes records as a table of source, published date, title
// and URL.
func WriteTable(w io.Writer, records []types.Record) error {
	rows := make([][]string, 0, len(records))
	for i, r := range records {
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			r.SourceLabel,
			r.PublishedAt,
			truncate(r.Title, titleWidth),
			r.URL,
		})
	}
	out := RenderTable(
		[]string{"#", "SOURCE", "PUBLISHED", "TITLE", "URL"},
		rows,
		[]Alignment{AlignRight},
	)
	_, err := fmt.Fprintln(w, out)
	return err
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}

// safeName maps a task name to a file name, replacing path separators and
// spaces.
func safeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "digest"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ' ', ':':
			return '_'
		}
		return r
	}, name)
}
