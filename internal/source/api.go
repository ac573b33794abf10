// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/pdiddy/research-digest/pkg/types"
)

// APIAdapter reads items from a JSON HTTP endpoint (kind "api").
type APIAdapter struct {
	deps Deps
}

// Kind returns the adapter's kind tag.
func (a *APIAdapter) Kind() string { return "api" }

// Fetch issues one request and maps each JSON element to a record.
func (a *APIAdapter) Fetch(ctx context.Context, src types.SourceConfig) ([]types.Record, error) {
	if src.URL == "" {
		return nil, configErr(src, "url is required")
	}

	method := strings.ToUpper(src.Method)
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, src.URL, nil)
	if err != nil {
		return nil, fetchErr(src, fmt.Errorf("creating request: %w", err))
	}
	for k, v := range src.Headers {
		req.Header.Set(k, v)
	}
	if token := a.bearerToken(src); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	body, err := a.deps.Client.ReadAll(ctx, req)
	if err != nil {
		return nil, fetchErr(src, err)
	}

	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, parseErr(src, fmt.Errorf("decoding JSON: %w", err))
	}

	items, ok := apiItems(payload)
	if !ok {
		a.deps.Logger.Warn().
			Str("source", src.Name).
			Str("json_type", fmt.Sprintf("%T", payload)).
			Msg("unexpected JSON shape, no records")
		return nil, nil
	}

	records := make([]types.Record, 0, len(items))
	for idx, item := range items {
		records = append(records, apiRecord(src, idx, item))
	}
	return records, nil
}

// bearerToken resolves auth {type: bearer} from an inline token or a
// named secret file.
func (a *APIAdapter) bearerToken(src types.SourceConfig) string {
	if len(src.Auth) == 0 {
		return ""
	}
	auth := types.Options(src.Auth)
	if !strings.EqualFold(auth.String("type", ""), "bearer") {
		return ""
	}
	if token := auth.String("token", ""); token != "" {
		return token
	}
	return a.deps.secret(auth.String("token_secret", ""))
}

// apiItems extracts the element list: a top-level array, an object's
// non-empty "data" array, or the object itself.
func apiItems(payload any) ([]any, bool) {
	switch v := payload.(type) {
	case []any:
		return v, true
	case map[string]any:
		if data, ok := v["data"].([]any); ok && len(data) > 0 {
			return data, true
		}
		return []any{v}, true
	default:
		return nil, false
	}
}

func apiRecord(src types.SourceConfig, idx int, item any) types.Record {
	obj, ok := item.(map[string]any)
	if !ok {
		text := stringify(item)
		return types.Record{
			SourceLabel: label(src, ""),
			Title:       text,
			Content:     text,
			Metadata:    map[string]any{"raw": item},
		}
	}

	title := firstField(obj, "title", "name")
	if title == "" {
		title = fmt.Sprintf("Item %d", idx)
	}
	return types.Record{
		SourceLabel: label(src, ""),
		Title:       title,
		Content:     firstField(obj, "content", "description", "body"),
		URL:         firstField(obj, "url", "link"),
		PublishedAt: firstField(obj, "date", "created_at", "published"),
		Metadata:    map[string]any{"raw": obj},
	}
}

// firstField returns the first key present with a non-null value.
func firstField(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := obj[k]; ok && v != nil {
			return stringify(v)
		}
	}
	return ""
}
