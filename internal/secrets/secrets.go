// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys and credentials from a directory of plain-text files.
// Each file in the directory represents one secret: the filename is the key name and the
// file contents (trimmed) are the value. Environment variables named
// RESEARCH_DIGEST_SECRET_<KEY> override files, with <KEY> upper-cased and
// dashes replaced by underscores.
//
// Keys read by the built-in sources: semantic-scholar-api-key, openalex-email. Sources of
// type api name their own bearer-token key with the token_secret option.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// EnvPrefix marks environment variables that carry secrets.
const EnvPrefix = "RESEARCH_DIGEST_SECRET_"

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files are logged and skipped.
func Load(dir string, logger zerolog.Logger) (map[string]string, error) {
	secrets := make(map[string]string)
	if dir == "" {
		return secrets, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return secrets, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			logger.Warn().Err(err).Str("secret", name).Msg("Could not read secret")
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// FromEnv extracts secrets from environ (os.Environ() format).
func FromEnv(environ []string) map[string]string {
	out := make(map[string]string)
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(k, EnvPrefix) {
			continue
		}
		v = strings.TrimSpace(v)
		name := strings.TrimPrefix(k, EnvPrefix)
		if name == "" || v == "" {
			continue
		}
		out[strings.ReplaceAll(strings.ToLower(name), "_", "-")] = v
	}
	return out
}

// Merge returns base overlaid with every map in overrides, later maps
// winning.
func Merge(base map[string]string, overrides ...map[string]string) map[string]string {
	out := make(map[string]string, len(base))
	for k, v := range base {
		out[k] = v
	}
	for _, m := range overrides {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}
