// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package config loads the research-digest YAML configuration with viper,
// applies defaults and environment overrides, and validates it into a
// types.Config. Filter rules are converted into their typed form here, so
// a configuration that loads without error only holds well-formed rules.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/pdiddy/research-digest/pkg/types"
)

// EnvPrefix prefixes environment overrides, e.g.
// RESEARCH_DIGEST_SETTINGS_TIMEOUT=10.
const EnvPrefix = "RESEARCH_DIGEST"

// FileName is the configuration file searched for when no path is given.
const FileName = "research-digest"

// Error reports an invalid configuration.
type Error struct {
	// Field is the dotted location of the problem (tasks[0].filters[2].min).
	Field  string
	Reason string
}

func (e *Error) Error() string {
	if e.Field == "" {
		return "invalid configuration: " + e.Reason
	}
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// authKeys are the auth entries that describe credentials rather than
// adapter options.
var authKeys = map[string]bool{"type": true, "token": true, "token_secret": true}

// NewViper returns a viper instance reading path, or searching for
// research-digest.yaml in the working directory and
// ~/.config/research-digest/ when path is empty.
func NewViper(path string) *viper.Viper {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", FileName))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("settings.timezone", "UTC")
	v.SetDefault("settings.max_workers", 3)
	v.SetDefault("settings.timeout", "30s")
	v.SetDefault("settings.retry", 0)
	v.SetDefault("settings.rate_limit", 0)
	v.SetDefault("settings.rate_burst", 1)
	v.SetDefault("settings.user_agent", "research-digest/0.1")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stderr")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("store.path", "")
	v.SetDefault("secrets_dir", ".secrets/")
}

// Load reads and validates the configuration at path (or the default
// search locations when path is empty).
func Load(path string) (*types.Config, error) {
	v := NewViper(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := FromViper(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", v.ConfigFileUsed(), err)
	}
	return cfg, nil
}

// Parse decodes and validates YAML configuration data.
func Parse(data []byte) (*types.Config, error) {
	v := NewViper("")
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return FromViper(v)
}

// FromViper decodes and validates configuration already read into v.
func FromViper(v *viper.Viper) (*types.Config, error) {
	var raw rawConfig
	if err := v.Unmarshal(&raw, viper.DecodeHook(decodeHook())); err != nil {
		return nil, &Error{Reason: err.Error()}
	}
	return build(raw)
}

// rawConfig mirrors the YAML layout before filter rules are typed.
type rawConfig struct {
	Settings   types.Settings      `mapstructure:"settings"`
	Logging    types.LoggingConfig `mapstructure:"logging"`
	Metrics    types.MetricsConfig `mapstructure:"metrics"`
	Store      types.StoreConfig   `mapstructure:"store"`
	SecretsDir string              `mapstructure:"secrets_dir"`
	Tasks      []rawTask           `mapstructure:"tasks" validate:"dive"`
}

type rawTask struct {
	Name      string               `mapstructure:"name" validate:"required"`
	Interval  string               `mapstructure:"interval"`
	Output    string               `mapstructure:"output"`
	Template  string               `mapstructure:"template"`
	Variables map[string]any       `mapstructure:"variables"`
	Sources   []types.SourceConfig `mapstructure:"sources" validate:"dive"`
	Filters   []rawRule            `mapstructure:"filters"`
}

// rawRule is the flat YAML form of a filter rule.
type rawRule struct {
	Type          string   `mapstructure:"type"`
	Action        string   `mapstructure:"action"`
	Scope         string   `mapstructure:"scope"`
	CaseSensitive bool     `mapstructure:"case_sensitive"`
	Pattern       string   `mapstructure:"pattern"`
	Keywords      []string `mapstructure:"keywords"`
	Match         string   `mapstructure:"match"`
	Min           *int     `mapstructure:"min"`
	Max           *int     `mapstructure:"max"`
	Fields        []string `mapstructure:"fields"`
	Hours         int      `mapstructure:"hours"`
	Days          int      `mapstructure:"days"`
}

var validate = newValidator()

// newValidator reports fields by their YAML names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

func build(raw rawConfig) (*types.Config, error) {
	if err := validate.Struct(raw); err != nil {
		return nil, validationError(err)
	}
	if _, err := time.LoadLocation(raw.Settings.Timezone); err != nil {
		return nil, &Error{Field: "settings.timezone", Reason: err.Error()}
	}

	cfg := &types.Config{
		Settings:   raw.Settings,
		Logging:    raw.Logging,
		Metrics:    raw.Metrics,
		Store:      raw.Store,
		SecretsDir: raw.SecretsDir,
		Tasks:      make([]types.Task, 0, len(raw.Tasks)),
	}

	seen := make(map[string]bool, len(raw.Tasks))
	for i, rt := range raw.Tasks {
		if seen[rt.Name] {
			return nil, &Error{Field: fmt.Sprintf("tasks[%d].name", i), Reason: fmt.Sprintf("duplicate task %q", rt.Name)}
		}
		seen[rt.Name] = true

		task := types.Task{
			Name:      rt.Name,
			Interval:  rt.Interval,
			Output:    rt.Output,
			Template:  rt.Template,
			Variables: rt.Variables,
			Sources:   make([]types.SourceConfig, 0, len(rt.Sources)),
			Filters:   make([]types.FilterRule, 0, len(rt.Filters)),
		}
		if task.Interval == "" {
			task.Interval = "6h"
		}
		if task.Output == "" {
			task.Output = "output"
		}

		for _, src := range rt.Sources {
			task.Sources = append(task.Sources, normalizeSource(src))
		}
		for j, rr := range rt.Filters {
			rule, err := buildRule(rr)
			if err != nil {
				return nil, &Error{Field: fmt.Sprintf("tasks[%d].filters[%d]", i, j), Reason: err.Error()}
			}
			task.Filters = append(task.Filters, rule)
		}
		cfg.Tasks = append(cfg.Tasks, task)
	}
	return cfg, nil
}

// normalizeSource fills defaults and copies option-like auth entries into
// Options, so configurations that put query parameters under auth keep
// working.
func normalizeSource(src types.SourceConfig) types.SourceConfig {
	if src.Method == "" {
		src.Method = "GET"
	}
	src.Method = strings.ToUpper(src.Method)
	if src.Options == nil {
		src.Options = types.Options{}
	}
	for k, v := range src.Auth {
		if authKeys[k] {
			continue
		}
		if _, ok := src.Options[k]; !ok {
			src.Options[k] = v
		}
	}
	return src
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		_, field, _ := strings.Cut(fe.Namespace(), ".")
		return &Error{
			Field:  field,
			Reason: fmt.Sprintf("failed %q validation (value %v)", fe.Tag(), fe.Value()),
		}
	}
	return &Error{Reason: err.Error()}
}

func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		secondsDurationHook(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// Warnings describes sources and filter rules that will be skipped at run
// time because no implementation handles their kind. known lists the
// registered source kinds.
func Warnings(cfg *types.Config, known []string) []string {
	registered := make(map[string]bool, len(known))
	for _, k := range known {
		registered[k] = true
	}

	var out []string
	for _, task := range cfg.Tasks {
		for _, src := range task.Sources {
			if !registered[src.Kind] {
				out = append(out, fmt.Sprintf("task %s: source %s has unknown type %q", task.Name, src.Name, src.Kind))
			}
		}
		for i, rule := range task.Filters {
			if _, ok := kindAliases[string(rule.Kind)]; !ok {
				out = append(out, fmt.Sprintf("task %s: filter %d has unknown type %q", task.Name, i, rule.Kind))
			}
		}
	}
	return out
}
