// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by every adapter that makes
// network requests.
type HTTPConfig struct {
	// Timeout bounds a single source fetch (default 30s).
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with every request.
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`

	// Retry is the number of retries on HTTP 429. Zero disables retrying.
	Retry int `json:"retry" yaml:"retry" mapstructure:"retry" validate:"gte=0,lte=10"`

	// RateLimit is the sustained per-host request rate in requests per
	// second. Zero disables rate limiting.
	RateLimit float64 `json:"rate_limit" yaml:"rate_limit" mapstructure:"rate_limit" validate:"gte=0"`

	// RateBurst is the per-host burst size (default 1).
	RateBurst int `json:"rate_burst" yaml:"rate_burst" mapstructure:"rate_burst" validate:"gte=0"`
}

// Settings are the global knobs shared by all tasks.
type Settings struct {
	HTTPConfig `json:",inline" yaml:",inline" mapstructure:",squash"`

	// Timezone is the IANA zone used when rendering run timestamps.
	Timezone string `json:"timezone" yaml:"timezone" mapstructure:"timezone"`

	// MaxWorkers bounds concurrent source fetches within one task (default 3).
	MaxWorkers int `json:"max_workers" yaml:"max_workers" mapstructure:"max_workers" validate:"gte=0"`
}

// LoggingConfig selects log level and output format.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level" mapstructure:"level" validate:"omitempty,oneof=trace debug info warn warning error"`
	Format string `json:"format" yaml:"format" mapstructure:"format" validate:"omitempty,oneof=json console pretty"`
	Output string `json:"output" yaml:"output" mapstructure:"output" validate:"omitempty,oneof=stdout stderr"`
}

// MetricsConfig controls the Prometheus endpoint served in daemon mode.
type MetricsConfig struct {
	// Addr is the listen address (e.g. ":9102"). Empty disables the endpoint.
	Addr string `json:"addr" yaml:"addr" mapstructure:"addr"`
}

// StoreConfig locates the run history database.
type StoreConfig struct {
	// Path is the SQLite file. Empty disables run history.
	Path string `json:"path" yaml:"path" mapstructure:"path"`
}

// Config is the fully loaded and validated configuration.
type Config struct {
	Settings   Settings      `json:"settings" yaml:"settings"`
	Logging    LoggingConfig `json:"logging" yaml:"logging"`
	Metrics    MetricsConfig `json:"metrics" yaml:"metrics"`
	Store      StoreConfig   `json:"store" yaml:"store"`
	SecretsDir string        `json:"secrets_dir" yaml:"secrets_dir"`
	Tasks      []Task        `json:"tasks" yaml:"tasks"`
}

// Task finds a task by name.
func (c *Config) Task(name string) (Task, bool) {
	for _, t := range c.Tasks {
		if t.Name == name {
			return t, true
		}
	}
	return Task{}, false
}

// Task is one scheduled unit of work: a set of sources and an ordered
// filter chain.
type Task struct {
	Name string `json:"name" yaml:"name"`

	// Interval is either a Go duration ("6h") or a cron expression.
	Interval string `json:"interval" yaml:"interval"`

	// Output is the directory run results are written to.
	Output string `json:"output" yaml:"output"`

	// Template and Variables are passed through to the renderer untouched.
	Template  string         `json:"template,omitempty" yaml:"template,omitempty"`
	Variables map[string]any `json:"variables,omitempty" yaml:"variables,omitempty"`

	Sources []SourceConfig `json:"sources" yaml:"sources"`
	Filters []FilterRule   `json:"filters,omitempty" yaml:"filters,omitempty"`
}

// SourceConfig describes one upstream source. Kind selects the adapter.
type SourceConfig struct {
	Kind     string            `json:"type" yaml:"type" mapstructure:"type" validate:"required"`
	Name     string            `json:"name" yaml:"name" mapstructure:"name" validate:"required"`
	URL      string            `json:"url,omitempty" yaml:"url,omitempty" mapstructure:"url" validate:"omitempty,url"`
	Method   string            `json:"method,omitempty" yaml:"method,omitempty" mapstructure:"method" validate:"omitempty,oneof=GET POST get post"`
	Headers  map[string]string `json:"headers,omitempty" yaml:"headers,omitempty" mapstructure:"headers"`
	Selector string            `json:"selector,omitempty" yaml:"selector,omitempty" mapstructure:"selector"`
	Fields   map[string]string `json:"fields,omitempty" yaml:"fields,omitempty" mapstructure:"fields"`
	Auth     map[string]any    `json:"auth,omitempty" yaml:"auth,omitempty" mapstructure:"auth"`
	Options  Options           `json:"options,omitempty" yaml:"options,omitempty" mapstructure:"options"`
}
