// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Run summarizes one execution of a task.
type Run struct {
	ID         string    `json:"id" yaml:"id"`
	Task       string    `json:"task" yaml:"task"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`

	// Fetched counts records returned by all sources before filtering.
	Fetched int `json:"fetched" yaml:"fetched"`

	// Kept counts records that survived the filter chain.
	Kept int `json:"kept" yaml:"kept"`
}

// Duration returns how long the run took.
func (r Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// RunResult is a run together with the records it kept. It is the unit
// written to export files and handed to renderers.
type RunResult struct {
	Run `yaml:",inline"`

	// Template and Variables are copied from the task for the renderer.
	Template  string         `json:"template,omitempty" yaml:"template,omitempty"`
	Variables map[string]any `json:"variables,omitempty" yaml:"variables,omitempty"`

	Records []Record `json:"records" yaml:"records"`
}
