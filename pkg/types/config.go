// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by every call to the service.
type HTTPConfig struct {
	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "formflow/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// ServiceConfig locates the document service endpoints.
type ServiceConfig struct {
	HTTPConfig `yaml:",inline"`

	// AuthURL is the base URL that serves POST /token.
	AuthURL string `json:"auth_url" yaml:"auth_url"`

	// AssetsURL is the base URL that serves POST /assets.
	AssetsURL string `json:"assets_url" yaml:"assets_url"`

	// OperationsURL is the base URL that serves POST /operation/*.
	OperationsURL string `json:"operations_url" yaml:"operations_url"`
}

// PollConfig controls how the job poller waits for a terminal status.
// A zero MaxWait or MaxAttempts means that bound is not enforced.
type PollConfig struct {
	// Interval is the delay between the end of one status response and
	// the next status request (default 2s).
	Interval time.Duration `json:"interval" yaml:"interval"`

	// MaxWait bounds the total time spent polling one job.
	MaxWait time.Duration `json:"max_wait" yaml:"max_wait"`

	// MaxAttempts bounds the number of status requests for one job.
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts"`
}

// ExtractConfig holds settings for a form-data extract run.
type ExtractConfig struct {
	// SourcePath is the local PDF whose form fields are read.
	SourcePath string `json:"source_path" yaml:"source_path"`

	// OutputPath optionally receives the extracted JSON document.
	OutputPath string `json:"output_path,omitempty" yaml:"output_path,omitempty"`

	// TemplatePath optionally receives the extracted fields as an xlsx
	// sheet that can be filled in and fed back to an inject run.
	TemplatePath string `json:"template_path,omitempty" yaml:"template_path,omitempty"`
}

// InjectConfig holds settings for a form-data inject run.
type InjectConfig struct {
	// SourcePath is the local PDF form that every record is written into.
	SourcePath string `json:"source_path" yaml:"source_path"`

	// OutputDir is the directory that receives one document per record.
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// Prefix names the output documents: <Prefix>_<n><ext>. Defaults to
	// the source file name without extension.
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty"`

	// Concurrency is the number of records in flight at once (default 1).
	Concurrency int `json:"concurrency" yaml:"concurrency"`
}

// HistoryConfig holds settings for the run history store.
type HistoryConfig struct {
	// Dir is the directory that holds formflow.db.
	Dir string `json:"dir" yaml:"dir"`

	// Disabled turns off history recording.
	Disabled bool `json:"disabled" yaml:"disabled"`
}
