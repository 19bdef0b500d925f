// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// RunState is the final state of a run.
type RunState string

const (
	RunSucceeded RunState = "succeeded"
	RunFailed    RunState = "failed"
)

// Run describes one formflow invocation. It is written to the run
// manifest and to the history store.
type Run struct {
	// ID is a random identifier assigned when the run starts.
	ID string `json:"id" yaml:"id"`

	// Kind is the job kind every job of the run performs.
	Kind JobKind `json:"kind" yaml:"kind"`

	// SourcePath is the uploaded source document.
	SourcePath string `json:"source_path" yaml:"source_path"`

	// AssetID is the service id of the uploaded source.
	AssetID string `json:"asset_id,omitempty" yaml:"asset_id,omitempty"`

	// Records is the number of records the run was given (1 for extract).
	Records int `json:"records" yaml:"records"`

	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`

	State RunState `json:"state" yaml:"state"`

	// Error holds the failure text of a failed run.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`

	// Artifacts lists the outputs in record order.
	Artifacts []Artifact `json:"artifacts" yaml:"artifacts"`
}

// Duration returns the wall time of the run.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
