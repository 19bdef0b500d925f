// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for formflow: credentials,
// uploaded assets, job status reports, records and run artifacts.
package types

import (
	"encoding/json"
	"strings"
)

// Credentials are the long-lived client credentials exchanged for a token.
type Credentials struct {
	ClientID     string `json:"client_id" yaml:"client_id"`
	ClientSecret string `json:"-" yaml:"-"`
}

// Complete reports whether both the client id and secret are set.
func (c Credentials) Complete() bool {
	return strings.TrimSpace(c.ClientID) != "" && strings.TrimSpace(c.ClientSecret) != ""
}

// Session is an authenticated bearer token together with the client id
// that must accompany it on every authorized request. It is created once
// per run and never refreshed.
type Session struct {
	ClientID string
	Token    string
}

// Asset is a service-held blob created by an upload slot request.
type Asset struct {
	ID        string `json:"assetID" yaml:"asset_id"`
	UploadURI string `json:"uploadUri" yaml:"upload_uri"`
	MediaType string `json:"-" yaml:"media_type"`
}

// JobKind identifies the operation a job performs.
type JobKind string

const (
	JobExtract JobKind = "getformdata"
	JobInject  JobKind = "setformdata"
)

// JobStatus is the status string reported by a job status location.
type JobStatus string

const (
	StatusInProgress JobStatus = "in_progress"
	StatusDone       JobStatus = "done"
	StatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further transition can follow s.
func (s JobStatus) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// ResultAsset points at the output of a completed job.
type ResultAsset struct {
	AssetID     string `json:"assetID,omitempty"`
	DownloadURI string `json:"downloadUri"`
}

// StatusReport is one decoded response from a job status location.
type StatusReport struct {
	Status JobStatus    `json:"status"`
	Asset  *ResultAsset `json:"asset,omitempty"`

	// Raw is the full response body as received.
	Raw json.RawMessage `json:"-"`
}

// DownloadURI returns the result location, or "" when the report has none.
func (r StatusReport) DownloadURI() string {
	if r.Asset == nil {
		return ""
	}
	return r.Asset.DownloadURI
}

// Record maps form field names to the values written by one inject job.
type Record map[string]string

// Artifact is the output of one job.
type Artifact struct {
	// Index is the 1-based position of the record that produced it.
	// Extract runs use 1.
	Index int `json:"index" yaml:"index"`

	// Path is the local file written, if any.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// JobURI is the status location the job was polled at.
	JobURI string `json:"job_uri" yaml:"job_uri"`

	// DownloadURI is where the result was fetched from.
	DownloadURI string `json:"download_uri" yaml:"download_uri"`
}
