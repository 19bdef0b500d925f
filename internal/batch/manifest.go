// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/formflow/pkg/types"
)

// ManifestFile is the name of the manifest written into the output
// directory of a successful inject run.
const ManifestFile = "manifest.yaml"

// Manifest lists the outputs of an inject run.
type Manifest struct {
	RunID     string           `yaml:"run_id"`
	Kind      types.JobKind    `yaml:"kind"`
	Source    string           `yaml:"source"`
	AssetID   string           `yaml:"asset_id"`
	Records   int              `yaml:"records"`
	StartedAt time.Time        `yaml:"started_at"`
	WrittenAt time.Time        `yaml:"written_at"`
	Artifacts []types.Artifact `yaml:"artifacts"`
}

func writeManifest(dir string, run types.Run, writtenAt time.Time) (string, error) {
	m := Manifest{
		RunID:     run.ID,
		Kind:      run.Kind,
		Source:    run.SourcePath,
		AssetID:   run.AssetID,
		Records:   run.Records,
		StartedAt: run.StartedAt.UTC(),
		WrittenAt: writtenAt.UTC(),
		Artifacts: run.Artifacts,
	}
	data, err := yaml.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshaling manifest: %w", err)
	}
	path := filepath.Join(dir, ManifestFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing manifest: %w", err)
	}
	return path, nil
}

// ReadManifest loads the manifest from an inject output directory.
func ReadManifest(dir string) (Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return Manifest{}, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("parsing manifest: %w", err)
	}
	return m, nil
}
