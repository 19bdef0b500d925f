// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package batch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pdiddy/formflow/internal/httputil"
	"github.com/pdiddy/formflow/internal/records"
	"github.com/pdiddy/formflow/pkg/types"
)

// ExtractResult is the outcome of an extract run.
type ExtractResult struct {
	Run types.Run

	// Fields is the extracted form-data document as fetched.
	Fields json.RawMessage
}

// Extract reads the form field values of cfg.SourcePath with a single
// job. The fetched document is optionally written to cfg.OutputPath
// (indented JSON) and cfg.TemplatePath (xlsx sheet).
func (r *Runner) Extract(ctx context.Context, cfg types.ExtractConfig) (ExtractResult, error) {
	run := r.newRun(types.JobExtract, cfg.SourcePath, 1)
	fields, err := r.extract(ctx, cfg, &run)
	r.finish(ctx, &run, err)
	if err != nil {
		r.progress.printf("extract failed: %v", err)
		return ExtractResult{Run: run}, err
	}
	r.progress.printf("extract complete in %s", run.Duration().Round(time.Millisecond))
	return ExtractResult{Run: run, Fields: fields}, nil
}

func (r *Runner) extract(ctx context.Context, cfg types.ExtractConfig, run *types.Run) (json.RawMessage, error) {
	sess, asset, err := r.start(ctx, run)
	if err != nil {
		return nil, err
	}

	statusURI, err := r.svc.SubmitExtract(ctx, sess, asset)
	if err != nil {
		return nil, err
	}
	r.progress.printf("job created: %s", httputil.Redact(statusURI))

	downloadURI, err := r.await(ctx, sess, statusURI)
	if err != nil {
		return nil, err
	}
	r.progress.printf("job done")

	fields, err := r.svc.FetchJSON(ctx, downloadURI)
	if err != nil {
		return nil, err
	}
	artifact := types.Artifact{
		Index:       1,
		JobURI:      httputil.Redact(statusURI),
		DownloadURI: httputil.Redact(downloadURI),
	}

	if cfg.OutputPath != "" {
		if err := writeJSON(cfg.OutputPath, fields); err != nil {
			return nil, err
		}
		artifact.Path = cfg.OutputPath
		r.progress.printf("fields saved: %s", cfg.OutputPath)
	}
	run.Artifacts = []types.Artifact{artifact}

	if cfg.TemplatePath != "" {
		rec, err := records.Flatten(fields)
		if err != nil {
			return nil, err
		}
		if err := records.WriteTemplate(cfg.TemplatePath, rec); err != nil {
			return nil, err
		}
		r.progress.printf("template saved: %s (%d fields)", cfg.TemplatePath, len(rec))
	}
	return fields, nil
}

func writeJSON(path string, doc json.RawMessage) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, doc, "", "  "); err != nil {
		return fmt.Errorf("formatting fields: %w", err)
	}
	buf.WriteByte('\n')
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
