// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package batch

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/formflow/internal/apierr"
	"github.com/pdiddy/formflow/internal/httputil"
	"github.com/pdiddy/formflow/pkg/types"
)

const opInject = "inject"

// Inject writes each record into the form at cfg.SourcePath, one job per
// record, and saves the filled documents as <prefix>_<n><ext> in
// cfg.OutputDir, n being the record's 1-based position.
//
// Records run strictly in order unless cfg.Concurrency is above one, in
// which case up to that many run at once. In both modes the first failure
// ends the run: no further record is started and in-flight jobs are
// cancelled. On success a manifest is written next to the outputs.
func (r *Runner) Inject(ctx context.Context, cfg types.InjectConfig, recs []types.Record) (types.Run, error) {
	run := r.newRun(types.JobInject, cfg.SourcePath, len(recs))
	err := r.inject(ctx, cfg, recs, &run)
	r.finish(ctx, &run, err)
	if err != nil {
		r.progress.printf("inject failed after %d of %d records: %v", len(run.Artifacts), len(recs), err)
		return run, err
	}
	r.progress.printf("inject complete: %d of %d records saved to %s in %s",
		len(run.Artifacts), len(recs), cfg.OutputDir, run.Duration().Round(time.Millisecond))
	return run, nil
}

func (r *Runner) inject(ctx context.Context, cfg types.InjectConfig, recs []types.Record, run *types.Run) error {
	if len(recs) == 0 {
		return apierr.Configuration(opInject, "no records to inject")
	}
	if cfg.OutputDir == "" {
		return apierr.Configuration(opInject, "output directory is required")
	}

	sess, asset, err := r.start(ctx, run)
	if err != nil {
		return err
	}

	ext := filepath.Ext(cfg.SourcePath)
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = strings.TrimSuffix(filepath.Base(cfg.SourcePath), ext)
	}
	job := func(ctx context.Context, i int) (types.Artifact, error) {
		dest := filepath.Join(cfg.OutputDir, fmt.Sprintf("%s_%d%s", prefix, i+1, ext))
		a, err := r.injectOne(ctx, sess, asset, i, recs[i], dest)
		if err != nil {
			return types.Artifact{}, fmt.Errorf("record %d: %w", i+1, err)
		}
		return a, nil
	}

	if cfg.Concurrency > 1 {
		err = r.injectConcurrent(ctx, len(recs), cfg.Concurrency, job, run)
	} else {
		err = r.injectSequential(ctx, len(recs), job, run)
	}
	if err != nil {
		return err
	}

	path, err := writeManifest(cfg.OutputDir, *run, r.now())
	if err != nil {
		return err
	}
	r.log.Debug().Str("run_id", run.ID).Str("path", path).Msg("batch.manifest.written")
	return nil
}

type recordJob func(ctx context.Context, i int) (types.Artifact, error)

func (r *Runner) injectSequential(ctx context.Context, n int, job recordJob, run *types.Run) error {
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: %w", opInject, err)
		}
		a, err := job(ctx, i)
		if err != nil {
			return err
		}
		run.Artifacts = append(run.Artifacts, a)
	}
	return nil
}

// injectConcurrent runs jobs through a bounded errgroup. The group context
// is cancelled by the first failure, which stops both the launch loop and
// every in-flight poll at its next wait.
func (r *Runner) injectConcurrent(ctx context.Context, n, limit int, job recordJob, run *types.Run) error {
	results := make([]types.Artifact, n)
	done := make([]bool, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return fmt.Errorf("%s: %w", opInject, err)
			}
			a, err := job(gctx, i)
			if err != nil {
				return err
			}
			results[i] = a
			done[i] = true
			return nil
		})
	}
	err := g.Wait()

	for i := range results {
		if done[i] {
			run.Artifacts = append(run.Artifacts, results[i])
		}
	}
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", opInject, err)
	}
	return nil
}

func (r *Runner) injectOne(ctx context.Context, sess types.Session, asset types.Asset, i int, rec types.Record, dest string) (types.Artifact, error) {
	statusURI, err := r.svc.SubmitInject(ctx, sess, asset, rec)
	if err != nil {
		return types.Artifact{}, err
	}
	r.progress.printf("record %d: job created: %s", i+1, httputil.Redact(statusURI))

	downloadURI, err := r.await(ctx, sess, statusURI)
	if err != nil {
		return types.Artifact{}, err
	}
	r.progress.printf("record %d: job done", i+1)

	if err := r.svc.FetchToFile(ctx, downloadURI, dest); err != nil {
		return types.Artifact{}, err
	}
	r.progress.printf("record %d saved: %s", i+1, dest)

	return types.Artifact{
		Index:       i + 1,
		Path:        dest,
		JobURI:      httputil.Redact(statusURI),
		DownloadURI: httputil.Redact(downloadURI),
	}, nil
}
