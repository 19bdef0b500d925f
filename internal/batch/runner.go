// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package batch sequences the service calls of a run: authenticate once,
// upload the source once, then submit, poll and fetch one job per item.
// Any failure aborts the run; nothing after a failed item is started.
package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/formflow/internal/apierr"
	"github.com/pdiddy/formflow/internal/logging"
	"github.com/pdiddy/formflow/internal/source"
	"github.com/pdiddy/formflow/pkg/types"
)

// Service is the subset of the service client a run uses.
type Service interface {
	Authenticate(ctx context.Context, creds types.Credentials) (types.Session, error)
	RequestUploadSlot(ctx context.Context, sess types.Session, mediaType string) (types.Asset, error)
	Upload(ctx context.Context, asset types.Asset, sourcePath string) error
	SubmitExtract(ctx context.Context, sess types.Session, asset types.Asset) (string, error)
	SubmitInject(ctx context.Context, sess types.Session, asset types.Asset, record types.Record) (string, error)
	FetchJSON(ctx context.Context, downloadURI string) (json.RawMessage, error)
	FetchToFile(ctx context.Context, downloadURI, destPath string) error
}

// Poller waits for a submitted job to finish.
type Poller interface {
	Poll(ctx context.Context, sess types.Session, statusURI string) (types.StatusReport, error)
}

// Recorder stores finished runs.
type Recorder interface {
	Record(ctx context.Context, run types.Run) error
}

// Options configures a Runner. Service, Poller and Credentials are
// required; the rest is optional.
type Options struct {
	Service     Service
	Poller      Poller
	Credentials types.Credentials

	// Recorder receives every finished run, failed ones included.
	Recorder Recorder

	// Progress receives one human-readable line per milestone.
	Progress io.Writer

	Logger *logging.Logger
}

// Runner executes extract and inject runs.
type Runner struct {
	svc      Service
	poller   Poller
	creds    types.Credentials
	recorder Recorder
	progress *progress
	log      logging.Logger

	now   func() time.Time
	newID func() string
}

// NewRunner returns a runner for opts.
func NewRunner(opts Options) *Runner {
	w := opts.Progress
	if w == nil {
		w = io.Discard
	}
	return &Runner{
		svc:      opts.Service,
		poller:   opts.Poller,
		creds:    opts.Credentials,
		recorder: opts.Recorder,
		progress: &progress{w: w},
		log:      logging.OrDiscard(opts.Logger),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// progress serialises milestone lines from concurrent records.
type progress struct {
	mu sync.Mutex
	w  io.Writer
}

func (p *progress) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, format+"\n", args...)
}

// start inspects the source, authenticates and uploads the source once.
// Every job of the run reuses the returned session and asset.
func (r *Runner) start(ctx context.Context, run *types.Run) (types.Session, types.Asset, error) {
	doc, err := source.Inspect(run.SourcePath)
	if err != nil {
		return types.Session{}, types.Asset{}, err
	}
	r.log.Info().
		Str("run_id", run.ID).
		Str("source", doc.Path).
		Int64("bytes", doc.Size).
		Int("pages", doc.Pages).
		Msg("batch.source.inspected")

	sess, err := r.svc.Authenticate(ctx, r.creds)
	if err != nil {
		return types.Session{}, types.Asset{}, err
	}
	r.progress.printf("token acquired")

	asset, err := r.svc.RequestUploadSlot(ctx, sess, doc.MediaType)
	if err != nil {
		return types.Session{}, types.Asset{}, err
	}
	if err := r.svc.Upload(ctx, asset, doc.Path); err != nil {
		return types.Session{}, types.Asset{}, err
	}
	run.AssetID = asset.ID
	r.progress.printf("source uploaded: %s (%d bytes)", asset.ID, doc.Size)
	return sess, asset, nil
}

// await polls statusURI and returns the finished job's download location.
func (r *Runner) await(ctx context.Context, sess types.Session, statusURI string) (string, error) {
	report, err := r.poller.Poll(ctx, sess, statusURI)
	if err != nil {
		return "", err
	}
	uri := report.DownloadURI()
	if uri == "" {
		return "", apierr.Protocol("poll job", "done status has no download location", report.Raw)
	}
	return uri, nil
}

func (r *Runner) newRun(kind types.JobKind, sourcePath string, records int) types.Run {
	return types.Run{
		ID:         r.newID(),
		Kind:       kind,
		SourcePath: sourcePath,
		Records:    records,
		StartedAt:  r.now(),
	}
}

// finish stamps run with its outcome and hands it to the recorder. A
// recorder failure is logged and does not change the run's result.
func (r *Runner) finish(ctx context.Context, run *types.Run, runErr error) {
	run.FinishedAt = r.now()
	run.State = types.RunSucceeded
	if runErr != nil {
		run.State = types.RunFailed
		run.Error = runErr.Error()
	}

	ev := r.log.Info()
	if runErr != nil {
		ev = r.log.Error().Err(runErr).Str("error_kind", string(apierr.KindOf(runErr)))
	}
	ev.Str("run_id", run.ID).
		Str("state", string(run.State)).
		Int("artifacts", len(run.Artifacts)).
		Dur("duration", run.Duration()).
		Msg("batch.run.finished")

	if r.recorder == nil {
		return
	}
	if err := r.recorder.Record(context.WithoutCancel(ctx), *run); err != nil {
		r.log.Warn().Err(err).Str("run_id", run.ID).Msg("batch.history.record_failed")
	}
}
