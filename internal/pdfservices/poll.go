// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pdfservices

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/pdiddy/formflow/internal/apierr"
	"github.com/pdiddy/formflow/internal/httputil"
	"github.com/pdiddy/formflow/pkg/types"
)

const opPoll = "poll job"

// DefaultPollInterval is the wait between a non-terminal status response
// and the next status request.
const DefaultPollInterval = 2 * time.Second

// JobStatus fetches the current status of the job at statusURI once.
func (c *Client) JobStatus(ctx context.Context, sess types.Session, statusURI string) (types.StatusReport, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURI, nil)
	if err != nil {
		return types.StatusReport{}, apierr.Protocol(opPoll, fmt.Sprintf("invalid status location: %v", err), nil)
	}
	httputil.Authorize(req, sess)
	c.setUserAgent(req)

	start := time.Now()
	resp, err := httputil.Do(ctx, c.http, req, opPoll)
	if err != nil {
		return types.StatusReport{}, err
	}
	c.traceRequest(opPoll, req.Method, statusURI, resp.StatusCode, start)

	if err := httputil.ExpectSuccess(resp, opPoll); err != nil {
		return types.StatusReport{}, err
	}

	var report types.StatusReport
	raw, err := httputil.DecodeJSON(resp, opPoll, &report)
	if err != nil {
		return types.StatusReport{}, err
	}
	report.Raw = raw
	return report, nil
}

// Poller waits for a job to reach a terminal status. Polls against one
// status location are strictly sequential. The wait is measured from the
// end of one response to the start of the next request, so request
// latency adds to the period.
type Poller struct {
	client *Client

	// Interval is the wait after each non-terminal response.
	Interval time.Duration

	// MaxWait bounds the total polling time. Zero means unbounded.
	MaxWait time.Duration

	// MaxAttempts bounds the number of status requests. Zero means
	// unbounded.
	MaxAttempts int

	// Sleep suspends for d or until ctx is done. Tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewPoller returns a poller using c for status requests.
func NewPoller(c *Client, cfg types.PollConfig) *Poller {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		client:      c,
		Interval:    interval,
		MaxWait:     cfg.MaxWait,
		MaxAttempts: cfg.MaxAttempts,
		Sleep:       sleepContext,
	}
}

// Poll requests statusURI until it reports done or failed.
//
// On done it returns the report, whose Raw field holds the full completed
// job record. On failed it returns a job-failed error carrying the full
// payload; callers treat that as fatal to the whole run. Any other status
// is treated as still in progress. No request is issued after a terminal
// status is observed.
func (p *Poller) Poll(ctx context.Context, sess types.Session, statusURI string) (types.StatusReport, error) {
	if p.MaxWait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.MaxWait)
		defer cancel()
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			return types.StatusReport{}, p.stopped(ctx, attempt-1)
		}

		report, err := p.client.JobStatus(ctx, sess, statusURI)
		if err != nil {
			if ctx.Err() != nil {
				return types.StatusReport{}, p.stopped(ctx, attempt)
			}
			return types.StatusReport{}, err
		}

		switch report.Status {
		case types.StatusDone:
			p.client.log.Info().Int("attempts", attempt).Str("status_uri", httputil.Redact(statusURI)).Msg("pdfservices.job.done")
			return report, nil
		case types.StatusFailed:
			p.client.log.Error().Int("attempts", attempt).RawJSON("payload", report.Raw).Msg("pdfservices.job.failed")
			return report, apierr.JobFailed(opPoll, report.Raw)
		case "":
			p.client.log.Warn().Int("attempt", attempt).Msg("pdfservices.job.status_missing")
		default:
			p.client.log.Debug().Int("attempt", attempt).Str("status", string(report.Status)).Msg("pdfservices.job.pending")
		}

		if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
			return types.StatusReport{}, apierr.Timeout(opPoll, fmt.Sprintf("job not finished after %d attempts", attempt))
		}

		if err := sleep(ctx, p.Interval); err != nil {
			if ctx.Err() == nil {
				return types.StatusReport{}, fmt.Errorf("%s: %w", opPoll, err)
			}
			return types.StatusReport{}, p.stopped(ctx, attempt)
		}
	}
}

// stopped converts a context failure into the error Poll returns: a
// timeout when the poller's own MaxWait expired, the cancellation
// otherwise.
func (p *Poller) stopped(ctx context.Context, attempts int) error {
	if p.MaxWait > 0 && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apierr.Timeout(opPoll, fmt.Sprintf("job not finished within %s (%d attempts)", p.MaxWait, attempts))
	}
	return fmt.Errorf("%s: %w", opPoll, ctx.Err())
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
