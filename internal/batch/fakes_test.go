// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package batch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pdiddy/formflow/internal/apierr"
	"github.com/pdiddy/formflow/pkg/types"
)

const (
	opsBase = "https://ops.example/status/"
	dlBase  = "https://dl.example/result/"
)

// fakeService records every call and serves scripted outcomes. Status
// locations are derived from the record's "name" field so tests can
// script per-record poll behaviour.
type fakeService struct {
	mu sync.Mutex

	authErr   error
	slotErr   error
	uploadErr error
	submitErr map[string]error
	fetchErr  map[string]error
	fields    json.RawMessage

	// extractName names the extract job's status location (default "extract").
	extractName string

	calls     []string
	submitted []types.Record
	uploaded  string
}

func (f *fakeService) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeService) callCount(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (f *fakeService) submittedNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var names []string
	for _, r := range f.submitted {
		names = append(names, r["name"])
	}
	return names
}

func (f *fakeService) Authenticate(_ context.Context, creds types.Credentials) (types.Session, error) {
	f.record("auth")
	if f.authErr != nil {
		return types.Session{}, f.authErr
	}
	return types.Session{ClientID: creds.ClientID, Token: "tok"}, nil
}

func (f *fakeService) RequestUploadSlot(_ context.Context, _ types.Session, mediaType string) (types.Asset, error) {
	f.record("slot")
	if f.slotErr != nil {
		return types.Asset{}, f.slotErr
	}
	return types.Asset{ID: "urn:aaid:src", UploadURI: "https://upload.example/src", MediaType: mediaType}, nil
}

func (f *fakeService) Upload(_ context.Context, _ types.Asset, sourcePath string) error {
	f.record("upload")
	f.mu.Lock()
	f.uploaded = sourcePath
	f.mu.Unlock()
	return f.uploadErr
}

func (f *fakeService) SubmitExtract(_ context.Context, _ types.Session, _ types.Asset) (string, error) {
	f.record("submit:extract")
	if err := f.submitErr["extract"]; err != nil {
		return "", err
	}
	name := f.extractName
	if name == "" {
		name = "extract"
	}
	return opsBase + name, nil
}

func (f *fakeService) SubmitInject(_ context.Context, _ types.Session, _ types.Asset, rec types.Record) (string, error) {
	name := rec["name"]
	f.record("submit:" + name)
	f.mu.Lock()
	f.submitted = append(f.submitted, rec)
	f.mu.Unlock()
	if err := f.submitErr[name]; err != nil {
		return "", err
	}
	return opsBase + name, nil
}

func (f *fakeService) FetchJSON(_ context.Context, uri string) (json.RawMessage, error) {
	f.record("fetch:" + strings.TrimPrefix(uri, dlBase))
	if err := f.fetchErr["extract"]; err != nil {
		return nil, err
	}
	return f.fields, nil
}

func (f *fakeService) FetchToFile(_ context.Context, uri, dest string) error {
	name := strings.TrimPrefix(uri, dlBase)
	f.record("fetch:" + name)
	if err := f.fetchErr[name]; err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dest, []byte("filled:"+name), 0o644)
}

// fakePoller resolves status locations by name: "fail" reports a failed
// job, "block" waits for cancellation, anything else is done.
type fakePoller struct {
	mu       sync.Mutex
	polled   []string
	inflight atomic.Int32
	peak     atomic.Int32

	noDownload bool
	onPoll     func(name string)
}

func (p *fakePoller) Poll(ctx context.Context, _ types.Session, statusURI string) (types.StatusReport, error) {
	name := strings.TrimPrefix(statusURI, opsBase)
	p.mu.Lock()
	p.polled = append(p.polled, name)
	p.mu.Unlock()

	n := p.inflight.Add(1)
	defer p.inflight.Add(-1)
	for {
		peak := p.peak.Load()
		if n <= peak || p.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	if p.onPoll != nil {
		p.onPoll(name)
	}

	switch {
	case strings.HasPrefix(name, "fail"):
		raw := json.RawMessage(fmt.Sprintf(`{"status":"failed","job":%q}`, name))
		return types.StatusReport{Status: types.StatusFailed, Raw: raw}, apierr.JobFailed("poll job", raw)
	case strings.HasPrefix(name, "block"):
		<-ctx.Done()
		return types.StatusReport{}, fmt.Errorf("poll job: %w", ctx.Err())
	}

	raw := json.RawMessage(`{"status":"done"}`)
	report := types.StatusReport{Status: types.StatusDone, Raw: raw}
	if !p.noDownload {
		report.Asset = &types.ResultAsset{DownloadURI: dlBase + name}
	}
	return report, nil
}

func (p *fakePoller) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.polled)
}

type fakeRecorder struct {
	mu   sync.Mutex
	runs []types.Run
	err  error
}

func (r *fakeRecorder) Record(_ context.Context, run types.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, run)
	return r.err
}

// minimalPDF builds a well-formed one-page PDF.
func minimalPDF() []byte {
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << >> >>",
	}
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func writeSource(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "form.pdf")
	require.NoError(t, os.WriteFile(path, minimalPDF(), 0o644))
	return path
}

type harness struct {
	svc      *fakeService
	poller   *fakePoller
	recorder *fakeRecorder
	out      *bytes.Buffer
	runner   *Runner
}

func newHarness() *harness {
	h := &harness{
		svc:      &fakeService{submitErr: map[string]error{}, fetchErr: map[string]error{}},
		poller:   &fakePoller{},
		recorder: &fakeRecorder{},
		out:      &bytes.Buffer{},
	}
	h.runner = NewRunner(Options{
		Service:     h.svc,
		Poller:      h.poller,
		Credentials: types.Credentials{ClientID: "client", ClientSecret: "secret"},
		Recorder:    h.recorder,
		Progress:    h.out,
	})
	h.runner.newID = func() string { return "run-1" }
	return h
}

func named(names ...string) []types.Record {
	recs := make([]types.Record, len(names))
	for i, n := range names {
		recs[i] = types.Record{"name": n, "position": fmt.Sprint(i + 1)}
	}
	return recs
}
