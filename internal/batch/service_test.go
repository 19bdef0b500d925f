// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/formflow/internal/apierr"
	"github.com/pdiddy/formflow/internal/pdfservices"
	"github.com/pdiddy/formflow/pkg/types"
)

// formService imitates the document service. Every job reports
// in_progress once, then done, except the jobs listed in failJobs which
// report failed on their second status request.
type formService struct {
	t        *testing.T
	mu       sync.Mutex
	url      string
	failJobs map[int]bool

	uploads  int
	records  []types.Record
	statuses map[int]int
}

func newFormService(t *testing.T, failJobs ...int) *formService {
	s := &formService{t: t, failJobs: map[int]bool{}, statuses: map[int]int{}}
	for _, n := range failJobs {
		s.failJobs[n] = true
	}
	ts := httptest.NewServer(s)
	t.Cleanup(ts.Close)
	s.url = ts.URL
	return s
}

func (s *formService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/token":
		fmt.Fprint(w, `{"access_token":"tok","expires_in":86399}`)
	case r.Method == http.MethodPost && r.URL.Path == "/assets":
		fmt.Fprintf(w, `{"assetID":"urn:aaid:src","uploadUri":%q}`, s.url+"/upload/src?sig=u")
	case r.Method == http.MethodPut && r.URL.Path == "/upload/src":
		s.uploads++
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPost && r.URL.Path == "/operation/setformdata":
		var body struct {
			AssetID string       `json:"assetID"`
			Fields  types.Record `json:"jsonFormFieldsData"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		assert.Equal(s.t, "urn:aaid:src", body.AssetID)
		s.records = append(s.records, body.Fields)
		w.Header().Set("Location", fmt.Sprintf("%s/status/%d?sig=job", s.url, len(s.records)))
		w.WriteHeader(http.StatusCreated)
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/status/"):
		var n int
		fmt.Sscanf(strings.TrimPrefix(r.URL.Path, "/status/"), "%d", &n)
		s.statuses[n]++
		switch {
		case s.statuses[n] == 1:
			fmt.Fprint(w, `{"status":"in_progress"}`)
		case s.failJobs[n]:
			fmt.Fprintf(w, `{"status":"failed","error":{"code":"INVALID_FIELD","job":%d}}`, n)
		default:
			fmt.Fprintf(w, `{"status":"done","asset":{"assetID":"r%d","downloadUri":%q}}`, n, fmt.Sprintf("%s/dl/%d?X-Amz-Signature=secret", s.url, n))
		}
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/dl/"):
		fmt.Fprintf(w, "filled-%s", strings.TrimPrefix(r.URL.Path, "/dl/"))
	default:
		http.NotFound(w, r)
	}
}

func (s *formService) runner(rec Recorder) *Runner {
	client := pdfservices.NewClient(pdfservices.Options{
		Service: types.ServiceConfig{AuthURL: s.url, AssetsURL: s.url, OperationsURL: s.url},
	})
	poller := pdfservices.NewPoller(client, types.PollConfig{Interval: time.Second, MaxWait: 10 * time.Second})
	poller.Sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	return NewRunner(Options{
		Service:     client,
		Poller:      poller,
		Credentials: types.Credentials{ClientID: "client", ClientSecret: "secret"},
		Recorder:    rec,
	})
}

func outputNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestInjectAgainstServiceStopsAtFailedJob(t *testing.T) {
	svc := newFormService(t, 2)
	rec := &fakeRecorder{}
	outDir := t.TempDir()

	_, err := svc.runner(rec).Inject(context.Background(), types.InjectConfig{
		SourcePath: writeSource(t),
		OutputDir:  outDir,
	}, named("alice", "bob", "carol"))
	require.Error(t, err)
	assert.ErrorIs(t, err, apierr.ErrJobFailed)
	assert.Contains(t, string(apierr.PayloadOf(err)), "INVALID_FIELD")

	assert.Equal(t, 1, svc.uploads)
	assert.Len(t, svc.records, 2, "the record after the failed job is never submitted")
	assert.Equal(t, 2, svc.statuses[1])
	assert.Equal(t, 2, svc.statuses[2])
	assert.Zero(t, svc.statuses[3])
	assert.Equal(t, []string{"form_1.pdf"}, outputNames(t, outDir))

	data, err := os.ReadFile(filepath.Join(outDir, "form_1.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "filled-1", string(data))

	require.Len(t, rec.runs, 1)
	assert.Equal(t, types.RunFailed, rec.runs[0].State)
	require.Len(t, rec.runs[0].Artifacts, 1)
	assert.Equal(t, svc.url+"/dl/1", rec.runs[0].Artifacts[0].DownloadURI)
}

func TestInjectAgainstServiceWritesUnsignedManifest(t *testing.T) {
	svc := newFormService(t)
	outDir := t.TempDir()
	recs := named("alice", "bob", "carol")

	run, err := svc.runner(nil).Inject(context.Background(), types.InjectConfig{
		SourcePath: writeSource(t),
		OutputDir:  outDir,
	}, recs)
	require.NoError(t, err)

	assert.Equal(t, recs, svc.records)
	assert.ElementsMatch(t, []string{"form_1.pdf", "form_2.pdf", "form_3.pdf", ManifestFile}, outputNames(t, outDir))

	for i, a := range run.Artifacts {
		assert.Equal(t, fmt.Sprintf("%s/status/%d", svc.url, i+1), a.JobURI)
		assert.Equal(t, fmt.Sprintf("%s/dl/%d", svc.url, i+1), a.DownloadURI)
	}

	data, err := os.ReadFile(filepath.Join(outDir, ManifestFile))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "Signature")
	assert.NotContains(t, string(data), "sig=")
}
