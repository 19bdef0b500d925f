// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package history

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/formflow/pkg/types"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "history")
	s, err := Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, dir
}

func sampleRun(id string, started time.Time) types.Run {
	return types.Run{
		ID:         id,
		Kind:       types.JobInject,
		SourcePath: "forms/w9.pdf",
		AssetID:    "urn:aaid:" + id,
		Records:    2,
		StartedAt:  started,
		FinishedAt: started.Add(3 * time.Second),
		State:      types.RunSucceeded,
		Artifacts: []types.Artifact{
			{Index: 1, Path: "out/w9_1.pdf", JobURI: "https://ops.example/status/1", DownloadURI: "https://dl.example/1"},
			{Index: 2, Path: "out/w9_2.pdf", JobURI: "https://ops.example/status/2", DownloadURI: "https://dl.example/2"},
		},
	}
}

func TestOpenCreatesDatabase(t *testing.T) {
	_, dir := openTestStore(t)
	_, err := os.Stat(filepath.Join(dir, dbFile))
	assert.NoError(t, err)
}

func TestOpenIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	s1, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s1.Record(context.Background(), sampleRun("r1", time.Now())))
	require.NoError(t, s1.Close())

	s2, err := Open(dir)
	require.NoError(t, err)
	defer s2.Close()
	runs, err := s2.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestRecordAndList(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	older := sampleRun("older", base)
	newer := sampleRun("newer", base.Add(time.Hour+500*time.Millisecond))
	failed := types.Run{
		ID:         "failed",
		Kind:       types.JobExtract,
		SourcePath: "forms/broken.pdf",
		Records:    1,
		StartedAt:  base.Add(30 * time.Minute),
		FinishedAt: base.Add(31 * time.Minute),
		State:      types.RunFailed,
		Error:      "poll job: remote job reported failure",
	}
	for _, r := range []types.Run{older, newer, failed} {
		require.NoError(t, s.Record(ctx, r))
	}

	runs, err := s.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, []string{"newer", "failed", "older"}, []string{runs[0].ID, runs[1].ID, runs[2].ID})

	got := runs[0]
	assert.Equal(t, newer.Kind, got.Kind)
	assert.Equal(t, newer.SourcePath, got.SourcePath)
	assert.Equal(t, newer.AssetID, got.AssetID)
	assert.Equal(t, newer.Records, got.Records)
	assert.True(t, newer.StartedAt.Equal(got.StartedAt))
	assert.True(t, newer.FinishedAt.Equal(got.FinishedAt))
	assert.Equal(t, 3*time.Second, got.Duration())
	assert.Equal(t, newer.Artifacts, got.Artifacts)

	gotFailed := runs[1]
	assert.Equal(t, types.RunFailed, gotFailed.State)
	assert.Equal(t, failed.Error, gotFailed.Error)
	assert.Empty(t, gotFailed.AssetID)
	assert.Empty(t, gotFailed.Artifacts)
}

func TestListLimit(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.Record(ctx, sampleRun(id, base.Add(time.Duration(i)*time.Minute))))
	}

	runs, err := s.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, "b", runs[1].ID)
}

func TestRecordReplacesSameID(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	run := sampleRun("r1", time.Now())
	require.NoError(t, s.Record(ctx, run))

	run.State = types.RunFailed
	run.Error = "fetch result file: HTTP 404"
	run.Artifacts = run.Artifacts[:1]
	require.NoError(t, s.Record(ctx, run))

	runs, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, types.RunFailed, runs[0].State)
	assert.Len(t, runs[0].Artifacts, 1)
}

func TestRecordDropsSignatures(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	run := sampleRun("signed", time.Now())
	run.Artifacts = []types.Artifact{{
		Index:       1,
		Path:        "out/w9_1.pdf",
		JobURI:      "https://ops.example/status/1?token=abc",
		DownloadURI: "https://dl.example/1?X-Amz-Signature=deadbeef",
	}}
	require.NoError(t, s.Record(ctx, run))

	runs, err := s.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs[0].Artifacts, 1)
	assert.Equal(t, "https://ops.example/status/1", runs[0].Artifacts[0].JobURI)
	assert.Equal(t, "https://dl.example/1", runs[0].Artifacts[0].DownloadURI)
}

func TestListEmpty(t *testing.T) {
	s, _ := openTestStore(t)
	runs, err := s.List(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, runs)
}
