package runstate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRun_RoundTrip(t *testing.T) {
	store := NewStore(t.TempDir())

	rec, err := store.NewRun("/work/manifest.yaml", "public", 2)
	require.NoError(t, err)
	assert.NotEmpty(t, rec.RunID)
	assert.False(t, rec.CreatedAt.IsZero())
	assert.Nil(t, rec.EndedAt)
	assert.Empty(t, rec.Jobs)

	got, err := store.Get(rec.RunID)
	require.NoError(t, err)
	assert.Equal(t, rec.RunID, got.RunID)
	assert.Equal(t, "/work/manifest.yaml", got.ManifestPath)
	assert.Equal(t, "public", got.Partition)
	assert.Equal(t, 2, got.SubmitID)
	assert.NotNil(t, got.Jobs)
}

func TestWrite_Validation(t *testing.T) {
	store := NewStore(t.TempDir())

	assert.Error(t, store.Write(nil))
	assert.Error(t, store.Write(&RunRecord{}))
	assert.Error(t, NewStore("  ").Write(&RunRecord{RunID: "r1"}))
}

func TestWrite_LeavesNoTempFiles(t *testing.T) {
	root := t.TempDir()
	store := NewStore(root)

	rec, err := store.NewRun("", "public", 0)
	require.NoError(t, err)

	entries, err := os.ReadDir(store.RunDir(rec.RunID))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "run.json", entries[0].Name())
}

func TestAppendJob(t *testing.T) {
	store := NewStore(t.TempDir())
	rec, err := store.NewRun("", "private", 1)
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, store.AppendJob(rec, JobEntry{
		ID:           "a1",
		JobIndex:     0,
		State:        DispatchDispatched,
		SubmitDir:    "/submit/0_1",
		Polls:        3,
		DispatchedAt: &now,
	}))
	require.NoError(t, store.AppendJob(rec, JobEntry{
		ID:       "b2",
		JobIndex: 1,
		State:    DispatchAborted,
		Reason:   "attempt budget exhausted (5)",
	}))

	got, err := store.Get(rec.RunID)
	require.NoError(t, err)
	require.Len(t, got.Jobs, 2)
	assert.Equal(t, DispatchDispatched, got.Jobs[0].State)
	assert.Equal(t, 3, got.Jobs[0].Polls)
	assert.Equal(t, DispatchAborted, got.Jobs[1].State)
	assert.Equal(t, "attempt budget exhausted (5)", got.Jobs[1].Reason)
}

func TestFinish(t *testing.T) {
	store := NewStore(t.TempDir())
	rec, err := store.NewRun("", "public", 0)
	require.NoError(t, err)

	require.NoError(t, store.Finish(rec))

	got, err := store.Get(rec.RunID)
	require.NoError(t, err)
	require.NotNil(t, got.EndedAt)
	assert.False(t, got.EndedAt.Before(got.CreatedAt))
}

func TestGet_Errors(t *testing.T) {
	store := NewStore(t.TempDir())

	_, err := store.Get("")
	assert.Error(t, err)

	_, err = store.Get("no-such-run")
	assert.True(t, os.IsNotExist(err))

	// Corrupt payloads surface as parse errors, not zero records.
	runID := "corrupt"
	require.NoError(t, os.MkdirAll(store.RunDir(runID), 0o755))
	require.NoError(t, os.WriteFile(store.RunPath(runID), []byte("{not json"), 0o644))
	_, err = store.Get(runID)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "parse run.json"))
}

func TestRunPath_Layout(t *testing.T) {
	store := NewStore("/state")
	assert.Equal(t, filepath.Join("/state", "runs", "r1", "run.json"), store.RunPath("r1"))
}
