package correlate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
}

func newTestCorrelator(t *testing.T, truthRoot, processedRoot string) *Correlator {
	t.Helper()
	truthPat, err := ParsePattern("FakeWaveform_{id}_truth.csv")
	require.NoError(t, err)
	processedPat, err := ParsePattern("FakeWaveform_{id}*.root")
	require.NoError(t, err)

	c, err := New(Config{
		TruthRoot:        truthRoot,
		TruthPattern:     truthPat,
		ProcessedRoot:    processedRoot,
		ProcessedPattern: processedPat,
	})
	require.NoError(t, err)
	return c
}

func TestNew_Validation(t *testing.T) {
	truthPat, err := ParsePattern("a_{id}.csv")
	require.NoError(t, err)

	_, err = New(Config{})
	assert.Error(t, err)

	_, err = New(Config{TruthRoot: "/a", ProcessedRoot: "/b"})
	assert.Error(t, err)

	_, err = New(Config{TruthRoot: "/a", ProcessedRoot: "/b", TruthPattern: truthPat})
	assert.Error(t, err)
}

func TestCorrelator_Run(t *testing.T) {
	truthRoot := t.TempDir()
	processedRoot := t.TempDir()

	writeFiles(t, truthRoot,
		"FakeWaveform_a1_truth.csv",
		"FakeWaveform_b2_truth.csv",
		"FakeWaveform_c3_truth.csv",
		"unrelated.txt",
	)
	writeFiles(t, processedRoot,
		"FakeWaveform_a1_000.root",
		"FakeWaveform_c3_000.root",
		"FakeWaveform_zz_000.root", // processed-only, never matched
	)

	pairs, err := newTestCorrelator(t, truthRoot, processedRoot).Run()
	require.NoError(t, err)

	// b2 has no processed counterpart and is dropped; the result is the
	// intersection, never larger than either side.
	require.Len(t, pairs, 2)
	assert.LessOrEqual(t, len(pairs), 3)

	byID := map[string]Pair{}
	for _, p := range pairs {
		byID[p.ID] = p
	}
	require.Contains(t, byID, "a1")
	require.Contains(t, byID, "c3")
	assert.Equal(t, filepath.Join(truthRoot, "FakeWaveform_a1_truth.csv"), byID["a1"].TruthPath)
	assert.Equal(t, filepath.Join(processedRoot, "FakeWaveform_a1_000.root"), byID["a1"].ProcessedPath)
}

func TestCorrelator_Run_AmbiguousMatchTieBreak(t *testing.T) {
	truthRoot := t.TempDir()
	processedRoot := t.TempDir()

	writeFiles(t, truthRoot, "FakeWaveform_a1_truth.csv")
	writeFiles(t, processedRoot,
		"FakeWaveform_a1_002.root",
		"FakeWaveform_a1_001.root",
	)

	pairs, err := newTestCorrelator(t, truthRoot, processedRoot).Run()
	require.NoError(t, err)
	require.Len(t, pairs, 1)

	// Lexicographically smallest candidate wins, regardless of listing order.
	assert.Equal(t, filepath.Join(processedRoot, "FakeWaveform_a1_001.root"), pairs[0].ProcessedPath)
}

func TestCorrelator_Run_NoMatches(t *testing.T) {
	truthRoot := t.TempDir()
	processedRoot := t.TempDir()

	writeFiles(t, truthRoot, "FakeWaveform_a1_truth.csv")

	pairs, err := newTestCorrelator(t, truthRoot, processedRoot).Run()
	require.NoError(t, err)
	assert.Empty(t, pairs)
}

func TestCorrelator_Run_MissingTruthRoot(t *testing.T) {
	processedRoot := t.TempDir()

	c := newTestCorrelator(t, filepath.Join(processedRoot, "does-not-exist"), processedRoot)
	_, err := c.Run()
	assert.Error(t, err)
}
