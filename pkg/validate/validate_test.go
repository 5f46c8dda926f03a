package validate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeReader maps file base names to record counts; missing entries read
// as errors.
type fakeReader struct {
	counts map[string]int64
}

func (r *fakeReader) Entries(_ context.Context, path, _ string) (int64, error) {
	n, ok := r.counts[filepath.Base(path)]
	if !ok {
		return 0, fmt.Errorf("unreadable: %s", path)
	}
	return n, nil
}

func writeOutputs(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
}

func newTestValidator(t *testing.T, cfg Config) *Validator {
	t.Helper()
	v, err := New(cfg)
	require.NoError(t, err)
	return v
}

func TestNew_Validation(t *testing.T) {
	reader := &fakeReader{}

	_, err := New(Config{ExpectedJobs: 1, Reader: reader})
	assert.Error(t, err)

	_, err = New(Config{OutputDir: "/out", Reader: reader})
	assert.Error(t, err)

	_, err = New(Config{OutputDir: "/out", ExpectedJobs: 1})
	assert.Error(t, err)

	v := newTestValidator(t, Config{OutputDir: "/out", ExpectedJobs: 1, Reader: reader})
	assert.Equal(t, DefaultTolerance, v.cfg.Tolerance)
}

func TestValidate_OK(t *testing.T) {
	dir := t.TempDir()
	writeOutputs(t, dir, "mc_0_pax.root", "mc_1_pax.root", "mc_2_pax.root", "mc_0_Sort.root")

	// 960 of 1000 expected records is inside the 5% tolerance.
	v := newTestValidator(t, Config{
		OutputDir:       dir,
		ExpectedJobs:    3,
		ExpectedRecords: 1000,
		Reader: &fakeReader{counts: map[string]int64{
			"mc_0_pax.root": 320, "mc_1_pax.root": 320, "mc_2_pax.root": 320,
		}},
	})

	verdict, err := v.Validate(context.Background(), Group{Name: "PAX ROOT", Suffix: "pax.root", Table: "tree"})
	require.NoError(t, err)
	assert.Equal(t, StatusOK, verdict.Status)
	assert.Equal(t, int64(960), verdict.Records)
	assert.Equal(t, []string{"mc_0_pax.root", "mc_1_pax.root", "mc_2_pax.root"}, verdict.Files)
	assert.True(t, verdict.MergeAllowed())
}

func TestValidate_RecordDriftIsSoft(t *testing.T) {
	dir := t.TempDir()
	writeOutputs(t, dir, "mc_0_pax.root", "mc_1_pax.root")

	// 900 of 1000 is past the 5% tolerance: flagged, but merge proceeds.
	v := newTestValidator(t, Config{
		OutputDir:       dir,
		ExpectedJobs:    2,
		ExpectedRecords: 1000,
		Reader: &fakeReader{counts: map[string]int64{
			"mc_0_pax.root": 450, "mc_1_pax.root": 450,
		}},
	})

	verdict, err := v.Validate(context.Background(), Group{Name: "PAX ROOT", Suffix: "pax.root"})
	require.NoError(t, err)
	assert.Equal(t, StatusRecordOutOfTolerance, verdict.Status)
	assert.True(t, verdict.MergeAllowed())
}

func TestValidate_FileCountMismatchIsHard(t *testing.T) {
	dir := t.TempDir()
	writeOutputs(t, dir, "mc_0_pax.root", "mc_1_pax.root", "mc_2_pax.root")

	v := newTestValidator(t, Config{
		OutputDir:    dir,
		ExpectedJobs: 4,
		Reader:       &fakeReader{}, // must not be consulted
	})

	verdict, err := v.Validate(context.Background(), Group{Name: "PAX ROOT", Suffix: "pax.root"})
	require.NoError(t, err)
	assert.Equal(t, StatusFileCountMismatch, verdict.Status)
	assert.False(t, verdict.MergeAllowed())
	assert.Equal(t, int64(0), verdict.Records)
}

func TestValidate_UnreadableCountsWarn(t *testing.T) {
	dir := t.TempDir()
	writeOutputs(t, dir, "mc_0_pax.root", "mc_1_pax.root")

	v := newTestValidator(t, Config{
		OutputDir:       dir,
		ExpectedJobs:    2,
		ExpectedRecords: 1000,
		Reader: &fakeReader{counts: map[string]int64{
			"mc_0_pax.root": 500, // mc_1 unreadable
		}},
	})

	verdict, err := v.Validate(context.Background(), Group{Name: "PAX ROOT", Suffix: "pax.root"})
	require.NoError(t, err)
	assert.Equal(t, StatusWarning, verdict.Status)
	assert.True(t, verdict.MergeAllowed())
}

func TestValidate_LineFormats(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mc_0_hits.jsonl"),
		[]byte("{\"e\":1}\n{\"e\":2}\n\n{\"e\":3}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mc_0_peaks.csv"),
		[]byte("id,area\n1,2.5\n2,3.0\n"), 0o644))

	// The table reader must never be consulted for line-oriented groups.
	v := newTestValidator(t, Config{
		OutputDir:    dir,
		ExpectedJobs: 1,
		Reader:       &fakeReader{},
	})

	verdict, err := v.Validate(context.Background(), Group{Name: "Hits", Suffix: "hits.jsonl", Format: FormatLines})
	require.NoError(t, err)
	assert.Equal(t, StatusOK, verdict.Status)
	assert.Equal(t, int64(3), verdict.Records)

	verdict, err = v.Validate(context.Background(), Group{Name: "Peaks", Suffix: "peaks.csv", Format: FormatCSV})
	require.NoError(t, err)
	assert.Equal(t, StatusOK, verdict.Status)
	assert.Equal(t, int64(2), verdict.Records)
}

func TestValidate_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	writeOutputs(t, dir, "mc_0_pax.root")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	v := newTestValidator(t, Config{
		OutputDir:    dir,
		ExpectedJobs: 1,
		Reader:       &fakeReader{},
	})

	_, err := v.Validate(ctx, Group{Name: "PAX ROOT", Suffix: "pax.root"})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestDiscover_SkipsDirsAndSorts(t *testing.T) {
	dir := t.TempDir()
	writeOutputs(t, dir, "mc_2_pax.root", "mc_0_pax.root", "mc_1_pax.root", "notes.txt")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub_pax.root"), 0o755))

	v := newTestValidator(t, Config{OutputDir: dir, ExpectedJobs: 1, Reader: &fakeReader{}})

	files, err := v.Discover(Group{Suffix: "pax.root"})
	require.NoError(t, err)
	assert.Equal(t, []string{"mc_0_pax.root", "mc_1_pax.root", "mc_2_pax.root"}, files)
}
