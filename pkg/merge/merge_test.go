package merge

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeMergeTool(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hadd")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

// catTool concatenates its inputs into the output file, hadd-style.
const catTool = "#!/bin/sh\nout=\"$1\"; shift\ncat \"$@\" > \"$out\"\n"

func newTestMerger(t *testing.T, cfg Config) *Merger {
	t.Helper()
	m, err := New(cfg)
	require.NoError(t, err)
	return m
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{OutputDir: "/out", ResultsDir: "/res"})
	assert.Error(t, err)

	_, err = New(Config{Binary: "hadd", ResultsDir: "/res"})
	assert.Error(t, err)

	_, err = New(Config{Binary: "hadd", OutputDir: "/out"})
	assert.Error(t, err)

	m := newTestMerger(t, Config{Binary: "hadd", OutputDir: "/out", ResultsDir: "/res"})
	assert.Equal(t, defaultJobSegment, m.cfg.JobSegment)
}

func TestCombinedName(t *testing.T) {
	m := newTestMerger(t, Config{Binary: "hadd", OutputDir: "/out", ResultsDir: "/res"})

	got, err := m.CombinedName("Xenon1T_TPC_NEST_0_pax.root")
	require.NoError(t, err)
	assert.Equal(t, "Xenon1T_TPC_NEST_pax.root", got)

	got, err = m.CombinedName("Xenon1T_TPC_NEST_12_Sort.root")
	require.NoError(t, err)
	assert.Equal(t, "Xenon1T_TPC_NEST_Sort.root", got)

	_, err = m.CombinedName("short_name.root")
	assert.Error(t, err)
}

func TestMerge(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell stub")
	}
	outputDir := t.TempDir()
	resultsDir := filepath.Join(t.TempDir(), "merged_results")

	files := []string{
		"Xenon1T_TPC_NEST_0_pax.root",
		"Xenon1T_TPC_NEST_1_pax.root",
	}
	require.NoError(t, os.WriteFile(filepath.Join(outputDir, files[0]), []byte("aa"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(outputDir, files[1]), []byte("bb"), 0o644))

	m := newTestMerger(t, Config{
		Binary:     writeMergeTool(t, catTool),
		OutputDir:  outputDir,
		ResultsDir: resultsDir,
	})

	res := m.Merge(context.Background(), "PAX ROOT", files)
	require.NoError(t, res.Err)
	assert.Equal(t, filepath.Join(resultsDir, "Xenon1T_TPC_NEST_pax.root"), res.Combined)

	// The combined file was relocated out of the output dir.
	b, err := os.ReadFile(res.Combined)
	require.NoError(t, err)
	assert.Equal(t, "aabb", string(b))
	_, err = os.Stat(filepath.Join(outputDir, "Xenon1T_TPC_NEST_pax.root"))
	assert.True(t, os.IsNotExist(err))
}

func TestMerge_ToolFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell stub")
	}
	m := newTestMerger(t, Config{
		Binary:     writeMergeTool(t, "#!/bin/sh\necho 'corrupt input' >&2\nexit 1\n"),
		OutputDir:  t.TempDir(),
		ResultsDir: t.TempDir(),
	})

	res := m.Merge(context.Background(), "PAX ROOT", []string{"Xenon1T_TPC_NEST_0_pax.root"})
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "corrupt input")
}

func TestMerge_MissingCombinedOutput(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell stub")
	}
	// The tool exits 0 without producing the output file.
	m := newTestMerger(t, Config{
		Binary:     writeMergeTool(t, "#!/bin/sh\nexit 0\n"),
		OutputDir:  t.TempDir(),
		ResultsDir: t.TempDir(),
	})

	res := m.Merge(context.Background(), "PAX ROOT", []string{"Xenon1T_TPC_NEST_0_pax.root"})
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "combined file not produced")
}

func TestMerge_NoFiles(t *testing.T) {
	m := newTestMerger(t, Config{Binary: "hadd", OutputDir: "/out", ResultsDir: "/res"})
	res := m.Merge(context.Background(), "PAX ROOT", nil)
	assert.Error(t, res.Err)
}
