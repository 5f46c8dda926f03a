// Package merge combines a validated group's per-job output files into
// one result file via an external merge utility, then relocates the
// result into the results directory.
//
// A group's merge failure is reported in its Result and never aborts the
// merging of other groups.
package merge

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Config configures a Merger.
type Config struct {
	// Binary is the merge utility (hadd-style: binary OUTPUT INPUT...).
	Binary string

	// OutputDir is where the per-job files live and where the combined
	// file is produced before relocation.
	OutputDir string

	// ResultsDir receives combined files; created if absent.
	ResultsDir string

	// JobSegment is the index of the underscore-separated filename
	// segment that disambiguates jobs; it is stripped to derive the
	// combined filename. Default: 3.
	JobSegment int
}

// Result is the outcome of merging one group.
type Result struct {
	Group    string
	Combined string
	Err      error
}

// Merger combines per-job files group by group.
type Merger struct {
	cfg    Config
	logger *zap.Logger
}

const defaultJobSegment = 3

// New creates a Merger.
func New(cfg Config) (*Merger, error) {
	if strings.TrimSpace(cfg.Binary) == "" {
		return nil, fmt.Errorf("merge binary is required")
	}
	if cfg.OutputDir == "" {
		return nil, fmt.Errorf("output dir is required")
	}
	if cfg.ResultsDir == "" {
		return nil, fmt.Errorf("results dir is required")
	}
	if cfg.JobSegment <= 0 {
		cfg.JobSegment = defaultJobSegment
	}
	return &Merger{cfg: cfg, logger: zap.NewNop()}, nil
}

// WithLogger sets the logger. Returns the merger for chaining.
func (m *Merger) WithLogger(l *zap.Logger) *Merger {
	if l != nil {
		m.logger = l
	}
	return m
}

// CombinedName derives the combined filename from the first per-job file
// by removing the job-disambiguating segment.
func (m *Merger) CombinedName(first string) (string, error) {
	fields := strings.Split(first, "_")
	if len(fields) <= m.cfg.JobSegment {
		return "", fmt.Errorf("filename %q has no job segment at index %d", first, m.cfg.JobSegment)
	}
	fields = append(fields[:m.cfg.JobSegment], fields[m.cfg.JobSegment+1:]...)
	return strings.Join(fields, "_"), nil
}

// Merge combines one group's files (names relative to OutputDir) and
// moves the result into ResultsDir.
func (m *Merger) Merge(ctx context.Context, group string, files []string) Result {
	res := Result{Group: group}
	if len(files) == 0 {
		res.Err = fmt.Errorf("no files to merge")
		return res
	}

	combined, err := m.CombinedName(files[0])
	if err != nil {
		res.Err = err
		return res
	}
	combinedPath := filepath.Join(m.cfg.OutputDir, combined)

	args := make([]string, 0, len(files)+1)
	args = append(args, combinedPath)
	for _, f := range files {
		args = append(args, filepath.Join(m.cfg.OutputDir, f))
	}

	cmd := exec.CommandContext(ctx, m.cfg.Binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		res.Err = fmt.Errorf("merge command: %w: %s", err, strings.TrimSpace(stderr.String()))
		return res
	}

	// The utility is external; trust the file, not the exit code.
	if _, err := os.Stat(combinedPath); err != nil {
		res.Err = fmt.Errorf("combined file not produced: %w", err)
		return res
	}

	if err := os.MkdirAll(m.cfg.ResultsDir, 0o755); err != nil {
		res.Err = fmt.Errorf("create results dir: %w", err)
		return res
	}

	finalPath := filepath.Join(m.cfg.ResultsDir, combined)
	if err := os.Rename(combinedPath, finalPath); err != nil {
		res.Err = fmt.Errorf("move combined file: %w", err)
		return res
	}

	m.logger.Info("Merged group",
		zap.String("group", group),
		zap.Int("files", len(files)),
		zap.String("combined", finalPath))
	res.Combined = finalPath
	return res
}
