// Package tablecount counts records in per-job output files.
//
// Tree-structured physics outputs are counted by an external tool (the
// file formats are deliberately not parsed in-process); flat CSV/JSONL
// outputs are counted by line. Both sit behind the Reader interface so
// the validator is testable without either format.
package tablecount

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// Reader reports the record count of a named table inside a file.
// Implementations must not mutate the file.
type Reader interface {
	// Entries returns the number of records in the table. For formats
	// without named tables, table is ignored.
	Entries(ctx context.Context, path, table string) (int64, error)
}

// CommandReader counts entries via an external tool invoked as:
//
//	<binary> <path> <table>
//
// The tool prints a single decimal count on stdout.
type CommandReader struct {
	binary string
}

// NewCommandReader creates a CommandReader for the given tool binary.
func NewCommandReader(binary string) (*CommandReader, error) {
	if strings.TrimSpace(binary) == "" {
		return nil, fmt.Errorf("count tool binary is required")
	}
	return &CommandReader{binary: binary}, nil
}

func (r *CommandReader) Entries(ctx context.Context, path, table string) (int64, error) {
	cmd := exec.CommandContext(ctx, r.binary, path, table)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w: %s", r.binary, path, err, strings.TrimSpace(stderr.String()))
	}
	n, err := strconv.ParseInt(strings.TrimSpace(string(out)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s %s: unparseable count %q", r.binary, path, strings.TrimSpace(string(out)))
	}
	return n, nil
}

// LineReader counts records in flat line-oriented files.
type LineReader struct {
	// SkipHeader drops the first non-empty line (CSV header).
	SkipHeader bool
}

func (r *LineReader) Entries(ctx context.Context, path, _ string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	var count int64
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	first := true
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if strings.TrimSpace(scanner.Text()) == "" {
			continue
		}
		if first && r.SkipHeader {
			first = false
			continue
		}
		first = false
		count++
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}
	return count, nil
}
