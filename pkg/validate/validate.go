// Package validate cross-checks per-job output files before merging.
//
// Validation is two-tier by design. A file-count mismatch means some jobs
// never produced output (a broken pipeline) and blocks the group's
// merge. Aggregate record drift within a group is expected stochastic
// loss from the processing itself, so it is reported as a warning and
// does not block the merge.
package validate

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/simkit/mcbatch/pkg/tablecount"
)

// Group is one named category of expected per-job output files.
type Group struct {
	// Name labels the group in verdicts and logs (e.g. "PAX ROOT").
	Name string

	// Suffix selects the group's files from the output directory.
	Suffix string

	// Table is the named table whose entries are counted; ignored for the
	// line-oriented formats.
	Table string

	// Format selects how records are counted. Zero value is FormatTable.
	Format Format
}

// Format selects the record-count reader for a group.
type Format string

const (
	// FormatTable counts a named table via the configured Reader.
	FormatTable Format = "table"

	// FormatLines counts non-empty lines (JSONL and similar).
	FormatLines Format = "lines"

	// FormatCSV counts non-empty lines minus the header line.
	FormatCSV Format = "csv"
)

// Status classifies a verdict.
type Status string

const (
	// StatusOK: file count and record total both check out.
	StatusOK Status = "ok"

	// StatusWarning: file count matches but some record counts could not
	// be read, so the drift check is incomplete. Merge proceeds.
	StatusWarning Status = "warning"

	// StatusRecordOutOfTolerance: the aggregate record count drifted
	// beyond tolerance. Soft failure; merge proceeds.
	StatusRecordOutOfTolerance Status = "record-out-of-tolerance"

	// StatusFileCountMismatch: discovered file count differs from the
	// expected job count. Hard failure; the group must not be merged.
	StatusFileCountMismatch Status = "file-count-mismatch"
)

// Verdict is the validation outcome for one group.
type Verdict struct {
	Group   Group
	Files   []string
	Records int64
	Status  Status
	Detail  string
}

// MergeAllowed reports whether the group may be merged.
func (v Verdict) MergeAllowed() bool {
	return v.Status != StatusFileCountMismatch
}

// DefaultTolerance is the default relative record-count tolerance.
const DefaultTolerance = 0.05

// Config configures a Validator.
type Config struct {
	// OutputDir is scanned for per-job output files.
	OutputDir string

	// ExpectedJobs is the required file count per group.
	ExpectedJobs int

	// ExpectedRecords is the expected aggregate record count per group.
	ExpectedRecords int64

	// Tolerance is the permitted relative drift. Default: 0.05.
	Tolerance float64

	// Reader counts records for FormatTable groups; the line-oriented
	// formats are counted in-process.
	Reader tablecount.Reader
}

// Validator checks output groups against the expected job and record
// counts.
type Validator struct {
	cfg    Config
	logger *zap.Logger
	lines  tablecount.Reader
	csv    tablecount.Reader
}

// New creates a Validator. Zero tolerance gets the default.
func New(cfg Config) (*Validator, error) {
	if cfg.OutputDir == "" {
		return nil, fmt.Errorf("output dir is required")
	}
	if cfg.ExpectedJobs <= 0 {
		return nil, fmt.Errorf("expected job count must be positive, got %d", cfg.ExpectedJobs)
	}
	if cfg.Reader == nil {
		return nil, fmt.Errorf("record count reader is required")
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = DefaultTolerance
	}
	return &Validator{
		cfg:    cfg,
		logger: zap.NewNop(),
		lines:  &tablecount.LineReader{},
		csv:    &tablecount.LineReader{SkipHeader: true},
	}, nil
}

// WithLogger sets the logger. Returns the validator for chaining.
func (v *Validator) WithLogger(l *zap.Logger) *Validator {
	if l != nil {
		v.logger = l
	}
	return v
}

// Discover lists the group's files in the output directory, sorted.
func (v *Validator) Discover(g Group) ([]string, error) {
	entries, err := os.ReadDir(v.cfg.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("list output dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(e.Name(), g.Suffix) {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

// Validate discovers the group's files and checks both tiers.
//
// The file-count check runs first and short-circuits: with missing files
// the record total is meaningless. Unreadable counts degrade to a
// warning rather than a failure: the file exists, so the pipeline
// produced output, and only the drift check is compromised.
func (v *Validator) Validate(ctx context.Context, g Group) (Verdict, error) {
	verdict := Verdict{Group: g, Status: StatusOK}

	files, err := v.Discover(g)
	if err != nil {
		return verdict, err
	}
	verdict.Files = files

	if len(files) != v.cfg.ExpectedJobs {
		verdict.Status = StatusFileCountMismatch
		verdict.Detail = fmt.Sprintf("%d files found, %d jobs expected", len(files), v.cfg.ExpectedJobs)
		v.logger.Error("Output file count does not match job count",
			zap.String("group", g.Name),
			zap.Int("found", len(files)),
			zap.Int("expected", v.cfg.ExpectedJobs))
		return verdict, nil
	}

	reader := v.readerFor(g)
	var unreadable int
	for _, name := range files {
		n, err := reader.Entries(ctx, v.path(name), g.Table)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return verdict, ctxErr
			}
			unreadable++
			v.logger.Warn("Could not read record count",
				zap.String("group", g.Name),
				zap.String("file", name),
				zap.Error(err))
			continue
		}
		verdict.Records += n
	}

	if unreadable > 0 {
		verdict.Status = StatusWarning
		verdict.Detail = fmt.Sprintf("%d of %d files had unreadable record counts", unreadable, len(files))
		return verdict, nil
	}

	expected := v.cfg.ExpectedRecords
	if expected > 0 {
		drift := verdict.Records - expected
		if drift < 0 {
			drift = -drift
		}
		if float64(drift) > v.cfg.Tolerance*float64(expected) {
			verdict.Status = StatusRecordOutOfTolerance
			verdict.Detail = fmt.Sprintf("record total %d differs from expected %d by more than %.0f%%",
				verdict.Records, expected, v.cfg.Tolerance*100)
			v.logger.Warn("Record total out of tolerance",
				zap.String("group", g.Name),
				zap.Int64("got", verdict.Records),
				zap.Int64("expected", expected),
				zap.Float64("tolerance", v.cfg.Tolerance))
		}
	}

	return verdict, nil
}

func (v *Validator) readerFor(g Group) tablecount.Reader {
	switch g.Format {
	case FormatLines:
		return v.lines
	case FormatCSV:
		return v.csv
	default:
		return v.cfg.Reader
	}
}

func (v *Validator) path(name string) string {
	return v.cfg.OutputDir + string(os.PathSeparator) + name
}
