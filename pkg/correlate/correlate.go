// Package correlate pairs truth-side and processed-side input files by the
// identifier embedded in their filenames.
//
// The two collections are produced independently, so neither side is
// authoritative: an identifier only yields a pair when a file exists on
// both sides. Truth-side files with no processed counterpart are skipped,
// not failed, since partial processing runs are routine.
package correlate

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"
)

// Pair is one matched identifier with the resolved input path on each side.
type Pair struct {
	// ID is the identifier token shared by both filenames.
	ID string

	// TruthPath is the resolved truth-side input file.
	TruthPath string

	// ProcessedPath is the resolved processed-side input file.
	ProcessedPath string
}

// Config configures a correlation pass.
type Config struct {
	// TruthRoot is the directory holding truth-side files.
	TruthRoot string

	// TruthPattern matches truth filenames; the {id} capture must resolve
	// to a literal prefix and suffix (no glob metacharacters).
	TruthPattern *Pattern

	// ProcessedRoot is the directory holding processed-side files.
	ProcessedRoot string

	// ProcessedPattern matches processed filenames for a given identifier.
	// Its suffix may contain glob metacharacters (e.g. "*.root").
	ProcessedPattern *Pattern
}

// Correlator computes the matched identifier set for one batch run.
//
// A Correlator is safe for single use only.
type Correlator struct {
	cfg    Config
	logger *zap.Logger
}

// New creates a Correlator. Both patterns and roots are required.
func New(cfg Config) (*Correlator, error) {
	if cfg.TruthRoot == "" || cfg.ProcessedRoot == "" {
		return nil, fmt.Errorf("truth and processed roots are required")
	}
	if cfg.TruthPattern == nil || cfg.ProcessedPattern == nil {
		return nil, fmt.Errorf("truth and processed patterns are required")
	}
	return &Correlator{cfg: cfg, logger: zap.NewNop()}, nil
}

// WithLogger sets the logger used for skip and tie-break warnings.
// Returns the correlator for method chaining.
func (c *Correlator) WithLogger(l *zap.Logger) *Correlator {
	if l != nil {
		c.logger = l
	}
	return c
}

// Run lists both collections and returns the matched pairs.
//
// Pairs are returned in lexicographic truth-filename order. Filesystem
// listing order is not stable across platforms, so the truth listing is
// sorted before identifiers are extracted; this also makes dispatch order
// reproducible between runs.
//
// Identifiers with no processed-side match are dropped with a warning.
// Identifiers with multiple processed-side matches tie-break to the
// lexicographically smallest candidate, with a warning naming the rest.
func (c *Correlator) Run() ([]Pair, error) {
	if _, err := os.Stat(c.cfg.TruthRoot); err != nil {
		return nil, fmt.Errorf("truth root: %w", err)
	}

	truthGlob := filepath.Join(c.cfg.TruthRoot, c.cfg.TruthPattern.Glob())
	truthFiles, err := doublestar.FilepathGlob(truthGlob)
	if err != nil {
		return nil, fmt.Errorf("list truth files: %w", err)
	}
	sort.Strings(truthFiles)

	pairs := make([]Pair, 0, len(truthFiles))
	for _, truthPath := range truthFiles {
		id, ok := c.cfg.TruthPattern.Extract(filepath.Base(truthPath))
		if !ok {
			continue
		}

		processedPath, ok, err := c.resolveProcessed(id)
		if err != nil {
			return nil, err
		}
		if !ok {
			c.logger.Warn("No processed file for identifier, skipping",
				zap.String("id", id),
				zap.String("truth", truthPath))
			continue
		}

		pairs = append(pairs, Pair{
			ID:            id,
			TruthPath:     truthPath,
			ProcessedPath: processedPath,
		})
	}

	return pairs, nil
}

// resolveProcessed globs the processed root for one identifier.
func (c *Correlator) resolveProcessed(id string) (string, bool, error) {
	glob := filepath.Join(c.cfg.ProcessedRoot, c.cfg.ProcessedPattern.Resolve(id))
	candidates, err := doublestar.FilepathGlob(glob)
	if err != nil {
		return "", false, fmt.Errorf("list processed files for %s: %w", id, err)
	}
	if len(candidates) == 0 {
		return "", false, nil
	}
	if len(candidates) > 1 {
		// Deterministic tie-break: lexicographically smallest path wins.
		sort.Strings(candidates)
		c.logger.Warn("Multiple processed files for identifier, using first",
			zap.String("id", id),
			zap.String("chosen", candidates[0]),
			zap.Strings("ignored", candidates[1:]))
	}
	return candidates[0], true, nil
}
