package manifest

import (
	"fmt"
	"strings"

	"github.com/simkit/mcbatch/pkg/correlate"
	"github.com/simkit/mcbatch/pkg/job"
)

// ValidationError represents a single validation issue.
type ValidationError struct {
	// Path points at the problematic field (e.g. "inputs.truth_pattern").
	Path string

	// Message describes the validation failure.
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	msgs := make([]string, len(e))
	for i, ve := range e {
		msgs[i] = ve.Error()
	}
	return fmt.Sprintf("%d validation errors: %s", len(e), strings.Join(msgs, "; "))
}

// Validate checks the manifest for structural problems. Call after
// ApplyDefaults.
func (m *Manifest) Validate() error {
	var errs ValidationErrors

	add := func(path, msg string) {
		errs = append(errs, ValidationError{Path: path, Message: msg})
	}

	if m.Version != "1.0" {
		add("version", fmt.Sprintf("unsupported version %q, expected \"1.0\"", m.Version))
	}

	if m.Inputs.TruthRoot == "" {
		add("inputs.truth_root", "required")
	}
	if m.Inputs.ProcessedRoot == "" {
		add("inputs.processed_root", "required")
	}
	if m.Inputs.Config == "" {
		add("inputs.config", "required")
	}
	patterns := []struct {
		path string
		raw  string
	}{
		{"inputs.truth_pattern", m.Inputs.TruthPattern},
		{"inputs.processed_pattern", m.Inputs.ProcessedPattern},
		{"artifacts.intermediate_pattern", m.Artifacts.IntermediatePattern},
		{"artifacts.output_pattern", m.Artifacts.OutputPattern},
	}
	for _, p := range patterns {
		if _, err := correlate.ParsePattern(p.raw); err != nil {
			add(p.path, err.Error())
		}
	}

	if m.Run.OutputRoot == "" {
		add("run.output_root", "required")
	}
	if _, err := job.LookupPartition(job.Variant(m.Run.Partition)); err != nil {
		add("run.partition", err.Error())
	}
	switch job.MinitreeMode(m.Run.Minitree) {
	case job.MinitreeBasics, job.MinitreePeaks:
	default:
		add("run.minitree", fmt.Sprintf("unknown minitree mode %q", m.Run.Minitree))
	}
	if m.Run.SubmitID < 0 {
		add("run.submit_id", "must not be negative")
	}

	if m.Stages.Sort == "" {
		add("stages.sort", "required")
	}
	if m.Stages.Merge == "" {
		add("stages.merge", "required")
	}
	if m.Run.Arrays && m.Stages.SortArrays == "" {
		add("stages.sort_arrays", "required when run.arrays is set")
	}
	if job.MinitreeMode(m.Run.Minitree) == job.MinitreePeaks && m.Stages.MergePeaks == "" {
		add("stages.merge_peaks", "required when run.minitree is \"peaks\"")
	}

	if m.Postprocess.Tolerance < 0 || m.Postprocess.Tolerance >= 1 {
		add("postprocess.tolerance", "must be in (0, 1)")
	}
	for i, g := range m.Postprocess.Groups {
		if g.Name == "" {
			add(fmt.Sprintf("postprocess.groups[%d].name", i), "required")
		}
		if g.Suffix == "" {
			add(fmt.Sprintf("postprocess.groups[%d].suffix", i), "required")
		}
		switch g.Format {
		case "", "table", "lines", "csv":
		default:
			add(fmt.Sprintf("postprocess.groups[%d].format", i), fmt.Sprintf("unknown format %q", g.Format))
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Patterns resolves the four filename patterns. Validate must have
// passed; errors here indicate a programming error.
func (m *Manifest) Patterns() (truth, processed, intermediate, output *correlate.Pattern, err error) {
	if truth, err = correlate.ParsePattern(m.Inputs.TruthPattern); err != nil {
		return nil, nil, nil, nil, err
	}
	if processed, err = correlate.ParsePattern(m.Inputs.ProcessedPattern); err != nil {
		return nil, nil, nil, nil, err
	}
	if intermediate, err = correlate.ParsePattern(m.Artifacts.IntermediatePattern); err != nil {
		return nil, nil, nil, nil, err
	}
	if output, err = correlate.ParsePattern(m.Artifacts.OutputPattern); err != nil {
		return nil, nil, nil, nil, err
	}
	return truth, processed, intermediate, output, nil
}
