// Package job builds the abstract descriptor for one merge job: the
// commands to run, the artifact paths, and the partition parameters.
//
// Building a descriptor is pure construction: nothing touches the
// filesystem until the workspace manager writes the rendered script.
package job

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/simkit/mcbatch/pkg/correlate"
)

// Command is one argv to run inside the job script.
type Command []string

// MinitreeMode selects which second-stage executable the job runs.
type MinitreeMode string

const (
	// MinitreeBasics is the default event-level merge.
	MinitreeBasics MinitreeMode = "basics"

	// MinitreePeaks merges at peak level instead of event level.
	MinitreePeaks MinitreeMode = "peaks"
)

// Stages names the executables available for the two pipeline stages.
type Stages struct {
	// Interpreter runs the stage executables (default "python").
	Interpreter string

	// Sort transforms the truth file into the intermediate artifact.
	// SortArrays is the variant used in array mode.
	Sort       string
	SortArrays string

	// Merge consumes the intermediate artifact and the processed file.
	// MergePeaks is the variant selected by MinitreePeaks.
	Merge      string
	MergePeaks string
}

// Descriptor is the immutable job description handed to the throttle
// controller. Once dispatched, ownership of its on-disk artifacts passes
// to the cluster.
type Descriptor struct {
	ID       string
	JobIndex int
	SubmitID int

	Commands []Command

	TruthPath        string
	ProcessedPath    string
	IntermediatePath string
	OutputPath       string

	StdoutPath string
	StderrPath string

	SubmitDir string
	EnvSetup  string

	Partition Partition
}

// BuildInput carries everything Build needs. JobIndex and SubmitID are
// threaded explicitly; descriptors share no package state.
type BuildInput struct {
	Pair     correlate.Pair
	JobIndex int
	SubmitID int

	// SubmitDir is the per-job submission directory (already resolved).
	SubmitDir string

	// TmpRoot holds the intermediate artifact; OutputRoot the final one.
	TmpRoot    string
	OutputRoot string

	// IntermediatePattern and OutputPattern name the per-job artifacts,
	// e.g. "FakeWaveform_{id}_tmp.pkl" and "FakeWaveform_{id}_merged.pkl".
	IntermediatePattern *correlate.Pattern
	OutputPattern       *correlate.Pattern

	// ConfigPath is the processing config handed to the merge stage.
	ConfigPath string

	Variant         Variant
	ArrayMode       bool
	SaveAfterpulses bool
	Minitree        MinitreeMode

	Stages   Stages
	EnvSetup string
}

// Build constructs a Descriptor from one correlation pair.
//
// The command list is the sort stage (array variant when ArrayMode is
// set) followed by the merge stage (peak variant when Minitree is
// MinitreePeaks).
func Build(in BuildInput) (*Descriptor, error) {
	if in.Pair.ID == "" {
		return nil, fmt.Errorf("pair identifier is empty")
	}
	if in.SubmitDir == "" {
		return nil, fmt.Errorf("submit dir is required")
	}
	if in.IntermediatePattern == nil || in.OutputPattern == nil {
		return nil, fmt.Errorf("intermediate and output patterns are required")
	}

	part, err := LookupPartition(in.Variant)
	if err != nil {
		return nil, err
	}

	interp := in.Stages.Interpreter
	if interp == "" {
		interp = "python"
	}

	intermediate := filepath.Join(in.TmpRoot, in.IntermediatePattern.Resolve(in.Pair.ID))
	output := filepath.Join(in.OutputRoot, in.OutputPattern.Resolve(in.Pair.ID))

	var sortCmd Command
	if in.ArrayMode {
		saveAP := "0"
		if in.SaveAfterpulses {
			saveAP = "1"
		}
		sortCmd = Command{interp, in.Stages.SortArrays, in.Pair.TruthPath, intermediate, "0", saveAP}
	} else {
		sortCmd = Command{interp, in.Stages.Sort, in.Pair.TruthPath, intermediate}
	}

	mergeExe := in.Stages.Merge
	if in.Minitree == MinitreePeaks {
		mergeExe = in.Stages.MergePeaks
	}
	mergeCmd := Command{interp, mergeExe, in.ConfigPath, intermediate, in.Pair.ProcessedPath, output}

	tag := strconv.Itoa(in.SubmitID) + "_" + strconv.Itoa(in.JobIndex)

	return &Descriptor{
		ID:               in.Pair.ID,
		JobIndex:         in.JobIndex,
		SubmitID:         in.SubmitID,
		Commands:         []Command{sortCmd, mergeCmd},
		TruthPath:        in.Pair.TruthPath,
		ProcessedPath:    in.Pair.ProcessedPath,
		IntermediatePath: intermediate,
		OutputPath:       output,
		StdoutPath:       filepath.Join(in.SubmitDir, "myout_"+tag+".txt"),
		StderrPath:       filepath.Join(in.SubmitDir, "myerr_"+tag+".txt"),
		SubmitDir:        in.SubmitDir,
		EnvSetup:         in.EnvSetup,
		Partition:        part,
	}, nil
}
