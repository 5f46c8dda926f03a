// Package manifest provides loading and validation of mcbatch batch
// manifests.
//
// A batch manifest is a YAML or JSON file that configures one merge
// batch: where the truth and processed collections live, how job
// filenames embed the identifier, which partition class to submit to,
// and how postprocessing validates and merges the outputs.
//
// Example manifest (YAML):
//
//	version: "1.0"
//	inputs:
//	  truth_root: /project/sim/truth
//	  truth_pattern: "FakeWaveform_XENON1T_{id}_truth.csv"
//	  processed_root: /project/sim/processed
//	  processed_pattern: "FakeWaveform_XENON1T_{id}*.root"
//	  config: pax_config.ini
//	run:
//	  output_root: /project/sim/merged
//	  partition: private
//	stages:
//	  sort: /project/sim/bin/TruthSorting.py
//	  merge: /project/sim/bin/MergeTruthAndProcessed.py
package manifest

// Manifest represents a validated batch manifest.
//
// Required fields are Version, Inputs, Run, and Stages. Artifacts and
// Postprocess are optional with defaults.
type Manifest struct {
	// Version is the manifest schema version. Must be "1.0".
	Version string `json:"version" yaml:"version"`

	// Inputs locates the two input collections.
	Inputs InputsConfig `json:"inputs" yaml:"inputs"`

	// Run configures submission for this batch.
	Run RunConfig `json:"run" yaml:"run"`

	// Stages names the per-job executables.
	Stages StagesConfig `json:"stages" yaml:"stages"`

	// Artifacts names the per-job artifact files (optional).
	Artifacts ArtifactsConfig `json:"artifacts,omitempty" yaml:"artifacts,omitempty"`

	// Postprocess configures validation and merging (optional).
	Postprocess PostprocessConfig `json:"postprocess,omitempty" yaml:"postprocess,omitempty"`
}

// InputsConfig locates the truth and processed collections.
type InputsConfig struct {
	// TruthRoot is the directory holding truth-side files.
	TruthRoot string `json:"truth_root" yaml:"truth_root"`

	// TruthPattern is the truth filename pattern with an {id} capture.
	// The prefix and suffix around {id} must be literal.
	TruthPattern string `json:"truth_pattern" yaml:"truth_pattern"`

	// ProcessedRoot is the directory holding processed-side files.
	ProcessedRoot string `json:"processed_root" yaml:"processed_root"`

	// ProcessedPattern matches processed filenames for an identifier.
	// Its suffix may contain glob metacharacters, e.g. "{id}*.root".
	ProcessedPattern string `json:"processed_pattern" yaml:"processed_pattern"`

	// Config is the processing configuration file handed to the merge
	// stage of every job.
	Config string `json:"config" yaml:"config"`
}

// RunConfig configures submission.
type RunConfig struct {
	// OutputRoot receives per-job merged outputs and hosts the run's
	// temporary workspace.
	OutputRoot string `json:"output_root" yaml:"output_root"`

	// SubmitRoot holds per-job submission directories. Relative paths
	// resolve against the working directory. Default: "Submit".
	SubmitRoot string `json:"submit_root,omitempty" yaml:"submit_root,omitempty"`

	// Partition selects the queue class: public, private, or
	// private-secondary. Default: "public".
	Partition string `json:"partition,omitempty" yaml:"partition,omitempty"`

	// SubmitID disambiguates concurrent batches sharing the same roots.
	SubmitID int `json:"submit_id,omitempty" yaml:"submit_id,omitempty"`

	// Arrays selects the array-output sort stage.
	Arrays bool `json:"arrays,omitempty" yaml:"arrays,omitempty"`

	// SaveAfterpulses is only meaningful with Arrays.
	SaveAfterpulses bool `json:"save_afterpulses,omitempty" yaml:"save_afterpulses,omitempty"`

	// Minitree selects the merge stage variant: "basics" or "peaks".
	// Default: "basics".
	Minitree string `json:"minitree,omitempty" yaml:"minitree,omitempty"`

	// EnvSetup is a shell file sourced at the top of every job script.
	EnvSetup string `json:"env_setup,omitempty" yaml:"env_setup,omitempty"`

	// User is the scheduler user for occupancy queries. Default: the
	// current user.
	User string `json:"user,omitempty" yaml:"user,omitempty"`
}

// StagesConfig names the per-job stage executables.
type StagesConfig struct {
	// Interpreter runs the stage executables. Default: "python".
	Interpreter string `json:"interpreter,omitempty" yaml:"interpreter,omitempty"`

	// Sort transforms the truth file into the intermediate artifact.
	Sort string `json:"sort" yaml:"sort"`

	// SortArrays is the array-mode sort variant. Required when
	// run.arrays is set.
	SortArrays string `json:"sort_arrays,omitempty" yaml:"sort_arrays,omitempty"`

	// Merge consumes the intermediate artifact and the processed file.
	Merge string `json:"merge" yaml:"merge"`

	// MergePeaks is the peak-level merge variant. Required when
	// run.minitree is "peaks".
	MergePeaks string `json:"merge_peaks,omitempty" yaml:"merge_peaks,omitempty"`
}

// ArtifactsConfig names per-job artifact files.
type ArtifactsConfig struct {
	// IntermediatePattern names the sort-stage output.
	// Default: "{id}_tmp.pkl".
	IntermediatePattern string `json:"intermediate_pattern,omitempty" yaml:"intermediate_pattern,omitempty"`

	// OutputPattern names the merge-stage output.
	// Default: "{id}_merged.pkl".
	OutputPattern string `json:"output_pattern,omitempty" yaml:"output_pattern,omitempty"`
}

// PostprocessConfig configures output validation and merging.
type PostprocessConfig struct {
	// ResultsDir receives combined files. Default: "merged_results".
	ResultsDir string `json:"results_dir,omitempty" yaml:"results_dir,omitempty"`

	// Tolerance is the relative record-count tolerance. Default: 0.05.
	Tolerance float64 `json:"tolerance,omitempty" yaml:"tolerance,omitempty"`

	// MergeBinary is the external merge utility. Default: "hadd".
	MergeBinary string `json:"merge_binary,omitempty" yaml:"merge_binary,omitempty"`

	// CountBinary is the external record-count tool for tree-structured
	// outputs.
	CountBinary string `json:"count_binary,omitempty" yaml:"count_binary,omitempty"`

	// Groups are extra output groups validated and merged in addition to
	// the flavor-derived ones.
	Groups []GroupConfig `json:"groups,omitempty" yaml:"groups,omitempty"`
}

// GroupConfig is one output group.
type GroupConfig struct {
	// Name labels the group in reports.
	Name string `json:"name" yaml:"name"`

	// Suffix selects the group's files from the output directory.
	Suffix string `json:"suffix" yaml:"suffix"`

	// Table is the named table whose records are counted. Ignored for
	// the line-oriented formats.
	Table string `json:"table,omitempty" yaml:"table,omitempty"`

	// Format selects how records are counted: "table" (named table via
	// the count tool, default), "lines" (non-empty lines), or "csv"
	// (non-empty lines minus the header).
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

// ApplyDefaults fills optional fields with their default values.
func (m *Manifest) ApplyDefaults() {
	if m.Version == "" {
		m.Version = "1.0"
	}
	if m.Run.SubmitRoot == "" {
		m.Run.SubmitRoot = "Submit"
	}
	if m.Run.Partition == "" {
		m.Run.Partition = "public"
	}
	if m.Run.Minitree == "" {
		m.Run.Minitree = "basics"
	}
	if m.Stages.Interpreter == "" {
		m.Stages.Interpreter = "python"
	}
	if m.Artifacts.IntermediatePattern == "" {
		m.Artifacts.IntermediatePattern = "{id}_tmp.pkl"
	}
	if m.Artifacts.OutputPattern == "" {
		m.Artifacts.OutputPattern = "{id}_merged.pkl"
	}
	if m.Postprocess.ResultsDir == "" {
		m.Postprocess.ResultsDir = "merged_results"
	}
	if m.Postprocess.Tolerance == 0 {
		m.Postprocess.Tolerance = 0.05
	}
	if m.Postprocess.MergeBinary == "" {
		m.Postprocess.MergeBinary = "hadd"
	}
}
