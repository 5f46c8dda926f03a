package cmd

import (
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/simkit/mcbatch/internal/observability"
	"github.com/simkit/mcbatch/pkg/dag"
	"github.com/simkit/mcbatch/pkg/manifest"
	"github.com/simkit/mcbatch/pkg/merge"
	"github.com/simkit/mcbatch/pkg/tablecount"
	"github.com/simkit/mcbatch/pkg/validate"
)

var postprocessCmd = &cobra.Command{
	Use:   "postprocess",
	Short: "Validate per-job outputs and merge them into result files",
	Long: `Read the batch dag file for the expected job and event counts, check
each output group's file count and aggregate record count, and combine
the groups that pass into final result files.

A file-count mismatch blocks that group's merge; record-count drift
within tolerance of the expected events is reported as a warning only.

Example:
  mcbatch postprocess --manifest batch.yaml --dag mc.dag --output-dir output`,
	RunE: runPostprocess,
}

var (
	postManifestPath string
	postDagPath      string
	postOutputDir    string
	postResultsDir   string
	postTolerance    float64
)

func init() {
	rootCmd.AddCommand(postprocessCmd)

	postprocessCmd.Flags().StringVarP(&postManifestPath, "manifest", "m", "", "Path to batch manifest (required)")
	postprocessCmd.Flags().StringVar(&postDagPath, "dag", "mc.dag", "Path to the batch dag file")
	postprocessCmd.Flags().StringVar(&postOutputDir, "output-dir", "output", "Directory holding per-job output files")
	postprocessCmd.Flags().StringVar(&postResultsDir, "results-dir", "", "Override results directory")
	postprocessCmd.Flags().Float64Var(&postTolerance, "tolerance", 0, "Override relative record-count tolerance")

	_ = postprocessCmd.MarkFlagRequired("manifest")
}

func runPostprocess(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := observability.CLILogger

	m, err := manifest.Load(postManifestPath)
	if err != nil {
		logger.Error("Failed to load manifest",
			zap.String("path", postManifestPath),
			zap.Error(err))
		return exitError(foundry.ExitInvalidArgument, "Invalid manifest", err)
	}
	// Apply flag overrides, then re-validate: overrides can introduce the
	// same mistakes a manifest can.
	if postResultsDir != "" {
		m.Postprocess.ResultsDir = postResultsDir
	}
	if postTolerance > 0 {
		m.Postprocess.Tolerance = postTolerance
	}
	if err := m.Validate(); err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid manifest after overrides", err)
	}
	if m.Postprocess.CountBinary == "" {
		return exitError(foundry.ExitInvalidArgument, "Manifest has no postprocess.count_binary", nil)
	}

	info, err := dag.Read(postDagPath)
	if err != nil {
		return exitError(foundry.ExitFileNotFound, "Cannot read dag file", err)
	}
	if info.Events == 0 {
		logger.Error("No events generated by this dag file", zap.String("dag", postDagPath))
		return exitError(exitStructuralFailure, "No events in dag", nil)
	}
	if info.Jobs == 0 {
		logger.Error("No jobs run by this dag file", zap.String("dag", postDagPath))
		return exitError(exitStructuralFailure, "No jobs in dag", nil)
	}
	logger.Info("Read dag information",
		zap.Int("jobs", info.Jobs),
		zap.Int64("events", info.Events),
		zap.String("flavor", info.Flavor))

	groups, err := validate.StandardGroups(info.Flavor)
	if err != nil {
		return exitError(exitStructuralFailure, "Cannot derive output groups", err)
	}
	for _, g := range m.Postprocess.Groups {
		groups = append(groups, validate.Group{
			Name:   g.Name,
			Suffix: g.Suffix,
			Table:  g.Table,
			Format: validate.Format(g.Format),
		})
	}

	reader, err := tablecount.NewCommandReader(m.Postprocess.CountBinary)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid count tool", err)
	}
	validator, err := validate.New(validate.Config{
		OutputDir:       postOutputDir,
		ExpectedJobs:    info.Jobs,
		ExpectedRecords: info.Events,
		Tolerance:       m.Postprocess.Tolerance,
		Reader:          reader,
	})
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid validation config", err)
	}
	validator = validator.WithLogger(logger)

	merger, err := merge.New(merge.Config{
		Binary:     m.Postprocess.MergeBinary,
		OutputDir:  postOutputDir,
		ResultsDir: m.Postprocess.ResultsDir,
	})
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid merge config", err)
	}
	merger = merger.WithLogger(logger)

	// A failed group never stops the others: validate everything, merge
	// everything that passed the hard check, then report.
	var structuralFailures, mergeFailures int
	for _, g := range groups {
		verdict, err := validator.Validate(ctx, g)
		if err != nil {
			return exitError(foundry.ExitFileReadError, "Validation failed", err)
		}

		if !verdict.MergeAllowed() {
			structuralFailures++
			logger.Error("Group failed validation, skipping merge",
				zap.String("group", g.Name),
				zap.String("detail", verdict.Detail))
			continue
		}
		if verdict.Status != validate.StatusOK {
			logger.Warn("Group validation warning",
				zap.String("group", g.Name),
				zap.String("status", string(verdict.Status)),
				zap.String("detail", verdict.Detail))
		}

		res := merger.Merge(ctx, g.Name, verdict.Files)
		if res.Err != nil {
			mergeFailures++
			logger.Error("Group merge failed",
				zap.String("group", g.Name),
				zap.Error(res.Err))
		}
	}

	logger.Info("Postprocessing finished",
		zap.Int("groups", len(groups)),
		zap.Int("structural_failures", structuralFailures),
		zap.Int("merge_failures", mergeFailures))

	if structuralFailures > 0 || mergeFailures > 0 {
		return exitError(exitStructuralFailure, "One or more output groups failed", nil)
	}
	return nil
}
