package cmd

import (
	"fmt"
	"os"
	"os/user"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/simkit/mcbatch/internal/observability"
	"github.com/simkit/mcbatch/pkg/cluster"
	"github.com/simkit/mcbatch/pkg/correlate"
	"github.com/simkit/mcbatch/pkg/job"
	"github.com/simkit/mcbatch/pkg/manifest"
	"github.com/simkit/mcbatch/pkg/runstate"
	"github.com/simkit/mcbatch/pkg/throttle"
	"github.com/simkit/mcbatch/pkg/workspace"
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Correlate inputs and submit one merge job per matched pair",
	Long: `Correlate the truth and processed collections from the batch manifest,
build one merge job per matched identifier, and dispatch the jobs
sequentially while holding the partition occupancy under its ceiling.

Example:
  mcbatch submit --manifest batch.yaml
  mcbatch submit --manifest batch.yaml --partition private --submit-id 2
  mcbatch submit --manifest batch.yaml --dry-run`,
	RunE: runSubmit,
}

var (
	submitManifestPath string
	submitDirOverride  string
	submitPartition    string
	submitID           int
	submitArrays       bool
	submitMinitree     string
	submitDryRun       bool
)

func init() {
	rootCmd.AddCommand(submitCmd)

	submitCmd.Flags().StringVarP(&submitManifestPath, "manifest", "m", "", "Path to batch manifest (required)")
	submitCmd.Flags().StringVar(&submitDirOverride, "submit-dir", "", "Override submission root directory")
	submitCmd.Flags().StringVar(&submitPartition, "partition", "", "Override partition variant (public|private|private-secondary)")
	submitCmd.Flags().IntVar(&submitID, "submit-id", -1, "Override submit ID")
	submitCmd.Flags().BoolVar(&submitArrays, "arrays", false, "Use the array-output sort stage")
	submitCmd.Flags().StringVar(&submitMinitree, "minitree", "", "Override minitree mode (basics|peaks)")
	submitCmd.Flags().BoolVar(&submitDryRun, "dry-run", false, "Show the submission plan without dispatching")

	_ = submitCmd.MarkFlagRequired("manifest")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := observability.CLILogger

	m, err := manifest.Load(submitManifestPath)
	if err != nil {
		logger.Error("Failed to load manifest",
			zap.String("path", submitManifestPath),
			zap.Error(err))
		return exitError(foundry.ExitInvalidArgument, "Invalid manifest", err)
	}

	// Apply flag overrides, then re-validate: overrides can introduce the
	// same mistakes a manifest can.
	if submitDirOverride != "" {
		m.Run.SubmitRoot = submitDirOverride
	}
	if submitPartition != "" {
		m.Run.Partition = submitPartition
	}
	if submitID >= 0 {
		m.Run.SubmitID = submitID
	}
	if submitArrays {
		m.Run.Arrays = true
	}
	if submitMinitree != "" {
		m.Run.Minitree = submitMinitree
	}
	if err := m.Validate(); err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid manifest after overrides", err)
	}

	truthPat, processedPat, intermediatePat, outputPat, err := m.Patterns()
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid filename patterns", err)
	}

	part, err := job.LookupPartition(job.Variant(m.Run.Partition))
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid partition", err)
	}

	correlator, err := correlate.New(correlate.Config{
		TruthRoot:        m.Inputs.TruthRoot,
		TruthPattern:     truthPat,
		ProcessedRoot:    m.Inputs.ProcessedRoot,
		ProcessedPattern: processedPat,
	})
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid correlation config", err)
	}

	pairs, err := correlator.WithLogger(logger).Run()
	if err != nil {
		return exitError(foundry.ExitFileNotFound, "Correlation failed", err)
	}
	if len(pairs) == 0 {
		logger.Error("No matched identifiers between truth and processed collections")
		return exitError(exitStructuralFailure, "No jobs found", nil)
	}
	logger.Info("Correlated input collections",
		zap.Int("pairs", len(pairs)),
		zap.String("truth_root", m.Inputs.TruthRoot),
		zap.String("processed_root", m.Inputs.ProcessedRoot))

	if submitDryRun {
		return showSubmitPlan(m, part, pairs)
	}

	schedUser := m.Run.User
	if schedUser == "" {
		u, err := user.Current()
		if err != nil {
			return exitError(foundry.ExitInvalidArgument, "Cannot determine scheduler user", err)
		}
		schedUser = u.Username
	}

	cwd, err := os.Getwd()
	if err != nil {
		return exitError(foundry.ExitFileNotFound, "Cannot determine working directory", err)
	}

	queue := cluster.NewSlurmQueue(cluster.SlurmConfig{
		SubmitBinary: appConfig.Scheduler.SubmitBinary,
		QueueBinary:  appConfig.Scheduler.QueueBinary,
	})
	controller, err := throttle.New(queue, throttle.Config{
		Partition:   part.Queue,
		User:        schedUser,
		Ceiling:     part.Ceiling,
		PollBackoff: appConfig.Throttle.PollBackoff,
		Settle:      appConfig.Throttle.Settle,
		MaxAttempts: appConfig.Throttle.MaxAttempts,
		MaxWait:     appConfig.Throttle.MaxWait,
	})
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid throttle config", err)
	}
	controller = controller.WithLogger(logger)

	run, err := workspace.AcquireRun(m.Run.OutputRoot, m.Run.SubmitID)
	if err != nil {
		return exitError(foundry.ExitFileWriteError, "Cannot create run workspace", err)
	}
	// The temporary root goes away on every exit path; only files already
	// relocated to final output survive.
	defer func() {
		if err := run.Release(); err != nil {
			logger.Warn("Failed to release run workspace", zap.Error(err))
		}
	}()

	store := runstate.NewStore(m.Run.SubmitRoot)
	record, err := store.NewRun(submitManifestPath, string(part.Variant), m.Run.SubmitID)
	if err != nil {
		return exitError(foundry.ExitFileWriteError, "Cannot create run record", err)
	}

	subs, err := buildSubmissions(m, part, pairs, run, store, record, cwd, intermediatePat, outputPat)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Cannot build job descriptors", err)
	}

	summary, runErr := controller.Run(ctx, subs)
	if finishErr := store.Finish(record); finishErr != nil {
		logger.Warn("Failed to finalize run record", zap.Error(finishErr))
	}

	logger.Info("Submission finished",
		zap.Int("dispatched", summary.Dispatched),
		zap.Int("jobs", len(subs)),
		zap.Int("polls", summary.Polls),
		zap.Int("backoffs", summary.Backoffs),
		zap.Duration("duration", summary.Duration))

	if runErr != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Submission did not complete", runErr)
	}
	return nil
}

// buildSubmissions turns correlation pairs into throttle submissions,
// wiring the workspace and run-record side effects around each dispatch.
func buildSubmissions(
	m *manifest.Manifest,
	part job.Partition,
	pairs []correlate.Pair,
	run *workspace.Run,
	store *runstate.Store,
	record *runstate.RunRecord,
	cwd string,
	intermediatePat, outputPat *correlate.Pattern,
) ([]throttle.Submission, error) {
	logger := observability.CLILogger
	subs := make([]throttle.Submission, 0, len(pairs))

	for i, pair := range pairs {
		jobDir := workspace.JobDir(cwd, m.Run.SubmitRoot, i, m.Run.SubmitID)

		desc, err := job.Build(job.BuildInput{
			Pair:                pair,
			JobIndex:            i,
			SubmitID:            m.Run.SubmitID,
			SubmitDir:           jobDir,
			TmpRoot:             run.Root(),
			OutputRoot:          m.Run.OutputRoot,
			IntermediatePattern: intermediatePat,
			OutputPattern:       outputPat,
			ConfigPath:          m.Inputs.Config,
			Variant:             part.Variant,
			ArrayMode:           m.Run.Arrays,
			SaveAfterpulses:     m.Run.SaveAfterpulses,
			Minitree:            job.MinitreeMode(m.Run.Minitree),
			Stages: job.Stages{
				Interpreter: m.Stages.Interpreter,
				Sort:        m.Stages.Sort,
				SortArrays:  m.Stages.SortArrays,
				Merge:       m.Stages.Merge,
				MergePeaks:  m.Stages.MergePeaks,
			},
			EnvSetup: m.Run.EnvSetup,
		})
		if err != nil {
			return nil, fmt.Errorf("build descriptor for %s: %w", pair.ID, err)
		}

		d := desc
		subs = append(subs, throttle.Submission{
			ID: d.ID,
			Prepare: func() (string, string, error) {
				if err := workspace.AcquireJobDir(d.SubmitDir); err != nil {
					return "", "", err
				}
				script, err := workspace.WriteScript(d.SubmitDir, job.Script(d))
				if err != nil {
					return "", "", err
				}
				logger.Info("To process",
					zap.String("id", d.ID),
					zap.Int("index", d.JobIndex))
				return script, d.SubmitDir, nil
			},
			Done: func() error {
				if err := workspace.RemoveScript(d.SubmitDir); err != nil {
					return err
				}
				now := time.Now().UTC()
				return store.AppendJob(record, runstate.JobEntry{
					ID:           d.ID,
					JobIndex:     d.JobIndex,
					State:        runstate.DispatchDispatched,
					SubmitDir:    d.SubmitDir,
					DispatchedAt: &now,
				})
			},
		})
	}

	return subs, nil
}

// showSubmitPlan displays what would be submitted without dispatching.
func showSubmitPlan(m *manifest.Manifest, part job.Partition, pairs []correlate.Pair) error {
	fmt.Println("=== Submission Plan (dry-run) ===")
	fmt.Println()
	fmt.Printf("Partition:   %s (queue %s, ceiling %d)\n", part.Variant, part.Queue, part.Ceiling)
	fmt.Printf("Submit root: %s\n", m.Run.SubmitRoot)
	fmt.Printf("Output root: %s\n", m.Run.OutputRoot)
	fmt.Printf("Submit ID:   %d\n", m.Run.SubmitID)
	fmt.Printf("Arrays:      %v\n", m.Run.Arrays)
	fmt.Printf("Minitree:    %s\n", m.Run.Minitree)
	fmt.Println()
	fmt.Printf("Jobs (%d):\n", len(pairs))
	for i, p := range pairs {
		fmt.Printf("  [%d] %s\n", i, p.ID)
		fmt.Printf("      truth:     %s\n", p.TruthPath)
		fmt.Printf("      processed: %s\n", p.ProcessedPath)
	}
	return nil
}
