// Package workspace manages the on-disk lifecycle of one batch run: the
// run-scoped temporary root and the per-job submission directories.
//
// Acquisition is scoped: whoever acquires a directory is responsible for
// releasing it, and Release is safe on every exit path (defer-friendly,
// idempotent).
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Run is the temporary root for one batch run. Intermediate artifacts
// live here until the per-job merge stage consumes them.
type Run struct {
	root string
}

// AcquireRun creates the run's temporary root under outputRoot, named by
// submit ID. An existing directory from a previous run with the same ID
// is deleted first; no stale content may persist.
func AcquireRun(outputRoot string, submitID int) (*Run, error) {
	if outputRoot == "" {
		return nil, fmt.Errorf("output root is required")
	}
	root := filepath.Join(outputRoot, "tmp_"+strconv.Itoa(submitID))
	if err := recreate(root); err != nil {
		return nil, fmt.Errorf("acquire run root: %w", err)
	}
	return &Run{root: root}, nil
}

// Root returns the temporary root path.
func (r *Run) Root() string {
	return r.root
}

// Release deletes the temporary root recursively. It is idempotent and
// must run on every exit path, success or failure; files already
// relocated out of the root are unaffected.
func (r *Run) Release() error {
	if r == nil || r.root == "" {
		return nil
	}
	err := os.RemoveAll(r.root)
	r.root = ""
	return err
}

// JobDir resolves the submission directory for one job. Relative submit
// roots resolve against baseDir (the caller's working directory).
func JobDir(baseDir, submitRoot string, jobIndex, submitID int) string {
	name := strconv.Itoa(jobIndex) + "_" + strconv.Itoa(submitID)
	if filepath.IsAbs(submitRoot) {
		return filepath.Join(submitRoot, name)
	}
	return filepath.Join(baseDir, submitRoot, name)
}

// AcquireJobDir recreates the job's submission directory fresh. A prior
// run with the same numeric path leaves nothing behind.
func AcquireJobDir(dir string) error {
	if err := recreate(dir); err != nil {
		return fmt.Errorf("acquire job dir: %w", err)
	}
	return nil
}

// ScriptPath returns the submission script path inside a job directory.
func ScriptPath(jobDir string) string {
	return filepath.Join(jobDir, "submit")
}

// WriteScript writes the rendered job script into the job directory.
func WriteScript(jobDir, script string) (string, error) {
	path := ScriptPath(jobDir)
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		return "", fmt.Errorf("write job script: %w", err)
	}
	return path, nil
}

// RemoveScript deletes only the script file after dispatch. The directory
// stays: the cluster writes the job's log files into it later.
func RemoveScript(jobDir string) error {
	err := os.Remove(ScriptPath(jobDir))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove job script: %w", err)
	}
	return nil
}

func recreate(dir string) error {
	if _, err := os.Stat(dir); err == nil {
		if err := os.RemoveAll(dir); err != nil {
			return err
		}
	}
	return os.MkdirAll(dir, 0o755)
}
