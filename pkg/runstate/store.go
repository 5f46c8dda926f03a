// Package runstate persists per-run dispatch records.
package runstate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Store persists and loads RunRecords from an on-disk directory.
//
// Directory layout:
//
//	<root>/runs/<run_id>/run.json
type Store struct {
	root string
}

func NewStore(root string) *Store {
	return &Store{root: strings.TrimSpace(root)}
}

func (s *Store) RunDir(runID string) string {
	return filepath.Join(s.root, "runs", runID)
}

func (s *Store) RunPath(runID string) string {
	return filepath.Join(s.RunDir(runID), "run.json")
}

// NewRun creates and persists a fresh run record.
func (s *Store) NewRun(manifestPath, partition string, submitID int) (*RunRecord, error) {
	rec := &RunRecord{
		RunID:        uuid.New().String(),
		ManifestPath: manifestPath,
		Partition:    partition,
		SubmitID:     submitID,
		CreatedAt:    time.Now().UTC(),
		Jobs:         []JobEntry{},
	}
	if err := s.Write(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Write persists a record atomically (temp file + rename), so a crash
// mid-write never leaves a truncated run.json.
func (s *Store) Write(record *RunRecord) error {
	if record == nil {
		return fmt.Errorf("run record is nil")
	}
	runID := strings.TrimSpace(record.RunID)
	if runID == "" {
		return fmt.Errorf("run_id is required")
	}
	if strings.TrimSpace(s.root) == "" {
		return fmt.Errorf("run state root dir is empty")
	}

	runDir := s.RunDir(runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return fmt.Errorf("create run dir: %w", err)
	}

	b, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run record: %w", err)
	}
	b = append(b, '\n')

	tmp, err := os.CreateTemp(runDir, "run.json.tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp run file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp run file: %w", err)
	}

	if err := os.Rename(tmpName, s.RunPath(runID)); err != nil {
		return fmt.Errorf("rename run file: %w", err)
	}
	return nil
}

// Get loads one run record.
func (s *Store) Get(runID string) (*RunRecord, error) {
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return nil, fmt.Errorf("run_id is required")
	}
	b, err := os.ReadFile(s.RunPath(runID))
	if err != nil {
		return nil, err
	}

	var record RunRecord
	if err := json.Unmarshal(b, &record); err != nil {
		return nil, fmt.Errorf("parse run.json: %w", err)
	}
	return &record, nil
}

// AppendJob adds a job entry and persists the record.
func (s *Store) AppendJob(record *RunRecord, entry JobEntry) error {
	record.Jobs = append(record.Jobs, entry)
	return s.Write(record)
}

// Finish stamps the end time and persists the record.
func (s *Store) Finish(record *RunRecord) error {
	now := time.Now().UTC()
	record.EndedAt = &now
	return s.Write(record)
}
