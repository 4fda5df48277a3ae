package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"DocQualityAnalyzer/internal/domain"
	"DocQualityAnalyzer/internal/ports"
)

// Store is the durable, corruption-tolerant record of per-document outcomes.
// A damaged state file never stops a batch run: load degrades to a fresh
// empty state and persists it immediately. Writes go through an atomic
// replace so a crash mid-write can only lose the in-flight record, never the
// previously committed state.
//
// The pipeline is the single writer by construction; no locking beyond the
// atomic replace is needed.
type Store struct {
	path   string
	state  domain.CheckpointState
	logger *slog.Logger
}

var _ ports.Checkpoint = (*Store)(nil)

// Open loads the checkpoint at path, creating or recovering it as needed.
// The returned error covers only an unwritable location.
func Open(path string, log *slog.Logger) (*Store, error) {
	s := &Store{path: path, logger: log}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		s.info("no checkpoint found, creating new state", "path", path)
		s.state = newState()
		if err := s.persist(); err != nil {
			return nil, fmt.Errorf("initialize checkpoint: %w", err)
		}
	case err != nil:
		s.error("cannot read checkpoint, resetting to empty state", "path", path, "error", err)
		s.state = newState()
		if err := s.persist(); err != nil {
			return nil, fmt.Errorf("reset checkpoint: %w", err)
		}
	default:
		state, decodeErr := DecodeState(raw)
		if decodeErr != nil {
			s.error("checkpoint corrupt, resetting to empty state", "path", path, "error", decodeErr)
			s.state = newState()
			if err := s.persist(); err != nil {
				return nil, fmt.Errorf("reset checkpoint: %w", err)
			}
		} else {
			s.state = state
			s.info("loaded checkpoint", "path", path, "documents", len(state.Documents))
		}
	}

	return s, nil
}

// DecodeState validates raw checkpoint bytes. It is pure so corruption
// handling can be tested independent of file I/O. Corrupt means undecodable
// JSON, a missing required top-level field, or a documents field that is not
// a keyed collection of records.
func DecodeState(raw []byte) (domain.CheckpointState, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return domain.CheckpointState{}, fmt.Errorf("decode state: %w", err)
	}

	for _, required := range []string{"created_at", "last_updated", "documents"} {
		if _, ok := fields[required]; !ok {
			return domain.CheckpointState{}, fmt.Errorf("state is missing required field %q", required)
		}
	}

	var state domain.CheckpointState
	if err := json.Unmarshal(raw, &state); err != nil {
		return domain.CheckpointState{}, fmt.Errorf("decode state: %w", err)
	}

	if state.Documents == nil {
		state.Documents = map[string]domain.DocumentRecord{}
	}

	return state, nil
}

// IsProcessed reports whether a final outcome for the document is recorded.
func (s *Store) IsProcessed(documentID string) bool {
	_, ok := s.state.Documents[documentID]
	return ok
}

// Append records one document outcome and flushes it durably before
// returning. Records are immutable once appended.
func (s *Store) Append(record domain.DocumentRecord) error {
	if record.DocumentID == "" {
		return fmt.Errorf("append: record has no document id")
	}

	if s.state.Documents == nil {
		s.state.Documents = map[string]domain.DocumentRecord{}
	}
	s.state.Documents[record.DocumentID] = record
	s.state.LastUpdated = time.Now().UTC()

	if err := s.persist(); err != nil {
		return fmt.Errorf("append %s: %w", record.DocumentID, err)
	}

	return nil
}

// Summary aggregates persisted outcomes.
func (s *Store) Summary() domain.CheckpointSummary {
	summary := domain.CheckpointSummary{
		TotalProcessed: len(s.state.Documents),
		CreatedAt:      s.state.CreatedAt,
		LastUpdated:    s.state.LastUpdated,
	}

	for _, record := range s.state.Documents {
		summary.TotalProcessingTime += record.ProcessingTime
		if record.ConsensusReached {
			summary.ConsensusCount++
		}

		switch record.Outcome() {
		case domain.OutcomeHighQualityTagged:
			summary.HighQuality++
		case domain.OutcomeLowQualityTagged:
			summary.LowQuality++
		case domain.OutcomeNoConsensus:
			summary.NoConsensus++
		case domain.OutcomeError:
			summary.ErrorCount++
		}
	}

	return summary
}

// Clear resets the store to a fresh empty state. Idempotent.
func (s *Store) Clear() error {
	s.state = newState()
	if err := s.persist(); err != nil {
		return fmt.Errorf("clear checkpoint: %w", err)
	}
	return nil
}

// persist atomically replaces the state file: write to a temp file in the
// same directory, sync, then rename over the old file.
func (s *Store) persist() error {
	payload, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".checkpoint-*.json")
	if err != nil {
		return fmt.Errorf("create temp state: %w", err)
	}

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp state: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("sync temp state: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp state: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace state file: %w", err)
	}

	return nil
}

func newState() domain.CheckpointState {
	now := time.Now().UTC()
	return domain.CheckpointState{
		CreatedAt:   now,
		LastUpdated: now,
		Documents:   map[string]domain.DocumentRecord{},
	}
}

func (s *Store) info(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Info(msg, args...)
	}
}

func (s *Store) error(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Error(msg, args...)
	}
}
