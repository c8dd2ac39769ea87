package runner

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"neoswaps/internal/model"
)

// Checkpoint tracks the last applied command.
type Checkpoint struct {
	LastSeq   uint64      `json:"last_seq"`
	StateHash common.Hash `json:"state_hash"`
	UpdatedAt string      `json:"updated_at"`
}

// CheckpointStore persists checkpoints to disk.
type CheckpointStore struct {
	path    string
	enabled bool
}

func NewCheckpointStore(path string, enabled bool) *CheckpointStore {
	return &CheckpointStore{path: path, enabled: enabled && path != ""}
}

func (c *CheckpointStore) Load() (Checkpoint, bool, error) {
	if !c.enabled {
		return Checkpoint{}, false, nil
	}
	var cp Checkpoint
	ok, err := readJSONFile(c.path, &cp)
	if err != nil {
		return Checkpoint{}, false, fmt.Errorf("checkpoint: %w", err)
	}
	return cp, ok, nil
}

func (c *CheckpointStore) Save(lastSeq uint64, stateHash common.Hash) error {
	if !c.enabled {
		return nil
	}
	cp := Checkpoint{
		LastSeq:   lastSeq,
		StateHash: stateHash,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if err := writeJSONFile(c.path, cp); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	return nil
}

// SnapshotStore persists the full engine state next to the checkpoint.
type SnapshotStore struct {
	path string
}

func NewSnapshotStore(path string) *SnapshotStore {
	return &SnapshotStore{path: path}
}

// Load reads the snapshot. A missing file, or an unset path, reports false.
func (s *SnapshotStore) Load() (model.StateSnapshot, bool, error) {
	if s == nil || s.path == "" {
		return model.StateSnapshot{}, false, nil
	}
	var snap model.StateSnapshot
	ok, err := readJSONFile(s.path, &snap)
	if err != nil {
		return model.StateSnapshot{}, false, fmt.Errorf("state snapshot: %w", err)
	}
	return snap, ok, nil
}

func (s *SnapshotStore) Save(snap model.StateSnapshot) error {
	if s == nil || s.path == "" {
		return nil
	}
	snap.UpdatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	if err := writeJSONFile(s.path, snap); err != nil {
		return fmt.Errorf("state snapshot: %w", err)
	}
	return nil
}

func readJSONFile(path string, out interface{}) (bool, error) {
	stat, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	if stat.IsDir() {
		return false, fmt.Errorf("%s is a directory", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("parse %s: %w", path, err)
	}
	return true, nil
}

// writeJSONFile replaces path through a temporary file so readers never see a partial write.
func writeJSONFile(path string, value interface{}) error {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dir: %w", err)
		}
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write tmp: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
