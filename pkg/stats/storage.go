package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Storage persists Snapshots to chart.json (spec §6 on-disk layout),
// adapted from the teacher's pkg/reporting/storage.go JSON report
// persistence.
type Storage struct {
	path string
}

// NewStorage targets outputDir/chart.json.
func NewStorage(outputDir string) (*Storage, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("stats: create output dir: %w", err)
	}
	return &Storage{path: filepath.Join(outputDir, "chart.json")}, nil
}

// Append adds a Snapshot to the on-disk chart.json array, rewriting the
// whole file (chart.json is small and written at a coarse interval, so a
// read-modify-write is simpler and safer than an append-only log here).
func (s *Storage) Append(snap Snapshot) error {
	history, err := s.Load()
	if err != nil {
		return err
	}
	history = append(history, snap)
	data, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return fmt.Errorf("stats: marshal chart.json: %w", err)
	}
	return os.WriteFile(s.path, data, 0o644)
}

// Load reads the full chart.json history, or an empty slice if it doesn't
// exist yet.
func (s *Storage) Load() ([]Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stats: read chart.json: %w", err)
	}
	var history []Snapshot
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("stats: parse chart.json: %w", err)
	}
	return history, nil
}
