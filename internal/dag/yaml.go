package dag

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/j-94/waggle-dance/internal/types"
)

// Snapshot is the YAML form of a planned graph, written after planning and
// read back to resume a run without planning again.
//
// # YAML Structure Example
//
//	goal: summarize the quarterly reports
//	goalId: 550e8400-e29b-41d4-a716-446655440000
//	donePlanning: true
//	savedAt: 2026-08-21T10:00:00Z
//	graph:
//	  nodes:
//	    - id: "2-1"
//	      name: collect reports
//	      act: research
//	      context: find the four quarterly reports
//	  edges:
//	    - sourceId: "2-1"
//	      targetId: "2-review"
type Snapshot struct {
	Goal         string    `yaml:"goal"`
	GoalID       types.ID  `yaml:"goalId,omitempty"`
	DonePlanning bool      `yaml:"donePlanning"`
	SavedAt      time.Time `yaml:"savedAt,omitempty"`
	Graph        *Graph    `yaml:"graph"`
}

// ParseSnapshot parses a YAML snapshot from raw bytes.
func ParseSnapshot(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot YAML: %w", err)
	}
	if snap.Goal == "" {
		return nil, fmt.Errorf("snapshot goal is required")
	}
	if snap.Graph == nil || len(snap.Graph.Nodes) == 0 {
		return nil, fmt.Errorf("snapshot must contain at least one node")
	}
	return &snap, nil
}

// LoadSnapshotFile reads and parses a snapshot from a YAML file.
func LoadSnapshotFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot file: %w", err)
	}
	return ParseSnapshot(data)
}

// Marshal renders the snapshot as YAML.
func (s *Snapshot) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return data, nil
}

// SaveFile writes the snapshot to path, stamping SavedAt.
func (s *Snapshot) SaveFile(path string) error {
	s.SavedAt = time.Now().UTC()
	data, err := s.Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot file: %w", err)
	}
	return nil
}
