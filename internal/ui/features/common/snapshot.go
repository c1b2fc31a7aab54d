// Package common holds state and helpers shared by the viewer features.
package common

import (
	"sync"
	"time"

	"github.com/leapstack-labs/ezql/pkg/lineage"
)

// Snapshot holds the lineage result currently served by the viewer.
type Snapshot struct {
	mu        sync.RWMutex
	path      string
	result    lineage.Result
	runID     string
	updatedAt time.Time
}

// SnapshotInfo summarizes a snapshot.
type SnapshotInfo struct {
	Path       string    `json:"path"`
	RunID      string    `json:"run_id,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
	Procedures int       `json:"procedures"`
	Statements int       `json:"statements"`
	Errored    int       `json:"errored"`
}

// NewSnapshot creates an empty snapshot for the given input path.
func NewSnapshot(path string) *Snapshot {
	return &Snapshot{path: path}
}

// Set replaces the served result. runID is empty when runs are not stored.
func (s *Snapshot) Set(r lineage.Result, runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result = r
	s.runID = runID
	s.updatedAt = time.Now()
}

// Result returns the served result.
func (s *Snapshot) Result() lineage.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result
}

// Info returns a summary of the served result.
func (s *Snapshot) Info() SnapshotInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return SnapshotInfo{
		Path:       s.path,
		RunID:      s.runID,
		UpdatedAt:  s.updatedAt,
		Procedures: len(s.result.Procedures),
		Statements: len(s.result.Statements()),
		Errored:    len(s.result.Errored),
	}
}
