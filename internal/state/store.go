// Package state persists lineage runs in SQLite so that earlier results can
// be listed, reloaded and compared without reparsing the SQL.
package state

import (
	"context"
	"errors"
	"time"

	"github.com/leapstack-labs/ezql/pkg/lineage"
)

// ErrRunNotFound is returned when a run ID is not in the store.
var ErrRunNotFound = errors.New("run not found")

// Run summarizes one persisted lineage run.
type Run struct {
	ID         string    `json:"id" yaml:"id"`
	Path       string    `json:"path" yaml:"path"`
	Mode       string    `json:"mode" yaml:"mode"`
	CreatedAt  time.Time `json:"created_at" yaml:"created_at"`
	Procedures int       `json:"procedures" yaml:"procedures"`
	Statements int       `json:"statements" yaml:"statements"`
	Errored    int       `json:"errored" yaml:"errored"`
}

// Store is the persistence surface used by the CLI and the UI.
type Store interface {
	SaveRun(ctx context.Context, path string, mode lineage.Mode, r lineage.Result) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	GetRun(ctx context.Context, id string) (*Run, error)
	LoadRun(ctx context.Context, id string) (lineage.Result, error)
	Close() error
}

var _ Store = (*SQLiteStore)(nil)

// Table reference roles stored in table_refs.
const (
	roleTarget = "target"
	roleFrom   = "from"
	roleJoin   = "join"
)
