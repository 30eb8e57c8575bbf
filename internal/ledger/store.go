// Package ledger records each run and the outcome of every chunk so worker
// failures stay visible after the temporary files are gone.
package ledger

import (
	"context"
	"fmt"
	"time"
)

// Run statuses.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// Run is one orchestrator invocation.
type Run struct {
	ID         string
	Input      string
	Output     string
	Parallel   int
	MinScore   float64
	MaxPValue  float64
	Status     string
	Parsed     int
	Passed     int
	Reconciled int
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Chunk is the final state of one chunk job.
type Chunk struct {
	RunID      string
	Index      int
	Handle     string
	Status     string
	ExitCode   int
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Store persists runs and their chunks.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run Run) error
	GetRun(ctx context.Context, id string) (Run, bool, error)
	SaveChunks(ctx context.Context, runID string, chunks []Chunk) error
	ListChunks(ctx context.Context, runID string) ([]Chunk, error)
}

// NewStore selects a backend: "memory" (or empty) or "sqlite" at path.
func NewStore(kind, path string) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(path), nil
	default:
		return nil, fmt.Errorf("unsupported ledger backend: %s", kind)
	}
}

// CloseIfSupported closes stores that hold resources.
func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}
