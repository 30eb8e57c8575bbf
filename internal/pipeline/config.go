package pipeline

import (
	"fmt"
	"os"
	"time"

	"github.com/quadram-institute-bioscience/parallel-virfinder/internal/aggregate"
)

// Config holds the settings of one run. It is immutable once Run starts.
type Config struct {
	Input    string
	Output   string
	Fasta    string // optional filtered FASTA output
	Parallel int
	TmpDir   string
	Criteria aggregate.Criteria

	// KeepTemp retains chunk files, reports and worker logs.
	KeepTemp   bool
	SkipChecks bool
	Timeout    time.Duration
}

// PreconditionError is reported before any work begins.
type PreconditionError struct {
	Reason string
	Err    error
}

func (e *PreconditionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *PreconditionError) Unwrap() error { return e.Err }

// Validate checks the settings and the input file. It writes nothing.
func (c Config) Validate() error {
	if c.Input == "" {
		return &PreconditionError{Reason: "input FASTA is required"}
	}
	if c.Output == "" {
		return &PreconditionError{Reason: "output CSV is required"}
	}
	if c.Parallel < 2 {
		return &PreconditionError{Reason: fmt.Sprintf("parallel must be at least 2 (got %d)", c.Parallel)}
	}
	info, err := os.Stat(c.Input)
	if err != nil {
		return &PreconditionError{Reason: "input FASTA not readable", Err: err}
	}
	if info.IsDir() {
		return &PreconditionError{Reason: fmt.Sprintf("input %s is a directory", c.Input)}
	}
	if info.Size() == 0 {
		return &PreconditionError{Reason: fmt.Sprintf("input %s is empty", c.Input)}
	}
	if c.TmpDir != "" {
		if info, err := os.Stat(c.TmpDir); err != nil || !info.IsDir() {
			return &PreconditionError{Reason: fmt.Sprintf("temporary directory %s is not usable", c.TmpDir), Err: err}
		}
	}
	return nil
}
