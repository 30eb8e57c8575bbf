// Package tools wraps the external programs the pipeline drives: the FASTA
// splitter and the VirFinder classifier run through Rscript.
package tools

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
)

// Tool is an external program the pipeline depends on.
type Tool interface {
	// Name returns the tool name used in logs (e.g. "fu-split", "virfinder").
	Name() string

	// Probe checks that the tool is installed and usable.
	Probe(ctx context.Context) error
}

// Splitter partitions a FASTA file into n chunk files inside dir.
type Splitter interface {
	Tool
	Split(ctx context.Context, input, dir string, n int) error
}

// Classifier builds the command that scores one chunk and writes a CSV report.
type Classifier interface {
	Tool
	Command(ctx context.Context, chunk, output string) *exec.Cmd
}

// ErrSplitFailed is returned when the splitter exits non-zero.
var ErrSplitFailed = errors.New("split failed")

// MissingDependencyError reports a tool that failed its probe.
type MissingDependencyError struct {
	Tool string
	Err  error
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("%s is not installed: %v", e.Tool, e.Err)
}

func (e *MissingDependencyError) Unwrap() error { return e.Err }

// CheckDependencies probes every tool in order and returns the first failure.
func CheckDependencies(ctx context.Context, tt ...Tool) error {
	for _, t := range tt {
		if err := t.Probe(ctx); err != nil {
			return &MissingDependencyError{Tool: t.Name(), Err: err}
		}
	}
	return nil
}

// ChunkPath is the i-th (1-based) chunk written by the splitter.
func ChunkPath(dir string, i int) string {
	return filepath.Join(dir, fmt.Sprintf("split_%05d.fasta", i))
}

// OutputPath is where the classifier writes the report for chunk i.
func OutputPath(dir string, i int) string {
	return filepath.Join(dir, fmt.Sprintf("split_%05d.csv", i))
}

// LogPath collects the classifier's stderr for chunk i.
func LogPath(dir string, i int) string {
	return filepath.Join(dir, fmt.Sprintf("split_%05d.log", i))
}
