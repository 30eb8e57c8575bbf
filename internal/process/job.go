// Package process launches one classifier process per chunk and waits for
// all of them to finish.
package process

import (
	"os"
	"os/exec"
	"time"

	"github.com/google/uuid"

	"github.com/quadram-institute-bioscience/parallel-virfinder/internal/tools"
)

// JobStatus represents the lifecycle state of a chunk job.
type JobStatus string

const (
	JobStatusPending JobStatus = "pending"
	JobStatusRunning JobStatus = "running"
	JobStatusDone    JobStatus = "done"
	JobStatusSkipped JobStatus = "skipped"
	JobStatusFailed  JobStatus = "failed"
)

// Terminal reports whether no further transitions are expected.
func (s JobStatus) Terminal() bool {
	return s == JobStatusDone || s == JobStatusSkipped || s == JobStatusFailed
}

// ChunkJob tracks one classifier invocation. Handle is unique per launch and
// is what logs and the ledger key on; the OS pid is informational only.
type ChunkJob struct {
	Index      int
	Handle     uuid.UUID
	InputPath  string
	OutputPath string
	LogPath    string
	Status     JobStatus
	ExitCode   int
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time

	cmd     *exec.Cmd
	logFile *os.File
}

// NewChunkJob creates the pending job for the 1-based chunk index inside dir.
func NewChunkJob(dir string, index int) *ChunkJob {
	return &ChunkJob{
		Index:      index,
		Handle:     uuid.New(),
		InputPath:  tools.ChunkPath(dir, index),
		OutputPath: tools.OutputPath(dir, index),
		LogPath:    tools.LogPath(dir, index),
		Status:     JobStatusPending,
		ExitCode:   -1,
	}
}

// Pid returns the OS process id, or 0 when no process was started.
func (j *ChunkJob) Pid() int {
	if j.cmd == nil || j.cmd.Process == nil {
		return 0
	}
	return j.cmd.Process.Pid
}

// Duration is the wall time between start and finish.
func (j *ChunkJob) Duration() time.Duration {
	if j.StartedAt.IsZero() || j.FinishedAt.IsZero() {
		return 0
	}
	return j.FinishedAt.Sub(j.StartedAt)
}

func MarkRunning(j *ChunkJob) {
	j.Status = JobStatusRunning
	j.StartedAt = time.Now()
}

func MarkDone(j *ChunkJob) {
	j.Status = JobStatusDone
	j.ExitCode = 0
	j.FinishedAt = time.Now()
}

func MarkSkipped(j *ChunkJob, reason string) {
	j.Status = JobStatusSkipped
	j.Error = reason
	j.FinishedAt = time.Now()
}

func MarkFailed(j *ChunkJob, exitCode int, err error) {
	j.Status = JobStatusFailed
	j.ExitCode = exitCode
	j.FinishedAt = time.Now()
	if err != nil {
		j.Error = err.Error()
	}
}

// Outputs lists the expected report path of every job that was launched, in
// launch order. Aggregation must follow this order, not completion order.
func Outputs(jobs []*ChunkJob) []string {
	paths := make([]string, 0, len(jobs))
	for _, j := range jobs {
		if j.Status == JobStatusSkipped {
			continue
		}
		paths = append(paths, j.OutputPath)
	}
	return paths
}

// Counts tallies jobs by status.
func Counts(jobs []*ChunkJob) map[JobStatus]int {
	counts := make(map[JobStatus]int)
	for _, j := range jobs {
		counts[j.Status]++
	}
	return counts
}
