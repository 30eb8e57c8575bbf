package process

import (
	"errors"
	"log/slog"
	"os/exec"

	"golang.org/x/sync/errgroup"
)

// Supervisor joins running chunk jobs.
type Supervisor struct {
	logger *slog.Logger
}

func NewSupervisor(logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{logger: logger}
}

// WaitAll blocks until every running job has exited, in whatever order they
// finish. A non-zero exit marks the job failed and is logged; it is never
// returned as an error, the chunk simply contributes no results.
func (s *Supervisor) WaitAll(jobs []*ChunkJob) {
	var g errgroup.Group
	for _, job := range jobs {
		if job.Status != JobStatusRunning {
			continue
		}
		job := job
		g.Go(func() error {
			s.reap(job, job.cmd.Wait())
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Supervisor) reap(job *ChunkJob, waitErr error) {
	job.closeLog()
	logger := s.logger.With("chunk", job.Index, "handle", job.Handle.String())

	if waitErr == nil {
		MarkDone(job)
		logger.Info("classifier finished", "output", job.OutputPath, "duration", job.Duration())
		return
	}

	code := -1
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		code = exitErr.ExitCode()
	}
	MarkFailed(job, code, waitErr)
	logger.Info("classifier failed", "exit_code", code, "err", waitErr, "log", job.LogPath, "duration", job.Duration())
}
