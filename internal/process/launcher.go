package process

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/quadram-institute-bioscience/parallel-virfinder/internal/tools"
)

// Launcher starts one detached classifier process per non-empty chunk.
type Launcher struct {
	classifier tools.Classifier
	logger     *slog.Logger
}

func NewLauncher(classifier tools.Classifier, logger *slog.Logger) *Launcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Launcher{classifier: classifier, logger: logger}
}

// LaunchAll creates jobs for chunks 1..n in dir and starts a process for each
// chunk file that exists and is non-empty. It returns immediately; the jobs
// are in launch order and must be handed to a Supervisor.
func (l *Launcher) LaunchAll(ctx context.Context, dir string, n int) []*ChunkJob {
	jobs := make([]*ChunkJob, 0, n)
	for i := 1; i <= n; i++ {
		job := NewChunkJob(dir, i)
		l.launch(ctx, job)
		jobs = append(jobs, job)
	}
	return jobs
}

func (l *Launcher) launch(ctx context.Context, job *ChunkJob) {
	logger := l.logger.With("chunk", job.Index, "handle", job.Handle.String())

	info, err := os.Stat(job.InputPath)
	if err != nil || info.Size() == 0 {
		// fewer sequences than requested chunks
		MarkSkipped(job, "chunk missing or empty")
		logger.Info("skipping chunk, file missing or empty", "path", job.InputPath)
		return
	}

	cmd := l.classifier.Command(ctx, job.InputPath, job.OutputPath)
	logFile, err := os.Create(job.LogPath)
	if err != nil {
		logger.Warn("cannot create worker log, discarding stderr", "path", job.LogPath, "err", err)
	} else {
		cmd.Stderr = logFile
		job.logFile = logFile
	}

	if err := cmd.Start(); err != nil {
		job.closeLog()
		MarkFailed(job, -1, fmt.Errorf("start %s: %w", l.classifier.Name(), err))
		logger.Info("classifier failed to start", "err", err)
		return
	}
	job.cmd = cmd
	MarkRunning(job)
	logger.Debug("started classifier", "pid", job.Pid(), "input", job.InputPath, "output", job.OutputPath)
}

func (j *ChunkJob) closeLog() {
	if j.logFile != nil {
		_ = j.logFile.Close()
		j.logFile = nil
	}
}
