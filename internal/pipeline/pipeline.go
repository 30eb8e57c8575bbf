// Package pipeline runs the split, classify, aggregate and reconcile phases
// of a parallel VirFinder run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/quadram-institute-bioscience/parallel-virfinder/internal/aggregate"
	"github.com/quadram-institute-bioscience/parallel-virfinder/internal/bus"
	"github.com/quadram-institute-bioscience/parallel-virfinder/internal/ledger"
	"github.com/quadram-institute-bioscience/parallel-virfinder/internal/metrics"
	"github.com/quadram-institute-bioscience/parallel-virfinder/internal/process"
	"github.com/quadram-institute-bioscience/parallel-virfinder/internal/reconcile"
	"github.com/quadram-institute-bioscience/parallel-virfinder/internal/tools"
	"github.com/quadram-institute-bioscience/parallel-virfinder/pkg/schema"
)

// Runner wires the external tools to the bookkeeping around a run. Only
// Splitter and Classifier are required.
type Runner struct {
	Splitter   tools.Splitter
	Classifier tools.Classifier

	Store       ledger.Store
	Publisher   bus.Publisher
	Subject     string
	Metrics     *metrics.Recorder
	MetricsFile string
	Logger      *slog.Logger
}

// Summary is what a finished run reports back.
type Summary struct {
	RunID      string
	Workspace  string
	Parsed     int
	Passed     int
	Reconciled int
	Jobs       []*process.ChunkJob
}

// Run executes one run. Any returned error means the process should exit 1;
// per-chunk worker failures and reconciliation mismatches are not errors.
func (r *Runner) Run(ctx context.Context, cfg Config) (Summary, error) {
	r.defaults()
	if err := cfg.Validate(); err != nil {
		return Summary{}, err
	}

	runID := uuid.New().String()
	logger := r.Logger.With("run_id", runID)
	state := &runState{RunID: runID, Input: cfg.Input, Chunks: cfg.Parallel, StartTime: time.Now()}
	sum := Summary{RunID: runID}

	if !cfg.SkipChecks {
		if err := tools.CheckDependencies(ctx, r.Splitter, r.Classifier); err != nil {
			return sum, &PreconditionError{Reason: "missing dependency", Err: err}
		}
		logger.Debug("dependencies available", "splitter", r.Splitter.Name(), "classifier", r.Classifier.Name())
	}

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	tmpDir := cfg.TmpDir
	if tmpDir == "" {
		tmpDir = os.TempDir()
	}
	workspace := filepath.Join(tmpDir, "parallel-virfinder-"+runID)
	if err := os.Mkdir(workspace, 0o755); err != nil {
		return sum, &PreconditionError{Reason: "create workspace", Err: err}
	}
	sum.Workspace = workspace
	defer r.cleanup(logger, workspace, cfg.KeepTemp)

	run := ledger.Run{
		ID:        runID,
		Input:     cfg.Input,
		Output:    cfg.Output,
		Parallel:  cfg.Parallel,
		MinScore:  cfg.Criteria.MinScore,
		MaxPValue: cfg.Criteria.MaxPValue,
		Status:    ledger.RunRunning,
		StartedAt: state.StartTime,
	}
	if err := r.Store.SaveRun(ctx, run); err != nil {
		logger.Warn("record run in ledger failed", "err", err)
	}

	if info, err := os.Stat(cfg.Input); err == nil {
		logger.Info("run starting", "input", cfg.Input, "size", humanize.Bytes(uint64(info.Size())),
			"parallel", cfg.Parallel, "workspace", workspace, "min_score", cfg.Criteria.MinScore, "max_p_value", cfg.Criteria.MaxPValue)
	}

	fail := func(err error, failureType schema.FailureType) (Summary, error) {
		r.finish(ctx, logger, state, &run, sum, cfg, err, failureType)
		return sum, err
	}

	// Step 1: split
	publishLifecycleEvent(r.Publisher, r.Subject, state.AddLifecycleEvent(schema.StageSplit, nil, ""))
	if err := r.Splitter.Split(ctx, cfg.Input, workspace, cfg.Parallel); err != nil {
		logger.Error("failed to split FASTA file", "err", err)
		return fail(err, schema.FailureTypeSplit)
	}
	logger.Info("FASTA split into chunks", "chunks", cfg.Parallel)

	// Step 2: classify every chunk and wait for all of them
	publishLifecycleEvent(r.Publisher, r.Subject, state.AddLifecycleEvent(schema.StageClassify, nil, ""))
	jobs := process.NewLauncher(r.Classifier, logger).LaunchAll(ctx, workspace, cfg.Parallel)
	process.NewSupervisor(logger).WaitAll(jobs)
	sum.Jobs = jobs
	r.recordChunks(ctx, logger, runID, jobs)

	if err := ctx.Err(); err != nil {
		logger.Error("run interrupted while classifiers were running", "err", err)
		return fail(fmt.Errorf("classify: %w", err), schema.FailureTypeCanceled)
	}

	// Step 3: merge reports in launch order
	publishLifecycleEvent(r.Publisher, r.Subject, state.AddLifecycleEvent(schema.StageAggregate, nil, ""))
	res, err := aggregate.AggregateFile(cfg.Output, process.Outputs(jobs), cfg.Criteria, aggregate.Options{
		Keep:   cfg.KeepTemp,
		Logger: logger,
	})
	sum.Parsed, sum.Passed = res.Parsed, res.Passed
	if err != nil {
		logger.Error("aggregate results failed", "err", err)
		failureType := schema.FailureTypeIO
		if errors.Is(err, aggregate.ErrMalformedRow) {
			failureType = schema.FailureTypeAggregate
		}
		return fail(err, failureType)
	}
	logger.Info("saved CSV file", "path", cfg.Output, "passed", res.Passed, "parsed", res.Parsed)

	// Step 4: optional FASTA subset
	if cfg.Fasta != "" {
		publishLifecycleEvent(r.Publisher, r.Subject, state.AddLifecycleEvent(schema.StageReconcile, nil, ""))
		logger.Info("saving FASTA file", "path", cfg.Fasta)
		n, err := reconcile.ReconcileFile(cfg.Input, res.PassedIDs, cfg.Fasta)
		sum.Reconciled = n
		if err != nil {
			logger.Error("reconcile sequences failed", "err", err)
			return fail(err, schema.FailureTypeIO)
		}
		if n != res.Passed {
			logger.Error("failed to save all sequences", "printed", n, "passed", res.Passed)
		}
	}

	logger.Info("run complete", "passed", res.Passed, "parsed", res.Parsed, "duration", state.ProcessingDuration())
	r.finish(ctx, logger, state, &run, sum, cfg, nil, "")
	return sum, nil
}

func (r *Runner) defaults() {
	if r.Logger == nil {
		r.Logger = slog.Default()
	}
	if r.Store == nil {
		r.Store = ledger.NewMemoryStore()
	}
	if r.Publisher == nil {
		r.Publisher = bus.Nop{}
	}
	if r.Subject == "" {
		r.Subject = "parallel-virfinder.runs"
	}
	if r.Metrics == nil {
		r.Metrics = metrics.NewRecorder()
	}
}

func (r *Runner) recordChunks(ctx context.Context, logger *slog.Logger, runID string, jobs []*process.ChunkJob) {
	chunks := make([]ledger.Chunk, 0, len(jobs))
	counts := make(map[string]int)
	for _, j := range jobs {
		chunks = append(chunks, ledger.Chunk{
			Index:      j.Index,
			Handle:     j.Handle.String(),
			Status:     string(j.Status),
			ExitCode:   j.ExitCode,
			Error:      j.Error,
			StartedAt:  j.StartedAt,
			FinishedAt: j.FinishedAt,
		})
		counts[string(j.Status)]++
	}
	// the ledger write must outlive a canceled run context
	if err := r.Store.SaveChunks(context.WithoutCancel(ctx), runID, chunks); err != nil {
		logger.Warn("record chunks in ledger failed", "err", err)
	}
	r.Metrics.ObserveChunks(counts)
	logger.Info("all classifiers finished",
		"done", counts[string(process.JobStatusDone)],
		"failed", counts[string(process.JobStatusFailed)],
		"skipped", counts[string(process.JobStatusSkipped)])
}

// finish records the outcome everywhere it is observed: ledger, metrics file
// and event bus.
func (r *Runner) finish(ctx context.Context, logger *slog.Logger, state *runState, run *ledger.Run, sum Summary, cfg Config, cause error, failureType schema.FailureType) {
	ctx = context.WithoutCancel(ctx)
	finished := time.Now()

	stage := schema.StageCompleted
	run.Status = ledger.RunCompleted
	if cause != nil {
		stage = schema.StageFailed
		run.Status = ledger.RunFailed
		run.Error = cause.Error()
	}
	event := state.AddLifecycleEvent(stage, cause, failureType)
	publishLifecycleEvent(r.Publisher, r.Subject, event)

	run.Parsed, run.Passed, run.Reconciled = sum.Parsed, sum.Passed, sum.Reconciled
	run.FinishedAt = finished
	if err := r.Store.SaveRun(ctx, *run); err != nil {
		logger.Warn("record run in ledger failed", "err", err)
	}

	r.Metrics.ObserveAggregate(sum.Parsed, sum.Passed)
	r.Metrics.ObserveReconciled(sum.Reconciled)
	r.Metrics.ObserveRun(state.ProcessingDuration(), cause == nil, finished)
	if r.MetricsFile != "" {
		if err := r.Metrics.WriteTextfile(r.MetricsFile); err != nil {
			logger.Warn("write metrics file failed", "path", r.MetricsFile, "err", err)
		}
	}

	done := schema.RunDone{
		RunID:            state.RunID,
		Input:            cfg.Input,
		Output:           cfg.Output,
		Fasta:            cfg.Fasta,
		Parsed:           sum.Parsed,
		Passed:           sum.Passed,
		Reconciled:       sum.Reconciled,
		ProcessingTimeMs: state.ProcessingDuration().Milliseconds(),
		Chunks:           chunkResults(sum.Jobs),
		Lifecycle:        state.Lifecycle,
		HappenedAt:       finished.Unix(),
	}
	if cause != nil {
		done.Error = cause.Error()
		done.FailureType = failureType
	}
	if err := r.Publisher.PublishJSON(r.Subject, done); err != nil {
		logger.Error("publish result failed", "subject", r.Subject, "err", err)
	}
}

func (r *Runner) cleanup(logger *slog.Logger, workspace string, keep bool) {
	if keep {
		logger.Info("kept temporary files", "workspace", workspace)
		return
	}
	if err := os.RemoveAll(workspace); err != nil {
		logger.Warn("cleanup failed", "workspace", workspace, "err", err)
	}
}
