package pipeline

import (
	"log/slog"
	"time"

	"github.com/quadram-institute-bioscience/parallel-virfinder/internal/bus"
	"github.com/quadram-institute-bioscience/parallel-virfinder/internal/process"
	"github.com/quadram-institute-bioscience/parallel-virfinder/pkg/schema"
)

// runState accumulates the lifecycle of a run for the final event.
type runState struct {
	RunID     string
	Input     string
	Chunks    int
	StartTime time.Time
	Lifecycle []schema.RunLifecycleEvent
}

func (rs *runState) AddLifecycleEvent(stage schema.RunStage, err error, failureType schema.FailureType) schema.RunLifecycleEvent {
	event := schema.RunLifecycleEvent{
		RunID:      rs.RunID,
		Stage:      stage,
		Input:      rs.Input,
		Chunks:     rs.Chunks,
		HappenedAt: time.Now().Unix(),
	}
	if err != nil {
		event.Error = err.Error()
		event.FailureType = failureType
	}
	rs.Lifecycle = append(rs.Lifecycle, event)
	return event
}

func (rs *runState) ProcessingDuration() time.Duration {
	if rs.StartTime.IsZero() {
		return 0
	}
	return time.Since(rs.StartTime)
}

func publishLifecycleEvent(pub bus.Publisher, subject string, event schema.RunLifecycleEvent) {
	if err := pub.PublishJSON(subject+".lifecycle", event); err != nil {
		slog.Error("publish lifecycle event failed", "subject", subject, "stage", event.Stage, "err", err)
	}
}

func chunkResults(jobs []*process.ChunkJob) []schema.ChunkResult {
	results := make([]schema.ChunkResult, 0, len(jobs))
	for _, j := range jobs {
		results = append(results, schema.ChunkResult{
			Index:      j.Index,
			Handle:     j.Handle.String(),
			Status:     string(j.Status),
			ExitCode:   j.ExitCode,
			DurationMs: j.Duration().Milliseconds(),
			Error:      j.Error,
		})
	}
	return results
}
