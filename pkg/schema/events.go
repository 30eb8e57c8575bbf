// pkg/schema/events.go
package schema

type RunStage string

const (
	StageSplit     RunStage = "split"
	StageClassify  RunStage = "classify"
	StageAggregate RunStage = "aggregate"
	StageReconcile RunStage = "reconcile"
	StageCompleted RunStage = "completed"
	StageFailed    RunStage = "failed"
)

type FailureType string

const (
	FailureTypePrecondition FailureType = "precondition"
	FailureTypeSplit        FailureType = "split"
	FailureTypeAggregate    FailureType = "aggregate"
	FailureTypeCanceled     FailureType = "canceled"
	FailureTypeIO           FailureType = "io"
)

type ChunkResult struct {
	Index      int    `json:"index"`
	Handle     string `json:"handle"`
	Status     string `json:"status"`
	ExitCode   int    `json:"exit_code"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

type RunLifecycleEvent struct {
	RunID       string      `json:"run_id"`
	Stage       RunStage    `json:"stage"`
	Input       string      `json:"input"`
	Chunks      int         `json:"chunks"`
	Error       string      `json:"error,omitempty"`
	FailureType FailureType `json:"failure_type,omitempty"`
	HappenedAt  int64       `json:"happened_at"`
}

type RunDone struct {
	RunID            string              `json:"run_id"`
	Input            string              `json:"input"`
	Output           string              `json:"output"`
	Fasta            string              `json:"fasta,omitempty"`
	Parsed           int                 `json:"parsed"`
	Passed           int                 `json:"passed"`
	Reconciled       int                 `json:"reconciled"`
	ProcessingTimeMs int64               `json:"processing_time_ms"`
	Chunks           []ChunkResult       `json:"chunks,omitempty"`
	Lifecycle        []RunLifecycleEvent `json:"lifecycle,omitempty"`
	Error            string              `json:"error,omitempty"`
	FailureType      FailureType         `json:"failure_type,omitempty"`
	HappenedAt       int64               `json:"happened_at"`
}
