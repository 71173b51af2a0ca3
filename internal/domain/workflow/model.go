package workflow

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Workflow statuses.
const (
	StatusStarted   = "started"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Step statuses.
const (
	StepPending    = "pending"
	StepInProgress = "in_progress"
	StepCompleted  = "completed"
	StepFailed     = "failed"
)

// The five fixed stages every sample moves through, in order. The first is
// completed at workflow creation since receiving the sample is what starts
// the workflow.
const (
	StageSampleReceived    = "sample_received"
	StageSamplePreparation = "sample_preparation"
	StageTesting           = "testing"
	StageResultAnalysis    = "result_analysis"
	StageReportGeneration  = "report_generation"
)

// StageNames lists the stages in execution order.
var StageNames = []string{
	StageSampleReceived,
	StageSamplePreparation,
	StageTesting,
	StageResultAnalysis,
	StageReportGeneration,
}

// Step is one named stage within a workflow. Steps are embedded in the
// workflow row as JSON, not stored independently.
type Step struct {
	Name         string          `json:"name"`
	Status       string          `json:"status"`
	StartTime    *time.Time      `json:"start_time,omitempty"`
	EndTime      *time.Time      `json:"end_time,omitempty"`
	Result       json.RawMessage `json:"result,omitempty"`
	ErrorMessage *string         `json:"error_message,omitempty"`
}

// Workflow tracks one sample's progress through the fixed stages. At most one
// step is in_progress at any time; steps complete strictly in order; a single
// step failure fails the whole workflow.
type Workflow struct {
	ID           uuid.UUID  `json:"id"`
	SampleID     uuid.UUID  `json:"sample_id"`
	Status       string     `json:"status"`
	Steps        []Step     `json:"steps"`
	StartTime    time.Time  `json:"start_time"`
	EndTime      *time.Time `json:"end_time,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// NextPendingIndex returns the index of the first pending step, or -1 if no
// step is pending.
func (w *Workflow) NextPendingIndex() int {
	for i := range w.Steps {
		if w.Steps[i].Status == StepPending {
			return i
		}
	}
	return -1
}

// AllStepsCompleted reports whether every step has finished successfully.
func (w *Workflow) AllStepsCompleted() bool {
	for i := range w.Steps {
		if w.Steps[i].Status != StepCompleted {
			return false
		}
	}
	return true
}
