package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// defaultHandlers returns the built-in simulated stage logic. Real stage
// behavior (instrument integration, report rendering) replaces these via
// RegisterHandler.
func defaultHandlers() map[string]StageHandler {
	return map[string]StageHandler{
		StageSamplePreparation: prepareStage,
		StageTesting:           testingStage,
		StageResultAnalysis:    analysisStage,
		StageReportGeneration:  reportStage,
	}
}

func prepareStage(ctx context.Context, wf *Workflow, step *Step) (json.RawMessage, error) {
	return json.Marshal(map[string]any{
		"message":     "sample prepared for testing",
		"prepared_at": time.Now().UTC().Format(time.RFC3339),
	})
}

func testingStage(ctx context.Context, wf *Workflow, step *Step) (json.RawMessage, error) {
	return json.Marshal(map[string]any{
		"message":    "testing completed",
		"instrument": "analyzer-01",
		"run_id":     uuid.New().String(),
	})
}

func analysisStage(ctx context.Context, wf *Workflow, step *Step) (json.RawMessage, error) {
	return json.Marshal(map[string]any{
		"message": "results analyzed",
		"notes":   fmt.Sprintf("automated analysis for sample %s", wf.SampleID),
	})
}

func reportStage(ctx context.Context, wf *Workflow, step *Step) (json.RawMessage, error) {
	return json.Marshal(map[string]any{
		"message":   "report generated",
		"report_id": uuid.New().String(),
	})
}
