package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lims/lims/internal/platform/apperr"
)

// StageHandler executes the business logic for one stage. Handlers run
// synchronously while the engine holds the workflow's lock; the returned
// payload is recorded on the step.
type StageHandler func(ctx context.Context, wf *Workflow, step *Step) (json.RawMessage, error)

// Engine drives workflows through their fixed stages. All step transitions
// for one workflow are serialized by a per-workflow mutex, so two concurrent
// triggers cannot both mark a step in_progress.
type Engine struct {
	repo     Repository
	logger   zerolog.Logger
	handlers map[string]StageHandler

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func NewEngine(repo Repository, logger zerolog.Logger) *Engine {
	return &Engine{
		repo:     repo,
		logger:   logger,
		handlers: defaultHandlers(),
		locks:    make(map[uuid.UUID]*sync.Mutex),
	}
}

// RegisterHandler plugs in stage-specific logic for the named stage. Stages
// without a handler complete with a generic payload.
func (e *Engine) RegisterHandler(stage string, h StageHandler) {
	e.handlers[stage] = h
}

func (e *Engine) lockFor(id uuid.UUID) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[id]
	if !ok {
		l = &sync.Mutex{}
		e.locks[id] = l
	}
	return l
}

// Start creates the workflow for a sample with the five stages pre-seeded,
// the first already completed, and immediately advances through the pending
// stages.
func (e *Engine) Start(ctx context.Context, sampleID uuid.UUID) (*Workflow, error) {
	now := time.Now()
	wf := &Workflow{
		SampleID:  sampleID,
		Status:    StatusStarted,
		StartTime: now,
		Steps:     make([]Step, len(StageNames)),
	}
	for i, name := range StageNames {
		wf.Steps[i] = Step{Name: name, Status: StepPending}
	}
	received := &wf.Steps[0]
	received.Status = StepCompleted
	received.StartTime = &now
	received.EndTime = &now
	received.Result = json.RawMessage(`{"message":"sample received"}`)

	if err := e.repo.Create(ctx, wf); err != nil {
		return nil, err
	}

	e.logger.Info().
		Str("workflow_id", wf.ID.String()).
		Str("sample_id", sampleID.String()).
		Msg("workflow started")

	if err := e.ProcessNextStep(ctx, wf.ID); err != nil {
		return nil, err
	}
	return e.Get(ctx, wf.ID)
}

func (e *Engine) Get(ctx context.Context, id uuid.UUID) (*Workflow, error) {
	return e.repo.GetByID(ctx, id)
}

func (e *Engine) GetBySample(ctx context.Context, sampleID uuid.UUID) (*Workflow, error) {
	return e.repo.GetBySampleID(ctx, sampleID)
}

func (e *Engine) List(ctx context.Context, status string, limit, offset int) ([]*Workflow, int, error) {
	return e.repo.List(ctx, status, limit, offset)
}

// ProcessNextStep advances the workflow: the first pending step is marked
// in_progress, its stage handler runs, and the step completes or fails.
// Completion cascades to the next pending step. A terminal workflow is left
// untouched.
func (e *Engine) ProcessNextStep(ctx context.Context, workflowID uuid.UUID) error {
	l := e.lockFor(workflowID)
	l.Lock()
	defer l.Unlock()

	wf, err := e.repo.GetByID(ctx, workflowID)
	if err != nil {
		return err
	}
	return e.advance(ctx, wf)
}

// advance runs pending steps in order until none remain or one fails. Caller
// must hold the workflow's lock.
func (e *Engine) advance(ctx context.Context, wf *Workflow) error {
	for wf.Status == StatusStarted {
		idx := wf.NextPendingIndex()
		if idx == -1 {
			return nil
		}
		step := &wf.Steps[idx]

		now := time.Now()
		step.Status = StepInProgress
		step.StartTime = &now
		if err := e.repo.Update(ctx, wf); err != nil {
			return err
		}

		payload, err := e.runHandler(ctx, wf, step)
		if err != nil {
			e.logger.Error().
				Err(err).
				Str("workflow_id", wf.ID.String()).
				Str("stage", step.Name).
				Msg("stage handler failed")
			return e.failStep(ctx, wf, idx, err.Error())
		}
		if err := e.completeStep(ctx, wf, idx, payload); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) runHandler(ctx context.Context, wf *Workflow, step *Step) (json.RawMessage, error) {
	if h, ok := e.handlers[step.Name]; ok {
		return h(ctx, wf, step)
	}
	payload, err := json.Marshal(map[string]string{
		"message": fmt.Sprintf("%s completed", step.Name),
	})
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// CompleteStep marks the given step completed with its result payload and
// cascades to the next pending step. Used when a stage's work finishes
// outside the engine.
func (e *Engine) CompleteStep(ctx context.Context, workflowID uuid.UUID, stepIndex int, result json.RawMessage) error {
	l := e.lockFor(workflowID)
	l.Lock()
	defer l.Unlock()

	wf, err := e.repo.GetByID(ctx, workflowID)
	if err != nil {
		return err
	}
	if stepIndex < 0 || stepIndex >= len(wf.Steps) {
		return fmt.Errorf("step index %d out of range: %w", stepIndex, apperr.ErrNotFound)
	}
	if wf.Status != StatusStarted {
		return apperr.Conflict(fmt.Sprintf("workflow is %s", wf.Status))
	}

	if err := e.completeStep(ctx, wf, stepIndex, result); err != nil {
		return err
	}
	return e.advance(ctx, wf)
}

// FailStep marks the given step failed and fails the whole workflow. No
// further steps execute.
func (e *Engine) FailStep(ctx context.Context, workflowID uuid.UUID, stepIndex int, message string) error {
	l := e.lockFor(workflowID)
	l.Lock()
	defer l.Unlock()

	wf, err := e.repo.GetByID(ctx, workflowID)
	if err != nil {
		return err
	}
	if stepIndex < 0 || stepIndex >= len(wf.Steps) {
		return fmt.Errorf("step index %d out of range: %w", stepIndex, apperr.ErrNotFound)
	}
	return e.failStep(ctx, wf, stepIndex, message)
}

// completeStep records a step's completion and, when it was the last one,
// completes the workflow. Caller must hold the workflow's lock.
func (e *Engine) completeStep(ctx context.Context, wf *Workflow, idx int, result json.RawMessage) error {
	now := time.Now()
	step := &wf.Steps[idx]
	step.Status = StepCompleted
	step.EndTime = &now
	if step.StartTime == nil {
		step.StartTime = &now
	}
	step.Result = result

	if wf.AllStepsCompleted() {
		wf.Status = StatusCompleted
		wf.EndTime = &now
		e.logger.Info().
			Str("workflow_id", wf.ID.String()).
			Str("sample_id", wf.SampleID.String()).
			Msg("workflow completed")
	}
	return e.repo.Update(ctx, wf)
}

// failStep records a step failure and fails the workflow. Caller must hold
// the workflow's lock.
func (e *Engine) failStep(ctx context.Context, wf *Workflow, idx int, message string) error {
	now := time.Now()
	step := &wf.Steps[idx]
	step.Status = StepFailed
	step.EndTime = &now
	if step.StartTime == nil {
		step.StartTime = &now
	}
	step.ErrorMessage = &message

	wf.Status = StatusFailed
	wf.EndTime = &now
	wf.ErrorMessage = &message

	e.logger.Warn().
		Str("workflow_id", wf.ID.String()).
		Str("stage", step.Name).
		Str("error", message).
		Msg("workflow failed")
	return e.repo.Update(ctx, wf)
}
