package sample

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lims/lims/internal/platform/apperr"
	"github.com/lims/lims/internal/platform/events"
)

// CompletionInput carries the measured data recorded when a sample finishes
// processing.
type CompletionInput struct {
	Results      map[string]any `json:"results"`
	NormalRanges map[string]any `json:"normal_ranges,omitempty"`
	Notes        string         `json:"notes,omitempty"`
	CompletedBy  string         `json:"completed_by,omitempty"`
}

// ResultRecorder creates the result row for a completed sample. Implemented
// by the result service; the indirection keeps this package free of a result
// dependency.
type ResultRecorder interface {
	RecordCompletion(ctx context.Context, sampleID uuid.UUID, testTypeID int64, input CompletionInput) (uuid.UUID, error)
}

type Service struct {
	repo    Repository
	results ResultRecorder
	bus     *events.Bus
	logger  zerolog.Logger
}

func NewService(repo Repository, results ResultRecorder, bus *events.Bus, logger zerolog.Logger) *Service {
	return &Service{repo: repo, results: results, bus: bus, logger: logger}
}

// Create registers a new sample and announces it on the event bus so the
// workflow engine can start tracking it. A workflow failure does not fail
// sample creation.
func (s *Service) Create(ctx context.Context, smp *Sample) error {
	if smp.LabID == "" {
		return fmt.Errorf("lab_id is required")
	}
	if smp.Barcode == "" {
		return fmt.Errorf("barcode is required")
	}
	if smp.TestTypeID == 0 {
		return fmt.Errorf("test_type_id is required")
	}
	if smp.Status == "" {
		smp.Status = StatusCollected
	}
	if smp.Status != StatusCollected && smp.Status != StatusPending {
		return fmt.Errorf("invalid initial status: %s", smp.Status)
	}

	if err := s.repo.Create(ctx, smp); err != nil {
		return err
	}

	s.logger.Info().
		Str("sample_id", smp.ID.String()).
		Str("lab_id", smp.LabID).
		Str("barcode", smp.Barcode).
		Str("status", smp.Status).
		Msg("sample created")

	s.bus.Publish(ctx, events.Event{Type: events.SampleCreated, SubjectID: smp.ID, Payload: smp})
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Sample, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, status string, limit, offset int) ([]*Sample, int, error) {
	return s.repo.List(ctx, status, limit, offset)
}

// UpdateStatus changes a sample's status, enforcing the transition table.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, newStatus string, notes *string) (*Sample, error) {
	smp, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(smp.Status, newStatus) {
		return nil, apperr.InvalidTransition("sample", smp.Status, newStatus)
	}

	from := smp.Status
	smp.Status = newStatus
	if notes != nil {
		smp.Notes = notes
	}
	if err := s.repo.Update(ctx, smp); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("sample_id", id.String()).
		Str("from", from).
		Str("to", newStatus).
		Msg("sample status updated")
	return smp, nil
}

// Process moves a collected or pending sample into processing.
func (s *Service) Process(ctx context.Context, id uuid.UUID, processedBy string) (*Sample, error) {
	smp, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if smp.Status != StatusCollected && smp.Status != StatusPending {
		return nil, apperr.InvalidTransition("sample", smp.Status, StatusProcessing)
	}

	smp.Status = StatusProcessing
	if err := s.repo.Update(ctx, smp); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("sample_id", id.String()).
		Str("processed_by", processedBy).
		Msg("sample processing started")
	return smp, nil
}

// Complete records the sample's result and moves it to completed. The result
// row is written first; a crash between the two writes leaves the sample in
// processing with its result already stored.
func (s *Service) Complete(ctx context.Context, id uuid.UUID, input CompletionInput) (uuid.UUID, error) {
	smp, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return uuid.Nil, err
	}
	if smp.Status != StatusProcessing {
		return uuid.Nil, apperr.InvalidTransition("sample", smp.Status, StatusCompleted)
	}
	if len(input.Results) == 0 {
		return uuid.Nil, fmt.Errorf("results are required")
	}

	resultID, err := s.results.RecordCompletion(ctx, smp.ID, smp.TestTypeID, input)
	if err != nil {
		return uuid.Nil, fmt.Errorf("record result: %w", err)
	}

	smp.Status = StatusCompleted
	if err := s.repo.Update(ctx, smp); err != nil {
		return uuid.Nil, err
	}

	s.logger.Info().
		Str("sample_id", id.String()).
		Str("result_id", resultID.String()).
		Str("completed_by", input.CompletedBy).
		Msg("sample completed")

	s.bus.Publish(ctx, events.Event{Type: events.SampleCompleted, SubjectID: smp.ID})
	return resultID, nil
}

// Delete soft-deletes a sample. Samples still in processing cannot be
// deleted.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	smp, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if smp.Status == StatusProcessing {
		return apperr.Conflict("sample is being processed")
	}
	if smp.Status == StatusDeleted {
		return nil
	}

	smp.Status = StatusDeleted
	if err := s.repo.Update(ctx, smp); err != nil {
		return err
	}

	s.logger.Info().Str("sample_id", id.String()).Msg("sample deleted")
	return nil
}
