package sample

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lims/lims/internal/platform/apperr"
	"github.com/lims/lims/internal/platform/events"
)

// -- Mock Repository --

type mockRepo struct {
	samples map[uuid.UUID]*Sample
}

func newMockRepo() *mockRepo {
	return &mockRepo{samples: make(map[uuid.UUID]*Sample)}
}

func (m *mockRepo) Create(_ context.Context, s *Sample) error {
	for _, existing := range m.samples {
		if existing.LabID == s.LabID && existing.Barcode == s.Barcode {
			return apperr.Conflict("sample with this lab_id and barcode already exists")
		}
	}
	s.ID = uuid.New()
	s.CreatedAt = time.Now()
	s.UpdatedAt = time.Now()
	m.samples[s.ID] = s
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Sample, error) {
	s, ok := m.samples[id]
	if !ok {
		return nil, apperr.NotFound("sample", id)
	}
	return s, nil
}

func (m *mockRepo) Update(_ context.Context, s *Sample) error {
	if _, ok := m.samples[s.ID]; !ok {
		return apperr.NotFound("sample", s.ID)
	}
	s.UpdatedAt = time.Now()
	m.samples[s.ID] = s
	return nil
}

func (m *mockRepo) List(_ context.Context, status string, limit, offset int) ([]*Sample, int, error) {
	var items []*Sample
	for _, s := range m.samples {
		if status != "" && s.Status != status {
			continue
		}
		if status == "" && s.Status == StatusDeleted {
			continue
		}
		items = append(items, s)
	}
	return items, len(items), nil
}

type mockResultRecorder struct {
	calls []uuid.UUID
	err   error
}

func (m *mockResultRecorder) RecordCompletion(_ context.Context, sampleID uuid.UUID, _ int64, _ CompletionInput) (uuid.UUID, error) {
	if m.err != nil {
		return uuid.Nil, m.err
	}
	m.calls = append(m.calls, sampleID)
	return uuid.New(), nil
}

func newTestService() (*Service, *mockRepo, *mockResultRecorder, *events.Bus) {
	repo := newMockRepo()
	recorder := &mockResultRecorder{}
	bus := events.NewBus(zerolog.Nop())
	svc := NewService(repo, recorder, bus, zerolog.Nop())
	return svc, repo, recorder, bus
}

func createTestSample(t *testing.T, svc *Service) *Sample {
	t.Helper()
	smp := &Sample{LabID: "LAB-1", Barcode: "BC-0001", TestTypeID: 1, SampleType: "blood", PatientID: "patient-1"}
	if err := svc.Create(context.Background(), smp); err != nil {
		t.Fatalf("create sample: %v", err)
	}
	return smp
}

// -- Tests --

func TestCreateSample_DefaultsAndEvent(t *testing.T) {
	svc, _, _, bus := newTestService()

	var created uuid.UUID
	bus.Subscribe(events.SampleCreated, func(_ context.Context, evt events.Event) error {
		created = evt.SubjectID
		return nil
	})

	smp := createTestSample(t, svc)

	if smp.Status != StatusCollected {
		t.Errorf("expected default status collected, got %s", smp.Status)
	}
	if created != smp.ID {
		t.Errorf("expected sample.created event for %s, got %s", smp.ID, created)
	}
}

func TestCreateSample_Validation(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	tests := []struct {
		name string
		smp  Sample
	}{
		{"missing lab_id", Sample{Barcode: "BC-1", TestTypeID: 1}},
		{"missing barcode", Sample{LabID: "LAB-1", TestTypeID: 1}},
		{"missing test_type_id", Sample{LabID: "LAB-1", Barcode: "BC-1"}},
		{"bad initial status", Sample{LabID: "LAB-1", Barcode: "BC-1", TestTypeID: 1, Status: StatusCompleted}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			smp := tt.smp
			if err := svc.Create(ctx, &smp); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestCreateSample_DuplicateBarcode(t *testing.T) {
	svc, _, _, _ := newTestService()
	createTestSample(t, svc)

	dup := &Sample{LabID: "LAB-1", Barcode: "BC-0001", TestTypeID: 1}
	err := svc.Create(context.Background(), dup)
	if !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

func TestProcessSample(t *testing.T) {
	svc, _, _, _ := newTestService()
	smp := createTestSample(t, svc)

	got, err := svc.Process(context.Background(), smp.ID, "tech1")
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if got.Status != StatusProcessing {
		t.Errorf("expected processing, got %s", got.Status)
	}

	// A second process call is an illegal transition.
	_, err = svc.Process(context.Background(), smp.ID, "tech1")
	if !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestCompleteSample(t *testing.T) {
	svc, repo, recorder, _ := newTestService()
	smp := createTestSample(t, svc)

	input := CompletionInput{
		Results:     map[string]any{"total_cholesterol": "185 mg/dL"},
		CompletedBy: "tech1",
	}

	// Completing before processing is illegal.
	_, err := svc.Complete(context.Background(), smp.ID, input)
	if !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	if _, err := svc.Process(context.Background(), smp.ID, "tech1"); err != nil {
		t.Fatalf("process: %v", err)
	}

	resultID, err := svc.Complete(context.Background(), smp.ID, input)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if resultID == uuid.Nil {
		t.Error("expected result id")
	}
	if len(recorder.calls) != 1 || recorder.calls[0] != smp.ID {
		t.Errorf("expected one result recorded for %s", smp.ID)
	}
	if repo.samples[smp.ID].Status != StatusCompleted {
		t.Errorf("expected completed, got %s", repo.samples[smp.ID].Status)
	}
}

func TestCompleteSample_ResultFailureKeepsProcessing(t *testing.T) {
	svc, repo, recorder, _ := newTestService()
	smp := createTestSample(t, svc)

	if _, err := svc.Process(context.Background(), smp.ID, "tech1"); err != nil {
		t.Fatalf("process: %v", err)
	}

	recorder.err = errors.New("store unavailable")
	_, err := svc.Complete(context.Background(), smp.ID, CompletionInput{
		Results: map[string]any{"wbc": "6.1"},
	})
	if err == nil {
		t.Fatal("expected error when result recording fails")
	}
	if repo.samples[smp.ID].Status != StatusProcessing {
		t.Errorf("sample should stay in processing, got %s", repo.samples[smp.ID].Status)
	}
}

func TestDeleteSample(t *testing.T) {
	svc, repo, _, _ := newTestService()
	smp := createTestSample(t, svc)

	if err := svc.Delete(context.Background(), smp.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if repo.samples[smp.ID].Status != StatusDeleted {
		t.Errorf("expected deleted, got %s", repo.samples[smp.ID].Status)
	}
}

func TestDeleteSample_BlockedWhileProcessing(t *testing.T) {
	svc, _, _, _ := newTestService()
	smp := createTestSample(t, svc)

	if _, err := svc.Process(context.Background(), smp.ID, "tech1"); err != nil {
		t.Fatalf("process: %v", err)
	}

	err := svc.Delete(context.Background(), smp.ID)
	if !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

func TestUpdateStatus_TransitionTable(t *testing.T) {
	tests := []struct {
		from string
		to   string
		ok   bool
	}{
		{StatusCollected, StatusProcessing, true},
		{StatusPending, StatusProcessing, true},
		{StatusProcessing, StatusCompleted, true},
		{StatusCollected, StatusCompleted, false},
		{StatusCompleted, StatusProcessing, false},
		{StatusProcessing, StatusDeleted, false},
		{StatusCompleted, StatusDeleted, true},
		{StatusDeleted, StatusCollected, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.ok {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.ok)
		}
	}
}
