package report

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lims/lims/internal/domain/result"
	"github.com/lims/lims/internal/domain/sample"
	"github.com/lims/lims/internal/platform/apperr"
)

// -- Mocks --

type mockRepo struct {
	reports   map[uuid.UUID]*Report
	templates map[uuid.UUID]*Template
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		reports:   make(map[uuid.UUID]*Report),
		templates: make(map[uuid.UUID]*Template),
	}
}

func (m *mockRepo) Create(_ context.Context, r *Report) error {
	r.ID = uuid.New()
	r.CreatedAt = time.Now()
	r.UpdatedAt = time.Now()
	c := *r
	m.reports[r.ID] = &c
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Report, error) {
	r, ok := m.reports[id]
	if !ok {
		return nil, apperr.NotFound("report", id)
	}
	c := *r
	return &c, nil
}

func (m *mockRepo) ListBySample(_ context.Context, sampleID uuid.UUID) ([]*Report, error) {
	var items []*Report
	for _, r := range m.reports {
		if r.SampleID == sampleID {
			c := *r
			items = append(items, &c)
		}
	}
	return items, nil
}

func (m *mockRepo) Update(_ context.Context, r *Report) error {
	if _, ok := m.reports[r.ID]; !ok {
		return apperr.NotFound("report", r.ID)
	}
	c := *r
	m.reports[r.ID] = &c
	return nil
}

func (m *mockRepo) List(_ context.Context, status string, limit, offset int) ([]*Report, int, error) {
	var items []*Report
	for _, r := range m.reports {
		if status == "" || r.Status == status {
			c := *r
			items = append(items, &c)
		}
	}
	return items, len(items), nil
}

func (m *mockRepo) CreateTemplate(_ context.Context, t *Template) error {
	t.ID = uuid.New()
	c := *t
	m.templates[t.ID] = &c
	return nil
}

func (m *mockRepo) GetTemplate(_ context.Context, id uuid.UUID) (*Template, error) {
	t, ok := m.templates[id]
	if !ok {
		return nil, apperr.NotFound("report template", id)
	}
	c := *t
	return &c, nil
}

func (m *mockRepo) ListTemplates(_ context.Context, activeOnly bool) ([]*Template, error) {
	var items []*Template
	for _, t := range m.templates {
		if !activeOnly || t.IsActive {
			c := *t
			items = append(items, &c)
		}
	}
	return items, nil
}

type fakeResults struct {
	bySample map[uuid.UUID][]*result.Result
}

func (f *fakeResults) ListBySample(_ context.Context, sampleID uuid.UUID) ([]*result.Result, error) {
	return f.bySample[sampleID], nil
}

type fakeSamples struct {
	samples map[uuid.UUID]*sample.Sample
}

func (f *fakeSamples) Get(_ context.Context, id uuid.UUID) (*sample.Sample, error) {
	s, ok := f.samples[id]
	if !ok {
		return nil, apperr.NotFound("sample", id)
	}
	return s, nil
}

func reviewed(sampleID uuid.UUID) *result.Result {
	reviewer := "dr-house"
	notes := "within range"
	return &result.Result{
		ID:           uuid.New(),
		SampleID:     sampleID,
		TestTypeID:   1,
		Status:       result.StatusReviewed,
		Results:      map[string]any{"glucose": "95 mg/dL"},
		NormalRanges: map[string]any{"glucose": "70-100 mg/dL"},
		ReviewedBy:   &reviewer,
		Notes:        &notes,
	}
}

func newTestService(smp *sample.Sample, results ...*result.Result) (*Service, *mockRepo) {
	repo := newMockRepo()
	svc := NewService(repo,
		&fakeResults{bySample: map[uuid.UUID][]*result.Result{smp.ID: results}},
		&fakeSamples{samples: map[uuid.UUID]*sample.Sample{smp.ID: smp}},
		zerolog.Nop())
	return svc, repo
}

func labSample() *sample.Sample {
	return &sample.Sample{
		ID:         uuid.New(),
		LabID:      "LAB-01",
		Barcode:    "BC-007",
		TestTypeID: 1,
		SampleType: "blood",
		PatientID:  "patient-9",
		Status:     sample.StatusCompleted,
	}
}

// -- Tests --

func TestGenerateDraft(t *testing.T) {
	smp := labSample()
	svc, _ := newTestService(smp, reviewed(smp.ID))

	rep, err := svc.Generate(context.Background(), smp.ID, nil, "dr-house")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if rep.Status != StatusDraft {
		t.Errorf("expected draft, got %s", rep.Status)
	}

	var content struct {
		SampleID uuid.UUID `json:"sample_id"`
		Results  []struct {
			TestTypeID int64          `json:"test_type_id"`
			Results    map[string]any `json:"results"`
			ReviewedBy string         `json:"reviewed_by"`
		} `json:"results"`
		Summary struct {
			TotalTests int `json:"total_tests"`
		} `json:"summary"`
	}
	if err := json.Unmarshal(rep.Content, &content); err != nil {
		t.Fatalf("content not valid JSON: %v", err)
	}
	if content.SampleID != smp.ID {
		t.Errorf("content sample id mismatch: %s", content.SampleID)
	}
	if content.Summary.TotalTests != 1 {
		t.Errorf("expected total_tests 1, got %d", content.Summary.TotalTests)
	}
	if len(content.Results) != 1 || content.Results[0].Results["glucose"] != "95 mg/dL" {
		t.Errorf("result block missing measurements: %+v", content.Results)
	}
	if content.Results[0].ReviewedBy != "dr-house" {
		t.Errorf("expected reviewer in content, got %q", content.Results[0].ReviewedBy)
	}
}

func TestGenerateNoResults(t *testing.T) {
	smp := labSample()
	svc, _ := newTestService(smp)

	_, err := svc.Generate(context.Background(), smp.ID, nil, "dr-house")
	if !errors.Is(err, ErrNoResults) {
		t.Fatalf("expected ErrNoResults, got %v", err)
	}
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("ErrNoResults should map to conflict, got %v", err)
	}
}

func TestGenerateUnreviewedResult(t *testing.T) {
	smp := labSample()
	pending := reviewed(smp.ID)
	pending.Status = result.StatusPendingReview
	svc, _ := newTestService(smp, reviewed(smp.ID), pending)

	_, err := svc.Generate(context.Background(), smp.ID, nil, "dr-house")
	if !errors.Is(err, ErrNotAllReviewed) {
		t.Fatalf("expected ErrNotAllReviewed, got %v", err)
	}
}

func TestGenerateUnknownSample(t *testing.T) {
	smp := labSample()
	svc, _ := newTestService(smp, reviewed(smp.ID))

	_, err := svc.Generate(context.Background(), uuid.New(), nil, "dr-house")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFinalizeOnce(t *testing.T) {
	smp := labSample()
	svc, _ := newTestService(smp, reviewed(smp.ID))

	rep, err := svc.Generate(context.Background(), smp.ID, nil, "dr-house")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	finalized, err := svc.Finalize(context.Background(), rep.ID, "dr-cuddy")
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if finalized.Status != StatusFinalized {
		t.Errorf("expected finalized, got %s", finalized.Status)
	}
	if finalized.FinalizedBy == nil || *finalized.FinalizedBy != "dr-cuddy" {
		t.Errorf("expected finalizer, got %v", finalized.FinalizedBy)
	}
	if finalized.FinalizedAt == nil {
		t.Error("expected finalized_at timestamp")
	}

	_, err = svc.Finalize(context.Background(), rep.ID, "dr-house")
	if !errors.Is(err, ErrAlreadyFinalized) {
		t.Fatalf("expected ErrAlreadyFinalized, got %v", err)
	}
}

func TestFinalizeUnknownReport(t *testing.T) {
	smp := labSample()
	svc, _ := newTestService(smp, reviewed(smp.ID))

	_, err := svc.Finalize(context.Background(), uuid.New(), "dr-house")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGenerateFromTemplateOrdersSections(t *testing.T) {
	smp := labSample()
	svc, _ := newTestService(smp, reviewed(smp.ID))

	tpl := &Template{
		Name: "Standard Lab Report",
		Sections: []Section{
			{ID: "f", Name: "Footer", SectionType: "footer", OrderIndex: 99, Content: "end of report"},
			{ID: "h", Name: "Header", SectionType: "header", OrderIndex: 1, Content: "Acme Labs"},
			{ID: "r", Name: "Results", SectionType: "test_results", OrderIndex: 10},
			{ID: "p", Name: "Patient", SectionType: "patient_info", OrderIndex: 5},
			{ID: "x", Name: "Disclaimer", SectionType: "legal_boilerplate", OrderIndex: 50, Content: "not medical advice"},
		},
	}

	content, err := svc.GenerateFromTemplate(tpl, smp, []*result.Result{reviewed(smp.ID)}, time.Now())
	if err != nil {
		t.Fatalf("generate from template: %v", err)
	}

	var doc struct {
		Sections []map[string]any `json:"sections"`
		Summary  struct {
			TotalTests int `json:"total_tests"`
		} `json:"summary"`
	}
	if err := json.Unmarshal(content, &doc); err != nil {
		t.Fatalf("content not valid JSON: %v", err)
	}

	wantOrder := []string{"h", "p", "r", "x", "f"}
	if len(doc.Sections) != len(wantOrder) {
		t.Fatalf("expected %d sections, got %d", len(wantOrder), len(doc.Sections))
	}
	for i, id := range wantOrder {
		if doc.Sections[i]["id"] != id {
			t.Errorf("section %d: expected %s, got %v", i, id, doc.Sections[i]["id"])
		}
	}

	// Patient block pulls from the sample.
	if doc.Sections[1]["patient_id"] != smp.PatientID {
		t.Errorf("patient_info missing patient id: %v", doc.Sections[1])
	}
	// Unknown section type passes its static content through.
	if doc.Sections[3]["content"] != "not medical advice" {
		t.Errorf("unknown section type should pass content through: %v", doc.Sections[3])
	}
	if doc.Summary.TotalTests != 1 {
		t.Errorf("expected total_tests 1, got %d", doc.Summary.TotalTests)
	}
}

func TestCreateTemplateValidation(t *testing.T) {
	smp := labSample()
	svc, _ := newTestService(smp)

	err := svc.CreateTemplate(context.Background(), &Template{Name: ""})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("expected conflict for empty name, got %v", err)
	}

	err = svc.CreateTemplate(context.Background(), &Template{Name: "empty"})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("expected conflict for no sections, got %v", err)
	}

	err = svc.CreateTemplate(context.Background(), &Template{
		Name:     "ok",
		Sections: []Section{{ID: "h", SectionType: "header", OrderIndex: 1}},
	})
	if err != nil {
		t.Errorf("valid template rejected: %v", err)
	}
}
