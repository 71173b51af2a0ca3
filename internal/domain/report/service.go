package report

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lims/lims/internal/domain/result"
	"github.com/lims/lims/internal/domain/sample"
	"github.com/lims/lims/internal/platform/apperr"
)

// Report generation preconditions. All map to HTTP 409 through apperr.
var (
	ErrNoResults        = fmt.Errorf("sample has no results to report: %w", apperr.ErrConflict)
	ErrNotAllReviewed   = fmt.Errorf("sample has results awaiting review: %w", apperr.ErrConflict)
	ErrAlreadyFinalized = fmt.Errorf("report is already finalized: %w", apperr.ErrConflict)
)

// ResultLister is the slice of the result service the report service needs.
// Results arrive decrypted.
type ResultLister interface {
	ListBySample(ctx context.Context, sampleID uuid.UUID) ([]*result.Result, error)
}

// SampleGetter loads the sample a report is generated for.
type SampleGetter interface {
	Get(ctx context.Context, id uuid.UUID) (*sample.Sample, error)
}

type Service struct {
	repo    Repository
	results ResultLister
	samples SampleGetter
	logger  zerolog.Logger
}

func NewService(repo Repository, results ResultLister, samples SampleGetter, logger zerolog.Logger) *Service {
	return &Service{repo: repo, results: results, samples: samples, logger: logger}
}

// resultEntry is the per-result block embedded in report content.
type resultEntry struct {
	TestTypeID   int64          `json:"test_type_id"`
	Results      map[string]any `json:"results,omitempty"`
	NormalRanges map[string]any `json:"normal_ranges,omitempty"`
	Status       string         `json:"status"`
	ReviewedBy   *string        `json:"reviewed_by,omitempty"`
	Notes        *string        `json:"notes,omitempty"`
}

type contentSummary struct {
	TotalTests  int       `json:"total_tests"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Generate composes a draft report for a sample. Every result must exist and
// be reviewed; an optional template shapes the content.
func (s *Service) Generate(ctx context.Context, sampleID uuid.UUID, templateID *uuid.UUID, generatedBy string) (*Report, error) {
	smp, err := s.samples.Get(ctx, sampleID)
	if err != nil {
		return nil, err
	}
	results, err := s.results.ListBySample(ctx, sampleID)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, ErrNoResults
	}
	for _, res := range results {
		if res.Status != result.StatusReviewed {
			return nil, fmt.Errorf("result %s is %s: %w", res.ID, res.Status, ErrNotAllReviewed)
		}
	}

	now := time.Now()
	var content json.RawMessage
	if templateID != nil {
		tpl, err := s.repo.GetTemplate(ctx, *templateID)
		if err != nil {
			return nil, err
		}
		content, err = s.GenerateFromTemplate(tpl, smp, results, now)
		if err != nil {
			return nil, err
		}
	} else {
		content, err = defaultContent(smp, results, now)
		if err != nil {
			return nil, err
		}
	}

	rep := &Report{
		SampleID:    sampleID,
		TemplateID:  templateID,
		Status:      StatusDraft,
		Content:     content,
		GeneratedBy: generatedBy,
		GeneratedAt: now,
	}
	if err := s.repo.Create(ctx, rep); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("report_id", rep.ID.String()).
		Str("sample_id", sampleID.String()).
		Int("total_tests", len(results)).
		Msg("report generated")
	return rep, nil
}

// Finalize locks a draft report. Finalizing twice is refused rather than
// silently overwritten.
func (s *Service) Finalize(ctx context.Context, id uuid.UUID, finalizedBy string) (*Report, error) {
	rep, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rep.Status == StatusFinalized {
		return nil, ErrAlreadyFinalized
	}

	now := time.Now()
	rep.Status = StatusFinalized
	rep.FinalizedBy = &finalizedBy
	rep.FinalizedAt = &now
	if err := s.repo.Update(ctx, rep); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("report_id", id.String()).
		Str("finalized_by", finalizedBy).
		Msg("report finalized")
	return rep, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Report, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListBySample(ctx context.Context, sampleID uuid.UUID) ([]*Report, error) {
	return s.repo.ListBySample(ctx, sampleID)
}

func (s *Service) List(ctx context.Context, status string, limit, offset int) ([]*Report, int, error) {
	return s.repo.List(ctx, status, limit, offset)
}

func (s *Service) CreateTemplate(ctx context.Context, t *Template) error {
	if t.Name == "" {
		return apperr.Conflict("template name is required")
	}
	if len(t.Sections) == 0 {
		return apperr.Conflict("template needs at least one section")
	}
	return s.repo.CreateTemplate(ctx, t)
}

func (s *Service) GetTemplate(ctx context.Context, id uuid.UUID) (*Template, error) {
	return s.repo.GetTemplate(ctx, id)
}

func (s *Service) ListTemplates(ctx context.Context, activeOnly bool) ([]*Template, error) {
	return s.repo.ListTemplates(ctx, activeOnly)
}

func resultEntries(results []*result.Result) []resultEntry {
	entries := make([]resultEntry, 0, len(results))
	for _, res := range results {
		entries = append(entries, resultEntry{
			TestTypeID:   res.TestTypeID,
			Results:      res.Results,
			NormalRanges: res.NormalRanges,
			Status:       res.Status,
			ReviewedBy:   res.ReviewedBy,
			Notes:        res.Notes,
		})
	}
	return entries
}

func defaultContent(smp *sample.Sample, results []*result.Result, now time.Time) (json.RawMessage, error) {
	return json.Marshal(map[string]any{
		"sample_id": smp.ID,
		"results":   resultEntries(results),
		"summary": contentSummary{
			TotalTests:  len(results),
			GeneratedAt: now,
		},
	})
}

// GenerateFromTemplate renders report content section by section. Sections
// run in OrderIndex order whatever order they were stored in; a section type
// the renderer does not know passes its static content through untouched.
func (s *Service) GenerateFromTemplate(tpl *Template, smp *sample.Sample, results []*result.Result, now time.Time) (json.RawMessage, error) {
	sections := make([]Section, len(tpl.Sections))
	copy(sections, tpl.Sections)
	sort.SliceStable(sections, func(i, j int) bool {
		return sections[i].OrderIndex < sections[j].OrderIndex
	})

	rendered := make([]map[string]any, 0, len(sections))
	for _, sec := range sections {
		block := map[string]any{
			"id":   sec.ID,
			"name": sec.Name,
			"type": sec.SectionType,
		}
		switch sec.SectionType {
		case "header":
			block["content"] = sec.Content
			block["template"] = tpl.Name
			block["generated_at"] = now
		case "patient_info":
			block["patient_id"] = smp.PatientID
			block["lab_id"] = smp.LabID
			block["barcode"] = smp.Barcode
			block["sample_type"] = smp.SampleType
		case "test_results":
			block["results"] = resultEntries(results)
		case "interpretation":
			block["content"] = sec.Content
			var notes []string
			for _, res := range results {
				if res.Notes != nil && *res.Notes != "" {
					notes = append(notes, *res.Notes)
				}
			}
			block["reviewer_notes"] = notes
		case "footer":
			block["content"] = sec.Content
		default:
			block["content"] = sec.Content
		}
		rendered = append(rendered, block)
	}

	return json.Marshal(map[string]any{
		"sample_id": smp.ID,
		"template":  tpl.Name,
		"sections":  rendered,
		"summary": contentSummary{
			TotalTests:  len(results),
			GeneratedAt: now,
		},
	})
}
