package result

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lims/lims/internal/domain/sample"
	"github.com/lims/lims/internal/platform/resultcrypt"
)

// SampleGetter is the slice of the sample service the result service needs.
type SampleGetter interface {
	Get(ctx context.Context, id uuid.UUID) (*sample.Sample, error)
}

// CreateInput is a manually entered result for an existing sample.
type CreateInput struct {
	SampleID     uuid.UUID      `json:"sample_id"`
	TestTypeID   int64          `json:"test_type_id"`
	Results      map[string]any `json:"results"`
	NormalRanges map[string]any `json:"normal_ranges,omitempty"`
	Notes        string         `json:"notes,omitempty"`
}

// payloadEnvelope is the shape stored (encrypted) for manual results.
type payloadEnvelope struct {
	Results      map[string]any `json:"results"`
	NormalRanges map[string]any `json:"normal_ranges,omitempty"`
}

type Service struct {
	repo    Repository
	samples SampleGetter
	codec   *resultcrypt.Codec
	logger  zerolog.Logger
}

func NewService(repo Repository, samples SampleGetter, codec *resultcrypt.Codec, logger zerolog.Logger) *Service {
	return &Service{repo: repo, samples: samples, codec: codec, logger: logger}
}

// Create stores a manually entered result. The referenced sample must exist;
// the payload is encrypted before it touches the database.
func (s *Service) Create(ctx context.Context, input CreateInput) (*Result, error) {
	if _, err := s.samples.Get(ctx, input.SampleID); err != nil {
		return nil, err
	}
	return s.create(ctx, input)
}

// RecordCompletion stores the result produced when a sample is completed.
// The sample service has already validated the sample, so no second lookup.
func (s *Service) RecordCompletion(ctx context.Context, sampleID uuid.UUID, testTypeID int64, input sample.CompletionInput) (uuid.UUID, error) {
	res, err := s.create(ctx, CreateInput{
		SampleID:     sampleID,
		TestTypeID:   testTypeID,
		Results:      input.Results,
		NormalRanges: input.NormalRanges,
		Notes:        input.Notes,
	})
	if err != nil {
		return uuid.Nil, err
	}
	return res.ID, nil
}

func (s *Service) create(ctx context.Context, input CreateInput) (*Result, error) {
	encoded, err := s.codec.Encrypt(payloadEnvelope{
		Results:      input.Results,
		NormalRanges: input.NormalRanges,
	})
	if err != nil {
		return nil, err
	}

	res := &Result{
		SampleID:      input.SampleID,
		TestTypeID:    input.TestTypeID,
		Status:        StatusPendingReview,
		ExtractedData: encoded,
	}
	if input.Notes != "" {
		res.Notes = &input.Notes
	}
	if err := s.repo.Create(ctx, res); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("result_id", res.ID.String()).
		Str("sample_id", input.SampleID.String()).
		Msg("result recorded")

	s.decodePayload(res)
	return res, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Result, error) {
	res, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.decodePayload(res)
	return res, nil
}

func (s *Service) ListBySample(ctx context.Context, sampleID uuid.UUID) ([]*Result, error) {
	items, err := s.repo.ListBySample(ctx, sampleID)
	if err != nil {
		return nil, err
	}
	for _, res := range items {
		s.decodePayload(res)
	}
	return items, nil
}

func (s *Service) List(ctx context.Context, status string, limit, offset int) ([]*Result, int, error) {
	items, total, err := s.repo.List(ctx, status, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	for _, res := range items {
		s.decodePayload(res)
	}
	return items, total, nil
}

// Review marks a result as reviewed. Reviewing an already reviewed result
// simply records the newer reviewer; the double review is intentional.
func (s *Service) Review(ctx context.Context, id uuid.UUID, reviewer string, notes string) (*Result, error) {
	res, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	res.Status = StatusReviewed
	res.ReviewedBy = &reviewer
	res.ReviewedAt = &now
	if notes != "" {
		res.Notes = &notes
	}
	if err := s.repo.Update(ctx, res); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("result_id", id.String()).
		Str("reviewed_by", reviewer).
		Msg("result reviewed")

	s.decodePayload(res)
	return res, nil
}

// decodePayload decrypts the stored payload into the in-memory fields. A
// payload that cannot be decoded leaves the result readable with an error
// note rather than failing the whole read.
func (s *Service) decodePayload(res *Result) {
	if res.ExtractedData == "" {
		return
	}
	raw, err := s.codec.Decrypt(res.ExtractedData)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("result_id", res.ID.String()).
			Msg("stored result payload is unreadable")
		msg := "stored payload could not be decoded"
		res.ErrorMessage = &msg
		return
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return
	}
	// Manual results use results/normal_ranges; parser output uses
	// test_results/reference_ranges.
	if v, ok := fields["results"]; ok {
		_ = json.Unmarshal(v, &res.Results)
	} else if v, ok := fields["test_results"]; ok {
		_ = json.Unmarshal(v, &res.Results)
	}
	if v, ok := fields["normal_ranges"]; ok {
		_ = json.Unmarshal(v, &res.NormalRanges)
	} else if v, ok := fields["reference_ranges"]; ok {
		_ = json.Unmarshal(v, &res.NormalRanges)
	}
}
