package result

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lims/lims/internal/domain/sample"
	"github.com/lims/lims/internal/domain/testtype"
	"github.com/lims/lims/internal/platform/extraction"
	"github.com/lims/lims/internal/platform/resultcrypt"
)

// SampleProcessor moves a sample into processing before extraction starts.
type SampleProcessor interface {
	Process(ctx context.Context, id uuid.UUID, processedBy string) (*sample.Sample, error)
}

// TestTypeGetter loads the parser configuration for a sample's test type.
type TestTypeGetter interface {
	Get(ctx context.Context, id int64) (*testtype.TestType, error)
}

// Extractor runs the external parser. Satisfied by extraction.Runner.
type Extractor interface {
	Extract(ctx context.Context, filePath, fileFormat string, testTypeID int64) (json.RawMessage, string, error)
}

// Processor orchestrates document extraction. ProcessReport returns as soon
// as a placeholder result exists; a detached goroutine runs the parser and
// settles the result. One attempt, no retry. Extraction failures never reach
// the caller that triggered them.
type Processor struct {
	repo      Repository
	codec     *resultcrypt.Codec
	samples   SampleProcessor
	testTypes TestTypeGetter
	extractor Extractor
	logger    zerolog.Logger
}

func NewProcessor(repo Repository, codec *resultcrypt.Codec, samples SampleProcessor,
	testTypes TestTypeGetter, extractor Extractor, logger zerolog.Logger) *Processor {
	return &Processor{
		repo:      repo,
		codec:     codec,
		samples:   samples,
		testTypes: testTypes,
		extractor: extractor,
		logger:    logger,
	}
}

// ProcessReport kicks off extraction of a report document for a sample. The
// sample moves to processing, a result row is created in-progress, and the
// parser runs in the background. The returned result is the placeholder, not
// the settled outcome.
func (p *Processor) ProcessReport(ctx context.Context, sampleID uuid.UUID, filePath, processedBy string) (*Result, error) {
	smp, err := p.samples.Process(ctx, sampleID, processedBy)
	if err != nil {
		return nil, err
	}
	tt, err := p.testTypes.Get(ctx, smp.TestTypeID)
	if err != nil {
		return nil, err
	}

	res := &Result{
		SampleID:   sampleID,
		TestTypeID: tt.ID,
		Status:     StatusInProgress,
		FilePath:   &filePath,
	}
	if err := p.repo.Create(ctx, res); err != nil {
		return nil, err
	}

	p.logger.Info().
		Str("result_id", res.ID.String()).
		Str("sample_id", sampleID.String()).
		Str("file", filePath).
		Msg("report processing started")

	// The request context ends when the handler returns; the extraction
	// outlives it.
	go p.runExtraction(context.Background(), res.ID, filePath, tt)

	return res, nil
}

func (p *Processor) runExtraction(ctx context.Context, resultID uuid.UUID, filePath string, tt *testtype.TestType) {
	data, method, err := p.extractor.Extract(ctx, filePath, tt.FileFormat, tt.ID)
	switch {
	case err == nil:
		p.settleProcessed(ctx, resultID, data, method)
	case errors.Is(err, extraction.ErrTimeout):
		// The parser produced nothing in time. Settle with a payload that
		// is unmistakably a placeholder rather than leaving the result
		// in-progress forever.
		p.logger.Warn().
			Str("result_id", resultID.String()).
			Str("file", filePath).
			Msg("extraction timed out, settling with placeholder")
		p.settleProcessed(ctx, resultID, placeholderPayload(tt), "fallback_placeholder")
	default:
		p.settleFailed(ctx, resultID, err)
	}
}

func (p *Processor) settleProcessed(ctx context.Context, resultID uuid.UUID, data json.RawMessage, method string) {
	res, err := p.repo.GetByID(ctx, resultID)
	if err != nil {
		p.logger.Error().Err(err).Str("result_id", resultID.String()).Msg("settle: result vanished")
		return
	}

	encoded, err := p.codec.Encrypt(data)
	if err != nil {
		p.logger.Error().Err(err).Str("result_id", resultID.String()).Msg("settle: encrypt failed")
		p.settleFailed(ctx, resultID, fmt.Errorf("encrypt extracted data: %w", err))
		return
	}

	res.Status = StatusProcessed
	res.ExtractedData = encoded
	res.ExtractionMethod = &method
	if err := p.repo.Update(ctx, res); err != nil {
		p.logger.Error().Err(err).Str("result_id", resultID.String()).Msg("settle: update failed")
		return
	}

	p.logger.Info().
		Str("result_id", resultID.String()).
		Str("method", method).
		Msg("report processed")
}

func (p *Processor) settleFailed(ctx context.Context, resultID uuid.UUID, cause error) {
	res, err := p.repo.GetByID(ctx, resultID)
	if err != nil {
		p.logger.Error().Err(err).Str("result_id", resultID.String()).Msg("settle: result vanished")
		return
	}

	msg := cause.Error()
	res.Status = StatusFailed
	res.ErrorMessage = &msg
	if err := p.repo.Update(ctx, res); err != nil {
		p.logger.Error().Err(err).Str("result_id", resultID.String()).Msg("settle: update failed")
		return
	}

	p.logger.Error().
		Err(cause).
		Str("result_id", resultID.String()).
		Msg("report processing failed")
}

// placeholderPayload builds a stand-in result document from the test type's
// configured fields. Every value says so explicitly.
func placeholderPayload(tt *testtype.TestType) json.RawMessage {
	results := make(map[string]string, len(tt.ReportFields))
	ranges := make(map[string]string, len(tt.ReportFields))
	for _, f := range tt.ReportFields {
		results[f.Name] = "pending manual entry"
		if f.Unit != "" {
			ranges[f.Name] = "pending (" + f.Unit + ")"
		} else {
			ranges[f.Name] = "pending"
		}
	}
	payload, _ := json.Marshal(map[string]any{
		"test_results":     results,
		"reference_ranges": ranges,
		"notes":            "extraction produced no output before the deadline; placeholder values recorded",
	})
	return payload
}
