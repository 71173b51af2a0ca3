package result

import (
	"time"

	"github.com/google/uuid"
)

// Result statuses. Manual completions enter at pending_review and move to
// reviewed; document extractions enter at in-progress and settle at
// processed or failed.
const (
	StatusPendingReview = "pending_review"
	StatusReviewed      = "reviewed"
	StatusInProgress    = "in-progress"
	StatusProcessed     = "processed"
	StatusFailed        = "failed"
)

// Result is one set of measurements for a sample. The database only ever
// holds ExtractedData, the codec's output; Results and NormalRanges are
// decoded on read and never persisted directly.
type Result struct {
	ID               uuid.UUID      `json:"id"`
	SampleID         uuid.UUID      `json:"sample_id"`
	TestTypeID       int64          `json:"test_type_id"`
	Status           string         `json:"status"`
	ExtractedData    string         `json:"-"`
	Results          map[string]any `json:"results,omitempty"`
	NormalRanges     map[string]any `json:"normal_ranges,omitempty"`
	ExtractionMethod *string        `json:"extraction_method,omitempty"`
	FilePath         *string        `json:"file_path,omitempty"`
	ReviewedBy       *string        `json:"reviewed_by,omitempty"`
	ReviewedAt       *time.Time     `json:"reviewed_at,omitempty"`
	Notes            *string        `json:"notes,omitempty"`
	ErrorMessage     *string        `json:"error_message,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}
