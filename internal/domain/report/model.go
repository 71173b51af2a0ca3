package report

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	StatusDraft     = "draft"
	StatusFinalized = "finalized"
)

// Report is a composed document over a sample's reviewed results. Content is
// built once at generation time and becomes immutable after finalization.
type Report struct {
	ID          uuid.UUID       `json:"id"`
	SampleID    uuid.UUID       `json:"sample_id"`
	TemplateID  *uuid.UUID      `json:"template_id,omitempty"`
	Status      string          `json:"status"`
	Content     json.RawMessage `json:"content"`
	GeneratedBy string          `json:"generated_by"`
	GeneratedAt time.Time       `json:"generated_at"`
	FinalizedBy *string         `json:"finalized_by,omitempty"`
	FinalizedAt *time.Time      `json:"finalized_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Section is one block of a report template. SectionType selects how the
// block is rendered; OrderIndex fixes its position regardless of storage
// order.
type Section struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	SectionType string `json:"section_type"`
	OrderIndex  int    `json:"order_index"`
	Content     string `json:"content,omitempty"`
}

// Template describes the layout of a generated report.
type Template struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	TestTypeID  *int64    `json:"test_type_id,omitempty"`
	Sections    []Section `json:"sections"`
	IsActive    bool      `json:"is_active"`
	CreatedBy   string    `json:"created_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
