package sample

import (
	"time"

	"github.com/google/uuid"
)

// Sample statuses. Transitions are enforced by the service: a sample moves
// collected/pending -> processing -> completed, and may be soft-deleted from
// any state except processing.
const (
	StatusCollected  = "collected"
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusDeleted    = "deleted"
)

// Sample is a physical specimen tracked through the lab.
type Sample struct {
	ID           uuid.UUID  `json:"id"`
	LabID        string     `json:"lab_id"`
	Barcode      string     `json:"barcode"`
	TestTypeID   int64      `json:"test_type_id"`
	SampleType   string     `json:"sample_type"`
	PatientID    string     `json:"patient_id"`
	Status       string     `json:"status"`
	Priority     string     `json:"priority,omitempty"`
	Notes        *string    `json:"notes,omitempty"`
	ExpectedTime *time.Time `json:"expected_time,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// validTransitions maps a current status to the statuses it may move to.
var validTransitions = map[string][]string{
	StatusCollected:  {StatusProcessing, StatusDeleted},
	StatusPending:    {StatusProcessing, StatusDeleted},
	StatusProcessing: {StatusCompleted},
	StatusCompleted:  {StatusDeleted},
	StatusDeleted:    {},
}

// CanTransition reports whether a status change is legal.
func CanTransition(from, to string) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
