package workflow

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, w *Workflow) error
	GetByID(ctx context.Context, id uuid.UUID) (*Workflow, error)
	GetBySampleID(ctx context.Context, sampleID uuid.UUID) (*Workflow, error)
	Update(ctx context.Context, w *Workflow) error
	List(ctx context.Context, status string, limit, offset int) ([]*Workflow, int, error)
}
