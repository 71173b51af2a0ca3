package result

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, r *Result) error
	GetByID(ctx context.Context, id uuid.UUID) (*Result, error)
	ListBySample(ctx context.Context, sampleID uuid.UUID) ([]*Result, error)
	Update(ctx context.Context, r *Result) error
	List(ctx context.Context, status string, limit, offset int) ([]*Result, int, error)
}
