package report

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, r *Report) error
	GetByID(ctx context.Context, id uuid.UUID) (*Report, error)
	ListBySample(ctx context.Context, sampleID uuid.UUID) ([]*Report, error)
	Update(ctx context.Context, r *Report) error
	List(ctx context.Context, status string, limit, offset int) ([]*Report, int, error)

	CreateTemplate(ctx context.Context, t *Template) error
	GetTemplate(ctx context.Context, id uuid.UUID) (*Template, error)
	ListTemplates(ctx context.Context, activeOnly bool) ([]*Template, error)
}
