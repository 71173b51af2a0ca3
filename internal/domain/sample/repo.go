package sample

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, s *Sample) error
	GetByID(ctx context.Context, id uuid.UUID) (*Sample, error)
	Update(ctx context.Context, s *Sample) error
	List(ctx context.Context, status string, limit, offset int) ([]*Sample, int, error)
}
