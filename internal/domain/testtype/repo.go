package testtype

import "context"

type Repository interface {
	Create(ctx context.Context, tt *TestType) error
	GetByID(ctx context.Context, id int64) (*TestType, error)
	GetByFormat(ctx context.Context, fileFormat string) (*TestType, error)
	Update(ctx context.Context, tt *TestType) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, limit, offset int) ([]*TestType, int, error)
}
