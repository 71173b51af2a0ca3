package testtype

import (
	"context"
	"fmt"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, tt *TestType) error {
	if tt.Label == "" {
		return fmt.Errorf("label is required")
	}
	if tt.FileFormat == "" {
		return fmt.Errorf("file_format is required")
	}
	if tt.ParserModule == "" {
		tt.ParserModule = "parser_lab_report"
	}
	if tt.ParserClass == "" {
		tt.ParserClass = "LabReportParser"
	}
	return s.repo.Create(ctx, tt)
}

func (s *Service) Get(ctx context.Context, id int64) (*TestType, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByFormat resolves the parser configuration for a file format. Used when
// a document arrives without an explicit test type.
func (s *Service) GetByFormat(ctx context.Context, fileFormat string) (*TestType, error) {
	return s.repo.GetByFormat(ctx, fileFormat)
}

func (s *Service) Update(ctx context.Context, tt *TestType) error {
	if tt.Label == "" {
		return fmt.Errorf("label is required")
	}
	return s.repo.Update(ctx, tt)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*TestType, int, error) {
	return s.repo.List(ctx, limit, offset)
}
