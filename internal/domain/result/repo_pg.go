package result

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lims/lims/internal/platform/apperr"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const resultCols = `id, sample_id, test_type_id, status, extracted_data, extraction_method,
	file_path, reviewed_by, reviewed_at, notes, error_message, created_at, updated_at`

func scanResult(row pgx.Row) (*Result, error) {
	var r Result
	err := row.Scan(&r.ID, &r.SampleID, &r.TestTypeID, &r.Status, &r.ExtractedData,
		&r.ExtractionMethod, &r.FilePath, &r.ReviewedBy, &r.ReviewedAt, &r.Notes,
		&r.ErrorMessage, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *repoPG) Create(ctx context.Context, res *Result) error {
	res.ID = uuid.New()
	return r.pool.QueryRow(ctx, `
		INSERT INTO result (id, sample_id, test_type_id, status, extracted_data,
			extraction_method, file_path, reviewed_by, reviewed_at, notes, error_message)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING created_at, updated_at`,
		res.ID, res.SampleID, res.TestTypeID, res.Status, res.ExtractedData,
		res.ExtractionMethod, res.FilePath, res.ReviewedBy, res.ReviewedAt,
		res.Notes, res.ErrorMessage).
		Scan(&res.CreatedAt, &res.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Result, error) {
	res, err := scanResult(r.pool.QueryRow(ctx, `SELECT `+resultCols+` FROM result WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("result", id)
	}
	return res, err
}

func (r *repoPG) ListBySample(ctx context.Context, sampleID uuid.UUID) ([]*Result, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+resultCols+` FROM result WHERE sample_id = $1 ORDER BY created_at ASC`, sampleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Result
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, res)
	}
	return items, rows.Err()
}

func (r *repoPG) Update(ctx context.Context, res *Result) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE result SET status=$2, extracted_data=$3, extraction_method=$4,
			reviewed_by=$5, reviewed_at=$6, notes=$7, error_message=$8, updated_at=NOW()
		WHERE id = $1`,
		res.ID, res.Status, res.ExtractedData, res.ExtractionMethod,
		res.ReviewedBy, res.ReviewedAt, res.Notes, res.ErrorMessage)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("result", res.ID)
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, status string, limit, offset int) ([]*Result, int, error) {
	countQuery := `SELECT COUNT(*) FROM result`
	query := `SELECT ` + resultCols + ` FROM result`
	var args []interface{}
	if status != "" {
		countQuery += ` WHERE status = $1`
		query += ` WHERE status = $1`
		args = append(args, status)
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY created_at DESC`
	if status != "" {
		query += ` LIMIT $2 OFFSET $3`
	} else {
		query += ` LIMIT $1 OFFSET $2`
	}
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Result
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, res)
	}
	return items, total, rows.Err()
}
