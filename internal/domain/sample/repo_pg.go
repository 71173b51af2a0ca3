package sample

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lims/lims/internal/platform/apperr"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const sampleCols = `id, lab_id, barcode, test_type_id, sample_type, patient_id,
	status, priority, notes, expected_time, created_at, updated_at`

func scanSample(row pgx.Row) (*Sample, error) {
	var s Sample
	err := row.Scan(&s.ID, &s.LabID, &s.Barcode, &s.TestTypeID, &s.SampleType, &s.PatientID,
		&s.Status, &s.Priority, &s.Notes, &s.ExpectedTime, &s.CreatedAt, &s.UpdatedAt)
	return &s, err
}

func (r *repoPG) Create(ctx context.Context, s *Sample) error {
	s.ID = uuid.New()
	err := r.pool.QueryRow(ctx, `
		INSERT INTO sample (id, lab_id, barcode, test_type_id, sample_type, patient_id,
			status, priority, notes, expected_time)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at, updated_at`,
		s.ID, s.LabID, s.Barcode, s.TestTypeID, s.SampleType, s.PatientID,
		s.Status, s.Priority, s.Notes, s.ExpectedTime).
		Scan(&s.CreatedAt, &s.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return apperr.Conflict("sample with this lab_id and barcode already exists")
	}
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Sample, error) {
	s, err := scanSample(r.pool.QueryRow(ctx, `SELECT `+sampleCols+` FROM sample WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("sample", id)
	}
	return s, err
}

func (r *repoPG) Update(ctx context.Context, s *Sample) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE sample SET status=$2, priority=$3, notes=$4, expected_time=$5, updated_at=NOW()
		WHERE id = $1`,
		s.ID, s.Status, s.Priority, s.Notes, s.ExpectedTime)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("sample", s.ID)
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, status string, limit, offset int) ([]*Sample, int, error) {
	countQuery := `SELECT COUNT(*) FROM sample WHERE status != 'deleted'`
	query := `SELECT ` + sampleCols + ` FROM sample WHERE status != 'deleted'`
	var args []interface{}
	if status != "" {
		countQuery = `SELECT COUNT(*) FROM sample WHERE status = $1`
		query = `SELECT ` + sampleCols + ` FROM sample WHERE status = $1`
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
	var items []*Sample
	for rows.Next() {
		s, err := scanSample(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, rows.Err()
}
