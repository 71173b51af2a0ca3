package workflow

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lims/lims/internal/platform/apperr"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const wfCols = `id, sample_id, status, steps, start_time, end_time, error_message, created_at, updated_at`

func scanWF(row pgx.Row) (*Workflow, error) {
	var w Workflow
	var steps []byte
	err := row.Scan(&w.ID, &w.SampleID, &w.Status, &steps, &w.StartTime, &w.EndTime,
		&w.ErrorMessage, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(steps) > 0 {
		if err := json.Unmarshal(steps, &w.Steps); err != nil {
			return nil, err
		}
	}
	return &w, nil
}

func (r *repoPG) Create(ctx context.Context, w *Workflow) error {
	w.ID = uuid.New()
	steps, err := json.Marshal(w.Steps)
	if err != nil {
		return err
	}
	return r.pool.QueryRow(ctx, `
		INSERT INTO workflow (id, sample_id, status, steps, start_time, end_time, error_message)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at, updated_at`,
		w.ID, w.SampleID, w.Status, steps, w.StartTime, w.EndTime, w.ErrorMessage).
		Scan(&w.CreatedAt, &w.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Workflow, error) {
	w, err := scanWF(r.pool.QueryRow(ctx, `SELECT `+wfCols+` FROM workflow WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("workflow", id)
	}
	return w, err
}

func (r *repoPG) GetBySampleID(ctx context.Context, sampleID uuid.UUID) (*Workflow, error) {
	w, err := scanWF(r.pool.QueryRow(ctx, `SELECT `+wfCols+` FROM workflow WHERE sample_id = $1`, sampleID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("workflow for sample", sampleID)
	}
	return w, err
}

func (r *repoPG) Update(ctx context.Context, w *Workflow) error {
	steps, err := json.Marshal(w.Steps)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE workflow SET status=$2, steps=$3, end_time=$4, error_message=$5, updated_at=NOW()
		WHERE id = $1`,
		w.ID, w.Status, steps, w.EndTime, w.ErrorMessage)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("workflow", w.ID)
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, status string, limit, offset int) ([]*Workflow, int, error) {
	countQuery := `SELECT COUNT(*) FROM workflow`
	query := `SELECT ` + wfCols + ` FROM workflow`
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
	var items []*Workflow
	for rows.Next() {
		w, err := scanWF(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, w)
	}
	return items, total, rows.Err()
}
