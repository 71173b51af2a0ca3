package report

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

const reportCols = `id, sample_id, template_id, status, content, generated_by, generated_at,
	finalized_by, finalized_at, created_at, updated_at`

func scanReport(row pgx.Row) (*Report, error) {
	var r Report
	err := row.Scan(&r.ID, &r.SampleID, &r.TemplateID, &r.Status, &r.Content,
		&r.GeneratedBy, &r.GeneratedAt, &r.FinalizedBy, &r.FinalizedAt,
		&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *repoPG) Create(ctx context.Context, rep *Report) error {
	rep.ID = uuid.New()
	return r.pool.QueryRow(ctx, `
		INSERT INTO report (id, sample_id, template_id, status, content, generated_by, generated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at, updated_at`,
		rep.ID, rep.SampleID, rep.TemplateID, rep.Status, rep.Content,
		rep.GeneratedBy, rep.GeneratedAt).
		Scan(&rep.CreatedAt, &rep.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Report, error) {
	rep, err := scanReport(r.pool.QueryRow(ctx, `SELECT `+reportCols+` FROM report WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("report", id)
	}
	return rep, err
}

func (r *repoPG) ListBySample(ctx context.Context, sampleID uuid.UUID) ([]*Report, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+reportCols+` FROM report WHERE sample_id = $1 ORDER BY created_at DESC`, sampleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Report
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rep)
	}
	return items, rows.Err()
}

func (r *repoPG) Update(ctx context.Context, rep *Report) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE report SET status=$2, content=$3, finalized_by=$4, finalized_at=$5, updated_at=NOW()
		WHERE id = $1`,
		rep.ID, rep.Status, rep.Content, rep.FinalizedBy, rep.FinalizedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("report", rep.ID)
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, status string, limit, offset int) ([]*Report, int, error) {
	countQuery := `SELECT COUNT(*) FROM report`
	query := `SELECT ` + reportCols + ` FROM report`
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
	var items []*Report
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, rep)
	}
	return items, total, rows.Err()
}

const templateCols = `id, name, description, test_type_id, sections, is_active, created_by, created_at, updated_at`

func scanTemplate(row pgx.Row) (*Template, error) {
	var t Template
	var sections []byte
	err := row.Scan(&t.ID, &t.Name, &t.Description, &t.TestTypeID, &sections,
		&t.IsActive, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(sections) > 0 {
		if err := json.Unmarshal(sections, &t.Sections); err != nil {
			return nil, err
		}
	}
	return &t, nil
}

func (r *repoPG) CreateTemplate(ctx context.Context, t *Template) error {
	t.ID = uuid.New()
	sections, err := json.Marshal(t.Sections)
	if err != nil {
		return err
	}
	return r.pool.QueryRow(ctx, `
		INSERT INTO report_template (id, name, description, test_type_id, sections, is_active, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at, updated_at`,
		t.ID, t.Name, t.Description, t.TestTypeID, sections, t.IsActive, t.CreatedBy).
		Scan(&t.CreatedAt, &t.UpdatedAt)
}

func (r *repoPG) GetTemplate(ctx context.Context, id uuid.UUID) (*Template, error) {
	t, err := scanTemplate(r.pool.QueryRow(ctx,
		`SELECT `+templateCols+` FROM report_template WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("report template", id)
	}
	return t, err
}

func (r *repoPG) ListTemplates(ctx context.Context, activeOnly bool) ([]*Template, error) {
	query := `SELECT ` + templateCols + ` FROM report_template`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY name ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}
