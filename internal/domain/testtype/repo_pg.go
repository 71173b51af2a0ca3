package testtype

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lims/lims/internal/platform/apperr"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const ttCols = `id, label, file_format, parser_module, parser_class, report_fields, created_at, updated_at`

func scanTT(row pgx.Row) (*TestType, error) {
	var tt TestType
	var fields []byte
	err := row.Scan(&tt.ID, &tt.Label, &tt.FileFormat, &tt.ParserModule, &tt.ParserClass,
		&fields, &tt.CreatedAt, &tt.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(fields) > 0 {
		if err := json.Unmarshal(fields, &tt.ReportFields); err != nil {
			return nil, err
		}
	}
	return &tt, nil
}

func (r *repoPG) Create(ctx context.Context, tt *TestType) error {
	fields, err := json.Marshal(tt.ReportFields)
	if err != nil {
		return err
	}
	return r.pool.QueryRow(ctx, `
		INSERT INTO test_type (label, file_format, parser_module, parser_class, report_fields)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`,
		tt.Label, tt.FileFormat, tt.ParserModule, tt.ParserClass, fields).
		Scan(&tt.ID, &tt.CreatedAt, &tt.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id int64) (*TestType, error) {
	tt, err := scanTT(r.pool.QueryRow(ctx, `SELECT `+ttCols+` FROM test_type WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("test type", id)
	}
	return tt, err
}

func (r *repoPG) GetByFormat(ctx context.Context, fileFormat string) (*TestType, error) {
	tt, err := scanTT(r.pool.QueryRow(ctx,
		`SELECT `+ttCols+` FROM test_type WHERE file_format = $1 ORDER BY id LIMIT 1`, fileFormat))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("test type for format", fileFormat)
	}
	return tt, err
}

func (r *repoPG) Update(ctx context.Context, tt *TestType) error {
	fields, err := json.Marshal(tt.ReportFields)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE test_type SET label=$2, file_format=$3, parser_module=$4, parser_class=$5,
			report_fields=$6, updated_at=NOW()
		WHERE id = $1`,
		tt.ID, tt.Label, tt.FileFormat, tt.ParserModule, tt.ParserClass, fields)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("test type", tt.ID)
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM test_type WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("test type", id)
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*TestType, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM test_type`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+ttCols+` FROM test_type ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*TestType
	for rows.Next() {
		tt, err := scanTT(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, tt)
	}
	return items, total, rows.Err()
}
