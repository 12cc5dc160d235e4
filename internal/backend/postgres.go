// internal/backend/postgres.go
package backend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"libradesk/internal/records"
)

const (
	dialectPostgres = "postgres"
	tableRecords    = "records"
	colEntity       = "entity"
	colID           = "id"
	colSeq          = "seq"
	colDoc          = "doc"
	castJsonb       = "?::jsonb"

	pqUniqueViolation = "23505"
)

var ErrBuildingQueryFailed = errors.New("building query failed")

// DDL creates the shared document table. Every entity lives in the same
// table keyed by (entity, id); seq keeps insertion order.
const DDL = `
CREATE TABLE IF NOT EXISTS records (
	entity TEXT NOT NULL,
	id TEXT NOT NULL,
	seq BIGSERIAL,
	doc JSONB NOT NULL,
	PRIMARY KEY (entity, id)
);
`

// Migrate applies DDL.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, DDL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// PostgresRepository stores each record as a JSONB document.
type PostgresRepository[T records.Entity[T]] struct {
	db     *sql.DB
	entity string
	tracer trace.Tracer
}

func NewPostgresRepository[T records.Entity[T]](db *sql.DB, entity string) *PostgresRepository[T] {
	return &PostgresRepository[T]{
		db:     db,
		entity: entity,
		tracer: otel.Tracer("libradesk/backend"),
	}
}

func (p *PostgresRepository[T]) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("entity", p.entity))
	return p.tracer.Start(ctx, "backend.postgres."+op, trace.WithAttributes(attrs...))
}

func (p *PostgresRepository[T]) List(ctx context.Context) ([]T, error) {
	ctx, span := p.start(ctx, "list")
	defer span.End()

	query, args, err := goqu.Dialect(dialectPostgres).
		From(tableRecords).
		Select(colDoc).
		Where(goqu.Ex{colEntity: p.entity}).
		Order(goqu.I(colSeq).Asc()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, errors.Join(ErrBuildingQueryFailed, err)
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", p.entity, err)
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan %s: %w", p.entity, err)
		}
		var r T
		if err := json.Unmarshal(doc, &r); err != nil {
			return nil, fmt.Errorf("decode %s: %w", p.entity, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", p.entity, err)
	}

	span.SetAttributes(attribute.Int("records.loaded", len(out)))
	return out, nil
}

func (p *PostgresRepository[T]) Get(ctx context.Context, id string) (T, error) {
	ctx, span := p.start(ctx, "get", attribute.String("record.id", id))
	defer span.End()

	var zero T
	query, args, err := goqu.Dialect(dialectPostgres).
		From(tableRecords).
		Select(colDoc).
		Where(goqu.Ex{colEntity: p.entity, colID: id}).
		Prepared(true).
		ToSQL()
	if err != nil {
		return zero, errors.Join(ErrBuildingQueryFailed, err)
	}

	var doc []byte
	err = p.db.QueryRowContext(ctx, query, args...).Scan(&doc)
	if err == sql.ErrNoRows {
		return zero, fmt.Errorf("%w: %s", records.ErrNotFound, id)
	}
	if err != nil {
		return zero, fmt.Errorf("get %s: %w", p.entity, err)
	}

	var r T
	if err := json.Unmarshal(doc, &r); err != nil {
		return zero, fmt.Errorf("decode %s: %w", p.entity, err)
	}
	return r, nil
}

func (p *PostgresRepository[T]) Insert(ctx context.Context, r T) error {
	ctx, span := p.start(ctx, "insert", attribute.String("record.id", r.RecordID()))
	defer span.End()

	doc, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode %s: %w", p.entity, err)
	}
	query, args, err := goqu.Dialect(dialectPostgres).
		Insert(tableRecords).
		Rows(goqu.Record{
			colEntity: p.entity,
			colID:     r.RecordID(),
			colDoc:    goqu.L(castJsonb, string(doc)),
		}).
		Prepared(true).
		ToSQL()
	if err != nil {
		return errors.Join(ErrBuildingQueryFailed, err)
	}

	if _, err := p.db.ExecContext(ctx, query, args...); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return fmt.Errorf("%w: %s", records.ErrDuplicateID, r.RecordID())
		}
		return fmt.Errorf("insert %s: %w", p.entity, err)
	}
	return nil
}

func (p *PostgresRepository[T]) Replace(ctx context.Context, r T) error {
	ctx, span := p.start(ctx, "replace", attribute.String("record.id", r.RecordID()))
	defer span.End()

	doc, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode %s: %w", p.entity, err)
	}
	query, args, err := goqu.Dialect(dialectPostgres).
		Update(tableRecords).
		Set(goqu.Record{colDoc: goqu.L(castJsonb, string(doc))}).
		Where(goqu.Ex{colEntity: p.entity, colID: r.RecordID()}).
		Prepared(true).
		ToSQL()
	if err != nil {
		return errors.Join(ErrBuildingQueryFailed, err)
	}
	return p.execOne(ctx, query, args, r.RecordID())
}

func (p *PostgresRepository[T]) Delete(ctx context.Context, id string) error {
	ctx, span := p.start(ctx, "delete", attribute.String("record.id", id))
	defer span.End()

	query, args, err := goqu.Dialect(dialectPostgres).
		Delete(tableRecords).
		Where(goqu.Ex{colEntity: p.entity, colID: id}).
		Prepared(true).
		ToSQL()
	if err != nil {
		return errors.Join(ErrBuildingQueryFailed, err)
	}
	return p.execOne(ctx, query, args, id)
}

// execOne runs a statement that must touch exactly one row.
func (p *PostgresRepository[T]) execOne(ctx context.Context, query string, args []any, id string) error {
	res, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("exec %s: %w", p.entity, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", records.ErrNotFound, id)
	}
	return nil
}
