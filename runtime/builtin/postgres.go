package builtin

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresQueryInput is the input of the postgres_query action: a
// parameterized SELECT and its positional params (grounded on the
// teacher's postgres plugin GetInput).
type PostgresQueryInput struct {
	Query  string `flow:"query" validate:"required"`
	Params []any  `flow:"params"`
}

// PostgresQueryOutput mirrors the teacher's GetOutput: the first matching
// row, flattened to a field map, and whether one was found.
type PostgresQueryOutput struct {
	Row   map[string]any `flow:"row"`
	Found bool           `flow:"found"`
}

// PostgresQueryAction runs a read query against a fixed connection pool
// opened once at construction (§6 ambient stack: database/sql + lib/pq,
// the teacher's only SQL driver).
type PostgresQueryAction struct {
	base
	db *sql.DB
}

// NewPostgresQueryAction opens a connection pool against dsn the way the
// teacher's plugin.Initialize does, verifying it with a Ping.
func NewPostgresQueryAction(dsn string, maxOpenConns, maxIdleConns int, connMaxLifetime time.Duration) (*PostgresQueryAction, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres_query: open: %w", err)
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres_query: ping: %w", err)
	}
	return &PostgresQueryAction{base: base{name: "postgres_query", cache: false}, db: db}, nil
}

func (p *PostgresQueryAction) NewInput() any { return &PostgresQueryInput{} }

func (p *PostgresQueryAction) Close() error { return p.db.Close() }

func (p *PostgresQueryAction) Run(ctx context.Context, input any) (any, error) {
	in := input.(*PostgresQueryInput)

	rows, err := p.db.QueryContext(ctx, in.Query, in.Params...)
	if err != nil {
		return nil, fmt.Errorf("postgres_query: query failed: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("postgres_query: columns: %w", err)
	}
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("postgres_query: column types: %w", err)
	}

	if !rows.Next() {
		return PostgresQueryOutput{Found: false, Row: map[string]any{}}, nil
	}

	row, err := scanRow(cols, colTypes, rows)
	if err != nil {
		return nil, fmt.Errorf("postgres_query: scan: %w", err)
	}
	return PostgresQueryOutput{Found: true, Row: row}, nil
}

// scanRow scans the current row into a field map, stringifying the
// postgres types that arrive as raw bytes (grounded on the teacher's
// plugin.go scanRow).
func scanRow(cols []string, colTypes []*sql.ColumnType, rows *sql.Rows) (map[string]any, error) {
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}

	result := make(map[string]any, len(cols))
	for i, col := range cols {
		val := values[i]
		switch colTypes[i].DatabaseTypeName() {
		case "JSONB", "JSON", "UUID", "NUMERIC", "DECIMAL":
			if b, ok := val.([]byte); ok {
				result[col] = string(b)
			} else {
				result[col] = val
			}
		default:
			result[col] = val
		}
	}
	return result, nil
}
