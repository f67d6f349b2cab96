package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
)

// TimestampLayout is the format of the timestamp column on question rows.
const TimestampLayout = "2006-01-02 15:04:05"

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// queries implements every repository method on top of a connection or a
// transaction.
type queries struct {
	conn    dialect.ExecQuerier
	dialect string
}

func (q *queries) builder() *entsql.DialectBuilder {
	return entsql.Dialect(q.dialect)
}

func (q *queries) exec(ctx context.Context, query string, args []any) (sql.Result, error) {
	var res sql.Result
	if err := q.conn.Exec(ctx, query, args, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// insert runs an INSERT and returns the new row id. PostgreSQL reports
// the id through RETURNING; SQLite through LastInsertId.
func (q *queries) insert(ctx context.Context, ins *entsql.InsertBuilder) (int, error) {
	if q.dialect == dialect.Postgres {
		query, args := ins.Returning("id").Query()
		var rows entsql.Rows
		if err := q.conn.Query(ctx, query, args, &rows); err != nil {
			return 0, err
		}
		defer rows.Close()
		id, err := entsql.ScanInt(&rows)
		if err != nil {
			return 0, fmt.Errorf("scan id: %w", err)
		}
		return id, nil
	}

	query, args := ins.Query()
	res, err := q.exec(ctx, query, args)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return int(id), nil
}

// selectAll runs sel and scans every row into dst, a pointer to a slice of
// structs whose json tags name the columns.
func (q *queries) selectAll(ctx context.Context, sel *entsql.Selector, dst any) error {
	query, args := sel.Query()
	var rows entsql.Rows
	if err := q.conn.Query(ctx, query, args, &rows); err != nil {
		return err
	}
	defer rows.Close()
	return entsql.ScanSlice(&rows, dst)
}

func (q *queries) selectInt(ctx context.Context, sel *entsql.Selector) (int, error) {
	query, args := sel.Query()
	var rows entsql.Rows
	if err := q.conn.Query(ctx, query, args, &rows); err != nil {
		return 0, err
	}
	defer rows.Close()
	return entsql.ScanInt(&rows)
}

func (q *queries) selectStrings(ctx context.Context, sel *entsql.Selector) ([]string, error) {
	query, args := sel.Query()
	var rows entsql.Rows
	if err := q.conn.Query(ctx, query, args, &rows); err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	if err := entsql.ScanSlice(&rows, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func intsToAny(ids []int) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}
