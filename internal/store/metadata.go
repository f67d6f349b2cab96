package store

import (
	"context"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
)

// Metadata keys written by the generation driver.
const (
	MetaLastRunID    = "last_run_id"
	MetaLastRunStart = "last_run_started_at"
	MetaLastRunEnd   = "last_run_finished_at"
)

// SetMetadata stores value under key, replacing any previous value.
func (q *queries) SetMetadata(ctx context.Context, key, value string) error {
	query, args := q.builder().Insert(tableMetadata).
		Columns("key", "value").
		Values(key, value).
		OnConflict(
			entsql.ConflictColumns("key"),
			entsql.ResolveWithNewValues(),
		).
		Query()
	if _, err := q.exec(ctx, query, args); err != nil {
		return fmt.Errorf("set metadata %q: %w", key, err)
	}
	return nil
}

// GetMetadata returns the value stored under key and whether it exists.
func (q *queries) GetMetadata(ctx context.Context, key string) (string, bool, error) {
	b := q.builder()
	sel := b.Select("value").From(b.Table(tableMetadata)).
		Where(entsql.EQ("key", key)).
		Limit(1)
	values, err := q.selectStrings(ctx, sel)
	if err != nil {
		return "", false, fmt.Errorf("get metadata %q: %w", key, err)
	}
	if len(values) == 0 {
		return "", false, nil
	}
	return values[0], true, nil
}
