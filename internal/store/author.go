package store

import (
	"context"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
)

// Author identifies who produced a question: a model and the shape of the
// prompt template it was driven by, or a human username.
type Author struct {
	ID       int     `json:"id"`
	Model    string  `json:"model"`
	Prompt   string  `json:"prompt"`
	Username *string `json:"username"`
}

// FindAuthor returns the author registered for (model, prompt), or nil.
func (q *queries) FindAuthor(ctx context.Context, model, prompt string) (*Author, error) {
	b := q.builder()
	sel := b.Select("id", "model", "prompt", "username").
		From(b.Table(tableAuthor)).
		Where(entsql.And(entsql.EQ("model", model), entsql.EQ("prompt", prompt))).
		Limit(1)

	var out []Author
	if err := q.selectAll(ctx, sel, &out); err != nil {
		return nil, fmt.Errorf("find author: %w", err)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}

// CreateAuthor registers (model, prompt). If the pair already exists the
// existing row is returned, so concurrent registrations converge on one id.
func (q *queries) CreateAuthor(ctx context.Context, model, prompt string) (*Author, error) {
	query, args := q.builder().Insert(tableAuthor).
		Columns("model", "prompt").
		Values(model, prompt).
		OnConflict(
			entsql.ConflictColumns("model", "prompt"),
			entsql.DoNothing(),
		).
		Query()
	if _, err := q.exec(ctx, query, args); err != nil {
		return nil, fmt.Errorf("create author: %w", err)
	}

	a, err := q.FindAuthor(ctx, model, prompt)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, fmt.Errorf("create author: row for model %q missing after insert", model)
	}
	return a, nil
}

// EnsureAuthor returns the author for (model, prompt), creating it when
// absent.
func (q *queries) EnsureAuthor(ctx context.Context, model, prompt string) (*Author, error) {
	a, err := q.FindAuthor(ctx, model, prompt)
	if err != nil || a != nil {
		return a, err
	}
	return q.CreateAuthor(ctx, model, prompt)
}
