package store

import (
	"context"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

var llmRequestEventFields = []string{
	"id", "timestamp", "provider", "model", "purpose", "input_tokens",
	"output_tokens", "latency_ms", "success", "error_message",
	"request_body", "response_body",
}

// eventRepo implements EventRepo. It always writes through the store's
// own connection so events survive a rolled-back paragraph transaction.
type eventRepo struct {
	q   *queries
	now func() time.Time
}

// EventRepo returns an EventRepo backed by this store.
func (s *Store) EventRepo() EventRepo {
	return &eventRepo{q: s.queries, now: time.Now}
}

func (r *eventRepo) AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error {
	ins := r.q.builder().Insert(tableLLMRequestEvent).
		Columns(llmRequestEventFields[1:]...).
		Values(
			r.now().UTC(), data.Provider, data.Model, data.Purpose,
			data.InputTokens, data.OutputTokens, data.LatencyMs, data.Success,
			data.ErrorMessage, data.RequestBody, data.ResponseBody,
		)
	if _, err := r.q.insert(ctx, ins); err != nil {
		return fmt.Errorf("save LLM request event: %w", err)
	}
	return nil
}

func (r *eventRepo) QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMRequestEvent, error) {
	b := r.q.builder()
	sel := b.Select(llmRequestEventFields...).From(b.Table(tableLLMRequestEvent))

	var preds []*entsql.Predicate
	if opts.Purpose != "" {
		preds = append(preds, entsql.EQ("purpose", opts.Purpose))
	}
	if !opts.From.IsZero() {
		preds = append(preds, entsql.GTE("timestamp", opts.From.UTC()))
	}
	if !opts.To.IsZero() {
		preds = append(preds, entsql.LTE("timestamp", opts.To.UTC()))
	}
	if len(preds) > 0 {
		sel.Where(entsql.And(preds...))
	}

	sel.OrderBy(entsql.Desc("id"))
	if opts.Limit > 0 {
		sel.Limit(opts.Limit)
	}

	var out []LLMRequestEvent
	if err := r.q.selectAll(ctx, sel, &out); err != nil {
		return nil, fmt.Errorf("query LLM events: %w", err)
	}
	return out, nil
}

func (r *eventRepo) GetLLMEvent(ctx context.Context, id int) (*LLMRequestEvent, error) {
	b := r.q.builder()
	sel := b.Select(llmRequestEventFields...).From(b.Table(tableLLMRequestEvent)).
		Where(entsql.EQ("id", id)).
		Limit(1)

	var out []LLMRequestEvent
	if err := r.q.selectAll(ctx, sel, &out); err != nil {
		return nil, fmt.Errorf("get LLM event %d: %w", id, err)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}

func (r *eventRepo) LLMUsageByPurpose(ctx context.Context) ([]PurposeUsage, error) {
	b := r.q.builder()
	sel := b.Select(
		"purpose",
		entsql.As(entsql.Count("*"), "calls"),
		entsql.As("CAST(COALESCE(SUM(input_tokens), 0) AS BIGINT)", "input_tokens"),
		entsql.As("CAST(COALESCE(SUM(output_tokens), 0) AS BIGINT)", "output_tokens"),
		entsql.As("CAST(COALESCE(AVG(latency_ms), 0) AS BIGINT)", "avg_latency_ms"),
	).
		From(b.Table(tableLLMRequestEvent)).
		GroupBy("purpose").
		OrderBy("purpose")

	var out []PurposeUsage
	if err := r.q.selectAll(ctx, sel, &out); err != nil {
		return nil, fmt.Errorf("LLM usage by purpose: %w", err)
	}
	return out, nil
}

func (r *eventRepo) LLMUsageByModel(ctx context.Context) ([]ModelUsage, error) {
	b := r.q.builder()
	sel := b.Select(
		"model",
		entsql.As(entsql.Count("*"), "calls"),
		entsql.As("CAST(COALESCE(SUM(input_tokens), 0) AS BIGINT)", "input_tokens"),
		entsql.As("CAST(COALESCE(SUM(output_tokens), 0) AS BIGINT)", "output_tokens"),
	).
		From(b.Table(tableLLMRequestEvent)).
		GroupBy("model").
		OrderBy("model")

	var out []ModelUsage
	if err := r.q.selectAll(ctx, sel, &out); err != nil {
		return nil, fmt.Errorf("LLM usage by model: %w", err)
	}
	return out, nil
}
