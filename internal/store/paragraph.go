package store

import (
	"context"
	"fmt"
	"math/rand/v2"

	entsql "entgo.io/ent/dialect/sql"
)

// Unprocessed is the value of Paragraph.Processed before generation ran.
const Unprocessed = -1

// Paragraph is one row of the Wikipedia-derived source corpus.
type Paragraph struct {
	ID                int    `json:"id"`
	PageName          string `json:"page_name"`
	SectionName       string `json:"section_name"`
	SubsectionName    string `json:"subsection_name"`
	SubsubsectionName string `json:"subsubsection_name"`
	Text              string `json:"text"`
	SectionHierarchy  string `json:"section_hierarchy"`
	TextCleaned       string `json:"text_cleaned"`
	WordCount         int    `json:"word_count"`
	IsBad             bool   `json:"is_bad"`
	WithinPageOrder   int    `json:"within_page_order"`
	Processed         int    `json:"processed"`
}

var paragraphFields = []string{
	"id", "page_name", "section_name", "subsection_name", "subsubsection_name",
	"text", "section_hierarchy", "text_cleaned", "word_count", "is_bad",
	"within_page_order", "processed",
}

// insertBatchSize bounds the rows per multi-row INSERT so the statement
// stays under SQLite's bound-parameter limit.
const insertBatchSize = 500

func (q *queries) selectParagraphs() *entsql.Selector {
	b := q.builder()
	return b.Select(paragraphFields...).From(b.Table(tableParagraph))
}

func (q *queries) firstParagraph(ctx context.Context, sel *entsql.Selector) (*Paragraph, error) {
	var out []Paragraph
	if err := q.selectAll(ctx, sel.Limit(1), &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}

// CountParagraphs returns the number of loaded paragraphs.
func (q *queries) CountParagraphs(ctx context.Context) (int, error) {
	b := q.builder()
	n, err := q.selectInt(ctx, b.Select(entsql.Count("*")).From(b.Table(tableParagraph)))
	if err != nil {
		return 0, fmt.Errorf("count paragraphs: %w", err)
	}
	return n, nil
}

// CountUnprocessedParagraphs returns the number of paragraphs still waiting
// for question generation.
func (q *queries) CountUnprocessedParagraphs(ctx context.Context) (int, error) {
	b := q.builder()
	sel := b.Select(entsql.Count("*")).From(b.Table(tableParagraph)).
		Where(entsql.EQ("processed", Unprocessed))
	n, err := q.selectInt(ctx, sel)
	if err != nil {
		return 0, fmt.Errorf("count unprocessed paragraphs: %w", err)
	}
	return n, nil
}

// GetParagraph returns the paragraph with the given id, or nil if absent.
func (q *queries) GetParagraph(ctx context.Context, id int) (*Paragraph, error) {
	p, err := q.firstParagraph(ctx, q.selectParagraphs().Where(entsql.EQ("id", id)))
	if err != nil {
		return nil, fmt.Errorf("get paragraph %d: %w", id, err)
	}
	return p, nil
}

// RandomParagraphs returns up to n paragraphs in random order.
func (q *queries) RandomParagraphs(ctx context.Context, n int) ([]Paragraph, error) {
	var out []Paragraph
	sel := q.selectParagraphs().OrderBy("RANDOM()").Limit(n)
	if err := q.selectAll(ctx, sel, &out); err != nil {
		return nil, fmt.Errorf("random paragraphs: %w", err)
	}
	return out, nil
}

// NextUnprocessedParagraph picks a paragraph that has not been processed
// yet, skipping the ids in exclude. With random set the pick is uniform;
// otherwise the lowest id wins. It returns nil when nothing is left.
func (q *queries) NextUnprocessedParagraph(ctx context.Context, random bool, exclude []int) (*Paragraph, error) {
	pred := entsql.EQ("processed", Unprocessed)
	if len(exclude) > 0 {
		pred = entsql.And(pred, entsql.NotIn("id", intsToAny(exclude)...))
	}

	sel := q.selectParagraphs().Where(pred)
	if random {
		sel.OrderBy("RANDOM()")
	} else {
		sel.OrderBy("id")
	}

	p, err := q.firstParagraph(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("next unprocessed paragraph: %w", err)
	}
	return p, nil
}

// PageParagraphs returns every paragraph of one page, in page order. A
// non-negative index selects the index-th page name in sorted order; a
// negative index selects a random page. It returns nil when the index is
// past the last page.
func (q *queries) PageParagraphs(ctx context.Context, index int) ([]Paragraph, error) {
	b := q.builder()
	if index < 0 {
		pages, err := q.selectInt(ctx, b.Select("COUNT(DISTINCT page_name)").From(b.Table(tableParagraph)))
		if err != nil {
			return nil, fmt.Errorf("count pages: %w", err)
		}
		if pages == 0 {
			return nil, nil
		}
		index = rand.IntN(pages)
	}

	names := b.Select("page_name").Distinct().From(b.Table(tableParagraph)).
		OrderBy("page_name").
		Offset(index)
	found, err := q.selectStrings(ctx, names.Limit(1))
	if err != nil {
		return nil, fmt.Errorf("select page name: %w", err)
	}
	if len(found) == 0 {
		return nil, nil
	}

	var out []Paragraph
	sel := q.selectParagraphs().
		Where(entsql.EQ("page_name", found[0])).
		OrderBy("within_page_order", "id")
	if err := q.selectAll(ctx, sel, &out); err != nil {
		return nil, fmt.Errorf("page paragraphs: %w", err)
	}
	return out, nil
}

// NextProcessedOrder returns one more than the highest processing order
// assigned so far (0 for the first paragraph).
func (q *queries) NextProcessedOrder(ctx context.Context) (int, error) {
	b := q.builder()
	n, err := q.selectInt(ctx, b.Select("COALESCE(MAX(processed), -1)").From(b.Table(tableParagraph)))
	if err != nil {
		return 0, fmt.Errorf("max processed order: %w", err)
	}
	return n + 1, nil
}

// MarkProcessed records the processing order of a paragraph.
func (q *queries) MarkProcessed(ctx context.Context, id, order int) error {
	query, args := q.builder().Update(tableParagraph).
		Set("processed", order).
		Where(entsql.EQ("id", id)).
		Query()
	res, err := q.exec(ctx, query, args)
	if err != nil {
		return fmt.Errorf("mark paragraph %d processed: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("mark paragraph %d processed: not found", id)
	}
	return nil
}

// InsertParagraphs bulk-inserts paragraphs. IDs on the input are ignored.
func (q *queries) InsertParagraphs(ctx context.Context, paragraphs []Paragraph) error {
	for start := 0; start < len(paragraphs); start += insertBatchSize {
		end := min(start+insertBatchSize, len(paragraphs))

		ins := q.builder().Insert(tableParagraph).Columns(paragraphFields[1:]...)
		for _, p := range paragraphs[start:end] {
			ins.Values(
				p.PageName, p.SectionName, p.SubsectionName, p.SubsubsectionName,
				p.Text, p.SectionHierarchy, p.TextCleaned, p.WordCount, p.IsBad,
				p.WithinPageOrder, p.Processed,
			)
		}

		query, args := ins.Query()
		if _, err := q.exec(ctx, query, args); err != nil {
			return fmt.Errorf("insert paragraphs %d-%d: %w", start, end-1, err)
		}
	}
	return nil
}
