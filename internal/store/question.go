package store

import (
	"context"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
)

// ScopeSingleParagraph is the scope of questions generated from one
// paragraph.
const ScopeSingleParagraph = "single-paragraph"

// Question is an accepted question.
type Question struct {
	ID          int    `json:"id"`
	ParagraphID int    `json:"paragraph_id"`
	Scope       string `json:"scope"`
	Context     string `json:"context"`
	Text        string `json:"text"`
	AuthorID    int    `json:"author_id"`
	Timestamp   string `json:"timestamp"`
	Upvote      int    `json:"upvote"`
	Downvote    int    `json:"downvote"`
	Turns       string `json:"turns"`
}

// RejectedQuestion is a candidate that failed at least one answerability
// check, kept with both verdicts.
type RejectedQuestion struct {
	ID             int    `json:"id"`
	ParagraphID    int    `json:"paragraph_id"`
	Scope          string `json:"scope"`
	Context        string `json:"context"`
	Text           string `json:"text"`
	AuthorID       int    `json:"author_id"`
	Timestamp      string `json:"timestamp"`
	IsAnswerableIC bool   `json:"is_answerable_ic"`
	IsAnswerableZS bool   `json:"is_answerable_zs"`
	Turns          string `json:"turns"`
}

var questionFields = []string{
	"id", "paragraph_id", "scope", "context", "text", "author_id",
	"timestamp", "upvote", "downvote", "turns",
}

var rejectedQuestionFields = []string{
	"id", "paragraph_id", "scope", "context", "text", "author_id",
	"timestamp", "is_answerable_ic", "is_answerable_zs", "turns",
}

// CreateQuestion inserts q and returns its id. q.ID is set as well.
func (q *queries) CreateQuestion(ctx context.Context, question *Question) (int, error) {
	ins := q.builder().Insert(tableQuestion).
		Columns(questionFields[1:]...).
		Values(
			question.ParagraphID, question.Scope, question.Context, question.Text,
			question.AuthorID, question.Timestamp, question.Upvote, question.Downvote,
			question.Turns,
		)
	id, err := q.insert(ctx, ins)
	if err != nil {
		return 0, fmt.Errorf("create question: %w", err)
	}
	question.ID = id
	return id, nil
}

// CreateRejectedQuestion inserts r and returns its id. r.ID is set as well.
func (q *queries) CreateRejectedQuestion(ctx context.Context, r *RejectedQuestion) (int, error) {
	ins := q.builder().Insert(tableRejectedQuestion).
		Columns(rejectedQuestionFields[1:]...).
		Values(
			r.ParagraphID, r.Scope, r.Context, r.Text, r.AuthorID, r.Timestamp,
			r.IsAnswerableIC, r.IsAnswerableZS, r.Turns,
		)
	id, err := q.insert(ctx, ins)
	if err != nil {
		return 0, fmt.Errorf("create rejected question: %w", err)
	}
	r.ID = id
	return id, nil
}

// GetQuestion returns the question with the given id, or nil if absent.
func (q *queries) GetQuestion(ctx context.Context, id int) (*Question, error) {
	b := q.builder()
	sel := b.Select(questionFields...).From(b.Table(tableQuestion)).
		Where(entsql.EQ("id", id)).
		Limit(1)

	var out []Question
	if err := q.selectAll(ctx, sel, &out); err != nil {
		return nil, fmt.Errorf("get question %d: %w", id, err)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}

// QuestionsByParagraph returns the accepted questions of a paragraph in
// insertion order.
func (q *queries) QuestionsByParagraph(ctx context.Context, paragraphID int) ([]Question, error) {
	b := q.builder()
	sel := b.Select(questionFields...).From(b.Table(tableQuestion)).
		Where(entsql.EQ("paragraph_id", paragraphID)).
		OrderBy("id")

	var out []Question
	if err := q.selectAll(ctx, sel, &out); err != nil {
		return nil, fmt.Errorf("questions for paragraph %d: %w", paragraphID, err)
	}
	return out, nil
}

// RejectedQuestionsByParagraph returns the rejected candidates of a
// paragraph in insertion order.
func (q *queries) RejectedQuestionsByParagraph(ctx context.Context, paragraphID int) ([]RejectedQuestion, error) {
	b := q.builder()
	sel := b.Select(rejectedQuestionFields...).From(b.Table(tableRejectedQuestion)).
		Where(entsql.EQ("paragraph_id", paragraphID)).
		OrderBy("id")

	var out []RejectedQuestion
	if err := q.selectAll(ctx, sel, &out); err != nil {
		return nil, fmt.Errorf("rejected questions for paragraph %d: %w", paragraphID, err)
	}
	return out, nil
}

// CountQuestions returns the number of accepted questions.
func (q *queries) CountQuestions(ctx context.Context) (int, error) {
	b := q.builder()
	n, err := q.selectInt(ctx, b.Select(entsql.Count("*")).From(b.Table(tableQuestion)))
	if err != nil {
		return 0, fmt.Errorf("count questions: %w", err)
	}
	return n, nil
}

// ResetGeneration deletes every generated row and marks all paragraphs
// unprocessed again. Authors are kept. It returns the number of
// paragraphs that had been processed.
func (q *queries) ResetGeneration(ctx context.Context) (int, error) {
	b := q.builder()
	for _, table := range []string{tableRating, tableAnswer, tableQuestion, tableRejectedQuestion} {
		query, args := b.Delete(table).Query()
		if _, err := q.exec(ctx, query, args); err != nil {
			return 0, fmt.Errorf("clear %s: %w", table, err)
		}
	}

	query, args := b.Update(tableParagraph).
		Set("processed", Unprocessed).
		Where(entsql.NEQ("processed", Unprocessed)).
		Query()
	res, err := q.exec(ctx, query, args)
	if err != nil {
		return 0, fmt.Errorf("reset paragraphs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset paragraphs: %w", err)
	}
	return int(n), nil
}
