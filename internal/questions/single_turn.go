package questions

import (
	"context"

	"go.uber.org/zap"

	"github.com/fleecekm/fleeceqa/internal/prompt"
	"github.com/fleecekm/fleeceqa/internal/store"
)

type verdictPair struct {
	question string
	ic, zs   bool
}

// GenerateSingleTurn asks for questions once and filters them with the
// constrained checks. Every rejected candidate is stored as a
// RejectedQuestion with both verdicts, then the accepted ones are stored
// as Questions. Both kinds carry turns "single". It returns the accepted
// ids in order.
//
// A constrained reply other than YES or NO aborts the paragraph with
// *MalformedAnswerError before anything is written.
func (g *Generator) GenerateSingleTurn(ctx context.Context, db Store, p store.Paragraph) ([]int, error) {
	ctxText, fact := g.facts.Derive(p)
	log := g.logger.With(zap.Int("paragraph_id", p.ID))

	vars := map[string]any{
		"NUM_QUESTIONS":  g.config.NumQuestions,
		"PARAGRAPH":      fact,
		prompt.PrefixVar: g.config.PromptPrefix,
		prompt.SuffixVar: g.config.PromptSuffix,
	}
	literal, shape, err := prompt.Render(singleTurnTemplate, vars)
	if err != nil {
		return nil, err
	}

	log.Info("generating questions", zap.String("turns", TurnsSingle))

	candidates, err := g.complete(ctx, literal)
	if err != nil {
		return nil, err
	}

	results := make([]verdictPair, 0, len(candidates))
	for _, q := range candidates {
		ic, err := g.oracle.IsAnswerableConstrained(ctx, q, fact)
		if err != nil {
			return nil, err
		}
		zs, err := g.oracle.IsAnswerableConstrained(ctx, q, "")
		if err != nil {
			return nil, err
		}
		log.Debug("checked candidate", zap.String("question", q), zap.Bool("ic", ic), zap.Bool("zs", zs))
		results = append(results, verdictPair{question: q, ic: ic, zs: zs})
	}

	author, err := g.author(ctx, db, shape)
	if err != nil {
		return nil, err
	}

	var accepted []string
	for _, r := range results {
		if r.ic && r.zs {
			accepted = append(accepted, r.question)
			continue
		}
		rejected := &store.RejectedQuestion{
			ParagraphID:    p.ID,
			Scope:          store.ScopeSingleParagraph,
			Context:        ctxText,
			Text:           r.question,
			AuthorID:       author.ID,
			Timestamp:      store.FormatTimestamp(g.now()),
			IsAnswerableIC: r.ic,
			IsAnswerableZS: r.zs,
			Turns:          TurnsSingle,
		}
		if _, err := db.CreateRejectedQuestion(ctx, rejected); err != nil {
			return nil, err
		}
		log.Info("rejected question", zap.String("question", r.question), zap.Bool("ic", r.ic), zap.Bool("zs", r.zs))
	}

	ids := make([]int, 0, len(accepted))
	for _, q := range accepted {
		id, err := db.CreateQuestion(ctx, g.question(p, ctxText, q, author.ID, TurnsSingle))
		if err != nil {
			return nil, err
		}
		log.Info("added question", zap.Int("question_id", id), zap.String("question", q))
		ids = append(ids, id)
	}
	return ids, nil
}
