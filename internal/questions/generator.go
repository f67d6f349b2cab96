// Package questions generates self-contained questions about a paragraph
// and keeps only those the model judges answerable both from the
// paragraph and on their own.
package questions

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fleecekm/fleeceqa/internal/llm"
	"github.com/fleecekm/fleeceqa/internal/prompt"
	"github.com/fleecekm/fleeceqa/internal/store"
)

// PurposeGenerate labels question generation requests.
const PurposeGenerate = "question-gen"

// TurnsSingle marks rows written by GenerateSingleTurn.
const TurnsSingle = "single"

const multiTurnTemplate = "{PROMPT_PREFIX}Generate {NUM_QUESTIONS} additional short answer (DO NOT INCLUDE CHOICES) questions about the facts mentioned in the following paragraph. The questions should be self-contained; meaning you avoid using references such as 'it', 'the game', 'the person', etc., but should directly include the name of the referenced item instead. Remember to include relevant context in the question. \n\nExisting questions:\n{EXISTING_QUESTIONS}\n\nParagraph: {PARAGRAPH}\n{PROMPT_SUFFIX}"

const singleTurnTemplate = "{PROMPT_PREFIX}Generate {NUM_QUESTIONS} short answer questions about the facts mentioned in the following paragraph. The questions should be self-contained; meaning you avoid using references such as 'it', 'the game', 'the person', etc., but should directly include the name of the referenced item instead. Remember to include relevant context in the question. \n\nParagraph: {PARAGRAPH}\n{PROMPT_SUFFIX}"

var candidateLine = regexp.MustCompile(`^[0-9]\.`)

// Store is the persistence the generator writes through. *store.Tx and
// *store.Store both satisfy it.
type Store interface {
	FindAuthor(ctx context.Context, model, prompt string) (*store.Author, error)
	CreateAuthor(ctx context.Context, model, prompt string) (*store.Author, error)
	CreateQuestion(ctx context.Context, q *store.Question) (int, error)
	CreateRejectedQuestion(ctx context.Context, r *store.RejectedQuestion) (int, error)
}

// Generator produces questions for paragraphs.
type Generator struct {
	provider llm.Provider
	oracle   *Oracle
	facts    FactProvider
	config   Config
	logger   *zap.Logger
	now      func() time.Time
}

// New creates a Generator. A nil logger discards output.
func New(provider llm.Provider, cfg Config, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		provider: provider,
		oracle:   NewOracle(provider, cfg, logger),
		facts:    HierarchyFacts{},
		config:   cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// WithFacts replaces the fact provider.
func (g *Generator) WithFacts(f FactProvider) *Generator {
	g.facts = f
	return g
}

// Oracle returns the answerability oracle the generator uses.
func (g *Generator) Oracle() *Oracle { return g.oracle }

// Generate runs the multi-turn loop for p and stores the accepted
// questions through db. It returns their ids in acceptance order.
//
// Every round lists the questions accepted so far and asks for more. A
// candidate is accepted only when both the in-context and the zero-shot
// free-form checks say YES. Falling short of NumQuestions after
// MaxAttempts rounds is logged, not returned as an error.
func (g *Generator) Generate(ctx context.Context, db Store, p store.Paragraph) ([]int, error) {
	ctxText, fact := g.facts.Derive(p)
	log := g.logger.With(zap.Int("paragraph_id", p.ID))
	k := g.config.NumQuestions

	shape, err := prompt.Shape(multiTurnTemplate, g.templateVars(fact, ""))
	if err != nil {
		return nil, err
	}

	log.Info("generating questions")

	var accepted []string
	for attempt := 1; len(accepted) < k && attempt <= g.config.MaxAttempts; attempt++ {
		literal, _, err := prompt.Render(multiTurnTemplate, g.templateVars(fact, existingList(accepted)))
		if err != nil {
			return nil, err
		}
		candidates, err := g.complete(ctx, literal)
		if err != nil {
			return nil, err
		}
		log.Debug("generated candidates", zap.Int("attempt", attempt), zap.Strings("candidates", candidates))

		for _, q := range candidates {
			ic, err := g.oracle.IsAnswerable(ctx, q, fact)
			if err != nil {
				return nil, err
			}
			zs, err := g.oracle.IsAnswerable(ctx, q, "")
			if err != nil {
				return nil, err
			}
			log.Debug("checked candidate", zap.String("question", q), zap.Bool("ic", ic), zap.Bool("zs", zs))
			if ic && zs {
				accepted = append(accepted, q)
			}
		}
	}

	if len(accepted) < k {
		log.Warn("question shortfall",
			zap.Int("wanted", k),
			zap.Int("accepted", len(accepted)),
			zap.Int("max_attempts", g.config.MaxAttempts),
		)
	}

	author, err := g.author(ctx, db, shape)
	if err != nil {
		return nil, err
	}

	ids := make([]int, 0, len(accepted))
	for _, q := range accepted {
		id, err := db.CreateQuestion(ctx, g.question(p, ctxText, q, author.ID, ""))
		if err != nil {
			return nil, err
		}
		log.Info("added question", zap.Int("question_id", id), zap.String("question", q))
		ids = append(ids, id)
	}
	return ids, nil
}

// complete sends one generation request and parses the candidates out of
// the reply.
func (g *Generator) complete(ctx context.Context, literal string) ([]string, error) {
	req := llm.Request{
		Messages: llm.UserPrompt(literal),
		Stop:     g.config.Stop,
	}
	g.config.Sampling.apply(&req)

	resp, err := g.provider.Generate(llm.WithPurpose(ctx, PurposeGenerate), req)
	if err != nil {
		return nil, fmt.Errorf("generate questions: %w", err)
	}
	return ParseCandidates(resp.Text), nil
}

// author finds or registers the (model, prompt shape) pair.
func (g *Generator) author(ctx context.Context, db Store, shape string) (*store.Author, error) {
	model := g.provider.ModelID()
	a, err := db.FindAuthor(ctx, model, shape)
	if err != nil {
		return nil, err
	}
	if a != nil {
		return a, nil
	}
	return db.CreateAuthor(ctx, model, shape)
}

func (g *Generator) templateVars(fact, existing string) map[string]any {
	return map[string]any{
		"NUM_QUESTIONS":      g.config.NumQuestions,
		"EXISTING_QUESTIONS": existing,
		"PARAGRAPH":          fact,
		prompt.PrefixVar:     g.config.PromptPrefix,
		prompt.SuffixVar:     g.config.PromptSuffix,
	}
}

func (g *Generator) question(p store.Paragraph, ctxText, text string, authorID int, turns string) *store.Question {
	return &store.Question{
		ParagraphID: p.ID,
		Scope:       store.ScopeSingleParagraph,
		Context:     ctxText,
		Text:        text,
		AuthorID:    authorID,
		Timestamp:   store.FormatTimestamp(g.now()),
		Turns:       turns,
	}
}

// ParseCandidates returns the numbered lines of a completion with the
// ordinal removed. Only lines that start with a single digit and a dot
// count; the rest of the reply is ignored.
func ParseCandidates(text string) []string {
	var out []string
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		if candidateLine.MatchString(line) {
			out = append(out, strings.TrimSpace(line[2:]))
		}
	}
	return out
}

// existingList renders accepted questions as "1. q\n2. q\n".
func existingList(questions []string) string {
	var b strings.Builder
	for i, q := range questions {
		fmt.Fprintf(&b, "%d. %s\n", i+1, q)
	}
	return b.String()
}
