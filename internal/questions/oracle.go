package questions

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fleecekm/fleeceqa/internal/llm"
	"github.com/fleecekm/fleeceqa/internal/prompt"
)

// Verdict is the outcome of one answerability check.
type Verdict int

const (
	NotAnswerable Verdict = iota
	Answerable
	// MalformedNotAnswerable is a free-form reply that started with
	// neither YES nor NO. It counts as not answerable.
	MalformedNotAnswerable
)

func (v Verdict) String() string {
	switch v {
	case Answerable:
		return "answerable"
	case NotAnswerable:
		return "not-answerable"
	case MalformedNotAnswerable:
		return "malformed"
	}
	return fmt.Sprintf("verdict(%d)", int(v))
}

// Mode selects how the oracle reads the model's reply.
type Mode int

const (
	// FreeForm parses a YES/NO prefix out of unconstrained text.
	FreeForm Mode = iota
	// Constrained restricts decoding to exactly YES or NO.
	Constrained
)

// Purpose labels attached to oracle requests for event logging.
const (
	PurposeCheckInContext = "answerability-ic"
	PurposeCheckZeroShot  = "answerability-zs"
)

var yesNo = []string{"YES", "NO"}

// MalformedAnswerError is returned by a constrained check whose reply is
// not exactly YES or NO.
type MalformedAnswerError struct {
	Question string
	Reply    string
}

func (e *MalformedAnswerError) Error() string {
	return fmt.Sprintf("malformed answerability reply %q for question %q", e.Reply, e.Question)
}

// Oracle asks the model whether a question can be answered, either from
// a supporting fact (in-context) or on its own (zero-shot).
type Oracle struct {
	provider llm.Provider
	config   Config
	logger   *zap.Logger
}

// NewOracle creates an Oracle. The prompt prefix, suffix, stop sequences
// and sampling settings come from cfg.
func NewOracle(provider llm.Provider, cfg Config, logger *zap.Logger) *Oracle {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Oracle{provider: provider, config: cfg, logger: logger}
}

// IsAnswerable runs a free-form check. An empty fact selects the
// zero-shot prompt.
func (o *Oracle) IsAnswerable(ctx context.Context, question, fact string) (bool, error) {
	v, err := o.Check(ctx, question, fact, FreeForm)
	return v == Answerable, err
}

// IsAnswerableConstrained runs a constrained check. Replies outside
// {YES, NO} fail with *MalformedAnswerError.
func (o *Oracle) IsAnswerableConstrained(ctx context.Context, question, fact string) (bool, error) {
	v, err := o.Check(ctx, question, fact, Constrained)
	return v == Answerable, err
}

// Check makes exactly one model call, or none for a blank question.
func (o *Oracle) Check(ctx context.Context, question, fact string, mode Mode) (Verdict, error) {
	if strings.TrimSpace(question) == "" {
		o.logger.Debug("blank question, skipping answerability check")
		return NotAnswerable, nil
	}

	purpose := PurposeCheckZeroShot
	if fact != "" {
		purpose = PurposeCheckInContext
	}
	ctx = llm.WithPurpose(ctx, purpose)

	req := llm.Request{
		Messages: llm.UserPrompt(prompt.Wrap(o.config.PromptPrefix, checkPrompt(question, fact, mode), o.config.PromptSuffix)),
		Stop:     o.config.Stop,
	}
	o.config.Sampling.apply(&req)
	if mode == Constrained {
		req.Choices = yesNo
	}

	resp, err := o.provider.Generate(ctx, req)
	if err != nil {
		return NotAnswerable, fmt.Errorf("answerability check: %w", err)
	}

	reply := strings.TrimSpace(resp.Text)
	if mode == Constrained {
		switch reply {
		case "NO":
			return NotAnswerable, nil
		case "YES":
			return Answerable, nil
		}
		return NotAnswerable, &MalformedAnswerError{Question: question, Reply: reply}
	}

	upper := strings.ToUpper(reply)
	switch {
	case strings.HasPrefix(upper, "NO"):
		return NotAnswerable, nil
	case strings.HasPrefix(upper, "YES"):
		return Answerable, nil
	}
	o.logger.Info("malformed answerability reply",
		zap.String("question", question),
		zap.String("reply", reply),
	)
	return MalformedNotAnswerable, nil
}

func checkPrompt(question, fact string, mode Mode) string {
	switch {
	case mode == FreeForm && fact == "":
		return fmt.Sprintf("Is the following question: \n\n %s \n\n answerable without additional context? \n\n Reply 'YES' and 'NO' only.", question)
	case mode == FreeForm:
		return fmt.Sprintf("Is the following question: \n\n %s \n\n answerable using *only* the following fact? \n\n Fact: %s \n\n Reply 'YES' and 'NO' only.", question, fact)
	case fact == "":
		return fmt.Sprintf("Is the following question: \n\n %s \n\n a valid question without additional context? \n\n Reply 'YES' and 'NO' only.", question)
	default:
		return fmt.Sprintf("Is the following question: \n\n %s \n\n answerable using only the following fact? \n\n Fact: %s \n\n Reply 'YES' and 'NO' only.", question, fact)
	}
}
