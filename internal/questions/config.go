package questions

import (
	"fmt"

	"github.com/fleecekm/fleeceqa/internal/llm"
)

// Sampling holds the decoding parameters sent with every request.
type Sampling struct {
	MaxTokens         int     `yaml:"max_tokens"`
	Temperature       float64 `yaml:"temperature"`
	TopP              float64 `yaml:"top_p"`
	TopK              int     `yaml:"top_k"`
	RepetitionPenalty float64 `yaml:"repetition_penalty"`
}

func (s Sampling) apply(req *llm.Request) {
	req.MaxTokens = s.MaxTokens
	req.Temperature = s.Temperature
	req.TopP = s.TopP
	req.TopK = s.TopK
	req.RepetitionPenalty = s.RepetitionPenalty
}

// Config controls question generation and the answerability checks.
type Config struct {
	// NumQuestions is the number of accepted questions wanted per
	// paragraph.
	NumQuestions int `yaml:"num_questions"`

	// MaxAttempts bounds the generation rounds of the multi-turn loop.
	MaxAttempts int `yaml:"max_attempts"`

	// PromptPrefix and PromptSuffix are the instruction markers expected
	// by the model, e.g. "[INST]" and "[/INST]".
	PromptPrefix string `yaml:"prompt_prefix"`
	PromptSuffix string `yaml:"prompt_suffix"`

	Stop     []string `yaml:"stop"`
	Sampling Sampling `yaml:"sampling"`
}

// DefaultConfig returns the settings used for the published dataset.
func DefaultConfig() Config {
	return Config{
		NumQuestions: 3,
		MaxAttempts:  3,
		PromptPrefix: "[INST]",
		PromptSuffix: "[/INST]",
		Sampling: Sampling{
			MaxTokens:         512,
			Temperature:       0,
			TopP:              0.7,
			TopK:              50,
			RepetitionPenalty: 1.1,
		},
	}
}

// Validate rejects settings the generator cannot run with.
func (c Config) Validate() error {
	if c.NumQuestions < 1 {
		return fmt.Errorf("num_questions must be at least 1, got %d", c.NumQuestions)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1, got %d", c.MaxAttempts)
	}
	if c.Sampling.MaxTokens < 0 {
		return fmt.Errorf("sampling.max_tokens must not be negative")
	}
	return nil
}
