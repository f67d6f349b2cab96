package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

const defaultOllamaServerURL = "http://localhost:11434"

// OllamaProvider implements Provider on top of a local Ollama server
// through langchaingo.
type OllamaProvider struct {
	llm   llms.Model
	model string
}

// NewOllamaProvider creates a new Ollama provider.
func NewOllamaProvider(cfg OllamaConfig) (*OllamaProvider, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("ollama model is required")
	}
	serverURL := cfg.ServerURL
	if serverURL == "" {
		serverURL = defaultOllamaServerURL
	}

	model, err := ollama.New(
		ollama.WithModel(cfg.Model),
		ollama.WithServerURL(serverURL),
	)
	if err != nil {
		return nil, fmt.Errorf("create ollama client: %w", err)
	}

	return &OllamaProvider{llm: model, model: cfg.Model}, nil
}

func (p *OllamaProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	req = withChoiceSchema(req)

	content := make([]llms.MessageContent, 0, len(req.Messages)+1)
	if req.System != "" {
		content = append(content, llms.TextParts(llms.ChatMessageTypeSystem, req.System))
	}
	for _, m := range req.Messages {
		role := llms.ChatMessageTypeHuman
		if m.Role == RoleAssistant {
			role = llms.ChatMessageTypeAI
		}
		content = append(content, llms.TextParts(role, m.Content))
	}

	opts := []llms.CallOption{
		llms.WithMaxTokens(maxTokensOrDefault(req.MaxTokens)),
		llms.WithTemperature(req.Temperature),
	}
	if req.TopP > 0 {
		opts = append(opts, llms.WithTopP(req.TopP))
	}
	if req.TopK > 0 {
		opts = append(opts, llms.WithTopK(req.TopK))
	}
	if req.RepetitionPenalty > 0 {
		opts = append(opts, llms.WithRepetitionPenalty(req.RepetitionPenalty))
	}
	if len(req.Stop) > 0 {
		opts = append(opts, llms.WithStopWords(req.Stop))
	}
	if req.Schema != nil {
		opts = append(opts, llms.WithJSONMode())
	}

	resp, err := p.llm.GenerateContent(ctx, content, opts...)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, &ErrProviderUnavailable{Err: err}
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return nil, &ErrInvalidResponse{Err: fmt.Errorf("no choices in ollama response")}
	}

	choice := resp.Choices[0]
	text, err := finishText(req, choice.Content)
	if err != nil {
		return nil, err
	}

	usage := Usage{
		InputTokens:  generationInt(choice.GenerationInfo, "PromptTokens"),
		OutputTokens: generationInt(choice.GenerationInfo, "CompletionTokens"),
		TotalTokens:  generationInt(choice.GenerationInfo, "TotalTokens"),
	}

	return &Response{
		Text:       text,
		Usage:      usage,
		Model:      p.model,
		StopReason: "end",
	}, nil
}

func (p *OllamaProvider) ModelID() string {
	return p.model
}

func generationInt(info map[string]any, key string) int {
	switch v := info[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
