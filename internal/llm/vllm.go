package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const defaultVLLMBaseURL = "http://localhost:8000/v1"

// VLLMProvider talks to an OpenAI-compatible chat completion server that
// understands the vLLM sampling extensions. The OpenAI SDK can send
// guided_choice but has no top_k or repetition_penalty fields, so requests
// are built by hand.
type VLLMProvider struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

// NewVLLMProvider creates a provider for a vLLM-style endpoint.
func NewVLLMProvider(cfg VLLMConfig) (*VLLMProvider, error) {
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("vllm model is required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultVLLMBaseURL
	}
	return &VLLMProvider{
		client:  &http.Client{},
		baseURL: baseURL,
		apiKey:  strings.TrimSpace(cfg.APIKey),
		model:   cfg.Model,
	}, nil
}

type vllmMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type vllmRequest struct {
	Model             string        `json:"model"`
	Messages          []vllmMessage `json:"messages"`
	MaxTokens         int           `json:"max_tokens"`
	Temperature       float64       `json:"temperature"`
	TopP              float64       `json:"top_p,omitempty"`
	TopK              int           `json:"top_k,omitempty"`
	RepetitionPenalty float64       `json:"repetition_penalty,omitempty"`
	Stop              []string      `json:"stop,omitempty"`
	Stream            bool          `json:"stream"`
	GuidedChoice      []string      `json:"guided_choice,omitempty"`
	GuidedJSON        any           `json:"guided_json,omitempty"`
}

type vllmResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (p *VLLMProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	body := vllmRequest{
		Model:             p.model,
		Messages:          buildVLLMMessages(req),
		MaxTokens:         maxTokensOrDefault(req.MaxTokens),
		Temperature:       req.Temperature,
		TopP:              req.TopP,
		TopK:              req.TopK,
		RepetitionPenalty: req.RepetitionPenalty,
		Stop:              req.Stop,
		GuidedChoice:      req.Choices,
	}
	if req.Schema != nil && len(req.Choices) == 0 {
		body.GuidedJSON = req.Schema.Definition
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal vllm request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build vllm request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &ErrProviderUnavailable{Err: err}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &ErrProviderUnavailable{Err: fmt.Errorf("read vllm response: %w", err)}
	}

	if httpResp.StatusCode >= http.StatusBadRequest {
		return nil, mapVLLMStatus(httpResp, respBody)
	}

	var result vllmResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, &ErrInvalidResponse{Content: string(respBody), Err: fmt.Errorf("decode vllm response: %w", err)}
	}
	if result.Error != nil && strings.TrimSpace(result.Error.Message) != "" {
		return nil, &ErrProviderUnavailable{Err: errors.New(result.Error.Message)}
	}
	if len(result.Choices) == 0 {
		return nil, &ErrInvalidResponse{
			Content: string(respBody),
			Err:     fmt.Errorf("no choices in vllm response"),
		}
	}

	stop := mapVLLMStopReason(result.Choices[0].FinishReason)
	text := result.Choices[0].Message.Content
	if req.Schema != nil && len(req.Choices) == 0 {
		if stop == "max_tokens" {
			return nil, &ErrMaxTokensExceeded{Content: text}
		}
		if err := validateResponse(req.Schema, text); err != nil {
			return nil, err
		}
	}

	model := result.Model
	if model == "" {
		model = p.model
	}

	return &Response{
		Text: text,
		Usage: Usage{
			InputTokens:  result.Usage.PromptTokens,
			OutputTokens: result.Usage.CompletionTokens,
			TotalTokens:  result.Usage.TotalTokens,
		},
		Model:      model,
		StopReason: stop,
	}, nil
}

func (p *VLLMProvider) ModelID() string {
	return p.model
}

func buildVLLMMessages(req Request) []vllmMessage {
	messages := make([]vllmMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, vllmMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		messages = append(messages, vllmMessage{Role: string(m.Role), Content: m.Content})
	}
	return messages
}

func mapVLLMStopReason(reason string) string {
	if reason == "length" {
		return "max_tokens"
	}
	return "end"
}

func mapVLLMStatus(resp *http.Response, body []byte) error {
	err := fmt.Errorf("vllm error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &ErrRateLimit{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")), Err: err}
	case resp.StatusCode >= 500:
		return &ErrProviderUnavailable{Err: err}
	}
	return &ErrProviderUnavailable{Err: err}
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
