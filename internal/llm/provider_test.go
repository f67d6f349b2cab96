package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/fleecekm/fleeceqa/internal/store"
)

func TestMockProvider_ReturnsCannedResponses(t *testing.T) {
	mock := NewMockProvider(
		MockResponse{Text: "1. First?", Usage: Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15}},
		MockResponse{Text: "YES"},
	)

	resp1, err := mock.Generate(context.Background(), Request{Messages: UserPrompt("first")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp1.Text != "1. First?" {
		t.Fatalf("expected '1. First?', got %q", resp1.Text)
	}
	if resp1.Usage.InputTokens != 10 {
		t.Fatalf("expected 10 input tokens, got %d", resp1.Usage.InputTokens)
	}
	if resp1.StopReason != "end" {
		t.Fatalf("expected stop reason 'end', got %q", resp1.StopReason)
	}

	resp2, err := mock.Generate(context.Background(), Request{Messages: UserPrompt("second")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp2.Text != "YES" {
		t.Fatalf("expected YES, got %q", resp2.Text)
	}

	prompts := mock.Prompts()
	if len(prompts) != 2 || prompts[0] != "first" || prompts[1] != "second" {
		t.Fatalf("unexpected prompts: %v", prompts)
	}
}

func TestMockProvider_EmptyQueueReturnsError(t *testing.T) {
	mock := NewMockProvider()
	_, err := mock.Generate(context.Background(), Request{})
	if err == nil {
		t.Fatal("expected error from empty queue")
	}
	var unavail *ErrProviderUnavailable
	if !errors.As(err, &unavail) {
		t.Fatalf("expected ErrProviderUnavailable, got: %T", err)
	}
}

func TestMockProvider_RecordsCalls(t *testing.T) {
	mock := NewMockProvider(MockText("ok")...)

	req := Request{
		System:   "sys",
		Messages: UserPrompt("hello"),
		Choices:  []string{"YES", "NO"},
	}
	_, _ = mock.Generate(context.Background(), req)

	if mock.CallCount() != 1 {
		t.Fatalf("expected 1 call, got %d", mock.CallCount())
	}
	if mock.Calls[0].System != "sys" {
		t.Fatalf("expected system 'sys', got %q", mock.Calls[0].System)
	}
	if len(mock.Calls[0].Choices) != 2 {
		t.Fatalf("expected choices to be recorded, got %v", mock.Calls[0].Choices)
	}
}

func TestMockProvider_ReturnsConfiguredError(t *testing.T) {
	mock := NewMockProvider(
		MockResponse{Err: &ErrRateLimit{RetryAfter: 0}},
	)

	_, err := mock.Generate(context.Background(), Request{})
	if err == nil {
		t.Fatal("expected error")
	}
	var rl *ErrRateLimit
	if !errors.As(err, &rl) {
		t.Fatalf("expected ErrRateLimit, got: %T", err)
	}
}

func TestMockProvider_ModelID(t *testing.T) {
	mock := NewMockProvider()
	if mock.ModelID() != "mock" {
		t.Fatalf("expected 'mock', got %q", mock.ModelID())
	}
}

func TestPurposeContext(t *testing.T) {
	ctx := context.Background()
	if p := PurposeFrom(ctx); p != "unknown" {
		t.Fatalf("expected 'unknown', got %q", p)
	}

	ctx = WithPurpose(ctx, "question-gen")
	if p := PurposeFrom(ctx); p != "question-gen" {
		t.Fatalf("expected 'question-gen', got %q", p)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name:    "anthropic without key",
			cfg:     Config{Provider: "anthropic"},
			wantErr: true,
		},
		{
			name:    "anthropic with key",
			cfg:     Config{Provider: "anthropic", APIKey: "sk-test"},
			wantErr: false,
		},
		{
			name:    "openai without key",
			cfg:     Config{Provider: "openai"},
			wantErr: true,
		},
		{
			name:    "vllm needs a model",
			cfg:     Config{Provider: "vllm"},
			wantErr: true,
		},
		{
			name:    "vllm with model",
			cfg:     Config{Provider: "vllm", Model: "m"},
			wantErr: false,
		},
		{
			name:    "ollama with model",
			cfg:     Config{Provider: "ollama", Model: "mistral"},
			wantErr: false,
		},
		{
			name:    "mock needs no key",
			cfg:     Config{Provider: "mock"},
			wantErr: false,
		},
		{
			name:    "negative retries",
			cfg:     Config{Provider: "mock", Retry: RetryConfig{MaxRetries: -1}},
			wantErr: true,
		},
		{
			name:    "unknown provider",
			cfg:     Config{Provider: "unknown"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("FLEECE_LLM_PROVIDER", "openai")
	t.Setenv("FLEECE_LLM_MODEL", "gpt-4o-mini")
	t.Setenv("FLEECE_LLM_TIMEOUT", "5s")
	t.Setenv("FLEECE_LLM_MAX_RETRIES", "3")
	t.Setenv("FLEECE_LLM_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "sk-env")

	cfg := ConfigFromEnv()
	if cfg.Provider != "openai" || cfg.Model != "gpt-4o-mini" {
		t.Fatalf("unexpected provider/model: %q/%q", cfg.Provider, cfg.Model)
	}
	if cfg.Timeout != 5*time.Second {
		t.Fatalf("timeout = %s, want 5s", cfg.Timeout)
	}
	if cfg.Retry.MaxRetries != 3 {
		t.Fatalf("max retries = %d, want 3", cfg.Retry.MaxRetries)
	}
	if cfg.APIKey != "sk-env" {
		t.Fatalf("api key = %q, want the OPENAI_API_KEY fallback", cfg.APIKey)
	}
}

type recordingEventRepo struct {
	store.EventRepo
	events []store.LLMRequestEventData
	err    error
}

func (r *recordingEventRepo) AppendLLMRequest(_ context.Context, data store.LLMRequestEventData) error {
	r.events = append(r.events, data)
	return r.err
}

func TestLoggingProvider_RecordsEvents(t *testing.T) {
	mock := NewMockProvider(
		MockResponse{Text: "YES", Usage: Usage{InputTokens: 7, OutputTokens: 1}},
		MockResponse{Err: &ErrProviderUnavailable{Err: errors.New("down")}},
	)
	repo := &recordingEventRepo{}
	p := WithLogging(mock, "vllm", repo, zap.NewNop())

	ctx := WithPurpose(context.Background(), "answerability")
	if _, err := p.Generate(ctx, Request{Messages: UserPrompt("Is it?"), Choices: []string{"YES", "NO"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := p.Generate(ctx, Request{Messages: UserPrompt("Again?")}); err == nil {
		t.Fatal("expected error")
	}

	if len(repo.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(repo.events))
	}
	ok := repo.events[0]
	if !ok.Success || ok.Provider != "vllm" || ok.Purpose != "answerability" || ok.InputTokens != 7 || ok.ResponseBody != "YES" {
		t.Fatalf("unexpected success event: %+v", ok)
	}
	if ok.RequestBody != "[user]\nIs it?\n\n[choices: YES, NO]\n" {
		t.Fatalf("unexpected request body: %q", ok.RequestBody)
	}
	failed := repo.events[1]
	if failed.Success || failed.ErrorMessage == "" {
		t.Fatalf("unexpected failure event: %+v", failed)
	}
}

func TestLoggingProvider_RepoFailureIsNotFatal(t *testing.T) {
	mock := NewMockProvider(MockText("ok")...)
	repo := &recordingEventRepo{err: errors.New("disk full")}
	p := WithLogging(mock, "mock", repo, nil)

	resp, err := p.Generate(context.Background(), Request{})
	if err != nil {
		t.Fatalf("logging failure must not fail the request: %v", err)
	}
	if resp.Text != "ok" {
		t.Fatalf("unexpected text: %q", resp.Text)
	}
}

func TestWrap_RetriesEveryAttemptLogged(t *testing.T) {
	mock := NewMockProvider(
		MockResponse{Err: &ErrProviderUnavailable{Err: errors.New("down")}},
		MockResponse{Text: "NO"},
	)
	repo := &recordingEventRepo{}
	cfg := Config{Provider: ProviderMock, Retry: retryConfig()}
	p := Wrap(mock, cfg, repo, zap.NewNop())

	resp, err := p.Generate(context.Background(), Request{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text != "NO" {
		t.Fatalf("unexpected text: %q", resp.Text)
	}
	if len(repo.events) != 2 {
		t.Fatalf("expected one event per attempt, got %d", len(repo.events))
	}
}

func TestNewProvider_Mock(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{Provider: ProviderMock}, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ModelID() != "mock" {
		t.Fatalf("expected 'mock', got %q", p.ModelID())
	}
}

func TestNewProvider_UnknownProvider(t *testing.T) {
	if _, err := NewProvider(context.Background(), Config{Provider: "bogus"}, nil, nil); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
