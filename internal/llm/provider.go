package llm

import (
	"context"
)

// Provider is the core abstraction for LLM interaction.
// Consumers call Generate with a Request and receive the completion text.
type Provider interface {
	// Generate sends a prompt to the LLM and returns its completion.
	// When the request carries Choices, the provider restricts the reply
	// to one of them using its native constrained decoding mechanism.
	Generate(ctx context.Context, req Request) (*Response, error)

	// ModelID returns the model identifier this provider is configured to use.
	ModelID() string
}

// Request describes what to send to the LLM.
type Request struct {
	// System is the system prompt. Empty for the dataset prompts, which
	// carry their own instruction markers.
	System string

	// Messages is the conversation history. Dataset generation always
	// sends a single user message.
	Messages []Message

	// Stop lists sequences that end generation.
	Stop []string

	// MaxTokens is the maximum number of tokens in the response.
	MaxTokens int

	// Temperature controls randomness. 0 means deterministic.
	Temperature float64

	// TopP, TopK and RepetitionPenalty are sampling controls. Zero values
	// leave the provider default in place. Providers ignore the ones their
	// API does not expose.
	TopP              float64
	TopK              int
	RepetitionPenalty float64

	// Choices, when set, restricts the completion to exactly one of the
	// listed strings.
	Choices []string

	// Schema is the JSON Schema the response must conform to. Providers
	// without native choice decoding derive one from Choices.
	Schema *Schema
}

// Message represents a single message in the conversation.
type Message struct {
	Role    Role
	Content string
}

// Role is the message sender role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Schema defines the JSON structure expected from the LLM.
type Schema struct {
	// Name identifies this schema (schema name for OpenAI, cache key for
	// validation). Kebab-case, e.g. "answer-choice".
	Name string

	// Description is a human-readable description of what this schema
	// represents.
	Description string

	// Definition is the JSON Schema definition as a map.
	Definition map[string]any
}

// Response holds the LLM's output.
type Response struct {
	// Text is the completion text. For constrained requests it is the
	// selected choice.
	Text string

	// Usage reports token consumption for this request.
	Usage Usage

	// Model is the actual model that served the request.
	Model string

	// StopReason indicates why generation stopped.
	// Normalized to: "end", "max_tokens", "error"
	StopReason string
}

// Usage tracks token consumption for a single request.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// UserPrompt builds a single-message request for prompt.
func UserPrompt(prompt string) []Message {
	return []Message{{Role: RoleUser, Content: prompt}}
}
