package llm

import "strings"

// ModelCost holds per-million-token pricing for a model, in USD.
type ModelCost struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

// Cost calculates the total USD cost for the given token counts.
func (c ModelCost) Cost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)*c.InputPerMTok/1_000_000 +
		float64(outputTokens)*c.OutputPerMTok/1_000_000
}

// selfHosted is the cost of a model served from our own hardware.
var selfHosted = ModelCost{}

// LookupCost returns the pricing for a model ID, or nil if unknown.
//
// Lookups ignore case, since Hugging Face repo ids are recorded as
// written in the config. OpenRouter ":free" variants and Ollama tags
// ("mixtral:8x7b") cost nothing.
func LookupCost(modelID string) *ModelCost {
	id := strings.ToLower(strings.TrimSpace(modelID))
	if id == "" {
		return nil
	}
	if c, ok := modelCosts[id]; ok {
		return &c
	}
	if strings.HasSuffix(id, ":free") {
		c := selfHosted
		return &c
	}
	if strings.Contains(id, ":") && !strings.Contains(id, "/") {
		c := selfHosted
		return &c
	}
	return nil
}

// modelCosts is keyed by lowercase model ID.
var modelCosts = map[string]ModelCost{
	// Open-weight checkpoints served by vLLM. These are the Hugging Face
	// repo ids passed as --model to the server.
	"mistralai/mixtral-8x7b-instruct-v0.1":  selfHosted,
	"mistralai/mistral-7b-instruct-v0.2":    selfHosted,
	"mistralai/mistral-7b-instruct-v0.3":    selfHosted,
	"meta-llama/llama-2-13b-chat-hf":        selfHosted,
	"meta-llama/llama-2-70b-chat-hf":        selfHosted,
	"meta-llama/meta-llama-3-8b-instruct":   selfHosted,
	"meta-llama/meta-llama-3-70b-instruct":  selfHosted,
	"meta-llama/meta-llama-3.1-8b-instruct": selfHosted,
	"qwen/qwen2.5-7b-instruct":              selfHosted,
	"qwen/qwen2.5-72b-instruct":             selfHosted,
	"huggingfaceh4/zephyr-7b-beta":          selfHosted,
	"tiiuae/falcon-7b-instruct":             selfHosted,

	// OpenRouter slugs for the same families.
	"mistralai/mixtral-8x7b-instruct":   {0.54, 0.54},
	"mistralai/mixtral-8x22b-instruct":  {0.9, 0.9},
	"mistralai/mistral-7b-instruct":     {0.028, 0.054},
	"meta-llama/llama-3.1-70b-instruct": {0.12, 0.3},
	"meta-llama/llama-3-70b-instruct":   {0.3, 0.4},
	"qwen/qwen-2.5-72b-instruct":        {0.12, 0.39},

	// Anthropic
	"claude-3-5-haiku-20241022":  {0.8, 4},
	"claude-3-haiku-20240307":    {0.25, 1.25},
	"claude-haiku-4-5":           {1, 5},
	"claude-haiku-4-5-20251001":  {1, 5},
	"claude-sonnet-4-20250514":   {3, 15},
	"claude-sonnet-4-5":          {3, 15},
	"claude-sonnet-4-5-20250929": {3, 15},

	// OpenAI
	"gpt-3.5-turbo": {0.5, 1.5},
	"gpt-4o":        {2.5, 10},
	"gpt-4o-mini":   {0.15, 0.6},
	"gpt-4.1-mini":  {0.4, 1.6},
	"gpt-4.1-nano":  {0.1, 0.4},

	// Google
	"gemini-1.5-flash":      {0.075, 0.3},
	"gemini-2.0-flash":      {0.1, 0.4},
	"gemini-2.0-flash-lite": {0.075, 0.3},
	"gemini-2.5-flash":      {0.3, 2.5},
	"gemini-2.5-pro":        {1.25, 10},
}
