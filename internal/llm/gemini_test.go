package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestGeminiProvider(t *testing.T, handler http.HandlerFunc) *GeminiProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	p, err := NewGeminiProvider(context.Background(), GeminiConfig{
		APIKey:  "test-key",
		Model:   "gemini-flash",
		BaseURL: server.URL,
	})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	return p
}

func geminiReply(w http.ResponseWriter, text, finish string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"candidates": []map[string]any{
			{
				"content": map[string]any{
					"role":  "model",
					"parts": []map[string]any{{"text": text}},
				},
				"finishReason": finish,
			},
		},
		"usageMetadata": map[string]any{
			"promptTokenCount":     40,
			"candidatesTokenCount": 6,
			"totalTokenCount":      46,
		},
	})
}

func TestGeminiProvider_GenerateSendsZeroTemperature(t *testing.T) {
	var path string
	var body map[string]any
	p := newTestGeminiProvider(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		json.NewDecoder(r.Body).Decode(&body)
		geminiReply(w, "1. When was Rome founded?", "STOP")
	})

	resp, err := p.Generate(context.Background(), Request{
		Messages:  UserPrompt("Rome was founded in 753 BC."),
		MaxTokens: 512,
		TopP:      0.7,
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.HasSuffix(path, "/models/gemini-2.0-flash:generateContent") {
		t.Errorf("path = %q, want friendly name resolved to gemini-2.0-flash", path)
	}
	if resp.Text != "1. When was Rome founded?" || resp.StopReason != "end" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Usage.InputTokens != 40 || resp.Usage.OutputTokens != 6 {
		t.Fatalf("unexpected usage: %+v", resp.Usage)
	}

	gen, _ := body["generationConfig"].(map[string]any)
	temp, ok := gen["temperature"].(float64)
	if !ok || temp != 0 {
		t.Errorf("generationConfig.temperature = %v (present %v), want explicit 0", gen["temperature"], ok)
	}
}

func TestGeminiProvider_ChoiceDecoded(t *testing.T) {
	p := newTestGeminiProvider(t, func(w http.ResponseWriter, r *http.Request) {
		geminiReply(w, `{"choice":"NO"}`, "STOP")
	})

	resp, err := p.Generate(context.Background(), Request{
		Messages: UserPrompt("[INST] Is it answerable? [/INST]"),
		Choices:  []string{"YES", "NO"},
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if resp.Text != "NO" {
		t.Fatalf("text = %q, want bare choice NO", resp.Text)
	}
}

func TestGeminiProvider_ChoiceTruncated(t *testing.T) {
	p := newTestGeminiProvider(t, func(w http.ResponseWriter, r *http.Request) {
		geminiReply(w, `{"choi`, "MAX_TOKENS")
	})

	_, err := p.Generate(context.Background(), Request{
		Messages: UserPrompt("Is it answerable?"),
		Choices:  []string{"YES", "NO"},
	})
	if _, ok := err.(*ErrMaxTokensExceeded); !ok {
		t.Fatalf("expected ErrMaxTokensExceeded, got: %T (%v)", err, err)
	}
}

func TestBuildGeminiSchema_Choice(t *testing.T) {
	schema := buildGeminiSchema(ChoiceSchema([]string{"YES", "NO"}).Definition)

	if schema.Type != "OBJECT" {
		t.Fatalf("expected OBJECT type, got %s", schema.Type)
	}
	field, ok := schema.Properties[choiceField]
	if !ok {
		t.Fatalf("missing %q property: %+v", choiceField, schema.Properties)
	}
	if field.Type != "STRING" {
		t.Fatalf("expected STRING for %s, got %s", choiceField, field.Type)
	}
	if len(field.Enum) != 2 || field.Enum[0] != "YES" || field.Enum[1] != "NO" {
		t.Fatalf("enum = %v, want [YES NO]", field.Enum)
	}
	if len(schema.Required) != 1 || schema.Required[0] != choiceField {
		t.Fatalf("required = %v", schema.Required)
	}
}
