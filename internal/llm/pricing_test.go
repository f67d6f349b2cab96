package llm

import (
	"math"
	"testing"
)

func TestLookupCost(t *testing.T) {
	tests := []struct {
		name      string
		model     string
		wantKnown bool
		wantFree  bool
	}{
		{"default vLLM checkpoint", defaultModel, true, true},
		{"lowercase checkpoint", "mistralai/mixtral-8x7b-instruct-v0.1", true, true},
		{"openrouter slug", "mistralai/Mixtral-8x7B-Instruct", true, false},
		{"openrouter free variant", "mistralai/mistral-7b-instruct:free", true, true},
		{"ollama tag", "mixtral:8x7b", true, true},
		{"anthropic haiku", "claude-haiku-4-5-20251001", true, false},
		{"gemini flash", "gemini-2.0-flash", true, false},
		{"unknown", "acme/unreleased-13b", false, false},
		{"empty", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := LookupCost(tt.model)
			if (c != nil) != tt.wantKnown {
				t.Fatalf("LookupCost(%q) known = %v, want %v", tt.model, c != nil, tt.wantKnown)
			}
			if c == nil {
				return
			}
			free := c.Cost(1_000_000, 1_000_000) == 0
			if free != tt.wantFree {
				t.Errorf("LookupCost(%q) free = %v, want %v", tt.model, free, tt.wantFree)
			}
		})
	}
}

func TestModelCost_Cost(t *testing.T) {
	c := ModelCost{InputPerMTok: 0.54, OutputPerMTok: 0.54}
	got := c.Cost(500_000, 100_000)
	if math.Abs(got-0.324) > 1e-9 {
		t.Fatalf("Cost = %v, want 0.324", got)
	}
}

func TestLookupCost_ResolvedFriendlyNames(t *testing.T) {
	for name, id := range anthropicModels {
		if LookupCost(id) == nil {
			t.Errorf("no pricing for %s (%s)", name, id)
		}
	}
	if LookupCost(geminiModels["gemini-flash"]) == nil {
		t.Errorf("no pricing for gemini-flash")
	}
}
