package llm

import "testing"

func TestSplitModel(t *testing.T) {
	tests := []struct {
		model    string
		provider string
		bare     string
	}{
		{"openai/gpt-4o", "openai", "gpt-4o"},
		{"anthropic/claude-sonnet-4", "anthropic", "claude-sonnet-4"},
		{"google/gemini-2.0-flash", "google", "gemini-2.0-flash"},
		{"gpt-4o", "", "gpt-4o"},
		{"", "", ""},
		{"a/b/c", "a", "b/c"},
	}

	for _, tt := range tests {
		provider, bare := SplitModel(tt.model)
		if provider != tt.provider || bare != tt.bare {
			t.Errorf("SplitModel(%q) = (%q, %q), expected (%q, %q)",
				tt.model, provider, bare, tt.provider, tt.bare)
		}
	}
}

func TestInferProvider(t *testing.T) {
	tests := []struct {
		model    string
		expected string
	}{
		{"claude-sonnet-4", "anthropic"},
		{"claude-3.5-haiku", "anthropic"},
		{"gpt-4o", "openai"},
		{"gpt-4o-mini", "openai"},
		{"o1-preview", "openai"},
		{"o3-mini", "openai"},
		{"chatgpt-4o-latest", "openai"},
		{"gemini-2.0-flash", "gemini"},
		{"mystery-model", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := InferProvider(tt.model); got != tt.expected {
			t.Errorf("InferProvider(%q) = %q, expected %q", tt.model, got, tt.expected)
		}
	}
}

func TestResolveProvider(t *testing.T) {
	tests := []struct {
		model    string
		expected string
	}{
		// Explicit prefix always wins.
		{"openai/gpt-4o", "openai"},
		{"anthropic/claude-sonnet-4", "anthropic"},
		{"openai/some-future-model", "openai"},
		// The google prefix normalizes to the gemini adapter.
		{"google/gemini-2.0-flash", "gemini"},
		// Bare names resolve through the catalog.
		{"gpt-4o", "openai"},
		{"claude-sonnet-4", "anthropic"},
		// Unknown bare names fall back to name inference.
		{"claude-opus-9", "anthropic"},
		{"gpt-99", "openai"},
		{"completely-unknown", ""},
	}

	for _, tt := range tests {
		if got := ResolveProvider(tt.model); got != tt.expected {
			t.Errorf("ResolveProvider(%q) = %q, expected %q", tt.model, got, tt.expected)
		}
	}
}
