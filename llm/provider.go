package llm

import (
	"context"
	"strings"
)

// Adapter is the interface every provider backend implements.
type Adapter interface {
	// Name returns the provider identifier (e.g. "openai", "anthropic", "gemini").
	Name() string

	// Complete sends a blocking request and returns the full response.
	Complete(ctx context.Context, req *Request) (*Response, error)
}

// Closer is implemented by adapters that hold resources.
type Closer interface {
	Close() error
}

// SplitModel splits an OpenRouter-style "provider/model" identifier. Plain
// model names return an empty provider and the name unchanged.
func SplitModel(model string) (provider, bare string) {
	if i := strings.Index(model, "/"); i > 0 {
		return model[:i], model[i+1:]
	}
	return "", model
}

// InferProvider guesses the provider from a bare model name. Returns "" when
// the name matches no known family.
func InferProvider(model string) string {
	name := strings.ToLower(model)
	switch {
	case strings.Contains(name, "claude"), strings.Contains(name, "anthropic"):
		return "anthropic"
	case strings.HasPrefix(name, "gpt"), strings.HasPrefix(name, "o1"), strings.HasPrefix(name, "o3"), strings.HasPrefix(name, "chatgpt"):
		return "openai"
	case strings.Contains(name, "gemini"):
		return "gemini"
	}
	return ""
}

// ResolveProvider determines the provider for a model identifier: an explicit
// "provider/" prefix wins, then the catalog, then name heuristics.
func ResolveProvider(model string) string {
	if provider, _ := SplitModel(model); provider != "" {
		// Normalize the Google prefix OpenRouter uses.
		if provider == "google" {
			return "gemini"
		}
		return provider
	}
	if info := GetModelInfo(model); info != nil {
		return info.Provider
	}
	return InferProvider(model)
}
