package llm

// ModelInfo describes a known model in the catalog.
type ModelInfo struct {
	ID                   string   `json:"id"`
	Provider             string   `json:"provider"`
	DisplayName          string   `json:"display_name"`
	ContextWindow        int      `json:"context_window"`
	MaxOutput            *int     `json:"max_output,omitempty"`
	SupportsTools        bool     `json:"supports_tools"`
	SupportsVision       bool     `json:"supports_vision"`
	InputCostPerMillion  *float64 `json:"input_cost_per_million,omitempty"`
	OutputCostPerMillion *float64 `json:"output_cost_per_million,omitempty"`
	Aliases              []string `json:"aliases,omitempty"`
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

// Models is the built-in catalog. Aliases include the OpenRouter-style
// provider-prefixed identifiers the configuration surface uses.
var Models = []ModelInfo{
	// OpenAI
	{
		ID: "gpt-4o", Provider: "openai", DisplayName: "GPT-4o",
		ContextWindow: 128000, MaxOutput: intPtr(16384),
		SupportsTools: true, SupportsVision: true,
		InputCostPerMillion: floatPtr(2.50), OutputCostPerMillion: floatPtr(10.0),
		Aliases: []string{"openai/gpt-4o", "4o"},
	},
	{
		ID: "gpt-4o-mini", Provider: "openai", DisplayName: "GPT-4o Mini",
		ContextWindow: 128000, MaxOutput: intPtr(16384),
		SupportsTools: true, SupportsVision: true,
		InputCostPerMillion: floatPtr(0.15), OutputCostPerMillion: floatPtr(0.60),
		Aliases: []string{"openai/gpt-4o-mini", "4o-mini"},
	},
	{
		ID: "o3-mini", Provider: "openai", DisplayName: "o3 Mini",
		ContextWindow: 200000, MaxOutput: intPtr(100000),
		SupportsTools: true, SupportsVision: false,
		InputCostPerMillion: floatPtr(1.10), OutputCostPerMillion: floatPtr(4.40),
		Aliases: []string{"openai/o3-mini"},
	},

	// Anthropic
	{
		ID: "claude-sonnet-4", Provider: "anthropic", DisplayName: "Claude Sonnet 4",
		ContextWindow: 200000, MaxOutput: intPtr(64000),
		SupportsTools: true, SupportsVision: true,
		InputCostPerMillion: floatPtr(3.0), OutputCostPerMillion: floatPtr(15.0),
		Aliases: []string{"anthropic/claude-sonnet-4", "sonnet"},
	},
	{
		ID: "claude-3-5-haiku", Provider: "anthropic", DisplayName: "Claude 3.5 Haiku",
		ContextWindow: 200000, MaxOutput: intPtr(8192),
		SupportsTools: true, SupportsVision: true,
		InputCostPerMillion: floatPtr(0.80), OutputCostPerMillion: floatPtr(4.0),
		Aliases: []string{"anthropic/claude-3.5-haiku", "haiku"},
	},

	// Gemini
	{
		ID: "gemini-2.0-flash", Provider: "gemini", DisplayName: "Gemini 2.0 Flash",
		ContextWindow: 1048576, MaxOutput: intPtr(8192),
		SupportsTools: true, SupportsVision: true,
		InputCostPerMillion: floatPtr(0.10), OutputCostPerMillion: floatPtr(0.40),
		Aliases: []string{"google/gemini-2.0-flash", "gemini-flash"},
	},
}

// GetModelInfo returns the catalog entry for a model ID, alias, or
// provider-prefixed identifier, or nil if unknown.
func GetModelInfo(model string) *ModelInfo {
	lookup := func(name string) *ModelInfo {
		for i := range Models {
			if Models[i].ID == name {
				return &Models[i]
			}
			for _, alias := range Models[i].Aliases {
				if alias == name {
					return &Models[i]
				}
			}
		}
		return nil
	}
	if info := lookup(model); info != nil {
		return info
	}
	// Try the bare name of a prefixed identifier not listed as an alias.
	if _, bare := SplitModel(model); bare != model {
		return lookup(bare)
	}
	return nil
}

// ListModels returns all known models, optionally filtered by provider.
func ListModels(provider string) []ModelInfo {
	if provider == "" {
		result := make([]ModelInfo, len(Models))
		copy(result, Models)
		return result
	}
	var result []ModelInfo
	for _, m := range Models {
		if m.Provider == provider {
			result = append(result, m)
		}
	}
	return result
}

// GetLatestModel returns the first (newest/best) catalog model for a
// provider, optionally filtered by capability.
func GetLatestModel(provider string, capability string) *ModelInfo {
	for i := range Models {
		if Models[i].Provider != provider {
			continue
		}
		switch capability {
		case "":
			return &Models[i]
		case "tools":
			if Models[i].SupportsTools {
				return &Models[i]
			}
		case "vision":
			if Models[i].SupportsVision {
				return &Models[i]
			}
		}
	}
	return nil
}
