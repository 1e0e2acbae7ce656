package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/teilomillet/gollm"
)

const llmCacheSize = 5

// GollmAdapter implements Adapter on top of gollm. One adapter serves one
// provider; underlying gollm instances are cached per model so repeated
// requests reuse configuration and connections.
type GollmAdapter struct {
	provider string
	apiKey   string
	defaults gollmDefaults

	mu    sync.Mutex
	llms  map[string]gollm.LLM
	order []string // model names, least recently used first
}

type gollmDefaults struct {
	model       string
	maxTokens   int
	temperature float64
	extraOpts   []gollm.ConfigOption
}

// GollmOption configures a GollmAdapter.
type GollmOption func(*gollmDefaults)

// WithModel sets the default model for the adapter.
func WithModel(model string) GollmOption {
	return func(d *gollmDefaults) {
		d.model = model
	}
}

// WithMaxTokens sets the default max tokens.
func WithMaxTokens(n int) GollmOption {
	return func(d *gollmDefaults) {
		d.maxTokens = n
	}
}

// WithTemperature sets the default temperature.
func WithTemperature(t float64) GollmOption {
	return func(d *gollmDefaults) {
		d.temperature = t
	}
}

// WithGollmOptions adds extra gollm configuration options.
func WithGollmOptions(opts ...gollm.ConfigOption) GollmOption {
	return func(d *gollmDefaults) {
		d.extraOpts = append(d.extraOpts, opts...)
	}
}

// NewGollmAdapter creates an adapter for the given provider. If apiKey is
// empty gollm reads it from the provider's environment variable. The default
// model is constructed eagerly so misconfiguration surfaces here rather than
// on the first request.
func NewGollmAdapter(provider, apiKey string, opts ...GollmOption) (*GollmAdapter, error) {
	defaults := gollmDefaults{
		maxTokens:   4096,
		temperature: 0.7,
	}
	for _, opt := range opts {
		opt(&defaults)
	}

	if defaults.model == "" {
		if info := GetLatestModel(provider, ""); info != nil {
			defaults.model = info.ID
		} else {
			switch provider {
			case "anthropic":
				defaults.model = "claude-sonnet-4"
			case "openai":
				defaults.model = "gpt-4o"
			default:
				defaults.model = "gpt-4o-mini"
			}
		}
	}

	a := &GollmAdapter{
		provider: provider,
		apiKey:   apiKey,
		defaults: defaults,
		llms:     make(map[string]gollm.LLM),
	}

	if _, err := a.llmFor(defaults.model); err != nil {
		return nil, err
	}
	return a, nil
}

// Name returns the provider identifier.
func (a *GollmAdapter) Name() string {
	return a.provider
}

// llmFor returns the cached gollm instance for a model, constructing it on
// first use. The cache keeps the five most recently used models.
func (a *GollmAdapter) llmFor(model string) (gollm.LLM, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if llm, ok := a.llms[model]; ok {
		a.touch(model)
		return llm, nil
	}

	gollmOpts := []gollm.ConfigOption{
		gollm.SetProvider(a.provider),
		gollm.SetModel(model),
		gollm.SetMaxTokens(a.defaults.maxTokens),
		gollm.SetTemperature(a.defaults.temperature),
		gollm.SetMaxRetries(0), // the client owns retries
		gollm.SetLogLevel(gollm.LogLevelWarn),
	}
	if a.apiKey != "" {
		gollmOpts = append(gollmOpts, gollm.SetAPIKey(a.apiKey))
	}
	gollmOpts = append(gollmOpts, a.defaults.extraOpts...)

	llm, err := gollm.NewLLM(gollmOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating gollm client for %s/%s: %w", a.provider, model, err)
	}

	if len(a.order) >= llmCacheSize {
		oldest := a.order[0]
		a.order = a.order[1:]
		delete(a.llms, oldest)
	}
	a.llms[model] = llm
	a.order = append(a.order, model)
	return llm, nil
}

func (a *GollmAdapter) touch(model string) {
	for i, m := range a.order {
		if m == model {
			a.order = append(append(a.order[:i:i], a.order[i+1:]...), model)
			return
		}
	}
}

// Complete sends a blocking request and returns the full response.
func (a *GollmAdapter) Complete(ctx context.Context, req *Request) (*Response, error) {
	_, model := SplitModel(req.Model)
	if model == "" {
		model = a.defaults.model
	}

	llm, err := a.llmFor(model)
	if err != nil {
		return nil, classifyProviderError(a.provider, err)
	}

	prompt := a.translateRequest(req)

	if req.Temperature != nil {
		llm.SetOption("temperature", *req.Temperature)
	}
	if req.MaxTokens != nil {
		llm.SetOption("max_tokens", *req.MaxTokens)
	}

	text, err := llm.Generate(ctx, prompt)
	if err != nil {
		return nil, classifyProviderError(a.provider, err)
	}

	return a.buildResponse(req, model, text), nil
}

// translateRequest converts a Request into a gollm Prompt.
func (a *GollmAdapter) translateRequest(req *Request) *gollm.Prompt {
	system, text := flattenMessages(req.Messages)

	promptOpts := []gollm.PromptOption{}
	if system != "" {
		promptOpts = append(promptOpts, gollm.WithSystemPrompt(system, gollm.CacheTypeEphemeral))
	}
	if req.MaxTokens != nil {
		promptOpts = append(promptOpts, gollm.WithMaxLength(*req.MaxTokens))
	}

	if len(req.Tools) > 0 {
		tools := make([]gollm.Tool, 0, len(req.Tools))
		for _, t := range req.Tools {
			tools = append(tools, gollm.Tool{
				Type: "function",
				Function: gollm.Function{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  t.Parameters,
				},
			})
		}
		promptOpts = append(promptOpts, gollm.WithTools(tools))
	}

	return gollm.NewPrompt(text, promptOpts...)
}

// flattenMessages folds a conversation into gollm's single-prompt shape:
// system messages become the system prompt, assistant turns and tool results
// are inlined with section markers.
func flattenMessages(messages []Message) (system, prompt string) {
	var sys strings.Builder
	var parts []string

	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			sys.WriteString(msg.Content)
			sys.WriteString("\n")
		case RoleUser:
			parts = append(parts, msg.Content)
		case RoleAssistant:
			if msg.Content != "" {
				parts = append(parts, "[Assistant]: "+msg.Content)
			}
			for _, tc := range msg.ToolCalls {
				parts = append(parts, fmt.Sprintf("[Assistant tool call]: %s(%s)", tc.Name, tc.CanonicalArguments()))
			}
		case RoleTool:
			prefix := "[Tool Result]"
			if msg.IsError {
				prefix = "[Tool Error]"
			}
			parts = append(parts, prefix+": "+msg.Content)
		}
	}

	prompt = strings.Join(parts, "\n")
	if prompt == "" {
		prompt = "Hello"
	}
	return strings.TrimSpace(sys.String()), prompt
}

// buildResponse constructs a Response from generated text, recovering tool
// calls gollm returns embedded in the text.
func (a *GollmAdapter) buildResponse(req *Request, model, text string) *Response {
	toolCalls := parseToolCalls(text)

	content := text
	if len(toolCalls) > 0 {
		content = stripToolCallJSON(text)
	}

	finish := FinishStop
	if len(toolCalls) > 0 {
		finish = FinishToolCalls
	}

	inTokens := estimateTokens(req)
	return &Response{
		ID:           "resp_" + uuid.New().String()[:8],
		Model:        model,
		Provider:     a.provider,
		Content:      content,
		ToolCalls:    toolCalls,
		FinishReason: finish,
		Usage: Usage{
			// gollm does not expose provider usage; estimate from length.
			InputTokens:  inTokens,
			OutputTokens: len(text) / 4,
			TotalTokens:  inTokens + len(text)/4,
		},
	}
}

// parseToolCalls extracts tool calls embedded in response text. gollm returns
// tool calls as JSON in the text for some providers.
func parseToolCalls(text string) []ToolCall {
	start := strings.Index(text, `{"tool_calls"`)
	if start >= 0 {
		var wrapper struct {
			ToolCalls []rawToolCall `json:"tool_calls"`
		}
		if err := json.Unmarshal([]byte(text[start:]), &wrapper); err == nil {
			return buildToolCalls(wrapper.ToolCalls)
		}
		return nil
	}

	start = strings.Index(text, `[{"name"`)
	if start < 0 {
		return nil
	}
	var rawCalls []rawToolCall
	if err := json.Unmarshal([]byte(text[start:]), &rawCalls); err != nil {
		return nil
	}
	return buildToolCalls(rawCalls)
}

type rawToolCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

func buildToolCalls(raw []rawToolCall) []ToolCall {
	var calls []ToolCall
	for _, rc := range raw {
		args := map[string]interface{}{}
		_ = json.Unmarshal(rc.Arguments, &args)
		calls = append(calls, ToolCall{
			ID:        "call_" + uuid.New().String()[:8],
			Name:      rc.Name,
			Arguments: args,
		})
	}
	return calls
}

// stripToolCallJSON removes the parsed tool call JSON from the text.
func stripToolCallJSON(text string) string {
	result := text
	for _, marker := range []string{`{"tool_calls"`, `[{"name"`} {
		if idx := strings.Index(result, marker); idx != -1 {
			result = strings.TrimSpace(result[:idx])
		}
	}
	return result
}

// classifyProviderError converts a gollm error into the error hierarchy by
// inspecting the message.
func classifyProviderError(provider string, err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	msgLower := strings.ToLower(msg)

	pe := func(status int, retryable bool) ProviderError {
		return ProviderError{
			ClientError: ClientError{Message: msg, Cause: err},
			Provider:    provider,
			StatusCode:  status,
			Retryable:   retryable,
		}
	}

	switch {
	case strings.Contains(msgLower, "401"), strings.Contains(msgLower, "unauthorized"),
		strings.Contains(msgLower, "invalid api key"), strings.Contains(msgLower, "invalid key"):
		return &AuthenticationError{ProviderError: pe(401, false)}
	case strings.Contains(msgLower, "403"), strings.Contains(msgLower, "forbidden"):
		return &AccessDeniedError{ProviderError: pe(403, false)}
	case strings.Contains(msgLower, "404"), strings.Contains(msgLower, "not found"):
		return &NotFoundError{ProviderError: pe(404, false)}
	case strings.Contains(msgLower, "429"), strings.Contains(msgLower, "rate limit"):
		return &RateLimitError{ProviderError: pe(429, true)}
	case strings.Contains(msgLower, "context length"), strings.Contains(msgLower, "too many tokens"):
		return &ContextLengthError{ProviderError: pe(413, false)}
	case strings.Contains(msgLower, "500"), strings.Contains(msgLower, "internal server"):
		return &ServerError{ProviderError: pe(500, true)}
	case strings.Contains(msgLower, "timeout"):
		return &RequestTimeoutError{ClientError: ClientError{Message: msg, Cause: err}}
	case strings.Contains(msgLower, "content filter"), strings.Contains(msgLower, "safety"):
		return &ContentFilterError{ProviderError: pe(0, false)}
	default:
		generic := pe(0, true)
		return &generic
	}
}

// estimateTokens gives a rough input token count from request messages.
func estimateTokens(req *Request) int {
	total := 0
	for _, msg := range req.Messages {
		total += len(msg.Content) / 4
	}
	if total == 0 {
		total = 10
	}
	return total
}
