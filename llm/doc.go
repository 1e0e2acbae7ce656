// Package llm provides a provider-agnostic chat completion client built on
// the gollm library (github.com/teilomillet/gollm).
//
// # Architecture
//
//   - Adapter: the per-provider backend contract (GollmAdapter in production,
//     fakes in tests)
//   - Client: provider routing by model identifier, middleware, retries
//   - Catalog: known model metadata used for defaults and listings
//   - Errors: a typed hierarchy with retryability classification
//
// # Quick Start
//
//	adapter, _ := llm.NewGollmAdapter("openai", os.Getenv("OPENAI_API_KEY"))
//	client := llm.NewClient(
//	    llm.WithAdapter(adapter),
//	    llm.WithDefaultModel("openai/gpt-4o"),
//	)
//
//	resp, _ := client.Complete(ctx, &llm.Request{
//	    Messages: []llm.Message{llm.UserMessage("Hello")},
//	})
//	fmt.Println(resp.Content)
//
// Model identifiers may carry an OpenRouter-style provider prefix
// ("anthropic/claude-sonnet-4"); the client routes on the prefix and hands
// the bare model name to the adapter. Tool definitions attach to requests as
// JSON Schema and calls come back on Response.ToolCalls; executing them is
// the caller's business.
package llm
