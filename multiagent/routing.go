package multiagent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/atelierlabs/atelier/llm"
	"github.com/atelierlabs/atelier/observability"
)

const coordinatorPrompt = `You are an expert Coordinator AI. Your task is to analyze a user's request and route it to the most qualified specialized agent.

Available experts:
- **CodeGenerator**: Best for creating, writing, implementing, and generating code solutions
- **CodeReviewer**: Best for reviewing, analyzing, checking, and validating existing code

Based on the user's request, you must respond with ONLY the name of the most appropriate expert.
Your response must be either: CodeGenerator or CodeReviewer

Examples:
- "Write a Python function" → CodeGenerator
- "Create a web scraper" → CodeGenerator
- "Review this code" → CodeReviewer
- "Check for bugs in my function" → CodeReviewer
- "Analyze the code quality" → CodeReviewer`

// RoutingDecision records where a query went and why. Err is informational;
// routing never aborts a run.
type RoutingDecision struct {
	Expert      string
	RawResponse string
	FellBack    bool
	Err         error
	At          time.Time
}

// Router chooses the expert for a query with a single model call.
type Router struct {
	client *llm.Client
	model  string
	logger zerolog.Logger
}

// NewRouter creates a Router that routes with the given model.
func NewRouter(client *llm.Client, model string) *Router {
	return &Router{
		client: client,
		model:  model,
		logger: observability.WithComponent("router"),
	}
}

// Route asks the coordinator to pick an expert for the latest human query.
// The reply must match an expert name exactly; partial matches, extra
// words, or an empty reply fall back to the code generator with the raw
// reply recorded. A failed model call falls back the same way with the
// error recorded on the decision.
func (r *Router) Route(ctx context.Context, query string) RoutingDecision {
	dec := RoutingDecision{Expert: ExpertCodeGenerator, At: time.Now()}

	resp, err := r.client.Complete(ctx, &llm.Request{
		Model: r.model,
		Messages: []llm.Message{
			llm.SystemMessage(coordinatorPrompt),
			llm.UserMessage(fmt.Sprintf("Route this request: %s", query)),
		},
	})
	if err != nil {
		dec.FellBack = true
		dec.Err = &RoutingError{Cause: err}
		r.logger.Warn().Err(err).Str("fallback", dec.Expert).Msg("routing call failed")
		return dec
	}

	choice := strings.TrimSpace(resp.Content)
	dec.RawResponse = choice
	switch choice {
	case ExpertCodeGenerator, ExpertCodeReviewer:
		dec.Expert = choice
	default:
		dec.FellBack = true
		r.logger.Warn().Str("raw", choice).Str("fallback", dec.Expert).Msg("invalid expert choice")
	}

	r.logger.Info().Str("expert", dec.Expert).Bool("fell_back", dec.FellBack).Msg("routing decided")
	return dec
}
