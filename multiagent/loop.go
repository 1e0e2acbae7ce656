package multiagent

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/atelierlabs/atelier/config"
	"github.com/atelierlabs/atelier/llm"
	"github.com/atelierlabs/atelier/observability"
)

// Orchestrator drives the route-then-execute loop for one session. It owns
// the session's sandbox, the tool registries, and the router; runs started
// from it must not overlap within a session.
type Orchestrator struct {
	cfg       *config.Config
	client    *llm.Client
	sandbox   *Sandbox
	experts   *Registry
	planners  *Registry
	router    *Router
	logger    zerolog.Logger
	metricsOn bool
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithSandbox runs the orchestrator against an existing sandbox instead of
// creating one at the configured root. Session managers use this to give
// every session its own directory.
func WithSandbox(sb *Sandbox) OrchestratorOption {
	return func(o *Orchestrator) {
		o.sandbox = sb
	}
}

// WithMetrics overrides the config's metrics switch.
func WithMetrics(enabled bool) OrchestratorOption {
	return func(o *Orchestrator) {
		o.metricsOn = enabled
	}
}

// WithRouterModel routes with a different model than the experts use.
func WithRouterModel(model string) OrchestratorOption {
	return func(o *Orchestrator) {
		o.router = NewRouter(o.client, model)
	}
}

// NewOrchestrator wires the loop against a configured client. Role tool
// lists are resolved against the registries here so a wiring mistake
// surfaces at construction, not mid-run.
func NewOrchestrator(cfg *config.Config, client *llm.Client, opts ...OrchestratorOption) (*Orchestrator, error) {
	o := &Orchestrator{
		cfg:       cfg,
		client:    client,
		experts:   NewExpertRegistry(cfg.ExecTimeout),
		planners:  NewPlannerRegistry(cfg.SafeExecTimeout),
		router:    NewRouter(client, cfg.Model),
		logger:    observability.WithComponent("orchestrator"),
		metricsOn: cfg.MetricsEnabled,
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.sandbox == nil {
		sb, err := NewSandbox(cfg.SandboxRoot)
		if err != nil {
			return nil, fmt.Errorf("creating sandbox: %w", err)
		}
		o.sandbox = sb
	}

	for _, name := range []string{ExpertCodeGenerator, ExpertCodeReviewer} {
		role, _ := LookupRole(name)
		if _, err := o.experts.ForRole(role.ToolNames); err != nil {
			return nil, fmt.Errorf("wiring %s: %w", name, err)
		}
	}
	planner, _ := LookupRole(ExpertPlanner)
	if _, err := o.planners.ForRole(planner.ToolNames); err != nil {
		return nil, fmt.Errorf("wiring %s: %w", ExpertPlanner, err)
	}

	return o, nil
}

// Sandbox returns the directory jail this orchestrator executes tools in.
func (o *Orchestrator) Sandbox() *Sandbox {
	return o.sandbox
}

// Experts returns the built-in role definitions for embedding servers.
func (o *Orchestrator) Experts() []Role {
	return AllRoles()
}

// ModelOption is one selectable model, joined with catalog metadata when
// the identifier is known.
type ModelOption struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Provider string `json:"provider"`
	Default  bool   `json:"default"`
}

// AvailableModels returns the configured model list for frontend pickers.
func (o *Orchestrator) AvailableModels() []ModelOption {
	out := make([]ModelOption, 0, len(o.cfg.AvailableModels))
	for _, id := range o.cfg.AvailableModels {
		opt := ModelOption{ID: id, Default: id == o.cfg.Model}
		if info := llm.GetModelInfo(id); info != nil {
			opt.Name = info.DisplayName
			opt.Provider = info.Provider
		} else {
			_, opt.Name = llm.SplitModel(id)
			opt.Provider = llm.ResolveProvider(id)
		}
		out = append(out, opt)
	}
	return out
}

// RunQuery routes the latest human message to an expert and runs the
// tool-calling loop, producing events on the returned stream. The consumer
// must drain Events (and may call Wait for the terminal error); abandoning
// the stream requires Close or canceling ctx.
func (o *Orchestrator) RunQuery(ctx context.Context, history []Message) *Stream {
	runCtx, cancel := context.WithCancel(ctx)
	stream := newStream(cancel)
	go o.runQuery(runCtx, cancel, stream, history)
	return stream
}

// RunPlan runs the planner role through the same loop machinery with its
// restricted tool set. promptType selects the planning variant; unknown
// values get the comprehensive prompt.
func (o *Orchestrator) RunPlan(ctx context.Context, history []Message, promptType PlanType) *Stream {
	runCtx, cancel := context.WithCancel(ctx)
	stream := newStream(cancel)
	go o.runPlan(runCtx, cancel, stream, history, promptType)
	return stream
}

func (o *Orchestrator) runQuery(ctx context.Context, cancel context.CancelFunc, stream *Stream, history []Message) {
	defer cancel()
	em := newEmitter(ctx, stream)
	state := NewRunState(history, o.cfg.RecentFilesLimit)

	dec := o.router.Route(ctx, LatestHumanText(state.Messages))
	state.CurrentExpert = dec.Expert
	if dec.FellBack && o.metricsOn {
		observability.RecordRoutingFallback()
	}

	coordinator, _ := LookupRole(ExpertCoordinator)
	em.setExpert(coordinator.DisplayName, coordinator.Icon)
	if !em.emit(EventRouting, map[string]interface{}{
		"expert":       dec.Expert,
		"raw_response": dec.RawResponse,
		"fell_back":    dec.FellBack,
	}) {
		o.finishRun(em, stream, state, ctx.Err())
		return
	}

	role, ok := LookupRole(dec.Expert)
	if !ok {
		o.finishRun(em, stream, state, fmt.Errorf("routed to unknown expert %q", dec.Expert))
		return
	}
	em.setExpert(role.DisplayName, role.Icon)

	var metrics *observability.Metrics
	if o.metricsOn {
		metrics = observability.NewRunMetrics(role.Name)
		metrics.RecordQuery()
		defer metrics.RecordRunEnd()
	}

	err := o.runLoop(ctx, em, state, role, o.experts, metrics, func() string {
		return BuildExpertPrompt(role, state.RecentFiles, o.sandbox.Root(), o.cfg.Model)
	})
	o.finishRun(em, stream, state, err)
}

func (o *Orchestrator) runPlan(ctx context.Context, cancel context.CancelFunc, stream *Stream, history []Message, promptType PlanType) {
	defer cancel()
	em := newEmitter(ctx, stream)
	state := NewRunState(history, o.cfg.RecentFilesLimit)

	role, _ := LookupRole(ExpertPlanner)
	state.CurrentExpert = role.Name
	em.setExpert(role.DisplayName, role.Icon)

	var metrics *observability.Metrics
	if o.metricsOn {
		metrics = observability.NewRunMetrics(role.Name)
		metrics.RecordQuery()
		defer metrics.RecordRunEnd()
	}

	err := o.runLoop(ctx, em, state, role, o.planners, metrics, func() string {
		return BuildPlannerPrompt(promptType, o.sandbox.Root(), o.cfg.Model)
	})
	o.finishRun(em, stream, state, err)
}

// errorLabel is the name an expert signs its failure messages with.
func errorLabel(role Role) string {
	if role.Name == ExpertPlanner {
		return "PLANNER"
	}
	return role.DisplayName
}

// runLoop alternates model turns and tool execution until the model stops
// calling tools, the tool-call ceiling fires, or the iteration cap is
// reached. A nil return means the run completed; an error aborts it.
func (o *Orchestrator) runLoop(ctx context.Context, em *emitter, state *RunState, role Role, reg *Registry, metrics *observability.Metrics, promptFn func() string) error {
	for state.Iteration = 1; state.Iteration <= o.cfg.MaxIterations; state.Iteration++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		resp, err := o.client.Complete(ctx, &llm.Request{
			Model:    o.cfg.Model,
			Messages: toModelMessages(promptFn(), state.Messages),
			Tools:    reg.Defs(role.ToolNames),
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Model failures degrade into a spoken error so the session
			// survives and the user sees what happened.
			text := fmt.Sprintf("%s encountered an error: %v", errorLabel(role), err)
			o.logger.Error().Err(err).Str("expert", role.Name).Int("iteration", state.Iteration).Msg("model call failed")
			state.Append(AssistantMessage(text))
			em.emit(EventAgentText, map[string]interface{}{"content": text})
			return nil
		}

		if !resp.HasToolCalls() {
			if strings.TrimSpace(resp.Content) != "" {
				state.Append(AssistantMessage(resp.Content))
				if !em.emit(EventAgentText, map[string]interface{}{"content": resp.Content}) {
					return ctx.Err()
				}
			}
			return nil
		}

		state.Append(AssistantToolCallMessage(resp.Content, resp.ToolCalls))
		if strings.TrimSpace(resp.Content) != "" {
			if !em.emit(EventAgentText, map[string]interface{}{"content": resp.Content}) {
				return ctx.Err()
			}
		}

		terminal, err := o.executeCalls(ctx, em, state, reg, metrics, resp.ToolCalls)
		if err != nil {
			return err
		}
		if terminal {
			return nil
		}
	}

	o.logger.Warn().
		Err(&LoopLimitExceeded{Limit: o.cfg.MaxIterations, Kind: "iterations"}).
		Str("expert", role.Name).
		Msg("iteration cap reached")
	return nil
}

// executeCalls runs one batch of tool calls strictly in order. The ceiling
// is checked before every single call, so a batch straddling the limit is
// cut off mid-batch and the remaining calls never run. Returns terminal
// true when the ceiling message ended the run.
func (o *Orchestrator) executeCalls(ctx context.Context, em *emitter, state *RunState, reg *Registry, metrics *observability.Metrics, calls []llm.ToolCall) (bool, error) {
	for _, call := range calls {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}

		if state.ToolCallCount >= o.cfg.MaxToolCalls {
			text := fmt.Sprintf("I've reached the maximum number of tool calls (%d) for this session. Please start a new conversation if you need more operations.", o.cfg.MaxToolCalls)
			o.logger.Warn().
				Err(&LoopLimitExceeded{Limit: o.cfg.MaxToolCalls, Kind: "tool_calls"}).
				Msg("tool call ceiling reached")
			if metrics != nil {
				metrics.RecordCeilingHit()
			}
			state.Append(AssistantMessage(text))
			if !em.emit(EventAgentText, map[string]interface{}{"content": text}) {
				return false, ctx.Err()
			}
			return true, nil
		}

		sig := callSignature(call)
		if !em.emit(EventToolCall, map[string]interface{}{
			"call_id":   call.ID,
			"tool_name": call.Name,
			"tool_args": call.Arguments,
		}) {
			return false, ctx.Err()
		}

		tool := reg.Get(call.Name)
		var outcome *ToolOutcome
		switch {
		case state.FailureCount(sig) >= o.cfg.MaxToolFailures:
			o.logger.Warn().Str("tool", call.Name).Int("failures", state.FailureCount(sig)).Msg("skipping disabled tool signature")
			outcome = &ToolOutcome{Content: fmt.Sprintf("Tool %s has failed too many times with these arguments and has been disabled.", call.Name)}
		case tool == nil:
			o.logger.Error().Str("tool", call.Name).Msg("unknown tool requested")
			outcome = &ToolOutcome{Content: fmt.Sprintf("Unknown tool: %s", call.Name)}
		default:
			outcome = o.executeTool(ctx, tool, call)
		}

		if outcome.Failed {
			state.RecordFailure(sig)
		}
		state.RecordCall(sig, call.Name, outcome.Content)
		if metrics != nil {
			metrics.RecordToolCall(call.Name, !outcome.Failed)
		}
		if outcome.FilePath != "" {
			state.TrackFile(outcome.FilePath)
		}

		state.Append(ToolResultMessage(call.ID, call.Name, outcome.Content))
		if !em.emit(EventToolResult, map[string]interface{}{
			"call_id":   call.ID,
			"tool_name": call.Name,
			"content":   outcome.Content,
		}) {
			return false, ctx.Err()
		}

		if outcome.Diff != nil {
			if !em.emit(EventFileOperation, map[string]interface{}{
				"path":      outcome.Diff.Path,
				"operation": outcome.Operation,
				"added":     outcome.Diff.Added,
				"removed":   outcome.Diff.Removed,
				"changed":   outcome.Diff.Changed,
				"patch":     outcome.Diff.Patch,
			}) {
				return false, ctx.Err()
			}
		}
		if outcome.Exec != nil {
			if !em.emit(EventTerminal, map[string]interface{}{
				"command":     outcome.Exec.Command,
				"exit_code":   outcome.Exec.ExitCode,
				"stdout":      outcome.Exec.Stdout,
				"stderr":      outcome.Exec.Stderr,
				"timed_out":   outcome.Exec.TimedOut,
				"duration_ms": outcome.Exec.DurationMs,
			}) {
				return false, ctx.Err()
			}
		}
	}
	return false, nil
}

// executeTool runs one tool call, converting a panic into an ordinary
// failed outcome so a misbehaving tool cannot take down the run.
func (o *Orchestrator) executeTool(ctx context.Context, tool *Tool, call llm.ToolCall) (outcome *ToolOutcome) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error().Str("tool", tool.Name).Interface("panic", r).Msg("tool panicked")
			outcome = faultOutcome(tool.Name, fmt.Errorf("%v", r))
		}
	}()

	o.logger.Info().Str("tool", tool.Name).Str("call_id", call.ID).Msg("executing tool")
	outcome = tool.Execute(ctx, o.sandbox, call.Arguments)
	if outcome == nil {
		outcome = faultOutcome(tool.Name, fmt.Errorf("tool returned no outcome"))
	}
	return outcome
}

// finishRun emits the trailing events and closes the stream. Every path
// ends with exactly one end event; failures put an error event before it
// and surface on Wait.
func (o *Orchestrator) finishRun(em *emitter, stream *Stream, state *RunState, runErr error) {
	if runErr != nil {
		em.deliver(EventError, map[string]interface{}{"message": runErr.Error()})
		em.deliver(EventEnd, nil)
		stream.finish(&StreamFailure{Err: runErr})
		return
	}
	em.deliver(EventComplete, map[string]interface{}{"expert_used": state.CurrentExpert})
	em.deliver(EventEnd, nil)
	stream.finish(nil)
}
