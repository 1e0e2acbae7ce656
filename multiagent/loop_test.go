package multiagent

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/atelierlabs/atelier/config"
	"github.com/atelierlabs/atelier/llm"
)

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Model:            "test/model",
		AvailableModels:  []string{"test/model"},
		SandboxRoot:      filepath.Join(t.TempDir(), "sessions"),
		MaxToolCalls:     15,
		MaxIterations:    10,
		MaxToolFailures:  3,
		RecentFilesLimit: 10,
		ExecTimeout:      30 * time.Second,
		SafeExecTimeout:  10 * time.Second,
		MetricsEnabled:   false,
	}
}

func newTestOrchestrator(t *testing.T, cfg *config.Config, adapter llm.Adapter) *Orchestrator {
	t.Helper()
	o, err := NewOrchestrator(cfg, newScriptedClient(adapter))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return o
}

// collectEvents drains the stream and returns the events with the terminal
// error from Wait.
func collectEvents(t *testing.T, stream *Stream) ([]Event, error) {
	t.Helper()
	var events []Event
	for ev := range stream.Events() {
		events = append(events, ev)
	}
	return events, stream.Wait()
}

func eventsOfType(events []Event, typ EventType) []Event {
	var out []Event
	for _, ev := range events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func payloadString(ev Event, key string) string {
	s, _ := ev.Payload[key].(string)
	return s
}

func writeCall(id, path, content string) llm.ToolCall {
	return llm.ToolCall{
		ID:        id,
		Name:      "write_file",
		Arguments: map[string]interface{}{"file_path": path, "content": content},
	}
}

func TestRunQueryEndToEnd(t *testing.T) {
	source := "def binary_search(arr, target):\n    return -1\n"
	adapter := &scriptedAdapter{steps: []scriptedStep{
		{resp: textResponse("CodeGenerator")},
		{resp: toolCallResponse("", writeCall("call-1", "binary_search.py", source))},
		{resp: textResponse("Created binary_search.py with the algorithm.")},
	}}
	cfg := newTestConfig(t)
	o := newTestOrchestrator(t, cfg, adapter)

	query := "Write a binary search algorithm in Python and save it to a file named 'binary_search.py'."
	events, err := collectEvents(t, o.RunQuery(context.Background(), []Message{HumanMessage(query)}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantTypes := []EventType{
		EventRouting,
		EventToolCall,
		EventToolResult,
		EventFileOperation,
		EventAgentText,
		EventComplete,
		EventEnd,
	}
	if len(events) != len(wantTypes) {
		t.Fatalf("expected %d events, got %d: %v", len(wantTypes), len(events), events)
	}
	for i, ev := range events {
		if ev.Type != wantTypes[i] {
			t.Errorf("event %d: expected type %q, got %q", i, wantTypes[i], ev.Type)
		}
		if ev.Seq != uint64(i+1) {
			t.Errorf("event %d: expected seq %d, got %d", i, i+1, ev.Seq)
		}
	}

	routing := events[0]
	if routing.Expert != "Coordinator" || routing.Icon != "🎯" {
		t.Errorf("expected coordinator attribution on routing, got %q/%q", routing.Expert, routing.Icon)
	}
	if payloadString(routing, "expert") != ExpertCodeGenerator {
		t.Errorf("expected routing to %q, got %q", ExpertCodeGenerator, payloadString(routing, "expert"))
	}
	if fellBack, _ := routing.Payload["fell_back"].(bool); fellBack {
		t.Error("unexpected routing fallback")
	}

	call := events[1]
	if call.Expert != "Code Generator" || call.Icon != "⚡" {
		t.Errorf("expected generator attribution, got %q/%q", call.Expert, call.Icon)
	}
	if payloadString(call, "tool_name") != "write_file" || payloadString(call, "call_id") != "call-1" {
		t.Errorf("unexpected tool_call payload %v", call.Payload)
	}

	result := events[2]
	if payloadString(result, "call_id") != "call-1" {
		t.Errorf("expected the result paired to call-1, got %q", payloadString(result, "call_id"))
	}
	if payloadString(result, "content") != "Successfully wrote to binary_search.py" {
		t.Errorf("unexpected tool result %q", payloadString(result, "content"))
	}

	fileOp := events[3]
	if payloadString(fileOp, "path") != "binary_search.py" || payloadString(fileOp, "operation") != OpCreated {
		t.Errorf("unexpected file_operation payload %v", fileOp.Payload)
	}
	if !strings.Contains(payloadString(fileOp, "patch"), "+def binary_search") {
		t.Errorf("expected the patch in the file_operation, got %q", payloadString(fileOp, "patch"))
	}

	if payloadString(events[4], "content") != "Created binary_search.py with the algorithm." {
		t.Errorf("unexpected agent text %q", payloadString(events[4], "content"))
	}
	if payloadString(events[5], "expert_used") != ExpertCodeGenerator {
		t.Errorf("unexpected expert_used %q", payloadString(events[5], "expert_used"))
	}

	data, err := os.ReadFile(filepath.Join(o.Sandbox().Root(), "binary_search.py"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != source {
		t.Errorf("unexpected file contents %q", data)
	}
}

func TestRunQueryToolCallCeiling(t *testing.T) {
	batch := toolCallResponse("",
		llm.ToolCall{ID: "call-a", Name: "list_directory", Arguments: map[string]interface{}{"directory_path": "."}},
		llm.ToolCall{ID: "call-b", Name: "list_directory", Arguments: map[string]interface{}{"directory_path": "."}},
	)
	adapter := &scriptedAdapter{steps: []scriptedStep{
		{resp: textResponse("CodeGenerator")},
		{resp: batch},
	}}
	cfg := newTestConfig(t)
	cfg.MaxToolCalls = 5
	o := newTestOrchestrator(t, cfg, adapter)

	events, err := collectEvents(t, o.RunQuery(context.Background(), []Message{HumanMessage("explore")}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	calls := eventsOfType(events, EventToolCall)
	results := eventsOfType(events, EventToolResult)
	if len(calls) != 5 || len(results) != 5 {
		t.Fatalf("expected exactly 5 calls and results, got %d/%d", len(calls), len(results))
	}

	// The limit fires before the sixth call, mid-batch: no tool_call event
	// for the skipped call, just the closing message.
	texts := eventsOfType(events, EventAgentText)
	if len(texts) != 1 {
		t.Fatalf("expected one agent text, got %d", len(texts))
	}
	want := fmt.Sprintf("I've reached the maximum number of tool calls (%d) for this session. Please start a new conversation if you need more operations.", cfg.MaxToolCalls)
	if got := payloadString(texts[0], "content"); got != want {
		t.Errorf("expected ceiling message %q, got %q", want, got)
	}

	last := events[len(events)-1]
	if last.Type != EventEnd {
		t.Errorf("expected a final end event, got %q", last.Type)
	}
	if len(eventsOfType(events, EventComplete)) != 1 {
		t.Error("expected the run to complete gracefully")
	}
}

func TestRunQueryDisablesFailingSignature(t *testing.T) {
	faulty := func(id string) *llm.Response {
		return toolCallResponse("", llm.ToolCall{
			ID:        id,
			Name:      "write_file",
			Arguments: map[string]interface{}{"content": "x"},
		})
	}
	adapter := &scriptedAdapter{steps: []scriptedStep{
		{resp: textResponse("CodeGenerator")},
		{resp: faulty("call-1")},
		{resp: faulty("call-2")},
		{resp: faulty("call-3")},
		{resp: faulty("call-4")},
		{resp: toolCallResponse("", writeCall("call-5", "ok.py", "y = 1\n"))},
		{resp: textResponse("done")},
	}}
	cfg := newTestConfig(t)
	o := newTestOrchestrator(t, cfg, adapter)

	events, err := collectEvents(t, o.RunQuery(context.Background(), []Message{HumanMessage("write something")}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	results := eventsOfType(events, EventToolResult)
	if len(results) != 5 {
		t.Fatalf("expected 5 tool results, got %d", len(results))
	}

	fault := "Tool write_file failed: file_path is required"
	for i := 0; i < 3; i++ {
		if got := payloadString(results[i], "content"); got != fault {
			t.Errorf("result %d: expected %q, got %q", i, fault, got)
		}
	}

	// The fourth identical call is cut off without executing.
	disabled := "Tool write_file has failed too many times with these arguments and has been disabled."
	if got := payloadString(results[3], "content"); got != disabled {
		t.Errorf("expected %q, got %q", disabled, got)
	}

	// A call with different arguments is unaffected.
	if got := payloadString(results[4], "content"); got != "Successfully wrote to ok.py" {
		t.Errorf("expected the distinct call to execute, got %q", got)
	}
	if _, err := os.Stat(filepath.Join(o.Sandbox().Root(), "ok.py")); err != nil {
		t.Errorf("expected ok.py on disk: %v", err)
	}
}

func TestRunQueryIterationCap(t *testing.T) {
	adapter := &scriptedAdapter{steps: []scriptedStep{
		{resp: textResponse("CodeGenerator")},
		{resp: toolCallResponse("", llm.ToolCall{
			ID:        "call-1",
			Name:      "list_directory",
			Arguments: map[string]interface{}{"directory_path": "."},
		})},
	}}
	cfg := newTestConfig(t)
	cfg.MaxIterations = 3
	o := newTestOrchestrator(t, cfg, adapter)

	events, err := collectEvents(t, o.RunQuery(context.Background(), []Message{HumanMessage("loop forever")}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Routing plus one expert turn per iteration.
	if got := len(adapter.recorded()); got != 4 {
		t.Errorf("expected 4 model requests, got %d", got)
	}
	if got := len(eventsOfType(events, EventToolResult)); got != 3 {
		t.Errorf("expected 3 tool results, got %d", got)
	}
	if len(eventsOfType(events, EventError)) != 0 {
		t.Error("expected no error events on the iteration cap")
	}
	if len(eventsOfType(events, EventComplete)) != 1 {
		t.Error("expected the run to complete gracefully")
	}
	if events[len(events)-1].Type != EventEnd {
		t.Error("expected a final end event")
	}
}

func TestRunQueryModelError(t *testing.T) {
	adapter := &scriptedAdapter{steps: []scriptedStep{
		{resp: textResponse("CodeGenerator")},
		{err: errors.New("boom")},
	}}
	cfg := newTestConfig(t)
	o := newTestOrchestrator(t, cfg, adapter)

	events, err := collectEvents(t, o.RunQuery(context.Background(), []Message{HumanMessage("hi")}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	texts := eventsOfType(events, EventAgentText)
	if len(texts) != 1 {
		t.Fatalf("expected one agent text, got %d", len(texts))
	}
	want := "Code Generator encountered an error: boom"
	if got := payloadString(texts[0], "content"); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
	// The failure is spoken, not fatal: the session can continue.
	if len(eventsOfType(events, EventError)) != 0 {
		t.Error("expected no error events")
	}
	if len(eventsOfType(events, EventComplete)) != 1 {
		t.Error("expected a complete event")
	}
}

func TestRunQueryRoutingFallback(t *testing.T) {
	adapter := &scriptedAdapter{steps: []scriptedStep{
		{resp: textResponse("hmm, probably the generator")},
		{resp: textResponse("hello")},
	}}
	cfg := newTestConfig(t)
	o := newTestOrchestrator(t, cfg, adapter)

	events, err := collectEvents(t, o.RunQuery(context.Background(), []Message{HumanMessage("hi")}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	routing := eventsOfType(events, EventRouting)
	if len(routing) != 1 {
		t.Fatalf("expected one routing event, got %d", len(routing))
	}
	if fellBack, _ := routing[0].Payload["fell_back"].(bool); !fellBack {
		t.Error("expected the fallback flag set")
	}
	if payloadString(routing[0], "expert") != ExpertCodeGenerator {
		t.Errorf("expected fallback to %q, got %q", ExpertCodeGenerator, payloadString(routing[0], "expert"))
	}
	if payloadString(routing[0], "raw_response") != "hmm, probably the generator" {
		t.Errorf("expected the raw reply preserved, got %q", payloadString(routing[0], "raw_response"))
	}
}

// cancelAwareAdapter answers the routing call, then blocks until the run
// context is canceled.
type cancelAwareAdapter struct {
	mu    sync.Mutex
	calls int
}

func (a *cancelAwareAdapter) Name() string { return "test" }

func (a *cancelAwareAdapter) Complete(ctx context.Context, _ *llm.Request) (*llm.Response, error) {
	a.mu.Lock()
	a.calls++
	n := a.calls
	a.mu.Unlock()
	if n == 1 {
		return textResponse("CodeGenerator"), nil
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRunQueryCancellation(t *testing.T) {
	cfg := newTestConfig(t)
	o := newTestOrchestrator(t, cfg, &cancelAwareAdapter{})

	stream := o.RunQuery(context.Background(), []Message{HumanMessage("hi")})

	var events []Event
	first := <-stream.Events()
	events = append(events, first)
	if first.Type != EventRouting {
		t.Fatalf("expected a routing event first, got %q", first.Type)
	}
	stream.Close()
	for ev := range stream.Events() {
		events = append(events, ev)
	}

	err := stream.Wait()
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	var failure *StreamFailure
	if !errors.As(err, &failure) {
		t.Fatalf("expected a StreamFailure, got %T", err)
	}

	errs := eventsOfType(events, EventError)
	if len(errs) != 1 {
		t.Fatalf("expected one error event, got %d", len(errs))
	}
	if !strings.Contains(payloadString(errs[0], "message"), "context canceled") {
		t.Errorf("unexpected error message %q", payloadString(errs[0], "message"))
	}
	if events[len(events)-1].Type != EventEnd {
		t.Error("expected a final end event after cancellation")
	}
	if len(eventsOfType(events, EventComplete)) != 0 {
		t.Error("expected no complete event on a canceled run")
	}
}

func TestRunPlan(t *testing.T) {
	adapter := &scriptedAdapter{steps: []scriptedStep{
		{resp: toolCallResponse("", llm.ToolCall{
			ID:        "call-1",
			Name:      "execute_safe_bash",
			Arguments: map[string]interface{}{"command": "rm -rf /"},
		})},
		{resp: textResponse("Plan ready.")},
	}}
	cfg := newTestConfig(t)
	o := newTestOrchestrator(t, cfg, adapter)

	events, err := collectEvents(t, o.RunPlan(context.Background(), []Message{HumanMessage("plan a cleanup")}, PlanComprehensive))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Planning skips routing entirely.
	if len(eventsOfType(events, EventRouting)) != 0 {
		t.Error("expected no routing event")
	}
	if events[0].Expert != "Planner" || events[0].Icon != "📋" {
		t.Errorf("expected planner attribution, got %q/%q", events[0].Expert, events[0].Icon)
	}

	results := eventsOfType(events, EventToolResult)
	if len(results) != 1 {
		t.Fatalf("expected one tool result, got %d", len(results))
	}
	want := `Command rejected: Command contains dangerous pattern: \brm\b` + "\nCommand: rm -rf /"
	if got := payloadString(results[0], "content"); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
	// A rejected command never ran, so there is nothing for the terminal.
	if len(eventsOfType(events, EventTerminal)) != 0 {
		t.Error("expected no terminal event for a rejected command")
	}

	complete := eventsOfType(events, EventComplete)
	if len(complete) != 1 || payloadString(complete[0], "expert_used") != ExpertPlanner {
		t.Errorf("expected completion by %q, got %v", ExpertPlanner, complete)
	}

	reqs := adapter.recorded()
	if len(reqs) == 0 || len(reqs[0].Tools) != 3 {
		t.Fatalf("expected the planner tool set on the request, got %v", reqs)
	}
}

func TestRunQueryMultiTurn(t *testing.T) {
	adapter := &scriptedAdapter{steps: []scriptedStep{
		{resp: textResponse("CodeGenerator")},
		{resp: toolCallResponse("", writeCall("call-1", "hello.py", "print('hi')\n"))},
		{resp: textResponse("Created it.")},
		{resp: textResponse("CodeReviewer")},
		{resp: textResponse("Looks good.")},
	}}
	cfg := newTestConfig(t)
	o := newTestOrchestrator(t, cfg, adapter)

	history := []Message{HumanMessage("make hello")}
	events, err := collectEvents(t, o.RunQuery(context.Background(), history))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	history = append(history, EventsToMessages(events)...)
	history = append(history, HumanMessage("now review it"))

	if _, err := collectEvents(t, o.RunQuery(context.Background(), history)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reqs := adapter.recorded()
	if len(reqs) != 5 {
		t.Fatalf("expected 5 model requests, got %d", len(reqs))
	}
	msgs := reqs[4].Messages

	wantRoles := []llm.Role{
		llm.RoleSystem,
		llm.RoleUser,
		llm.RoleAssistant,
		llm.RoleTool,
		llm.RoleAssistant,
		llm.RoleUser,
	}
	if len(msgs) != len(wantRoles) {
		t.Fatalf("expected %d wire messages, got %d", len(wantRoles), len(msgs))
	}
	for i, role := range wantRoles {
		if msgs[i].Role != role {
			t.Errorf("message %d: expected role %q, got %q", i, role, msgs[i].Role)
		}
	}

	// The reconstructed tool-call turn goes out with the placeholder and
	// the original call ID so the provider can pair it with the result.
	if msgs[2].Content != "." {
		t.Errorf("expected the placeholder on the replayed call turn, got %q", msgs[2].Content)
	}
	if len(msgs[2].ToolCalls) != 1 || msgs[2].ToolCalls[0].ID != "call-1" {
		t.Errorf("expected call-1 on the replayed turn, got %v", msgs[2].ToolCalls)
	}
	if msgs[3].ToolCallID != "call-1" {
		t.Errorf("expected the result paired to call-1, got %q", msgs[3].ToolCallID)
	}
	if msgs[3].Content != "Successfully wrote to hello.py" {
		t.Errorf("unexpected replayed result %q", msgs[3].Content)
	}
	if msgs[5].Content != "now review it" {
		t.Errorf("unexpected final user turn %q", msgs[5].Content)
	}
}

func TestAvailableModels(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Model = "openai/gpt-4o"
	cfg.AvailableModels = []string{"openai/gpt-4o", "custom/foo"}
	o := newTestOrchestrator(t, cfg, &scriptedAdapter{})

	models := o.AvailableModels()
	if len(models) != 2 {
		t.Fatalf("expected 2 models, got %d", len(models))
	}

	known := models[0]
	if known.Name != "GPT-4o" || known.Provider != "openai" || !known.Default {
		t.Errorf("unexpected catalog join %+v", known)
	}

	unknown := models[1]
	if unknown.ID != "custom/foo" || unknown.Name != "foo" || unknown.Provider != "custom" {
		t.Errorf("unexpected fallback %+v", unknown)
	}
	if unknown.Default {
		t.Error("expected only the configured model flagged as default")
	}
}

func TestNewOrchestratorSandbox(t *testing.T) {
	cfg := newTestConfig(t)
	sb, err := NewSandbox(filepath.Join(t.TempDir(), "box"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	o, err := NewOrchestrator(cfg, newScriptedClient(&scriptedAdapter{}), WithSandbox(sb))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.Sandbox() != sb {
		t.Error("expected the supplied sandbox to be used")
	}

	// A root that cannot be a directory fails at construction.
	file := filepath.Join(t.TempDir(), "occupied")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg.SandboxRoot = filepath.Join(file, "nested")
	if _, err := NewOrchestrator(cfg, newScriptedClient(&scriptedAdapter{})); err == nil {
		t.Fatal("expected an error for an unusable sandbox root")
	}
}
