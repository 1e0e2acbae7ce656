// Package multiagent orchestrates specialized coding agents over a shared
// sandboxed workspace.
//
// A query run has three moving parts: a Router that picks the expert for
// the latest human message with a single coordinator model call, an
// Orchestrator that alternates model turns and sequential tool execution
// against a Sandbox, and a Stream that delivers every externally visible
// step of the run as ordered events.
//
// # Quick Start
//
//	cfg, _ := config.Load()
//	client := llm.NewClient(llm.WithAdapter(adapter), llm.WithDefaultModel(cfg.Model))
//	orch, _ := multiagent.NewOrchestrator(cfg, client)
//
//	stream := orch.RunQuery(ctx, []multiagent.Message{
//	    multiagent.HumanMessage("Write a binary search in Python and save it to binary_search.py"),
//	})
//	var events []multiagent.Event
//	for ev := range stream.Events() {
//	    events = append(events, ev)
//	}
//	if err := stream.Wait(); err != nil {
//	    log.Fatal(err)
//	}
//
// Multi-turn conversations persist by folding the consumed events back
// into messages: EventsToMessages(events) appended to the history is
// exactly what the next RunQuery needs. SessionManager does that
// bookkeeping, plus a private sandbox directory per session.
//
// Tool execution is deliberately conservative: every path the model names
// resolves inside the sandbox or fails with a traversal error, the planner
// role's shell runs behind a whitelist filter, a per-run ceiling caps
// total tool calls, and a repeatedly failing call signature gets disabled
// rather than retried forever.
package multiagent
