package multiagent

import "fmt"

// PathTraversalError reports a path argument that resolved outside the
// sandbox root. It is the one filesystem fault that is never folded into
// tool output silently; the message is surfaced verbatim to the model.
type PathTraversalError struct {
	Path string
}

func (e *PathTraversalError) Error() string {
	return fmt.Sprintf("Path traversal attempt detected. Access to '%s' is denied.", e.Path)
}

// InvalidRangeError reports a line range that is empty after clamping to
// the file's bounds.
type InvalidRangeError struct {
	Start int
	End   int
	Lines int
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid line range %d-%d (file has %d lines)", e.Start, e.End, e.Lines)
}

// ToolExecutionError wraps a fault raised while executing a tool. It is
// recovered per call and fed back to the model as result content.
type ToolExecutionError struct {
	Tool string
	Err  error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("Tool %s failed: %v", e.Tool, e.Err)
}

func (e *ToolExecutionError) Unwrap() error {
	return e.Err
}

// RoutingError records a model failure during routing. Routing never aborts
// a run; the error rides along in the RoutingDecision.
type RoutingError struct {
	Cause error
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("routing failed: %v", e.Cause)
}

func (e *RoutingError) Unwrap() error {
	return e.Cause
}

// LoopLimitExceeded marks a run stopped by the tool-call ceiling or the
// expert-turn cap. Both stops end the run gracefully; the type shows up in
// logs, not on Stream.Wait.
type LoopLimitExceeded struct {
	Limit int
	Kind  string // "tool_calls" or "iterations"
}

func (e *LoopLimitExceeded) Error() string {
	return fmt.Sprintf("%s limit (%d) reached", e.Kind, e.Limit)
}

// StreamFailure wraps an unclassified fault while producing the event
// stream. It becomes a single error event followed by the final end event.
type StreamFailure struct {
	Err error
}

func (e *StreamFailure) Error() string {
	return fmt.Sprintf("stream failure: %v", e.Err)
}

func (e *StreamFailure) Unwrap() error {
	return e.Err
}
