package multiagent

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"

	"github.com/atelierlabs/atelier/llm"
)

// EventType identifies a stream event.
type EventType string

const (
	EventRouting       EventType = "routing"
	EventToolCall      EventType = "tool_call"
	EventToolResult    EventType = "tool_result"
	EventFileOperation EventType = "file_operation"
	EventTerminal      EventType = "terminal"
	EventAgentText     EventType = "agent_text"
	EventError         EventType = "error"
	EventComplete      EventType = "complete"
	EventEnd           EventType = "end"
)

// Event is one externally observable step of a run. Seq increases by one
// per event within a run; every run ends with exactly one end event.
type Event struct {
	ID        string                 `json:"id"`
	Seq       uint64                 `json:"seq"`
	Type      EventType              `json:"type"`
	Timestamp string                 `json:"timestamp"`
	Expert    string                 `json:"expert,omitempty"`
	Icon      string                 `json:"icon,omitempty"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
}

// Stream delivers one run's events in production order. Sends block until
// the consumer receives them, so events are never dropped or reordered. A
// consumer that wants to abandon the run cancels it via Close (or the run
// context) instead of walking away.
type Stream struct {
	events chan Event
	done   chan struct{}
	cancel context.CancelFunc
	err    error
}

func newStream(cancel context.CancelFunc) *Stream {
	return &Stream{
		events: make(chan Event),
		done:   make(chan struct{}),
		cancel: cancel,
	}
}

// Events is the receive side of the stream. The channel is closed after
// the final end event.
func (s *Stream) Events() <-chan Event {
	return s.events
}

// Wait blocks until the run goroutine has finished and returns its
// terminal error, if any. Drain Events before waiting.
func (s *Stream) Wait() error {
	<-s.done
	return s.err
}

// Close abandons the run by canceling its context. Idempotent; already
// delivered events are unaffected.
func (s *Stream) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

// finish records the terminal error and closes the stream. Called exactly
// once by the producer.
func (s *Stream) finish(err error) {
	s.err = err
	close(s.events)
	close(s.done)
}

// finalEventGrace bounds how long a canceled run waits to hand the
// trailing error and end events to a consumer that may already be gone.
const finalEventGrace = 100 * time.Millisecond

// emitter stamps sequence numbers and expert attribution onto events and
// delivers them to the stream.
type emitter struct {
	ctx    context.Context
	stream *Stream
	seq    uint64
	expert string
	icon   string
}

func newEmitter(ctx context.Context, stream *Stream) *emitter {
	return &emitter{ctx: ctx, stream: stream}
}

// setExpert changes the attribution stamped on subsequent events.
func (e *emitter) setExpert(name, icon string) {
	e.expert = name
	e.icon = icon
}

func (e *emitter) build(t EventType, payload map[string]interface{}) Event {
	e.seq++
	return Event{
		ID:        "evt-" + uuid.New().String()[:8],
		Seq:       e.seq,
		Type:      t,
		Timestamp: time.Now().Format(time.RFC3339Nano),
		Expert:    e.expert,
		Icon:      e.icon,
		Payload:   payload,
	}
}

// emit delivers one event, blocking until the consumer takes it. Returns
// false when the run context ended first; the caller aborts the run.
func (e *emitter) emit(t EventType, payload map[string]interface{}) bool {
	ev := e.build(t, payload)
	select {
	case e.stream.events <- ev:
		return true
	case <-e.ctx.Done():
		return false
	}
}

// emitFinal delivers a trailing event after cancellation, waiting at most
// the grace period for a consumer.
func (e *emitter) emitFinal(t EventType, payload map[string]interface{}) {
	ev := e.build(t, payload)
	timer := time.NewTimer(finalEventGrace)
	defer timer.Stop()
	select {
	case e.stream.events <- ev:
	case <-timer.C:
	}
}

// deliver sends through emit while the run is live and falls back to the
// grace path once the context is done.
func (e *emitter) deliver(t EventType, payload map[string]interface{}) {
	if e.ctx.Err() != nil {
		e.emitFinal(t, payload)
		return
	}
	e.emit(t, payload)
}

type toolCallPayload struct {
	CallID   string                 `mapstructure:"call_id"`
	ToolName string                 `mapstructure:"tool_name"`
	ToolArgs map[string]interface{} `mapstructure:"tool_args"`
}

type toolResultPayload struct {
	CallID   string `mapstructure:"call_id"`
	ToolName string `mapstructure:"tool_name"`
	Content  string `mapstructure:"content"`
}

type agentTextPayload struct {
	Content string `mapstructure:"content"`
}

// EventsToMessages folds a consumed event sequence back into conversation
// messages, the inverse of the streaming projection. Each tool_call event
// becomes an assistant message carrying that call; tool_result events pair
// with their call by call_id. Routing and the other projection-only events
// fold to nothing. Feeding the result back as history is the multi-turn
// contract.
func EventsToMessages(events []Event) []Message {
	var out []Message
	for _, ev := range events {
		switch ev.Type {
		case EventAgentText:
			var p agentTextPayload
			if err := mapstructure.Decode(ev.Payload, &p); err != nil {
				continue
			}
			out = append(out, AssistantMessage(p.Content))
		case EventToolCall:
			var p toolCallPayload
			if err := mapstructure.Decode(ev.Payload, &p); err != nil {
				continue
			}
			out = append(out, AssistantToolCallMessage("", []llm.ToolCall{{
				ID:        p.CallID,
				Name:      p.ToolName,
				Arguments: p.ToolArgs,
			}}))
		case EventToolResult:
			var p toolResultPayload
			if err := mapstructure.Decode(ev.Payload, &p); err != nil {
				continue
			}
			out = append(out, ToolResultMessage(p.CallID, p.ToolName, p.Content))
		}
	}
	return out
}
