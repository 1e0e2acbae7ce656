package multiagent

import (
	"strings"
	"time"

	"github.com/atelierlabs/atelier/llm"
)

// toolCallHistoryLimit bounds the per-run call history.
const toolCallHistoryLimit = 50

// defaultRecentFilesLimit bounds the recently written file list when the
// caller does not configure one.
const defaultRecentFilesLimit = 10

// CallRecord is one tool call as it went through the loop, kept for
// observability and deduplication.
type CallRecord struct {
	Signature string    `json:"signature"`
	Tool      string    `json:"tool"`
	At        time.Time `json:"at"`
	Success   bool      `json:"success"`
}

// RunState is the bookkeeping for one query run. It is created at run
// start, owned exclusively by the run's goroutine, and discarded at the
// end; nothing in it is shared or locked.
type RunState struct {
	Messages        []Message
	CurrentExpert   string
	ToolCallCount   int
	ToolFailures    map[string]int
	ToolCallHistory []CallRecord
	RecentFiles     []string
	Iteration       int

	recentFilesLimit int
}

// NewRunState copies the supplied history so the run owns its messages.
func NewRunState(history []Message, recentFilesLimit int) *RunState {
	if recentFilesLimit <= 0 {
		recentFilesLimit = defaultRecentFilesLimit
	}
	msgs := make([]Message, len(history))
	copy(msgs, history)
	return &RunState{
		Messages:         msgs,
		ToolFailures:     make(map[string]int),
		recentFilesLimit: recentFilesLimit,
	}
}

// callSignature identifies a tool call by name plus canonical arguments.
// Canonical JSON sorts map keys, so the same logical call always produces
// the same signature regardless of argument iteration order.
func callSignature(call llm.ToolCall) string {
	return call.Name + ":" + call.CanonicalArguments()
}

// Append adds messages to the run's conversation.
func (s *RunState) Append(msgs ...Message) {
	s.Messages = append(s.Messages, msgs...)
}

// FailureCount returns how often a signature has faulted this run.
func (s *RunState) FailureCount(sig string) int {
	return s.ToolFailures[sig]
}

// RecordFailure bumps a signature's fault count.
func (s *RunState) RecordFailure(sig string) {
	s.ToolFailures[sig]++
}

// RecordCall appends to the bounded call history and increments the global
// counter. Success mirrors what the model will read: a result whose content
// mentions a failure counts as unsuccessful.
func (s *RunState) RecordCall(sig, tool, resultContent string) {
	s.ToolCallHistory = append(s.ToolCallHistory, CallRecord{
		Signature: sig,
		Tool:      tool,
		At:        time.Now(),
		Success:   !strings.Contains(strings.ToLower(resultContent), "failed"),
	})
	if len(s.ToolCallHistory) > toolCallHistoryLimit {
		s.ToolCallHistory = s.ToolCallHistory[len(s.ToolCallHistory)-toolCallHistoryLimit:]
	}
	s.ToolCallCount++
}

// TrackFile notes a file touched by a write or replace. A path is added
// once; the list keeps the most recent entries up to the limit.
func (s *RunState) TrackFile(path string) {
	for _, p := range s.RecentFiles {
		if p == path {
			return
		}
	}
	s.RecentFiles = append(s.RecentFiles, path)
	if len(s.RecentFiles) > s.recentFilesLimit {
		s.RecentFiles = s.RecentFiles[len(s.RecentFiles)-s.recentFilesLimit:]
	}
}
