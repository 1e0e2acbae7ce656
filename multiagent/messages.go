package multiagent

import (
	"strings"

	"github.com/atelierlabs/atelier/llm"
)

// Conversation roles.
const (
	RoleHuman     = "human"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one conversation entry: a human turn, an assistant turn (text
// and/or tool calls), or a tool result correlated to its call by ID.
// Ordering is append-only; every tool result references a call from the
// assistant message immediately before it.
type Message struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	ToolCalls  []llm.ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	ToolName   string         `json:"tool_name,omitempty"`
}

// HumanMessage creates a human turn.
func HumanMessage(text string) Message {
	return Message{Role: RoleHuman, Content: text}
}

// AssistantMessage creates an assistant text turn.
func AssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Content: text}
}

// AssistantToolCallMessage creates an assistant turn that requests tool
// execution. Content may be empty; it is stored as produced.
func AssistantToolCallMessage(content string, calls []llm.ToolCall) Message {
	return Message{Role: RoleAssistant, Content: content, ToolCalls: calls}
}

// ToolResultMessage creates a tool result turn.
func ToolResultMessage(callID, tool, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: callID, ToolName: tool}
}

// HasToolCalls reports whether the message requests tool execution.
func (m Message) HasToolCalls() bool {
	return len(m.ToolCalls) > 0
}

// LatestHumanText returns the content of the most recent human message, or
// "" when the history has none.
func LatestHumanText(history []Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == RoleHuman {
			return history[i].Content
		}
	}
	return ""
}

// assistantPlaceholder replaces empty assistant content on the outbound
// path. Some providers reject assistant turns whose text is empty when
// replaying history. Stored messages keep their original content.
const assistantPlaceholder = "."

// toModelMessages converts history to the wire shape with the system prompt
// first. Empty or whitespace-only assistant content is substituted with a
// placeholder on the copy sent out; the history itself is never touched.
func toModelMessages(systemPrompt string, history []Message) []llm.Message {
	out := make([]llm.Message, 0, len(history)+1)
	if systemPrompt != "" {
		out = append(out, llm.SystemMessage(systemPrompt))
	}
	for _, m := range history {
		switch m.Role {
		case RoleHuman:
			out = append(out, llm.UserMessage(m.Content))
		case RoleAssistant:
			content := m.Content
			if strings.TrimSpace(content) == "" {
				content = assistantPlaceholder
			}
			out = append(out, llm.Message{
				Role:      llm.RoleAssistant,
				Content:   content,
				ToolCalls: m.ToolCalls,
			})
		case RoleTool:
			out = append(out, llm.ToolResultMessage(m.ToolCallID, m.Content, false))
		}
	}
	return out
}
