package models

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Role identifies the author of a message.
type Role string

const (
	RoleHuman  Role = "human"
	RoleAI     Role = "ai"
	RoleSystem Role = "system"
	RoleTool   Role = "tool"
)

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Message is one entry of the conversation history.
type Message struct {
	ID         string     `json:"id"`
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// NewMessage returns a message with a fresh identifier.
func NewMessage(role Role, content string) Message {
	return Message{ID: uuid.NewString(), Role: role, Content: content}
}

// HumanMessage returns a new human message.
func HumanMessage(content string) Message { return NewMessage(RoleHuman, content) }

// AIMessage returns a new assistant message.
func AIMessage(content string) Message { return NewMessage(RoleAI, content) }

// SystemMessage returns a new system message.
func SystemMessage(content string) Message { return NewMessage(RoleSystem, content) }

// ToolMessage returns the result of the tool call identified by callID.
func ToolMessage(callID, name, content string) Message {
	m := NewMessage(RoleTool, content)
	m.ToolCallID = callID
	m.Name = name
	return m
}

// HasToolCalls reports whether the message requests tool executions.
func (m Message) HasToolCalls() bool {
	return m.Role == RoleAI && len(m.ToolCalls) > 0
}

// Clone returns a deep copy of m.
func (m Message) Clone() Message {
	out := m
	if m.ToolCalls != nil {
		out.ToolCalls = make([]ToolCall, len(m.ToolCalls))
		for i, tc := range m.ToolCalls {
			out.ToolCalls[i] = tc
			if tc.Arguments != nil {
				out.ToolCalls[i].Arguments = append(json.RawMessage(nil), tc.Arguments...)
			}
		}
	}
	return out
}

// CloneMessages deep copies a message slice.
func CloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}

// StripUnansweredToolCalls returns a copy of msgs in which AI messages keep
// only the tool calls that have a matching tool message. Providers reject
// histories where a call has no result.
func StripUnansweredToolCalls(msgs []Message) []Message {
	answered := make(map[string]bool)
	for _, m := range msgs {
		if m.Role == RoleTool && m.ToolCallID != "" {
			answered[m.ToolCallID] = true
		}
	}
	out := CloneMessages(msgs)
	for i := range out {
		if out[i].Role != RoleAI || len(out[i].ToolCalls) == 0 {
			continue
		}
		kept := out[i].ToolCalls[:0]
		for _, tc := range out[i].ToolCalls {
			if answered[tc.ID] {
				kept = append(kept, tc)
			}
		}
		if len(kept) == 0 {
			kept = nil
		}
		out[i].ToolCalls = kept
	}
	return out
}
