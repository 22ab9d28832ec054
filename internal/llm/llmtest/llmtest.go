// Package llmtest provides a scripted llm.Model for tests.
package llmtest

import (
	"context"
	"errors"
	"sync"

	"marketminds/internal/llm"
	"marketminds/internal/models"
)

// ErrScriptExhausted is returned once every scripted reply has been used.
var ErrScriptExhausted = errors.New("llmtest: no scripted reply left")

// Reply is one scripted model answer.
type Reply struct {
	Content   string
	ToolCalls []models.ToolCall
	Err       error
}

// Model replays scripted replies in order and records every request.
type Model struct {
	mu       sync.Mutex
	replies  []Reply
	requests []llm.Request
	// Repeat, when set, answers every call after the script runs out.
	Repeat *Reply
}

// New returns a model that answers with replies in order.
func New(replies ...Reply) *Model {
	return &Model{replies: replies}
}

// Text returns a model answering each call with the next text.
func Text(texts ...string) *Model {
	replies := make([]Reply, len(texts))
	for i, t := range texts {
		replies[i] = Reply{Content: t}
	}
	return New(replies...)
}

// Name implements llm.Model.
func (m *Model) Name() string { return "test/scripted" }

// Chat implements llm.Model.
func (m *Model) Chat(ctx context.Context, req llm.Request) (*llm.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, llm.Request{
		Messages:    models.CloneMessages(req.Messages),
		Tools:       req.Tools,
		Temperature: req.Temperature,
		JSON:        req.JSON,
	})

	var r Reply
	switch {
	case len(m.replies) > 0:
		r = m.replies[0]
		m.replies = m.replies[1:]
	case m.Repeat != nil:
		r = *m.Repeat
	default:
		return nil, ErrScriptExhausted
	}
	if r.Err != nil {
		return nil, r.Err
	}

	msg := models.AIMessage(r.Content)
	if len(r.ToolCalls) > 0 {
		msg.ToolCalls = append([]models.ToolCall(nil), r.ToolCalls...)
	}
	return &llm.Response{Message: msg}, nil
}

// Requests returns every request received so far.
func (m *Model) Requests() []llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]llm.Request(nil), m.requests...)
}

// Calls returns the number of requests received.
func (m *Model) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}
