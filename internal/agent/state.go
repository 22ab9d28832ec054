// Package agent runs the conversation graph: query formulation, the tool
// calling loop, history pruning and summarization, with per-session
// checkpoints.
package agent

import (
	"time"

	"marketminds/internal/models"
	"marketminds/internal/stages"
)

// State is the persisted conversation of one session.
type State struct {
	SessionID      string           `json:"session_id"`
	Input          string           `json:"input"`
	FormattedQuery string           `json:"formatted_query"`
	Messages       []models.Message `json:"messages"`
	Summary        string           `json:"summary"`
	Context        *stages.Context  `json:"context,omitempty"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// NewState returns the empty state of a session.
func NewState(sessionID string) *State {
	return &State{SessionID: sessionID}
}

// Clone returns a deep copy of s.
func (s *State) Clone() *State {
	out := *s
	out.Messages = models.CloneMessages(s.Messages)
	if s.Context != nil {
		ctx := *s.Context
		ctx.Symbols = append([]string(nil), s.Context.Symbols...)
		ctx.Metrics = append([]string(nil), s.Context.Metrics...)
		out.Context = &ctx
	}
	return &out
}

// LastAI returns the most recent AI message, if any.
func (s *State) LastAI() (models.Message, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == models.RoleAI {
			return s.Messages[i], true
		}
	}
	return models.Message{}, false
}

// Update is the output of one node. Removals are applied before appends.
type Update struct {
	Append         []models.Message
	Remove         []string
	Summary        *string
	FormattedQuery *string
	Context        *stages.Context
}

// Apply merges u into s.
func (s *State) Apply(u Update) {
	if len(u.Remove) > 0 {
		drop := make(map[string]bool, len(u.Remove))
		for _, id := range u.Remove {
			drop[id] = true
		}
		kept := s.Messages[:0]
		for _, m := range s.Messages {
			if !drop[m.ID] {
				kept = append(kept, m)
			}
		}
		s.Messages = kept
	}
	s.Messages = append(s.Messages, u.Append...)
	if u.Summary != nil {
		s.Summary = *u.Summary
	}
	if u.FormattedQuery != nil {
		s.FormattedQuery = *u.FormattedQuery
	}
	if u.Context != nil {
		s.Context = u.Context
	}
}
