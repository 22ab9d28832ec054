package agent

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	apperrors "marketminds/internal/errors"
	"marketminds/internal/logging"
	"marketminds/internal/store"
)

// Reply is what the user sees for one turn.
type Reply struct {
	Text string
	// Err is the underlying failure, if any. Text is then the user-facing
	// message for it.
	Err error
}

// Service runs turns against persisted sessions. Turns on one session are
// serialized; distinct sessions run independently.
type Service struct {
	graph       *Graph
	checkpoints CheckpointStore
	logger      zerolog.Logger

	mu    sync.Mutex
	locks map[string]*sessionLock
}

// sessionLock is dropped from Service.locks once no turn holds or waits on it.
type sessionLock struct {
	sync.Mutex
	refs int
}

// NewService creates a service.
func NewService(graph *Graph, checkpoints CheckpointStore, logger zerolog.Logger) *Service {
	return &Service{
		graph:       graph,
		checkpoints: checkpoints,
		logger:      logger,
		locks:       make(map[string]*sessionLock),
	}
}

// NewSessionID returns a fresh session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// lockSession serializes work on one session. The returned func releases it.
func (s *Service) lockSession(sessionID string) func() {
	s.mu.Lock()
	l, ok := s.locks[sessionID]
	if !ok {
		l = &sessionLock{}
		s.locks[sessionID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, sessionID)
		}
		s.mu.Unlock()
	}
}

// Run executes one turn and returns the assistant's answer. The session's
// checkpoint is written only when the turn completes.
func (s *Service) Run(ctx context.Context, sessionID, input string) (string, error) {
	input = strings.TrimSpace(input)
	if sessionID == "" {
		return "", apperrors.NewValidationError("session_id", sessionID, "must not be empty")
	}
	if input == "" {
		return "", apperrors.NewValidationError("input", input, "must not be empty")
	}

	unlock := s.lockSession(sessionID)
	defer unlock()

	logger := logging.WithSession(s.logger, sessionID)
	ctx = logging.WithLogger(ctx, logger)

	state, err := s.checkpoints.Get(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if state == nil {
		state = NewState(sessionID)
	}

	next, answer, stats, err := s.graph.Run(ctx, state, input)
	if err != nil {
		return "", err
	}
	next.UpdatedAt = time.Now()
	if err := s.checkpoints.Put(ctx, next); err != nil {
		return "", err
	}

	logging.LogTurn(logger, sessionID, stats.Steps, stats.Hops, len(next.Messages), stats.Summarized)
	return answer, nil
}

// Respond runs a turn and never fails: finance errors become their chat
// message and anything else the generic failure notice.
func (s *Service) Respond(ctx context.Context, sessionID, input string) Reply {
	answer, err := s.Run(ctx, sessionID, input)
	if err == nil {
		return Reply{Text: answer}
	}
	if _, ok := apperrors.AsFinanceError(err); ok {
		s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("Finance error in turn")
	} else {
		s.logger.Error().Err(err).Str("session_id", sessionID).Msg("Turn failed")
	}
	return Reply{Text: apperrors.ChatMessage(err), Err: err}
}

// State returns the stored state of a session, or nil if it has none.
func (s *Service) State(ctx context.Context, sessionID string) (*State, error) {
	return s.checkpoints.Get(ctx, sessionID)
}

// Reset forgets a session.
func (s *Service) Reset(ctx context.Context, sessionID string) error {
	unlock := s.lockSession(sessionID)
	defer unlock()
	return s.checkpoints.Delete(ctx, sessionID)
}

// Sessions lists stored sessions.
func (s *Service) Sessions(ctx context.Context) ([]store.SessionInfo, error) {
	return s.checkpoints.List(ctx)
}
