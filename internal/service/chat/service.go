package chat

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/serenibot/serenibot/backend/internal/model/chat"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidRole     = errors.New("invalid turn role")
	ErrEmptyContent    = errors.New("turn content is empty")
)

// Service is the in-memory conversation store: per-session append-only
// turn logs plus the derived transcript view. Turns are never edited or
// removed, and nothing survives a process restart.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]chat.Session
	turns    map[string][]chat.Turn
	greeting string
}

// NewService bootstraps the store. A non-empty greeting becomes the
// first assistant turn of every new session.
func NewService(greeting string) *Service {
	return &Service{
		sessions: make(map[string]chat.Session),
		turns:    make(map[string][]chat.Turn),
		greeting: strings.TrimSpace(greeting),
	}
}

// CreateSession provisions an empty conversation and hands back its
// handle. Callers pass the handle into every subsequent operation;
// there is no process-wide current session.
func (s *Service) CreateSession(_ context.Context) (chat.Session, error) {
	session := chat.Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.turns[session.ID] = make([]chat.Turn, 0, 16)
	if s.greeting != "" {
		s.turns[session.ID] = append(s.turns[session.ID], s.newTurn(session.ID, chat.RoleAssistant, s.greeting))
	}
	s.mu.Unlock()

	return session, nil
}

// AppendTurn records one turn at the end of the session log. It never
// fails for a well-formed (role, content) pair on a known session.
func (s *Service) AppendTurn(_ context.Context, sessionID string, role chat.Role, content string) (chat.Turn, error) {
	if !role.Valid() {
		return chat.Turn{}, ErrInvalidRole
	}
	if strings.TrimSpace(content) == "" {
		return chat.Turn{}, ErrEmptyContent
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return chat.Turn{}, ErrSessionNotFound
	}

	turn := s.newTurn(sessionID, role, content)
	s.turns[sessionID] = append(s.turns[sessionID], turn)
	return turn, nil
}

// History returns the ordered turn sequence exactly as it will be
// offered to the chat model. The full log is returned; windowing for
// the model happens at the AI service.
func (s *Service) History(_ context.Context, sessionID string) ([]chat.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns, ok := s.turns[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}

	copied := make([]chat.Turn, len(turns))
	copy(copied, turns)
	return copied, nil
}

// Transcript renders the free-text log, one "User:"/"AI:" line per
// turn in turn order. It is computed from the turn sequence on every
// call and never stored, so the two views cannot drift.
func (s *Service) Transcript(ctx context.Context, sessionID string) (string, error) {
	turns, err := s.History(ctx, sessionID)
	if err != nil {
		return "", err
	}

	var builder strings.Builder
	for _, turn := range turns {
		speaker := "User"
		if turn.Role == chat.RoleAssistant {
			speaker = "AI"
		}
		builder.WriteString(speaker)
		builder.WriteString(": ")
		builder.WriteString(turn.Content)
		builder.WriteString("\n")
	}
	return builder.String(), nil
}

// ListSessions returns every live session, oldest first.
func (s *Service) ListSessions(_ context.Context) ([]chat.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]chat.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].ID < sessions[j].ID
		}
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
	return sessions, nil
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return chat.Session{}, ErrSessionNotFound
	}
	return session, nil
}

func (s *Service) newTurn(sessionID string, role chat.Role, content string) chat.Turn {
	return chat.Turn{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}
