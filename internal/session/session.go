package session

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/learnstream/quiz-engine/internal/quiz"
	"github.com/learnstream/quiz-engine/internal/quiz/scoring"
)

// Session owns the participant states for one quiz. Created lazily on first
// join, destroyed eagerly when the last participant leaves or completes.
type Session struct {
	quizID string
	def    *quiz.Definition

	mu           sync.Mutex
	participants map[uuid.UUID]*participant
	// completed keeps each finished attempt's result for the session's
	// lifetime so a race loser or a re-join can observe it.
	completed   map[uuid.UUID]scoring.Result
	closed      bool
	cancelSweep context.CancelFunc
}

func newSession(quizID string, def *quiz.Definition) *Session {
	return &Session{
		quizID:       quizID,
		def:          def,
		participants: make(map[uuid.UUID]*participant),
		completed:    make(map[uuid.UUID]scoring.Result),
	}
}

// QuizID returns the session's quiz identifier.
func (s *Session) QuizID() string {
	return s.quizID
}

// ParticipantCount returns the number of live participant states.
func (s *Session) ParticipantCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.participants)
}

// participant returns the live state for an id, or the completed result if
// the attempt already finished within this session's lifetime.
func (s *Session) participant(id uuid.UUID) (*participant, *scoring.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.participants[id]; ok {
		return p, nil, true
	}
	if res, ok := s.completed[id]; ok {
		return nil, &res, true
	}
	return nil, nil, false
}

// expiredParticipants snapshots the participants matching the deadline check.
func (s *Session) expiredParticipants(check func(*participant) bool) []*participant {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []*participant
	for _, p := range s.participants {
		if check(p) {
			expired = append(expired, p)
		}
	}
	return expired
}
