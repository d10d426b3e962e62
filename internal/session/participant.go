package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/learnstream/quiz-engine/internal/quiz"
)

// participant is one attempt's state. Owned exclusively by its session; the
// mutex serializes the submission handler against the timeout sweep so
// completion executes exactly once.
type participant struct {
	id uuid.UUID

	mu        sync.Mutex
	status    Status
	answers   map[string]quiz.Answer
	startedAt time.Time
	deadline  time.Time
}

func newParticipant(id uuid.UUID, now time.Time, timeLimit time.Duration) *participant {
	return &participant{
		id:        id,
		status:    StatusJoining,
		answers:   make(map[string]quiz.Answer),
		startedAt: now,
		deadline:  now.Add(timeLimit),
	}
}

// activate transitions joining -> active after registration succeeds.
func (p *participant) activate() {
	p.mu.Lock()
	p.status = StatusActive
	p.mu.Unlock()
}

// recordAnswer stores an answer, overwriting any prior answer for the same
// question id, and returns the number of distinct questions answered.
func (p *participant) recordAnswer(questionID string, answer quiz.Answer) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.status {
	case StatusActive:
	case StatusCompleted:
		return 0, ErrAttemptCompleted
	default:
		return 0, ErrNotActive
	}

	p.answers[questionID] = answer
	return len(p.answers), nil
}

// beginCompletion is the exactly-once gate shared by the submission path and
// the timeout path. The winner proceeds to scoring; the loser observes the
// completed status and no-ops.
func (p *participant) beginCompletion() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.status != StatusActive {
		return false
	}
	p.status = StatusCompleted
	return true
}

// markDisconnected is terminal for this attempt state; it never scores.
func (p *participant) markDisconnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.status == StatusCompleted || p.status == StatusDisconnected {
		return false
	}
	p.status = StatusDisconnected
	return true
}

// timeRemaining is floor-clamped at zero and derived from the fixed
// deadline, so it is monotonically non-increasing while active.
func (p *participant) timeRemaining(now time.Time) time.Duration {
	remaining := p.deadline.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (p *participant) deadlineExpired(now time.Time) bool {
	return !now.Before(p.deadline)
}

// answersSnapshot copies the answer map for scoring.
func (p *participant) answersSnapshot() map[string]quiz.Answer {
	p.mu.Lock()
	defer p.mu.Unlock()

	snapshot := make(map[string]quiz.Answer, len(p.answers))
	for k, v := range p.answers {
		snapshot[k] = v
	}
	return snapshot
}
