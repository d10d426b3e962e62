package session

import (
	"context"
	"time"

	"github.com/learnstream/quiz-engine/internal/attempt"
)

// runSweeper enforces per-participant deadlines independently of client
// heartbeats. It runs for the session's lifetime and stops when the session
// is destroyed.
func (r *Registry) runSweeper(ctx context.Context, s *Session) {
	ticker := time.NewTicker(r.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep(ctx, s)
		}
	}
}

// sweep completes every participant whose deadline has passed. complete's
// exactly-once gate makes racing a concurrent final submission safe.
func (r *Registry) sweep(ctx context.Context, s *Session) {
	now := r.now()
	expired := s.expiredParticipants(func(p *participant) bool {
		return p.deadlineExpired(now)
	})

	for _, p := range expired {
		res, won := r.complete(ctx, s, p, attempt.ReasonTimeout)
		if won && r.notifier != nil {
			r.notifier.NotifyCompleted(p.id, s.quizID, res, attempt.ReasonTimeout)
		}
	}
}
