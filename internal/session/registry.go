package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/learnstream/quiz-engine/internal/attempt"
	"github.com/learnstream/quiz-engine/internal/metrics"
	"github.com/learnstream/quiz-engine/internal/quiz"
	"github.com/learnstream/quiz-engine/internal/quiz/scoring"
	ws "github.com/learnstream/quiz-engine/pkg/http/ws"
)

// CompletionNotifier is told about completions the engine triggers on its
// own (deadline sweep), so the transport layer can push quiz_completed to
// the participant with a channel-signed score.
type CompletionNotifier interface {
	NotifyCompleted(participantID uuid.UUID, quizID string, result scoring.Result, reason attempt.Reason)
}

// RegistryOptions tunes registry behavior.
type RegistryOptions struct {
	SweepInterval time.Duration // deadline sweep period; default 1s
	Now           func() time.Time
}

// Registry is the single source of truth for which quiz sessions currently
// have participants. It owns session creation, per-participant operations
// and eager destruction of empty sessions.
type Registry struct {
	store    quiz.Store
	scorer   *scoring.Engine
	recorder *attempt.Recorder
	hub      *ws.Hub
	metrics  *metrics.Metrics
	logger   zerolog.Logger

	sweepInterval time.Duration
	now           func() time.Time
	notifier      CompletionNotifier

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates a session registry.
func NewRegistry(
	store quiz.Store,
	scorer *scoring.Engine,
	recorder *attempt.Recorder,
	hub *ws.Hub,
	m *metrics.Metrics,
	opts RegistryOptions,
	logger zerolog.Logger,
) *Registry {
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Registry{
		store:         store,
		scorer:        scorer,
		recorder:      recorder,
		hub:           hub,
		metrics:       m,
		logger:        logger.With().Str("component", "session_registry").Logger(),
		sweepInterval: opts.SweepInterval,
		now:           opts.Now,
		sessions:      make(map[string]*Session),
	}
}

// SetCompletionNotifier wires the transport-side notifier. Must be called
// during startup, before any traffic is served.
func (r *Registry) SetCompletionNotifier(n CompletionNotifier) {
	r.notifier = n
}

// Join admits a participant into the session for quizID, creating the
// session lazily. The quiz definition is resolved before any session object
// exists, so an unknown quiz id never leaves an empty session behind.
func (r *Registry) Join(ctx context.Context, quizID string, participantID uuid.UUID) (JoinResult, error) {
	def, err := r.store.Get(ctx, quizID)
	if err != nil {
		return JoinResult{}, err
	}

	for {
		r.mu.Lock()
		s, ok := r.sessions[quizID]
		created := false
		if !ok {
			s = newSession(quizID, def)
			// The sweeper cancel must be in place before the session becomes
			// visible; a removal racing in between would find a nil cancel
			// and leak the sweeper goroutine.
			sweepCtx, cancel := context.WithCancel(context.Background())
			s.cancelSweep = cancel
			r.sessions[quizID] = s
			created = true
			go r.runSweeper(sweepCtx, s)
		}
		r.mu.Unlock()

		s.mu.Lock()
		if s.closed {
			// Lost a race with the last leave; the registry no longer knows
			// this session. Start over with a fresh one.
			s.mu.Unlock()
			continue
		}
		if _, done := s.completed[participantID]; done {
			s.mu.Unlock()
			return JoinResult{}, ErrAttemptCompleted
		}

		now := r.now()
		p := newParticipant(participantID, now, s.def.TimeLimit())
		_, rejoining := s.participants[participantID]
		s.participants[participantID] = p
		count := len(s.participants)
		s.mu.Unlock()

		p.activate()

		if created {
			r.metrics.ActiveSessions.Inc()
		}
		if !rejoining {
			r.metrics.ActiveParticipants.Inc()
		}

		r.hub.JoinRoom(quizID, participantID)
		r.broadcast(quizID, ws.TypeParticipantJoined, ws.ParticipantJoinedPayload{QuizID: quizID, Count: count})

		r.logger.Info().
			Str("quiz_id", quizID).
			Str("participant_id", participantID.String()).
			Int("participant_count", count).
			Bool("session_created", created).
			Msg("participant joined")

		return JoinResult{
			ParticipantCount: count,
			TimeRemaining:    p.timeRemaining(now).Seconds(),
			attempt:          p,
		}, nil
	}
}

// SubmitAnswer records one answer. The raw answer bytes are decoded by the
// question's declared type; the last write for a question id wins. When the
// answer map covers every question, the attempt completes and is scored.
func (r *Registry) SubmitAnswer(ctx context.Context, quizID string, participantID uuid.UUID, questionID string, rawAnswer json.RawMessage) (SubmitResult, error) {
	s, p, doneRes, err := r.lookup(quizID, participantID)
	if err != nil {
		return SubmitResult{}, err
	}
	if doneRes != nil {
		return SubmitResult{AlreadyCompleted: true, Result: *doneRes}, nil
	}

	q, ok := s.def.Question(questionID)
	if !ok {
		return SubmitResult{}, ErrUnknownQuestion
	}

	answer, err := quiz.DecodeAnswer(q.Type, rawAnswer)
	if err != nil {
		return SubmitResult{}, err
	}

	answered, err := p.recordAnswer(questionID, answer)
	if err != nil {
		if err == ErrAttemptCompleted {
			// Timeout won the race after our lookup; observe its result.
			if res, ok := r.completedResult(s, participantID); ok {
				return SubmitResult{AlreadyCompleted: true, Result: res}, nil
			}
			return SubmitResult{AlreadyCompleted: true}, nil
		}
		return SubmitResult{}, err
	}

	if answered == len(s.def.Questions) {
		res, won := r.complete(ctx, s, p, attempt.ReasonSubmitted)
		if !won {
			if prev, ok := r.completedResult(s, participantID); ok {
				return SubmitResult{AlreadyCompleted: true, Result: prev}, nil
			}
			return SubmitResult{AlreadyCompleted: true}, nil
		}
		return SubmitResult{IsComplete: true, Result: res}, nil
	}

	return SubmitResult{}, nil
}

// SubmitQuiz completes the attempt explicitly, scoring whatever answers
// exist. A second submission (or a lost race against the sweep) is an
// idempotent no-op success.
func (r *Registry) SubmitQuiz(ctx context.Context, quizID string, participantID uuid.UUID) (SubmitResult, error) {
	s, p, doneRes, err := r.lookup(quizID, participantID)
	if err != nil {
		return SubmitResult{}, err
	}
	if doneRes != nil {
		return SubmitResult{AlreadyCompleted: true, Result: *doneRes}, nil
	}

	res, won := r.complete(ctx, s, p, attempt.ReasonSubmitted)
	if !won {
		if prev, ok := r.completedResult(s, participantID); ok {
			return SubmitResult{AlreadyCompleted: true, Result: prev}, nil
		}
		return SubmitResult{AlreadyCompleted: true}, nil
	}
	return SubmitResult{IsComplete: true, Result: res}, nil
}

// Heartbeat recomputes time-remaining. An expired deadline forces completion
// with whatever answers are on record, exactly once.
func (r *Registry) Heartbeat(ctx context.Context, quizID string, participantID uuid.UUID) (HeartbeatResult, error) {
	s, p, doneRes, err := r.lookup(quizID, participantID)
	if err != nil {
		return HeartbeatResult{}, err
	}
	if doneRes != nil {
		return HeartbeatResult{TimeRemaining: 0}, nil
	}

	now := r.now()
	remaining := p.timeRemaining(now)
	if remaining > 0 {
		return HeartbeatResult{TimeRemaining: remaining.Seconds()}, nil
	}

	res, won := r.complete(ctx, s, p, attempt.ReasonTimeout)
	if !won {
		return HeartbeatResult{TimeRemaining: 0}, nil
	}
	return HeartbeatResult{TimeRemaining: 0, CompletedNow: true, Result: res}, nil
}

// Leave removes a participant's current attempt without scoring, as on an
// explicit leave message. The session is destroyed if it becomes empty.
func (r *Registry) Leave(quizID string, participantID uuid.UUID) {
	r.mu.Lock()
	s, ok := r.sessions[quizID]
	r.mu.Unlock()
	if !ok {
		return
	}
	s.mu.Lock()
	p, live := s.participants[participantID]
	s.mu.Unlock()
	if !live {
		return
	}
	r.removeDisconnected(s, p)
}

// disconnectAttempt handles connection loss for one attempt. The removal is
// keyed by the attempt state itself, not the participant id, so a stale
// cleanup from a replaced connection cannot touch the fresh attempt a re-join
// created. No scoring happens; remaining participants are told about the new
// count.
func (r *Registry) disconnectAttempt(quizID string, p *participant) {
	r.mu.Lock()
	s, ok := r.sessions[quizID]
	r.mu.Unlock()
	if !ok {
		return
	}
	r.removeDisconnected(s, p)
}

// Shutdown stops every session sweeper. Session state is ephemeral and is
// simply dropped.
func (r *Registry) Shutdown() {
	for _, s := range r.sessionSnapshot() {
		s.mu.Lock()
		cancel := s.cancelSweep
		s.mu.Unlock()
		if cancel != nil {
			cancel()
		}
	}
}

// SessionCount reports the number of live sessions.
func (r *Registry) SessionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Session returns the live session for a quiz id, if any.
func (r *Registry) Session(quizID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[quizID]
	return s, ok
}

func (r *Registry) sessionSnapshot() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// lookup resolves (session, live participant) or the completed result.
func (r *Registry) lookup(quizID string, participantID uuid.UUID) (*Session, *participant, *scoring.Result, error) {
	r.mu.Lock()
	s, ok := r.sessions[quizID]
	r.mu.Unlock()
	if !ok {
		return nil, nil, nil, ErrNotInSession
	}

	p, doneRes, found := s.participant(participantID)
	if !found {
		return nil, nil, nil, ErrNotInSession
	}
	return s, p, doneRes, nil
}

func (r *Registry) completedResult(s *Session, participantID uuid.UUID) (scoring.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.completed[participantID]
	return res, ok
}

// complete is the single completion path shared by final-answer submission,
// explicit submit, heartbeat timeout and the sweep. beginCompletion
// guarantees scoring runs exactly once per attempt.
func (r *Registry) complete(ctx context.Context, s *Session, p *participant, reason attempt.Reason) (scoring.Result, bool) {
	if !p.beginCompletion() {
		return scoring.Result{}, false
	}

	answers := p.answersSnapshot()
	res := r.scorer.Score(ctx, s.def, answers)
	completedAt := r.now()

	s.mu.Lock()
	delete(s.participants, p.id)
	s.completed[p.id] = res
	count := len(s.participants)
	s.mu.Unlock()

	r.metrics.ActiveParticipants.Dec()
	r.metrics.AttemptsCompleted.WithLabelValues(string(reason)).Inc()

	r.recorder.Record(ctx, attempt.Result{
		QuizID:        s.quizID,
		ParticipantID: p.id,
		Score:         res.Score,
		Passed:        res.Passed,
		EarnedPoints:  res.EarnedPoints,
		TotalPoints:   res.TotalPoints,
		AnswerCount:   len(answers),
		Reason:        reason,
		StartedAt:     p.startedAt,
		CompletedAt:   completedAt,
	})

	r.hub.LeaveRoom(s.quizID, p.id)
	if count > 0 {
		r.broadcast(s.quizID, ws.TypeParticipantLeft, ws.ParticipantLeftPayload{QuizID: s.quizID, Count: count})
	}

	r.logger.Info().
		Str("quiz_id", s.quizID).
		Str("participant_id", p.id.String()).
		Float64("score", res.Score).
		Bool("passed", res.Passed).
		Str("reason", string(reason)).
		Msg("attempt completed")

	r.removeIfEmpty(s)
	return res, true
}

// removeDisconnected drops one attempt state without scoring.
func (r *Registry) removeDisconnected(s *Session, p *participant) {
	if !p.markDisconnected() {
		return
	}

	s.mu.Lock()
	// Only remove the state we marked; a re-join may have replaced it with a
	// fresh attempt that must stay counted.
	replaced := s.participants[p.id] != p
	if !replaced {
		delete(s.participants, p.id)
	}
	count := len(s.participants)
	s.mu.Unlock()
	if replaced {
		return
	}

	r.metrics.ActiveParticipants.Dec()
	r.hub.LeaveRoom(s.quizID, p.id)
	if count > 0 {
		r.broadcast(s.quizID, ws.TypeParticipantLeft, ws.ParticipantLeftPayload{QuizID: s.quizID, Count: count})
	}

	r.logger.Info().
		Str("quiz_id", s.quizID).
		Str("participant_id", p.id.String()).
		Int("participant_count", count).
		Msg("participant disconnected")

	r.removeIfEmpty(s)
}

// removeIfEmpty destroys the session atomically with the last removal. Lock
// order is registry then session, matching Join, so a concurrent join either
// lands before the recheck (count > 0, removal aborted) or observes the
// closed flag and creates a fresh session.
func (r *Registry) removeIfEmpty(s *Session) {
	r.mu.Lock()
	s.mu.Lock()
	remove := len(s.participants) == 0 && !s.closed && r.sessions[s.quizID] == s
	var cancel context.CancelFunc
	if remove {
		s.closed = true
		cancel = s.cancelSweep
		delete(r.sessions, s.quizID)
	}
	s.mu.Unlock()
	r.mu.Unlock()

	if !remove {
		return
	}
	if cancel != nil {
		cancel()
	}
	r.metrics.ActiveSessions.Dec()
	r.logger.Info().Str("quiz_id", s.quizID).Msg("session destroyed")
}

func (r *Registry) broadcast(quizID, msgType string, payload interface{}) {
	if err := r.hub.BroadcastToRoom(quizID, ws.NewMessage(msgType, payload)); err != nil {
		r.logger.Warn().Err(err).Str("quiz_id", quizID).Str("type", msgType).Msg("room broadcast failed")
	}
}
