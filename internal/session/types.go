package session

import (
	"errors"

	"github.com/learnstream/quiz-engine/internal/quiz/scoring"
)

// Status is a participant's lifecycle state within one attempt.
type Status string

const (
	StatusJoining      Status = "joining"
	StatusActive       Status = "active"
	StatusCompleted    Status = "completed"
	StatusDisconnected Status = "disconnected"
)

var (
	// ErrNotInSession means the participant has no state in the session.
	ErrNotInSession = errors.New("participant not in session")
	// ErrAttemptCompleted means the participant already completed this quiz
	// within the session's lifetime; re-join is rejected.
	ErrAttemptCompleted = errors.New("attempt already completed")
	// ErrUnknownQuestion means the question id does not belong to the quiz.
	ErrUnknownQuestion = errors.New("question does not belong to quiz")
	// ErrNotActive means the participant is not in the active state.
	ErrNotActive = errors.New("participant not active")
)

// JoinResult reports a successful join back to the participant.
type JoinResult struct {
	ParticipantCount int
	TimeRemaining    float64 // seconds

	// attempt identifies the state this join created so the connection that
	// made it can tear down exactly that attempt on disconnect.
	attempt *participant
}

// SubmitResult reports the outcome of an answer or quiz submission.
// AlreadyCompleted marks a race loss (timeout won first); it is a no-op
// success and Result carries the winner's score.
type SubmitResult struct {
	IsComplete       bool
	AlreadyCompleted bool
	Result           scoring.Result
}

// HeartbeatResult reports recomputed time-remaining. CompletedNow is set when
// this heartbeat observed an expired deadline and triggered completion.
type HeartbeatResult struct {
	TimeRemaining float64 // seconds
	CompletedNow  bool
	Result        scoring.Result
}
