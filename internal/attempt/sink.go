package attempt

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Reason an attempt ended.
type Reason string

const (
	ReasonSubmitted Reason = "submitted"
	ReasonTimeout   Reason = "timeout"
)

// Result is what the engine reports to the attempt-persistence collaborator
// when a participant completes a quiz.
type Result struct {
	QuizID        string    `json:"quiz_id"`
	ParticipantID uuid.UUID `json:"participant_id"`
	Score         float64   `json:"score"`
	Passed        bool      `json:"passed"`
	EarnedPoints  int       `json:"earned_points"`
	TotalPoints   int       `json:"total_points"`
	AnswerCount   int       `json:"answer_count"`
	Reason        Reason    `json:"reason"`
	StartedAt     time.Time `json:"started_at"`
	CompletedAt   time.Time `json:"completed_at"`
}

// Sink records completed attempts.
type Sink interface {
	Record(ctx context.Context, result Result) error
}

// PostgresSink persists attempts to the quiz_attempts table.
type PostgresSink struct {
	pool *pgxpool.Pool
}

func NewPostgresSink(pool *pgxpool.Pool) *PostgresSink {
	return &PostgresSink{pool: pool}
}

var _ Sink = (*PostgresSink)(nil)

// Record inserts one attempt row.
func (s *PostgresSink) Record(ctx context.Context, result Result) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO quiz_attempts
		 (quiz_id, participant_id, score, passed, earned_points, total_points, answer_count, reason, started_at, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		result.QuizID, result.ParticipantID, result.Score, result.Passed,
		result.EarnedPoints, result.TotalPoints, result.AnswerCount,
		string(result.Reason), result.StartedAt, result.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}
