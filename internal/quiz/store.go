package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a quiz id is unknown to the store.
var ErrNotFound = errors.New("quiz not found")

// Store resolves quiz definitions for the session engine.
type Store interface {
	Get(ctx context.Context, quizID string) (*Definition, error)
}

// PostgresStore loads quiz definitions from the quiz-management schema.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed quiz store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

var _ Store = (*PostgresStore)(nil)

// Get fetches a quiz definition and its ordered questions.
func (s *PostgresStore) Get(ctx context.Context, quizID string) (*Definition, error) {
	def := &Definition{ID: quizID}

	err := s.pool.QueryRow(ctx,
		`SELECT title, time_limit_minutes, passing_score FROM quizzes WHERE id = $1`,
		quizID,
	).Scan(&def.Title, &def.TimeLimitMinutes, &def.PassingScore)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query quiz %s: %w", quizID, err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, type, text, points, choices, code_template, test_cases
		 FROM questions WHERE quiz_id = $1 ORDER BY position`,
		quizID,
	)
	if err != nil {
		return nil, fmt.Errorf("query questions for quiz %s: %w", quizID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			q            Question
			choicesJSON  []byte
			codeTemplate *string
			testsJSON    []byte
		)
		if err := rows.Scan(&q.ID, &q.Type, &q.Text, &q.Points, &choicesJSON, &codeTemplate, &testsJSON); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		if len(choicesJSON) > 0 {
			if err := json.Unmarshal(choicesJSON, &q.Choices); err != nil {
				return nil, fmt.Errorf("decode choices for question %s: %w", q.ID, err)
			}
		}
		if codeTemplate != nil {
			q.CodeTemplate = *codeTemplate
		}
		if len(testsJSON) > 0 {
			if err := json.Unmarshal(testsJSON, &q.TestCases); err != nil {
				return nil, fmt.Errorf("decode test cases for question %s: %w", q.ID, err)
			}
		}
		def.Questions = append(def.Questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questions: %w", err)
	}

	return def, nil
}
