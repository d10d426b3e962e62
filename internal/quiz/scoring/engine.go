package scoring

import (
	"context"
	"strconv"

	"github.com/learnstream/quiz-engine/internal/quiz"
)

// CodeVerifier runs a code answer against a question's test cases. It is an
// external collaborator (sandboxed execution lives outside the engine).
type CodeVerifier interface {
	Verify(ctx context.Context, question *quiz.Question, answer quiz.CodeAnswer) (bool, error)
}

// Result of scoring one attempt.
type Result struct {
	Score        float64
	Passed       bool
	EarnedPoints int
	TotalPoints  int
}

// Engine computes attempt scores. Scoring is deterministic over
// (definition, answers) and never mutates either.
type Engine struct {
	verifier CodeVerifier
}

// NewEngine creates a scoring engine. verifier may be nil, in which case
// code questions never earn points.
func NewEngine(verifier CodeVerifier) *Engine {
	return &Engine{verifier: verifier}
}

// Score evaluates recorded answers against the quiz definition. Unanswered
// questions earn zero. The returned score is a percentage in [0, 100].
func (e *Engine) Score(ctx context.Context, def *quiz.Definition, answers map[string]quiz.Answer) Result {
	var earned, total int

	for i := range def.Questions {
		q := &def.Questions[i]
		total += q.Points

		answer, ok := answers[q.ID]
		if !ok {
			continue
		}
		if e.isCorrect(ctx, q, answer) {
			earned += q.Points
		}
	}

	var score float64
	if total > 0 {
		score = 100 * float64(earned) / float64(total)
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return Result{
		Score:        score,
		Passed:       score >= def.PassingScore,
		EarnedPoints: earned,
		TotalPoints:  total,
	}
}

// isCorrect checks one answer against the question's correct-answer
// descriptor. An answer whose shape does not match the question type is
// simply incorrect.
func (e *Engine) isCorrect(ctx context.Context, q *quiz.Question, answer quiz.Answer) bool {
	switch q.Type {
	case quiz.TypeSingleChoice:
		a, ok := answer.(quiz.ChoiceAnswer)
		if !ok {
			return false
		}
		for _, c := range q.Choices {
			if c.ID == a.ChoiceID {
				return c.Correct
			}
		}
		return false

	case quiz.TypeTrueFalse:
		a, ok := answer.(quiz.BoolAnswer)
		if !ok {
			return false
		}
		correct := q.CorrectChoices()
		return len(correct) == 1 && correct[0] == strconv.FormatBool(a.Value)

	case quiz.TypeMultipleChoice:
		a, ok := answer.(quiz.ChoiceSetAnswer)
		if !ok {
			return false
		}
		correct := q.CorrectChoices()
		if len(a.ChoiceIDs) != len(correct) {
			return false
		}
		// No partial credit: submitted set must exactly equal the correct set.
		want := make(map[string]bool, len(correct))
		for _, id := range correct {
			want[id] = true
		}
		seen := make(map[string]bool, len(a.ChoiceIDs))
		for _, id := range a.ChoiceIDs {
			if !want[id] || seen[id] {
				return false
			}
			seen[id] = true
		}
		return len(seen) == len(want)

	case quiz.TypeCode:
		a, ok := answer.(quiz.CodeAnswer)
		if !ok || e.verifier == nil {
			return false
		}
		passed, err := e.verifier.Verify(ctx, q, a)
		if err != nil {
			return false
		}
		return passed

	default:
		return false
	}
}
