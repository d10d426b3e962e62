package scoring

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/learnstream/quiz-engine/internal/quiz"
)

type stubVerifier struct {
	passed bool
	err    error
	calls  int
}

func (v *stubVerifier) Verify(_ context.Context, _ *quiz.Question, _ quiz.CodeAnswer) (bool, error) {
	v.calls++
	return v.passed, v.err
}

func twoChoiceQuiz() *quiz.Definition {
	return &quiz.Definition{
		ID:               "quiz-1",
		Title:            "Basics",
		TimeLimitMinutes: 10,
		PassingScore:     70,
		Questions: []quiz.Question{
			{
				ID: "q1", Type: quiz.TypeSingleChoice, Points: 10,
				Choices: []quiz.Choice{{ID: "a", Correct: true}, {ID: "b"}},
			},
			{
				ID: "q2", Type: quiz.TypeSingleChoice, Points: 10,
				Choices: []quiz.Choice{{ID: "c"}, {ID: "d", Correct: true}},
			},
		},
	}
}

func TestScoreHalfCorrectFailsPassingScore(t *testing.T) {
	engine := NewEngine(nil)

	res := engine.Score(context.Background(), twoChoiceQuiz(), map[string]quiz.Answer{
		"q1": quiz.ChoiceAnswer{ChoiceID: "a"},
		"q2": quiz.ChoiceAnswer{ChoiceID: "c"},
	})

	assert.Equal(t, 50.0, res.Score)
	assert.False(t, res.Passed)
	assert.Equal(t, 10, res.EarnedPoints)
	assert.Equal(t, 20, res.TotalPoints)
}

func TestScoreAllCorrectPasses(t *testing.T) {
	engine := NewEngine(nil)

	res := engine.Score(context.Background(), twoChoiceQuiz(), map[string]quiz.Answer{
		"q1": quiz.ChoiceAnswer{ChoiceID: "a"},
		"q2": quiz.ChoiceAnswer{ChoiceID: "d"},
	})

	assert.Equal(t, 100.0, res.Score)
	assert.True(t, res.Passed)
}

func TestScoreUnansweredQuestionsEarnZero(t *testing.T) {
	engine := NewEngine(nil)

	// Timeout path: only the first question was answered.
	res := engine.Score(context.Background(), twoChoiceQuiz(), map[string]quiz.Answer{
		"q1": quiz.ChoiceAnswer{ChoiceID: "a"},
	})

	assert.Equal(t, 50.0, res.Score)
	assert.False(t, res.Passed)
}

func TestScoreZeroTotalPointsIsZero(t *testing.T) {
	engine := NewEngine(nil)
	def := &quiz.Definition{ID: "empty", PassingScore: 70}

	res := engine.Score(context.Background(), def, nil)

	assert.Equal(t, 0.0, res.Score)
	assert.False(t, res.Passed)
	assert.Equal(t, 0, res.TotalPoints)
}

func TestScoreTrueFalse(t *testing.T) {
	engine := NewEngine(nil)
	def := &quiz.Definition{
		ID:           "tf",
		PassingScore: 100,
		Questions: []quiz.Question{
			{
				ID: "q1", Type: quiz.TypeTrueFalse, Points: 5,
				Choices: []quiz.Choice{{ID: "true", Correct: true}, {ID: "false"}},
			},
		},
	}

	res := engine.Score(context.Background(), def, map[string]quiz.Answer{
		"q1": quiz.BoolAnswer{Value: true},
	})
	assert.Equal(t, 100.0, res.Score)
	assert.True(t, res.Passed)

	res = engine.Score(context.Background(), def, map[string]quiz.Answer{
		"q1": quiz.BoolAnswer{Value: false},
	})
	assert.Equal(t, 0.0, res.Score)
}

func TestScoreMultipleChoiceExactSet(t *testing.T) {
	engine := NewEngine(nil)
	def := &quiz.Definition{
		ID:           "mc",
		PassingScore: 100,
		Questions: []quiz.Question{
			{
				ID: "q1", Type: quiz.TypeMultipleChoice, Points: 10,
				Choices: []quiz.Choice{
					{ID: "a", Correct: true},
					{ID: "b"},
					{ID: "c", Correct: true},
				},
			},
		},
	}

	score := func(ids ...string) float64 {
		res := engine.Score(context.Background(), def, map[string]quiz.Answer{
			"q1": quiz.ChoiceSetAnswer{ChoiceIDs: ids},
		})
		return res.Score
	}

	assert.Equal(t, 100.0, score("a", "c"))
	assert.Equal(t, 100.0, score("c", "a"), "order must not matter")
	assert.Equal(t, 0.0, score("a"), "missing a correct choice earns nothing")
	assert.Equal(t, 0.0, score("a", "b", "c"), "extra choice earns nothing")
	assert.Equal(t, 0.0, score("a", "a"), "duplicates are not a set")
}

func TestScoreCodeQuestionUsesVerifier(t *testing.T) {
	def := &quiz.Definition{
		ID:           "code",
		PassingScore: 100,
		Questions: []quiz.Question{
			{
				ID: "q1", Type: quiz.TypeCode, Points: 10,
				TestCases: []quiz.CodeTestCase{{Input: "1", ExpectedOutput: "2"}},
			},
		},
	}
	answers := map[string]quiz.Answer{"q1": quiz.CodeAnswer{Source: "print(x+1)"}}

	verifier := &stubVerifier{passed: true}
	res := NewEngine(verifier).Score(context.Background(), def, answers)
	assert.Equal(t, 100.0, res.Score)
	assert.Equal(t, 1, verifier.calls)

	res = NewEngine(&stubVerifier{passed: false}).Score(context.Background(), def, answers)
	assert.Equal(t, 0.0, res.Score)

	res = NewEngine(&stubVerifier{err: errors.New("sandbox down")}).Score(context.Background(), def, answers)
	assert.Equal(t, 0.0, res.Score, "verifier errors never earn points")

	res = NewEngine(nil).Score(context.Background(), def, answers)
	assert.Equal(t, 0.0, res.Score, "no verifier configured")
}

func TestScoreMismatchedAnswerShapeIsIncorrect(t *testing.T) {
	engine := NewEngine(nil)

	res := engine.Score(context.Background(), twoChoiceQuiz(), map[string]quiz.Answer{
		"q1": quiz.BoolAnswer{Value: true},
		"q2": quiz.ChoiceSetAnswer{ChoiceIDs: []string{"d"}},
	})

	assert.Equal(t, 0.0, res.Score)
}
