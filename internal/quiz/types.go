package quiz

import "time"

// QuestionType enumerates the supported question kinds.
type QuestionType string

const (
	TypeSingleChoice   QuestionType = "single_choice"
	TypeMultipleChoice QuestionType = "multiple_choice"
	TypeTrueFalse      QuestionType = "true_false"
	TypeCode           QuestionType = "code"
)

// Choice is one selectable option of a choice question.
type Choice struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Correct bool   `json:"is_correct"`
}

// CodeTestCase is one test a code answer must pass. Hidden cases are never
// sent to clients but still count.
type CodeTestCase struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
	Hidden         bool   `json:"is_hidden"`
}

// Question is a single scored item of a quiz.
type Question struct {
	ID           string         `json:"id"`
	Type         QuestionType   `json:"type"`
	Text         string         `json:"text"`
	Points       int            `json:"points"`
	Choices      []Choice       `json:"choices,omitempty"`
	CodeTemplate string         `json:"code_template,omitempty"`
	TestCases    []CodeTestCase `json:"test_cases,omitempty"`
}

// Definition is the immutable question set and scoring configuration for a
// quiz, owned by the external quiz-management collaborator. The engine never
// mutates it.
type Definition struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Questions        []Question `json:"questions"`
	TimeLimitMinutes int        `json:"time_limit"`
	PassingScore     float64    `json:"passing_score"`
}

// TimeLimit returns the attempt duration for this quiz.
func (d *Definition) TimeLimit() time.Duration {
	return time.Duration(d.TimeLimitMinutes) * time.Minute
}

// Question looks up a question by id.
func (d *Definition) Question(id string) (*Question, bool) {
	for i := range d.Questions {
		if d.Questions[i].ID == id {
			return &d.Questions[i], true
		}
	}
	return nil, false
}

// CorrectChoices returns the ids of the choices marked correct.
func (q *Question) CorrectChoices() []string {
	var ids []string
	for _, c := range q.Choices {
		if c.Correct {
			ids = append(ids, c.ID)
		}
	}
	return ids
}
