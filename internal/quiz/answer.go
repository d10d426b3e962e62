package quiz

import (
	"encoding/json"
	"fmt"
)

// Answer is the tagged union over the four question types. Each question type
// has exactly one answer shape, resolved by the question's declared type at
// decode time.
type Answer interface {
	isAnswer()
}

// ChoiceAnswer answers a single-choice question with one choice id.
type ChoiceAnswer struct {
	ChoiceID string
}

// ChoiceSetAnswer answers a multiple-choice question with a set of choice ids.
type ChoiceSetAnswer struct {
	ChoiceIDs []string
}

// BoolAnswer answers a true/false question.
type BoolAnswer struct {
	Value bool
}

// CodeAnswer answers a code question with submitted source.
type CodeAnswer struct {
	Source string
}

func (ChoiceAnswer) isAnswer()    {}
func (ChoiceSetAnswer) isAnswer() {}
func (BoolAnswer) isAnswer()      {}
func (CodeAnswer) isAnswer()      {}

// DecodeAnswer parses raw JSON into the answer shape the question type
// declares. A shape mismatch is an error, never a silent coercion.
func DecodeAnswer(qType QuestionType, raw json.RawMessage) (Answer, error) {
	switch qType {
	case TypeSingleChoice:
		var choiceID string
		if err := json.Unmarshal(raw, &choiceID); err != nil {
			return nil, fmt.Errorf("single-choice answer must be a choice id string: %w", err)
		}
		return ChoiceAnswer{ChoiceID: choiceID}, nil

	case TypeMultipleChoice:
		var choiceIDs []string
		if err := json.Unmarshal(raw, &choiceIDs); err != nil {
			return nil, fmt.Errorf("multiple-choice answer must be an array of choice ids: %w", err)
		}
		return ChoiceSetAnswer{ChoiceIDs: choiceIDs}, nil

	case TypeTrueFalse:
		var value bool
		if err := json.Unmarshal(raw, &value); err != nil {
			return nil, fmt.Errorf("true/false answer must be a boolean: %w", err)
		}
		return BoolAnswer{Value: value}, nil

	case TypeCode:
		var source string
		if err := json.Unmarshal(raw, &source); err != nil {
			return nil, fmt.Errorf("code answer must be a source string: %w", err)
		}
		return CodeAnswer{Source: source}, nil

	default:
		return nil, fmt.Errorf("unknown question type %q", qType)
	}
}
