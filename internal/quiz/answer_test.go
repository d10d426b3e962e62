package quiz

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeAnswerByQuestionType(t *testing.T) {
	a, err := DecodeAnswer(TypeSingleChoice, json.RawMessage(`"choice-a"`))
	assert.NoError(t, err)
	assert.Equal(t, ChoiceAnswer{ChoiceID: "choice-a"}, a)

	a, err = DecodeAnswer(TypeMultipleChoice, json.RawMessage(`["a","c"]`))
	assert.NoError(t, err)
	assert.Equal(t, ChoiceSetAnswer{ChoiceIDs: []string{"a", "c"}}, a)

	a, err = DecodeAnswer(TypeTrueFalse, json.RawMessage(`true`))
	assert.NoError(t, err)
	assert.Equal(t, BoolAnswer{Value: true}, a)

	a, err = DecodeAnswer(TypeCode, json.RawMessage(`"return 42"`))
	assert.NoError(t, err)
	assert.Equal(t, CodeAnswer{Source: "return 42"}, a)
}

func TestDecodeAnswerRejectsShapeMismatch(t *testing.T) {
	_, err := DecodeAnswer(TypeSingleChoice, json.RawMessage(`["a"]`))
	assert.Error(t, err)

	_, err = DecodeAnswer(TypeMultipleChoice, json.RawMessage(`"a"`))
	assert.Error(t, err)

	_, err = DecodeAnswer(TypeTrueFalse, json.RawMessage(`"true"`))
	assert.Error(t, err)

	_, err = DecodeAnswer(TypeCode, json.RawMessage(`42`))
	assert.Error(t, err)
}

func TestDecodeAnswerUnknownType(t *testing.T) {
	_, err := DecodeAnswer(QuestionType("essay"), json.RawMessage(`"text"`))
	assert.Error(t, err)
}
