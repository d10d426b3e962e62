package securechannel

import (
	"crypto/sha256"
	"encoding/json"
)

// Canonical digests for signed protocol messages. Field order is fixed by
// the struct definitions so both ends reproduce the same bytes.

type submissionPayload struct {
	QuizID     string          `json:"quiz_id"`
	QuestionID string          `json:"question_id"`
	Answer     json.RawMessage `json:"answer"`
}

// SubmissionDigest computes the digest a submit_answer signature covers.
func SubmissionDigest(quizID, questionID string, answer json.RawMessage) []byte {
	data, _ := json.Marshal(submissionPayload{
		QuizID:     quizID,
		QuestionID: questionID,
		Answer:     answer,
	})
	sum := sha256.Sum256(data)
	return sum[:]
}

type submitQuizPayload struct {
	QuizID string `json:"quiz_id"`
	Action string `json:"action"`
}

// SubmitQuizDigest computes the digest a submit_quiz signature covers.
func SubmitQuizDigest(quizID string) []byte {
	data, _ := json.Marshal(submitQuizPayload{QuizID: quizID, Action: "submit_quiz"})
	sum := sha256.Sum256(data)
	return sum[:]
}

type scorePayload struct {
	QuizID        string  `json:"quiz_id"`
	ParticipantID string  `json:"participant_id"`
	Score         float64 `json:"score"`
}

// ScoreDigest computes the digest the server signs when attesting a score.
func ScoreDigest(quizID, participantID string, score float64) []byte {
	data, _ := json.Marshal(scorePayload{
		QuizID:        quizID,
		ParticipantID: participantID,
		Score:         score,
	})
	sum := sha256.Sum256(data)
	return sum[:]
}
