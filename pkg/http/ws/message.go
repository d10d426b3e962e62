package ws

import "encoding/json"

// MessageType constants for the WebSocket protocol.
const (
	// Client -> Server
	TypeHandshakeExchange = "handshake_exchange"
	TypeJoin              = "join"
	TypeSubmitAnswer      = "submit_answer"
	TypeSubmitQuiz        = "submit_quiz"
	TypeHeartbeat         = "heartbeat"
	TypeLeave             = "leave"

	// Server -> Client
	TypeHandshakeInit     = "handshake_init"
	TypeHandshakeComplete = "handshake_complete"
	TypeJoined            = "joined"
	TypeAnswerAck         = "answer_ack"
	TypeHeartbeatAck      = "heartbeat_ack"
	TypeParticipantJoined = "participant_joined"
	TypeParticipantLeft   = "participant_left"
	TypeQuizCompleted     = "quiz_completed"
	TypeError             = "error"
)

// Message wraps all WebSocket payloads with type and optional request ID.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	RequestID string          `json:"request_id,omitempty"`
}

// Client Messages (incoming)

// HandshakeExchangePayload carries the client's encapsulation public key.
// The server treats it as opaque bytes beyond length validation.
type HandshakeExchangePayload struct {
	ClientPublicKey []byte `json:"client_public_key"`
}

type JoinPayload struct {
	QuizID string `json:"quiz_id"`
}

// SubmitAnswerPayload carries one answer plus the HMAC tag over the canonical
// digest of (quiz_id, question_id, answer) under the channel MAC key.
type SubmitAnswerPayload struct {
	QuizID     string          `json:"quiz_id"`
	QuestionID string          `json:"question_id"`
	Answer     json.RawMessage `json:"answer"`
	Signature  []byte          `json:"signature"`
}

type SubmitQuizPayload struct {
	QuizID    string `json:"quiz_id"`
	Signature []byte `json:"signature"`
}

type HeartbeatPayload struct {
	QuizID string `json:"quiz_id"`
}

type LeavePayload struct {
	QuizID string `json:"quiz_id"`
}

// Server Messages (outgoing)

// HandshakeInitPayload advertises the server's per-connection key material.
type HandshakeInitPayload struct {
	ServerPublicKey []byte `json:"server_public_key"`
	VerifyKey       []byte `json:"verify_key"`
}

// HandshakeCompletePayload delivers the encapsulated secret and the server's
// signature over its SHA-256 digest.
type HandshakeCompletePayload struct {
	Ciphertext      []byte `json:"ciphertext"`
	DigestSignature []byte `json:"digest_signature"`
}

type JoinedPayload struct {
	Status           string  `json:"status"`
	QuizID           string  `json:"quiz_id"`
	ParticipantCount int     `json:"participant_count"`
	TimeRemaining    float64 `json:"time_remaining"`
}

type AnswerAckPayload struct {
	Status         string   `json:"status"`
	QuestionID     string   `json:"question_id"`
	IsComplete     bool     `json:"is_complete"`
	Score          *float64 `json:"score,omitempty"`
	Passed         *bool    `json:"passed,omitempty"`
	ScoreSignature []byte   `json:"score_signature,omitempty"`
}

type HeartbeatAckPayload struct {
	Status        string  `json:"status"`
	TimeRemaining float64 `json:"time_remaining"`
}

type ParticipantJoinedPayload struct {
	QuizID string `json:"quiz_id"`
	Count  int    `json:"count"`
}

type ParticipantLeftPayload struct {
	QuizID string `json:"quiz_id"`
	Count  int    `json:"count"`
}

type QuizCompletedPayload struct {
	QuizID         string  `json:"quiz_id"`
	Score          float64 `json:"score"`
	Passed         bool    `json:"passed"`
	Reason         string  `json:"reason"`
	ScoreSignature []byte  `json:"score_signature,omitempty"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewMessage marshals a payload into a typed Message. Marshal errors are
// impossible for the payload structs above, so they are swallowed.
func NewMessage(msgType string, payload interface{}) Message {
	raw, _ := json.Marshal(payload)
	return Message{Type: msgType, Payload: raw}
}
