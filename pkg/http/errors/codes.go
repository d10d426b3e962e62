package errors

// Error codes for standardized error responses
const (
	// Authentication errors
	ErrCodeUnauthorized      = "unauthorized"
	ErrCodeInvalidToken      = "invalid_token"
	ErrCodeTokenExpired      = "token_expired"
	ErrCodeHandshakeRequired = "handshake_required"
	ErrCodeHandshakeFailed   = "handshake_failed"
	ErrCodeInvalidSignature  = "invalid_signature"

	// Validation errors
	ErrCodeInvalidPayload     = "invalid_payload"
	ErrCodeUnknownMessageType = "unknown_message_type"

	// Resource errors
	ErrCodeQuizNotFound     = "quiz_not_found"
	ErrCodeQuestionNotFound = "question_not_found"
	ErrCodeNotInSession     = "not_in_session"
	ErrCodeAttemptCompleted = "attempt_completed"

	// Session errors
	ErrCodeJoinFailed   = "join_failed"
	ErrCodeSubmitFailed = "submit_failed"

	// Server errors
	ErrCodeInternalError      = "internal_error"
	ErrCodeServiceUnavailable = "service_unavailable"
)
