package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/learnstream/quiz-engine/internal/attempt"
	"github.com/learnstream/quiz-engine/internal/auth/jwt"
	"github.com/learnstream/quiz-engine/internal/logging"
	"github.com/learnstream/quiz-engine/internal/metrics"
	"github.com/learnstream/quiz-engine/internal/quiz"
	"github.com/learnstream/quiz-engine/internal/quiz/scoring"
	"github.com/learnstream/quiz-engine/internal/securechannel"
	httperrors "github.com/learnstream/quiz-engine/pkg/http/errors"
	ws "github.com/learnstream/quiz-engine/pkg/http/ws"
)

// HandlerOptions tunes per-connection behavior.
type HandlerOptions struct {
	SendQueueSize int
	// HandshakeDeadline closes connections that have not established the
	// secure channel in time. Zero disables the deadline.
	HandshakeDeadline time.Duration
}

// Handler serves one WebSocket connection per participant: secure channel
// handshake first, then join/submit/heartbeat traffic routed to the registry.
type Handler struct {
	registry *Registry
	hub      *ws.Hub
	tokens   *jwt.Manager
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	opts     HandlerOptions

	mu    sync.Mutex
	conns map[uuid.UUID]*connState
}

// connState ties a connection to its secure channel. The channel lives and
// dies with the connection.
type connState struct {
	participantID uuid.UUID
	channel       *securechannel.Channel
	conn          *ws.Connection

	// attempts holds the exact attempt state each join on this connection
	// created, keyed by quiz id. Teardown removes these and only these, so a
	// stale cleanup can never destroy a re-joined participant's fresh attempt.
	// Only the connection's read goroutine touches the map.
	attempts map[string]*participant

	handshakeOver chan struct{}
	overOnce      sync.Once
}

// endHandshakeWindow releases the deadline watcher, on success or teardown.
func (s *connState) endHandshakeWindow() {
	s.overOnce.Do(func() { close(s.handshakeOver) })
}

// NewHandler creates the session WebSocket handler and registers it as the
// registry's completion notifier.
func NewHandler(registry *Registry, hub *ws.Hub, tokens *jwt.Manager, m *metrics.Metrics, opts HandlerOptions, logger zerolog.Logger) *Handler {
	h := &Handler{
		registry: registry,
		hub:      hub,
		tokens:   tokens,
		metrics:  m,
		logger:   logger.With().Str("component", "session_handler").Logger(),
		opts:     opts,
		conns:    make(map[uuid.UUID]*connState),
	}
	registry.SetCompletionNotifier(h)
	return h
}

// HandleConnection processes a new WebSocket connection for an authenticated
// participant. It blocks until the connection is gone.
func (h *Handler) HandleConnection(conn *websocket.Conn, participantID uuid.UUID) {
	channel, err := securechannel.New()
	if err != nil {
		h.logger.Error().Err(err).Msg("secure channel setup failed")
		h.metrics.HandshakeFailures.Inc()
		conn.Close()
		return
	}

	wsConn := ws.NewConnection(conn, h.opts.SendQueueSize, h.logger)
	state := &connState{
		participantID: participantID,
		channel:       channel,
		conn:          wsConn,
		attempts:      make(map[string]*participant),
		handshakeOver: make(chan struct{}),
	}

	h.hub.RegisterConnection(participantID, wsConn)
	h.mu.Lock()
	h.conns[participantID] = state
	h.mu.Unlock()

	go wsConn.WritePump()

	if h.opts.HandshakeDeadline > 0 {
		go func() {
			select {
			case <-state.handshakeOver:
			case <-time.After(h.opts.HandshakeDeadline):
				h.metrics.HandshakeFailures.Inc()
				h.logger.Warn().
					Str("participant_id", participantID.String()).
					Msg("handshake deadline exceeded, closing connection")
				wsConn.Close()
			}
		}()
	}

	serverPub, verifyKey, err := channel.InitKeys()
	if err != nil {
		h.failHandshake(state, err)
	} else {
		wsConn.Send(ws.NewMessage(ws.TypeHandshakeInit, ws.HandshakeInitPayload{
			ServerPublicKey: serverPub,
			VerifyKey:       verifyKey,
		}))
	}

	connLogger := h.logger.With().Str("participant_id", participantID.String()).Logger()
	ctx := logging.IntoContext(context.Background(), connLogger)
	wsConn.ReadPump(func(msg ws.Message) error {
		return h.handleMessage(ctx, state, msg)
	})

	// Cleanup on disconnect. Only tear down our own attempts and our own
	// registration; a newer connection for the same participant may already
	// have replaced both.
	state.endHandshakeWindow()
	for quizID, p := range state.attempts {
		h.registry.disconnectAttempt(quizID, p)
	}
	h.mu.Lock()
	if h.conns[participantID] == state {
		delete(h.conns, participantID)
	}
	h.mu.Unlock()
	if current, ok := h.hub.GetConnection(participantID); ok && current == wsConn {
		h.hub.UnregisterConnection(participantID)
	} else {
		wsConn.Close()
	}
	channel.Wipe()
}

// handleMessage routes one inbound message. Everything except the handshake
// exchange requires an established channel.
func (h *Handler) handleMessage(ctx context.Context, state *connState, msg ws.Message) error {
	if msg.Type == ws.TypeHandshakeExchange {
		return h.handleHandshakeExchange(state, msg.Payload)
	}

	if !state.channel.Established() {
		return h.sendError(state, httperrors.ErrCodeHandshakeRequired, "Secure channel not established")
	}

	switch msg.Type {
	case ws.TypeJoin:
		return h.handleJoin(ctx, state, msg.Payload)
	case ws.TypeSubmitAnswer:
		return h.handleSubmitAnswer(ctx, state, msg.Payload)
	case ws.TypeSubmitQuiz:
		return h.handleSubmitQuiz(ctx, state, msg.Payload)
	case ws.TypeHeartbeat:
		return h.handleHeartbeat(ctx, state, msg.Payload)
	case ws.TypeLeave:
		return h.handleLeave(state, msg.Payload)
	default:
		return h.sendError(state, httperrors.ErrCodeUnknownMessageType, "Unknown message type: "+msg.Type)
	}
}

func (h *Handler) handleHandshakeExchange(state *connState, payload json.RawMessage) error {
	var req ws.HandshakeExchangePayload
	if err := json.Unmarshal(payload, &req); err != nil {
		h.failHandshake(state, err)
		return nil
	}

	ciphertext, digestSig, err := state.channel.Establish(req.ClientPublicKey)
	if err != nil {
		h.failHandshake(state, err)
		return nil
	}

	state.endHandshakeWindow()
	h.logger.Info().Str("participant_id", state.participantID.String()).Msg("secure channel established")
	return state.conn.Send(ws.NewMessage(ws.TypeHandshakeComplete, ws.HandshakeCompletePayload{
		Ciphertext:      ciphertext,
		DigestSignature: digestSig,
	}))
}

// failHandshake rejects the exchange and closes the connection. No partial
// trust is ever granted and the client must reconnect to retry.
func (h *Handler) failHandshake(state *connState, err error) {
	h.metrics.HandshakeFailures.Inc()
	h.logger.Warn().Err(err).
		Str("participant_id", state.participantID.String()).
		Msg("handshake failed, closing connection")
	h.sendError(state, httperrors.ErrCodeHandshakeFailed, "Secure channel handshake failed")
	state.conn.Close()
}

func (h *Handler) handleJoin(ctx context.Context, state *connState, payload json.RawMessage) error {
	var req ws.JoinPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return h.sendError(state, httperrors.ErrCodeInvalidPayload, "Invalid join payload")
	}

	res, err := h.registry.Join(ctx, req.QuizID, state.participantID)
	if err != nil {
		switch {
		case errors.Is(err, quiz.ErrNotFound):
			return h.sendError(state, httperrors.ErrCodeQuizNotFound, "Unknown quiz: "+req.QuizID)
		case errors.Is(err, ErrAttemptCompleted):
			return h.sendError(state, httperrors.ErrCodeAttemptCompleted, "Quiz already completed")
		default:
			joinLogger := logging.FromContext(ctx)
			joinLogger.Error().Err(err).Str("quiz_id", req.QuizID).Msg("join failed")
			return h.sendError(state, httperrors.ErrCodeJoinFailed, "Could not join quiz")
		}
	}
	state.attempts[req.QuizID] = res.attempt

	return state.conn.Send(ws.NewMessage(ws.TypeJoined, ws.JoinedPayload{
		Status:           "joined",
		QuizID:           req.QuizID,
		ParticipantCount: res.ParticipantCount,
		TimeRemaining:    res.TimeRemaining,
	}))
}

func (h *Handler) handleSubmitAnswer(ctx context.Context, state *connState, payload json.RawMessage) error {
	var req ws.SubmitAnswerPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return h.sendError(state, httperrors.ErrCodeInvalidPayload, "Invalid submit_answer payload")
	}

	digest := securechannel.SubmissionDigest(req.QuizID, req.QuestionID, req.Answer)
	if err := state.channel.VerifyTag(digest, req.Signature); err != nil {
		// Bad signature is an authentication failure: reject the message and
		// terminate the connection without touching participant state.
		h.sendError(state, httperrors.ErrCodeInvalidSignature, "Invalid answer signature")
		state.conn.Close()
		return nil
	}

	res, err := h.registry.SubmitAnswer(ctx, req.QuizID, state.participantID, req.QuestionID, req.Answer)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotInSession):
			return h.sendError(state, httperrors.ErrCodeNotInSession, "Not in session")
		case errors.Is(err, ErrUnknownQuestion):
			return h.sendError(state, httperrors.ErrCodeQuestionNotFound, "Question does not belong to quiz")
		case errors.Is(err, ErrNotActive):
			return h.sendError(state, httperrors.ErrCodeSubmitFailed, "Attempt is not active")
		default:
			return h.sendError(state, httperrors.ErrCodeInvalidPayload, err.Error())
		}
	}

	ack := ws.AnswerAckPayload{
		Status:     "ok",
		QuestionID: req.QuestionID,
		IsComplete: res.IsComplete || res.AlreadyCompleted,
	}
	if ack.IsComplete {
		score := res.Result.Score
		passed := res.Result.Passed
		ack.Score = &score
		ack.Passed = &passed
		ack.ScoreSignature = state.channel.SignDigest(
			securechannel.ScoreDigest(req.QuizID, state.participantID.String(), score))
	}
	if err := state.conn.Send(ws.NewMessage(ws.TypeAnswerAck, ack)); err != nil {
		return err
	}

	if res.IsComplete {
		h.pushCompleted(state, req.QuizID, res.Result, attempt.ReasonSubmitted)
	}
	return nil
}

func (h *Handler) handleSubmitQuiz(ctx context.Context, state *connState, payload json.RawMessage) error {
	var req ws.SubmitQuizPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return h.sendError(state, httperrors.ErrCodeInvalidPayload, "Invalid submit_quiz payload")
	}

	digest := securechannel.SubmitQuizDigest(req.QuizID)
	if err := state.channel.VerifyTag(digest, req.Signature); err != nil {
		h.sendError(state, httperrors.ErrCodeInvalidSignature, "Invalid submission signature")
		state.conn.Close()
		return nil
	}

	res, err := h.registry.SubmitQuiz(ctx, req.QuizID, state.participantID)
	if err != nil {
		if errors.Is(err, ErrNotInSession) {
			return h.sendError(state, httperrors.ErrCodeNotInSession, "Not in session")
		}
		return h.sendError(state, httperrors.ErrCodeSubmitFailed, "Could not submit quiz")
	}

	// Idempotent: a race loser re-delivers the recorded result.
	h.pushCompleted(state, req.QuizID, res.Result, attempt.ReasonSubmitted)
	return nil
}

func (h *Handler) handleHeartbeat(ctx context.Context, state *connState, payload json.RawMessage) error {
	var req ws.HeartbeatPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return h.sendError(state, httperrors.ErrCodeInvalidPayload, "Invalid heartbeat payload")
	}

	res, err := h.registry.Heartbeat(ctx, req.QuizID, state.participantID)
	if err != nil {
		if errors.Is(err, ErrNotInSession) {
			return h.sendError(state, httperrors.ErrCodeNotInSession, "Not in session")
		}
		return h.sendError(state, httperrors.ErrCodeInternalError, "Heartbeat failed")
	}

	if err := state.conn.Send(ws.NewMessage(ws.TypeHeartbeatAck, ws.HeartbeatAckPayload{
		Status:        "ok",
		TimeRemaining: res.TimeRemaining,
	})); err != nil {
		return err
	}

	if res.CompletedNow {
		h.pushCompleted(state, req.QuizID, res.Result, attempt.ReasonTimeout)
	}
	return nil
}

func (h *Handler) handleLeave(state *connState, payload json.RawMessage) error {
	var req ws.LeavePayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return h.sendError(state, httperrors.ErrCodeInvalidPayload, "Invalid leave payload")
	}

	if p, ok := state.attempts[req.QuizID]; ok {
		delete(state.attempts, req.QuizID)
		h.registry.disconnectAttempt(req.QuizID, p)
	}
	return nil
}

// NotifyCompleted implements CompletionNotifier for sweep-triggered
// completions: the participant is told their quiz ended even though no
// message of theirs was in flight.
func (h *Handler) NotifyCompleted(participantID uuid.UUID, quizID string, result scoring.Result, reason attempt.Reason) {
	h.mu.Lock()
	state, ok := h.conns[participantID]
	h.mu.Unlock()
	if !ok {
		return
	}
	h.pushCompleted(state, quizID, result, reason)
}

func (h *Handler) pushCompleted(state *connState, quizID string, result scoring.Result, reason attempt.Reason) {
	payload := ws.QuizCompletedPayload{
		QuizID: quizID,
		Score:  result.Score,
		Passed: result.Passed,
		Reason: string(reason),
	}
	if state.channel.Established() {
		payload.ScoreSignature = state.channel.SignDigest(
			securechannel.ScoreDigest(quizID, state.participantID.String(), result.Score))
	}
	if err := state.conn.Send(ws.NewMessage(ws.TypeQuizCompleted, payload)); err != nil {
		h.logger.Warn().Err(err).
			Str("participant_id", state.participantID.String()).
			Msg("failed to push quiz_completed")
	}
}

func (h *Handler) sendError(state *connState, code, message string) error {
	h.metrics.RejectedMessages.WithLabelValues(code).Inc()
	return state.conn.Send(ws.NewMessage(ws.TypeError, ws.ErrorPayload{
		Code:    code,
		Message: message,
	}))
}
