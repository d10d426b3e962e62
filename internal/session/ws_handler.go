package session

import (
	"errors"
	"net/http"

	"github.com/learnstream/quiz-engine/internal/auth/jwt"
	"github.com/learnstream/quiz-engine/internal/server"
	httperrors "github.com/learnstream/quiz-engine/pkg/http/errors"
)

// HandleWebSocket upgrades the HTTP connection and authenticates the
// participant's long-lived credential before any engine traffic flows.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeUnauthorized, "Missing token")
		return
	}

	claims, err := h.tokens.Validate(token)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket token validation failed")
		if errors.Is(err, jwt.ErrExpiredToken) {
			httperrors.RespondUnauthorized(w, httperrors.ErrCodeTokenExpired, "Token expired")
			return
		}
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeInvalidToken, "Invalid token")
		return
	}

	conn, err := server.WSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	h.HandleConnection(conn, claims.ParticipantID)
}
