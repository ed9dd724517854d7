package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/mcdev12/leaguedraft/go/internal/draft/engine"
	"github.com/rs/zerolog/log"
)

// StateProvider supplies the snapshot sent to a client when it connects.
type StateProvider interface {
	GetState(ctx context.Context, sessionID string) (*engine.SessionState, error)
}

// WebSocketHandler handles WebSocket upgrade requests for draft sessions
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	state             StateProvider
}

// NewWebSocketHandler creates a new WebSocket handler. state may be nil, in
// which case no session check or snapshot happens on connect.
func NewWebSocketHandler(cm *ConnectionManager, state StateProvider) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		state:             state,
	}
}

// HandleSessionConnection upgrades /ws/draft?session_id=... requests
func (h *WebSocketHandler) HandleSessionConnection(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		http.Error(w, "session_id is required", http.StatusBadRequest)
		return
	}

	var greeting *SessionEvent
	if h.state != nil {
		state, err := h.state.GetState(r.Context(), sessionID)
		switch {
		case errors.Is(err, engine.ErrSessionNotFound):
			http.Error(w, "draft session not found", http.StatusNotFound)
			return
		case err != nil:
			log.Error().Err(err).Str("session_id", sessionID).Msg("failed to load session for WebSocket")
			http.Error(w, "failed to load session", http.StatusServiceUnavailable)
			return
		}
		data, err := json.Marshal(state)
		if err != nil {
			http.Error(w, "failed to encode session", http.StatusInternalServerError)
			return
		}
		greeting = &SessionEvent{
			SessionID: sessionID,
			Type:      EventTypeSessionSnapshot,
			Timestamp: time.Now().UTC(),
			Data:      data,
		}
	}

	// The upgrader has already written an HTTP error on failure.
	if err := h.connectionManager.UpgradeConnection(w, r, sessionID, greeting); err != nil {
		log.Error().
			Err(err).
			Str("session_id", sessionID).
			Msg("failed to upgrade WebSocket connection")
	}
}

// HandleConnectionStats returns statistics about active connections
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.connectionManager.Stats()); err != nil {
		log.Error().Err(err).Msg("failed to encode connection stats")
	}
}
