package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcdev12/leaguedraft/go/internal/draft/engine"
	"github.com/rs/zerolog"
)

type errorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Details   string `json:"details,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrSessionNotFound), errors.Is(err, engine.ErrPlayerNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrVersionConflict):
		return http.StatusConflict
	case errors.Is(err, engine.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	case engine.IsCallerError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	logger := zerolog.Ctx(r.Context())

	resp := errorResponse{Error: err.Error()}
	switch status {
	case http.StatusInternalServerError:
		resp.Error = "internal server error"
		resp.Details = err.Error()
		resp.RequestID = GetRequestID(r.Context())
		logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	case http.StatusServiceUnavailable:
		resp.Error = "draft store unavailable"
		resp.Details = err.Error()
		resp.RequestID = GetRequestID(r.Context())
		logger.Error().Err(err).Str("path", r.URL.Path).Msg("store unavailable")
	default:
		logger.Debug().Err(err).Int("status", status).Msg("request rejected")
	}

	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
