package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/mcdev12/leaguedraft/go/internal/draft/engine"
	"github.com/mcdev12/leaguedraft/go/internal/models"
)

const maxBodyBytes = 64 << 10

// DraftEngine is the engine surface the HTTP handlers need.
type DraftEngine interface {
	GetState(ctx context.Context, sessionID string) (*engine.SessionState, error)
	UpdateSession(ctx context.Context, sessionID string, patch engine.SessionPatch) (*models.DraftSession, error)
	SubmitPick(ctx context.Context, req engine.SubmitPickRequest) (*engine.PickResult, error)
	StartDraft(ctx context.Context, sessionID string) (*models.DraftSession, error)
	RepairSession(ctx context.Context, sessionID string) (*engine.RepairReport, error)
	ListPicks(ctx context.Context, sessionID string) ([]models.DraftPick, error)
}

type Handler struct {
	engine    DraftEngine
	validator *validator.Validate
}

func NewHandler(e DraftEngine) *Handler {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Handler{engine: e, validator: v}
}

type pickRequest struct {
	PlayerID string `json:"playerId" validate:"required,max=128"`
	TeamID   string `json:"teamId" validate:"required,max=128"`
	PickType string `json:"pickType" validate:"omitempty,max=32"`
}

type sessionResponse struct {
	Success bool                 `json:"success"`
	Session *models.DraftSession `json:"session"`
}

type stateResponse struct {
	Success bool `json:"success"`
	*engine.SessionState
}

type pickResponse struct {
	Success bool `json:"success"`
	*engine.PickResult
}

type repairResponse struct {
	Success bool                 `json:"success"`
	Report  *engine.RepairReport `json:"report"`
}

type picksResponse struct {
	Success bool               `json:"success"`
	Picks   []models.DraftPick `json:"picks"`
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	state, err := h.engine.GetState(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stateResponse{Success: true, SessionState: state})
}

func (h *Handler) UpdateSession(w http.ResponseWriter, r *http.Request) {
	var patch engine.SessionPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	session, err := h.engine.UpdateSession(r.Context(), chi.URLParam(r, "sessionID"), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Success: true, Session: session})
}

func (h *Handler) SubmitPick(w http.ResponseWriter, r *http.Request) {
	var req pickRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.validate(r.Context(), req); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.engine.SubmitPick(r.Context(), engine.SubmitPickRequest{
		SessionID: chi.URLParam(r, "sessionID"),
		TeamID:    req.TeamID,
		PlayerID:  req.PlayerID,
		PickType:  req.PickType,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pickResponse{Success: true, PickResult: result})
}

func (h *Handler) StartDraft(w http.ResponseWriter, r *http.Request) {
	session, err := h.engine.StartDraft(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Success: true, Session: session})
}

func (h *Handler) RepairSession(w http.ResponseWriter, r *http.Request) {
	report, err := h.engine.RepairSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, repairResponse{Success: true, Report: report})
}

func (h *Handler) ListPicks(w http.ResponseWriter, r *http.Request) {
	picks, err := h.engine.ListPicks(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, picksResponse{Success: true, Picks: picks})
}

func (h *Handler) validate(ctx context.Context, payload any) error {
	err := h.validator.StructCtx(ctx, payload)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("%w: %s", engine.ErrInvalidRequest, strings.Join(fields, "; "))
	}
	return fmt.Errorf("%w: validation failed: %v", engine.ErrInvalidRequest, err)
}

// decodeJSON reads exactly one JSON object, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: request body is empty", engine.ErrInvalidRequest)
		}
		return fmt.Errorf("%w: malformed body: %v", engine.ErrInvalidRequest, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: body must contain a single JSON object", engine.ErrInvalidRequest)
	}
	return nil
}
