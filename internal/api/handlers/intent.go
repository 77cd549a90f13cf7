package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/oraclestake/arbiter/internal/api/middleware"
	"github.com/oraclestake/arbiter/internal/domain"
	"github.com/oraclestake/arbiter/internal/service"
)

type IntentHandler struct {
	svc *service.IntentService
}

func NewIntentHandler(svc *service.IntentService) *IntentHandler {
	return &IntentHandler{svc: svc}
}

type createIntentRequest struct {
	Question        string `json:"question"`
	DeadlineMinutes int    `json:"deadline_minutes,omitempty"`
	Stake           int64  `json:"stake"`
}

func (h *IntentHandler) Create(w http.ResponseWriter, r *http.Request) {
	account := middleware.AccountFromContext(r.Context())
	if account == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req createIntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	intent, err := h.svc.Create(r.Context(), account.ID, req.Question, req.DeadlineMinutes, req.Stake)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrQuestionEmpty),
			errors.Is(err, service.ErrQuestionTooLong),
			errors.Is(err, service.ErrStakeTooLow):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrInsufficientBalance):
			writeError(w, http.StatusPaymentRequired, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to create intent")
		}
		return
	}

	writeJSON(w, http.StatusCreated, intent)
}

func (h *IntentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid intent id")
		return
	}

	intent, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrIntentNotFound) {
			writeError(w, http.StatusNotFound, "intent not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load intent")
		return
	}
	writeJSON(w, http.StatusOK, intent)
}

func (h *IntentHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit")

	if initiator := queryInt(r, "initiator"); initiator > 0 {
		intents, err := h.svc.ListByInitiator(r.Context(), int64(initiator), limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to list intents")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"intents": intents})
		return
	}

	status := domain.IntentStatus(r.URL.Query().Get("status"))
	if status == "" {
		writeError(w, http.StatusBadRequest, "status or initiator is required")
		return
	}

	intents, err := h.svc.ListByStatus(r.Context(), status, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list intents")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"intents": intents})
}

func (h *IntentHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	intents, err := h.svc.ListByStatus(r.Context(), domain.IntentStatusPending, queryInt(r, "limit"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list intents")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"intents": intents})
}

func (h *IntentHandler) Accept(w http.ResponseWriter, r *http.Request) {
	account := middleware.AccountFromContext(r.Context())
	if account == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, ok := urlID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid intent id")
		return
	}

	if err := h.svc.Accept(r.Context(), id, account.ID); err != nil {
		switch {
		case errors.Is(err, service.ErrIntentNotFound):
			writeError(w, http.StatusNotFound, "intent not found")
		case errors.Is(err, service.ErrSolverNotRegistered):
			writeError(w, http.StatusForbidden, err.Error())
		case errors.Is(err, service.ErrSolverInactive),
			errors.Is(err, service.ErrInsufficientReputation):
			writeError(w, http.StatusForbidden, err.Error())
		case errors.Is(err, service.ErrIntentNotPending),
			errors.Is(err, service.ErrIntentExpired):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to accept intent")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

type completeIntentRequest struct {
	EvaluationID int64 `json:"evaluation_id"`
}

func (h *IntentHandler) Complete(w http.ResponseWriter, r *http.Request) {
	account := middleware.AccountFromContext(r.Context())
	if account == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, ok := urlID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid intent id")
		return
	}

	var req completeIntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.svc.Complete(r.Context(), id, req.EvaluationID, account.ID); err != nil {
		switch {
		case errors.Is(err, service.ErrIntentNotFound),
			errors.Is(err, service.ErrEvaluationNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrWrongSolver):
			writeError(w, http.StatusForbidden, err.Error())
		case errors.Is(err, service.ErrIntentNotInProgress),
			errors.Is(err, service.ErrEvaluationMismatch):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to complete intent")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "completed"})
}
