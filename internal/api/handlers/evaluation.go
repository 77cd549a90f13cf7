package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/oraclestake/arbiter/internal/api/middleware"
	"github.com/oraclestake/arbiter/internal/domain"
	"github.com/oraclestake/arbiter/internal/service"
)

type EvaluationHandler struct {
	svc *service.EvaluationService
}

func NewEvaluationHandler(svc *service.EvaluationService) *EvaluationHandler {
	return &EvaluationHandler{svc: svc}
}

type submitEvaluationRequest struct {
	IntentID        int64           `json:"intent_id"`
	Answer          bool            `json:"answer"`
	Confidence      float64         `json:"confidence"`
	Sources         []domain.Source `json:"sources"`
	ExecutionTimeMs int64           `json:"execution_time_ms"`
	Stake           int64           `json:"stake"`
}

func (h *EvaluationHandler) Submit(w http.ResponseWriter, r *http.Request) {
	account := middleware.AccountFromContext(r.Context())
	if account == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req submitEvaluationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	eval, err := h.svc.Submit(r.Context(), req.IntentID, account.ID, req.Answer,
		req.Confidence, req.Sources, req.ExecutionTimeMs, req.Stake)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrStakeTooLow),
			errors.Is(err, service.ErrConfidenceOutOfRange),
			errors.Is(err, service.ErrExecutionTimeInvalid),
			errors.Is(err, domain.ErrNoSources),
			errors.Is(err, domain.ErrTooManySources),
			errors.Is(err, domain.ErrSourceTitleEmpty),
			errors.Is(err, domain.ErrSourceURLTooLong):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrInsufficientBalance):
			writeError(w, http.StatusPaymentRequired, err.Error())
		case errors.Is(err, service.ErrSolverNotRegistered):
			writeError(w, http.StatusForbidden, err.Error())
		case errors.Is(err, service.ErrIntentNotFound):
			writeError(w, http.StatusNotFound, "intent not found")
		case errors.Is(err, service.ErrIntentNotPending),
			errors.Is(err, service.ErrIntentExpired):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to submit evaluation")
		}
		return
	}

	writeJSON(w, http.StatusCreated, eval)
}

func (h *EvaluationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid evaluation id")
		return
	}

	eval, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrEvaluationNotFound) {
			writeError(w, http.StatusNotFound, "evaluation not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load evaluation")
		return
	}
	writeJSON(w, http.StatusOK, eval)
}

func (h *EvaluationHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid evaluation id")
		return
	}

	reward, err := h.svc.Finalize(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEvaluationNotFound),
			errors.Is(err, service.ErrIntentNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrEvaluationNotOpen),
			errors.Is(err, service.ErrAlreadyFinalized),
			errors.Is(err, service.ErrChallengeWindowOpen):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to finalize evaluation")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"evaluation_id": id,
		"reward":        reward,
	})
}
