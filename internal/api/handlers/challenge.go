package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/oraclestake/arbiter/internal/api/middleware"
	"github.com/oraclestake/arbiter/internal/domain"
	"github.com/oraclestake/arbiter/internal/service"
)

type ChallengeHandler struct {
	svc *service.DisputeService
}

func NewChallengeHandler(svc *service.DisputeService) *ChallengeHandler {
	return &ChallengeHandler{svc: svc}
}

type submitChallengeRequest struct {
	EvaluationID   int64           `json:"evaluation_id"`
	CounterSources []domain.Source `json:"counter_sources"`
	Stake          int64           `json:"stake"`
}

func (h *ChallengeHandler) Submit(w http.ResponseWriter, r *http.Request) {
	account := middleware.AccountFromContext(r.Context())
	if account == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req submitChallengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	challenge, err := h.svc.SubmitChallenge(r.Context(), req.EvaluationID, account.ID,
		req.CounterSources, req.Stake)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrChallengeStakeTooLow),
			errors.Is(err, domain.ErrNoSources),
			errors.Is(err, domain.ErrTooManySources),
			errors.Is(err, domain.ErrSourceTitleEmpty),
			errors.Is(err, domain.ErrSourceURLTooLong):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrInsufficientBalance):
			writeError(w, http.StatusPaymentRequired, err.Error())
		case errors.Is(err, service.ErrEvaluationNotFound),
			errors.Is(err, service.ErrIntentNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrEvaluationNotOpen),
			errors.Is(err, service.ErrChallengeWindowClosed):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to submit challenge")
		}
		return
	}

	writeJSON(w, http.StatusCreated, challenge)
}

func (h *ChallengeHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid challenge id")
		return
	}

	challenge, err := h.svc.GetChallenge(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrChallengeNotFound) {
			writeError(w, http.StatusNotFound, "challenge not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load challenge")
		return
	}
	writeJSON(w, http.StatusOK, challenge)
}
