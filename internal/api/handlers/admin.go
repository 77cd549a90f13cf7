package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/oraclestake/arbiter/internal/domain"
	"github.com/oraclestake/arbiter/internal/service"
)

// AdminHandler exposes the arbiter-only operations: dispute settlement,
// reward distribution, expiry sweeps, and retention pruning.
type AdminHandler struct {
	disputes   *service.DisputeService
	reputation *service.ReputationService
	sweeper    *service.SweeperService
}

func NewAdminHandler(d *service.DisputeService, rep *service.ReputationService, sw *service.SweeperService) *AdminHandler {
	return &AdminHandler{disputes: d, reputation: rep, sweeper: sw}
}

type settleRequest struct {
	EvaluationID int64  `json:"evaluation_id"`
	ChallengeID  int64  `json:"challenge_id"`
	Winner       string `json:"winner"`
}

func (h *AdminHandler) Settle(w http.ResponseWriter, r *http.Request) {
	var req settleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	winner, err := domain.ParseWinner(req.Winner)
	if err != nil {
		writeError(w, http.StatusBadRequest, "winner must be evaluator, challenger, or tie")
		return
	}

	if err := h.disputes.Settle(r.Context(), req.EvaluationID, req.ChallengeID, winner); err != nil {
		switch {
		case errors.Is(err, service.ErrEvaluationNotFound),
			errors.Is(err, service.ErrChallengeNotFound),
			errors.Is(err, service.ErrIntentNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrChallengeMismatch):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrEvaluationNotChallenged):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to settle dispute")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "settled",
		"winner": winner.String(),
	})
}

type distributeRequest struct {
	Pool int64 `json:"pool"`
}

func (h *AdminHandler) Distribute(w http.ResponseWriter, r *http.Request) {
	var req distributeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Pool <= 0 {
		writeError(w, http.StatusBadRequest, "pool must be positive")
		return
	}

	if err := h.reputation.Distribute(r.Context(), req.Pool); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to distribute rewards")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "distributed"})
}

func (h *AdminHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	expired, err := h.sweeper.SweepExpired(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "sweep failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"expired": expired})
}

type pruneRequest struct {
	RetentionDays int `json:"retention_days"`
	MaxDeletions  int `json:"max_deletions,omitempty"`
}

func (h *AdminHandler) Prune(w http.ResponseWriter, r *http.Request) {
	var req pruneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.RetentionDays <= 0 {
		writeError(w, http.StatusBadRequest, "retention_days must be positive")
		return
	}

	retention := time.Duration(req.RetentionDays) * 24 * time.Hour
	pruned, err := h.sweeper.Prune(r.Context(), retention, req.MaxDeletions)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "prune failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pruned": pruned})
}
