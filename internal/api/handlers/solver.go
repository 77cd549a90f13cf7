package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/oraclestake/arbiter/internal/api/middleware"
	"github.com/oraclestake/arbiter/internal/service"
)

type SolverHandler struct {
	svc *service.ReputationService
}

func NewSolverHandler(svc *service.ReputationService) *SolverHandler {
	return &SolverHandler{svc: svc}
}

type registerSolverRequest struct {
	Stake           int64    `json:"stake"`
	Specializations []string `json:"specializations,omitempty"`
}

func (h *SolverHandler) Register(w http.ResponseWriter, r *http.Request) {
	account := middleware.AccountFromContext(r.Context())
	if account == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req registerSolverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	solver, err := h.svc.Register(r.Context(), account.ID, req.Stake, req.Specializations)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrStakeTooLow):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrInsufficientBalance):
			writeError(w, http.StatusPaymentRequired, err.Error())
		case errors.Is(err, service.ErrSolverExists):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to register solver")
		}
		return
	}

	writeJSON(w, http.StatusCreated, solver)
}

func (h *SolverHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid solver id")
		return
	}

	solver, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrSolverNotRegistered) {
			writeError(w, http.StatusNotFound, "solver not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load solver")
		return
	}
	writeJSON(w, http.StatusOK, solver)
}

// Metrics returns the solver's performance counters plus its composite
// performance score.
func (h *SolverHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid solver id")
		return
	}

	solver, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrSolverNotRegistered) {
			writeError(w, http.StatusNotFound, "solver not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load solver")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"solver_id":         solver.ID,
		"reputation_score":  solver.ReputationScore,
		"performance_score": service.PerformanceScore(solver),
		"metrics":           solver.Metrics,
	})
}

func (h *SolverHandler) Top(w http.ResponseWriter, r *http.Request) {
	ranked, err := h.svc.TopPerformers(r.Context(), queryInt(r, "limit"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to rank solvers")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"solvers": ranked})
}
