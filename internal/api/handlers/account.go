package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"

	"github.com/oraclestake/arbiter/internal/api/middleware"
	"github.com/oraclestake/arbiter/internal/domain"
)

type AccountHandler struct {
	store domain.AccountStore
}

func NewAccountHandler(store domain.AccountStore) *AccountHandler {
	return &AccountHandler{store: store}
}

type createAccountRequest struct {
	Name string `json:"name"`
	Role string `json:"role,omitempty"`
}

type createAccountResponse struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	APIKey string `json:"api_key"`
}

func (h *AccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	role := domain.RoleUser
	if req.Role != "" {
		role = domain.AccountRole(req.Role)
		if role != domain.RoleUser && role != domain.RoleArbiter {
			writeError(w, http.StatusBadRequest, "invalid role")
			return
		}
	}

	apiKey, err := generateAPIKey()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate API key")
		return
	}

	account := &domain.Account{
		Name:       req.Name,
		APIKeyHash: middleware.HashAPIKey(apiKey),
		Role:       role,
	}

	if err := h.store.Create(r.Context(), account); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create account")
		return
	}

	writeJSON(w, http.StatusCreated, createAccountResponse{
		ID:     account.ID,
		Name:   account.Name,
		Role:   string(account.Role),
		APIKey: apiKey,
	})
}

type depositRequest struct {
	Amount int64 `json:"amount"`
}

// Deposit credits the caller's own balance. Demo-grade funding endpoint;
// a payment processor would sit in front of this in a real deployment.
func (h *AccountHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	account := middleware.AccountFromContext(r.Context())
	if account == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "amount must be positive")
		return
	}

	if err := h.store.Credit(r.Context(), account.ID, req.Amount); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to credit account")
		return
	}

	updated, err := h.store.GetByID(r.Context(), account.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load account")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	account := middleware.AccountFromContext(r.Context())
	if account == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	current, err := h.store.GetByID(r.Context(), account.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load account")
		return
	}
	writeJSON(w, http.StatusOK, current)
}

func generateAPIKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "ak_" + hex.EncodeToString(b), nil
}
