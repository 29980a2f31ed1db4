package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// handleCreateAccount handles POST /api/accounts
func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	account, err := s.accountService.Create(r.Context(), UserIDFromContext(r.Context()), req.Name)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, account)
}

// handleListAccounts handles GET /api/accounts - accounts with addresses and
// current values
func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	valuations, err := s.valuationService.AccountValuations(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, valuations)
}

// handleRenameAccount handles PUT /api/accounts/{id}
func (s *Server) handleRenameAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	userID := UserIDFromContext(r.Context())
	accountID := mux.Vars(r)["id"]

	if err := s.accountService.Rename(r.Context(), userID, accountID, req.Name); err != nil {
		respondServiceError(w, err)
		return
	}

	account, err := s.accountService.Get(r.Context(), userID, accountID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, account)
}

// handleDeleteAccount handles DELETE /api/accounts/{id}
func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := s.accountService.Delete(r.Context(), UserIDFromContext(r.Context()), mux.Vars(r)["id"]); err != nil {
		respondServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleListAccountAddresses handles GET /api/accounts/{id}/addresses
func (s *Server) handleListAccountAddresses(w http.ResponseWriter, r *http.Request) {
	addresses, err := s.addressService.ListByAccount(r.Context(), UserIDFromContext(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, addresses)
}
