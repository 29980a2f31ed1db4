package api

import (
	"net/http"

	"github.com/cryptotracker/internal/service"
	"github.com/gorilla/mux"
)

// handleAddAddress handles POST /api/addresses - register a wallet address
// for tracking
func (s *Server) handleAddAddress(w http.ResponseWriter, r *http.Request) {
	var req service.AddAddressInput
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	address, err := s.addressService.Add(r.Context(), UserIDFromContext(r.Context()), &req)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, address)
}

// handleListAddresses handles GET /api/addresses - addresses with their
// current values
func (s *Server) handleListAddresses(w http.ResponseWriter, r *http.Request) {
	valuations, err := s.valuationService.AddressValuations(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, valuations)
}

// handleGetAddress handles GET /api/addresses/{id} - one address broken down
// into assets, staking, pools, and troves, with its collection errors
func (s *Server) handleGetAddress(w http.ResponseWriter, r *http.Request) {
	detail, err := s.valuationService.AddressDetail(r.Context(), UserIDFromContext(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, detail)
}

// handleUpdateAddress handles PUT /api/addresses/{id}
func (s *Server) handleUpdateAddress(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateAddressInput
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	address, err := s.addressService.Update(r.Context(), UserIDFromContext(r.Context()), mux.Vars(r)["id"], &req)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, address)
}

// handleDeleteAddress handles DELETE /api/addresses/{id}
func (s *Server) handleDeleteAddress(w http.ResponseWriter, r *http.Request) {
	if err := s.addressService.Delete(r.Context(), UserIDFromContext(r.Context()), mux.Vars(r)["id"]); err != nil {
		respondServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
