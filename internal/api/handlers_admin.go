package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// handleListUsers handles GET /api/admin/users
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.adminService.ListUsers(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, users)
}

// handleToggleAdmin handles POST /api/admin/users/{id}/toggle-admin
func (s *Server) handleToggleAdmin(w http.ResponseWriter, r *http.Request) {
	user, err := s.adminService.ToggleAdmin(r.Context(), UserIDFromContext(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, user)
}

// handleGenerateInvite handles POST /api/admin/invites
func (s *Server) handleGenerateInvite(w http.ResponseWriter, r *http.Request) {
	code, err := s.authService.GenerateInviteCode(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, code)
}

// handleListInvites handles GET /api/admin/invites
func (s *Server) handleListInvites(w http.ResponseWriter, r *http.Request) {
	codes, err := s.authService.ListInviteCodes(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, codes)
}

// handleRevokeInvite handles DELETE /api/admin/invites/{id}
func (s *Server) handleRevokeInvite(w http.ResponseWriter, r *http.Request) {
	if err := s.authService.RevokeInviteCode(r.Context(), mux.Vars(r)["id"]); err != nil {
		respondServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
