package api

import (
	"net/http"

	"github.com/cryptotracker/internal/models"
	"github.com/cryptotracker/internal/service"
)

// sessionResponse is the body returned by signup and login
type sessionResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// handleSignup handles POST /api/auth/signup - invite-gated registration
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterInput
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	user, err := s.authService.Register(r.Context(), &req)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	token, err := s.sessions.Create(r.Context(), user.ID)
	if err != nil {
		s.logger.WithError(err).Error("failed to create session after signup")
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "An internal error occurred", nil)
		return
	}

	respondJSON(w, http.StatusCreated, sessionResponse{Token: token, User: user})
}

// handleLogin handles POST /api/auth/login
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	user, err := s.authService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	token, err := s.sessions.Create(r.Context(), user.ID)
	if err != nil {
		s.logger.WithError(err).Error("failed to create session after login")
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "An internal error occurred", nil)
		return
	}

	respondJSON(w, http.StatusOK, sessionResponse{Token: token, User: user})
}

// handleLogout handles POST /api/auth/logout
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := SessionTokenFromContext(r.Context())
	if err := s.sessions.Delete(r.Context(), token); err != nil {
		s.logger.WithError(err).Error("failed to delete session")
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "An internal error occurred", nil)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// handleMe handles GET /api/auth/me
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := s.userReader.GetByID(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, user)
}
