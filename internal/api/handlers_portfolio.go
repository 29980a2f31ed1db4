package api

import (
	"net/http"
	"time"

	"github.com/cryptotracker/internal/types"
)

const portfolioDateLayout = "2006-01-02"

// handlePortfolio handles GET /api/portfolio - the valuation view at the
// latest snapshot, or at ?date=YYYY-MM-DD.
func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	var date *time.Time
	if dateStr := r.URL.Query().Get("date"); dateStr != "" {
		parsed, err := time.ParseInLocation(portfolioDateLayout, dateStr, time.UTC)
		if err != nil {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Date must be in YYYY-MM-DD format", nil)
			return
		}
		if parsed.After(time.Now().UTC()) {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Date cannot be in the future", nil)
			return
		}
		date = &parsed
	}

	portfolio, err := s.valuationService.PortfolioAt(r.Context(), UserIDFromContext(r.Context()), date)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, portfolio)
}

// handleTotalValue handles GET /api/portfolio/value - just the headline number
func (s *Server) handleTotalValue(w http.ResponseWriter, r *http.Request) {
	total, err := s.valuationService.UserTotalValue(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"totalValue": total,
		"currency":   types.ReportingCurrency,
	})
}

// handleStatistics handles GET /api/portfolio/statistics - breakdown by
// wallet type and account
func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.valuationService.Statistics(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, stats)
}

// handleRewards handles GET /api/portfolio/rewards - staking rewards priced
// at their snapshot dates
func (s *Server) handleRewards(w http.ResponseWriter, r *http.Request) {
	rewards, err := s.valuationService.Rewards(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, rewards)
}

// handleStaking handles GET /api/portfolio/staking - per-validator detail
func (s *Server) handleStaking(w http.ResponseWriter, r *http.Request) {
	detail, err := s.valuationService.StakingDetail(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, detail)
}

// handleRefresh handles POST /api/portfolio/refresh - enqueue a snapshot
// collection run. The job-group handle is attached to the caller's session so
// the status endpoint can find it without the client holding any state.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	groupID, err := s.queue.Enqueue(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		s.logger.WithError(err).Error("failed to enqueue snapshot job")
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "An internal error occurred", nil)
		return
	}

	if err := s.sessions.SetJobGroup(r.Context(), SessionTokenFromContext(r.Context()), groupID); err != nil {
		s.logger.WithError(err).Error("failed to attach job group to session")
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "An internal error occurred", nil)
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{
		"status":  string(types.JobPending),
		"groupId": groupID,
	})
}

// handleRefreshStatus handles GET /api/portfolio/refresh/status - poll the
// pending refresh. A session with no pending refresh reports complete.
func (s *Server) handleRefreshStatus(w http.ResponseWriter, r *http.Request) {
	groupID, err := s.sessions.GetJobGroup(r.Context(), SessionTokenFromContext(r.Context()))
	if err != nil {
		s.logger.WithError(err).Error("failed to read job group from session")
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "An internal error occurred", nil)
		return
	}

	if groupID == "" {
		respondJSON(w, http.StatusOK, map[string]string{"status": string(types.JobComplete)})
		return
	}

	status, err := s.queue.Status(r.Context(), groupID)
	if err != nil {
		s.logger.WithError(err).Error("failed to read job group status")
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "An internal error occurred", nil)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status":  string(status),
		"groupId": groupID,
	})
}
