package api

import (
	"net/http"
)

// handleVerify handles POST /api/v1/clubs/{clubID}/sessions/{sessionID}/verify
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	result, err := s.verify.Verify(r.Context(), r.PathValue("clubID"), r.PathValue("sessionID"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleTally handles GET /api/v1/sessions/{sessionID}/tally
func (s *Server) handleTally(w http.ResponseWriter, r *http.Request) {
	tally, err := s.report.Tally(r.Context(), r.PathValue("sessionID"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tally)
}

// handleBalances handles GET /api/v1/sessions/{sessionID}/balances
// The balances are recomputed from the log on every call; the stored
// snapshot is never consulted here.
func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	balances, err := s.report.Balances(r.Context(), r.PathValue("sessionID"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"balances": balances})
}
