package api

import (
	"net/http"

	"github.com/mhessel/penaltypot/internal/ledger"
)

type startSessionRequest struct {
	MemberIDs []string `json:"member_ids"`
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	session, err := s.sessions.Start(r.Context(), r.PathValue("clubID"), req.MemberIDs)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.sessions.List(r.Context(), r.PathValue("clubID"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if sessions == nil {
		sessions = []ledger.Session{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.sessions.Get(r.Context(), r.PathValue("sessionID"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

type addMemberRequest struct {
	MemberID string `json:"member_id"`
}

func (s *Server) handleAddSessionMember(w http.ResponseWriter, r *http.Request) {
	var req addMemberRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	session, err := s.sessions.AddMember(r.Context(), r.PathValue("sessionID"), req.MemberID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.sessions.End(r.Context(), r.PathValue("sessionID"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}
