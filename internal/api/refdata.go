package api

import (
	"net/http"

	"github.com/mhessel/penaltypot/internal/ledger"
)

type createClubRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCreateClub(w http.ResponseWriter, r *http.Request) {
	var req createClubRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	club, err := s.ref.CreateClub(r.Context(), req.Name)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, club)
}

func (s *Server) handleListClubs(w http.ResponseWriter, r *http.Request) {
	clubs, err := s.ref.ListClubs(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if clubs == nil {
		clubs = []ledger.Club{}
	}
	writeJSON(w, http.StatusOK, clubs)
}

type createMemberRequest struct {
	Name  string `json:"name"`
	Guest bool   `json:"guest"`
}

func (s *Server) handleCreateMember(w http.ResponseWriter, r *http.Request) {
	var req createMemberRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	member, err := s.ref.CreateMember(r.Context(), r.PathValue("clubID"), req.Name, req.Guest)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, member)
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := s.ref.ListMembers(r.Context(), r.PathValue("clubID"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if members == nil {
		members = []ledger.Member{}
	}
	writeJSON(w, http.StatusOK, members)
}

type createPenaltyRequest struct {
	Name        string  `json:"name"`
	SelfAmount  float64 `json:"self_amount"`
	OtherAmount float64 `json:"other_amount"`
	Affect      string  `json:"affect"`
}

func (s *Server) handleCreatePenalty(w http.ResponseWriter, r *http.Request) {
	var req createPenaltyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	penalty, err := s.ref.CreatePenalty(r.Context(), ledger.Penalty{
		ClubID:      r.PathValue("clubID"),
		Name:        req.Name,
		SelfAmount:  req.SelfAmount,
		OtherAmount: req.OtherAmount,
		Affect:      ledger.AffectMode(req.Affect),
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, penalty)
}

func (s *Server) handleListPenalties(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	penalties, err := s.ref.ListPenalties(r.Context(), r.PathValue("clubID"), activeOnly)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if penalties == nil {
		penalties = []ledger.Penalty{}
	}
	writeJSON(w, http.StatusOK, penalties)
}

func (s *Server) handleRetirePenalty(w http.ResponseWriter, r *http.Request) {
	if err := s.ref.RetirePenalty(r.Context(), r.PathValue("penaltyID")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
