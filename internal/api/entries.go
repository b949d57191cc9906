package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/mhessel/penaltypot/internal/app"
	"github.com/mhessel/penaltypot/internal/event"
	"github.com/mhessel/penaltypot/internal/store"
)

type appendEntryRequest struct {
	Kind        string   `json:"kind"`
	MemberID    *string  `json:"member_id,omitempty"`
	PenaltyID   *string  `json:"penalty_id,omitempty"`
	Multiplier  *float64 `json:"multiplier,omitempty"`
	TotalAmount *float64 `json:"total_amount,omitempty"`
	Note        *string  `json:"note,omitempty"`
}

// handleAppendEntry handles POST /api/v1/sessions/{sessionID}/entries
func (s *Server) handleAppendEntry(w http.ResponseWriter, r *http.Request) {
	var req appendEntryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	e, err := s.entries.Append(r.Context(), r.PathValue("sessionID"), app.AppendRequest{
		Kind:        event.Kind(req.Kind),
		MemberID:    req.MemberID,
		PenaltyID:   req.PenaltyID,
		Multiplier:  req.Multiplier,
		TotalAmount: req.TotalAmount,
		Note:        req.Note,
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

// entriesResponse is the response for the entry list endpoint.
type entriesResponse struct {
	Items      []event.Entry `json:"items"`
	NextCursor *string       `json:"next_cursor,omitempty"`
}

// handleListEntries handles GET /api/v1/sessions/{sessionID}/entries
func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	filter, err := parseEntriesFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	filter.SessionID = r.PathValue("sessionID")

	result, err := s.entries.Query(r.Context(), filter)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	resp := entriesResponse{
		Items:      result.Items,
		NextCursor: result.NextCursor,
	}
	// Empty array, not null
	if resp.Items == nil {
		resp.Items = []event.Entry{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// parseEntriesFilter parses query parameters into a QueryFilter.
func parseEntriesFilter(r *http.Request) (store.QueryFilter, error) {
	var filter store.QueryFilter
	q := r.URL.Query()

	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, fmt.Errorf("invalid since: %w", err)
		}
		filter.Since = &t
	}

	if v := q.Get("until"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, fmt.Errorf("invalid until: %w", err)
		}
		filter.Until = &t
	}

	if v := q.Get("kind"); v != "" {
		kind := event.Kind(v)
		if !kind.Valid() {
			return filter, fmt.Errorf("invalid kind: %s", v)
		}
		filter.Kind = &kind
	}

	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			return filter, fmt.Errorf("invalid limit: %s", v)
		}
		filter.Limit = limit
	}

	if v := q.Get("cursor"); v != "" {
		filter.Cursor = &v
	}

	return filter, nil
}
