package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mhessel/penaltypot/internal/event"
	"github.com/mhessel/penaltypot/internal/store"
)

const (
	// heartbeatInterval is the interval for SSE heartbeat comments.
	heartbeatInterval = 20 * time.Second

	// missedEntriesPageSize is the page size for reconnection replay.
	missedEntriesPageSize = 100

	// missedEntriesMaxPages caps reconnection replay (best-effort).
	missedEntriesMaxPages = 5
)

// handleStream handles GET /api/v1/stream (SSE).
// An optional session_id query parameter narrows the stream to one
// session's entries.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported", nil)
		return
	}

	sessionID := r.URL.Query().Get("session_id")

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	// Last-Event-ID header or query parameter enables reconnection replay.
	lastEventID := r.Header.Get("Last-Event-ID")
	if lastEventID == "" {
		lastEventID = r.URL.Query().Get("last_event_id")
	}
	if lastEventID != "" && sessionID != "" {
		// Invalid cursors and DB errors just skip the replay.
		_ = s.sendMissedEntries(r.Context(), w, flusher, sessionID, lastEventID)
	}

	sub := s.hub.Subscribe()
	defer s.hub.Unsubscribe(sub)

	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	ctx := r.Context()

	for {
		select {
		case e, ok := <-sub.Entries():
			if !ok {
				return
			}
			if sessionID != "" && e.SessionID != sessionID {
				continue
			}
			writeSSEEntry(w, e)
			flusher.Flush()

		case <-ticker.C:
			fmt.Fprintf(w, ":\n\n")
			flusher.Flush()

		case <-ctx.Done():
			return

		case <-sub.Done():
			return
		}
	}
}

// sendMissedEntries replays entries appended after Last-Event-ID on
// reconnect. Best-effort and page-capped.
func (s *Server) sendMissedEntries(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, sessionID, lastEventID string) error {
	cursor := lastEventID
	filter := store.QueryFilter{
		SessionID: sessionID,
		Cursor:    &cursor,
		Limit:     missedEntriesPageSize,
	}

	for page := 0; page < missedEntriesMaxPages; page++ {
		result, err := s.entries.Query(ctx, filter)
		if err != nil {
			if errors.Is(err, store.ErrInvalidCursor) {
				return nil
			}
			return err
		}

		for i := range result.Items {
			writeSSEEntry(w, &result.Items[i])
		}
		flusher.Flush()

		if result.NextCursor == nil {
			break
		}
		filter.Cursor = result.NextCursor
	}

	return nil
}

// writeSSEEntry writes a single entry in SSE format.
// The id field is the composite cursor so clients can resume with
// Last-Event-ID.
func writeSSEEntry(w http.ResponseWriter, e *event.Entry) {
	data, err := json.Marshal(e)
	if err != nil {
		return
	}

	fmt.Fprintf(w, "id: %s\n", store.EncodeCursor(e.Ts, e.ID))
	fmt.Fprintf(w, "event: %s\n", e.Kind)
	fmt.Fprintf(w, "data: %s\n\n", data)
}
