package app

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/mhessel/penaltypot/internal/event"
	"github.com/mhessel/penaltypot/internal/ledger"
	"github.com/mhessel/penaltypot/internal/store"
)

// VerifyStore defines the store operations VerifyService needs.
type VerifyStore interface {
	GetSession(ctx context.Context, sessionID string) (*ledger.Session, error)
	ListPenalties(ctx context.Context, clubID string, activeOnly bool) ([]ledger.Penalty, error)
	ListMembers(ctx context.Context, clubID string) ([]ledger.Member, error)
	ListSessionEntries(ctx context.Context, sessionID string) ([]event.Entry, error)
	AppendEntry(ctx context.Context, e *event.Entry) error
}

// VerifyResult is the outcome of one verification run.
type VerifyResult struct {
	SessionID  string              `json:"session_id"`
	OK         bool                `json:"ok"`
	Checks     []event.MemberCheck `json:"checks"`
	Skipped    []string            `json:"skipped,omitempty"`
	VerifiedAt time.Time           `json:"verified_at"`
	EntryID    int64               `json:"entry_id"`
}

// VerifyService certifies that a session's stored balance snapshot equals
// a from-scratch replay of its log. Every run appends its full report to
// the log, so verification itself is part of the auditable history.
type VerifyService struct {
	Store     VerifyStore
	Publisher EntryPublisher
	Now       func() time.Time
}

func (s *VerifyService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Verify recomputes a session's balances and diffs them against the
// stored snapshot. Only a missing session is a hard failure; defective
// entries and mismatches are part of the report, never an abort.
func (s *VerifyService) Verify(ctx context.Context, clubID, sessionID string) (*VerifyResult, error) {
	session, err := s.Store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.ClubID != clubID {
		return nil, fmt.Errorf("session %s in club %s: %w", sessionID, clubID, store.ErrNotFound)
	}

	penalties, err := s.Store.ListPenalties(ctx, clubID, true)
	if err != nil {
		return nil, err
	}
	members, err := s.Store.ListMembers(ctx, clubID)
	if err != nil {
		return nil, err
	}
	entries, err := s.Store.ListSessionEntries(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	names := make(map[string]string, len(members))
	for _, m := range members {
		names[m.ID] = m.Name
	}

	rules := ledger.NewRuleSet(penalties)
	stored := session.StoredBalances()
	recomputed := ledger.Replay(entries, rules, session.MemberIDs())

	// Entries the replay ignored go into the report verbatim. A dangling
	// or malformed entry is a finding, not a failure.
	var skipped []string
	for i := range entries {
		e := &entries[i]
		if e.Kind != event.KindPenaltyCommitted && e.Kind != event.KindPenaltyRevoked {
			continue
		}
		switch {
		case e.MemberID == nil || e.PenaltyID == nil:
			skipped = append(skipped, fmt.Sprintf("entry %d: missing member or penalty reference", e.ID))
		default:
			if _, ok := rules[*e.PenaltyID]; !ok {
				skipped = append(skipped, fmt.Sprintf("entry %d: penalty %s not in the active rule set", e.ID, *e.PenaltyID))
			}
		}
	}

	result := &VerifyResult{
		SessionID:  sessionID,
		OK:         true,
		Skipped:    skipped,
		VerifiedAt: s.now(),
	}
	for _, memberID := range sortedKeys(stored) {
		name, ok := names[memberID]
		if !ok {
			name = memberID // roster gap; report with the raw id
		}
		check := event.MemberCheck{
			MemberID:   memberID,
			Name:       name,
			Stored:     stored[memberID],
			Recomputed: recomputed[memberID],
			Match:      ledger.WithinTolerance(stored[memberID], recomputed[memberID]),
		}
		if !check.Match {
			result.OK = false
		}
		result.Checks = append(result.Checks, check)
	}

	payload, err := json.Marshal(event.VerificationPayload{OK: result.OK, Checks: result.Checks, Skipped: result.Skipped})
	if err != nil {
		return nil, fmt.Errorf("marshal verification payload: %w", err)
	}

	// Append the outcome. Allowed even on finished sessions; it carries no
	// balance effect under replay.
	e := &event.Entry{
		SessionID:   sessionID,
		ClubID:      clubID,
		Ts:          result.VerifiedAt,
		Kind:        event.KindVerificationRun,
		PayloadJSON: payload,
		InsertedAt:  s.now(),
	}
	if err := s.Store.AppendEntry(ctx, e); err != nil {
		return nil, err
	}
	result.EntryID = e.ID

	if s.Publisher != nil {
		s.Publisher.Publish(e)
	}

	return result, nil
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
