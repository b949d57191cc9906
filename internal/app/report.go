package app

import (
	"context"

	"github.com/mhessel/penaltypot/internal/event"
	"github.com/mhessel/penaltypot/internal/ledger"
)

// ReportStore defines the store operations ReportService needs.
type ReportStore interface {
	GetSession(ctx context.Context, sessionID string) (*ledger.Session, error)
	ListPenalties(ctx context.Context, clubID string, activeOnly bool) ([]ledger.Penalty, error)
	ListSessionEntries(ctx context.Context, sessionID string) ([]event.Entry, error)
}

// ReportService produces read-only views derived from the log alone:
// the commit tally and replayed balances. Neither consults the stored
// snapshot.
type ReportService struct {
	Store ReportStore
}

// Tally returns the session's commit counts per member per penalty,
// bucketed by multiplier.
func (s *ReportService) Tally(ctx context.Context, sessionID string) (event.TallyPayload, error) {
	session, err := s.Store.GetSession(ctx, sessionID)
	if err != nil {
		return event.TallyPayload{}, err
	}
	entries, err := s.Store.ListSessionEntries(ctx, sessionID)
	if err != nil {
		return event.TallyPayload{}, err
	}
	return ledger.Tally(entries, session.MemberIDs()).Payload(), nil
}

// Balances replays the session's log from scratch and returns the
// recomputed per-member balances.
func (s *ReportService) Balances(ctx context.Context, sessionID string) (ledger.Balances, error) {
	session, err := s.Store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	penalties, err := s.Store.ListPenalties(ctx, session.ClubID, true)
	if err != nil {
		return nil, err
	}
	entries, err := s.Store.ListSessionEntries(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return ledger.Replay(entries, ledger.NewRuleSet(penalties), session.MemberIDs()), nil
}
