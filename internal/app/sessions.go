package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mhessel/penaltypot/internal/event"
	"github.com/mhessel/penaltypot/internal/ledger"
	"github.com/mhessel/penaltypot/internal/store"
)

// SessionStore defines the store operations SessionService needs.
type SessionStore interface {
	GetClub(ctx context.Context, id string) (*ledger.Club, error)
	GetMember(ctx context.Context, id string) (*ledger.Member, error)
	ListPenalties(ctx context.Context, clubID string, activeOnly bool) ([]ledger.Penalty, error)
	CreateSession(ctx context.Context, session *ledger.Session) error
	GetSession(ctx context.Context, sessionID string) (*ledger.Session, error)
	ListClubSessions(ctx context.Context, clubID string) ([]ledger.Session, error)
	AddSessionMember(ctx context.Context, sessionID, memberID string, joinedAt time.Time) error
	EndSession(ctx context.Context, sessionID string, endedAt time.Time) error
	AppendEntry(ctx context.Context, e *event.Entry) error
	ListSessionEntries(ctx context.Context, sessionID string) ([]event.Entry, error)
}

// EntryPublisher receives newly appended entries for live distribution.
// The SSE hub implements it. A nil publisher disables publishing.
type EntryPublisher interface {
	Publish(e *event.Entry)
}

// SessionService manages the session lifecycle. Starting a session seeds
// the log with member_added entries; ending it freezes the session and
// records the closing snapshot entries.
type SessionService struct {
	Store     SessionStore
	Publisher EntryPublisher
	Now       func() time.Time
}

func (s *SessionService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *SessionService) publish(e *event.Entry) {
	if s.Publisher != nil {
		s.Publisher.Publish(e)
	}
}

// Start creates a session for a club with an initial participant set.
// The ambient multiplier starts at 1; each initial participant gets a
// member_added entry at the session start so their join time is on record.
func (s *SessionService) Start(ctx context.Context, clubID string, memberIDs []string) (*ledger.Session, error) {
	if len(memberIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one participant is required", store.ErrInvalidEntry)
	}
	if _, err := s.Store.GetClub(ctx, clubID); err != nil {
		return nil, err
	}
	for _, id := range memberIDs {
		m, err := s.Store.GetMember(ctx, id)
		if err != nil {
			return nil, err
		}
		if m.ClubID != clubID {
			return nil, fmt.Errorf("member %s: %w", id, store.ErrNotFound)
		}
	}

	started := s.now()
	session := &ledger.Session{
		ID:        uuid.NewString(),
		ClubID:    clubID,
		Status:    ledger.SessionActive,
		StartedAt: started,
	}
	for _, id := range memberIDs {
		session.Participants = append(session.Participants, ledger.Participant{
			MemberID: id,
			JoinedAt: started,
		})
	}

	if err := s.Store.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	for _, id := range memberIDs {
		e := &event.Entry{
			SessionID:  session.ID,
			ClubID:     clubID,
			Ts:         started,
			Kind:       event.KindMemberAdded,
			MemberID:   event.StringPtr(id),
			InsertedAt: s.now(),
		}
		if err := s.Store.AppendEntry(ctx, e); err != nil {
			return nil, err
		}
		s.publish(e)
	}

	return session, nil
}

// Get loads a session with its live balance snapshot.
func (s *SessionService) Get(ctx context.Context, sessionID string) (*ledger.Session, error) {
	return s.Store.GetSession(ctx, sessionID)
}

// List returns a club's sessions.
func (s *SessionService) List(ctx context.Context, clubID string) ([]ledger.Session, error) {
	return s.Store.ListClubSessions(ctx, clubID)
}

// AddMember adds a participant to a running session. The member_added
// entry's timestamp becomes the member's join time; commits before it
// never charge them.
func (s *SessionService) AddMember(ctx context.Context, sessionID, memberID string) (*ledger.Session, error) {
	session, err := s.Store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Finished() {
		return nil, fmt.Errorf("session %s: %w", sessionID, store.ErrSessionFinished)
	}
	m, err := s.Store.GetMember(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if m.ClubID != session.ClubID {
		return nil, fmt.Errorf("member %s: %w", memberID, store.ErrNotFound)
	}

	joined := s.now()
	if err := s.Store.AddSessionMember(ctx, sessionID, memberID, joined); err != nil {
		return nil, err
	}

	e := &event.Entry{
		SessionID:  sessionID,
		ClubID:     session.ClubID,
		Ts:         joined,
		Kind:       event.KindMemberAdded,
		MemberID:   event.StringPtr(memberID),
		InsertedAt: s.now(),
	}
	if err := s.Store.AppendEntry(ctx, e); err != nil {
		return nil, err
	}
	s.publish(e)

	return s.Store.GetSession(ctx, sessionID)
}

// End finishes a session: the closing totals, tally, penalty totals, and
// playtime snapshots are appended to the log, then the session becomes
// immutable except for verification appends.
func (s *SessionService) End(ctx context.Context, sessionID string) (*ledger.Session, error) {
	session, err := s.Store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Finished() {
		return nil, fmt.Errorf("session %s: %w", sessionID, store.ErrSessionFinished)
	}

	entries, err := s.Store.ListSessionEntries(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	penalties, err := s.Store.ListPenalties(ctx, session.ClubID, true)
	if err != nil {
		return nil, err
	}

	ended := s.now()
	participants := session.MemberIDs()

	playtime := make(map[string]int64, len(session.Participants))
	for _, p := range session.Participants {
		playtime[p.MemberID] = int64(ended.Sub(p.JoinedAt).Seconds())
	}

	snapshots := []struct {
		kind    event.Kind
		payload any
	}{
		{event.KindTotalsRecorded, event.TotalsPayload{Balances: session.StoredBalances()}},
		{event.KindTallyRecorded, ledger.Tally(entries, participants).Payload()},
		{event.KindPenaltyTotalsRecorded, event.PenaltyTotalsPayload{
			Totals: ledger.PenaltyTotals(entries, ledger.NewRuleSet(penalties), participants),
		}},
		{event.KindPlaytimeRecorded, event.PlaytimePayload{Seconds: playtime}},
	}

	for _, snap := range snapshots {
		payload, err := json.Marshal(snap.payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", snap.kind, err)
		}
		e := &event.Entry{
			SessionID:   sessionID,
			ClubID:      session.ClubID,
			Ts:          ended,
			Kind:        snap.kind,
			PayloadJSON: payload,
			InsertedAt:  s.now(),
		}
		if err := s.Store.AppendEntry(ctx, e); err != nil {
			return nil, err
		}
		s.publish(e)
	}

	if err := s.Store.EndSession(ctx, sessionID, ended); err != nil {
		return nil, err
	}

	return s.Store.GetSession(ctx, sessionID)
}
