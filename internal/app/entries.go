package app

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/mhessel/penaltypot/internal/event"
	"github.com/mhessel/penaltypot/internal/ledger"
	"github.com/mhessel/penaltypot/internal/store"
)

// EntryStore defines the store operations EntryService needs.
type EntryStore interface {
	GetSession(ctx context.Context, sessionID string) (*ledger.Session, error)
	GetPenalty(ctx context.Context, id string) (*ledger.Penalty, error)
	CurrentMultiplier(ctx context.Context, sessionID string) (float64, error)
	AppendEntry(ctx context.Context, e *event.Entry) error
	ApplyBalanceDeltas(ctx context.Context, sessionID string, deltas map[string]float64) error
	QueryEntries(ctx context.Context, f store.QueryFilter) (store.QueryResult, error)
}

// AppendRequest describes a caller-initiated log entry.
type AppendRequest struct {
	Kind        event.Kind
	MemberID    *string
	PenaltyID   *string
	Multiplier  *float64
	TotalAmount *float64
	Note        *string
}

// EntryService is the live update path: it appends entries to a session's
// log and incrementally maintains the stored balance snapshot. The delta
// rules here are implemented independently from ledger.Replay on purpose;
// verification exists to check the two paths against each other.
type EntryService struct {
	Store     EntryStore
	Publisher EntryPublisher
	Now       func() time.Time
}

func (s *EntryService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Append validates, persists, and applies a new log entry.
// Commit entries are stamped with their effective multiplier and resolved
// amounts at write time, so later ambient changes can never reinterpret
// them.
func (s *EntryService) Append(ctx context.Context, sessionID string, req AppendRequest) (*event.Entry, error) {
	session, err := s.Store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Finished() {
		return nil, fmt.Errorf("session %s: %w", sessionID, store.ErrSessionFinished)
	}

	e := &event.Entry{
		SessionID:  sessionID,
		ClubID:     session.ClubID,
		Ts:         s.now(),
		Kind:       req.Kind,
		MemberID:   req.MemberID,
		PenaltyID:  req.PenaltyID,
		Multiplier: req.Multiplier,
		Note:       req.Note,
		InsertedAt: s.now(),
	}

	var deltas map[string]float64

	switch req.Kind {
	case event.KindPenaltyCommitted, event.KindPenaltyRevoked:
		penalty, err := s.prepareCommit(ctx, session, e)
		if err != nil {
			return nil, err
		}
		deltas = commitDeltas(session, e, penalty)

	case event.KindRewardDeducted:
		if req.MemberID == nil || req.PenaltyID == nil || req.TotalAmount == nil {
			return nil, fmt.Errorf("%w: reward requires member_id, penalty_id, and total_amount", store.ErrInvalidEntry)
		}
		if !isParticipant(session, *req.MemberID) {
			return nil, fmt.Errorf("member %s not in session: %w", *req.MemberID, store.ErrNotFound)
		}
		// The per-penalty totals snapshot attributes every reward to its
		// penalty, so the reference must resolve at write time.
		penalty, err := s.Store.GetPenalty(ctx, *req.PenaltyID)
		if err != nil {
			return nil, err
		}
		if penalty.ClubID != session.ClubID {
			return nil, fmt.Errorf("penalty %s: %w", *req.PenaltyID, store.ErrNotFound)
		}
		e.TotalAmount = req.TotalAmount
		deltas = map[string]float64{*req.MemberID: -math.Abs(*req.TotalAmount)}

	case event.KindMultiplierChanged:
		if req.Multiplier == nil {
			return nil, fmt.Errorf("%w: multiplier value is required", store.ErrInvalidEntry)
		}

	case event.KindTitleAwarded:
		if req.MemberID == nil {
			return nil, fmt.Errorf("%w: title award requires member_id", store.ErrInvalidEntry)
		}

	default:
		// Roster, snapshot, and verification entries are appended by their
		// owning services, not through this endpoint.
		return nil, fmt.Errorf("%w: kind %q cannot be appended directly", store.ErrInvalidEntry, req.Kind)
	}

	if err := s.Store.AppendEntry(ctx, e); err != nil {
		return nil, err
	}

	if len(deltas) > 0 {
		if err := s.Store.ApplyBalanceDeltas(ctx, sessionID, deltas); err != nil {
			return nil, err
		}
	}

	if s.Publisher != nil {
		s.Publisher.Publish(e)
	}

	return e, nil
}

// Query returns a page of a session's log.
func (s *EntryService) Query(ctx context.Context, filter store.QueryFilter) (store.QueryResult, error) {
	return s.Store.QueryEntries(ctx, filter)
}

// prepareCommit validates a commit request and stamps the entry with the
// effective multiplier and the resolved per-head amounts.
func (s *EntryService) prepareCommit(ctx context.Context, session *ledger.Session, e *event.Entry) (*ledger.Penalty, error) {
	if e.MemberID == nil || e.PenaltyID == nil {
		return nil, fmt.Errorf("%w: commit requires member_id and penalty_id", store.ErrInvalidEntry)
	}
	if !isParticipant(session, *e.MemberID) {
		return nil, fmt.Errorf("member %s not in session: %w", *e.MemberID, store.ErrNotFound)
	}

	penalty, err := s.Store.GetPenalty(ctx, *e.PenaltyID)
	if err != nil {
		return nil, err
	}
	if penalty.ClubID != session.ClubID || !penalty.Active {
		return nil, fmt.Errorf("penalty %s: %w", *e.PenaltyID, store.ErrNotFound)
	}

	mult := 1.0
	if e.Multiplier != nil {
		mult = *e.Multiplier
	} else {
		mult, err = s.Store.CurrentMultiplier(ctx, session.ID)
		if err != nil {
			return nil, err
		}
	}
	e.Multiplier = event.Float64Ptr(mult)
	e.SelfAmount = event.Float64Ptr(penalty.SelfAmount * mult)
	e.OtherAmount = event.Float64Ptr(penalty.OtherAmount * mult)

	return penalty, nil
}

// commitDeltas computes the incremental balance changes for a stamped
// commit entry. Join gating uses the participant rows' joined_at, which
// the member_added entries mirror.
func commitDeltas(session *ledger.Session, e *event.Entry, penalty *ledger.Penalty) map[string]float64 {
	delta := 1.0
	if e.Kind == event.KindPenaltyRevoked {
		delta = -1.0
	}
	self := *e.SelfAmount
	other := *e.OtherAmount
	actor := *e.MemberID

	deltas := make(map[string]float64)
	chargeActor := penalty.Affect == ledger.AffectSelf || penalty.Affect == ledger.AffectBoth
	chargeRest := penalty.Affect == ledger.AffectOther || penalty.Affect == ledger.AffectBoth

	if chargeActor {
		deltas[actor] += delta * self
	}
	if chargeRest {
		for _, p := range session.Participants {
			if p.MemberID == actor {
				continue
			}
			if p.JoinedAt.After(e.Ts) {
				continue
			}
			deltas[p.MemberID] += delta * other
		}
	}
	return deltas
}

func isParticipant(session *ledger.Session, memberID string) bool {
	for _, p := range session.Participants {
		if p.MemberID == memberID {
			return true
		}
	}
	return false
}
