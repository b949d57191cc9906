package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mhessel/penaltypot/internal/event"
	"github.com/mhessel/penaltypot/internal/ledger"
	"github.com/mhessel/penaltypot/internal/store"
)

func TestAppend_StampsAmbientMultiplier(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.createPenalty(t, "Gutter ball", 5, 0, ledger.AffectSelf)
	session := f.startSession(t, "Alice")

	f.clock.advance(time.Minute)
	if _, err := f.entries.Append(ctx, session.ID, AppendRequest{
		Kind:       event.KindMultiplierChanged,
		Multiplier: event.Float64Ptr(3),
	}); err != nil {
		t.Fatalf("multiplier change: %v", err)
	}

	e := f.commit(t, session.ID, "Alice", p.ID)
	if e.Multiplier == nil || *e.Multiplier != 3 {
		t.Errorf("multiplier = %v, want stamped 3", e.Multiplier)
	}
	if e.SelfAmount == nil || *e.SelfAmount != 15 {
		t.Errorf("self amount = %v, want 15", e.SelfAmount)
	}

	got, err := f.sessions.Get(ctx, session.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if b := got.StoredBalances()[f.members["Alice"].ID]; b != 15 {
		t.Errorf("stored balance = %v, want 15", b)
	}
}

func TestAppend_ExplicitMultiplierBeatsAmbient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.createPenalty(t, "Gutter ball", 5, 0, ledger.AffectSelf)
	session := f.startSession(t, "Alice")

	f.clock.advance(time.Minute)
	if _, err := f.entries.Append(ctx, session.ID, AppendRequest{
		Kind:       event.KindMultiplierChanged,
		Multiplier: event.Float64Ptr(5),
	}); err != nil {
		t.Fatalf("multiplier change: %v", err)
	}

	f.clock.advance(time.Minute)
	e, err := f.entries.Append(ctx, session.ID, AppendRequest{
		Kind:       event.KindPenaltyCommitted,
		MemberID:   event.StringPtr(f.members["Alice"].ID),
		PenaltyID:  event.StringPtr(p.ID),
		Multiplier: event.Float64Ptr(2),
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if *e.SelfAmount != 10 {
		t.Errorf("self amount = %v, want 10", *e.SelfAmount)
	}
}

func TestAppend_RevokeReversesCommit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.createPenalty(t, "Table fine", 2, 1, ledger.AffectBoth)
	session := f.startSession(t, "Alice", "Bert")

	f.commit(t, session.ID, "Alice", p.ID)

	f.clock.advance(time.Minute)
	if _, err := f.entries.Append(ctx, session.ID, AppendRequest{
		Kind:      event.KindPenaltyRevoked,
		MemberID:  event.StringPtr(f.members["Alice"].ID),
		PenaltyID: event.StringPtr(p.ID),
	}); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	got, err := f.sessions.Get(ctx, session.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	for _, part := range got.Participants {
		if part.Balance != 0 {
			t.Errorf("balance[%s] = %v, want 0 after revoke", part.MemberID, part.Balance)
		}
	}
}

func TestAppend_OtherModeSkipsLateJoiner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.createPenalty(t, "Late round", 0, 2, ledger.AffectOther)
	session := f.startSession(t, "Alice", "Bert")

	f.commit(t, session.ID, "Alice", p.ID)

	f.clock.advance(time.Minute)
	if _, err := f.sessions.AddMember(ctx, session.ID, f.members["Clara"].ID); err != nil {
		t.Fatalf("add member: %v", err)
	}

	f.commit(t, session.ID, "Alice", p.ID)

	got, err := f.sessions.Get(ctx, session.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	balances := got.StoredBalances()
	if balances[f.members["Bert"].ID] != 4 {
		t.Errorf("Bert = %v, want 4 (charged both commits)", balances[f.members["Bert"].ID])
	}
	if balances[f.members["Clara"].ID] != 2 {
		t.Errorf("Clara = %v, want 2 (only the commit after joining)", balances[f.members["Clara"].ID])
	}
	if balances[f.members["Alice"].ID] != 0 {
		t.Errorf("Alice = %v, want 0 (actor not charged in OTHER mode)", balances[f.members["Alice"].ID])
	}

	// The live snapshot must agree with a replay of the same log.
	result, err := f.verify.Verify(ctx, f.club.ID, session.ID)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !result.OK {
		t.Errorf("verification failed: %+v", result.Checks)
	}
}

func TestAppend_NoneModeRecordsWithoutCharge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.createPenalty(t, "Honorable mention", 5, 5, ledger.AffectNone)
	session := f.startSession(t, "Alice", "Bert")

	f.commit(t, session.ID, "Alice", p.ID)

	got, err := f.sessions.Get(ctx, session.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	for _, part := range got.Participants {
		if part.Balance != 0 {
			t.Errorf("balance[%s] = %v, want 0", part.MemberID, part.Balance)
		}
	}

	tally, err := f.report.Tally(ctx, session.ID)
	if err != nil {
		t.Fatalf("tally: %v", err)
	}
	bucket := tally.Counts[f.members["Alice"].ID][p.ID]
	if bucket.Total != 1 {
		t.Errorf("tally total = %d, want 1 (NONE commits still count)", bucket.Total)
	}
}

func TestAppend_RejectsFinishedSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.createPenalty(t, "Gutter ball", 5, 0, ledger.AffectSelf)
	session := f.startSession(t, "Alice")

	f.clock.advance(time.Hour)
	if _, err := f.sessions.End(ctx, session.ID); err != nil {
		t.Fatalf("end session: %v", err)
	}

	_, err := f.entries.Append(ctx, session.ID, AppendRequest{
		Kind:      event.KindPenaltyCommitted,
		MemberID:  event.StringPtr(f.members["Alice"].ID),
		PenaltyID: event.StringPtr(p.ID),
	})
	if !errors.Is(err, store.ErrSessionFinished) {
		t.Errorf("err = %v, want ErrSessionFinished", err)
	}
}

func TestAppend_RejectsNonParticipant(t *testing.T) {
	f := newFixture(t)

	p := f.createPenalty(t, "Gutter ball", 5, 0, ledger.AffectSelf)
	session := f.startSession(t, "Alice")

	_, err := f.entries.Append(context.Background(), session.ID, AppendRequest{
		Kind:      event.KindPenaltyCommitted,
		MemberID:  event.StringPtr(f.members["Bert"].ID),
		PenaltyID: event.StringPtr(p.ID),
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestAppend_RejectsRetiredPenalty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.createPenalty(t, "Gutter ball", 5, 0, ledger.AffectSelf)
	session := f.startSession(t, "Alice")
	if err := f.ref.RetirePenalty(ctx, p.ID); err != nil {
		t.Fatalf("retire: %v", err)
	}

	_, err := f.entries.Append(ctx, session.ID, AppendRequest{
		Kind:      event.KindPenaltyCommitted,
		MemberID:  event.StringPtr(f.members["Alice"].ID),
		PenaltyID: event.StringPtr(p.ID),
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestAppend_RejectsSystemManagedKinds(t *testing.T) {
	f := newFixture(t)
	session := f.startSession(t, "Alice")

	for _, kind := range []event.Kind{
		event.KindMemberAdded,
		event.KindTotalsRecorded,
		event.KindVerificationRun,
	} {
		_, err := f.entries.Append(context.Background(), session.ID, AppendRequest{Kind: kind})
		if !errors.Is(err, store.ErrInvalidEntry) {
			t.Errorf("kind %s: err = %v, want ErrInvalidEntry", kind, err)
		}
	}
}

func TestAppend_RewardDeductsAbsoluteValue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.createPenalty(t, "Strike streak", 5, 0, ledger.AffectNone)
	session := f.startSession(t, "Alice")

	// Whether the caller sends -7 or 7, a reward always lowers the balance.
	f.clock.advance(time.Minute)
	if _, err := f.entries.Append(ctx, session.ID, AppendRequest{
		Kind:        event.KindRewardDeducted,
		MemberID:    event.StringPtr(f.members["Alice"].ID),
		PenaltyID:   event.StringPtr(p.ID),
		TotalAmount: event.Float64Ptr(7),
	}); err != nil {
		t.Fatalf("reward: %v", err)
	}

	got, err := f.sessions.Get(ctx, session.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if b := got.StoredBalances()[f.members["Alice"].ID]; b != -7 {
		t.Errorf("balance = %v, want -7", b)
	}
}

func TestAppend_RewardRequiresPenalty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	session := f.startSession(t, "Alice")

	// The penalty totals snapshot attributes rewards per penalty, so a
	// reward without one would vanish from that report.
	_, err := f.entries.Append(ctx, session.ID, AppendRequest{
		Kind:        event.KindRewardDeducted,
		MemberID:    event.StringPtr(f.members["Alice"].ID),
		TotalAmount: event.Float64Ptr(7),
	})
	if !errors.Is(err, store.ErrInvalidEntry) {
		t.Errorf("err = %v, want ErrInvalidEntry", err)
	}

	// A reference to a penalty that does not resolve is rejected too.
	_, err = f.entries.Append(ctx, session.ID, AppendRequest{
		Kind:        event.KindRewardDeducted,
		MemberID:    event.StringPtr(f.members["Alice"].ID),
		PenaltyID:   event.StringPtr("missing"),
		TotalAmount: event.Float64Ptr(7),
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestQuery_FiltersByKind(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.createPenalty(t, "Gutter ball", 5, 0, ledger.AffectSelf)
	session := f.startSession(t, "Alice")
	f.commit(t, session.ID, "Alice", p.ID)
	f.commit(t, session.ID, "Alice", p.ID)

	kind := event.KindPenaltyCommitted
	result, err := f.entries.Query(ctx, store.QueryFilter{
		SessionID: session.ID,
		Kind:      &kind,
	})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(result.Items) != 2 {
		t.Errorf("entries = %d, want 2", len(result.Items))
	}
	for _, e := range result.Items {
		if e.Kind != event.KindPenaltyCommitted {
			t.Errorf("unexpected kind %s", e.Kind)
		}
	}
}
