package app

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/mhessel/penaltypot/internal/event"
	"github.com/mhessel/penaltypot/internal/ledger"
	"github.com/mhessel/penaltypot/internal/store"
)

func TestSessionStart_SeedsJoinEntries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	session := f.startSession(t, "Alice", "Bert")
	if session.Status != ledger.SessionActive {
		t.Errorf("status = %s, want active", session.Status)
	}
	if len(session.Participants) != 2 {
		t.Fatalf("participants = %d, want 2", len(session.Participants))
	}

	entries, err := f.store.ListSessionEntries(ctx, session.ID)
	if err != nil {
		t.Fatalf("list entries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2 member_added", len(entries))
	}
	for _, e := range entries {
		if e.Kind != event.KindMemberAdded {
			t.Errorf("kind = %s, want member_added", e.Kind)
		}
		if e.MemberID == nil {
			t.Error("member_added without member_id")
		}
	}
}

func TestSessionStart_RequiresParticipants(t *testing.T) {
	f := newFixture(t)

	_, err := f.sessions.Start(context.Background(), f.club.ID, nil)
	if !errors.Is(err, store.ErrInvalidEntry) {
		t.Errorf("err = %v, want ErrInvalidEntry", err)
	}
}

func TestSessionStart_RejectsForeignMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other, err := f.ref.CreateClub(ctx, "Rival Club")
	if err != nil {
		t.Fatalf("create club: %v", err)
	}
	stranger, err := f.ref.CreateMember(ctx, other.ID, "Dora", false)
	if err != nil {
		t.Fatalf("create member: %v", err)
	}

	_, err = f.sessions.Start(ctx, f.club.ID, []string{stranger.ID})
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSessionEnd_WritesClosingSnapshots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.createPenalty(t, "Gutter ball", 5, 0, ledger.AffectSelf)
	session := f.startSession(t, "Alice", "Bert")
	f.commit(t, session.ID, "Alice", p.ID)

	f.clock.advance(time.Hour)
	ended, err := f.sessions.End(ctx, session.ID)
	if err != nil {
		t.Fatalf("end session: %v", err)
	}
	if !ended.Finished() {
		t.Error("session still active after End")
	}
	if ended.EndedAt == nil {
		t.Error("ended_at not set")
	}

	entries, err := f.store.ListSessionEntries(ctx, session.ID)
	if err != nil {
		t.Fatalf("list entries: %v", err)
	}
	byKind := make(map[event.Kind]event.Entry)
	for _, e := range entries {
		byKind[e.Kind] = e
	}

	for _, kind := range []event.Kind{
		event.KindTotalsRecorded,
		event.KindTallyRecorded,
		event.KindPenaltyTotalsRecorded,
		event.KindPlaytimeRecorded,
	} {
		if _, ok := byKind[kind]; !ok {
			t.Errorf("missing closing snapshot %s", kind)
		}
	}

	var totals event.TotalsPayload
	if err := json.Unmarshal(byKind[event.KindTotalsRecorded].PayloadJSON, &totals); err != nil {
		t.Fatalf("unmarshal totals: %v", err)
	}
	if totals.Balances[f.members["Alice"].ID] != 5 {
		t.Errorf("recorded balance = %v, want 5", totals.Balances[f.members["Alice"].ID])
	}

	var playtime event.PlaytimePayload
	if err := json.Unmarshal(byKind[event.KindPlaytimeRecorded].PayloadJSON, &playtime); err != nil {
		t.Fatalf("unmarshal playtime: %v", err)
	}
	// Both joined at start, ended one hour and one commit-minute later.
	for name, id := range map[string]string{"Alice": f.members["Alice"].ID, "Bert": f.members["Bert"].ID} {
		if secs := playtime.Seconds[id]; secs < 3600 {
			t.Errorf("playtime[%s] = %d, want >= 3600", name, secs)
		}
	}
}

func TestSessionEnd_Twice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	session := f.startSession(t, "Alice")
	if _, err := f.sessions.End(ctx, session.ID); err != nil {
		t.Fatalf("first end: %v", err)
	}
	_, err := f.sessions.End(ctx, session.ID)
	if !errors.Is(err, store.ErrSessionFinished) {
		t.Errorf("err = %v, want ErrSessionFinished", err)
	}
}

func TestAddMember_RejectsFinishedSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	session := f.startSession(t, "Alice")
	if _, err := f.sessions.End(ctx, session.ID); err != nil {
		t.Fatalf("end: %v", err)
	}

	_, err := f.sessions.AddMember(ctx, session.ID, f.members["Bert"].ID)
	if !errors.Is(err, store.ErrSessionFinished) {
		t.Errorf("err = %v, want ErrSessionFinished", err)
	}
}

func TestAddMember_RecordsJoinTime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	session := f.startSession(t, "Alice")

	f.clock.advance(30 * time.Minute)
	updated, err := f.sessions.AddMember(ctx, session.ID, f.members["Bert"].ID)
	if err != nil {
		t.Fatalf("add member: %v", err)
	}
	if len(updated.Participants) != 2 {
		t.Fatalf("participants = %d, want 2", len(updated.Participants))
	}

	var bert *ledger.Participant
	for i := range updated.Participants {
		if updated.Participants[i].MemberID == f.members["Bert"].ID {
			bert = &updated.Participants[i]
		}
	}
	if bert == nil {
		t.Fatal("new participant missing")
	}
	if !bert.JoinedAt.After(session.StartedAt) {
		t.Errorf("joined_at %v not after session start %v", bert.JoinedAt, session.StartedAt)
	}
}
