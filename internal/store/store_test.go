package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mhessel/penaltypot/internal/ledger"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "test.sqlite"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_CreatesDatabase(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.sqlite")

	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	// Verify file exists
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created")
	}

	// Verify WAL mode
	journalMode, err := s.journalMode()
	if err != nil {
		t.Fatalf("query journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("journal_mode = %q, want %q", journalMode, "wal")
	}
}

func TestRefdata_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	club := &ledger.Club{ID: "club-1", Name: "Thursday Nine-Pins", CreatedAt: now}
	if err := s.CreateClub(ctx, club); err != nil {
		t.Fatalf("create club: %v", err)
	}

	member := &ledger.Member{ID: "mem-1", ClubID: "club-1", Name: "Alice", CreatedAt: now}
	if err := s.CreateMember(ctx, member); err != nil {
		t.Fatalf("create member: %v", err)
	}

	penalty := &ledger.Penalty{
		ID: "pen-1", ClubID: "club-1", Name: "Gutter ball",
		SelfAmount: 0.5, Affect: ledger.AffectSelf, Active: true, CreatedAt: now,
	}
	if err := s.CreatePenalty(ctx, penalty); err != nil {
		t.Fatalf("create penalty: %v", err)
	}

	got, err := s.GetPenalty(ctx, "pen-1")
	if err != nil {
		t.Fatalf("get penalty: %v", err)
	}
	if got.SelfAmount != 0.5 || got.Affect != ledger.AffectSelf || !got.Active {
		t.Errorf("penalty round trip mismatch: %+v", got)
	}

	members, err := s.ListMembers(ctx, "club-1")
	if err != nil {
		t.Fatalf("list members: %v", err)
	}
	if len(members) != 1 || members[0].Name != "Alice" {
		t.Errorf("unexpected members: %+v", members)
	}
}

func TestListPenalties_ActiveOnly(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for _, p := range []*ledger.Penalty{
		{ID: "p1", ClubID: "c", Name: "Active", SelfAmount: 1, Affect: ledger.AffectSelf, Active: true, CreatedAt: now},
		{ID: "p2", ClubID: "c", Name: "Retired", SelfAmount: 1, Affect: ledger.AffectSelf, Active: false, CreatedAt: now},
	} {
		if err := s.CreatePenalty(ctx, p); err != nil {
			t.Fatalf("create penalty: %v", err)
		}
	}

	active, err := s.ListPenalties(ctx, "c", true)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 1 || active[0].ID != "p1" {
		t.Errorf("active penalties = %+v, want only p1", active)
	}

	all, err := s.ListPenalties(ctx, "c", false)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("all penalties = %d, want 2", len(all))
	}
}
