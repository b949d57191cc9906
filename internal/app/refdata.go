package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mhessel/penaltypot/internal/ledger"
	"github.com/mhessel/penaltypot/internal/store"
)

// RefStore defines the reference data access RefService needs.
type RefStore interface {
	CreateClub(ctx context.Context, c *ledger.Club) error
	GetClub(ctx context.Context, id string) (*ledger.Club, error)
	ListClubs(ctx context.Context) ([]ledger.Club, error)
	CreateMember(ctx context.Context, m *ledger.Member) error
	ListMembers(ctx context.Context, clubID string) ([]ledger.Member, error)
	CreatePenalty(ctx context.Context, p *ledger.Penalty) error
	ListPenalties(ctx context.Context, clubID string, activeOnly bool) ([]ledger.Penalty, error)
	SetPenaltyActive(ctx context.Context, id string, active bool) error
}

// RefService is the thin CRUD layer over clubs, members, and penalties.
// It holds no rules of its own; the ledger consumes frozen snapshots of
// what it manages.
type RefService struct {
	Store RefStore
}

// CreateClub creates a club with a generated id.
func (s *RefService) CreateClub(ctx context.Context, name string) (*ledger.Club, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", store.ErrInvalidEntry)
	}
	c := &ledger.Club{ID: uuid.NewString(), Name: name, CreatedAt: time.Now().UTC()}
	if err := s.Store.CreateClub(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// ListClubs returns all clubs.
func (s *RefService) ListClubs(ctx context.Context) ([]ledger.Club, error) {
	return s.Store.ListClubs(ctx)
}

// CreateMember creates a member in a club.
func (s *RefService) CreateMember(ctx context.Context, clubID, name string, guest bool) (*ledger.Member, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", store.ErrInvalidEntry)
	}
	if _, err := s.Store.GetClub(ctx, clubID); err != nil {
		return nil, err
	}
	m := &ledger.Member{
		ID:        uuid.NewString(),
		ClubID:    clubID,
		Name:      name,
		Guest:     guest,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.Store.CreateMember(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// ListMembers returns a club's members.
func (s *RefService) ListMembers(ctx context.Context, clubID string) ([]ledger.Member, error) {
	return s.Store.ListMembers(ctx, clubID)
}

// CreatePenalty creates a penalty definition in a club.
func (s *RefService) CreatePenalty(ctx context.Context, p ledger.Penalty) (*ledger.Penalty, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return nil, fmt.Errorf("%w: name is required", store.ErrInvalidEntry)
	}
	if !p.Affect.Valid() {
		return nil, fmt.Errorf("%w: unknown affect mode %q", store.ErrInvalidEntry, p.Affect)
	}
	if p.SelfAmount < 0 || p.OtherAmount < 0 {
		return nil, fmt.Errorf("%w: amounts must be non-negative", store.ErrInvalidEntry)
	}
	if _, err := s.Store.GetClub(ctx, p.ClubID); err != nil {
		return nil, err
	}
	p.ID = uuid.NewString()
	p.Active = true
	p.CreatedAt = time.Now().UTC()
	if err := s.Store.CreatePenalty(ctx, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPenalties returns a club's penalty definitions.
func (s *RefService) ListPenalties(ctx context.Context, clubID string, activeOnly bool) ([]ledger.Penalty, error) {
	return s.Store.ListPenalties(ctx, clubID, activeOnly)
}

// RetirePenalty deactivates a penalty. Existing log entries keep
// referencing it; replay against the active rule set will skip them.
func (s *RefService) RetirePenalty(ctx context.Context, id string) error {
	return s.Store.SetPenaltyActive(ctx, id, false)
}
