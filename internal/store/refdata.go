package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mhessel/penaltypot/internal/ledger"
)

// Reference data access: clubs, members, penalties. These are thin CRUD
// wrappers; the ledger only ever sees frozen snapshots of them.

// CreateClub inserts a club.
func (s *Store) CreateClub(ctx context.Context, c *ledger.Club) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO clubs (id, name, created_at) VALUES (?, ?, ?)`,
		c.ID, c.Name, c.CreatedAt.UTC().Format(TimeFormat),
	)
	if err != nil {
		return fmt.Errorf("insert club: %w", err)
	}
	return nil
}

// GetClub loads a club by id. Returns ErrNotFound if absent.
func (s *Store) GetClub(ctx context.Context, id string) (*ledger.Club, error) {
	var (
		c       ledger.Club
		created string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM clubs WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("club %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get club: %w", err)
	}
	c.CreatedAt, err = time.Parse(TimeFormat, created)
	if err != nil {
		return nil, fmt.Errorf("parse created_at %q: %w", created, err)
	}
	return &c, nil
}

// ListClubs returns all clubs ordered by name.
func (s *Store) ListClubs(ctx context.Context) ([]ledger.Club, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, created_at FROM clubs ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list clubs: %w", err)
	}
	defer rows.Close()

	var clubs []ledger.Club
	for rows.Next() {
		var (
			c       ledger.Club
			created string
		)
		if err := rows.Scan(&c.ID, &c.Name, &created); err != nil {
			return nil, fmt.Errorf("scan club: %w", err)
		}
		c.CreatedAt, err = time.Parse(TimeFormat, created)
		if err != nil {
			return nil, fmt.Errorf("parse created_at %q: %w", created, err)
		}
		clubs = append(clubs, c)
	}
	return clubs, rows.Err()
}

// CreateMember inserts a member.
func (s *Store) CreateMember(ctx context.Context, m *ledger.Member) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO members (id, club_id, name, guest, created_at) VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.ClubID, m.Name, boolToInt(m.Guest), m.CreatedAt.UTC().Format(TimeFormat),
	)
	if err != nil {
		return fmt.Errorf("insert member: %w", err)
	}
	return nil
}

// GetMember loads a member by id. Returns ErrNotFound if absent.
func (s *Store) GetMember(ctx context.Context, id string) (*ledger.Member, error) {
	var (
		m       ledger.Member
		guest   int
		created string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, club_id, name, guest, created_at FROM members WHERE id = ?`, id,
	).Scan(&m.ID, &m.ClubID, &m.Name, &guest, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("member %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	m.Guest = guest != 0
	m.CreatedAt, err = time.Parse(TimeFormat, created)
	if err != nil {
		return nil, fmt.Errorf("parse created_at %q: %w", created, err)
	}
	return &m, nil
}

// ListMembers returns a club's members ordered by name.
func (s *Store) ListMembers(ctx context.Context, clubID string) ([]ledger.Member, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, club_id, name, guest, created_at FROM members WHERE club_id = ? ORDER BY name ASC`,
		clubID,
	)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []ledger.Member
	for rows.Next() {
		var (
			m       ledger.Member
			guest   int
			created string
		)
		if err := rows.Scan(&m.ID, &m.ClubID, &m.Name, &guest, &created); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		m.Guest = guest != 0
		m.CreatedAt, err = time.Parse(TimeFormat, created)
		if err != nil {
			return nil, fmt.Errorf("parse created_at %q: %w", created, err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// CreatePenalty inserts a penalty definition.
func (s *Store) CreatePenalty(ctx context.Context, p *ledger.Penalty) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO penalties (id, club_id, name, self_amount, other_amount, affect, active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.ClubID, p.Name, p.SelfAmount, p.OtherAmount, string(p.Affect), boolToInt(p.Active),
		p.CreatedAt.UTC().Format(TimeFormat),
	)
	if err != nil {
		return fmt.Errorf("insert penalty: %w", err)
	}
	return nil
}

// GetPenalty loads a penalty by id. Returns ErrNotFound if absent.
func (s *Store) GetPenalty(ctx context.Context, id string) (*ledger.Penalty, error) {
	var (
		p       ledger.Penalty
		affect  string
		active  int
		created string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, club_id, name, self_amount, other_amount, affect, active, created_at FROM penalties WHERE id = ?`,
		id,
	).Scan(&p.ID, &p.ClubID, &p.Name, &p.SelfAmount, &p.OtherAmount, &affect, &active, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("penalty %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get penalty: %w", err)
	}
	p.Affect = ledger.AffectMode(affect)
	p.Active = active != 0
	p.CreatedAt, err = time.Parse(TimeFormat, created)
	if err != nil {
		return nil, fmt.Errorf("parse created_at %q: %w", created, err)
	}
	return &p, nil
}

// ListPenalties returns a club's penalty definitions ordered by name.
// With activeOnly set, retired penalties are excluded; replay uses the
// active set so retired references show up as recoverable gaps.
func (s *Store) ListPenalties(ctx context.Context, clubID string, activeOnly bool) ([]ledger.Penalty, error) {
	query := `SELECT id, club_id, name, self_amount, other_amount, affect, active, created_at FROM penalties WHERE club_id = ?`
	if activeOnly {
		query += ` AND active = 1`
	}
	query += ` ORDER BY name ASC`

	rows, err := s.db.QueryContext(ctx, query, clubID)
	if err != nil {
		return nil, fmt.Errorf("list penalties: %w", err)
	}
	defer rows.Close()

	var penalties []ledger.Penalty
	for rows.Next() {
		var (
			p       ledger.Penalty
			affect  string
			active  int
			created string
		)
		if err := rows.Scan(&p.ID, &p.ClubID, &p.Name, &p.SelfAmount, &p.OtherAmount, &affect, &active, &created); err != nil {
			return nil, fmt.Errorf("scan penalty: %w", err)
		}
		p.Affect = ledger.AffectMode(affect)
		p.Active = active != 0
		p.CreatedAt, err = time.Parse(TimeFormat, created)
		if err != nil {
			return nil, fmt.Errorf("parse created_at %q: %w", created, err)
		}
		penalties = append(penalties, p)
	}
	return penalties, rows.Err()
}

// SetPenaltyActive flips a penalty's active flag.
func (s *Store) SetPenaltyActive(ctx context.Context, id string, active bool) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE penalties SET active = ? WHERE id = ?`, boolToInt(active), id,
	)
	if err != nil {
		return fmt.Errorf("set penalty active: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("penalty %s: %w", id, ErrNotFound)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
