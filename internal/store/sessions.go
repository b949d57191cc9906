package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mhessel/penaltypot/internal/ledger"
)

// CreateSession inserts a session together with its initial participants.
func (s *Store) CreateSession(ctx context.Context, session *ledger.Session) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (id, club_id, status, started_at) VALUES (?, ?, ?, ?)`,
		session.ID, session.ClubID, session.Status, session.StartedAt.UTC().Format(TimeFormat),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	for _, p := range session.Participants {
		if err := insertParticipant(ctx, tx, session.ID, p); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetSession loads a session with its participants and live balances.
// Returns ErrNotFound if the session does not exist.
func (s *Store) GetSession(ctx context.Context, sessionID string) (*ledger.Session, error) {
	var (
		session ledger.Session
		started string
		ended   sql.NullString
	)

	err := s.db.QueryRowContext(ctx,
		`SELECT id, club_id, status, started_at, ended_at FROM sessions WHERE id = ?`,
		sessionID,
	).Scan(&session.ID, &session.ClubID, &session.Status, &started, &ended)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	session.StartedAt, err = time.Parse(TimeFormat, started)
	if err != nil {
		return nil, fmt.Errorf("parse started_at %q: %w", started, err)
	}
	if ended.Valid {
		t, err := time.Parse(TimeFormat, ended.String)
		if err != nil {
			return nil, fmt.Errorf("parse ended_at %q: %w", ended.String, err)
		}
		session.EndedAt = &t
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT member_id, joined_at, balance FROM session_members WHERE session_id = ? ORDER BY joined_at ASC, member_id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("get session members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			p      ledger.Participant
			joined string
		)
		if err := rows.Scan(&p.MemberID, &joined, &p.Balance); err != nil {
			return nil, fmt.Errorf("scan session member: %w", err)
		}
		p.JoinedAt, err = time.Parse(TimeFormat, joined)
		if err != nil {
			return nil, fmt.Errorf("parse joined_at %q: %w", joined, err)
		}
		session.Participants = append(session.Participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return &session, nil
}

// ListClubSessions returns a club's sessions, newest first.
func (s *Store) ListClubSessions(ctx context.Context, clubID string) ([]ledger.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM sessions WHERE club_id = ? ORDER BY started_at DESC`,
		clubID,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	sessions := make([]ledger.Session, 0, len(ids))
	for _, id := range ids {
		session, err := s.GetSession(ctx, id)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}
	return sessions, nil
}

// AddSessionMember adds a participant to a session with a zero balance.
func (s *Store) AddSessionMember(ctx context.Context, sessionID, memberID string, joinedAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	p := ledger.Participant{MemberID: memberID, JoinedAt: joinedAt}
	if err := insertParticipant(ctx, tx, sessionID, p); err != nil {
		return err
	}
	return tx.Commit()
}

// EndSession marks a session finished. Idempotent: ending a finished
// session leaves its original end time in place.
func (s *Store) EndSession(ctx context.Context, sessionID string, endedAt time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET status = ?, ended_at = ? WHERE id = ? AND status = ?`,
		ledger.SessionFinished, endedAt.UTC().Format(TimeFormat), sessionID, ledger.SessionActive,
	)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	if _, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	return nil
}

// ApplyBalanceDeltas adds the given signed deltas to participant balances
// in a single transaction. Only existing participants are touched, which
// keeps the snapshot's keys a subset of the participant set.
func (s *Store) ApplyBalanceDeltas(ctx context.Context, sessionID string, deltas map[string]float64) error {
	if len(deltas) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for memberID, delta := range deltas {
		_, err := tx.ExecContext(ctx,
			`UPDATE session_members SET balance = balance + ? WHERE session_id = ? AND member_id = ?`,
			delta, sessionID, memberID,
		)
		if err != nil {
			return fmt.Errorf("apply delta for %s: %w", memberID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// SetBalance overwrites one participant's stored balance. Intended for
// tests and manual corrections, not for the live update path.
func (s *Store) SetBalance(ctx context.Context, sessionID, memberID string, balance float64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE session_members SET balance = ? WHERE session_id = ? AND member_id = ?`,
		balance, sessionID, memberID,
	)
	if err != nil {
		return fmt.Errorf("set balance: %w", err)
	}
	return nil
}

func insertParticipant(ctx context.Context, tx *sql.Tx, sessionID string, p ledger.Participant) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO session_members (session_id, member_id, joined_at, balance) VALUES (?, ?, ?, ?)
		 ON CONFLICT(session_id, member_id) DO NOTHING`,
		sessionID, p.MemberID, p.JoinedAt.UTC().Format(TimeFormat), p.Balance,
	)
	if err != nil {
		return fmt.Errorf("insert participant %s: %w", p.MemberID, err)
	}
	return nil
}
