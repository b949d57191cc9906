package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mhessel/penaltypot/internal/event"
)

const (
	defaultLimit = 100
	maxLimit     = 500
)

// AppendEntry appends an entry to a session's log.
// The log is append-only: entries are never updated or deleted.
// On success, sets e.ID to the inserted row's id.
func (s *Store) AppendEntry(ctx context.Context, e *event.Entry) error {
	if err := validateEntry(e); err != nil {
		return err
	}

	const query = `
	INSERT INTO entries
	(session_id, club_id, ts, kind, member_id, penalty_id, multiplier, self_amount, other_amount, total_amount, payload_json, note, inserted_at, schema_version)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	row := entryToRow(e)
	result, err := s.db.ExecContext(ctx, query,
		row.SessionID,
		row.ClubID,
		row.Ts,
		row.Kind,
		row.MemberID,
		row.PenaltyID,
		row.Multiplier,
		row.SelfAmount,
		row.OtherAmount,
		row.TotalAmount,
		row.PayloadJSON,
		row.Note,
		row.InsertedAt,
		CurrentSchemaVersion,
	)
	if err != nil {
		return fmt.Errorf("append entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	e.ID = id
	e.SchemaVersion = CurrentSchemaVersion
	return nil
}

// ListSessionEntries returns a session's full log in (ts, id) order.
// This order is authoritative for replay.
func (s *Store) ListSessionEntries(ctx context.Context, sessionID string) ([]event.Entry, error) {
	const query = `
	SELECT id, session_id, club_id, ts, kind, member_id, penalty_id, multiplier, self_amount, other_amount, total_amount, payload_json, note, inserted_at, schema_version
	FROM entries
	WHERE session_id = ?
	ORDER BY ts ASC, id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list session entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// QueryFilter contains filter options for querying entries.
type QueryFilter struct {
	SessionID string
	Kind      *event.Kind
	Since     *time.Time
	Until     *time.Time
	Limit     int
	Cursor    *string
}

// QueryResult contains the result of a query.
type QueryResult struct {
	Items      []event.Entry
	NextCursor *string
}

// QueryEntries queries a session's entries with optional filters and
// cursor-based pagination.
func (s *Store) QueryEntries(ctx context.Context, f QueryFilter) (QueryResult, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultLimit
	} else if limit > maxLimit {
		limit = maxLimit
	}

	var (
		sb   strings.Builder
		args []any
	)

	sb.WriteString(`
SELECT id, session_id, club_id, ts, kind, member_id, penalty_id, multiplier, self_amount, other_amount, total_amount, payload_json, note, inserted_at, schema_version
FROM entries
WHERE session_id = ?
`)
	args = append(args, f.SessionID)

	if f.Kind != nil && *f.Kind != "" {
		sb.WriteString(" AND kind = ?")
		args = append(args, string(*f.Kind))
	}
	if f.Since != nil {
		sb.WriteString(" AND ts >= ?")
		args = append(args, f.Since.UTC().Format(TimeFormat))
	}
	if f.Until != nil {
		sb.WriteString(" AND ts < ?")
		args = append(args, f.Until.UTC().Format(TimeFormat))
	}

	// Cursor handling (composite cursor: ts|id)
	if f.Cursor != nil && *f.Cursor != "" {
		cursorTime, cursorID, err := decodeCursor(*f.Cursor)
		if err != nil {
			return QueryResult{}, fmt.Errorf("decode cursor: %w", err)
		}
		sb.WriteString(" AND (ts > ? OR (ts = ? AND id > ?))")
		cursorTimeStr := cursorTime.UTC().Format(TimeFormat)
		args = append(args, cursorTimeStr, cursorTimeStr, cursorID)
	}

	sb.WriteString(" ORDER BY ts ASC, id ASC")
	sb.WriteString(" LIMIT ?")
	args = append(args, limit+1) // fetch one extra to detect next page

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return QueryResult{}, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	items, err := scanEntries(rows)
	if err != nil {
		return QueryResult{}, err
	}

	var nextCursor *string
	if len(items) > limit {
		last := items[limit-1]
		items = items[:limit]
		c := EncodeCursor(last.Ts, last.ID)
		nextCursor = &c
	}

	return QueryResult{Items: items, NextCursor: nextCursor}, nil
}

// CurrentMultiplier returns the ambient multiplier for a session: the value
// of the latest multiplier_changed entry that carries one, or 1 if none.
// The live append path uses it to stamp commits at write time.
func (s *Store) CurrentMultiplier(ctx context.Context, sessionID string) (float64, error) {
	const query = `
	SELECT multiplier FROM entries
	WHERE session_id = ? AND kind = ? AND multiplier IS NOT NULL
	ORDER BY ts DESC, id DESC
	LIMIT 1
	`

	var m float64
	err := s.db.QueryRowContext(ctx, query, sessionID, string(event.KindMultiplierChanged)).Scan(&m)
	if errors.Is(err, sql.ErrNoRows) {
		return 1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("current multiplier: %w", err)
	}
	return m, nil
}

// CountSessionEntries returns the number of entries in a session's log.
func (s *Store) CountSessionEntries(ctx context.Context, sessionID string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries WHERE session_id = ?`, sessionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return count, nil
}

func scanEntries(rows *sql.Rows) ([]event.Entry, error) {
	items := make([]event.Entry, 0, 16)
	for rows.Next() {
		var r entryRow
		if err := rows.Scan(
			&r.ID, &r.SessionID, &r.ClubID, &r.Ts, &r.Kind,
			&r.MemberID, &r.PenaltyID, &r.Multiplier,
			&r.SelfAmount, &r.OtherAmount, &r.TotalAmount,
			&r.PayloadJSON, &r.Note, &r.InsertedAt, &r.SchemaVersion,
		); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e, err := r.toEntry()
		if err != nil {
			return nil, err
		}
		items = append(items, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return items, nil
}
