package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mhessel/penaltypot/internal/event"
)

// entryRow is the internal type representing an entries table row.
type entryRow struct {
	ID            int64
	SessionID     string
	ClubID        string
	Ts            string
	Kind          string
	MemberID      sql.NullString
	PenaltyID     sql.NullString
	Multiplier    sql.NullFloat64
	SelfAmount    sql.NullFloat64
	OtherAmount   sql.NullFloat64
	TotalAmount   sql.NullFloat64
	PayloadJSON   sql.NullString
	Note          sql.NullString
	InsertedAt    string
	SchemaVersion int
}

// toEntry converts a database row to an Entry.
func (r *entryRow) toEntry() (*event.Entry, error) {
	ts, err := time.Parse(TimeFormat, r.Ts)
	if err != nil {
		return nil, fmt.Errorf("parse ts %q: %w", r.Ts, err)
	}

	insertedAt, err := time.Parse(TimeFormat, r.InsertedAt)
	if err != nil {
		return nil, fmt.Errorf("parse inserted_at %q: %w", r.InsertedAt, err)
	}

	e := &event.Entry{
		ID:            r.ID,
		SessionID:     r.SessionID,
		ClubID:        r.ClubID,
		Ts:            ts,
		Kind:          event.Kind(r.Kind),
		InsertedAt:    insertedAt,
		SchemaVersion: r.SchemaVersion,
	}

	if r.MemberID.Valid {
		e.MemberID = &r.MemberID.String
	}
	if r.PenaltyID.Valid {
		e.PenaltyID = &r.PenaltyID.String
	}
	if r.Multiplier.Valid {
		e.Multiplier = &r.Multiplier.Float64
	}
	if r.SelfAmount.Valid {
		e.SelfAmount = &r.SelfAmount.Float64
	}
	if r.OtherAmount.Valid {
		e.OtherAmount = &r.OtherAmount.Float64
	}
	if r.TotalAmount.Valid {
		e.TotalAmount = &r.TotalAmount.Float64
	}
	if r.PayloadJSON.Valid && r.PayloadJSON.String != "" {
		e.PayloadJSON = json.RawMessage(r.PayloadJSON.String)
	}
	if r.Note.Valid {
		e.Note = &r.Note.String
	}

	return e, nil
}

// entryToRow converts an Entry to a database row.
func entryToRow(e *event.Entry) *entryRow {
	r := &entryRow{
		ID:            e.ID,
		SessionID:     e.SessionID,
		ClubID:        e.ClubID,
		Ts:            e.Ts.UTC().Format(TimeFormat),
		Kind:          string(e.Kind),
		InsertedAt:    e.InsertedAt.UTC().Format(TimeFormat),
		SchemaVersion: e.SchemaVersion,
	}

	if e.MemberID != nil {
		r.MemberID = sql.NullString{String: *e.MemberID, Valid: true}
	}
	if e.PenaltyID != nil {
		r.PenaltyID = sql.NullString{String: *e.PenaltyID, Valid: true}
	}
	if e.Multiplier != nil {
		r.Multiplier = sql.NullFloat64{Float64: *e.Multiplier, Valid: true}
	}
	if e.SelfAmount != nil {
		r.SelfAmount = sql.NullFloat64{Float64: *e.SelfAmount, Valid: true}
	}
	if e.OtherAmount != nil {
		r.OtherAmount = sql.NullFloat64{Float64: *e.OtherAmount, Valid: true}
	}
	if e.TotalAmount != nil {
		r.TotalAmount = sql.NullFloat64{Float64: *e.TotalAmount, Valid: true}
	}
	if len(e.PayloadJSON) > 0 {
		r.PayloadJSON = sql.NullString{String: string(e.PayloadJSON), Valid: true}
	}
	if e.Note != nil {
		r.Note = sql.NullString{String: *e.Note, Valid: true}
	}

	return r
}

// validateEntry checks that required fields are set.
func validateEntry(e *event.Entry) error {
	if !e.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidEntry, e.Kind)
	}
	if e.SessionID == "" {
		return fmt.Errorf("%w: session_id is required", ErrInvalidEntry)
	}
	if e.ClubID == "" {
		return fmt.Errorf("%w: club_id is required", ErrInvalidEntry)
	}
	if e.Ts.IsZero() {
		return fmt.Errorf("%w: ts is required", ErrInvalidEntry)
	}
	if e.InsertedAt.IsZero() {
		return fmt.Errorf("%w: inserted_at is required", ErrInvalidEntry)
	}
	return nil
}
