// Package event provides the shared log entry model for PenaltyPot.
// This package is used by api, ledger, app, notify, and store packages.
package event

import (
	"encoding/json"
	"time"
)

// Kind identifies the kind of a session log entry.
type Kind string

// Roster and award entries.
const (
	// KindMemberAdded records a member joining a session. The entry's
	// timestamp establishes the member's join time for replay gating.
	KindMemberAdded Kind = "member_added"
	// KindTitleAwarded records an informational title award.
	KindTitleAwarded Kind = "title_awarded"
)

// Balance-affecting entries.
const (
	// KindMultiplierChanged records an ambient multiplier update. The new
	// value applies to subsequent commits until superseded.
	KindMultiplierChanged Kind = "multiplier_changed"
	// KindPenaltyCommitted records a qualifying action in the credit direction.
	KindPenaltyCommitted Kind = "penalty_committed"
	// KindPenaltyRevoked records a qualifying action in the debit direction.
	KindPenaltyRevoked Kind = "penalty_revoked"
	// KindRewardDeducted records a cost charged to a winner.
	KindRewardDeducted Kind = "reward_deducted"
)

// Snapshot and audit entries. These never affect balances.
const (
	// KindTotalsRecorded records the end-of-session balance totals.
	KindTotalsRecorded Kind = "totals_recorded"
	// KindTallyRecorded records the end-of-session commit counts.
	KindTallyRecorded Kind = "tally_recorded"
	// KindPenaltyTotalsRecorded records per-penalty monetary totals.
	KindPenaltyTotalsRecorded Kind = "penalty_totals_recorded"
	// KindPlaytimeRecorded records per-member session durations.
	KindPlaytimeRecorded Kind = "playtime_recorded"
	// KindVerificationRun records the outcome of a verification run.
	KindVerificationRun Kind = "verification_run"
)

// Valid reports whether k is a known entry kind.
func (k Kind) Valid() bool {
	switch k {
	case KindMemberAdded, KindTitleAwarded,
		KindMultiplierChanged, KindPenaltyCommitted, KindPenaltyRevoked, KindRewardDeducted,
		KindTotalsRecorded, KindTallyRecorded, KindPenaltyTotalsRecorded,
		KindPlaytimeRecorded, KindVerificationRun:
		return true
	}
	return false
}

// IsCommit reports whether k is a commit entry (either direction).
func (k Kind) IsCommit() bool {
	return k == KindPenaltyCommitted || k == KindPenaltyRevoked
}

// Entry represents a single immutable entry in a session's log.
// Entries are append-only; a session's log ordered by (Ts, ID) is the
// authoritative history that replay reduces to balances.
type Entry struct {
	ID            int64           `json:"id"`
	SessionID     string          `json:"session_id"`
	ClubID        string          `json:"club_id"`
	Ts            time.Time       `json:"ts"`
	Kind          Kind            `json:"kind"`
	MemberID      *string         `json:"member_id,omitempty"`
	PenaltyID     *string         `json:"penalty_id,omitempty"`
	Multiplier    *float64        `json:"multiplier,omitempty"`
	SelfAmount    *float64        `json:"self_amount,omitempty"`
	OtherAmount   *float64        `json:"other_amount,omitempty"`
	TotalAmount   *float64        `json:"total_amount,omitempty"`
	PayloadJSON   json.RawMessage `json:"payload,omitempty"`
	Note          *string         `json:"note,omitempty"`
	InsertedAt    time.Time       `json:"inserted_at"`
	SchemaVersion int             `json:"-"`
}

// StringPtr returns a pointer to the given string.
// Useful for setting optional fields.
func StringPtr(s string) *string {
	return &s
}

// Float64Ptr returns a pointer to the given float64.
func Float64Ptr(f float64) *float64 {
	return &f
}
