// Package ledger implements the penalty-fund domain model and the pure
// reductions over a session's log: replaying entries into balances and
// tallying commit counts. Functions here never touch storage; callers pass
// in a frozen snapshot of the log, rules, and roster.
package ledger

import "time"

// AffectMode determines whose balances a commit changes.
type AffectMode string

const (
	// AffectSelf charges the acting member only.
	AffectSelf AffectMode = "SELF"
	// AffectOther charges every other eligible participant.
	AffectOther AffectMode = "OTHER"
	// AffectBoth charges the acting member and every other eligible participant.
	AffectBoth AffectMode = "BOTH"
	// AffectNone makes the commit record-only.
	AffectNone AffectMode = "NONE"
)

// Valid reports whether m is a known affect mode.
func (m AffectMode) Valid() bool {
	switch m {
	case AffectSelf, AffectOther, AffectBoth, AffectNone:
		return true
	}
	return false
}

// Club owns members, penalties, and sessions.
type Club struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Member is a club member. Guests can participate in sessions but are
// flagged for display purposes.
type Member struct {
	ID        string    `json:"id"`
	ClubID    string    `json:"club_id"`
	Name      string    `json:"name"`
	Guest     bool      `json:"guest"`
	CreatedAt time.Time `json:"created_at"`
}

// Penalty is a club's penalty definition. SelfAmount is charged to the
// acting member, OtherAmount to each other eligible participant, subject
// to the affect mode. A session must be replayed against the definitions
// as they existed, so callers pass a frozen rule snapshot.
type Penalty struct {
	ID          string     `json:"id"`
	ClubID      string     `json:"club_id"`
	Name        string     `json:"name"`
	SelfAmount  float64    `json:"self_amount"`
	OtherAmount float64    `json:"other_amount"`
	Affect      AffectMode `json:"affect"`
	Active      bool       `json:"active"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Session statuses.
const (
	SessionActive   = "active"
	SessionFinished = "finished"
)

// Participant is a member's membership in one session, together with the
// live balance the incremental update path maintains for them.
type Participant struct {
	MemberID string    `json:"member_id"`
	JoinedAt time.Time `json:"joined_at"`
	Balance  float64   `json:"balance"`
}

// Session is a timed multi-participant activity. The stored participant
// balances are the live snapshot; replay recomputes them from the log.
type Session struct {
	ID           string        `json:"id"`
	ClubID       string        `json:"club_id"`
	Status       string        `json:"status"`
	Participants []Participant `json:"participants"`
	StartedAt    time.Time     `json:"started_at"`
	EndedAt      *time.Time    `json:"ended_at,omitempty"`
}

// Finished reports whether the session is immutable (except for
// verification appends).
func (s *Session) Finished() bool {
	return s.Status == SessionFinished
}

// MemberIDs returns the ids of all participants in roster order.
func (s *Session) MemberIDs() []string {
	ids := make([]string, len(s.Participants))
	for i, p := range s.Participants {
		ids[i] = p.MemberID
	}
	return ids
}

// StoredBalances returns the live balance snapshot as a map.
func (s *Session) StoredBalances() Balances {
	b := make(Balances, len(s.Participants))
	for _, p := range s.Participants {
		b[p.MemberID] = p.Balance
	}
	return b
}

// RuleSet indexes penalties by id for replay lookups.
type RuleSet map[string]Penalty

// NewRuleSet builds a RuleSet from a penalty slice.
func NewRuleSet(penalties []Penalty) RuleSet {
	rs := make(RuleSet, len(penalties))
	for _, p := range penalties {
		rs[p.ID] = p
	}
	return rs
}
