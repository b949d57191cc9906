package event

// MemberCheck is one member's line in a verification report.
type MemberCheck struct {
	MemberID   string  `json:"member_id"`
	Name       string  `json:"name"`
	Stored     float64 `json:"stored"`
	Recomputed float64 `json:"recomputed"`
	Match      bool    `json:"match"`
}

// VerificationPayload captures the payload for verification_run entries.
// It carries the full per-member report so a reader of the log can render
// the result without re-deriving anything.
type VerificationPayload struct {
	OK      bool          `json:"ok"`
	Checks  []MemberCheck `json:"checks"`
	Skipped []string      `json:"skipped,omitempty"`
}

// TotalsPayload captures the payload for totals_recorded entries.
type TotalsPayload struct {
	Balances map[string]float64 `json:"balances"`
}

// TallyBucket breaks a member's commit count for one penalty down by the
// multiplier in effect at commit time. The key "1" is the plain bucket.
type TallyBucket struct {
	Total        int            `json:"total"`
	ByMultiplier map[string]int `json:"by_multiplier"`
}

// TallyPayload captures the payload for tally_recorded entries.
// Keyed by member id, then penalty id.
type TallyPayload struct {
	Counts map[string]map[string]TallyBucket `json:"counts"`
}

// PenaltyTotalsPayload captures the payload for penalty_totals_recorded entries.
type PenaltyTotalsPayload struct {
	Totals map[string]float64 `json:"totals"`
}

// PlaytimePayload captures the payload for playtime_recorded entries.
// Durations are whole seconds per member.
type PlaytimePayload struct {
	Seconds map[string]int64 `json:"seconds"`
}
