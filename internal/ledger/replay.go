package ledger

import (
	"math"
	"time"

	"github.com/mhessel/penaltypot/internal/event"
)

// MatchTolerance is the maximum absolute difference at which a stored and a
// recomputed balance still count as equal. Absorbs floating-point drift from
// the two independent computation paths.
const MatchTolerance = 0.001

// Balances maps member id to signed amount. Positive means the member owes
// the pot.
type Balances map[string]float64

// WithinTolerance reports whether two amounts agree within MatchTolerance.
func WithinTolerance(a, b float64) bool {
	return math.Abs(a-b) < MatchTolerance
}

// Replay reduces a session's complete ordered log to per-participant
// balances. It is a pure left-to-right fold: the same log, rules, and
// roster always produce the same balances.
//
// Entries must already be in (ts, id) order. Commit entries referencing a
// penalty missing from rules, or missing their member or penalty id, are
// skipped; a defective entry never aborts the reduction.
func Replay(entries []event.Entry, rules RuleSet, participants []string) Balances {
	balances := make(Balances, len(participants))
	for _, id := range participants {
		balances[id] = 0
	}

	joined := JoinTimes(entries)

	// Ambient multiplier is threaded through the fold, not kept as shared
	// state, so replay stays restartable.
	multiplier := 1.0

	for i := range entries {
		e := &entries[i]
		switch e.Kind {
		case event.KindMultiplierChanged:
			if e.Multiplier != nil {
				multiplier = *e.Multiplier
			}
		case event.KindPenaltyCommitted, event.KindPenaltyRevoked:
			applyCommit(balances, joined, rules, e, multiplier)
		case event.KindRewardDeducted:
			applyReward(balances, e)
		case event.KindMemberAdded, event.KindTitleAwarded,
			event.KindTotalsRecorded, event.KindTallyRecorded,
			event.KindPenaltyTotalsRecorded, event.KindPlaytimeRecorded,
			event.KindVerificationRun:
			// Informational entries carry no balance effect.
		}
	}

	return balances
}

// JoinTimes returns each member's effective join time: the timestamp of
// their earliest member_added entry. Members without one are treated as
// present from the start of the log and get no entry in the map.
func JoinTimes(entries []event.Entry) map[string]time.Time {
	joined := make(map[string]time.Time)
	for i := range entries {
		e := &entries[i]
		if e.Kind != event.KindMemberAdded || e.MemberID == nil {
			continue
		}
		if _, ok := joined[*e.MemberID]; !ok {
			joined[*e.MemberID] = e.Ts
		}
	}
	return joined
}

// ResolveMultiplier returns the multiplier to apply for an entry: the
// entry's own stamped value when present, otherwise the ambient value.
// The stamped value wins so historical entries stay correct even when a
// later multiplier change precedes them in replay time.
func ResolveMultiplier(e *event.Entry, ambient float64) float64 {
	if e.Multiplier != nil {
		return *e.Multiplier
	}
	return ambient
}

func applyCommit(balances Balances, joined map[string]time.Time, rules RuleSet, e *event.Entry, ambient float64) {
	if e.MemberID == nil || e.PenaltyID == nil {
		return // malformed entry, skip its contribution
	}
	rule, ok := rules[*e.PenaltyID]
	if !ok {
		return // dangling penalty reference, skip
	}

	mult := ResolveMultiplier(e, ambient)
	delta := 1.0
	if e.Kind == event.KindPenaltyRevoked {
		delta = -1.0
	}
	self := rule.SelfAmount * mult
	other := rule.OtherAmount * mult
	actor := *e.MemberID

	switch rule.Affect {
	case AffectSelf:
		chargeSelf(balances, actor, delta*self)
	case AffectOther:
		chargeOthers(balances, joined, actor, e.Ts, delta*other)
	case AffectBoth:
		chargeSelf(balances, actor, delta*self)
		chargeOthers(balances, joined, actor, e.Ts, delta*other)
	case AffectNone:
		// Record-only.
	}
}

// chargeSelf applies amount to the actor if they are an active participant.
// Actors outside the roster are dangling references and contribute nothing.
func chargeSelf(balances Balances, actor string, amount float64) {
	if _, ok := balances[actor]; ok {
		balances[actor] += amount
	}
}

// chargeOthers applies amount to every active participant other than the
// actor whose join time is at or before ts. Members who joined later were
// not present for the commit and must not be charged retroactively.
func chargeOthers(balances Balances, joined map[string]time.Time, actor string, ts time.Time, amount float64) {
	for id := range balances {
		if id == actor {
			continue
		}
		if jt, ok := joined[id]; ok && jt.After(ts) {
			continue
		}
		balances[id] += amount
	}
}

// applyReward subtracts the absolute recorded total from the referenced
// member. Rewards are always a cost to the recipient regardless of the
// sign stored on the entry.
func applyReward(balances Balances, e *event.Entry) {
	if e.MemberID == nil || e.TotalAmount == nil {
		return
	}
	if _, ok := balances[*e.MemberID]; ok {
		balances[*e.MemberID] -= math.Abs(*e.TotalAmount)
	}
}

// PenaltyTotals attributes every balance delta of the replay to the penalty
// that caused it, returning the signed total moved per penalty id. Reward
// deductions are attributed to their penalty when the entry references one.
// Used for the end-of-session penalty totals snapshot.
func PenaltyTotals(entries []event.Entry, rules RuleSet, participants []string) map[string]float64 {
	active := make(map[string]struct{}, len(participants))
	for _, id := range participants {
		active[id] = struct{}{}
	}
	joined := JoinTimes(entries)
	totals := make(map[string]float64)
	multiplier := 1.0

	for i := range entries {
		e := &entries[i]
		switch e.Kind {
		case event.KindMultiplierChanged:
			if e.Multiplier != nil {
				multiplier = *e.Multiplier
			}
		case event.KindPenaltyCommitted, event.KindPenaltyRevoked:
			if e.MemberID == nil || e.PenaltyID == nil {
				continue
			}
			rule, ok := rules[*e.PenaltyID]
			if !ok {
				continue
			}
			mult := ResolveMultiplier(e, multiplier)
			delta := 1.0
			if e.Kind == event.KindPenaltyRevoked {
				delta = -1.0
			}
			totals[rule.ID] += commitVolume(rule, active, joined, *e.MemberID, e.Ts, mult) * delta
		case event.KindRewardDeducted:
			if e.PenaltyID == nil || e.MemberID == nil || e.TotalAmount == nil {
				continue
			}
			if _, ok := active[*e.MemberID]; !ok {
				continue
			}
			totals[*e.PenaltyID] -= math.Abs(*e.TotalAmount)
		}
	}

	return totals
}

// commitVolume returns the total unsigned amount a single commit moves
// across all affected balances at the given multiplier.
func commitVolume(rule Penalty, active map[string]struct{}, joined map[string]time.Time, actor string, ts time.Time, mult float64) float64 {
	var total float64
	chargeActor := rule.Affect == AffectSelf || rule.Affect == AffectBoth
	chargeRest := rule.Affect == AffectOther || rule.Affect == AffectBoth

	if chargeActor {
		if _, ok := active[actor]; ok {
			total += rule.SelfAmount * mult
		}
	}
	if chargeRest {
		for id := range active {
			if id == actor {
				continue
			}
			if jt, ok := joined[id]; ok && jt.After(ts) {
				continue
			}
			total += rule.OtherAmount * mult
		}
	}
	return total
}
