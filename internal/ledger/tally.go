package ledger

import (
	"strconv"

	"github.com/mhessel/penaltypot/internal/event"
)

// CommitCount is one member's count for one penalty, broken down by the
// multiplier in effect at each commit. Bucket key 1 is the plain bucket;
// it stays distinguishable from tagged buckets because buckets are keyed
// by the resolved value.
type CommitCount struct {
	Total        int
	ByMultiplier map[float64]int
}

// TallyResult maps member id to penalty id to commit counts.
type TallyResult map[string]map[string]*CommitCount

// Tally counts commit entries per participant per penalty, bucketed by the
// multiplier recorded at commit time. It is a counting facility only and
// computes no monetary amounts, but it resolves multipliers with the same
// rule as Replay so the two views of the log never disagree.
func Tally(entries []event.Entry, participants []string) TallyResult {
	active := make(map[string]struct{}, len(participants))
	for _, id := range participants {
		active[id] = struct{}{}
	}

	result := make(TallyResult, len(participants))
	multiplier := 1.0

	for i := range entries {
		e := &entries[i]
		if e.Kind == event.KindMultiplierChanged {
			if e.Multiplier != nil {
				multiplier = *e.Multiplier
			}
			continue
		}
		if !e.Kind.IsCommit() || e.MemberID == nil || e.PenaltyID == nil {
			continue
		}
		if _, ok := active[*e.MemberID]; !ok {
			continue
		}

		byMember, ok := result[*e.MemberID]
		if !ok {
			byMember = make(map[string]*CommitCount)
			result[*e.MemberID] = byMember
		}
		count, ok := byMember[*e.PenaltyID]
		if !ok {
			count = &CommitCount{ByMultiplier: make(map[float64]int)}
			byMember[*e.PenaltyID] = count
		}

		count.Total++
		count.ByMultiplier[ResolveMultiplier(e, multiplier)]++
	}

	return result
}

// FormatMultiplier renders a multiplier bucket key for JSON payloads,
// which cannot carry float-keyed maps.
func FormatMultiplier(m float64) string {
	return strconv.FormatFloat(m, 'f', -1, 64)
}

// Payload converts a TallyResult into the JSON-friendly form recorded in
// tally_recorded entries and returned by the API.
func (t TallyResult) Payload() event.TallyPayload {
	counts := make(map[string]map[string]event.TallyBucket, len(t))
	for memberID, byPenalty := range t {
		buckets := make(map[string]event.TallyBucket, len(byPenalty))
		for penaltyID, c := range byPenalty {
			byMult := make(map[string]int, len(c.ByMultiplier))
			for m, n := range c.ByMultiplier {
				byMult[FormatMultiplier(m)] = n
			}
			buckets[penaltyID] = event.TallyBucket{Total: c.Total, ByMultiplier: byMult}
		}
		counts[memberID] = buckets
	}
	return event.TallyPayload{Counts: counts}
}
