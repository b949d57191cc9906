package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/mhessel/penaltypot/internal/event"
	"github.com/mhessel/penaltypot/internal/ledger"
)

// lookupTimeout bounds name resolution so a slow database never stalls
// the append path.
const lookupTimeout = 2 * time.Second

// NameSource resolves member and penalty ids to display data.
type NameSource interface {
	GetMember(ctx context.Context, id string) (*ledger.Member, error)
	GetPenalty(ctx context.Context, id string) (*ledger.Penalty, error)
	GetSession(ctx context.Context, sessionID string) (*ledger.Session, error)
}

// EntryBridge turns appended log entries into notification items.
// It implements the publish interface the app services use, so the
// whole notification flow hangs off the same path as the SSE stream.
type EntryBridge struct {
	Notifier *Notifier
	Source   NameSource
	Logger   *slog.Logger
}

// Publish converts an entry into a notification item and enqueues it.
// Unknown or snapshot-only kinds are ignored.
func (b *EntryBridge) Publish(e *event.Entry) {
	if e == nil || b.Notifier == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
	defer cancel()

	var it *Item

	switch e.Kind {
	case event.KindPenaltyCommitted, event.KindPenaltyRevoked:
		it = b.commitItem(ctx, e)

	case event.KindRewardDeducted:
		it = &Item{
			Type:       ItemReward,
			Ts:         e.Ts,
			MemberName: b.memberName(ctx, e.MemberID),
		}
		if e.TotalAmount != nil {
			it.Amount = *e.TotalAmount
		}

	case event.KindMultiplierChanged:
		if e.Multiplier == nil {
			return
		}
		it = &Item{Type: ItemMultiplier, Ts: e.Ts, Multiplier: *e.Multiplier}

	case event.KindMemberAdded:
		it = &Item{
			Type:       ItemMemberJoined,
			Ts:         e.Ts,
			MemberName: b.memberName(ctx, e.MemberID),
		}

	case event.KindVerificationRun:
		var payload event.VerificationPayload
		if err := json.Unmarshal(e.PayloadJSON, &payload); err != nil {
			b.logger().Warn("bad verification payload", "entry_id", e.ID, "error", err)
			return
		}
		it = &Item{Type: ItemVerification, Ts: e.Ts, Verification: &payload}

	case event.KindTotalsRecorded:
		it = b.summaryItem(ctx, e)

	default:
		return
	}

	if it != nil {
		b.Notifier.Enqueue(it)
	}
}

func (b *EntryBridge) commitItem(ctx context.Context, e *event.Entry) *Item {
	it := &Item{
		Type:       ItemCommit,
		Ts:         e.Ts,
		MemberName: b.memberName(ctx, e.MemberID),
		Multiplier: 1,
	}
	if e.Kind == event.KindPenaltyRevoked {
		it.Type = ItemRevoke
	}
	if e.Multiplier != nil {
		it.Multiplier = *e.Multiplier
	}
	if e.SelfAmount != nil {
		it.Amount = *e.SelfAmount
	}

	if e.PenaltyID != nil {
		if p, err := b.Source.GetPenalty(ctx, *e.PenaltyID); err == nil {
			it.PenaltyName = p.Name
		} else {
			it.PenaltyName = *e.PenaltyID
		}
	}
	return it
}

func (b *EntryBridge) summaryItem(ctx context.Context, e *event.Entry) *Item {
	var payload event.TotalsPayload
	if err := json.Unmarshal(e.PayloadJSON, &payload); err != nil {
		b.logger().Warn("bad totals payload", "entry_id", e.ID, "error", err)
		return nil
	}

	summary := &SessionSummary{Balances: make(map[string]float64, len(payload.Balances))}
	for memberID, balance := range payload.Balances {
		name := memberID
		if m, err := b.Source.GetMember(ctx, memberID); err == nil {
			name = m.Name
		}
		summary.Balances[name] = balance
	}

	if session, err := b.Source.GetSession(ctx, e.SessionID); err == nil {
		summary.Duration = e.Ts.Sub(session.StartedAt)
	}

	return &Item{Type: ItemSummary, Ts: e.Ts, Summary: summary}
}

func (b *EntryBridge) memberName(ctx context.Context, id *string) string {
	if id == nil {
		return ""
	}
	if m, err := b.Source.GetMember(ctx, *id); err == nil {
		return m.Name
	}
	return *id
}

func (b *EntryBridge) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default()
}
