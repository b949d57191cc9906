package notify

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mhessel/penaltypot/internal/event"
	"github.com/mhessel/penaltypot/internal/ledger"
)

// Discord embed color constants.
const (
	ColorGreen = 0x00FF00 // verification passed
	ColorRed   = 0xFF0000 // verification failed
	ColorBlue  = 0x5865F2 // informational (Discord blurple)
)

// MaxEmbedsPerRequest is the Discord API limit for embeds per message.
const MaxEmbedsPerRequest = 10

// DiscordPayload represents a Discord webhook request body.
type DiscordPayload struct {
	Content string         `json:"content,omitempty"`
	Embeds  []DiscordEmbed `json:"embeds,omitempty"`
}

// DiscordEmbed represents a Discord embed.
type DiscordEmbed struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Color       int    `json:"color,omitempty"`
	Timestamp   string `json:"timestamp,omitempty"`
}

// ItemType classifies a queued notification item.
type ItemType int

const (
	ItemCommit ItemType = iota
	ItemRevoke
	ItemReward
	ItemMultiplier
	ItemMemberJoined
	ItemVerification
	ItemSummary
)

// Item is one queued notification.
type Item struct {
	Type        ItemType
	Ts          time.Time
	MemberName  string
	PenaltyName string
	Multiplier  float64
	Amount      float64

	Verification *event.VerificationPayload
	Summary      *SessionSummary
}

// SessionSummary carries the data for a session closing notification.
// Balances are keyed by member display name.
type SessionSummary struct {
	Balances map[string]float64
	Duration time.Duration
}

// BuildPayloads creates Discord payloads from batched items.
// Returns multiple payloads when the embeds exceed MaxEmbedsPerRequest.
func BuildPayloads(items []*Item) []DiscordPayload {
	if len(items) == 0 {
		return nil
	}

	var ledgerLines []string
	var joins []*Item
	var embeds []DiscordEmbed

	for _, it := range items {
		switch it.Type {
		case ItemCommit, ItemRevoke, ItemReward:
			ledgerLines = append(ledgerLines, ledgerLine(it))
		case ItemMemberJoined:
			joins = append(joins, it)
		case ItemMultiplier:
			embeds = append(embeds, DiscordEmbed{
				Title:       "Multiplier Changed",
				Description: fmt.Sprintf("Ambient multiplier is now **%s**", ledger.FormatMultiplier(it.Multiplier)),
				Color:       ColorBlue,
				Timestamp:   it.Ts.Format(time.RFC3339),
			})
		case ItemVerification:
			embeds = append(embeds, buildVerificationEmbed(it))
		case ItemSummary:
			embeds = append(embeds, buildSummaryEmbed(it))
		}
	}

	if len(ledgerLines) > 0 {
		embeds = append(embeds, DiscordEmbed{
			Title:       "Penalty Log",
			Description: strings.Join(ledgerLines, "\n"),
			Color:       ColorBlue,
			Timestamp:   items[len(items)-1].Ts.Format(time.RFC3339),
		})
	}
	if len(joins) > 0 {
		embeds = append(embeds, buildJoinsEmbed(joins))
	}

	return splitIntoPayloads(embeds)
}

func ledgerLine(it *Item) string {
	switch it.Type {
	case ItemRevoke:
		return fmt.Sprintf("~~**%s**: %s~~ (revoked)", it.MemberName, it.PenaltyName)
	case ItemReward:
		return fmt.Sprintf("**%s**: reward, %.2f deducted", it.MemberName, it.Amount)
	default:
		line := fmt.Sprintf("**%s**: %s", it.MemberName, it.PenaltyName)
		if it.Multiplier != 1 {
			line += fmt.Sprintf(" (×%s)", ledger.FormatMultiplier(it.Multiplier))
		}
		return line
	}
}

func buildJoinsEmbed(items []*Item) DiscordEmbed {
	names := make([]string, len(items))
	for i, it := range items {
		names[i] = it.MemberName
	}

	var desc string
	if len(items) == 1 {
		desc = fmt.Sprintf("**%s** joined the session", names[0])
	} else {
		desc = fmt.Sprintf("**%d members** joined: %s", len(items), strings.Join(names, ", "))
	}

	return DiscordEmbed{
		Title:       "Member Joined",
		Description: desc,
		Color:       ColorBlue,
		Timestamp:   items[len(items)-1].Ts.Format(time.RFC3339),
	}
}

func buildVerificationEmbed(it *Item) DiscordEmbed {
	v := it.Verification

	if v.OK {
		return DiscordEmbed{
			Title:       "Verification Passed",
			Description: fmt.Sprintf("All %d balances match the replayed log.", len(v.Checks)),
			Color:       ColorGreen,
			Timestamp:   it.Ts.Format(time.RFC3339),
		}
	}

	var lines []string
	for _, c := range v.Checks {
		if c.Match {
			continue
		}
		lines = append(lines, fmt.Sprintf("**%s**: stored %.2f, replayed %.2f", c.Name, c.Stored, c.Recomputed))
	}
	return DiscordEmbed{
		Title:       "Verification FAILED",
		Description: strings.Join(lines, "\n"),
		Color:       ColorRed,
		Timestamp:   it.Ts.Format(time.RFC3339),
	}
}

func buildSummaryEmbed(it *Item) DiscordEmbed {
	s := it.Summary

	names := make([]string, 0, len(s.Balances))
	for name := range s.Balances {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names))
	for _, name := range names {
		lines = append(lines, fmt.Sprintf("**%s**: %.2f", name, s.Balances[name]))
	}

	desc := strings.Join(lines, "\n")
	if s.Duration > 0 {
		desc += fmt.Sprintf("\n\nSession lasted %s.", s.Duration.Round(time.Minute))
	}

	return DiscordEmbed{
		Title:       "Session Finished",
		Description: desc,
		Color:       ColorBlue,
		Timestamp:   it.Ts.Format(time.RFC3339),
	}
}

func splitIntoPayloads(embeds []DiscordEmbed) []DiscordPayload {
	if len(embeds) == 0 {
		return nil
	}

	var payloads []DiscordPayload
	for i := 0; i < len(embeds); i += MaxEmbedsPerRequest {
		end := i + MaxEmbedsPerRequest
		if end > len(embeds) {
			end = len(embeds)
		}
		payloads = append(payloads, DiscordPayload{Embeds: embeds[i:end]})
	}
	return payloads
}
