package notify

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mhessel/penaltypot/internal/event"
)

var verificationOK = event.VerificationPayload{
	OK: true,
	Checks: []event.MemberCheck{
		{MemberID: "m1", Name: "Alice", Stored: 5, Recomputed: 5, Match: true},
	},
}

var verificationFail = event.VerificationPayload{
	OK: false,
	Checks: []event.MemberCheck{
		{MemberID: "m1", Name: "Alice", Stored: 6, Recomputed: 5, Match: false},
		{MemberID: "m2", Name: "Bert", Stored: 0, Recomputed: 0, Match: true},
	},
}

var allOn = FilterConfig{
	NotifyOnCommit:     true,
	NotifyOnRoster:     true,
	NotifyOnMultiplier: true,
	NotifyOnVerify:     true,
	NotifyOnSummary:    true,
}

// fakeSender records payloads and returns scripted results.
type fakeSender struct {
	mu         sync.Mutex
	payloads   []DiscordPayload
	results    []SendResult
	retryAfter time.Duration
}

func (f *fakeSender) Send(ctx context.Context, payload DiscordPayload) (SendResult, time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, payload)
	if len(f.results) > 0 {
		r := f.results[0]
		f.results = f.results[1:]
		return r, f.retryAfter
	}
	return SendOK, 0
}

func (f *fakeSender) sent() []DiscordPayload {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]DiscordPayload, len(f.payloads))
	copy(out, f.payloads)
	return out
}

// fakeTimer collects scheduled callbacks for manual firing.
type fakeTimer struct {
	mu        sync.Mutex
	callbacks []func()
}

type fakeTimerHandle struct{}

func (fakeTimerHandle) Stop() bool { return true }

func (f *fakeTimer) afterFunc(d time.Duration, fn func()) TimerHandle {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callbacks = append(f.callbacks, fn)
	return fakeTimerHandle{}
}

func (f *fakeTimer) fire() {
	f.mu.Lock()
	cbs := f.callbacks
	f.callbacks = nil
	f.mu.Unlock()
	for _, cb := range cbs {
		cb()
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func startNotifier(t *testing.T, fs *fakeSender, ft *fakeTimer, opts ...NotifierOption) *Notifier {
	t.Helper()
	opts = append([]NotifierOption{WithAfterFunc(ft.afterFunc)}, opts...)
	n := NewNotifier(fs, 1, allOn, opts...)
	ctx, cancel := context.WithCancel(context.Background())
	go n.Run(ctx)
	t.Cleanup(func() {
		cancel()
		stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
		defer stopCancel()
		n.Stop(stopCtx)
	})
	return n
}

func TestNotifier_BatchesItems(t *testing.T) {
	fs := &fakeSender{}
	ft := &fakeTimer{}
	n := startNotifier(t, fs, ft)

	now := time.Now()
	n.Enqueue(&Item{Type: ItemCommit, Ts: now, MemberName: "Alice", PenaltyName: "Gutter ball", Multiplier: 1})
	n.Enqueue(&Item{Type: ItemCommit, Ts: now, MemberName: "Bert", PenaltyName: "Gutter ball", Multiplier: 2})

	waitFor(t, func() bool { return n.QueueLength() == 2 })
	ft.fire()
	waitFor(t, func() bool { return len(fs.sent()) == 1 })

	payload := fs.sent()[0]
	if len(payload.Embeds) != 1 {
		t.Fatalf("embeds = %d, want one batched penalty log", len(payload.Embeds))
	}
	desc := payload.Embeds[0].Description
	if !strings.Contains(desc, "Alice") || !strings.Contains(desc, "Bert") {
		t.Errorf("description missing names: %q", desc)
	}
	if !strings.Contains(desc, "×2") {
		t.Errorf("description missing multiplier: %q", desc)
	}
}

func TestNotifier_CoalescesMultiplierChanges(t *testing.T) {
	fs := &fakeSender{}
	ft := &fakeTimer{}
	n := startNotifier(t, fs, ft)

	now := time.Now()
	n.Enqueue(&Item{Type: ItemMultiplier, Ts: now, Multiplier: 2})
	n.Enqueue(&Item{Type: ItemMultiplier, Ts: now, Multiplier: 3})

	waitFor(t, func() bool { return n.QueueLength() == 1 })
	ft.fire()
	waitFor(t, func() bool { return len(fs.sent()) == 1 })

	payload := fs.sent()[0]
	if len(payload.Embeds) != 1 {
		t.Fatalf("embeds = %d, want 1", len(payload.Embeds))
	}
	if !strings.Contains(payload.Embeds[0].Description, "**3**") {
		t.Errorf("expected latest multiplier, got %q", payload.Embeds[0].Description)
	}
}

func TestNotifier_FilterSuppressesItems(t *testing.T) {
	fs := &fakeSender{}
	ft := &fakeTimer{}
	n := NewNotifier(fs, 1, FilterConfig{NotifyOnCommit: true}, WithAfterFunc(ft.afterFunc))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go n.Run(ctx)

	n.Enqueue(&Item{Type: ItemMemberJoined, Ts: time.Now(), MemberName: "Clara"})
	n.Enqueue(&Item{Type: ItemCommit, Ts: time.Now(), MemberName: "Alice", PenaltyName: "Gutter ball", Multiplier: 1})

	waitFor(t, func() bool { return n.QueueLength() == 1 })
}

func TestNotifier_RetryableKeepsLaterItemsDuringBackoff(t *testing.T) {
	fs := &fakeSender{results: []SendResult{SendRetryable}}
	ft := &fakeTimer{}
	n := startNotifier(t, fs, ft)

	n.Enqueue(&Item{Type: ItemCommit, Ts: time.Now(), MemberName: "Alice", PenaltyName: "Gutter ball", Multiplier: 1})
	waitFor(t, func() bool { return n.QueueLength() == 1 })
	ft.fire()
	waitFor(t, func() bool { return len(fs.sent()) == 1 })

	// The notifier is now in backoff; new items stay queued on flush.
	n.Enqueue(&Item{Type: ItemCommit, Ts: time.Now(), MemberName: "Bert", PenaltyName: "Gutter ball", Multiplier: 1})
	waitFor(t, func() bool { return n.QueueLength() == 1 })
	ft.fire()

	time.Sleep(50 * time.Millisecond)
	if got := len(fs.sent()); got != 1 {
		t.Errorf("sends during backoff = %d, want 1", got)
	}
	if n.QueueLength() != 1 {
		t.Errorf("queue length = %d, want 1 (kept during backoff)", n.QueueLength())
	}
}

func TestNotifier_FatalDisables(t *testing.T) {
	fs := &fakeSender{results: []SendResult{SendFatal}}
	ft := &fakeTimer{}
	n := startNotifier(t, fs, ft)

	n.Enqueue(&Item{Type: ItemCommit, Ts: time.Now(), MemberName: "Alice", PenaltyName: "Gutter ball", Multiplier: 1})
	waitFor(t, func() bool { return n.QueueLength() == 1 })
	ft.fire()
	waitFor(t, func() bool { return n.Status().Disabled })

	// Disabled notifier drops everything silently.
	n.Enqueue(&Item{Type: ItemCommit, Ts: time.Now(), MemberName: "Bert", PenaltyName: "Gutter ball", Multiplier: 1})
	time.Sleep(50 * time.Millisecond)
	if n.QueueLength() != 0 {
		t.Errorf("queue length = %d, want 0 after disable", n.QueueLength())
	}
}

func TestNotifier_StopFlushesQueue(t *testing.T) {
	fs := &fakeSender{}
	ft := &fakeTimer{}
	n := NewNotifier(fs, 1, allOn, WithAfterFunc(ft.afterFunc))
	ctx := context.Background()
	go n.Run(ctx)

	n.Enqueue(&Item{Type: ItemCommit, Ts: time.Now(), MemberName: "Alice", PenaltyName: "Gutter ball", Multiplier: 1})
	waitFor(t, func() bool { return n.QueueLength() == 1 })

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := n.Stop(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if len(fs.sent()) != 1 {
		t.Errorf("sends = %d, want 1 (flush on stop)", len(fs.sent()))
	}
}

func TestBuildPayloads_VerificationColors(t *testing.T) {
	okItem := &Item{
		Type: ItemVerification,
		Ts:   time.Now(),
		Verification: &verificationOK,
	}
	payloads := BuildPayloads([]*Item{okItem})
	if len(payloads) != 1 || len(payloads[0].Embeds) != 1 {
		t.Fatalf("payloads = %+v", payloads)
	}
	if payloads[0].Embeds[0].Color != ColorGreen {
		t.Errorf("color = %x, want green", payloads[0].Embeds[0].Color)
	}

	failItem := &Item{
		Type: ItemVerification,
		Ts:   time.Now(),
		Verification: &verificationFail,
	}
	payloads = BuildPayloads([]*Item{failItem})
	embed := payloads[0].Embeds[0]
	if embed.Color != ColorRed {
		t.Errorf("color = %x, want red", embed.Color)
	}
	if !strings.Contains(embed.Description, "Alice") {
		t.Errorf("failure embed missing mismatched member: %q", embed.Description)
	}
}

func TestBuildPayloads_SplitsLargeBatches(t *testing.T) {
	items := make([]*Item, 0, MaxEmbedsPerRequest+2)
	for i := 0; i < MaxEmbedsPerRequest+2; i++ {
		items = append(items, &Item{
			Type: ItemSummary,
			Ts:   time.Now(),
			Summary: &SessionSummary{
				Balances: map[string]float64{"Alice": float64(i)},
			},
		})
	}
	payloads := BuildPayloads(items)
	if len(payloads) != 2 {
		t.Fatalf("payloads = %d, want 2", len(payloads))
	}
	if len(payloads[0].Embeds) != MaxEmbedsPerRequest {
		t.Errorf("first payload embeds = %d, want %d", len(payloads[0].Embeds), MaxEmbedsPerRequest)
	}
}

func TestBackoffCalculator(t *testing.T) {
	calc := NewBackoffCalculatorWithSeed(BackoffConfig{
		InitialDelay: time.Second,
		MaxDelay:     time.Minute,
		Multiplier:   2.0,
		JitterFactor: 0,
	}, 1)

	if got := calc.Calculate(0); got != time.Second {
		t.Errorf("attempt 0 = %v, want 1s", got)
	}
	if got := calc.Calculate(3); got != 8*time.Second {
		t.Errorf("attempt 3 = %v, want 8s", got)
	}
	if got := calc.Calculate(20); got != time.Minute {
		t.Errorf("attempt 20 = %v, want capped at 1m", got)
	}
	if got := calc.Calculate(-1); got != time.Second {
		t.Errorf("negative attempt = %v, want 1s", got)
	}
}

func TestBackoffCalculator_JitterStaysInRange(t *testing.T) {
	cfg := BackoffConfig{
		InitialDelay: time.Second,
		MaxDelay:     time.Minute,
		Multiplier:   2.0,
		JitterFactor: 0.2,
	}
	calc := NewBackoffCalculatorWithSeed(cfg, 42)

	for i := 0; i < 100; i++ {
		d := calc.Calculate(2) // base 4s
		if d < 3200*time.Millisecond || d > 4800*time.Millisecond {
			t.Fatalf("delay %v outside jitter range", d)
		}
	}
}
