package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// FilterConfig determines which items trigger notifications.
type FilterConfig struct {
	NotifyOnCommit     bool
	NotifyOnRoster     bool
	NotifyOnMultiplier bool
	NotifyOnVerify     bool
	NotifyOnSummary    bool
}

// NotifierStatus represents the current status of the notifier.
type NotifierStatus struct {
	Disabled       bool
	DisabledReason string
	DisabledAt     time.Time
}

// DefaultMaxQueueSize is the default maximum number of items in the queue.
const DefaultMaxQueueSize = 100

// Notifier batches and sends Discord notifications.
// It runs a dedicated goroutine for processing items.
type Notifier struct {
	sender       Sender
	afterFunc    AfterFunc
	batchDelay   time.Duration
	filter       FilterConfig
	logger       *slog.Logger
	maxQueueSize int
	backoffCalc  *BackoffCalculator

	itemCh  chan *Item
	flushCh chan struct{}
	stopCh  chan struct{}
	doneCh  chan struct{}

	// internal state (protected by mu)
	mu          sync.Mutex
	queue       []*Item
	timerHandle TimerHandle
	status      NotifierStatus

	// backoff state (run loop only)
	backoffAttempt int
	backoffUntil   time.Time

	stopOnce sync.Once
}

// NotifierOption configures a Notifier.
type NotifierOption func(*Notifier)

// WithAfterFunc sets the timer function (for testing).
func WithAfterFunc(af AfterFunc) NotifierOption {
	return func(n *Notifier) { n.afterFunc = af }
}

// WithNotifierLogger sets the logger.
func WithNotifierLogger(logger *slog.Logger) NotifierOption {
	return func(n *Notifier) { n.logger = logger }
}

// WithMaxQueueSize sets the maximum queue size.
func WithMaxQueueSize(size int) NotifierOption {
	return func(n *Notifier) {
		if size > 0 {
			n.maxQueueSize = size
		}
	}
}

// WithBackoffCalculator sets the backoff calculator (for testing).
func WithBackoffCalculator(calc *BackoffCalculator) NotifierOption {
	return func(n *Notifier) { n.backoffCalc = calc }
}

// NewNotifier creates a new Notifier. Call Run to start processing.
func NewNotifier(sender Sender, batchDelaySec int, filter FilterConfig, opts ...NotifierOption) *Notifier {
	if batchDelaySec <= 0 {
		batchDelaySec = 3
	}

	n := &Notifier{
		sender:       sender,
		afterFunc:    DefaultAfterFunc,
		batchDelay:   time.Duration(batchDelaySec) * time.Second,
		filter:       filter,
		logger:       slog.Default(),
		maxQueueSize: DefaultMaxQueueSize,
		backoffCalc:  NewBackoffCalculator(DefaultBackoffConfig),
		itemCh:       make(chan *Item, 64),
		flushCh:      make(chan struct{}, 1),
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
		queue:        make([]*Item, 0, 16),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Run starts the notification processing loop.
// Blocks until Stop is called or ctx is cancelled.
func (n *Notifier) Run(ctx context.Context) {
	defer close(n.doneCh)

	for {
		select {
		case it := <-n.itemCh:
			n.handleItem(it)

		case <-n.flushCh:
			n.flush(ctx)

		case <-n.stopCh:
			// Best-effort flush on stop.
			n.flush(ctx)
			return

		case <-ctx.Done():
			n.flush(context.Background())
			return
		}
	}
}

// Enqueue adds an item to the notification queue, subject to the filter.
// Safe to call from any goroutine. Non-blocking; drops when full.
func (n *Notifier) Enqueue(it *Item) {
	if it == nil {
		return
	}

	n.mu.Lock()
	disabled := n.status.Disabled
	n.mu.Unlock()
	if disabled {
		return
	}

	if !n.shouldNotify(it) {
		return
	}

	select {
	case n.itemCh <- it:
	default:
		n.logger.Warn("notification queue full, item dropped", "type", it.Type)
	}
}

func (n *Notifier) shouldNotify(it *Item) bool {
	switch it.Type {
	case ItemCommit, ItemRevoke, ItemReward:
		return n.filter.NotifyOnCommit
	case ItemMemberJoined:
		return n.filter.NotifyOnRoster
	case ItemMultiplier:
		return n.filter.NotifyOnMultiplier
	case ItemVerification:
		return n.filter.NotifyOnVerify
	case ItemSummary:
		return n.filter.NotifyOnSummary
	default:
		return false
	}
}

func (n *Notifier) handleItem(it *Item) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.queue = append(n.queue, it)
	n.coalesceQueueLocked()

	if len(n.queue) > n.maxQueueSize {
		dropped := len(n.queue) - n.maxQueueSize
		n.queue = n.queue[dropped:]
		n.logger.Warn("queue overflow, dropped old items", "dropped", dropped)
	}

	if n.timerHandle == nil {
		n.timerHandle = n.afterFunc(n.batchDelay, n.triggerFlush)
	}
}

// coalesceQueueLocked drops superseded items: only the latest multiplier
// change matters, and repeated joins of the same member collapse to one.
// Must be called with mu held.
func (n *Notifier) coalesceQueueLocked() {
	if len(n.queue) <= 1 {
		return
	}

	seen := make(map[string]int)
	result := make([]*Item, 0, len(n.queue))

	for _, it := range n.queue {
		key := itemKey(it)
		if key == "" {
			result = append(result, it)
			continue
		}

		if idx, exists := seen[key]; exists {
			result[idx] = it
		} else {
			seen[key] = len(result)
			result = append(result, it)
		}
	}

	n.queue = result
}

func itemKey(it *Item) string {
	switch it.Type {
	case ItemMultiplier:
		return "multiplier"
	case ItemMemberJoined:
		return "join:" + it.MemberName
	default:
		// Commits, rewards, verifications, summaries are all distinct.
		return ""
	}
}

func (n *Notifier) triggerFlush() {
	select {
	case n.flushCh <- struct{}{}:
	default:
	}
}

func (n *Notifier) flush(ctx context.Context) {
	n.mu.Lock()
	if len(n.queue) == 0 {
		n.timerHandle = nil
		n.mu.Unlock()
		return
	}

	// In backoff: keep the queue and reschedule the flush.
	if time.Now().Before(n.backoffUntil) {
		remaining := time.Until(n.backoffUntil)
		n.logger.Debug("in backoff period, keeping items in queue",
			"queue_size", len(n.queue),
			"remaining", remaining,
		)
		if n.timerHandle == nil {
			n.timerHandle = n.afterFunc(remaining, n.triggerFlush)
		}
		n.mu.Unlock()
		return
	}

	items := n.queue
	n.queue = make([]*Item, 0, 16)
	n.timerHandle = nil
	n.mu.Unlock()

	payloads := BuildPayloads(items)
	for _, payload := range payloads {
		result, retryAfter := n.sender.Send(ctx, payload)
		n.handleSendResult(result, retryAfter)

		if result != SendOK {
			break
		}
	}
}

func (n *Notifier) handleSendResult(result SendResult, retryAfter time.Duration) {
	switch result {
	case SendOK:
		n.backoffAttempt = 0
		n.backoffUntil = time.Time{}

	case SendRetryable:
		n.backoffAttempt++
		delay := retryAfter
		if delay == 0 {
			delay = n.backoffCalc.Calculate(n.backoffAttempt)
		}
		n.backoffUntil = time.Now().Add(delay)
		n.logger.Warn("Discord send failed, backing off",
			"attempt", n.backoffAttempt,
			"backoff_until", n.backoffUntil,
		)

	case SendFatal:
		n.mu.Lock()
		n.status.Disabled = true
		n.status.DisabledReason = "fatal error (invalid webhook or authentication failed)"
		n.status.DisabledAt = time.Now()
		n.mu.Unlock()
		n.logger.Error("Discord send fatal error, notifications disabled")
	}
}

// Stop stops the notifier gracefully. Waits for the run loop to finish
// or until ctx is cancelled. Safe to call multiple times.
func (n *Notifier) Stop(ctx context.Context) error {
	n.stopOnce.Do(func() {
		close(n.stopCh)
	})

	select {
	case <-n.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns the current notifier status. Safe for concurrent use.
func (n *Notifier) Status() NotifierStatus {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.status
}

// QueueLength returns the current queue length, for tests and monitoring.
func (n *Notifier) QueueLength() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.queue)
}
