// Package notify batches ledger activity into Discord webhook posts.
package notify

import "time"

// TimerHandle allows stopping a scheduled flush.
type TimerHandle interface {
	Stop() bool
}

// AfterFunc schedules f to run after d and returns a cancel handle.
// The notifier takes it as a dependency so tests can fire flushes
// manually instead of sleeping.
type AfterFunc func(d time.Duration, f func()) TimerHandle

type realTimerHandle struct {
	timer *time.Timer
}

func (h *realTimerHandle) Stop() bool {
	return h.timer.Stop()
}

// DefaultAfterFunc wraps time.AfterFunc.
var DefaultAfterFunc AfterFunc = func(d time.Duration, f func()) TimerHandle {
	return &realTimerHandle{timer: time.AfterFunc(d, f)}
}
