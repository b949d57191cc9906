// Package api provides the HTTP API server.
package api

import (
	"log/slog"
	"sync"

	"github.com/mhessel/penaltypot/internal/event"
)

const (
	defaultSubscriberBufferSize = 16
	defaultBroadcastBufferSize  = 64
)

// Subscriber is one SSE client connection.
type Subscriber struct {
	entries chan *event.Entry
	done    chan struct{}
}

// Entries returns the channel for receiving log entries.
func (s *Subscriber) Entries() <-chan *event.Entry {
	return s.entries
}

// Done returns a channel that is closed when the subscriber is removed.
func (s *Subscriber) Done() <-chan struct{} {
	return s.done
}

// Hub fans appended log entries out to SSE subscribers. A single
// goroutine owns the client set; all mutation goes through channels.
type Hub struct {
	register   chan *Subscriber
	unregister chan *Subscriber
	broadcast  chan *event.Entry
	stop       chan struct{}
	stopped    chan struct{}
	stopOnce   sync.Once

	subscriberBufferSize int
	logger               *slog.Logger
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithHubSubscriberBufferSize sets the buffer size for subscriber channels.
func WithHubSubscriberBufferSize(size int) HubOption {
	return func(h *Hub) {
		if size > 0 {
			h.subscriberBufferSize = size
		}
	}
}

// WithHubLogger sets the logger for the Hub.
func WithHubLogger(logger *slog.Logger) HubOption {
	return func(h *Hub) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHub creates a hub. Call Run in a goroutine to start it.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		register:             make(chan *Subscriber),
		unregister:           make(chan *Subscriber),
		broadcast:            make(chan *event.Entry, defaultBroadcastBufferSize),
		stop:                 make(chan struct{}),
		stopped:              make(chan struct{}),
		subscriberBufferSize: defaultSubscriberBufferSize,
		logger:               slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run is the hub's event loop. Blocks until Stop is called.
func (h *Hub) Run() {
	clients := make(map[*Subscriber]struct{})
	defer close(h.stopped)

	for {
		select {
		case sub := <-h.register:
			clients[sub] = struct{}{}
			h.logger.Debug("subscriber registered", "count", len(clients))

		case sub := <-h.unregister:
			if _, ok := clients[sub]; ok {
				delete(clients, sub)
				close(sub.done)
				close(sub.entries)
				h.logger.Debug("subscriber unregistered", "count", len(clients))
			}

		case e := <-h.broadcast:
			for sub := range clients {
				select {
				case sub.entries <- e:
				default:
					// Slow client; drop rather than stall the hub.
					h.logger.Warn("subscriber channel full, entry dropped",
						"entry_id", e.ID,
						"kind", e.Kind,
					)
				}
			}

		case <-h.stop:
			for sub := range clients {
				close(sub.done)
				close(sub.entries)
			}
			return
		}
	}
}

// Stop shuts the hub down and blocks until the loop has exited.
// Safe to call multiple times.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stop)
	})
	<-h.stopped
}

// Subscribe creates a new subscriber. The caller must Unsubscribe when done.
func (h *Hub) Subscribe() *Subscriber {
	sub := &Subscriber{
		entries: make(chan *event.Entry, h.subscriberBufferSize),
		done:    make(chan struct{}),
	}

	select {
	case h.register <- sub:
		return sub
	case <-h.stopped:
		close(sub.done)
		close(sub.entries)
		return sub
	}
}

// Unsubscribe removes a subscriber.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}

	select {
	case h.unregister <- sub:
	case <-h.stopped:
	}
}

// Publish queues an entry for broadcast. Non-blocking; drops when the
// broadcast channel is full.
func (h *Hub) Publish(e *event.Entry) {
	if e == nil {
		return
	}

	select {
	case h.broadcast <- e:
	case <-h.stopped:
	default:
		h.logger.Warn("broadcast channel full, entry dropped",
			"entry_id", e.ID,
			"kind", e.Kind,
		)
	}
}
