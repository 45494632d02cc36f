package channel

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sourcegraph/conc/panics"

	"github.com/dmitrymomot/photon/core/logger"
)

// Handler receives messages delivered to a subscription. Handlers run
// synchronously on the connection's read goroutine, in delivery order.
type Handler func(msg Message)

type handlerEntry struct {
	id      uint64
	handler Handler
	sub     *Subscription
}

// HandlerSet tracks the handlers registered for one channel (or pattern) on
// one underlying connection. It is safe for concurrent use.
type HandlerSet struct {
	mu      sync.RWMutex
	nextID  uint64
	entries []handlerEntry
}

// NewHandlerSet creates an empty set.
func NewHandlerSet() *HandlerSet {
	return &HandlerSet{}
}

// Subscribe registers h and returns its subscription handle. When the handle
// is unsubscribed the handler is removed and onRemove, if not nil, is called
// with the number of handlers left in the set.
func (s *HandlerSet) Subscribe(channel string, h Handler, onRemove func(remaining int)) *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID

	sub := NewSubscription(channel, func() {
		remaining, removed := s.remove(id)
		if removed && onRemove != nil {
			onRemove(remaining)
		}
	})
	s.entries = append(s.entries, handlerEntry{id: id, handler: h, sub: sub})

	return sub
}

func (s *HandlerSet) remove(id uint64) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, e := range s.entries {
		if e.id == id {
			s.entries = append(s.entries[:i:i], s.entries[i+1:]...)
			return len(s.entries), true
		}
	}
	return len(s.entries), false
}

// Len returns the number of registered handlers.
func (s *HandlerSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Snapshot returns the handlers in registration order.
func (s *HandlerSet) Snapshot() []Handler {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Handler, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.handler
	}
	return out
}

// Close detaches every subscription without running the removal callbacks
// and empties the set. Handles report Active() == false afterwards.
func (s *HandlerSet) Close() {
	s.mu.Lock()
	entries := s.entries
	s.entries = nil
	s.mu.Unlock()

	for _, e := range entries {
		e.sub.detach()
	}
}

// Deliver invokes every handler with msg. A panicking handler is logged and
// does not prevent delivery to the remaining handlers. It returns the number
// of handlers that panicked.
func Deliver(ctx context.Context, log *slog.Logger, msg Message, handlers ...Handler) int {
	failed := 0
	for _, h := range handlers {
		if h == nil {
			continue
		}

		var pc panics.Catcher
		pc.Try(func() { h(msg) })

		if r := pc.Recovered(); r != nil {
			failed++
			if log != nil {
				log.ErrorContext(ctx, "channel handler panicked",
					logger.Channel(msg.Channel),
					logger.Event(msg.Event),
					logger.Error(fmt.Errorf("%v", r.Value)))
			}
		}
	}
	return failed
}
