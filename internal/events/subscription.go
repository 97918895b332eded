package events

import (
	"sync"
	"sync/atomic"
)

// Subscription is a channel view of the bus. The channel is closed after
// Close or when the bus closes.
type Subscription struct {
	ch      chan Event
	done    chan struct{}
	bus     *Bus
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

// C delivers events. Events from one publishing goroutine arrive in order.
func (s *Subscription) C() <-chan Event {
	return s.ch
}

// Dropped counts lossy events skipped because the buffer was full.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Close unsubscribes and closes the channel. It is safe to call more than
// once and concurrently with Publish.
func (s *Subscription) Close() {
	if s.bus != nil {
		s.bus.unsubscribe(s)
	}
	s.shutdown()
}

func (s *Subscription) shutdown() {
	s.once.Do(func() {
		close(s.done)
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
	})
}

func (s *Subscription) deliver(evt Event) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return
	}
	if evt.lossy() {
		select {
		case s.ch <- evt:
			s.mu.RUnlock()
		default:
			s.mu.RUnlock()
			s.dropped.Add(1)
		}
		return
	}
	select {
	case s.ch <- evt:
	case <-s.done:
	}
	s.mu.RUnlock()
}
