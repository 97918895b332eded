package events

import (
	"context"
	"sync"
	"time"
)

const defaultCapacity = 1024

// Bus stores recent events in a bounded ring and fans them out to channel
// subscribers. Pollers that cannot hold a channel, such as IPC clients,
// replay from the ring with Fetch.
type Bus struct {
	mu       sync.Mutex
	cond     *sync.Cond
	capacity int
	buffer   []Event
	nextSeq  uint64
	subs     map[*Subscription]struct{}
	closed   bool
}

// NewBus constructs a bus retaining the last capacity events.
func NewBus(capacity int) *Bus {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	b := &Bus{capacity: capacity, subs: make(map[*Subscription]struct{})}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Publish assigns the next sequence number and delivers evt. Progress and log
// events are dropped for subscribers whose buffer is full; completion and
// state events wait until the subscriber accepts them or unsubscribes.
func (b *Bus) Publish(evt Event) Event {
	if b == nil {
		return evt
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return evt
	}
	b.nextSeq++
	evt.Seq = b.nextSeq
	if evt.Time.IsZero() {
		evt.Time = time.Now().UTC()
	}
	if len(b.buffer) == b.capacity {
		copy(b.buffer, b.buffer[1:])
		b.buffer = b.buffer[:b.capacity-1]
	}
	b.buffer = append(b.buffer, evt)
	subs := make([]*Subscription, 0, len(b.subs))
	for sub := range b.subs {
		subs = append(subs, sub)
	}
	b.cond.Broadcast()
	b.mu.Unlock()

	for _, sub := range subs {
		sub.deliver(evt)
	}
	return evt
}

// PublishLog satisfies logging.LogPublisher.
func (b *Bus) PublishLog(level, message string, ts time.Time) {
	b.Publish(Event{Type: TypeLog, Time: ts, Log: &Log{Level: level, Message: message, Timestamp: ts}})
}

// Subscribe registers a channel subscriber with the given buffer size.
func (b *Bus) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = 64
	}
	sub := &Subscription{
		ch:   make(chan Event, buffer),
		done: make(chan struct{}),
		bus:  b,
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		sub.shutdown()
		return sub
	}
	b.subs[sub] = struct{}{}
	return sub
}

// Fetch returns events with a sequence greater than since, at most limit of
// them, plus the latest sequence assigned. When wait is true Fetch blocks
// until at least one such event exists, the context ends, or the bus closes.
func (b *Bus) Fetch(ctx context.Context, since uint64, limit int, wait bool) ([]Event, uint64, error) {
	if b == nil {
		return nil, since, nil
	}
	if limit <= 0 || limit > b.capacity {
		limit = b.capacity
	}

	stopWaker := make(chan struct{})
	if wait && ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				b.mu.Lock()
				b.cond.Broadcast()
				b.mu.Unlock()
			case <-stopWaker:
			}
		}()
	}
	defer close(stopWaker)

	b.mu.Lock()
	defer b.mu.Unlock()

	for {
		events, next := b.sinceLocked(since, limit)
		if len(events) > 0 || !wait || b.closed {
			return events, next, contextError(ctx)
		}
		if err := contextError(ctx); err != nil {
			return nil, next, err
		}
		b.cond.Wait()
		if err := contextError(ctx); err != nil {
			return nil, next, err
		}
	}
}

// Since is a non-blocking Fetch without a limit.
func (b *Bus) Since(seq uint64) ([]Event, uint64) {
	events, next, _ := b.Fetch(context.Background(), seq, 0, false)
	return events, next
}

// LastSequence reports the most recently assigned sequence number.
func (b *Bus) LastSequence() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nextSeq
}

// Close ends every subscription and wakes blocked Fetch callers. Later
// publishes are ignored.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := b.subs
	b.subs = make(map[*Subscription]struct{})
	b.cond.Broadcast()
	b.mu.Unlock()

	for sub := range subs {
		sub.shutdown()
	}
}

func (b *Bus) sinceLocked(since uint64, limit int) ([]Event, uint64) {
	if len(b.buffer) == 0 {
		return nil, b.nextSeq
	}
	start := len(b.buffer)
	for i, evt := range b.buffer {
		if evt.Seq > since {
			start = i
			break
		}
	}
	if start == len(b.buffer) {
		return nil, b.nextSeq
	}
	end := min(start+limit, len(b.buffer))
	out := make([]Event, end-start)
	copy(out, b.buffer[start:end])
	if end < len(b.buffer) {
		return out, out[len(out)-1].Seq
	}
	return out, b.nextSeq
}

func (b *Bus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	delete(b.subs, sub)
	b.mu.Unlock()
}

func contextError(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}
