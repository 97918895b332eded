package events_test

import (
	"context"
	"testing"
	"time"

	"squash/internal/events"
)

func progressEvent(id string, pct float64) events.Event {
	return events.Event{Type: events.TypeProgress, Progress: &events.Progress{JobID: id, Progress: pct}}
}

func TestPublishAssignsSequenceAndReplays(t *testing.T) {
	bus := events.NewBus(3)
	for i := 0; i < 5; i++ {
		bus.Publish(progressEvent("job", float64(i)))
	}

	got, last := bus.Since(0)
	if last != 5 {
		t.Fatalf("last seq = %d, want 5", last)
	}
	if len(got) != 3 {
		t.Fatalf("ring kept %d events, want 3", len(got))
	}
	if got[0].Seq != 3 || got[2].Seq != 5 {
		t.Fatalf("unexpected sequences %d..%d", got[0].Seq, got[2].Seq)
	}

	got, _ = bus.Since(4)
	if len(got) != 1 || got[0].Progress.Progress != 4 {
		t.Fatalf("Since(4) = %+v", got)
	}
	if got, _ := bus.Since(5); len(got) != 0 {
		t.Fatalf("expected nothing after latest, got %d", len(got))
	}
}

func TestFetchLimitReturnsResumableCursor(t *testing.T) {
	bus := events.NewBus(10)
	for i := 0; i < 5; i++ {
		bus.Publish(progressEvent("job", float64(i)))
	}

	got, next, err := bus.Fetch(context.Background(), 0, 2, false)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(got) != 2 || next != 2 {
		t.Fatalf("first page: %d events, next=%d", len(got), next)
	}
	got, next, _ = bus.Fetch(context.Background(), next, 10, false)
	if len(got) != 3 || next != 5 {
		t.Fatalf("second page: %d events, next=%d", len(got), next)
	}
	if got[0].Seq != 3 {
		t.Fatalf("second page starts at %d, want 3", got[0].Seq)
	}
}

func TestFetchWaitsForNextEvent(t *testing.T) {
	bus := events.NewBus(8)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	go func() {
		time.Sleep(20 * time.Millisecond)
		bus.Publish(events.Event{Type: events.TypeCompleted, Completion: &events.Completion{JobID: "a", Success: true}})
	}()

	got, next, err := bus.Fetch(ctx, 0, 10, true)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(got) != 1 || next != 1 || got[0].JobID() != "a" {
		t.Fatalf("unexpected fetch result %+v next=%d", got, next)
	}
}

func TestFetchHonoursContext(t *testing.T) {
	bus := events.NewBus(8)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if _, _, err := bus.Fetch(ctx, 0, 10, true); err == nil {
		t.Fatal("expected context error")
	}
}

func TestSubscriberReceivesCompletionEvenWhenProgressDrops(t *testing.T) {
	bus := events.NewBus(64)
	sub := bus.Subscribe(1)
	defer sub.Close()

	bus.Publish(progressEvent("a", 10))
	bus.Publish(progressEvent("a", 20))

	done := make(chan struct{})
	go func() {
		bus.Publish(events.Event{Type: events.TypeCompleted, Completion: &events.Completion{JobID: "a"}})
		close(done)
	}()

	first := <-sub.C()
	if first.Type != events.TypeProgress {
		t.Fatalf("first event type = %s", first.Type)
	}
	select {
	case evt := <-sub.C():
		if evt.Type != events.TypeCompleted {
			t.Fatalf("expected completion, got %s", evt.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("completion never delivered")
	}
	<-done
	if sub.Dropped() != 1 {
		t.Fatalf("dropped = %d, want 1", sub.Dropped())
	}
}

func TestCloseReleasesBlockedPublisher(t *testing.T) {
	bus := events.NewBus(8)
	sub := bus.Subscribe(1)
	bus.Publish(events.Event{Type: events.TypeState, State: &events.State{JobID: "a"}})

	done := make(chan struct{})
	go func() {
		bus.Publish(events.Event{Type: events.TypeState, State: &events.State{JobID: "b"}})
		close(done)
	}()
	time.Sleep(10 * time.Millisecond)
	sub.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher stayed blocked after Close")
	}
	for range sub.C() {
	}
}

func TestBusCloseEndsSubscriptions(t *testing.T) {
	bus := events.NewBus(8)
	sub := bus.Subscribe(4)
	bus.Close()
	if _, ok := <-sub.C(); ok {
		t.Fatal("expected closed channel")
	}
	bus.Publish(progressEvent("a", 1))
	if bus.LastSequence() != 0 {
		t.Fatal("publish after close must be ignored")
	}
	late := bus.Subscribe(1)
	if _, ok := <-late.C(); ok {
		t.Fatal("subscription on closed bus should be closed")
	}
}

func TestPublishLog(t *testing.T) {
	bus := events.NewBus(8)
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	bus.PublishLog("warn", "probe failed", ts)
	got, _ := bus.Since(0)
	if len(got) != 1 || got[0].Log == nil || got[0].Log.Level != "warn" || !got[0].Log.Timestamp.Equal(ts) {
		t.Fatalf("unexpected log event %+v", got)
	}
}
