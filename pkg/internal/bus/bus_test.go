package bus

import (
	"testing"
	"time"
)

func TestSubscribeFiltersByKind(t *testing.T) {
	events := New()
	calls := events.Subscribe("calls", 8, KindCallCreated, KindCallEnded)
	everything := events.Subscribe("all", 8)

	events.Publish(Event{Kind: KindCallCreated, CallID: "call-1"})
	events.Publish(Event{Kind: KindParticipantJoin, CallID: "call-1"})
	events.Publish(Event{Kind: KindCallEnded, CallID: "call-1"})

	if got := len(calls.C); got != 2 {
		t.Fatalf("filtered subscriber holds %d events, want 2", got)
	}
	if got := len(everything.C); got != 3 {
		t.Fatalf("catch-all subscriber holds %d events, want 3", got)
	}

	evt := <-calls.C
	if evt.Kind != KindCallCreated || evt.CallID != "call-1" {
		t.Fatalf("first event = %+v", evt)
	}
	if evt.At.IsZero() {
		t.Fatalf("publish did not stamp the event time")
	}
}

func TestPublishNeverBlocksOnFullSubscriber(t *testing.T) {
	events := New()
	slow := events.Subscribe("slow", 1, KindTranscript)

	done := make(chan struct{})
	go func() {
		for idx := 0; idx < 10; idx++ {
			events.Publish(Event{Kind: KindTranscript, CallID: "call-1"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("publish blocked on a full subscriber buffer")
	}
	// The buffer holds exactly one event; the overflow was dropped.
	if got := len(slow.C); got != 1 {
		t.Fatalf("slow subscriber holds %d events, want 1", got)
	}
}

func TestPublishPreservesExplicitTimestamp(t *testing.T) {
	events := New()
	sub := events.Subscribe("test", 1)

	stamp := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	events.Publish(Event{Kind: KindTurnState, CallID: "call-1", At: stamp})

	if evt := <-sub.C; !evt.At.Equal(stamp) {
		t.Fatalf("event time = %v, want %v", evt.At, stamp)
	}
}
