package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/driveline/callbridge/pkg/internal/bus"
	"github.com/driveline/callbridge/pkg/internal/models"
	"github.com/livekit/protocol/livekit"
)

type fakeEgress struct {
	mu        sync.Mutex
	startErr  error
	stopErr   error
	starts    int
	stops     []string
	lastStart *livekit.RoomCompositeEgressRequest
}

func (f *fakeEgress) StartRoomCompositeEgress(_ context.Context, req *livekit.RoomCompositeEgressRequest) (*livekit.EgressInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.starts++
	f.lastStart = req
	return &livekit.EgressInfo{EgressId: "EG_fake", RoomName: req.RoomName}, nil
}

func (f *fakeEgress) StopEgress(_ context.Context, req *livekit.StopEgressRequest) (*livekit.EgressInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopErr != nil {
		return nil, f.stopErr
	}
	f.stops = append(f.stops, req.EgressId)
	return &livekit.EgressInfo{EgressId: req.EgressId}, nil
}

func newRecordingFixture(egress *fakeEgress) (*RecordingController, *SessionStore, *bus.Bus) {
	store := NewSessionStore(nil)
	events := bus.New()
	return NewRecordingController(egress, store, events, "recordings"), store, events
}

func TestStartRecordingIsIdempotent(t *testing.T) {
	egress := &fakeEgress{}
	controller, store, _ := newRecordingFixture(egress)
	store.CreateOrGet("room-1", "", nil)

	first, err := controller.Start(context.Background(), "room-1")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	second, err := controller.Start(context.Background(), "room-1")
	if err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if first != second {
		t.Fatalf("second Start returned %q, want the existing job %q", second, first)
	}
	if egress.starts != 1 {
		t.Fatalf("platform saw %d start requests, want 1", egress.starts)
	}
	if !egress.lastStart.AudioOnly {
		t.Fatalf("recording request was not audio-only")
	}

	session, _ := store.Get("room-1")
	if session.RecordingID != first || session.RecordingStatus != models.RecordingActive {
		t.Fatalf("session recording state = %q/%q", session.RecordingID, session.RecordingStatus)
	}
}

func TestStartRecordingFailsOpen(t *testing.T) {
	egress := &fakeEgress{startErr: errors.New("egress worker unavailable")}
	controller, store, events := newRecordingFixture(egress)
	store.CreateOrGet("room-1", "", nil)
	sub := events.Subscribe("test", 8, bus.KindRecordingFailed)

	if _, err := controller.Start(context.Background(), "room-1"); err == nil {
		t.Fatalf("Start succeeded against a failing platform")
	}

	session, _ := store.Get("room-1")
	if session.RecordingStatus != models.RecordingFailed {
		t.Fatalf("session recording status = %q, want failed", session.RecordingStatus)
	}
	if session.Status == models.CallStatusEnded {
		t.Fatalf("recording failure ended the call")
	}

	select {
	case evt := <-sub.C:
		if evt.Kind != bus.KindRecordingFailed {
			t.Fatalf("published %q, want recording_failed", evt.Kind)
		}
	default:
		t.Fatalf("no failure event published")
	}

	// A later attempt is allowed to succeed.
	egress.startErr = nil
	if _, err := controller.Start(context.Background(), "room-1"); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
}

func TestStopRecordingClearsTrackingEvenOnFailure(t *testing.T) {
	egress := &fakeEgress{}
	controller, store, _ := newRecordingFixture(egress)
	store.CreateOrGet("room-1", "", nil)

	if _, err := controller.Start(context.Background(), "room-1"); err != nil {
		t.Fatalf("Start: %v", err)
	}

	egress.stopErr = errors.New("egress already gone")
	if err := controller.Stop(context.Background(), "room-1"); err == nil {
		t.Fatalf("Stop succeeded against a failing platform")
	}
	if _, ok := controller.Active("room-1"); ok {
		t.Fatalf("failed stop left the job tracked as active")
	}

	// With nothing tracked, another stop is a quiet no-op.
	egress.stopErr = nil
	if err := controller.Stop(context.Background(), "room-1"); err != nil {
		t.Fatalf("no-op Stop: %v", err)
	}
	if len(egress.stops) != 0 {
		t.Fatalf("no-op Stop reached the platform")
	}
}

func TestStopRecordingMarksCompleted(t *testing.T) {
	egress := &fakeEgress{}
	controller, store, events := newRecordingFixture(egress)
	store.CreateOrGet("room-1", "", nil)
	sub := events.Subscribe("test", 8, bus.KindRecordingStopped)

	id, _ := controller.Start(context.Background(), "room-1")
	if err := controller.Stop(context.Background(), "room-1"); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	session, _ := store.Get("room-1")
	if session.RecordingStatus != models.RecordingCompleted {
		t.Fatalf("session recording status = %q, want completed", session.RecordingStatus)
	}
	select {
	case evt := <-sub.C:
		if payload := evt.Payload.(bus.RecordingPayload); payload.EgressID != id {
			t.Fatalf("stopped event carries %q, want %q", payload.EgressID, id)
		}
	default:
		t.Fatalf("no stopped event published")
	}
}

func TestHandleEgressInfoReconciliation(t *testing.T) {
	egress := &fakeEgress{}
	controller, store, _ := newRecordingFixture(egress)
	store.CreateOrGet("room-1", "", nil)

	// A job started out-of-band becomes tracked once the platform reports it.
	controller.HandleEgressInfo(&livekit.EgressInfo{
		EgressId: "EG_ext",
		RoomName: "room-1",
		Status:   livekit.EgressStatus_EGRESS_ACTIVE,
	})
	if id, ok := controller.Active("room-1"); !ok || id != "EG_ext" {
		t.Fatalf("reconciled job = %q/%v, want EG_ext", id, ok)
	}

	controller.HandleEgressInfo(&livekit.EgressInfo{
		EgressId: "EG_ext",
		RoomName: "room-1",
		Status:   livekit.EgressStatus_EGRESS_FAILED,
		Error:    "disk full",
	})
	if _, ok := controller.Active("room-1"); ok {
		t.Fatalf("failed job still tracked as active")
	}
	session, _ := store.Get("room-1")
	if session.RecordingStatus != models.RecordingFailed {
		t.Fatalf("session recording status = %q, want failed", session.RecordingStatus)
	}
}
