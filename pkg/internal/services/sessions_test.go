package services

import (
	"testing"

	"github.com/driveline/callbridge/pkg/internal/models"
)

func TestCreateOrGetIsIdempotent(t *testing.T) {
	store := NewSessionStore(nil)

	first, existing := store.CreateOrGet("call-1", "", nil)
	if existing {
		t.Fatalf("first CreateOrGet reported an existing session")
	}
	if first.Status != models.CallStatusCreated {
		t.Fatalf("new session status = %q, want created", first.Status)
	}

	second, existing := store.CreateOrGet("call-1", "", nil)
	if !existing {
		t.Fatalf("second CreateOrGet did not report an existing session")
	}
	if second.RoomSID != first.RoomSID || second.CallID != first.CallID {
		t.Fatalf("second CreateOrGet returned a different record: %+v vs %+v", second, first)
	}
	if len(store.List()) != 1 {
		t.Fatalf("store holds %d sessions, want 1", len(store.List()))
	}
}

func TestStateMachineLifecycle(t *testing.T) {
	store := NewSessionStore(nil)

	// room_started for an unknown call creates a best-effort session.
	session, changed := store.MarkActive("call-9", "RM_sid")
	if !changed {
		t.Fatalf("MarkActive on a fresh session reported no change")
	}
	if session.Status != models.CallStatusActive {
		t.Fatalf("status = %q, want active", session.Status)
	}
	if session.RoomSID != "RM_sid" {
		t.Fatalf("room sid = %q, want RM_sid", session.RoomSID)
	}
	if session.StartedAt == nil {
		t.Fatalf("startedAt not set on activation")
	}

	// A second activation signal changes nothing.
	if _, changed := store.MarkActive("call-9", "RM_other"); changed {
		t.Fatalf("re-activation reported a change")
	}

	session, changed = store.MarkEnded("call-9")
	if !changed {
		t.Fatalf("MarkEnded reported no change")
	}
	if session.Status != models.CallStatusEnded || session.EndedAt == nil {
		t.Fatalf("session not ended: %+v", session)
	}
	if session.Duration < 0 {
		t.Fatalf("duration = %d, want >= 0", session.Duration)
	}

	// Ended sessions stay ended.
	if _, changed := store.MarkEnded("call-9"); changed {
		t.Fatalf("second MarkEnded reported a change")
	}
	if session, _ := store.MarkActive("call-9", ""); session.Status != models.CallStatusEnded {
		t.Fatalf("ended session was resurrected to %q", session.Status)
	}
}

func TestEndBeforeAnyJoinHasZeroDuration(t *testing.T) {
	store := NewSessionStore(nil)
	store.CreateOrGet("call-2", "", nil)

	session, _ := store.MarkEnded("call-2")
	if session.Duration != 0 {
		t.Fatalf("duration = %d, want 0 when the room ended before anyone joined", session.Duration)
	}
}

func TestParticipantRoundTrip(t *testing.T) {
	store := NewSessionStore(nil)
	store.CreateOrGet("call-3", "", nil)

	store.AddParticipant("call-3", "driver-42", models.RoleDriver)
	// A duplicate join while the record is open is a no-op.
	store.AddParticipant("call-3", "driver-42", models.RoleDriver)

	session, _ := store.Get("call-3")
	if len(session.Participants) != 1 {
		t.Fatalf("participants = %d, want 1", len(session.Participants))
	}

	if !store.RemoveParticipant("call-3", "driver-42") {
		t.Fatalf("RemoveParticipant closed nothing")
	}
	session, _ = store.Get("call-3")
	for _, record := range session.Participants {
		if record.Open() {
			t.Fatalf("open participant record left behind: %+v", record)
		}
	}

	// A second removal is a no-op, not an error.
	if store.RemoveParticipant("call-3", "driver-42") {
		t.Fatalf("second RemoveParticipant closed a record")
	}

	// Re-joining after a close opens a fresh record.
	store.AddParticipant("call-3", "driver-42", models.RoleDriver)
	session, _ = store.Get("call-3")
	if len(session.Participants) != 2 {
		t.Fatalf("participants after re-join = %d, want 2", len(session.Participants))
	}
}

func TestParticipantEventOnUnknownCallCreatesSession(t *testing.T) {
	store := NewSessionStore(nil)

	store.AddParticipant("call-late", "driver-1", models.RoleDriver)
	if _, ok := store.Get("call-late"); !ok {
		t.Fatalf("participant event did not create a best-effort session")
	}
}

func TestRecordingIDSetAtMostOnce(t *testing.T) {
	store := NewSessionStore(nil)
	store.CreateOrGet("call-4", "", nil)

	session := store.SetRecording("call-4", "EG_1", models.RecordingActive)
	if session.RecordingID != "EG_1" {
		t.Fatalf("recording id = %q, want EG_1", session.RecordingID)
	}

	// A conflicting id while the first is active is ignored.
	session = store.SetRecording("call-4", "EG_2", models.RecordingActive)
	if session.RecordingID != "EG_1" {
		t.Fatalf("active recording id was overwritten to %q", session.RecordingID)
	}

	// After completion a fresh recording may take over.
	store.SetRecording("call-4", "EG_1", models.RecordingCompleted)
	session = store.SetRecording("call-4", "EG_3", models.RecordingActive)
	if session.RecordingID != "EG_3" {
		t.Fatalf("recording id after completion = %q, want EG_3", session.RecordingID)
	}
}

func TestMarkEndedClosesOpenParticipants(t *testing.T) {
	store := NewSessionStore(nil)
	store.CreateOrGet("call-5", "", nil)
	store.AddParticipant("call-5", "driver-1", models.RoleDriver)
	store.AddParticipant("call-5", "support-bot", models.RoleAIAgent)

	session, _ := store.MarkEnded("call-5")
	for _, record := range session.Participants {
		if record.Open() {
			t.Fatalf("participant %q still open after call end", record.Identity)
		}
	}
}
