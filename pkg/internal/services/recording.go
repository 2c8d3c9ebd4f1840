package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/driveline/callbridge/pkg/internal/bus"
	"github.com/driveline/callbridge/pkg/internal/models"
	"github.com/livekit/protocol/livekit"
	"github.com/rs/zerolog/log"
)

// EgressOperator is the slice of the platform's egress API the
// controller needs; satisfied by lksdk.EgressClient.
type EgressOperator interface {
	StartRoomCompositeEgress(ctx context.Context, req *livekit.RoomCompositeEgressRequest) (*livekit.EgressInfo, error)
	StopEgress(ctx context.Context, req *livekit.StopEgressRequest) (*livekit.EgressInfo, error)
}

// RecordingController keeps at most one recording job active per room.
// Recording is fail-open everywhere: a start or stop failure is reported
// on the event bus and to the caller, and the call itself carries on.
type RecordingController struct {
	egress EgressOperator
	store  *SessionStore
	events *bus.Bus
	prefix string

	mu     sync.Mutex
	active map[string]string
}

func NewRecordingController(egress EgressOperator, store *SessionStore, events *bus.Bus, prefix string) *RecordingController {
	if prefix == "" {
		prefix = "recordings"
	}
	return &RecordingController{
		egress: egress,
		store:  store,
		events: events,
		prefix: prefix,
		active: make(map[string]string),
	}
}

// Start begins recording the room. Calling it while a recording is
// already active returns the existing job's id instead of starting a
// duplicate. Starts are single-attempt; a failure is retriable by
// calling Start again.
func (rc *RecordingController) Start(ctx context.Context, room string) (string, error) {
	rc.mu.Lock()
	if id, ok := rc.active[room]; ok {
		rc.mu.Unlock()
		return id, nil
	}
	rc.mu.Unlock()

	info, err := rc.egress.StartRoomCompositeEgress(ctx, &livekit.RoomCompositeEgressRequest{
		RoomName:  room,
		AudioOnly: true,
		FileOutputs: []*livekit.EncodedFileOutput{{
			FileType: livekit.EncodedFileType_OGG,
			Filepath: fmt.Sprintf("%s/%s.ogg", rc.prefix, room),
		}},
	})
	if err != nil {
		log.Warn().Err(err).Str("room", room).Msg("An error occurred when starting recording, the call continues without it...")
		rc.store.SetRecording(room, "", models.RecordingFailed)
		rc.events.Publish(bus.Event{
			Kind:    bus.KindRecordingFailed,
			CallID:  room,
			Payload: bus.RecordingPayload{Error: err.Error()},
		})
		return "", fmt.Errorf("remote egress error: %v", err)
	}

	rc.mu.Lock()
	if id, ok := rc.active[room]; ok {
		// Lost the race to a concurrent start; keep the first job.
		rc.mu.Unlock()
		return id, nil
	}
	rc.active[room] = info.EgressId
	rc.mu.Unlock()

	rc.store.SetRecording(room, info.EgressId, models.RecordingActive)
	rc.events.Publish(bus.Event{
		Kind:    bus.KindRecordingStarted,
		CallID:  room,
		Payload: bus.RecordingPayload{EgressID: info.EgressId},
	})
	return info.EgressId, nil
}

// Stop ends the room's recording. Local tracking is cleared before the
// platform call so a failed stop never leaves a stuck job behind; a
// stop with nothing active is a no-op.
func (rc *RecordingController) Stop(ctx context.Context, room string) error {
	rc.mu.Lock()
	id, ok := rc.active[room]
	delete(rc.active, room)
	rc.mu.Unlock()
	if !ok {
		return nil
	}

	if _, err := rc.egress.StopEgress(ctx, &livekit.StopEgressRequest{EgressId: id}); err != nil {
		log.Warn().Err(err).Str("room", room).Str("egress_id", id).Msg("An error occurred when stopping recording...")
		return fmt.Errorf("remote egress error: %v", err)
	}

	rc.store.SetRecording(room, id, models.RecordingCompleted)
	rc.events.Publish(bus.Event{
		Kind:    bus.KindRecordingStopped,
		CallID:  room,
		Payload: bus.RecordingPayload{EgressID: id},
	})
	return nil
}

// Active reports the room's in-flight recording job, if any.
func (rc *RecordingController) Active(room string) (string, bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	id, ok := rc.active[room]
	return id, ok
}

// HandleEgressInfo reconciles local tracking with egress lifecycle
// events reported by the platform's webhooks.
func (rc *RecordingController) HandleEgressInfo(info *livekit.EgressInfo) {
	if info == nil || info.RoomName == "" {
		return
	}
	room := info.RoomName

	switch info.Status {
	case livekit.EgressStatus_EGRESS_STARTING, livekit.EgressStatus_EGRESS_ACTIVE:
		rc.mu.Lock()
		if _, ok := rc.active[room]; !ok {
			rc.active[room] = info.EgressId
		}
		rc.mu.Unlock()
		rc.store.SetRecording(room, info.EgressId, models.RecordingActive)
	case livekit.EgressStatus_EGRESS_COMPLETE:
		rc.clear(room)
		rc.store.SetRecording(room, info.EgressId, models.RecordingCompleted)
		rc.events.Publish(bus.Event{
			Kind:    bus.KindRecordingStopped,
			CallID:  room,
			Payload: bus.RecordingPayload{EgressID: info.EgressId},
		})
	case livekit.EgressStatus_EGRESS_FAILED, livekit.EgressStatus_EGRESS_ABORTED:
		rc.clear(room)
		rc.store.SetRecording(room, info.EgressId, models.RecordingFailed)
		rc.events.Publish(bus.Event{
			Kind:    bus.KindRecordingFailed,
			CallID:  room,
			Payload: bus.RecordingPayload{EgressID: info.EgressId, Error: info.Error},
		})
	}
}

func (rc *RecordingController) clear(room string) {
	rc.mu.Lock()
	delete(rc.active, room)
	rc.mu.Unlock()
}

// Watch stops any recording left active when its call ends.
func (rc *RecordingController) Watch() {
	sub := rc.events.Subscribe("recording-controller", 32, bus.KindCallEnded)
	for evt := range sub.C {
		if _, ok := rc.Active(evt.CallID); !ok {
			continue
		}
		if err := rc.Stop(context.Background(), evt.CallID); err != nil {
			log.Warn().Err(err).Str("room", evt.CallID).Msg("An error occurred when auto-stopping recording on call end...")
		}
	}
}
