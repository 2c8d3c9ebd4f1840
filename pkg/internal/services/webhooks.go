package services

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/driveline/callbridge/pkg/internal/bus"
	"github.com/driveline/callbridge/pkg/internal/models"
	"github.com/livekit/protocol/auth"
	"github.com/livekit/protocol/livekit"
	"github.com/rs/zerolog/log"
	"google.golang.org/protobuf/encoding/protojson"
)

var (
	ErrMissingSignature = errors.New("missing webhook authorization token")
	ErrInvalidSignature = errors.New("webhook signature does not match body")
)

// WebhookDispatcher verifies inbound platform events and routes them to
// the session store and the event bus. In strict mode an unverifiable
// envelope is dropped; otherwise it is processed anyway, with a warning
// logged every time so the fallback never goes unnoticed.
type WebhookDispatcher struct {
	store      *SessionStore
	events     *bus.Bus
	recordings *RecordingController
	apiKey     string
	apiSecret  string
	strict     bool
}

func NewWebhookDispatcher(store *SessionStore, events *bus.Bus, recordings *RecordingController, apiKey, apiSecret string, strict bool) *WebhookDispatcher {
	return &WebhookDispatcher{
		store:      store,
		events:     events,
		recordings: recordings,
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		strict:     strict,
	}
}

// Receive verifies and dispatches one raw webhook envelope. The returned
// error only tells the HTTP layer why an event was dropped; the response
// upstream is 200 either way so the platform never enters a retry storm.
func (d *WebhookDispatcher) Receive(body []byte, authToken string) (*livekit.WebhookEvent, error) {
	if err := d.verify(body, authToken); err != nil {
		if d.strict {
			log.Warn().Err(err).Msg("Webhook signature rejected, dropping event...")
			return nil, err
		}
		log.Warn().Err(err).Msg("Webhook signature rejected, processing unverified event anyway...")
	}

	event := &livekit.WebhookEvent{}
	opts := protojson.UnmarshalOptions{DiscardUnknown: true, AllowPartial: true}
	if err := opts.Unmarshal(body, event); err != nil {
		log.Warn().Err(err).Msg("Unable to decode webhook envelope, dropping event...")
		return nil, err
	}

	d.Dispatch(event)
	return event, nil
}

func (d *WebhookDispatcher) verify(body []byte, authToken string) error {
	if authToken == "" {
		return ErrMissingSignature
	}

	verifier, err := auth.ParseAPIToken(authToken)
	if err != nil {
		return err
	}
	if verifier.APIKey() != d.apiKey {
		return errors.New("webhook signed with an unknown api key")
	}
	claims, err := verifier.Verify(d.apiSecret)
	if err != nil {
		return err
	}

	sum := sha256.Sum256(body)
	if claims.Sha256 != base64.StdEncoding.EncodeToString(sum[:]) {
		return ErrInvalidSignature
	}
	return nil
}

// Dispatch routes a decoded event by kind. Unknown kinds are logged and
// dropped rather than surfaced as errors.
func (d *WebhookDispatcher) Dispatch(event *livekit.WebhookEvent) {
	switch event.Event {
	case "room_started":
		d.handleRoomStarted(event)
	case "room_finished":
		d.handleRoomFinished(event)
	case "participant_joined":
		d.handleParticipantJoined(event)
	case "participant_left":
		d.handleParticipantLeft(event)
	case "track_published", "track_unpublished":
		d.handleTrackChanged(event)
	case "egress_started", "egress_updated", "egress_ended":
		d.handleEgressChanged(event)
	default:
		log.Warn().Str("kind", event.Event).Msg("Unknown webhook event kind, dropping it...")
	}
}

func (d *WebhookDispatcher) handleRoomStarted(event *livekit.WebhookEvent) {
	if event.Room == nil {
		return
	}
	callID := event.Room.Name

	_, existing := d.store.CreateOrGet(callID, event.Room.Sid, nil)
	if !existing {
		d.events.Publish(bus.Event{Kind: bus.KindCallCreated, CallID: callID})
	}
	d.store.LogEvent(callID, event.Event, map[string]any{"room_sid": event.Room.Sid})
	if _, changed := d.store.MarkActive(callID, event.Room.Sid); changed {
		d.events.Publish(bus.Event{Kind: bus.KindCallActive, CallID: callID})
	}
}

func (d *WebhookDispatcher) handleRoomFinished(event *livekit.WebhookEvent) {
	if event.Room == nil {
		return
	}
	callID := event.Room.Name

	d.store.LogEvent(callID, event.Event, map[string]any{"room_sid": event.Room.Sid})
	if session, changed := d.store.MarkEnded(callID); changed {
		d.events.Publish(bus.Event{
			Kind:    bus.KindCallEnded,
			CallID:  callID,
			Payload: map[string]any{"duration": session.Duration},
		})
	}
}

func (d *WebhookDispatcher) handleParticipantJoined(event *livekit.WebhookEvent) {
	if event.Room == nil || event.Participant == nil {
		return
	}
	callID := event.Room.Name
	role := ResolveRole(event.Participant.Identity, event.Participant.Metadata)

	d.store.AddParticipant(callID, event.Participant.Identity, role)
	d.store.LogEvent(callID, event.Event, map[string]any{
		"identity": event.Participant.Identity,
		"role":     role,
	})
	d.events.Publish(bus.Event{
		Kind:    bus.KindParticipantJoin,
		CallID:  callID,
		Payload: bus.ParticipantPayload{Identity: event.Participant.Identity, Role: role},
	})

	// The first confirmed join can beat the room-started signal.
	if _, changed := d.store.MarkActive(callID, event.Room.Sid); changed {
		d.events.Publish(bus.Event{Kind: bus.KindCallActive, CallID: callID})
	}
}

func (d *WebhookDispatcher) handleParticipantLeft(event *livekit.WebhookEvent) {
	if event.Room == nil || event.Participant == nil {
		return
	}
	callID := event.Room.Name
	role := ResolveRole(event.Participant.Identity, event.Participant.Metadata)

	d.store.RemoveParticipant(callID, event.Participant.Identity)
	d.store.LogEvent(callID, event.Event, map[string]any{
		"identity": event.Participant.Identity,
		"role":     role,
	})
	d.events.Publish(bus.Event{
		Kind:    bus.KindParticipantLeft,
		CallID:  callID,
		Payload: bus.ParticipantPayload{Identity: event.Participant.Identity, Role: role},
	})
}

func (d *WebhookDispatcher) handleTrackChanged(event *livekit.WebhookEvent) {
	if event.Room == nil || event.Track == nil {
		return
	}
	callID := event.Room.Name

	kind := bus.KindTrackPublished
	if event.Event == "track_unpublished" {
		kind = bus.KindTrackUnpublished
	}
	payload := bus.TrackPayload{
		SID:  event.Track.Sid,
		Kind: strings.ToLower(event.Track.Type.String()),
	}
	if event.Participant != nil {
		payload.PublisherIdentity = event.Participant.Identity
	}

	d.store.LogEvent(callID, event.Event, map[string]any{
		"track_sid": payload.SID,
		"kind":      payload.Kind,
		"publisher": payload.PublisherIdentity,
	})
	d.events.Publish(bus.Event{Kind: kind, CallID: callID, Payload: payload})
}

func (d *WebhookDispatcher) handleEgressChanged(event *livekit.WebhookEvent) {
	if event.EgressInfo == nil {
		return
	}
	d.store.LogEvent(event.EgressInfo.RoomName, event.Event, map[string]any{
		"egress_id": event.EgressInfo.EgressId,
		"status":    event.EgressInfo.Status.String(),
	})
	d.recordings.HandleEgressInfo(event.EgressInfo)
}

// DescribeTracks turns the platform's live participant listing into
// subscription descriptors. Derived fresh per decision, never cached.
func DescribeTracks(participants []*livekit.ParticipantInfo) []models.TrackDescriptor {
	var out []models.TrackDescriptor
	for _, participant := range participants {
		role := ResolveRole(participant.Identity, participant.Metadata)
		for _, track := range participant.Tracks {
			out = append(out, models.TrackDescriptor{
				SID:               track.Sid,
				Kind:              strings.ToLower(track.Type.String()),
				PublisherIdentity: participant.Identity,
				PublisherRole:     role,
				Muted:             track.Muted,
			})
		}
	}
	return out
}
