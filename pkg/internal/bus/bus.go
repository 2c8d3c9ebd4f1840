package bus

import (
	"sync"
	"time"

	"github.com/driveline/callbridge/pkg/internal/models"
	"github.com/rs/zerolog/log"
)

type Kind string

const (
	KindCallCreated      Kind = "call_created"
	KindCallActive       Kind = "call_active"
	KindCallEnded        Kind = "call_ended"
	KindParticipantJoin  Kind = "participant_joined"
	KindParticipantLeft  Kind = "participant_left"
	KindTrackPublished   Kind = "track_published"
	KindTrackUnpublished Kind = "track_unpublished"
	KindRecordingStarted Kind = "recording_started"
	KindRecordingStopped Kind = "recording_stopped"
	KindRecordingFailed  Kind = "recording_failed"
	KindPlaybackCutOff   Kind = "playback_interrupted"
	KindTranscript       Kind = "transcript"
	KindTurnState        Kind = "turn_state"
	KindHandoffRequested Kind = "handoff_requested"
)

type Event struct {
	Kind    Kind      `json:"kind"`
	CallID  string    `json:"call_id"`
	At      time.Time `json:"at"`
	Payload any       `json:"payload,omitempty"`
}

// Typed payloads per kind.

type ParticipantPayload struct {
	Identity string      `json:"identity"`
	Role     models.Role `json:"role"`
}

type TrackPayload struct {
	SID               string `json:"sid"`
	Kind              string `json:"kind"`
	PublisherIdentity string `json:"publisher_identity"`
}

type RecordingPayload struct {
	EgressID string `json:"egress_id"`
	Error    string `json:"error,omitempty"`
}

type PlaybackPayload struct {
	ItemID string `json:"item_id"`
}

type ForwardedPayload struct {
	Speaker string         `json:"speaker,omitempty"`
	Text    string         `json:"text,omitempty"`
	State   string         `json:"state,omitempty"`
	Extra   map[string]any `json:"extra,omitempty"`
}

type Subscription struct {
	C     <-chan Event
	kinds map[Kind]bool
	ch    chan Event
	name  string
}

const maxSubscribers = 64

// Bus is the in-process call event channel. The subscriber list is
// append-only for the life of the process, and publishing never blocks
// on a slow subscriber.
type Bus struct {
	mu   sync.RWMutex
	subs []*Subscription
}

func New() *Bus {
	return &Bus{}
}

// Subscribe registers a named subscriber interested in the given kinds,
// or in every kind when none are named.
func (b *Bus) Subscribe(name string, buffer int, kinds ...Kind) *Subscription {
	if buffer <= 0 {
		buffer = 16
	}

	sub := &Subscription{
		ch:   make(chan Event, buffer),
		name: name,
	}
	sub.C = sub.ch
	if len(kinds) > 0 {
		sub.kinds = make(map[Kind]bool, len(kinds))
		for _, kind := range kinds {
			sub.kinds[kind] = true
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.subs) >= maxSubscribers {
		log.Error().Str("subscriber", name).Msg("Event bus subscriber limit reached, events will not be delivered to it...")
		return sub
	}
	b.subs = append(b.subs, sub)

	return sub
}

func (b *Bus) Publish(evt Event) {
	if evt.At.IsZero() {
		evt.At = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if sub.kinds != nil && !sub.kinds[evt.Kind] {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			log.Warn().
				Str("subscriber", sub.name).
				Str("kind", string(evt.Kind)).
				Str("call_id", evt.CallID).
				Msg("Event bus subscriber buffer is full, dropping event...")
		}
	}
}
