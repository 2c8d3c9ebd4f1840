package services

import (
	"sync"

	"github.com/driveline/callbridge/pkg/internal/bus"
	"github.com/rs/zerolog/log"
)

// QueueRegistry owns every per-room audio queue. Queues are created
// lazily on first use and evicted when the call ends, so no ambient
// room-to-queue state outlives its session.
type QueueRegistry struct {
	events     *bus.Bus
	publish    PublishFunc
	sampleRate int
	channels   int

	mu     sync.Mutex
	queues map[string]*AudioQueue
}

func NewQueueRegistry(events *bus.Bus, publish PublishFunc, sampleRate, channels int) *QueueRegistry {
	return &QueueRegistry{
		events:     events,
		publish:    publish,
		sampleRate: sampleRate,
		channels:   channels,
		queues:     make(map[string]*AudioQueue),
	}
}

// Get returns the room's queue, creating it on first use.
func (r *QueueRegistry) Get(room string) *AudioQueue {
	r.mu.Lock()
	defer r.mu.Unlock()
	queue, ok := r.queues[room]
	if !ok {
		queue = newAudioQueue(room, r.publish, r.sampleRate, r.channels)
		queue.onCutOff = r.notifyCutOff
		r.queues[room] = queue
	}
	return queue
}

// Peek returns the room's queue without creating one.
func (r *QueueRegistry) Peek(room string) (*AudioQueue, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	queue, ok := r.queues[room]
	return queue, ok
}

// Evict closes and removes the room's queue.
func (r *QueueRegistry) Evict(room string) {
	r.mu.Lock()
	queue, ok := r.queues[room]
	delete(r.queues, room)
	r.mu.Unlock()
	if ok {
		queue.Close()
	}
}

func (r *QueueRegistry) notifyCutOff(room string, itemID string) {
	if r.events == nil {
		return
	}
	r.events.Publish(bus.Event{
		Kind:    bus.KindPlaybackCutOff,
		CallID:  room,
		Payload: bus.PlaybackPayload{ItemID: itemID},
	})
}

// Watch evicts queues as their calls end. Runs until the subscription's
// channel is closed, which never happens in-process; call it from a
// goroutine at startup.
func (r *QueueRegistry) Watch() {
	sub := r.events.Subscribe("audio-queue-registry", 32, bus.KindCallEnded)
	for evt := range sub.C {
		log.Debug().Str("room", evt.CallID).Msg("Call ended, evicting its audio queue...")
		r.Evict(evt.CallID)
	}
}
