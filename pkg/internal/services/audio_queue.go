package services

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// AudioQueueItem lives inside exactly one queue and is gone once played,
// cleared or cut off.
type AudioQueueItem struct {
	ID         string         `json:"id"`
	Payload    []byte         `json:"-"`
	EnqueuedAt time.Time      `json:"enqueued_at"`
	DurationMs int64          `json:"duration_ms"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// PublishFunc hands an item's bytes to the media platform. Delivery is
// an external collaborator's concern; the queue only owns timing and
// ordering.
type PublishFunc func(room string, item *AudioQueueItem) error

// AudioQueue plays synthesized speech into one room, one item at a time.
// Advancement runs on a single logical sequence per room: a playback
// goroutine owns the chain until its generation is superseded.
type AudioQueue struct {
	room       string
	publish    PublishFunc
	sampleRate int
	channels   int
	onCutOff   func(room string, itemID string)

	mu      sync.Mutex
	pending []*AudioQueueItem
	playing *AudioQueueItem
	stop    chan struct{}
	gen     uint64
	paused  bool
	closed  bool
}

func newAudioQueue(room string, publish PublishFunc, sampleRate, channels int) *AudioQueue {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	if channels <= 0 {
		channels = 1
	}
	return &AudioQueue{
		room:       room,
		publish:    publish,
		sampleRate: sampleRate,
		channels:   channels,
	}
}

// Enqueue appends an item and begins playback when the queue is idle.
// A non-positive durationMs is computed from the payload size assuming
// 16-bit PCM at the queue's sample rate and channel count.
func (q *AudioQueue) Enqueue(payload []byte, durationMs int64, metadata map[string]any) string {
	item := &AudioQueueItem{
		ID:         uuid.NewString(),
		Payload:    payload,
		EnqueuedAt: time.Now(),
		DurationMs: durationMs,
		Metadata:   metadata,
	}
	if item.DurationMs <= 0 {
		item.DurationMs = pcmDurationMs(len(payload), q.sampleRate, q.channels)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		log.Warn().Str("room", q.room).Msg("Audio enqueued into a closed queue, dropping it...")
		return item.ID
	}
	q.pending = append(q.pending, item)
	if q.playing == nil && !q.paused {
		q.startNextLocked()
	}
	return item.ID
}

// Clear discards every pending item, leaving the currently playing one
// alone, and returns how many were discarded.
func (q *AudioQueue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	count := len(q.pending)
	q.pending = nil
	return count
}

// Pause halts advancement once the current item finishes.
func (q *AudioQueue) Pause() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.paused = true
}

func (q *AudioQueue) Resume() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.paused = false
	if q.playing == nil && !q.closed {
		q.startNextLocked()
	}
}

// InterruptAndPlay atomically drops the backlog, cuts the current item's
// playback window short and plays the new item immediately. The cut-off
// item is reported through the queue's notification hook; bytes already
// handed to the platform are not recalled.
func (q *AudioQueue) InterruptAndPlay(payload []byte, durationMs int64, metadata map[string]any) string {
	item := &AudioQueueItem{
		ID:         uuid.NewString(),
		Payload:    payload,
		EnqueuedAt: time.Now(),
		DurationMs: durationMs,
		Metadata:   metadata,
	}
	if item.DurationMs <= 0 {
		item.DurationMs = pcmDurationMs(len(payload), q.sampleRate, q.channels)
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		log.Warn().Str("room", q.room).Msg("Audio enqueued into a closed queue, dropping it...")
		return item.ID
	}
	q.pending = nil
	cut := q.playing
	if cut != nil {
		close(q.stop)
	}
	q.paused = false
	q.gen++
	q.playing = item
	q.stop = make(chan struct{})
	go q.runPlayback(item, q.gen, q.stop)
	q.mu.Unlock()

	if cut != nil && q.onCutOff != nil {
		q.onCutOff(q.room, cut.ID)
	}
	return item.ID
}

// Snapshot returns the current playing item id and backlog size.
func (q *AudioQueue) Snapshot() (playing string, pending int, paused bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.playing != nil {
		playing = q.playing.ID
	}
	return playing, len(q.pending), q.paused
}

// Close stops the queue for good; pending items are dropped and the
// current playback chain is abandoned.
func (q *AudioQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.pending = nil
	if q.playing != nil {
		close(q.stop)
		q.playing = nil
	}
	q.gen++
}

// startNextLocked pops the head item and hands it to a fresh playback
// goroutine. Callers must hold q.mu.
func (q *AudioQueue) startNextLocked() {
	if len(q.pending) == 0 {
		return
	}
	item := q.pending[0]
	q.pending = q.pending[1:]
	q.gen++
	q.playing = item
	q.stop = make(chan struct{})
	go q.runPlayback(item, q.gen, q.stop)
}

func (q *AudioQueue) runPlayback(item *AudioQueueItem, gen uint64, stop chan struct{}) {
	if err := q.publish(q.room, item); err != nil {
		// Playback failures never reach the call; log and keep the line moving.
		log.Warn().Err(err).Str("room", q.room).Str("item_id", item.ID).Msg("An error occurred when publishing queued audio...")
	}

	select {
	case <-time.After(time.Duration(item.DurationMs) * time.Millisecond):
	case <-stop:
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.gen != gen {
		return
	}
	q.playing = nil
	if !q.paused && !q.closed {
		q.startNextLocked()
	}
}

func pcmDurationMs(size, sampleRate, channels int) int64 {
	bytesPerSecond := sampleRate * channels * 2
	if bytesPerSecond <= 0 || size <= 0 {
		return 0
	}
	return int64(size) * 1000 / int64(bytesPerSecond)
}
