package services

import (
	"encoding/binary"
	"math"
	"sync"
	"time"
)

// FrameSpec describes the PCM format a stream declared when it started.
type FrameSpec struct {
	SampleRate    int
	Channels      int
	BitDepth      int
	FrameDuration time.Duration
}

func (s FrameSpec) ExpectedBytes() int {
	if s.SampleRate <= 0 || s.Channels <= 0 || s.BitDepth <= 0 || s.FrameDuration <= 0 {
		return 0
	}
	samples := int(float64(s.SampleRate) * s.FrameDuration.Seconds())
	return samples * s.Channels * s.BitDepth / 8
}

type FrameReport struct {
	Valid  bool     `json:"valid"`
	Issues []string `json:"issues,omitempty"`
}

// ValidateFrame runs sanity checks on a single inbound audio frame. A
// frame outside 50%-200% of the expected size is flagged but still
// valid; only a nil or empty frame is rejected outright.
func ValidateFrame(frame []byte, spec FrameSpec) FrameReport {
	if len(frame) == 0 {
		return FrameReport{Valid: false, Issues: []string{"empty frame"}}
	}

	report := FrameReport{Valid: true}
	if expected := spec.ExpectedBytes(); expected > 0 {
		if len(frame) < expected/2 {
			report.Issues = append(report.Issues, "frame shorter than half the expected size")
		} else if len(frame) > expected*2 {
			report.Issues = append(report.Issues, "frame longer than twice the expected size")
		}
	}
	if len(frame)%2 != 0 {
		report.Issues = append(report.Issues, "frame is not aligned to 16-bit samples")
	}
	return report
}

// IsSilentFrame reports whether the frame's root-mean-square energy,
// normalized to [0, 1], falls below the threshold. Samples are 16-bit
// little-endian PCM.
func IsSilentFrame(frame []byte, threshold float64) bool {
	if len(frame) < 2 {
		return true
	}

	var sum float64
	count := len(frame) / 2
	for idx := 0; idx < count; idx++ {
		sample := int16(binary.LittleEndian.Uint16(frame[idx*2:]))
		value := float64(sample) / math.MaxInt16
		sum += value * value
	}
	rms := math.Sqrt(sum / float64(count))
	return rms < threshold
}

// SequenceTracker detects packet loss per stream. The first sequence
// number seen for a stream only establishes the baseline.
type SequenceTracker struct {
	mu   sync.Mutex
	last map[string]uint32
}

func NewSequenceTracker() *SequenceTracker {
	return &SequenceTracker{last: make(map[string]uint32)}
}

// CheckPacketLoss compares the current sequence number to the last one
// seen on the stream and returns the number of packets missing between
// them. Duplicates and reordered packets report zero.
func (t *SequenceTracker) CheckPacketLoss(stream string, seq uint32) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	last, seen := t.last[stream]
	if !seen {
		t.last[stream] = seq
		return 0
	}
	if seq <= last {
		return 0
	}
	t.last[stream] = seq
	return int(seq - last - 1)
}

// Forget drops the stream's baseline, typically when its publisher
// leaves the room.
func (t *SequenceTracker) Forget(stream string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.last, stream)
}
