package models

import (
	"time"

	"gorm.io/datatypes"
)

type CallStatus = string

const (
	CallStatusCreated CallStatus = "created"
	CallStatusActive  CallStatus = "active"
	CallStatusEnded   CallStatus = "ended"
)

type RecordingStatus = string

const (
	RecordingNotStarted RecordingStatus = "not_started"
	RecordingActive     RecordingStatus = "recording"
	RecordingCompleted  RecordingStatus = "completed"
	RecordingFailed     RecordingStatus = "failed"
)

// CallSession is the authoritative record of a single call.
// CallID doubles as the room name on the media platform side.
type CallSession struct {
	BaseModel

	CallID          string            `json:"call_id" gorm:"uniqueIndex"`
	RoomSID         string            `json:"room_sid"`
	Status          CallStatus        `json:"status"`
	StartedAt       *time.Time        `json:"started_at"`
	EndedAt         *time.Time        `json:"ended_at"`
	Duration        int64             `json:"duration"`
	RecordingID     string            `json:"recording_id"`
	RecordingStatus RecordingStatus   `json:"recording_status"`
	Metadata        datatypes.JSONMap `json:"metadata"`

	Participants []ParticipantRecord `json:"participants" gorm:"-"`
}

type ParticipantRecord struct {
	BaseModel

	CallID   string     `json:"call_id" gorm:"index"`
	Identity string     `json:"identity"`
	Role     Role       `json:"role"`
	JoinedAt time.Time  `json:"joined_at"`
	LeftAt   *time.Time `json:"left_at"`
}

func (r ParticipantRecord) Open() bool {
	return r.LeftAt == nil
}

// CallEvent rows are append-only; they are never updated or rewritten.
type CallEvent struct {
	BaseModel

	CallID string            `json:"call_id" gorm:"index"`
	Kind   string            `json:"kind"`
	Body   datatypes.JSONMap `json:"body"`
}
