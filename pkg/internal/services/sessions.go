package services

import (
	"sync"
	"time"

	"github.com/driveline/callbridge/pkg/internal/models"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

// SessionStore owns every CallSession record. All mutations go through it
// and are serialized per call id; other components only read snapshots or
// append to the event log. A nil *gorm.DB keeps the store memory-only,
// which is also how unit tests run it.
type SessionStore struct {
	db *gorm.DB

	mu      sync.Mutex
	entries map[string]*sessionEntry
}

type sessionEntry struct {
	mu           sync.Mutex
	session      models.CallSession
	participants []models.ParticipantRecord
}

func NewSessionStore(db *gorm.DB) *SessionStore {
	return &SessionStore{
		db:      db,
		entries: make(map[string]*sessionEntry),
	}
}

// CreateOrGet returns the session for callId, creating it when absent.
// The second return reports whether the session already existed; an
// existing record is returned unmodified.
func (s *SessionStore) CreateOrGet(callID string, roomSid string, metadata map[string]any) (models.CallSession, bool) {
	s.mu.Lock()
	entry, existing := s.entries[callID]
	if !existing {
		entry = &sessionEntry{
			session: models.CallSession{
				CallID:          callID,
				RoomSID:         roomSid,
				Status:          models.CallStatusCreated,
				RecordingStatus: models.RecordingNotStarted,
				Metadata:        metadata,
			},
		}
		entry.session.CreatedAt = time.Now()
		s.entries[callID] = entry
	}
	s.mu.Unlock()

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if !existing {
		s.persist(entry)
	}
	return snapshot(entry), existing
}

// MarkActive moves a session into the active state. The first activation
// sets startedAt; later signals only backfill the room sid. Ended
// sessions are never resurrected.
func (s *SessionStore) MarkActive(callID string, roomSid string) (models.CallSession, bool) {
	entry := s.ensure(callID, roomSid)

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.session.Status == models.CallStatusEnded {
		return snapshot(entry), false
	}
	if roomSid != "" && entry.session.RoomSID == "" {
		entry.session.RoomSID = roomSid
	}
	if entry.session.Status == models.CallStatusActive {
		return snapshot(entry), false
	}

	entry.session.Status = models.CallStatusActive
	entry.session.StartedAt = lo.ToPtr(time.Now())
	s.persist(entry)
	return snapshot(entry), true
}

// MarkEnded finishes a session. Duration is whole seconds, zero when the
// room finished before anyone joined. Open participant records are closed
// alongside. A second call is a no-op.
func (s *SessionStore) MarkEnded(callID string) (models.CallSession, bool) {
	entry := s.ensure(callID, "")

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.session.Status == models.CallStatusEnded {
		return snapshot(entry), false
	}

	now := time.Now()
	entry.session.Status = models.CallStatusEnded
	entry.session.EndedAt = &now
	if entry.session.StartedAt != nil {
		entry.session.Duration = int64(now.Sub(*entry.session.StartedAt).Seconds())
	}
	for idx := range entry.participants {
		if entry.participants[idx].Open() {
			entry.participants[idx].LeftAt = &now
		}
	}
	s.persist(entry)
	return snapshot(entry), true
}

// AddParticipant opens a participant record, or does nothing when an open
// record for the identity already exists. Re-joining after a close opens
// a fresh record.
func (s *SessionStore) AddParticipant(callID string, identity string, role models.Role) models.ParticipantRecord {
	entry := s.ensure(callID, "")

	entry.mu.Lock()
	defer entry.mu.Unlock()
	for idx := range entry.participants {
		if entry.participants[idx].Identity == identity && entry.participants[idx].Open() {
			return entry.participants[idx]
		}
	}

	record := models.ParticipantRecord{
		CallID:   callID,
		Identity: identity,
		Role:     role,
		JoinedAt: time.Now(),
	}
	entry.participants = append(entry.participants, record)
	if s.db != nil {
		if err := s.db.Create(&entry.participants[len(entry.participants)-1]).Error; err != nil {
			log.Warn().Err(err).Str("call_id", callID).Msg("An error occurred when persisting participant record...")
		}
	}
	return record
}

// RemoveParticipant closes the most recent open record for the identity,
// or does nothing when none is open.
func (s *SessionStore) RemoveParticipant(callID string, identity string) bool {
	entry, ok := s.lookup(callID)
	if !ok {
		return false
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	for idx := len(entry.participants) - 1; idx >= 0; idx-- {
		record := &entry.participants[idx]
		if record.Identity != identity || !record.Open() {
			continue
		}
		record.LeftAt = lo.ToPtr(time.Now())
		if s.db != nil {
			if err := s.db.Save(record).Error; err != nil {
				log.Warn().Err(err).Str("call_id", callID).Msg("An error occurred when persisting participant record...")
			}
		}
		return true
	}
	return false
}

// LogEvent appends to the session's event log. Write failures are logged
// and swallowed so the caller's request never fails on bookkeeping.
func (s *SessionStore) LogEvent(callID string, kind string, body map[string]any) {
	s.ensure(callID, "")

	if s.db == nil {
		return
	}
	event := models.CallEvent{
		CallID: callID,
		Kind:   kind,
		Body:   body,
	}
	if err := s.db.Create(&event).Error; err != nil {
		log.Warn().Err(err).Str("call_id", callID).Str("kind", kind).Msg("An error occurred when appending call event...")
	}
}

// SetRecording records the external recording job for a call. The id is
// set at most once per session unless the prior recording completed or
// failed; a conflicting id is ignored and the existing one kept.
func (s *SessionStore) SetRecording(callID string, egressID string, status models.RecordingStatus) models.CallSession {
	entry := s.ensure(callID, "")

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.session.RecordingID != "" &&
		entry.session.RecordingStatus == models.RecordingActive &&
		egressID != "" && egressID != entry.session.RecordingID {
		return snapshot(entry)
	}

	if egressID != "" {
		entry.session.RecordingID = egressID
	}
	entry.session.RecordingStatus = status
	s.persist(entry)
	return snapshot(entry)
}

func (s *SessionStore) Get(callID string) (models.CallSession, bool) {
	entry, ok := s.lookup(callID)
	if !ok {
		return models.CallSession{}, false
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return snapshot(entry), true
}

func (s *SessionStore) List() []models.CallSession {
	s.mu.Lock()
	entries := lo.Values(s.entries)
	s.mu.Unlock()

	out := make([]models.CallSession, 0, len(entries))
	for _, entry := range entries {
		entry.mu.Lock()
		out = append(out, snapshot(entry))
		entry.mu.Unlock()
	}
	return out
}

func (s *SessionStore) lookup(callID string) (*sessionEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[callID]
	return entry, ok
}

// ensure returns the entry for callId, creating a best-effort record when
// the platform references a room we have no bookkeeping for yet.
func (s *SessionStore) ensure(callID string, roomSid string) *sessionEntry {
	if entry, ok := s.lookup(callID); ok {
		return entry
	}
	s.CreateOrGet(callID, roomSid, nil)
	entry, _ := s.lookup(callID)
	return entry
}

func (s *SessionStore) persist(entry *sessionEntry) {
	if s.db == nil {
		return
	}
	if err := s.db.Save(&entry.session).Error; err != nil {
		log.Warn().Err(err).Str("call_id", entry.session.CallID).Msg("An error occurred when persisting call session...")
	}
}

func snapshot(entry *sessionEntry) models.CallSession {
	out := entry.session
	out.Participants = append([]models.ParticipantRecord(nil), entry.participants...)
	return out
}
