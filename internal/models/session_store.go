package models

import (
	"sort"
	"sync"
)

// SessionStore is an addressable collection of independent FeedSession
// records keyed by camera id. Records are stored by value and every
// mutation is a whole-record replacement, so a reader holding a snapshot
// never observes a half-updated record and no session update can touch
// another session's fields.
type SessionStore struct {
	mu   sync.RWMutex
	data map[string]FeedSession
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		data: make(map[string]FeedSession),
	}
}

// Put inserts or replaces the record for its camera id.
func (s *SessionStore) Put(session FeedSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[session.CameraID] = session
}

// Get returns a copy of the record for the given camera id.
func (s *SessionStore) Get(cameraID string) (FeedSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.data[cameraID]
	return session, ok
}

// Update applies fn to a copy of the record and replaces the stored
// record with the result, atomically. Returns false when the camera id
// is not enrolled; fn is not called in that case.
func (s *SessionStore) Update(cameraID string, fn func(FeedSession) FeedSession) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.data[cameraID]
	if !ok {
		return false
	}
	s.data[cameraID] = fn(session)
	return true
}

// All returns a snapshot of every record, ordered by camera id so folds
// over the snapshot are deterministic.
func (s *SessionStore) All() []FeedSession {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]FeedSession, 0, len(s.data))
	for _, session := range s.data {
		sessions = append(sessions, session)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CameraID < sessions[j].CameraID
	})
	return sessions
}

// Streaming returns a snapshot of records currently streaming.
func (s *SessionStore) Streaming() []FeedSession {
	all := s.All()
	streaming := all[:0]
	for _, session := range all {
		if session.IsStreaming {
			streaming = append(streaming, session)
		}
	}
	return streaming
}

func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Delete removes the record for the given camera id.
func (s *SessionStore) Delete(cameraID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, cameraID)
}
