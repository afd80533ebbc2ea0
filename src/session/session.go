// Package session holds the single in-flight snip capture.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"screen-snip/src/screenshot"
)

// Snapshot is the content of a live session.
type Snapshot struct {
	ID         string
	Buffer     *screenshot.PixelBuffer
	CapturedAt time.Time
}

// Status describes the slot without exposing pixels.
type Status struct {
	Active     bool
	ID         string
	Width      int
	Height     int
	CapturedAt time.Time
}

// Session is a single-slot store. The zero value is an idle session.
// The mutex is held only while the slot is read or written.
type Session struct {
	mu   sync.Mutex
	slot *Snapshot
	now  func() time.Time
}

// New returns an idle session.
func New() *Session {
	return &Session{now: time.Now}
}

// Put replaces the slot with buf and returns the id of the new session.
// The last Put wins.
func (s *Session) Put(buf *screenshot.PixelBuffer) string {
	snap := &Snapshot{ID: uuid.NewString(), Buffer: buf, CapturedAt: s.clock()}
	s.mu.Lock()
	s.slot = snap
	s.mu.Unlock()
	return snap.ID
}

// Peek returns the live snapshot without consuming it.
func (s *Session) Peek() (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.slot == nil {
		return Snapshot{}, false
	}
	return *s.slot, true
}

// Take removes and returns the live snapshot.
func (s *Session) Take() (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.slot == nil {
		return Snapshot{}, false
	}
	snap := *s.slot
	s.slot = nil
	return snap, true
}

// Clear empties the slot and reports whether a session was live.
func (s *Session) Clear() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	had := s.slot != nil
	s.slot = nil
	return had
}

// ClearIf empties the slot only when it still holds the session with the given id.
func (s *Session) ClearIf(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.slot == nil || s.slot.ID != id {
		return false
	}
	s.slot = nil
	return true
}

// Status reports the slot contents.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.slot == nil {
		return Status{}
	}
	st := Status{Active: true, ID: s.slot.ID, CapturedAt: s.slot.CapturedAt}
	if s.slot.Buffer != nil {
		st.Width = s.slot.Buffer.Width()
		st.Height = s.slot.Buffer.Height()
	}
	return st
}

func (s *Session) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}
