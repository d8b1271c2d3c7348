package session

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/cafevoz/cafevoz/pkg/audiodev"
	"github.com/cafevoz/cafevoz/pkg/order"
)

// Session is one recording turn: mic open, stream open, transcript
// accumulating. The controller creates it in Start and finalizes it exactly
// once, whether the server ends the turn, the user stops early, or the
// stream fails.
type Session struct {
	id        string
	startedAt time.Time

	mu         sync.RWMutex
	state      State
	status     string
	transcript strings.Builder
	lines      []order.Line

	stream Stream
	source audiodev.Source
	cancel context.CancelFunc

	finalized atomic.Bool
}

func newSession() *Session {
	return &Session{
		id:        uuid.NewString(),
		startedAt: time.Now(),
		state:     StateConnecting,
		status:    StatusConnecting,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// StartedAt returns when the session was created.
func (s *Session) StartedAt() time.Time { return s.startedAt }

// State returns the current lifecycle phase.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Status returns the customer-facing status line.
func (s *Session) Status() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Active reports whether the session still owns resources.
func (s *Session) Active() bool {
	return s.State() != StateIdle
}

// Transcript returns the text accumulated so far.
func (s *Session) Transcript() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.transcript.String()
}

// Lines returns the order parsed from this session, if any.
func (s *Session) Lines() []order.Line {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lines
}

func (s *Session) setState(state State, status string) {
	s.mu.Lock()
	s.state = state
	s.status = status
	s.mu.Unlock()
}

// setStateIfLive transitions only while the session has not been
// finalized. The finalized check happens under the same lock as the
// write, so a finalizer that wins the flag cannot have its terminal
// Idle overwritten by a late server callback.
func (s *Session) setStateIfLive(state State, status string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized.Load() {
		return false
	}
	s.state = state
	s.status = status
	return true
}

func (s *Session) setStatus(status string) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

func (s *Session) appendTranscript(text string) string {
	s.mu.Lock()
	s.transcript.WriteString(text)
	out := s.transcript.String()
	s.mu.Unlock()
	return out
}

func (s *Session) setLines(lines []order.Line) {
	s.mu.Lock()
	s.lines = lines
	s.mu.Unlock()
}
