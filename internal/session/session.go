// Package session tracks the server lifecycle: one session per process,
// created uninitialized and driven forward by the handshake and by shutdown.
package session

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// State is a lifecycle phase. Transitions only move forward; Stopped is
// terminal.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateInitializing  State = "initializing"
	StateReady         State = "ready"
	StateShuttingDown  State = "shutting_down"
	StateStopped       State = "stopped"
)

// Session is the single lifecycle object for one server process. All methods
// are safe for concurrent use.
type Session struct {
	mu              sync.Mutex
	id              string
	state           State
	protocolVersion string
}

// New creates a session in the uninitialized state.
func New() *Session {
	return &Session{
		id:    uuid.NewString(),
		state: StateUninitialized,
	}
}

// ID returns the session identity.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// BeginInitialize moves uninitialized -> initializing on receipt of the
// handshake request. A handshake in any other state is a protocol violation.
func (s *Session) BeginInitialize(protocolVersion string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateUninitialized {
		return fmt.Errorf("initialize not allowed in state %q", s.state)
	}
	s.state = StateInitializing
	s.protocolVersion = protocolVersion
	return nil
}

// MarkReady moves initializing -> ready once the handshake response has been
// flushed.
func (s *Session) MarkReady() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInitializing {
		return fmt.Errorf("cannot become ready from state %q", s.state)
	}
	s.state = StateReady
	return nil
}

// CheckDispatch reports whether a tool invocation may be dispatched right
// now. Requests arriving early or during shutdown are rejected, not queued.
func (s *Session) CheckDispatch() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReady {
		return fmt.Errorf("tool calls not accepted in state %q", s.state)
	}
	return nil
}

// BeginShutdown moves any live state to shutting_down. Safe to call more
// than once; a stopped session stays stopped.
func (s *Session) BeginShutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateStopped || s.state == StateShuttingDown {
		return
	}
	s.state = StateShuttingDown
}

// MarkStopped makes the session terminal. No transition leaves this state.
func (s *Session) MarkStopped() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateStopped
}

// ProtocolVersion returns the version negotiated during the handshake, or
// empty before one happened.
func (s *Session) ProtocolVersion() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.protocolVersion
}
