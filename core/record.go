package core

import (
	"fmt"

	"github.com/lisuiheng/pulse-go/proto"
)

// Record side: peek views the next captured fragment without consuming it,
// drop advances past it. The read-ready handler announces availability.

// Peek returns the next captured fragment, or nil if none is buffered. The
// fragment stays current until Drop.
func (s *Stream) Peek() ([]byte, error) {
	s.mu.Lock()
	if s.dir != proto.DirectionRecord {
		s.mu.Unlock()
		return nil, fmt.Errorf("peek on %s stream: %w", s.dir, ErrBadDirection)
	}
	if s.state != proto.StreamReady {
		st := s.state
		s.mu.Unlock()
		return nil, fmt.Errorf("peek in state %s: %w", st, ErrInvalidState)
	}
	s.mu.Unlock()

	p, err := s.h.Peek()
	if err != nil {
		return nil, fmt.Errorf("stream peek: %w", err)
	}
	return p, nil
}

// Drop consumes the fragment returned by the last Peek.
func (s *Stream) Drop() error {
	s.mu.Lock()
	if s.dir != proto.DirectionRecord {
		s.mu.Unlock()
		return fmt.Errorf("drop on %s stream: %w", s.dir, ErrBadDirection)
	}
	if s.state != proto.StreamReady {
		st := s.state
		s.mu.Unlock()
		return fmt.Errorf("drop in state %s: %w", st, ErrInvalidState)
	}
	s.mu.Unlock()

	if err := s.h.Drop(); err != nil {
		return fmt.Errorf("stream drop: %w", err)
	}
	return nil
}

func (s *Stream) onReadRequest(nbytes uint32) {
	s.mu.Lock()
	h := s.readH
	s.mu.Unlock()
	if h != nil {
		h(nbytes)
	}
}
