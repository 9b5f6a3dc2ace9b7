package core

import (
	"fmt"

	"github.com/lisuiheng/pulse-go/proto"
)

// Playback side of the write-request protocol. The server advertises
// capacity through the write-ready handler; writes draw against the
// advertised total and anything beyond it is a local usage error, never
// forwarded to the server.

// Write queues p for playback. Valid only on a Ready playback stream, and
// only up to the currently advertised writable size; a longer buffer fails
// with ErrTooLarge before any native call.
func (s *Stream) Write(p []byte, seek proto.SeekMode) (int, error) {
	s.mu.Lock()
	if s.dir != proto.DirectionPlayback {
		s.mu.Unlock()
		return 0, fmt.Errorf("write on %s stream: %w", s.dir, ErrBadDirection)
	}
	if s.state != proto.StreamReady {
		st := s.state
		s.mu.Unlock()
		return 0, fmt.Errorf("write in state %s: %w", st, ErrInvalidState)
	}
	if uint32(len(p)) > s.writable {
		avail := s.writable
		s.mu.Unlock()
		return 0, fmt.Errorf("write of %d bytes with %d advertised: %w", len(p), avail, ErrTooLarge)
	}
	s.writable -= uint32(len(p))
	s.mu.Unlock()

	n, err := s.h.Write(p, seek)
	if err != nil {
		return n, fmt.Errorf("stream write: %w", err)
	}
	return n, nil
}

// WritableSize reports the advertised capacity not yet consumed by writes.
func (s *Stream) WritableSize() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writable
}

func (s *Stream) onWriteRequest(nbytes uint32) {
	s.mu.Lock()
	s.writable += nbytes
	h := s.writeH
	s.mu.Unlock()
	if h != nil {
		h(nbytes)
	}
}

func (s *Stream) onUnderflow() {
	s.mu.Lock()
	h := s.underH
	auto := s.autoResume
	s.mu.Unlock()

	s.log.Warn("stream underflow", "stream", s.name)
	if h != nil {
		h()
	}
	if auto {
		if _, err := s.Cork(false, nil); err != nil {
			s.log.Warn("auto-resume failed", "stream", s.name, "error", err)
		}
	}
}

func (s *Stream) onOverflow() {
	s.mu.Lock()
	h := s.overH
	s.mu.Unlock()

	s.log.Warn("stream overflow", "stream", s.name)
	if h != nil {
		h()
	}
}
