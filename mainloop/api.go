// Package mainloop provides the event-loop abstraction the binding runs on:
// I/O readiness watches, one-shot timers and deferred callbacks behind a
// small capability interface, with a poll(2) based standalone loop and a
// threaded variant that runs the loop on a background goroutine.
package mainloop

import (
	"errors"
	"time"
)

// ErrLoopShutdown is returned when a registration is attempted on a loop
// that has begun shutdown.
var ErrLoopShutdown = errors.New("mainloop is shutting down")

// IOEventFlags select which I/O conditions a watch reports.
type IOEventFlags uint32

const (
	IOEventNull   IOEventFlags = 0
	IOEventInput  IOEventFlags = 1 << 0
	IOEventOutput IOEventFlags = 1 << 1
	IOEventHangup IOEventFlags = 1 << 2
	IOEventError  IOEventFlags = 1 << 3
)

// IOHandler is invoked when a watched descriptor becomes ready.
type IOHandler func(e IOEvent, fd int, events IOEventFlags)

// TimeHandler is invoked when a timer expires.
type TimeHandler func(e TimeEvent)

// DeferHandler is invoked once per loop iteration while enabled.
type DeferHandler func(e DeferEvent)

// IOEvent is one registered I/O watch. Free deregisters it; freeing from
// inside the watch's own handler is legal.
type IOEvent interface {
	// Update replaces the set of watched conditions.
	Update(events IOEventFlags)
	Free()
}

// TimeEvent is one registered timer. A timer fires once; Restart arms it
// again.
type TimeEvent interface {
	Restart(at time.Time)
	Free()
}

// DeferEvent is one registered deferred callback.
type DeferEvent interface {
	Enable(enabled bool)
	Free()
}

// API is the capability surface loop providers implement. Handlers run
// strictly on the providing loop's dispatch context. Registration fails
// with ErrLoopShutdown once the loop has begun shutdown.
type API interface {
	NewIOEvent(fd int, events IOEventFlags, h IOHandler) (IOEvent, error)
	NewTimeEvent(at time.Time, h TimeHandler) (TimeEvent, error)
	NewDeferEvent(h DeferHandler) (DeferEvent, error)
}
