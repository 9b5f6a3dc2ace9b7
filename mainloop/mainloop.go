package mainloop

import (
	"errors"
	"sort"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// Mainloop is the standalone loop. It is single-threaded: Iterate and Run
// must be called from one goroutine, and all handlers run on it. Quit and
// WakeUp may be called from anywhere.
type Mainloop struct {
	mu     sync.Mutex
	ios    map[*ioEvent]struct{}
	timers map[*timeEvent]struct{}
	defers []*deferEvent

	wakeR, wakeW int

	quitting bool
	quitCode int
	closed   bool

	// Taken around every handler invocation when set; the threaded loop
	// points it at its application-visible lock.
	dispatchMu *sync.Mutex
}

// New creates a loop. The caller must Close it.
func New() (*Mainloop, error) {
	var p [2]int
	if err := unix.Pipe(p[:]); err != nil {
		return nil, err
	}
	for _, fd := range p {
		if err := unix.SetNonblock(fd, true); err != nil {
			unix.Close(p[0])
			unix.Close(p[1])
			return nil, err
		}
	}
	return &Mainloop{
		ios:    make(map[*ioEvent]struct{}),
		timers: make(map[*timeEvent]struct{}),
		wakeR:  p[0],
		wakeW:  p[1],
	}, nil
}

type ioEvent struct {
	ml     *Mainloop
	fd     int
	events IOEventFlags
	h      IOHandler
	dead   bool
}

func (e *ioEvent) Update(events IOEventFlags) {
	e.ml.mu.Lock()
	e.events = events
	e.ml.mu.Unlock()
	e.ml.WakeUp()
}

func (e *ioEvent) Free() {
	e.ml.mu.Lock()
	if !e.dead {
		e.dead = true
		delete(e.ml.ios, e)
	}
	e.ml.mu.Unlock()
	e.ml.WakeUp()
}

type timeEvent struct {
	ml      *Mainloop
	at      time.Time
	h       TimeHandler
	enabled bool
	dead    bool
}

func (e *timeEvent) Restart(at time.Time) {
	e.ml.mu.Lock()
	if !e.dead {
		e.at = at
		e.enabled = true
	}
	e.ml.mu.Unlock()
	e.ml.WakeUp()
}

func (e *timeEvent) Free() {
	e.ml.mu.Lock()
	if !e.dead {
		e.dead = true
		delete(e.ml.timers, e)
	}
	e.ml.mu.Unlock()
	e.ml.WakeUp()
}

type deferEvent struct {
	ml      *Mainloop
	h       DeferHandler
	enabled bool
	dead    bool
}

func (e *deferEvent) Enable(enabled bool) {
	e.ml.mu.Lock()
	if !e.dead {
		e.enabled = enabled
	}
	e.ml.mu.Unlock()
	if enabled {
		e.ml.WakeUp()
	}
}

func (e *deferEvent) Free() {
	e.ml.mu.Lock()
	e.dead = true
	e.ml.mu.Unlock()
}

func (m *Mainloop) NewIOEvent(fd int, events IOEventFlags, h IOHandler) (IOEvent, error) {
	m.mu.Lock()
	if m.quitting || m.closed {
		m.mu.Unlock()
		return nil, ErrLoopShutdown
	}
	e := &ioEvent{ml: m, fd: fd, events: events, h: h}
	m.ios[e] = struct{}{}
	m.mu.Unlock()
	m.WakeUp()
	return e, nil
}

func (m *Mainloop) NewTimeEvent(at time.Time, h TimeHandler) (TimeEvent, error) {
	m.mu.Lock()
	if m.quitting || m.closed {
		m.mu.Unlock()
		return nil, ErrLoopShutdown
	}
	e := &timeEvent{ml: m, at: at, h: h, enabled: true}
	m.timers[e] = struct{}{}
	m.mu.Unlock()
	m.WakeUp()
	return e, nil
}

func (m *Mainloop) NewDeferEvent(h DeferHandler) (DeferEvent, error) {
	m.mu.Lock()
	if m.quitting || m.closed {
		m.mu.Unlock()
		return nil, ErrLoopShutdown
	}
	e := &deferEvent{ml: m, h: h, enabled: true}
	m.defers = append(m.defers, e)
	m.mu.Unlock()
	m.WakeUp()
	return e, nil
}

// Registered reports the number of live registrations of all three kinds.
func (m *Mainloop) Registered() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.ios) + len(m.timers)
	for _, d := range m.defers {
		if !d.dead {
			n++
		}
	}
	return n
}

func (m *Mainloop) invoke(f func()) {
	if m.dispatchMu != nil {
		m.dispatchMu.Lock()
		defer m.dispatchMu.Unlock()
	}
	f()
}

// Iterate runs one loop iteration: deferred callbacks, then (optionally
// blocking) poll, then expired timers and ready I/O watches. It returns the
// number of handlers dispatched.
func (m *Mainloop) Iterate(block bool) (int, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return 0, errors.New("mainloop is closed")
	}
	// Deferred events dispatch FIFO; dead entries are compacted here.
	var dq []*deferEvent
	live := m.defers[:0]
	for _, d := range m.defers {
		if d.dead {
			continue
		}
		live = append(live, d)
		if d.enabled {
			dq = append(dq, d)
		}
	}
	m.defers = live
	m.mu.Unlock()

	n := 0
	for _, d := range dq {
		m.mu.Lock()
		ok := !d.dead && d.enabled
		m.mu.Unlock()
		if !ok {
			continue
		}
		m.invoke(func() { d.h(d) })
		n++
	}

	// Poll. Never blocks if deferred work ran: there may be more pending.
	m.mu.Lock()
	type polled struct {
		e  *ioEvent
		fd int
	}
	fds := []unix.PollFd{{Fd: int32(m.wakeR), Events: unix.POLLIN}}
	watch := []polled{{nil, m.wakeR}}
	for e := range m.ios {
		if e.events == IOEventNull {
			continue
		}
		fds = append(fds, unix.PollFd{Fd: int32(e.fd), Events: pollEvents(e.events)})
		watch = append(watch, polled{e, e.fd})
	}
	timeout := 0
	if block && n == 0 && !m.quitting {
		timeout = -1
		if next, ok := m.nextDeadlineLocked(); ok {
			d := time.Until(next)
			if d < 0 {
				d = 0
			}
			timeout = int(d / time.Millisecond)
			if timeout == 0 && d > 0 {
				timeout = 1
			}
		}
	}
	m.mu.Unlock()

	for {
		_, err := unix.Poll(fds, timeout)
		if err == unix.EINTR {
			timeout = 0
			continue
		}
		if err != nil {
			return n, err
		}
		break
	}

	if fds[0].Revents&unix.POLLIN != 0 {
		var buf [16]byte
		for {
			if _, err := unix.Read(m.wakeR, buf[:]); err != nil {
				break
			}
		}
	}

	// Expired timers, in deadline order. A timer fires once and stays
	// registered but disarmed until restarted.
	now := time.Now()
	m.mu.Lock()
	var due []*timeEvent
	for e := range m.timers {
		if e.enabled && !e.at.After(now) {
			e.enabled = false
			due = append(due, e)
		}
	}
	m.mu.Unlock()
	sort.Slice(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, e := range due {
		m.mu.Lock()
		ok := !e.dead
		m.mu.Unlock()
		if !ok {
			continue
		}
		m.invoke(func() { e.h(e) })
		n++
	}

	for i := 1; i < len(fds); i++ {
		re := ioFlags(fds[i].Revents)
		if re == IOEventNull {
			continue
		}
		e := watch[i].e
		m.mu.Lock()
		ok := !e.dead
		m.mu.Unlock()
		if !ok {
			continue
		}
		m.invoke(func() { e.h(e, e.fd, re) })
		n++
	}
	return n, nil
}

// Run iterates until Quit is called and returns the quit code.
func (m *Mainloop) Run() (int, error) {
	for {
		m.mu.Lock()
		if m.quitting {
			code := m.quitCode
			m.mu.Unlock()
			return code, nil
		}
		m.mu.Unlock()
		if _, err := m.Iterate(true); err != nil {
			return 0, err
		}
	}
}

// Quit makes Run return with code. Safe to call from any goroutine or from
// within a handler; it interrupts a blocking poll.
func (m *Mainloop) Quit(code int) {
	m.mu.Lock()
	m.quitting = true
	m.quitCode = code
	m.mu.Unlock()
	m.WakeUp()
}

// WakeUp interrupts a blocking Iterate from another goroutine.
func (m *Mainloop) WakeUp() {
	m.mu.Lock()
	closed := m.closed
	w := m.wakeW
	m.mu.Unlock()
	if !closed {
		_, _ = unix.Write(w, []byte{1})
	}
}

// Close releases the loop's own resources. Registered events must already
// be freed; dependent contexts must never outlive the loop.
func (m *Mainloop) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.quitting = true
	unix.Close(m.wakeR)
	unix.Close(m.wakeW)
}

func (m *Mainloop) nextDeadlineLocked() (time.Time, bool) {
	var next time.Time
	found := false
	for e := range m.timers {
		if !e.enabled {
			continue
		}
		if !found || e.at.Before(next) {
			next = e.at
			found = true
		}
	}
	return next, found
}

func pollEvents(f IOEventFlags) int16 {
	var ev int16
	if f&IOEventInput != 0 {
		ev |= unix.POLLIN
	}
	if f&IOEventOutput != 0 {
		ev |= unix.POLLOUT
	}
	return ev
}

func ioFlags(re int16) IOEventFlags {
	var f IOEventFlags
	if re&unix.POLLIN != 0 {
		f |= IOEventInput
	}
	if re&unix.POLLOUT != 0 {
		f |= IOEventOutput
	}
	if re&unix.POLLHUP != 0 {
		f |= IOEventHangup
	}
	if re&unix.POLLERR != 0 {
		f |= IOEventError
	}
	return f
}
