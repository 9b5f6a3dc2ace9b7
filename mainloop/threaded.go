package mainloop

import (
	"errors"
	"sync"
)

// ThreadedMainloop runs a Mainloop on a dedicated background goroutine.
//
// Application goroutines must bracket every touch of loop-driven state
// (contexts, streams) with Lock/Unlock: the loop takes the same lock around
// each handler invocation, so no handler runs while the application holds
// it. Wait/Signal/Accept carry results out of handlers, as in the native
// threaded loop.
type ThreadedMainloop struct {
	ml   *Mainloop
	lock sync.Mutex

	cond       *sync.Cond
	acceptCond *sync.Cond
	nSignals   int
	nAccepted  int

	startMu sync.Mutex
	started bool
	done    chan struct{}
	retval  int
}

// NewThreaded creates a stopped threaded loop.
func NewThreaded() (*ThreadedMainloop, error) {
	ml, err := New()
	if err != nil {
		return nil, err
	}
	t := &ThreadedMainloop{ml: ml, done: make(chan struct{})}
	t.cond = sync.NewCond(&t.lock)
	t.acceptCond = sync.NewCond(&t.lock)
	ml.dispatchMu = &t.lock
	return t, nil
}

// API returns the registration surface of the underlying loop.
func (t *ThreadedMainloop) API() API { return t.ml }

// Start launches the background dispatch goroutine.
func (t *ThreadedMainloop) Start() error {
	t.startMu.Lock()
	defer t.startMu.Unlock()
	if t.started {
		return errors.New("threaded mainloop already started")
	}
	t.started = true
	go func() {
		code, _ := t.ml.Run()
		t.lock.Lock()
		t.retval = code
		t.lock.Unlock()
		close(t.done)
	}()
	return nil
}

// Stop terminates the dispatch goroutine and waits for it. The caller must
// not hold the loop lock.
func (t *ThreadedMainloop) Stop() {
	t.startMu.Lock()
	started := t.started
	t.startMu.Unlock()
	if !started {
		return
	}
	t.ml.Quit(0)
	<-t.done
}

// Close releases the loop. Call after Stop.
func (t *ThreadedMainloop) Close() { t.ml.Close() }

// Lock excludes the dispatch goroutine: while held, no handler runs.
// Not re-entrant, and must not be taken from within a handler (handlers
// already run under it).
func (t *ThreadedMainloop) Lock() { t.lock.Lock() }

// Unlock releases the loop lock.
func (t *ThreadedMainloop) Unlock() { t.lock.Unlock() }

// Wait blocks until a handler calls Signal. The caller must hold the loop
// lock; it is released while waiting and re-taken before return.
func (t *ThreadedMainloop) Wait() {
	t.cond.Wait()
}

// Signal wakes goroutines blocked in Wait. Called from a handler. With
// waitForAccept set it blocks until the woken goroutine calls Accept,
// which keeps a result alive until the waiter has copied it out.
func (t *ThreadedMainloop) Signal(waitForAccept bool) {
	t.nSignals++
	t.cond.Broadcast()
	if waitForAccept {
		for t.nAccepted < t.nSignals {
			t.acceptCond.Wait()
		}
	}
}

// Accept releases a handler blocked in Signal(true). The caller must hold
// the loop lock.
func (t *ThreadedMainloop) Accept() {
	t.nAccepted++
	t.acceptCond.Broadcast()
}
