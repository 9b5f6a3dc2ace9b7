package mainloop

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newThreaded(t *testing.T) *ThreadedMainloop {
	t.Helper()
	tm, err := NewThreaded()
	require.NoError(t, err)
	require.NoError(t, tm.Start())
	t.Cleanup(func() {
		tm.Stop()
		tm.Close()
	})
	return tm
}

func TestThreadedSignalWait(t *testing.T) {
	tm := newThreaded(t)

	tm.Lock()
	value := 0
	_, err := tm.API().NewDeferEvent(func(e DeferEvent) {
		e.Free()
		value = 42
		tm.Signal(false)
	})
	require.NoError(t, err)
	for value == 0 {
		tm.Wait()
	}
	tm.Unlock()

	assert.Equal(t, 42, value)
}

func TestNoHandlerRunsWhileApplicationHoldsLock(t *testing.T) {
	tm := newThreaded(t)

	tm.Lock()
	fired := false
	_, err := tm.API().NewDeferEvent(func(e DeferEvent) {
		e.Free()
		fired = true
		tm.Signal(false)
	})
	require.NoError(t, err)

	// The dispatch goroutine cannot take the lock while we hold it.
	time.Sleep(30 * time.Millisecond)
	assert.False(t, fired)

	for !fired {
		tm.Wait()
	}
	tm.Unlock()
	assert.True(t, fired)
}

func TestThreadedStartTwice(t *testing.T) {
	tm, err := NewThreaded()
	require.NoError(t, err)
	defer func() {
		tm.Stop()
		tm.Close()
	}()
	require.NoError(t, tm.Start())
	assert.Error(t, tm.Start())
}

func TestThreadedSignalWaitForAccept(t *testing.T) {
	tm := newThreaded(t)

	tm.Lock()
	var got string
	_, err := tm.API().NewDeferEvent(func(e DeferEvent) {
		e.Free()
		got = "result"
		tm.Signal(true)
	})
	require.NoError(t, err)
	for got == "" {
		tm.Wait()
	}
	out := got // copy out while the handler is parked in Signal
	tm.Accept()
	tm.Unlock()

	assert.Equal(t, "result", out)
}
