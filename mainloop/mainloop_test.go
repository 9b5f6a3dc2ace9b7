package mainloop

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func newLoop(t *testing.T) *Mainloop {
	t.Helper()
	m, err := New()
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m
}

func TestDeferEventsDispatchFIFO(t *testing.T) {
	m := newLoop(t)

	var order []int
	for i := 1; i <= 3; i++ {
		i := i
		_, err := m.NewDeferEvent(func(e DeferEvent) {
			order = append(order, i)
			e.Free()
		})
		require.NoError(t, err)
	}

	n, err := m.Iterate(false)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []int{1, 2, 3}, order)
	assert.Equal(t, 0, m.Registered())
}

func TestDeferEnableDisable(t *testing.T) {
	m := newLoop(t)

	calls := 0
	e, err := m.NewDeferEvent(func(DeferEvent) { calls++ })
	require.NoError(t, err)

	m.Iterate(false)
	assert.Equal(t, 1, calls)

	e.Enable(false)
	m.Iterate(false)
	assert.Equal(t, 1, calls)

	e.Enable(true)
	m.Iterate(false)
	assert.Equal(t, 2, calls)

	e.Free()
	m.Iterate(false)
	assert.Equal(t, 2, calls)
}

func TestFreedEventNeverFires(t *testing.T) {
	m := newLoop(t)

	calls := 0
	e, err := m.NewTimeEvent(time.Now().Add(-time.Millisecond), func(TimeEvent) { calls++ })
	require.NoError(t, err)
	e.Free()

	m.Iterate(false)
	assert.Equal(t, 0, calls)
	assert.Equal(t, 0, m.Registered())
}

func TestTimersFireInDeadlineOrder(t *testing.T) {
	m := newLoop(t)

	now := time.Now()
	var order []string
	_, err := m.NewTimeEvent(now.Add(-time.Millisecond), func(e TimeEvent) {
		order = append(order, "b")
		e.Free()
	})
	require.NoError(t, err)
	_, err = m.NewTimeEvent(now.Add(-2*time.Millisecond), func(e TimeEvent) {
		order = append(order, "a")
		e.Free()
	})
	require.NoError(t, err)

	m.Iterate(false)
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestTimerFiresOnceUntilRestarted(t *testing.T) {
	m := newLoop(t)

	calls := 0
	var ev TimeEvent
	ev, err := m.NewTimeEvent(time.Now().Add(-time.Millisecond), func(TimeEvent) { calls++ })
	require.NoError(t, err)

	m.Iterate(false)
	m.Iterate(false)
	assert.Equal(t, 1, calls)

	ev.Restart(time.Now().Add(-time.Millisecond))
	m.Iterate(false)
	assert.Equal(t, 2, calls)
	ev.Free()
}

func TestBlockingIterateWaitsForTimer(t *testing.T) {
	m := newLoop(t)

	fired := false
	_, err := m.NewTimeEvent(time.Now().Add(20*time.Millisecond), func(e TimeEvent) {
		fired = true
		e.Free()
	})
	require.NoError(t, err)

	start := time.Now()
	for !fired {
		_, err := m.Iterate(true)
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
}

func TestIOEvent(t *testing.T) {
	m := newLoop(t)

	var p [2]int
	require.NoError(t, unix.Pipe(p[:]))
	defer unix.Close(p[0])
	defer unix.Close(p[1])

	var got []byte
	e, err := m.NewIOEvent(p[0], IOEventInput, func(e IOEvent, fd int, events IOEventFlags) {
		require.True(t, events&IOEventInput != 0)
		buf := make([]byte, 8)
		n, _ := unix.Read(fd, buf)
		got = append(got, buf[:n]...)
	})
	require.NoError(t, err)

	_, err = unix.Write(p[1], []byte("hi"))
	require.NoError(t, err)

	_, err = m.Iterate(true)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(got))
	e.Free()
}

func TestRegistrationFailsAfterQuit(t *testing.T) {
	m := newLoop(t)
	m.Quit(0)

	_, err := m.NewDeferEvent(func(DeferEvent) {})
	assert.ErrorIs(t, err, ErrLoopShutdown)
	_, err = m.NewTimeEvent(time.Now(), func(TimeEvent) {})
	assert.ErrorIs(t, err, ErrLoopShutdown)
	_, err = m.NewIOEvent(0, IOEventInput, func(IOEvent, int, IOEventFlags) {})
	assert.ErrorIs(t, err, ErrLoopShutdown)
}

func TestQuitFromOtherGoroutineInterruptsRun(t *testing.T) {
	m := newLoop(t)

	done := make(chan int, 1)
	go func() {
		code, _ := m.Run()
		done <- code
	}()

	time.Sleep(10 * time.Millisecond)
	m.Quit(7)

	select {
	case code := <-done:
		assert.Equal(t, 7, code)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Quit")
	}
}
