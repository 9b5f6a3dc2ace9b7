package bridge

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryDispatch(t *testing.T) {
	r := NewRegistry[int]()

	var got []int
	reg := r.Register(func(v int) { got = append(got, v) })

	require.True(t, r.Dispatch(reg.Token(), 1))
	require.True(t, r.Dispatch(reg.Token(), 2))
	assert.Equal(t, []int{1, 2}, got)
	assert.Equal(t, 1, r.Len())
}

func TestDispatchAfterCloseIsImpossible(t *testing.T) {
	r := NewRegistry[string]()

	calls := 0
	reg := r.Register(func(string) { calls++ })
	tok := reg.Token()

	reg.Close()
	assert.False(t, r.Dispatch(tok, "late"))
	assert.Equal(t, 0, calls)
	assert.Equal(t, 0, r.Len())

	// Idempotent.
	reg.Close()
	assert.False(t, r.Dispatch(tok, "later"))
}

func TestOneShotFiresAtMostOnce(t *testing.T) {
	r := NewRegistry[int]()

	calls := 0
	reg := r.RegisterOnce(func(int) { calls++ })

	assert.True(t, r.Dispatch(reg.Token(), 0))
	assert.False(t, r.Dispatch(reg.Token(), 0))
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, r.Len())
}

func TestOneShotCloseSuppresses(t *testing.T) {
	r := NewRegistry[int]()

	calls := 0
	reg := r.RegisterOnce(func(int) { calls++ })
	reg.Close()

	assert.False(t, r.Dispatch(reg.Token(), 0))
	assert.Equal(t, 0, calls)
}

func TestTokensNotReusedWhileLive(t *testing.T) {
	r := NewRegistry[int]()
	a := r.Register(func(int) {})
	b := r.Register(func(int) {})
	assert.NotEqual(t, a.Token(), b.Token())
}

func TestHandlerMayCloseItself(t *testing.T) {
	r := NewRegistry[int]()

	var reg *Registration[int]
	calls := 0
	reg = r.Register(func(int) {
		calls++
		reg.Close()
	})

	assert.True(t, r.Dispatch(reg.Token(), 0))
	assert.False(t, r.Dispatch(reg.Token(), 0))
	assert.Equal(t, 1, calls)
}

func TestConcurrentDispatchAndClose(t *testing.T) {
	r := NewRegistry[int]()

	var mu sync.Mutex
	calls := 0
	reg := r.RegisterOnce(func(int) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	tok := reg.Token()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.Dispatch(tok, 0)
		}()
		go func() {
			defer wg.Done()
			reg.Close()
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, calls, 1)
	assert.Equal(t, 0, r.Len())
}
