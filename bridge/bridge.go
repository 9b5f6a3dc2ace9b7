// Package bridge converts owned Go handlers into (trampoline, token) pairs
// that can be handed across the native callback boundary.
//
// The native side of the server API registers callbacks as a function
// pointer plus an opaque userdata word. Passing a Go pointer through that
// word would leave the handler's lifetime in the hands of foreign code.
// Instead the handler stays inside a Registry and only its Token crosses the
// boundary: the trampoline resolves the token back to the handler at
// dispatch time. Closing a Registration removes the entry and releases the
// handler in one step, so "deregistered" and "freed" cannot race apart.
package bridge

import "sync"

// Token identifies one registered handler. Tokens are never reused while
// the registration they name is still live.
type Token uint64

// Registry holds owned handlers keyed by token.
// The zero value is not usable; call NewRegistry.
type Registry[T any] struct {
	mu      sync.Mutex
	seq     Token
	entries map[Token]*entry[T]
}

type entry[T any] struct {
	h    func(T)
	once bool
}

// Registration is the owning side of one bridged handler.
type Registration[T any] struct {
	reg *Registry[T]
	tok Token

	mu     sync.Mutex
	closed bool
}

func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{entries: make(map[Token]*entry[T])}
}

// Register binds h as a persistent handler. It stays dispatchable until the
// returned Registration is closed.
func (r *Registry[T]) Register(h func(T)) *Registration[T] {
	return r.add(h, false)
}

// RegisterOnce binds h as a one-shot handler. The first dispatch claims and
// removes the entry before invoking h, so h runs at most once even if a
// second dispatch or a Close races with the first.
func (r *Registry[T]) RegisterOnce(h func(T)) *Registration[T] {
	return r.add(h, true)
}

func (r *Registry[T]) add(h func(T), once bool) *Registration[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	tok := r.seq
	r.entries[tok] = &entry[T]{h: h, once: once}
	return &Registration[T]{reg: r, tok: tok}
}

// Dispatch resolves tok and invokes its handler with v. It reports whether
// a live handler was found; a token whose registration has been closed (or
// a one-shot token that already fired) is dead and dispatch is a no-op.
func (r *Registry[T]) Dispatch(tok Token, v T) bool {
	r.mu.Lock()
	e, ok := r.entries[tok]
	if ok && e.once {
		delete(r.entries, tok)
	}
	r.mu.Unlock()
	if !ok {
		return false
	}
	// Invoked outside the lock so handlers may register or close freely.
	e.h(v)
	return true
}

// Len reports the number of live registrations.
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Token returns the value to pass as native userdata.
func (g *Registration[T]) Token() Token { return g.tok }

// Close deregisters the handler. After Close returns no dispatch of this
// token can invoke it. Close is idempotent.
func (g *Registration[T]) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}
	g.closed = true
	g.reg.mu.Lock()
	delete(g.reg.entries, g.tok)
	g.reg.mu.Unlock()
}
